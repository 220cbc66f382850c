package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "storefront", cfg.MongoDatabase)
	assert.True(t, cfg.ElasticsearchEnabled)
	assert.Equal(t, "http://localhost:9200", cfg.ElasticsearchURL)
	assert.Equal(t, "products", cfg.ElasticsearchIndex)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidProbeTimeout(t *testing.T) {
	t.Setenv("PROBE_TIMEOUT", "-1s")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid probe timeout")
}

func TestLoad_DisabledBackends(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.ElasticsearchEnabled)
	assert.False(t, cfg.RedisEnabled)
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://shop.example.com,https://admin.example.com")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
}
