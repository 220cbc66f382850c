// Package app wires the storefront's dependencies together: the MongoDB
// source of truth, the optional Elasticsearch and Redis backends probed at
// startup, the service layer, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stylekart/storefront/internal/cache"
	"github.com/stylekart/storefront/internal/config"
	handler "github.com/stylekart/storefront/internal/handler/http"
	"github.com/stylekart/storefront/internal/search"
	"github.com/stylekart/storefront/internal/service"
	storemongo "github.com/stylekart/storefront/internal/store/mongo"
	"github.com/stylekart/storefront/pkg/health"
	"github.com/stylekart/storefront/pkg/middleware"
	"github.com/stylekart/storefront/pkg/tracing"
)

const productCollection = "products"

// App wires together all dependencies and runs the storefront backend.
type App struct {
	cfg          *config.Config
	logger       *slog.Logger
	mongoClient  *mongo.Client
	redisCache   *cache.Redis
	availability search.Availability
	httpServer   *http.Server
	shutdownOTel func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// MongoDB must be reachable; Elasticsearch and Redis are probed once and the
// app degrades to fallback search and a no-op cache when they are not.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Tracing.
	tracingCfg := tracing.DefaultConfig("storefront")
	tracingCfg.Environment = cfg.Environment
	tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
	tracingCfg.Enabled = cfg.TracingEnabled
	shutdownOTel, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// MongoDB is the source of truth and required at startup.
	mongoCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	logger.Info("mongodb connected", slog.String("database", cfg.MongoDatabase))

	collection := mongoClient.Database(cfg.MongoDatabase).Collection(productCollection)
	productRepo := storemongo.NewProductRepository(collection, logger)

	if err := productRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure product indexes: %w", err)
	}

	var availability search.Availability

	// Elasticsearch probe. The decision made here holds for the life of the
	// process: a provider chosen at startup is never swapped mid-flight.
	var provider search.Provider
	var indexer search.Indexer = search.NoopIndexer{}
	var engineProvider *search.EngineProvider

	if cfg.ElasticsearchEnabled {
		engineProvider, err = search.NewEngineProvider(ctx, search.EngineConfig{
			URL:          cfg.ElasticsearchURL,
			Index:        cfg.ElasticsearchIndex,
			ProbeTimeout: cfg.ProbeTimeout,
		}, logger)
		if err != nil {
			logger.Warn("elasticsearch unreachable, using fallback search",
				slog.String("url", cfg.ElasticsearchURL),
				slog.String("error", err.Error()),
			)
		}
	}

	if engineProvider != nil {
		provider = engineProvider
		indexer = engineProvider
		availability.SearchEngine = true
		logger.Info("elasticsearch search initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	} else {
		provider = search.NewFallbackProvider(collection, logger)
		logger.Info("fallback search initialized")
	}

	// Redis probe. A no-op cache keeps the read path branch-free when Redis
	// is disabled or down.
	var productCache cache.Cache = cache.Noop{}
	var redisCache *cache.Redis

	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedis(ctx, cache.Config{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			ProbeTimeout: cfg.ProbeTimeout,
		})
		if err != nil {
			logger.Warn("redis unreachable, caching disabled",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		}
	}

	if redisCache != nil {
		productCache = redisCache
		availability.Cache = true
		logger.Info("redis cache initialized", slog.String("addr", cfg.RedisAddr))
	}

	// Service layer.
	productService := service.NewProductService(productRepo, provider, indexer, productCache, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("mongodb", productRepo.Ping)
	if engineProvider != nil {
		healthHandler.Register("elasticsearch", engineProvider.Ping)
	}
	if redisCache != nil {
		healthHandler.Register("redis", redisCache.Ping)
	}

	// HTTP router.
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: cfg.CORSOrigins,
		Environment:    cfg.Environment,
	}
	router := handler.NewRouter(productService, healthHandler, corsConfig, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		mongoClient:  mongoClient,
		redisCache:   redisCache,
		availability: availability,
		httpServer:   httpServer,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Availability reports which optional backends were reachable at startup.
func (a *App) Availability() search.Availability {
	return a.availability
}

// Run starts the HTTP server, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.Bool("search_engine", a.availability.SearchEngine),
			slog.Bool("cache", a.availability.Cache),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
		a.logger.Error("mongodb disconnect error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
