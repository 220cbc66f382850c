package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/stylekart/storefront/internal/domain"
	apperrors "github.com/stylekart/storefront/pkg/errors"
)

// DefaultIndexName is the Elasticsearch index holding product documents.
const DefaultIndexName = "products"

// EngineProvider answers search requests from Elasticsearch with fuzzy
// full-text matching and relevance scoring. It also implements Indexer for
// the write-side sync. A request-time engine failure surfaces as a
// service-unavailable error; availability was decided at startup and is
// never silently downgraded mid-request.
type EngineProvider struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// EngineConfig holds the connection settings for the search engine.
type EngineConfig struct {
	URL          string
	Index        string
	ProbeTimeout time.Duration
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string                 `json:"_id"`
			Score  *float64               `json:"_score"`
			Source domain.ProductDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esSuggestResponse struct {
	Suggest struct {
		ProductSuggest []struct {
			Options []struct {
				Text string `json:"text"`
			} `json:"options"`
		} `json:"product_suggest"`
	} `json:"suggest"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// NewEngineProvider connects to Elasticsearch, verifies reachability within
// the probe timeout, and ensures the product index exists (checking before
// creating, so repeated startups are idempotent). Any failure is returned to
// the caller, which downgrades the process to fallback mode instead of
// aborting startup.
func NewEngineProvider(ctx context.Context, cfg EngineConfig, logger *slog.Logger) (*EngineProvider, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	p := &EngineProvider{
		client:    client,
		indexName: cfg.Index,
		logger:    logger,
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	if err := p.Ping(probeCtx); err != nil {
		return nil, err
	}
	if err := p.ensureIndex(probeCtx); err != nil {
		return nil, err
	}

	return p, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (p *EngineProvider) Ping(ctx context.Context) error {
	res, err := p.client.Ping(p.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// ensureIndex creates the product index with its mapping unless it exists.
func (p *EngineProvider) ensureIndex(ctx context.Context) error {
	res, err := p.client.Indices.Exists(
		[]string{p.indexName},
		p.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == 200 {
		p.logger.Info("elasticsearch index already exists", slog.String("index", p.indexName))
		return nil
	}

	res, err = p.client.Indices.Create(
		p.indexName,
		p.client.Indices.Create.WithBody(strings.NewReader(productIndexMapping)),
		p.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("create index: %s", p.decodeError(res.Body, res.Status()))
	}

	p.logger.Info("elasticsearch index created", slog.String("index", p.indexName))
	return nil
}

// Search translates the descriptor into an Elasticsearch bool query and
// normalizes the hit list, attaching the engine's relevance score to each
// hit. The reported total comes from the engine and may be approximate.
func (p *EngineProvider) Search(ctx context.Context, d *domain.SearchDescriptor) (*domain.SearchResult, error) {
	body, err := json.Marshal(EngineQuery(d))
	if err != nil {
		return nil, fmt.Errorf("engine search: marshal query: %w", err)
	}

	res, err := p.client.Search(
		p.client.Search.WithIndex(p.indexName),
		p.client.Search.WithBody(bytes.NewReader(body)),
		p.client.Search.WithContext(ctx),
		p.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		p.logger.ErrorContext(ctx, "engine search request failed", slog.String("error", err.Error()))
		return nil, apperrors.ServiceUnavailable("search engine request failed")
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		p.logger.ErrorContext(ctx, "engine search returned error",
			slog.String("detail", p.decodeError(res.Body, res.Status())),
		)
		return nil, apperrors.ServiceUnavailable("search engine request failed")
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("engine search: decode response: %w", err)
	}

	hits := make([]domain.ProductSearchHit, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		src := hit.Source
		hits = append(hits, domain.ProductSearchHit{
			ID:             hit.ID,
			Name:           src.Name,
			Brand:          src.Brand,
			Gender:         src.Gender,
			Description:    src.Description,
			Categories:     src.Categories,
			Price:          src.Price,
			MRP:            src.MRP,
			Discount:       src.Discount,
			Sizes:          src.Size,
			Colors:         src.Color,
			Rating:         src.Rating,
			Stock:          src.Stock,
			Images:         src.Images,
			Slug:           src.Slug,
			CreatedAt:      src.CreatedAt,
			RelevanceScore: hit.Score,
		})
	}

	return &domain.SearchResult{
		Products: hits,
		Total:    esResp.Hits.Total.Value,
		Page:     d.Page,
		PageSize: d.PageSize,
	}, nil
}

// Suggest runs a completion query against the precomputed name.suggest
// field and returns the suggested texts, capped at SuggestLimit.
func (p *EngineProvider) Suggest(ctx context.Context, prefix string) ([]string, error) {
	query := map[string]any{
		"suggest": map[string]any{
			"product_suggest": map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field": "name.suggest",
					"size":  SuggestLimit,
				},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("engine suggest: marshal query: %w", err)
	}

	res, err := p.client.Search(
		p.client.Search.WithIndex(p.indexName),
		p.client.Search.WithBody(bytes.NewReader(body)),
		p.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("engine suggest: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, fmt.Errorf("engine suggest: %s", p.decodeError(res.Body, res.Status()))
	}

	var esResp esSuggestResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("engine suggest: decode response: %w", err)
	}

	var suggestions []string
	for _, group := range esResp.Suggest.ProductSuggest {
		for _, opt := range group.Options {
			suggestions = append(suggestions, opt.Text)
		}
	}

	return suggestions, nil
}

// Index adds or replaces a product document in the index.
func (p *EngineProvider) Index(ctx context.Context, doc *domain.ProductDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("engine index: marshal document: %w", err)
	}

	res, err := p.client.Index(
		p.indexName,
		bytes.NewReader(data),
		p.client.Index.WithDocumentID(doc.ID),
		p.client.Index.WithRefresh("true"),
		p.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("engine index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("engine index: %s", p.decodeError(res.Body, res.Status()))
	}

	p.logger.DebugContext(ctx, "indexed product", slog.String("id", doc.ID), slog.String("name", doc.Name))
	return nil
}

// Delete removes a product document by ID. A 404 is not an error: the
// document may never have been indexed.
func (p *EngineProvider) Delete(ctx context.Context, id string) error {
	res, err := p.client.Delete(
		p.indexName,
		id,
		p.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("engine delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("engine delete: %s", p.decodeError(res.Body, res.Status()))
	}

	p.logger.DebugContext(ctx, "deleted product from index", slog.String("id", id))
	return nil
}

func (p *EngineProvider) decodeError(body io.Reader, status string) string {
	var errResp esErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Sprintf("%s: %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return "unexpected status " + status
}

// EngineQuery translates a descriptor into the Elasticsearch query DSL.
// Free text becomes should-clauses with AUTO fuzziness (name weighted
// highest) over an unscored match_all base; at least one should-clause must
// match. Every filter becomes a non-scoring term or range clause, mirroring
// the fallback filter semantics exactly.
func EngineQuery(d *domain.SearchDescriptor) map[string]any {
	boolQuery := map[string]any{
		"must": []any{
			map[string]any{"match_all": map[string]any{}},
		},
	}

	if d.Text != "" {
		boolQuery["should"] = []any{
			matchClause("name", d.Text, 2),
			matchClause("description", d.Text, 0),
			matchClause("brand", d.Text, 0),
		}
		boolQuery["minimum_should_match"] = 1
	}

	if filters := engineFilters(d.Filters); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"sort":  engineSort(d.Sort),
		"from":  d.Offset(),
		"size":  d.PageSize,
	}
}

func matchClause(field, text string, boost float64) map[string]any {
	match := map[string]any{
		"query":     text,
		"fuzziness": "AUTO",
	}
	if boost > 0 {
		match["boost"] = boost
	}
	return map[string]any{
		"match": map[string]any{field: match},
	}
}

func engineFilters(f domain.SearchFilters) []any {
	var filters []any

	term := func(field, value string) {
		if value != "" {
			filters = append(filters, map[string]any{
				"term": map[string]any{field: value},
			})
		}
	}

	term("categories", f.Category)
	term("brand", f.Brand)
	term("gender", f.Gender)
	term("size", f.Size)
	term("color", f.Color)

	if f.PriceMin != nil || f.PriceMax != nil {
		bounds := map[string]any{}
		if f.PriceMin != nil {
			bounds["gte"] = *f.PriceMin
		}
		if f.PriceMax != nil {
			bounds["lte"] = *f.PriceMax
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"price": bounds},
		})
	}
	if f.RatingMin != nil {
		filters = append(filters, map[string]any{
			"range": map[string]any{"rating": map[string]any{"gte": *f.RatingMin}},
		})
	}

	return filters
}

func engineSort(sortBy string) []any {
	switch sortBy {
	case domain.SortPriceLow:
		return []any{map[string]any{"price": map[string]any{"order": "asc"}}}
	case domain.SortPriceHigh:
		return []any{map[string]any{"price": map[string]any{"order": "desc"}}}
	case domain.SortRating:
		return []any{map[string]any{"rating": map[string]any{"order": "desc"}}}
	case domain.SortNewest:
		return []any{map[string]any{"createdAt": map[string]any{"order": "desc"}}}
	default:
		return []any{map[string]any{"_score": map[string]any{"order": "desc"}}}
	}
}
