package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylekart/storefront/internal/cache"
	"github.com/stylekart/storefront/internal/domain"
	"github.com/stylekart/storefront/internal/search"
	"github.com/stylekart/storefront/internal/service"
	apperrors "github.com/stylekart/storefront/pkg/errors"
	"github.com/stylekart/storefront/pkg/httputil"
)

// memRepo is an in-memory product repository for handler tests.
type memRepo struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*domain.Product
}

func newMemRepo() *memRepo {
	return &memRepo{products: make(map[primitive.ObjectID]*domain.Product)}
}

func (r *memRepo) Insert(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = primitive.NewObjectID()
	clone := *p
	r.products[p.ID] = &clone
	return nil
}

func (r *memRepo) Replace(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return apperrors.NotFound("product", p.ID.Hex())
	}
	clone := *p
	r.products[p.ID] = &clone
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id.Hex())
	}
	clone := *p
	return &clone, nil
}

func (r *memRepo) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == slug && p.IsActive {
			clone := *p
			return &clone, nil
		}
	}
	return nil, apperrors.NotFound("product", slug)
}

func (r *memRepo) SlugExists(_ context.Context, slug string, excludeID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.products {
		if p.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return apperrors.NotFound("product", id.Hex())
	}
	p.IsActive = false
	return nil
}

func (r *memRepo) Distinct(_ context.Context, field string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	values := []string{}
	for _, p := range r.products {
		if !p.IsActive {
			continue
		}
		var candidates []string
		if field == "brand" {
			candidates = []string{p.Brand}
		} else {
			candidates = p.Categories
		}
		for _, c := range candidates {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				values = append(values, c)
			}
		}
	}
	return values, nil
}

// stubProvider returns canned search results or a fixed error.
type stubProvider struct {
	result      *domain.SearchResult
	suggestions []string
	err         error
	lastQuery   *domain.SearchDescriptor
}

func (p *stubProvider) Search(_ context.Context, d *domain.SearchDescriptor) (*domain.SearchResult, error) {
	p.lastQuery = d
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func (p *stubProvider) Suggest(context.Context, string) ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.suggestions, nil
}

func newTestRouter(repo service.ProductRepository, provider search.Provider) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewProductService(repo, provider, search.NoopIndexer{}, cache.Noop{}, logger)
	h := NewProductHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Get("/suggestions", h.Suggestions)
		r.Get("/categories", h.Categories)
		r.Get("/brands", h.Brands)
		r.Get("/slug/{slug}", h.GetBySlug)
		r.Get("/{id}", h.GetByID)
	})
	r.Route("/api/admin/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestSearch_SuccessEnvelope(t *testing.T) {
	provider := &stubProvider{
		result: &domain.SearchResult{
			Products: []domain.ProductSearchHit{{ID: "a1", Name: "Red Shirt"}},
			Total:    41,
			Page:     2,
			PageSize: 20,
		},
	}
	router := newTestRouter(newMemRepo(), provider)

	w := doRequest(t, router, http.MethodGet, "/api/products?q=red&page=2", "")

	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	data := resp.Data.(map[string]any)
	products := data["products"].([]any)
	assert.Len(t, products, 1)

	pagination := data["pagination"].(map[string]any)
	assert.Equal(t, 2.0, pagination["page"])
	assert.Equal(t, 20.0, pagination["limit"])
	assert.Equal(t, 41.0, pagination["total"])
	assert.Equal(t, 3.0, pagination["totalPages"])
}

func TestSearch_NormalizesParameters(t *testing.T) {
	provider := &stubProvider{result: &domain.SearchResult{Page: 1, PageSize: 20}}
	router := newTestRouter(newMemRepo(), provider)

	w := doRequest(t, router, http.MethodGet, "/api/products?q=+shoes+&price_min=abc&limit=9999&sort=bogus", "")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, provider.lastQuery)
	assert.Equal(t, "shoes", provider.lastQuery.Text)
	assert.Nil(t, provider.lastQuery.Filters.PriceMin)
	assert.Equal(t, 100, provider.lastQuery.PageSize)
	assert.Equal(t, domain.SortRelevance, provider.lastQuery.Sort)
}

func TestSearch_EngineFailureIs503(t *testing.T) {
	provider := &stubProvider{err: apperrors.ServiceUnavailable("search engine request failed")}
	router := newTestRouter(newMemRepo(), provider)

	w := doRequest(t, router, http.MethodGet, "/api/products?q=red", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
}

func TestSuggestions_AlwaysOK(t *testing.T) {
	cases := map[string]*stubProvider{
		"short prefix":   {suggestions: []string{"should not appear"}},
		"provider error": {err: assert.AnError},
	}

	paths := map[string]string{
		"short prefix":   "/api/products/suggestions?q=a",
		"provider error": "/api/products/suggestions?q=red",
	}

	for name, provider := range cases {
		t.Run(name, func(t *testing.T) {
			router := newTestRouter(newMemRepo(), provider)
			w := doRequest(t, router, http.MethodGet, paths[name], "")

			assert.Equal(t, http.StatusOK, w.Code)

			resp := decodeEnvelope(t, w)
			assert.True(t, resp.Success)
			data := resp.Data.(map[string]any)
			assert.Empty(t, data["suggestions"])
		})
	}
}

func TestSuggestions_ReturnsResults(t *testing.T) {
	provider := &stubProvider{suggestions: []string{"Red Shirt", "Red Polo"}}
	router := newTestRouter(newMemRepo(), provider)

	w := doRequest(t, router, http.MethodGet, "/api/products/suggestions?q=red", "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	data := resp.Data.(map[string]any)
	assert.Equal(t, []any{"Red Shirt", "Red Polo"}, data["suggestions"])
}

func TestCreateAndGetProduct(t *testing.T) {
	router := newTestRouter(newMemRepo(), &stubProvider{})

	body := `{
		"name": "Red Shirt",
		"description": "A red shirt",
		"brand": "Acme",
		"categories": ["shirts"],
		"price": 499,
		"mrp": 999,
		"variants": [{"size": "M", "color": "red", "sku": "SKU-1", "stock": 3}]
	}`
	w := doRequest(t, router, http.MethodPost, "/api/admin/products", body)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	created := resp.Data.(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "red-shirt", created["slug"])

	w = doRequest(t, router, http.MethodGet, "/api/products/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/products/slug/red-shirt", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreate_ValidationError(t *testing.T) {
	router := newTestRouter(newMemRepo(), &stubProvider{})

	w := doRequest(t, router, http.MethodPost, "/api/admin/products", `{"name": ""}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "Name")
}

func TestCreate_RejectsNonJSONContentType(t *testing.T) {
	router := newTestRouter(newMemRepo(), &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	router := newTestRouter(newMemRepo(), &stubProvider{})

	w := doRequest(t, router, http.MethodGet, "/api/products/"+primitive.NewObjectID().Hex(), "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestDeleteProduct(t *testing.T) {
	router := newTestRouter(newMemRepo(), &stubProvider{})

	body := `{
		"name": "Doomed",
		"description": "gone soon",
		"brand": "Acme",
		"categories": ["misc"],
		"price": 1,
		"mrp": 1
	}`
	w := doRequest(t, router, http.MethodPost, "/api/admin/products", body)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeEnvelope(t, w).Data.(map[string]any)["id"].(string)

	w = doRequest(t, router, http.MethodDelete, "/api/admin/products/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/products/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoriesAndBrands(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(repo, &stubProvider{})

	body := `{
		"name": "Shirt",
		"description": "a shirt",
		"brand": "Acme",
		"categories": ["shirts", "summer"],
		"price": 10,
		"mrp": 20
	}`
	w := doRequest(t, router, http.MethodPost, "/api/admin/products", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/products/categories", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w).Data.(map[string]any)
	assert.ElementsMatch(t, []any{"shirts", "summer"}, data["categories"])

	w = doRequest(t, router, http.MethodGet, "/api/products/brands", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data = decodeEnvelope(t, w).Data.(map[string]any)
	assert.Equal(t, []any{"Acme"}, data["brands"])
}
