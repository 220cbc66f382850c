package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylekart/storefront/internal/cache"
	"github.com/stylekart/storefront/internal/domain"
	"github.com/stylekart/storefront/internal/search"
	apperrors "github.com/stylekart/storefront/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo is an in-memory ProductRepository.
type fakeRepo struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*domain.Product
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{products: make(map[primitive.ObjectID]*domain.Product)}
}

func (r *fakeRepo) Insert(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.Slug == p.Slug {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
	}
	p.ID = primitive.NewObjectID()
	clone := *p
	r.products[p.ID] = &clone
	return nil
}

func (r *fakeRepo) Replace(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return apperrors.NotFound("product", p.ID.Hex())
	}
	clone := *p
	r.products[p.ID] = &clone
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id.Hex())
	}
	clone := *p
	return &clone, nil
}

func (r *fakeRepo) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
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

func (r *fakeRepo) SlugExists(_ context.Context, slug string, excludeID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.products {
		if p.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return apperrors.NotFound("product", id.Hex())
	}
	p.IsActive = false
	return nil
}

func (r *fakeRepo) Distinct(_ context.Context, field string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	var values []string
	for _, p := range r.products {
		if !p.IsActive {
			continue
		}
		switch field {
		case "brand":
			if _, ok := seen[p.Brand]; !ok {
				seen[p.Brand] = struct{}{}
				values = append(values, p.Brand)
			}
		case "categories":
			for _, c := range p.Categories {
				if _, ok := seen[c]; !ok {
					seen[c] = struct{}{}
					values = append(values, c)
				}
			}
		}
	}
	return values, nil
}

// recordingIndexer captures index sync calls and signals each one.
type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
	err     error
	calls   chan struct{}
}

func newRecordingIndexer() *recordingIndexer {
	return &recordingIndexer{calls: make(chan struct{}, 16)}
}

func (i *recordingIndexer) Index(_ context.Context, doc *domain.ProductDocument) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, doc.ID)
	i.calls <- struct{}{}
	return i.err
}

func (i *recordingIndexer) Delete(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deleted = append(i.deleted, id)
	i.calls <- struct{}{}
	return i.err
}

func (i *recordingIndexer) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-i.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for index sync")
	}
}

// stubProvider returns canned search results.
type stubProvider struct {
	result      *domain.SearchResult
	suggestions []string
	err         error
}

func (p *stubProvider) Search(context.Context, *domain.SearchDescriptor) (*domain.SearchResult, error) {
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

func newTestService(repo ProductRepository, provider search.Provider, indexer search.Indexer) *ProductService {
	return NewProductService(repo, provider, indexer, cache.Noop{}, newTestLogger())
}

func createInput(name string) *CreateProductInput {
	return &CreateProductInput{
		Name:        name,
		Description: "test product",
		Brand:       "Acme",
		Categories:  []string{"misc"},
		Price:       499,
		MRP:         999,
		Variants: []VariantInput{
			{Size: "M", Color: "black", SKU: "SKU-1", Stock: 5},
		},
	}
}

func TestProductService_Create(t *testing.T) {
	repo := newFakeRepo()
	indexer := newRecordingIndexer()
	svc := newTestService(repo, &stubProvider{}, indexer)

	product, err := svc.Create(context.Background(), createInput("Red Shirt"))
	require.NoError(t, err)

	assert.False(t, product.ID.IsZero())
	assert.Equal(t, "red-shirt", product.Slug)
	assert.True(t, product.IsActive)
	assert.False(t, product.CreatedAt.IsZero())

	indexer.waitForCall(t)
	assert.Equal(t, []string{product.ID.Hex()}, indexer.indexed)
}

func TestProductService_Create_SlugCollisionGetsSuffix(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &stubProvider{}, search.NoopIndexer{})

	first, err := svc.Create(context.Background(), createInput("Red Shirt"))
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), createInput("Red Shirt"))
	require.NoError(t, err)
	third, err := svc.Create(context.Background(), createInput("Red Shirt"))
	require.NoError(t, err)

	assert.Equal(t, "red-shirt", first.Slug)
	assert.Equal(t, "red-shirt-1", second.Slug)
	assert.Equal(t, "red-shirt-2", third.Slug)
}

func TestProductService_Create_IndexFailureDoesNotFailCreate(t *testing.T) {
	repo := newFakeRepo()
	indexer := newRecordingIndexer()
	indexer.err = errors.New("engine down")
	svc := newTestService(repo, &stubProvider{}, indexer)

	product, err := svc.Create(context.Background(), createInput("Blue Jeans"))
	require.NoError(t, err)
	indexer.waitForCall(t)

	// The document store write is durable regardless of the sync outcome.
	stored, err := svc.GetByID(context.Background(), product.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Blue Jeans", stored.Name)
}

func TestProductService_Update(t *testing.T) {
	repo := newFakeRepo()
	indexer := newRecordingIndexer()
	svc := newTestService(repo, &stubProvider{}, indexer)

	product, err := svc.Create(context.Background(), createInput("Old Name"))
	require.NoError(t, err)
	indexer.waitForCall(t)

	newName := "New Name"
	newPrice := 799.0
	updated, err := svc.Update(context.Background(), product.ID.Hex(), &UpdateProductInput{
		Name:  &newName,
		Price: &newPrice,
	})
	require.NoError(t, err)
	indexer.waitForCall(t)

	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, 799.0, updated.Price)
	// Slug only changes when explicitly provided.
	assert.Equal(t, "old-name", updated.Slug)
	assert.True(t, updated.UpdatedAt.After(product.UpdatedAt) || updated.UpdatedAt.Equal(product.UpdatedAt))
}

func TestProductService_Update_NotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), &stubProvider{}, search.NoopIndexer{})

	name := "x"
	_, err := svc.Update(context.Background(), primitive.NewObjectID().Hex(), &UpdateProductInput{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_Delete(t *testing.T) {
	repo := newFakeRepo()
	indexer := newRecordingIndexer()
	svc := newTestService(repo, &stubProvider{}, indexer)

	product, err := svc.Create(context.Background(), createInput("Doomed"))
	require.NoError(t, err)
	indexer.waitForCall(t)

	require.NoError(t, svc.Delete(context.Background(), product.ID.Hex()))
	indexer.waitForCall(t)
	assert.Equal(t, []string{product.ID.Hex()}, indexer.deleted)

	// Soft-deleted products are hidden from reads.
	_, err = svc.GetByID(context.Background(), product.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_GetByID_BadHexIsNotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), &stubProvider{}, search.NoopIndexer{})

	_, err := svc.GetByID(context.Background(), "not-a-hex-id")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductService_Search_PropagatesError(t *testing.T) {
	provider := &stubProvider{err: apperrors.ServiceUnavailable("search engine request failed")}
	svc := newTestService(newFakeRepo(), provider, search.NoopIndexer{})

	_, err := svc.Search(context.Background(), &domain.SearchDescriptor{Page: 1, PageSize: 20})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestProductService_Suggest_ShortPrefixSkipsBackend(t *testing.T) {
	provider := &stubProvider{err: errors.New("must not be called")}
	svc := newTestService(newFakeRepo(), provider, search.NoopIndexer{})

	assert.Empty(t, svc.Suggest(context.Background(), "a"))
	assert.Empty(t, svc.Suggest(context.Background(), ""))
}

func TestProductService_Suggest_SwallowsProviderError(t *testing.T) {
	provider := &stubProvider{err: errors.New("engine down")}
	svc := newTestService(newFakeRepo(), provider, search.NoopIndexer{})

	suggestions := svc.Suggest(context.Background(), "re")
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}

func TestProductService_Suggest_NilBecomesEmptySlice(t *testing.T) {
	svc := newTestService(newFakeRepo(), &stubProvider{}, search.NoopIndexer{})

	suggestions := svc.Suggest(context.Background(), "re")
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}

func TestProductService_CategoriesAndBrands(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &stubProvider{}, search.NoopIndexer{})

	input := createInput("Shirt A")
	input.Categories = []string{"shirts", "summer"}
	_, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shirts", "summer"}, categories)

	brands, err := svc.Brands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme"}, brands)
}
