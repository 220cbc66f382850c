package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylekart/storefront/internal/cache"
	"github.com/stylekart/storefront/internal/domain"
	"github.com/stylekart/storefront/internal/search"
	apperrors "github.com/stylekart/storefront/pkg/errors"
	"github.com/stylekart/storefront/pkg/slug"
)

const (
	metaCacheTTL    = 10 * time.Minute
	productCacheTTL = 5 * time.Minute
	syncTimeout     = 10 * time.Second

	categoriesCacheKey = "catalog:categories"
	brandsCacheKey     = "catalog:brands"
)

// ProductRepository is the document-store access the service needs. The
// MongoDB implementation lives in internal/store/mongo.
type ProductRepository interface {
	Insert(ctx context.Context, p *domain.Product) error
	Replace(ctx context.Context, p *domain.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	SlugExists(ctx context.Context, slug string, excludeID primitive.ObjectID) (bool, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	Distinct(ctx context.Context, field string) ([]string, error)
}

// ProductService implements the product catalog business logic: search and
// autocomplete through the active search provider, catalog reads through
// the repository (with read-through caching), and mutations with
// best-effort index sync.
type ProductService struct {
	repo     ProductRepository
	provider search.Provider
	indexer  search.Indexer
	cache    cache.Cache
	logger   *slog.Logger
}

// NewProductService wires the service with its collaborators. indexer is
// the no-op implementation when the search engine is unreachable.
func NewProductService(
	repo ProductRepository,
	provider search.Provider,
	indexer search.Indexer,
	c cache.Cache,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:     repo,
		provider: provider,
		indexer:  indexer,
		cache:    c,
		logger:   logger,
	}
}

// Search runs a normalized descriptor against the active search backend.
// Errors from the engine backend surface as service-unavailable; there is
// no silent mid-request downgrade to the fallback.
func (s *ProductService) Search(ctx context.Context, d *domain.SearchDescriptor) (*domain.SearchResult, error) {
	result, err := s.provider.Search(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("text", d.Text),
		slog.String("sort", d.Sort),
		slog.Int("total", result.Total),
	)

	return result, nil
}

// Suggest returns autocomplete suggestions for the prefix. Prefixes shorter
// than two characters return an empty list without touching a backend, and
// backend failures degrade to an empty list as well: suggestions never
// produce a user-visible error.
func (s *ProductService) Suggest(ctx context.Context, prefix string) []string {
	if len(prefix) < search.SuggestMinPrefix {
		return []string{}
	}

	suggestions, err := s.provider.Suggest(ctx, prefix)
	if err != nil {
		s.logger.WarnContext(ctx, "suggest failed, returning empty list",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		return []string{}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions
}

// GetByID returns an active product by its hex ID.
func (s *ProductService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound("product", id)
	}

	product, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperrors.NotFound("product", id)
	}
	return product, nil
}

// GetBySlug returns an active product by slug, read through the cache.
func (s *ProductService) GetBySlug(ctx context.Context, slugVal string) (*domain.Product, error) {
	key := "product:slug:" + slugVal

	if cached, found, err := s.cache.Get(ctx, key); err == nil && found {
		var product domain.Product
		if err := json.Unmarshal([]byte(cached), &product); err == nil {
			return &product, nil
		}
	}

	product, err := s.repo.FindBySlug(ctx, slugVal)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := s.cache.Set(ctx, key, string(data), productCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "cache set failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	return product, nil
}

// Categories lists the distinct categories of active products, cached.
func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	return s.cachedDistinct(ctx, categoriesCacheKey, "categories")
}

// Brands lists the distinct brands of active products, cached.
func (s *ProductService) Brands(ctx context.Context) ([]string, error) {
	return s.cachedDistinct(ctx, brandsCacheKey, "brand")
}

func (s *ProductService) cachedDistinct(ctx context.Context, key, field string) ([]string, error) {
	if cached, found, err := s.cache.Get(ctx, key); err == nil && found {
		var values []string
		if err := json.Unmarshal([]byte(cached), &values); err == nil {
			return values, nil
		}
	}

	values, err := s.repo.Distinct(ctx, field)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(values); err == nil {
		if err := s.cache.Set(ctx, key, string(data), metaCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "cache set failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	return values, nil
}

// VariantInput is one size/color combination in a product mutation.
type VariantInput struct {
	Size   string   `json:"size" validate:"required"`
	Color  string   `json:"color" validate:"required"`
	SKU    string   `json:"sku" validate:"required"`
	Stock  int      `json:"stock" validate:"gte=0"`
	Price  *float64 `json:"price,omitempty"`
	Images []string `json:"images,omitempty"`
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name        string            `json:"name" validate:"required,min=1"`
	Slug        string            `json:"slug"`
	Description string            `json:"description" validate:"required"`
	Brand       string            `json:"brand" validate:"required"`
	Gender      string            `json:"gender"`
	Categories  []string          `json:"categories" validate:"required,min=1"`
	Price       float64           `json:"price" validate:"gte=0"`
	MRP         float64           `json:"mrp" validate:"gte=0"`
	Discount    int               `json:"discount" validate:"gte=0,lte=100"`
	Images      []string          `json:"images"`
	Variants    []VariantInput    `json:"variants" validate:"dive"`
	Specs       map[string]string `json:"specs,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

// Create stores a new product in the document store, then pushes the
// denormalized document into the search index in the background. The
// document-store write is the durable one; a failed index sync is logged
// and discarded, and the product stays findable through fallback search.
func (s *ProductService) Create(ctx context.Context, input *CreateProductInput) (*domain.Product, error) {
	base := input.Slug
	if base == "" {
		base = slug.Generate(input.Name)
	}
	uniqueSlug, err := s.uniqueSlug(ctx, base, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		Name:        input.Name,
		Slug:        uniqueSlug,
		Description: input.Description,
		Brand:       input.Brand,
		Gender:      input.Gender,
		Categories:  input.Categories,
		Price:       input.Price,
		MRP:         input.MRP,
		Discount:    input.Discount,
		Images:      input.Images,
		Variants:    variantsFromInput(input.Variants),
		Specs:       input.Specs,
		Tags:        input.Tags,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, product); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID.Hex()),
		slog.String("slug", product.Slug),
	)

	s.syncIndex(product)
	s.invalidateCatalogCache(ctx, product.Slug)

	return product, nil
}

// UpdateProductInput holds the parameters for updating a product. Nil
// fields are left unchanged.
type UpdateProductInput struct {
	Name        *string           `json:"name,omitempty" validate:"omitempty,min=1"`
	Slug        *string           `json:"slug,omitempty"`
	Description *string           `json:"description,omitempty"`
	Brand       *string           `json:"brand,omitempty"`
	Gender      *string           `json:"gender,omitempty"`
	Categories  []string          `json:"categories,omitempty"`
	Price       *float64          `json:"price,omitempty" validate:"omitempty,gte=0"`
	MRP         *float64          `json:"mrp,omitempty" validate:"omitempty,gte=0"`
	Discount    *int              `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	Images      []string          `json:"images,omitempty"`
	Variants    []VariantInput    `json:"variants,omitempty" validate:"omitempty,dive"`
	Specs       map[string]string `json:"specs,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	IsActive    *bool             `json:"isActive,omitempty"`
}

// Update applies the non-nil fields of the input to the stored product and
// re-syncs the search index in the background.
func (s *ProductService) Update(ctx context.Context, id string, input *UpdateProductInput) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound("product", id)
	}

	product, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}

	oldSlug := product.Slug
	applyUpdate(product, input)

	if input.Slug != nil && *input.Slug != oldSlug {
		uniqueSlug, err := s.uniqueSlug(ctx, *input.Slug, oid)
		if err != nil {
			return nil, err
		}
		product.Slug = uniqueSlug
	}

	product.UpdatedAt = time.Now().UTC()

	if err := s.repo.Replace(ctx, product); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", id))

	s.syncIndex(product)
	s.invalidateCatalogCache(ctx, oldSlug, product.Slug)

	return product, nil
}

// Delete soft-deletes a product and removes it from the search index in the
// background.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NotFound("product", id)
	}

	product, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, oid); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))

	go func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := s.indexer.Delete(syncCtx, id); err != nil {
			s.logger.Warn("search index delete failed",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
	}()

	s.invalidateCatalogCache(ctx, product.Slug)

	return nil
}

// syncIndex pushes the denormalized product document into the search index
// without blocking the request. Failures are logged and swallowed: the
// document store already holds the durable write.
func (s *ProductService) syncIndex(product *domain.Product) {
	doc := domain.DocumentFromProduct(product)
	go func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := s.indexer.Index(syncCtx, doc); err != nil {
			s.logger.Warn("search index sync failed",
				slog.String("product_id", doc.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// uniqueSlug probes for a free slug, appending -1, -2, ... until one is
// available.
func (s *ProductService) uniqueSlug(ctx context.Context, base string, excludeID primitive.ObjectID) (string, error) {
	candidate := base
	for counter := 1; ; counter++ {
		exists, err := s.repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (s *ProductService) invalidateCatalogCache(ctx context.Context, slugs ...string) {
	keys := []string{categoriesCacheKey, brandsCacheKey}
	for _, sl := range slugs {
		keys = append(keys, "product:slug:"+sl)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", slog.String("error", err.Error()))
	}
}

func applyUpdate(p *domain.Product, input *UpdateProductInput) {
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.Brand != nil {
		p.Brand = *input.Brand
	}
	if input.Gender != nil {
		p.Gender = *input.Gender
	}
	if input.Categories != nil {
		p.Categories = input.Categories
	}
	if input.Price != nil {
		p.Price = *input.Price
	}
	if input.MRP != nil {
		p.MRP = *input.MRP
	}
	if input.Discount != nil {
		p.Discount = *input.Discount
	}
	if input.Images != nil {
		p.Images = input.Images
	}
	if input.Variants != nil {
		p.Variants = variantsFromInput(input.Variants)
	}
	if input.Specs != nil {
		p.Specs = input.Specs
	}
	if input.Tags != nil {
		p.Tags = input.Tags
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}
}

func variantsFromInput(inputs []VariantInput) []domain.Variant {
	variants := make([]domain.Variant, 0, len(inputs))
	for _, v := range inputs {
		variants = append(variants, domain.Variant{
			Size:   v.Size,
			Color:  v.Color,
			SKU:    v.SKU,
			Stock:  v.Stock,
			Price:  v.Price,
			Images: v.Images,
		})
	}
	return variants
}
