package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stylekart/storefront/internal/domain"
)

// FallbackProvider serves search directly from the MongoDB product
// collection when the search engine is unreachable. Text matching degrades
// to case-insensitive substring matching and relevance ordering degrades to
// newest-first; filter semantics are identical to the engine branch.
type FallbackProvider struct {
	products *mongo.Collection
	logger   *slog.Logger
}

// NewFallbackProvider creates a provider backed by the given product collection.
func NewFallbackProvider(products *mongo.Collection, logger *slog.Logger) *FallbackProvider {
	return &FallbackProvider{products: products, logger: logger}
}

// Search translates the descriptor into a MongoDB filter and sort, runs the
// page query plus an exact count with the same filter, and normalizes the
// documents into search hits without relevance scores.
func (p *FallbackProvider) Search(ctx context.Context, d *domain.SearchDescriptor) (*domain.SearchResult, error) {
	filter := FallbackFilter(d)

	opts := options.Find().
		SetSort(fallbackSort(d.Sort)).
		SetSkip(int64(d.Offset())).
		SetLimit(int64(d.PageSize))

	cur, err := p.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("fallback search: find: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	hits := make([]domain.ProductSearchHit, 0, d.PageSize)
	for cur.Next(ctx) {
		var product domain.Product
		if err := cur.Decode(&product); err != nil {
			return nil, fmt.Errorf("fallback search: decode product: %w", err)
		}
		hits = append(hits, domain.HitFromProduct(&product))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("fallback search: cursor: %w", err)
	}

	total, err := p.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fallback search: count: %w", err)
	}

	p.logger.DebugContext(ctx, "fallback search executed",
		slog.String("text", d.Text),
		slog.Int64("total", total),
	)

	return &domain.SearchResult{
		Products: hits,
		Total:    int(total),
		Page:     d.Page,
		PageSize: d.PageSize,
	}, nil
}

// Suggest returns product names whose name contains the prefix, matched
// case-insensitively against active products, capped at SuggestLimit.
// Duplicate names are possible; deduplication is not part of the contract.
func (p *FallbackProvider) Suggest(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{
		"isActive": true,
		"name":     substringRegex(prefix),
	}

	opts := options.Find().
		SetProjection(bson.M{"name": 1}).
		SetLimit(int64(SuggestLimit))

	cur, err := p.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("fallback suggest: find: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	suggestions := make([]string, 0, SuggestLimit)
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("fallback suggest: decode: %w", err)
		}
		suggestions = append(suggestions, doc.Name)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("fallback suggest: cursor: %w", err)
	}

	return suggestions, nil
}

// FallbackFilter translates a descriptor into a MongoDB filter document.
// Only active products are ever matched. Free text becomes an OR of
// case-insensitive substring conditions on name, description, and brand;
// every other constraint is ANDed alongside.
func FallbackFilter(d *domain.SearchDescriptor) bson.M {
	filter := bson.M{"isActive": true}

	if d.Text != "" {
		re := substringRegex(d.Text)
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"description": re},
			bson.M{"brand": re},
		}
	}

	if d.Filters.Category != "" {
		filter["categories"] = d.Filters.Category
	}
	if d.Filters.Brand != "" {
		filter["brand"] = d.Filters.Brand
	}
	if d.Filters.Gender != "" {
		filter["gender"] = d.Filters.Gender
	}
	if d.Filters.Size != "" {
		filter["variants.size"] = d.Filters.Size
	}
	if d.Filters.Color != "" {
		filter["variants.color"] = d.Filters.Color
	}

	if d.Filters.PriceMin != nil || d.Filters.PriceMax != nil {
		price := bson.M{}
		if d.Filters.PriceMin != nil {
			price["$gte"] = *d.Filters.PriceMin
		}
		if d.Filters.PriceMax != nil {
			price["$lte"] = *d.Filters.PriceMax
		}
		filter["price"] = price
	}
	if d.Filters.RatingMin != nil {
		filter["rating"] = bson.M{"$gte": *d.Filters.RatingMin}
	}

	return filter
}

// fallbackSort maps the sort option onto a MongoDB sort document. The _id
// tiebreaker keeps page boundaries deterministic when the primary key ties.
// Relevance falls back to newest-first: there is no scoring in this branch.
func fallbackSort(sortBy string) bson.D {
	switch sortBy {
	case domain.SortPriceLow:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case domain.SortPriceHigh:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case domain.SortRating:
		return bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	}
}

// substringRegex builds a case-insensitive, literal-substring regex: the
// input is quoted so regex metacharacters in user queries match literally.
func substringRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
