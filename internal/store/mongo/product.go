// Package mongo implements the product repository over the MongoDB product
// collection, the system's source of truth.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stylekart/storefront/internal/domain"
	apperrors "github.com/stylekart/storefront/pkg/errors"
)

// ProductRepository provides CRUD access to the product collection.
type ProductRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewProductRepository creates a repository over the given collection.
func NewProductRepository(collection *mongo.Collection, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{collection: collection, logger: logger}
}

// Collection exposes the underlying collection for the fallback search
// provider, which queries products directly.
func (r *ProductRepository) Collection() *mongo.Collection {
	return r.collection
}

// EnsureIndexes creates the collection's secondary indexes. It is idempotent
// and safe to run on every startup.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "brand", Value: 1}}},
		{Keys: bson.D{{Key: "categories", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "rating", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}

// Insert stores a new product and fills in its generated ID.
func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	res, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return nil
}

// Replace overwrites the stored product identified by p.ID.
func (r *ProductRepository) Replace(ctx context.Context, p *domain.Product) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("replace product: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", p.ID.Hex())
	}
	return nil
}

// FindByID returns the product with the given ID, active or not.
func (r *ProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	var p domain.Product
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("product", id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("find product by id: %w", err)
	}
	return &p, nil
}

// FindBySlug returns the active product with the given slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	var p domain.Product
	err := r.collection.FindOne(ctx, bson.M{"slug": slug, "isActive": true}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("product", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("find product by slug: %w", err)
	}
	return &p, nil
}

// SlugExists reports whether another product already uses the slug.
// excludeID skips the product being updated; pass primitive.NilObjectID
// when creating.
func (r *ProductRepository) SlugExists(ctx context.Context, slug string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"slug": slug}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check slug exists: %w", err)
	}
	return count > 0, nil
}

// SoftDelete marks a product inactive. The document remains in the
// collection; search excludes inactive products on both backends.
func (r *ProductRepository) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}
	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", id.Hex())
	}
	return nil
}

// Distinct returns the distinct values of a field across active products.
func (r *ProductRepository) Distinct(ctx context.Context, field string) ([]string, error) {
	raw, err := r.collection.Distinct(ctx, field, bson.M{"isActive": true})
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values, nil
}

// Ping verifies the MongoDB connection for health checks.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}
