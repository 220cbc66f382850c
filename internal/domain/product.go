package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Variant is a purchasable size/color combination of a product.
type Variant struct {
	Size   string   `bson:"size" json:"size"`
	Color  string   `bson:"color" json:"color"`
	SKU    string   `bson:"sku" json:"sku"`
	Stock  int      `bson:"stock" json:"stock"`
	Price  *float64 `bson:"price,omitempty" json:"price,omitempty"`
	Images []string `bson:"images,omitempty" json:"images,omitempty"`
}

// Product is the canonical product document stored in MongoDB. The document
// store is the source of truth; the search index holds a denormalized copy.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description" json:"description"`
	Brand       string             `bson:"brand" json:"brand"`
	Gender      string             `bson:"gender,omitempty" json:"gender,omitempty"`
	Categories  []string           `bson:"categories" json:"categories"`
	Price       float64            `bson:"price" json:"price"`
	MRP         float64            `bson:"mrp" json:"mrp"`
	Discount    int                `bson:"discount" json:"discount"`
	Images      []string           `bson:"images" json:"images"`
	Variants    []Variant          `bson:"variants" json:"variants"`
	Rating      float64            `bson:"rating" json:"rating"`
	ReviewCount int                `bson:"reviewCount" json:"reviewCount"`
	Specs       map[string]string  `bson:"specs,omitempty" json:"specs,omitempty"`
	Tags        []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Sizes returns the distinct variant sizes in document order.
func (p *Product) Sizes() []string {
	return distinctVariantField(p.Variants, func(v Variant) string { return v.Size })
}

// Colors returns the distinct variant colors in document order.
func (p *Product) Colors() []string {
	return distinctVariantField(p.Variants, func(v Variant) string { return v.Color })
}

// TotalStock sums the stock across all variants.
func (p *Product) TotalStock() int {
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

func distinctVariantField(variants []Variant, field func(Variant) string) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		val := field(v)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
