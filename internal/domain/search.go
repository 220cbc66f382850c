package domain

import "time"

// Sort options accepted by the search endpoint.
const (
	SortRelevance = "relevance"
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
	SortRating    = "rating"
	SortNewest    = "newest"
)

// IsValidSort reports whether the given string is a known sort option.
func IsValidSort(sort string) bool {
	switch sort {
	case SortRelevance, SortPriceLow, SortPriceHigh, SortRating, SortNewest:
		return true
	}
	return false
}

// SearchFilters holds the equality and range constraints of a search request.
// Equality filters match stored data exactly, including case. Range bounds
// are nil when the client did not supply them.
type SearchFilters struct {
	Category  string
	Brand     string
	Gender    string
	Size      string
	Color     string
	PriceMin  *float64
	PriceMax  *float64
	RatingMin *float64
}

// Empty reports whether no filter constraint is set.
func (f SearchFilters) Empty() bool {
	return f.Category == "" && f.Brand == "" && f.Gender == "" &&
		f.Size == "" && f.Color == "" &&
		f.PriceMin == nil && f.PriceMax == nil && f.RatingMin == nil
}

// SearchDescriptor is the backend-agnostic representation of one search
// request. It is built per request by search.Normalize and translated into
// either a MongoDB filter or an Elasticsearch query by the active provider.
type SearchDescriptor struct {
	Text     string
	Filters  SearchFilters
	Sort     string
	Page     int
	PageSize int
}

// Offset returns the zero-based result offset for the descriptor's page.
func (d *SearchDescriptor) Offset() int {
	return (d.Page - 1) * d.PageSize
}

// ProductSearchHit is one entry of a paginated search response. Both search
// backends normalize their native result shapes into this type.
// RelevanceScore is set only when Elasticsearch served the request; callers
// must not assume its presence.
type ProductSearchHit struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Brand          string    `json:"brand"`
	Gender         string    `json:"gender,omitempty"`
	Description    string    `json:"description"`
	Categories     []string  `json:"categories"`
	Price          float64   `json:"price"`
	MRP            float64   `json:"mrp"`
	Discount       int       `json:"discount"`
	Sizes          []string  `json:"sizes"`
	Colors         []string  `json:"colors"`
	Rating         float64   `json:"rating"`
	Stock          int       `json:"stock"`
	Images         []string  `json:"images"`
	Slug           string    `json:"slug"`
	CreatedAt      time.Time `json:"createdAt"`
	RelevanceScore *float64  `json:"relevanceScore,omitempty"`
}

// HitFromProduct maps a stored product into the uniform hit shape used by
// the fallback provider. No relevance score is attached.
func HitFromProduct(p *Product) ProductSearchHit {
	return ProductSearchHit{
		ID:          p.ID.Hex(),
		Name:        p.Name,
		Brand:       p.Brand,
		Gender:      p.Gender,
		Description: p.Description,
		Categories:  p.Categories,
		Price:       p.Price,
		MRP:         p.MRP,
		Discount:    p.Discount,
		Sizes:       p.Sizes(),
		Colors:      p.Colors(),
		Rating:      p.Rating,
		Stock:       p.TotalStock(),
		Images:      p.Images,
		Slug:        p.Slug,
		CreatedAt:   p.CreatedAt,
	}
}

// SearchResult is the uniform paginated response produced by either backend.
// Total may be approximate under the Elasticsearch backend depending on
// engine configuration; it is exact under the fallback backend.
type SearchResult struct {
	Products []ProductSearchHit `json:"products"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

// ProductDocument is the denormalized product representation pushed into the
// search index on product create/update. Variant sizes and colors are
// flattened into keyword arrays and stock is summed so the index never needs
// nested queries.
type ProductDocument struct {
	ID          string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Brand       string    `json:"brand"`
	Gender      string    `json:"gender,omitempty"`
	Categories  []string  `json:"categories"`
	Price       float64   `json:"price"`
	MRP         float64   `json:"mrp"`
	Discount    int       `json:"discount"`
	Size        []string  `json:"size"`
	Color       []string  `json:"color"`
	Rating      float64   `json:"rating"`
	Stock       int       `json:"stock"`
	Slug        string    `json:"slug"`
	Images      []string  `json:"images"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DocumentFromProduct builds the denormalized index document for a product.
func DocumentFromProduct(p *Product) *ProductDocument {
	return &ProductDocument{
		ID:          p.ID.Hex(),
		Name:        p.Name,
		Description: p.Description,
		Brand:       p.Brand,
		Gender:      p.Gender,
		Categories:  p.Categories,
		Price:       p.Price,
		MRP:         p.MRP,
		Discount:    p.Discount,
		Size:        p.Sizes(),
		Color:       p.Colors(),
		Rating:      p.Rating,
		Stock:       p.TotalStock(),
		Slug:        p.Slug,
		Images:      p.Images,
		Tags:        p.Tags,
		CreatedAt:   p.CreatedAt,
	}
}
