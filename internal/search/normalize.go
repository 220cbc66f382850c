package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/stylekart/storefront/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize parses raw query parameters into a backend-agnostic search
// descriptor. It is a pure function: malformed values degrade to their
// defaults instead of producing errors, so a search request is never
// rejected for parameter shape.
//
// Numeric parameters that fail to parse are treated as absent, never as
// zero. Equality filters are passed through verbatim; matching against
// stored data is case sensitive.
func Normalize(params url.Values) *domain.SearchDescriptor {
	d := &domain.SearchDescriptor{
		Text: strings.TrimSpace(params.Get("q")),
		Filters: domain.SearchFilters{
			Category:  params.Get("category"),
			Brand:     params.Get("brand"),
			Gender:    params.Get("gender"),
			Size:      params.Get("size"),
			Color:     params.Get("color"),
			PriceMin:  parseFloat(params.Get("price_min")),
			PriceMax:  parseFloat(params.Get("price_max")),
			RatingMin: parseFloat(params.Get("rating_min")),
		},
		Sort:     params.Get("sort"),
		Page:     parsePositiveInt(params.Get("page"), 1),
		PageSize: parsePositiveInt(params.Get("limit"), defaultPageSize),
	}

	if d.PageSize > maxPageSize {
		d.PageSize = maxPageSize
	}

	if !domain.IsValidSort(d.Sort) {
		if d.Text != "" {
			d.Sort = domain.SortRelevance
		} else {
			d.Sort = domain.SortNewest
		}
	}

	// Relevance scoring is meaningless without a query term.
	if d.Text == "" && d.Sort == domain.SortRelevance {
		d.Sort = domain.SortNewest
	}

	return d
}

// CanonicalValues renders a descriptor back into its canonical wire form.
// Normalizing the result yields an identical descriptor, which makes the
// output usable as a stable cache key.
func CanonicalValues(d *domain.SearchDescriptor) url.Values {
	v := url.Values{}
	setIfPresent(v, "q", d.Text)
	setIfPresent(v, "category", d.Filters.Category)
	setIfPresent(v, "brand", d.Filters.Brand)
	setIfPresent(v, "gender", d.Filters.Gender)
	setIfPresent(v, "size", d.Filters.Size)
	setIfPresent(v, "color", d.Filters.Color)
	setFloat(v, "price_min", d.Filters.PriceMin)
	setFloat(v, "price_max", d.Filters.PriceMax)
	setFloat(v, "rating_min", d.Filters.RatingMin)
	v.Set("sort", d.Sort)
	v.Set("page", strconv.Itoa(d.Page))
	v.Set("limit", strconv.Itoa(d.PageSize))
	return v
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parsePositiveInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func setIfPresent(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setFloat(v url.Values, key string, val *float64) {
	if val != nil {
		v.Set(key, strconv.FormatFloat(*val, 'f', -1, 64))
	}
}
