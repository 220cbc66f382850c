// Package search implements the dual-backend product search layer: a single
// provider abstraction answered either by Elasticsearch or, when the engine
// is unreachable, by MongoDB directly. Which backend serves a process is
// decided once at startup by the availability probe and never changes until
// restart.
package search

import (
	"context"

	"github.com/stylekart/storefront/internal/domain"
)

// Provider answers relevance-ranked, filterable, paginated product search
// and prefix autocomplete. Both implementations translate the same
// SearchDescriptor and agree on filter semantics: AND across filter
// categories, OR only inside the multi-field text match.
type Provider interface {
	Search(ctx context.Context, d *domain.SearchDescriptor) (*domain.SearchResult, error)
	Suggest(ctx context.Context, prefix string) ([]string, error)
}

// Indexer pushes denormalized product documents into the search index on the
// write path. Sync is best-effort: callers log failures and never propagate
// them to the product mutation.
type Indexer interface {
	Index(ctx context.Context, doc *domain.ProductDocument) error
	Delete(ctx context.Context, id string) error
}

// NoopIndexer is installed when the search engine is unreachable or disabled
// so the write path never branches on availability.
type NoopIndexer struct{}

func (NoopIndexer) Index(context.Context, *domain.ProductDocument) error { return nil }

func (NoopIndexer) Delete(context.Context, string) error { return nil }

// Availability records which optional backends were reachable at process
// start. It is written once during startup and only read afterwards, so no
// locking is needed. A backend that was down at boot stays down until the
// process restarts.
type Availability struct {
	SearchEngine bool
	Cache        bool
}

// SuggestMinPrefix is the minimum prefix length for autocomplete; shorter
// prefixes return an empty list without touching any backend.
const SuggestMinPrefix = 2

// SuggestLimit caps the number of autocomplete suggestions on both backends.
const SuggestLimit = 10
