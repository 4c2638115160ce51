package engine

import (
	"context"
	"encoding/json"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/query"
)

// Hits is one page of raw documents returned by the engine. Total counts
// every match, not just the page.
type Hits struct {
	Total   int64
	Sources []json.RawMessage
	TookMs  int64
}

// IndexEngine defines the document index operations the search service
// needs. Index names are the unprefixed kind indices (destinations, flights,
// hotels); implementations apply any deployment prefix themselves.
//
// Transport failures are reported as apperrors.KindEngineUnavailable.
type IndexEngine interface {
	// EnsureIndices creates any missing index. Existing indices are left
	// untouched.
	EnsureIndices(ctx context.Context) error

	// Search executes a multi-field query and returns one page of hits.
	Search(ctx context.Context, index string, q query.Query) (*Hits, error)

	// Prefix executes an autocomplete lookup.
	Prefix(ctx context.Context, index string, p query.Prefix) (*Hits, error)

	// Upsert creates or fully replaces a document by id.
	Upsert(ctx context.Context, index string, doc domain.Document) error

	// BulkUpsert upserts all documents in one round trip. An empty batch
	// makes no engine call.
	BulkUpsert(ctx context.Context, index string, docs []domain.Document) error

	// Delete removes a document by id. A missing document is not an error.
	Delete(ctx context.Context, index, id string) error

	// Ping checks whether the engine is reachable.
	Ping(ctx context.Context) error
}

// Indices lists the index of every kind.
func Indices() []string {
	kinds := domain.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.Index()
	}
	return out
}
