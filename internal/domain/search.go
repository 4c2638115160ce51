package domain

import (
	"strings"

	"github.com/travelbooking/search/pkg/pagination"
)

// Result sources reported in SearchResult.Source.
const (
	SourceIndex = "index"
	SourceStore = "store"
)

// Suggestion types.
const (
	SuggestionDestination = "destination"
	SuggestionHotel       = "hotel"
)

// SearchRequest holds all parameters for a search call. Filters are
// field:value terms matched exactly against keyword fields.
type SearchRequest struct {
	Query          string   `json:"query"`
	Page           int      `json:"page"`
	PageSize       int      `json:"page_size"`
	Filters        []string `json:"filters,omitempty"`
	SortBy         string   `json:"sort_by,omitempty"`
	SortDescending bool     `json:"sort_descending"`
}

// Normalize trims the query and replaces non-positive paging values with
// the defaults.
func (r SearchRequest) Normalize() SearchRequest {
	r.Query = strings.TrimSpace(r.Query)
	p := pagination.Normalize(r.Page, r.PageSize)
	r.Page, r.PageSize = p.Page, p.PageSize
	return r
}

// Offset returns the number of results skipped before the requested page.
func (r SearchRequest) Offset() int {
	return pagination.Offset(r.Page, r.PageSize)
}

// SearchResult is one page of documents plus the count of all matches.
type SearchResult[T any] struct {
	Results  []T    `json:"results"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Source   string `json:"source,omitempty"`
	TookMs   int64  `json:"took_ms"`
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Text string `json:"text"`
	Type string `json:"type"`
	ID   string `json:"id"`
}
