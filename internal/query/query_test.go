package query

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelbooking/search/internal/domain"
	apperrors "github.com/travelbooking/search/pkg/errors"
)

func TestBuild_Pagination(t *testing.T) {
	tests := []struct {
		page, size, from int
	}{
		{1, 10, 0},
		{3, 10, 20},
		{2, 25, 25},
	}
	for _, tt := range tests {
		q, err := Build(Hotels, domain.SearchRequest{Query: "plaza", Page: tt.page, PageSize: tt.size})
		require.NoError(t, err)
		assert.Equal(t, tt.from, q.From)
		assert.Equal(t, tt.size, q.Size)
	}
}

func TestBuild_PagePastResultWindowCountsOnly(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		from, want int
	}{
		{"last page inside window", 1000, 10, 9990, 10},
		{"first page past window", 1001, 10, 0, 0},
		{"page near max int", math.MaxInt/10 + 2, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Build(Hotels, domain.SearchRequest{Query: "plaza", Page: tt.page, PageSize: tt.size})
			require.NoError(t, err)
			assert.Equal(t, tt.from, q.From)
			assert.Equal(t, tt.want, q.Size)

			body := q.DSL()
			assert.Equal(t, tt.from, body["from"])
			assert.Equal(t, tt.want, body["size"])
		})
	}
}

func TestBuild_FieldWeights(t *testing.T) {
	req := domain.SearchRequest{Query: "x", Page: 1, PageSize: 10}

	q, _ := Build(Destinations, req)
	assert.Equal(t, []string{"name^3", "country^2", "description", "tags"}, q.FieldNames())
	assert.True(t, q.Fuzzy)

	q, _ = Build(Flights, req)
	assert.Equal(t, []string{"airline^2", "departure_destination", "arrival_destination"}, q.FieldNames())
	assert.False(t, q.Fuzzy)

	q, _ = Build(Hotels, req)
	assert.Equal(t, []string{"name^3", "destination^2", "description", "amenities"}, q.FieldNames())
}

func TestBuild_SortCaseInsensitive(t *testing.T) {
	for _, name := range []string{"PricePerNight", "price_per_night", "PRICEPERNIGHT"} {
		q, err := Build(Hotels, domain.SearchRequest{Query: "x", Page: 1, PageSize: 10, SortBy: name, SortDescending: true})
		require.NoError(t, err, name)
		assert.Equal(t, []Sort{{Field: "price_per_night", Descending: true}}, q.Sort)
	}
}

func TestBuild_UnknownSortRejected(t *testing.T) {
	_, err := Build(Hotels, domain.SearchRequest{Query: "x", Page: 1, PageSize: 10, SortBy: "stars"})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput))
}

func TestBuild_Filters(t *testing.T) {
	q, err := Build(Destinations, domain.SearchRequest{
		Query: "x", Page: 1, PageSize: 10,
		Filters: []string{"Country:France", "tags: beach"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Term{{"country", "France"}, {"tags", "beach"}}, q.Filters)

	for _, bad := range []string{"country", "country:", "continent:Europe"} {
		_, err := Build(Destinations, domain.SearchRequest{Query: "x", Page: 1, PageSize: 10, Filters: []string{bad}})
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput), bad)
	}
}

func TestQuery_DSL(t *testing.T) {
	q, err := Build(Hotels, domain.SearchRequest{
		Query: "plaza", Page: 2, PageSize: 5, Filters: []string{"amenities:Pool"},
	})
	require.NoError(t, err)

	body, err := json.Marshal(q.DSL())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": {"bool": {
			"must": [{"multi_match": {
				"query": "plaza",
				"fields": ["name^3", "destination^2", "description", "amenities"],
				"type": "best_fields",
				"fuzziness": "AUTO",
				"prefix_length": 1
			}}],
			"filter": [{"term": {"amenities": "Pool"}}]
		}},
		"from": 5,
		"size": 5,
		"sort": [{"_score": "desc"}],
		"track_total_hits": true
	}`, string(body))
}

func TestQuery_DSL_SortAndNoFuzziness(t *testing.T) {
	q, err := Build(Flights, domain.SearchRequest{Query: "klm", Page: 1, PageSize: 10, SortBy: "price"})
	require.NoError(t, err)

	dsl := q.DSL()
	mm := dsl["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.NotContains(t, mm, "fuzziness")
	assert.Equal(t, []interface{}{map[string]interface{}{"price": map[string]interface{}{"order": "asc"}}}, dsl["sort"])
}

func TestPrefix_DSL(t *testing.T) {
	body, err := json.Marshal(Prefix{Field: "name", Text: "ar", Analyzer: "autocomplete", Size: 3}.DSL())
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"match":{"name":{"query":"ar","analyzer":"autocomplete"}}},"size":3}`, string(body))
}
