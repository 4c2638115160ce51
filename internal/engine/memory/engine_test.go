package memory

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/query"
)

func hotel(id int, name, destination string, price float64) domain.HotelDoc {
	return domain.ProjectHotel(domain.Hotel{
		ID: id, Name: name, PricePerNight: price,
		Destination: &domain.Destination{Name: destination},
	})
}

func seed(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.BulkUpsert(context.Background(), "hotels", []domain.Document{
		hotel(1, "Grand Plaza", "Rome", 300),
		hotel(2, "Plaza Inn", "Paris", 120),
		hotel(3, "Sea View", "Nice", 90),
		hotel(4, "Arena Suites", "Verona", 150),
	}))
}

func names(t *testing.T, hits []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(hits))
	for _, raw := range hits {
		var doc domain.HotelDoc
		require.NoError(t, json.Unmarshal(raw, &doc))
		out = append(out, doc.Name)
	}
	return out
}

func TestEnsureIndices(t *testing.T) {
	e := New()
	require.NoError(t, e.EnsureIndices(context.Background()))
	for _, idx := range []string{"destinations", "flights", "hotels"} {
		assert.True(t, e.HasIndex(idx))
	}
}

func TestSearch_WeightsAndPagination(t *testing.T) {
	e := New()
	seed(t, e)

	q, err := query.Build(query.Hotels, domain.SearchRequest{Query: "PLAZA", Page: 1, PageSize: 1})
	require.NoError(t, err)

	hits, err := e.Search(context.Background(), "hotels", q)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Total)
	assert.Equal(t, []string{"Grand Plaza"}, names(t, hits.Sources))

	q.From = 1
	hits, err = e.Search(context.Background(), "hotels", q)
	require.NoError(t, err)
	assert.Equal(t, []string{"Plaza Inn"}, names(t, hits.Sources))
}

func TestSearch_OutOfRangePageReturnsTotalOnly(t *testing.T) {
	e := New()
	seed(t, e)

	q, err := query.Build(query.Hotels, domain.SearchRequest{Query: "plaza", Page: 1, PageSize: 10})
	require.NoError(t, err)

	for _, tc := range []struct{ from, size int }{{-5, 10}, {2, 10}, {0, 0}, {1, math.MaxInt}} {
		q.From, q.Size = tc.from, tc.size
		hits, err := e.Search(context.Background(), "hotels", q)
		require.NoError(t, err)
		assert.EqualValues(t, 2, hits.Total)
		if tc.from == 1 {
			assert.Equal(t, []string{"Plaza Inn"}, names(t, hits.Sources))
			continue
		}
		assert.Empty(t, hits.Sources, "from=%d size=%d", tc.from, tc.size)
	}
}

func TestSearch_SortAndFilter(t *testing.T) {
	e := New()
	seed(t, e)

	q, err := query.Build(query.Hotels, domain.SearchRequest{
		Query: "a", Page: 1, PageSize: 10, SortBy: "pricePerNight", SortDescending: true,
	})
	require.NoError(t, err)
	hits, err := e.Search(context.Background(), "hotels", q)
	require.NoError(t, err)
	// Default amenities contain "Parking", so every hotel matches.
	assert.Equal(t, []string{"Grand Plaza", "Arena Suites", "Plaza Inn", "Sea View"}, names(t, hits.Sources))

	q, err = query.Build(query.Hotels, domain.SearchRequest{
		Query: "plaza", Page: 1, PageSize: 10, Filters: []string{"destination:Paris"},
	})
	require.NoError(t, err)
	hits, err = e.Search(context.Background(), "hotels", q)
	require.NoError(t, err)
	assert.Equal(t, []string{"Plaza Inn"}, names(t, hits.Sources))
}

func TestPrefix(t *testing.T) {
	e := New()
	seed(t, e)

	hits, err := e.Prefix(context.Background(), "hotels", query.Prefix{Field: "name", Text: "ar", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Arena Suites"}, names(t, hits.Sources))

	hits, err = e.Prefix(context.Background(), "hotels", query.Prefix{Field: "name", Text: "pl", Size: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Total)
	assert.Len(t, hits.Sources, 1)
}

func TestBulkUpsert_EmptyAndFailure(t *testing.T) {
	e := New()
	require.NoError(t, e.BulkUpsert(context.Background(), "hotels", nil))
	assert.Zero(t, e.Calls(OpBulk))

	e.SetError(OpBulk, errors.New("rejected"))
	err := e.BulkUpsert(context.Background(), "hotels", []domain.Document{hotel(1, "A", "", 1)})
	assert.EqualError(t, err, "rejected")
	assert.Zero(t, e.Count("hotels"))
}

func TestUpsertAndDelete(t *testing.T) {
	e := New()
	ctx := context.Background()

	require.NoError(t, e.Upsert(ctx, "hotels", hotel(1, "Old", "", 1)))
	require.NoError(t, e.Upsert(ctx, "hotels", hotel(1, "New", "", 1)))
	assert.Equal(t, 1, e.Count("hotels"))

	raw, ok := e.Get("hotels", "hotel_1")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"name":"New"`)

	require.NoError(t, e.Delete(ctx, "hotels", "hotel_1"))
	require.NoError(t, e.Delete(ctx, "hotels", "hotel_1"))
	assert.Zero(t, e.Count("hotels"))
}
