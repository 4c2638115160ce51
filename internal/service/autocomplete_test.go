package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/engine/memory"
	apperrors "github.com/travelbooking/search/pkg/errors"
)

func seedAutocomplete(t *testing.T, eng *memory.Engine) {
	t.Helper()
	ctx := context.Background()

	dests := []domain.Document{
		domain.ProjectDestination(domain.Destination{ID: 1, Name: "Arles", Country: "France"}),
		domain.ProjectDestination(domain.Destination{ID: 2, Name: "Arusha", Country: "Tanzania"}),
		domain.ProjectDestination(domain.Destination{ID: 3, Name: "Arequipa", Country: "Peru"}),
		domain.ProjectDestination(domain.Destination{ID: 4, Name: "Oslo", Country: "Norway"}),
	}
	require.NoError(t, eng.BulkUpsert(ctx, "destinations", dests))

	hotels := []domain.Document{
		domain.ProjectHotel(domain.Hotel{ID: 1, Name: "Arena Suites", Destination: &domain.Destination{Name: "Verona"}}),
		domain.ProjectHotel(domain.Hotel{ID: 2, Name: "Ariston", Destination: &domain.Destination{Name: "Sanremo"}}),
		domain.ProjectHotel(domain.Hotel{ID: 3, Name: "Art Hotel", Destination: &domain.Destination{Name: "Prague"}}),
	}
	require.NoError(t, eng.BulkUpsert(ctx, "hotels", hotels))
}

func TestAutocomplete_RejectsShortPrefix(t *testing.T) {
	svc, eng := newTestService(&fakeStore{})

	for _, p := range []string{"", "a", "  a  "} {
		_, err := svc.Autocomplete(context.Background(), p, 5)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidInput), "prefix %q", p)
	}
	assert.Zero(t, eng.Calls(memory.OpPrefix))
}

func TestAutocomplete_MergesSortsAndTruncates(t *testing.T) {
	svc, eng := newTestService(&fakeStore{})
	seedAutocomplete(t, eng)

	got, err := svc.Autocomplete(context.Background(), "ar", 0)
	require.NoError(t, err)

	texts := make([]string, len(got))
	for i, s := range got {
		texts[i] = s.Text
	}
	assert.Equal(t, []string{
		"Arena Suites, Verona",
		"Arequipa, Peru",
		"Ariston, Sanremo",
		"Arles, France",
		"Art Hotel, Prague",
	}, texts)
	assert.Equal(t, domain.Suggestion{Text: "Arena Suites, Verona", Type: "hotel", ID: "hotel_1"}, got[0])
	assert.Equal(t, "destination", got[1].Type)
	assert.Equal(t, 2, eng.Calls(memory.OpPrefix))
}

func TestAutocomplete_CustomLimit(t *testing.T) {
	svc, eng := newTestService(&fakeStore{})
	seedAutocomplete(t, eng)

	got, err := svc.Autocomplete(context.Background(), "Ar", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAutocomplete_NoStoreFallback(t *testing.T) {
	store := &fakeStore{hotels: grandPlazas(3)}
	svc, _ := newTestService(store)

	got, err := svc.Autocomplete(context.Background(), "Grand", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, store.Calls())
}

func TestAutocomplete_EngineError(t *testing.T) {
	svc, eng := newTestService(&fakeStore{})
	eng.SetError(memory.OpPrefix, errors.New("timeout"))

	_, err := svc.Autocomplete(context.Background(), "ar", 5)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}
