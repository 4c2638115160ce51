package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/engine/memory"
	"github.com/travelbooking/search/internal/service"
	apperrors "github.com/travelbooking/search/pkg/errors"
	pkgkafka "github.com/travelbooking/search/pkg/kafka"
)

type rowStore struct {
	destinations map[int]domain.Destination
	hotels       map[int]domain.Hotel
	err          error
}

func (s *rowStore) SearchDestinations(context.Context, string) ([]domain.Destination, error) {
	return nil, nil
}

func (s *rowStore) SearchFlights(context.Context, string) ([]domain.Flight, error) {
	return nil, nil
}

func (s *rowStore) SearchHotels(context.Context, string) ([]domain.Hotel, error) {
	return nil, nil
}

func (s *rowStore) GetDestination(_ context.Context, id int) (*domain.Destination, error) {
	if s.err != nil {
		return nil, s.err
	}
	d, ok := s.destinations[id]
	if !ok {
		return nil, apperrors.NotFound("destination", strconv.Itoa(id))
	}
	return &d, nil
}

func (s *rowStore) GetFlight(_ context.Context, id int) (*domain.Flight, error) {
	return nil, apperrors.NotFound("flight", strconv.Itoa(id))
}

func (s *rowStore) GetHotel(_ context.Context, id int) (*domain.Hotel, error) {
	if s.err != nil {
		return nil, s.err
	}
	h, ok := s.hotels[id]
	if !ok {
		return nil, apperrors.NotFound("hotel", strconv.Itoa(id))
	}
	return &h, nil
}

func newTestConsumer(store *rowStore) (*Consumer, *memory.Engine) {
	eng := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewSearchService(eng, store, logger)
	return NewConsumer(svc, logger), eng
}

func newEvent(t *testing.T, kind domain.Kind, action string, id int) *pkgkafka.Event {
	t.Helper()
	evt, err := pkgkafka.NewEvent(pkgkafka.Topic(string(kind), action), strconv.Itoa(id), string(kind), "inventory", EntityEventData{ID: id})
	require.NoError(t, err)
	return evt
}

func TestTopics(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"travel.destination.upserted", "travel.destination.deleted",
		"travel.flight.upserted", "travel.flight.deleted",
		"travel.hotel.upserted", "travel.hotel.deleted",
	}, Topics())
}

func TestHandle_UpsertedIndexesProjection(t *testing.T) {
	rome := &domain.Destination{ID: 1, Name: "Rome", Country: "Italy", Description: "Eternal city"}
	store := &rowStore{hotels: map[int]domain.Hotel{
		3: {ID: 3, Name: "Grand Plaza", DestinationID: 1, PricePerNight: 150, Amenities: "Pool, Spa", Destination: rome},
	}}
	c, eng := newTestConsumer(store)

	require.NoError(t, c.Handle(context.Background(), newEvent(t, domain.KindHotel, ActionUpserted, 3)))

	raw, ok := eng.Get("hotels", "hotel_3")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"name":"Grand Plaza"`)
	assert.Contains(t, string(raw), `"destination":"Rome"`)
}

func TestHandle_DeletedRemovesDocument(t *testing.T) {
	store := &rowStore{destinations: map[int]domain.Destination{
		2: {ID: 2, Name: "Paris", Country: "France"},
	}}
	c, eng := newTestConsumer(store)
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, newEvent(t, domain.KindDestination, ActionUpserted, 2)))
	require.Equal(t, 1, eng.Count("destinations"))

	require.NoError(t, c.Handle(ctx, newEvent(t, domain.KindDestination, ActionDeleted, 2)))
	assert.Equal(t, 0, eng.Count("destinations"))
}

func TestHandle_UpsertedMissingRowDeletes(t *testing.T) {
	c, eng := newTestConsumer(&rowStore{})

	require.NoError(t, c.Handle(context.Background(), newEvent(t, domain.KindHotel, ActionUpserted, 9)))
	assert.Equal(t, 1, eng.Calls(memory.OpDelete))
	assert.Zero(t, eng.Calls(memory.OpUpsert))
}

func TestHandle_StoreErrorIsReturned(t *testing.T) {
	c, _ := newTestConsumer(&rowStore{err: errors.New("connection reset")})

	err := c.Handle(context.Background(), newEvent(t, domain.KindHotel, ActionUpserted, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestHandle_AggregateIDFallback(t *testing.T) {
	store := &rowStore{destinations: map[int]domain.Destination{
		4: {ID: 4, Name: "Oslo", Country: "Norway"},
	}}
	c, eng := newTestConsumer(store)

	evt := newEvent(t, domain.KindDestination, ActionUpserted, 4)
	evt.Data = []byte(`{}`)

	require.NoError(t, c.Handle(context.Background(), evt))
	_, ok := eng.Get("destinations", "destination_4")
	assert.True(t, ok)
}

func TestHandle_MissingIDFails(t *testing.T) {
	c, eng := newTestConsumer(&rowStore{})

	evt := newEvent(t, domain.KindHotel, ActionDeleted, 1)
	evt.Data = []byte(`{}`)
	evt.AggregateID = ""

	assert.Error(t, c.Handle(context.Background(), evt))
	assert.Zero(t, eng.Calls(memory.OpDelete))
}

func TestHandle_UnknownEventTypeIgnored(t *testing.T) {
	c, eng := newTestConsumer(&rowStore{})

	evt := newEvent(t, domain.KindHotel, ActionDeleted, 1)
	evt.EventType = "travel.car.rented"

	assert.NoError(t, c.Handle(context.Background(), evt))
	assert.Zero(t, eng.Calls(memory.OpDelete))
}

func TestHandle_IdempotentWrapperSkipsReplays(t *testing.T) {
	store := &rowStore{destinations: map[int]domain.Destination{
		1: {ID: 1, Name: "Rome", Country: "Italy"},
	}}
	c, eng := newTestConsumer(store)
	handler := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Hour), c.Handle, slog.New(slog.NewTextHandler(io.Discard, nil)))

	evt := newEvent(t, domain.KindDestination, ActionUpserted, 1)
	require.NoError(t, handler(context.Background(), evt))
	require.NoError(t, handler(context.Background(), evt))

	assert.Equal(t, 1, eng.Calls(memory.OpUpsert))
}
