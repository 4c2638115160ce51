package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/service"
	apperrors "github.com/travelbooking/search/pkg/errors"
	pkgkafka "github.com/travelbooking/search/pkg/kafka"
)

// Entity change actions published by the booking services.
const (
	ActionUpserted = "upserted"
	ActionDeleted  = "deleted"
)

// EntityEventData is the payload of every entity change event.
type EntityEventData struct {
	ID int `json:"id"`
}

// Topics returns every topic the search service subscribes to, e.g.
// travel.hotel.upserted.
func Topics() []string {
	var topics []string
	for _, kind := range domain.Kinds() {
		topics = append(topics,
			pkgkafka.Topic(string(kind), ActionUpserted),
			pkgkafka.Topic(string(kind), ActionDeleted),
		)
	}
	return topics
}

type route struct {
	kind   domain.Kind
	action string
}

// Consumer keeps the indices in step with relational changes.
type Consumer struct {
	searchService *service.SearchService
	routes        map[string]route
	logger        *slog.Logger
}

// NewConsumer creates a new event consumer for the search service.
func NewConsumer(searchService *service.SearchService, logger *slog.Logger) *Consumer {
	routes := make(map[string]route)
	for _, kind := range domain.Kinds() {
		routes[pkgkafka.Topic(string(kind), ActionUpserted)] = route{kind: kind, action: ActionUpserted}
		routes[pkgkafka.Topic(string(kind), ActionDeleted)] = route{kind: kind, action: ActionDeleted}
	}
	return &Consumer{
		searchService: searchService,
		routes:        routes,
		logger:        logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	rt, ok := c.routes[event.EventType]
	if !ok {
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	id, err := entityID(event)
	if err != nil {
		return err
	}

	switch rt.action {
	case ActionUpserted:
		return c.handleUpserted(ctx, rt.kind, id)
	default:
		return c.handleDeleted(ctx, rt.kind, id)
	}
}

// handleUpserted reloads the row and reindexes it. A row that is gone by
// the time the event arrives is removed from the index instead.
func (c *Consumer) handleUpserted(ctx context.Context, kind domain.Kind, id int) error {
	err := c.searchService.SyncOne(ctx, kind, id)
	if apperrors.Is(err, apperrors.KindNotFound) {
		c.logger.WarnContext(ctx, "upserted row no longer exists, removing from index",
			slog.String("kind", string(kind)),
			slog.Int("id", id),
		)
		return c.handleDeleted(ctx, kind, id)
	}
	if err != nil {
		return fmt.Errorf("sync %s %d from event: %w", kind, id, err)
	}
	return nil
}

func (c *Consumer) handleDeleted(ctx context.Context, kind domain.Kind, id int) error {
	if err := c.searchService.DeleteOne(ctx, kind, kind.DocumentID(id)); err != nil {
		return fmt.Errorf("delete %s %d from event: %w", kind, id, err)
	}
	return nil
}

// entityID reads the id from the payload, falling back to the aggregate id.
func entityID(event *pkgkafka.Event) (int, error) {
	var data EntityEventData
	if len(event.Data) > 0 {
		if err := event.UnmarshalData(&data); err != nil {
			return 0, err
		}
	}
	if data.ID > 0 {
		return data.ID, nil
	}

	id, err := strconv.Atoi(event.AggregateID)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s event %s carries no entity id", event.EventType, event.EventID)
	}
	return id, nil
}
