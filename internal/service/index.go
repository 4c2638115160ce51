package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/travelbooking/search/internal/domain"
	apperrors "github.com/travelbooking/search/pkg/errors"
)

// EnsureIndices provisions any missing index and reports whether all of them
// are usable. Failures are logged, not returned.
func (s *SearchService) EnsureIndices(ctx context.Context) bool {
	if err := s.engine.EnsureIndices(ctx); err != nil {
		s.log(ctx).ErrorContext(ctx, "index provisioning failed",
			slog.String("error_kind", apperrors.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.log(ctx).InfoContext(ctx, "search indices ready")
	return true
}

func checkDocument(kind domain.Kind, doc domain.Document) error {
	id := doc.DocumentID()
	if !strings.HasPrefix(id, string(kind)+"_") {
		return apperrors.InvalidInput(fmt.Sprintf("document id %q does not belong to %s", id, kind.Index()))
	}
	return nil
}

// IndexOne upserts a single document.
func (s *SearchService) IndexOne(ctx context.Context, kind domain.Kind, doc domain.Document) error {
	if err := checkDocument(kind, doc); err != nil {
		return err
	}
	if err := s.engine.Upsert(ctx, kind.Index(), doc); err != nil {
		return fmt.Errorf("index %s: %w", doc.DocumentID(), err)
	}

	s.log(ctx).InfoContext(ctx, "document indexed",
		slog.String("kind", string(kind)),
		slog.String("id", doc.DocumentID()),
	)
	return nil
}

// BulkIndex upserts documents in one engine round trip. The batch succeeds
// or fails as a whole.
func (s *SearchService) BulkIndex(ctx context.Context, kind domain.Kind, docs []domain.Document) error {
	for _, doc := range docs {
		if err := checkDocument(kind, doc); err != nil {
			return err
		}
	}
	if err := s.engine.BulkUpsert(ctx, kind.Index(), docs); err != nil {
		return fmt.Errorf("bulk index %s: %w", kind.Index(), err)
	}

	s.log(ctx).InfoContext(ctx, "bulk index completed",
		slog.String("kind", string(kind)),
		slog.Int("count", len(docs)),
	)
	return nil
}

// DeleteOne removes a document by id. Deleting an absent document succeeds.
func (s *SearchService) DeleteOne(ctx context.Context, kind domain.Kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("id is required")
	}
	if err := s.engine.Delete(ctx, kind.Index(), id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	s.log(ctx).InfoContext(ctx, "document deleted from index",
		slog.String("kind", string(kind)),
		slog.String("id", id),
	)
	return nil
}

// SyncOne reloads a relational row by id and upserts its projection.
func (s *SearchService) SyncOne(ctx context.Context, kind domain.Kind, sourceID int) error {
	var doc domain.Document
	switch kind {
	case domain.KindDestination:
		d, err := s.store.GetDestination(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("sync destination %d: %w", sourceID, err)
		}
		doc = domain.ProjectDestination(*d)
	case domain.KindFlight:
		f, err := s.store.GetFlight(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("sync flight %d: %w", sourceID, err)
		}
		doc = domain.ProjectFlight(*f)
	case domain.KindHotel:
		h, err := s.store.GetHotel(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("sync hotel %d: %w", sourceID, err)
		}
		doc = domain.ProjectHotel(*h)
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown kind %q", kind))
	}
	return s.IndexOne(ctx, kind, doc)
}
