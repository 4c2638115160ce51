package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/engine"
	"github.com/travelbooking/search/internal/query"
	"github.com/travelbooking/search/internal/repository"
	apperrors "github.com/travelbooking/search/pkg/errors"
	"github.com/travelbooking/search/pkg/logger"
	"github.com/travelbooking/search/pkg/pagination"
)

// SearchService implements search with store fallback, autocomplete and the
// index lifecycle.
type SearchService struct {
	engine engine.IndexEngine
	store  repository.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(eng engine.IndexEngine, store repository.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		engine: eng,
		store:  store,
		logger: logger,
	}
}

func (s *SearchService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

// descriptor binds a relational entity E to its search document D.
type descriptor[E any, D domain.Document] struct {
	kind    domain.Kind
	spec    query.Spec
	load    func(ctx context.Context, store repository.Store, term string) ([]E, error)
	project func(E) D
}

var (
	destinations = descriptor[domain.Destination, domain.DestinationDoc]{
		kind: domain.KindDestination,
		spec: query.Destinations,
		load: func(ctx context.Context, store repository.Store, term string) ([]domain.Destination, error) {
			return store.SearchDestinations(ctx, term)
		},
		project: domain.ProjectDestination,
	}
	flights = descriptor[domain.Flight, domain.FlightDoc]{
		kind: domain.KindFlight,
		spec: query.Flights,
		load: func(ctx context.Context, store repository.Store, term string) ([]domain.Flight, error) {
			return store.SearchFlights(ctx, term)
		},
		project: domain.ProjectFlight,
	}
	hotels = descriptor[domain.Hotel, domain.HotelDoc]{
		kind: domain.KindHotel,
		spec: query.Hotels,
		load: func(ctx context.Context, store repository.Store, term string) ([]domain.Hotel, error) {
			return store.SearchHotels(ctx, term)
		},
		project: domain.ProjectHotel,
	}
)

// SearchDestinations searches destinations, falling back to the store on an
// index miss.
func (s *SearchService) SearchDestinations(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult[domain.DestinationDoc], error) {
	return search(ctx, s, destinations, req)
}

// SearchFlights searches flights, falling back to the store on an index miss.
func (s *SearchService) SearchFlights(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult[domain.FlightDoc], error) {
	return search(ctx, s, flights, req)
}

// SearchHotels searches hotels, falling back to the store on an index miss.
func (s *SearchService) SearchHotels(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult[domain.HotelDoc], error) {
	return search(ctx, s, hotels, req)
}

// search queries the index and returns its page when it reports any match.
// On zero matches it reads the store, projects every row, backfills the
// index in one bulk call and pages the projected list in memory. Total is
// then the projected count, even if the backfill failed.
//
// Engine errors are never treated as a miss.
func search[E any, D domain.Document](ctx context.Context, s *SearchService, k descriptor[E, D], req domain.SearchRequest) (*domain.SearchResult[D], error) {
	start := time.Now()
	req = req.Normalize()
	if req.Query == "" {
		return nil, apperrors.InvalidInput("query is required")
	}

	ctx = logger.WithSearchKind(ctx, string(k.kind))
	index := k.kind.Index()

	q, err := query.Build(k.spec, req)
	if err != nil {
		return nil, err
	}

	hits, err := s.engine.Search(ctx, index, q)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("search %s: %w", index, err))
	}

	if hits.Total > 0 {
		docs := make([]D, 0, len(hits.Sources))
		for _, src := range hits.Sources {
			var doc D
			if err := json.Unmarshal(src, &doc); err != nil {
				return nil, apperrors.Internal(fmt.Errorf("decode %s hit: %w", k.kind, err))
			}
			docs = append(docs, doc)
		}

		searchRequests.WithLabelValues(string(k.kind), domain.SourceIndex).Inc()
		s.log(ctx).DebugContext(ctx, "search served from index",
			slog.String("query", req.Query),
			slog.Int64("total", hits.Total),
			slog.Int64("took_ms", hits.TookMs),
		)
		return &domain.SearchResult[D]{
			Results:  docs,
			Total:    hits.Total,
			Page:     req.Page,
			PageSize: req.PageSize,
			Source:   domain.SourceIndex,
			TookMs:   hits.TookMs,
		}, nil
	}

	rows, err := k.load(ctx, s.store, req.Query)
	if err != nil {
		return nil, apperrors.Store(fmt.Errorf("search %s in store: %w", index, err))
	}

	docs := make([]D, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, k.project(row))
	}

	if len(docs) > 0 {
		backfill(ctx, s, k.kind, docs)
	}

	searchRequests.WithLabelValues(string(k.kind), domain.SourceStore).Inc()
	s.log(ctx).InfoContext(ctx, "index miss served from store",
		slog.String("query", req.Query),
		slog.Int("total", len(docs)),
	)

	return &domain.SearchResult[D]{
		Results:  pagination.Window(docs, req.Page, req.PageSize),
		Total:    int64(len(docs)),
		Page:     req.Page,
		PageSize: req.PageSize,
		Source:   domain.SourceStore,
		TookMs:   time.Since(start).Milliseconds(),
	}, nil
}

// backfill writes store-sourced documents to the index. Failures are logged
// and counted, never returned.
func backfill[D domain.Document](ctx context.Context, s *SearchService, kind domain.Kind, docs []D) {
	batch := make([]domain.Document, len(docs))
	for i, d := range docs {
		batch[i] = d
	}

	if err := s.engine.BulkUpsert(ctx, kind.Index(), batch); err != nil {
		backfillFailures.WithLabelValues(string(kind)).Inc()
		s.log(ctx).ErrorContext(ctx, "index backfill failed",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.log(ctx).InfoContext(ctx, "index backfilled", slog.Int("count", len(batch)))
}
