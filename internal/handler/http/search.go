package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/service"
	apperrors "github.com/travelbooking/search/pkg/errors"
	"github.com/travelbooking/search/pkg/httputil"
	"github.com/travelbooking/search/pkg/pagination"
	"github.com/travelbooking/search/pkg/validator"
)

const (
	maxAutocomplete = 20
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// Bulk bodies are bare JSON arrays; the batch types only carry validation.
type destinationBatch struct {
	Documents []domain.DestinationDoc `json:"documents" validate:"required,min=1,max=500,dive"`
}

type flightBatch struct {
	Documents []domain.FlightDoc `json:"documents" validate:"required,min=1,max=500,dive"`
}

type hotelBatch struct {
	Documents []domain.HotelDoc `json:"documents" validate:"required,min=1,max=500,dive"`
}

// --- Search ---

// SearchDestinations handles GET /api/v1/search/destinations
func (h *SearchHandler) SearchDestinations(w http.ResponseWriter, r *http.Request) {
	serveSearch(h, w, r, h.service.SearchDestinations)
}

// SearchFlights handles GET /api/v1/search/flights
func (h *SearchHandler) SearchFlights(w http.ResponseWriter, r *http.Request) {
	serveSearch(h, w, r, h.service.SearchFlights)
}

// SearchHotels handles GET /api/v1/search/hotels
func (h *SearchHandler) SearchHotels(w http.ResponseWriter, r *http.Request) {
	serveSearch(h, w, r, h.service.SearchHotels)
}

func serveSearch[T any](
	h *SearchHandler,
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, domain.SearchRequest) (*domain.SearchResult[T], error),
) {
	result, err := run(r.Context(), searchRequestFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// searchRequestFrom reads the query string. Filters may be repeated or
// comma separated: filters=country:Italy&filters=tags:beach,city.
func searchRequestFrom(r *http.Request) domain.SearchRequest {
	q := r.URL.Query()
	p := pagination.FromRequest(r)

	var filters []string
	for _, raw := range q["filters"] {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				filters = append(filters, f)
			}
		}
	}

	return domain.SearchRequest{
		Query:          q.Get("query"),
		Page:           p.Page,
		PageSize:       p.PageSize,
		Filters:        filters,
		SortBy:         strings.TrimSpace(q.Get("sortBy")),
		SortDescending: httputil.QueryBool(r, "sortDescending", false),
	}
}

// Autocomplete handles GET /api/v1/search/autocomplete
func (h *SearchHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryInt(r, "limit", 0)
	if limit > maxAutocomplete {
		limit = maxAutocomplete
	}

	suggestions, err := h.service.Autocomplete(r.Context(), r.URL.Query().Get("query"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: suggestions})
}

// --- Index lifecycle ---

// Initialize handles POST /api/v1/search/initialize
func (h *SearchHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	if !h.service.EnsureIndices(r.Context()) {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    apperrors.KindEngineUnavailable.String(),
				Message: "search indices could not be initialized",
			},
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "initialized"}})
}

// IndexDocument handles POST /api/v1/search/index/{kind}
func (h *SearchHandler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var (
		doc domain.Document
		err error
	)
	switch kind {
	case domain.KindDestination:
		doc, err = decodeOne[domain.DestinationDoc](r)
	case domain.KindFlight:
		doc, err = decodeOne[domain.FlightDoc](r)
	case domain.KindHotel:
		doc, err = decodeOne[domain.HotelDoc](r)
	}
	if err != nil {
		h.writeBindError(w, r, err)
		return
	}

	if err := h.service.IndexOne(r.Context(), kind, doc); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": doc.DocumentID(), "status": "indexed"}})
}

// BulkIndex handles POST /api/v1/search/bulk/{kind}. The body is a JSON
// array of documents of that kind.
func (h *SearchHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var (
		docs []domain.Document
		err  error
	)
	switch kind {
	case domain.KindDestination:
		var b destinationBatch
		docs, err = decodeBulk(r, &b.Documents, &b)
	case domain.KindFlight:
		var b flightBatch
		docs, err = decodeBulk(r, &b.Documents, &b)
	case domain.KindHotel:
		var b hotelBatch
		docs, err = decodeBulk(r, &b.Documents, &b)
	}
	if err != nil {
		h.writeBindError(w, r, err)
		return
	}

	if err := h.service.BulkIndex(r.Context(), kind, docs); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"indexed": len(docs), "status": "ok"}})
}

// DeleteDocument handles DELETE /api/v1/search/{kind}/{id}
func (h *SearchHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kindParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteOne(r.Context(), kind, id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

// --- helpers ---

func (h *SearchHandler) kindParam(w http.ResponseWriter, r *http.Request) (domain.Kind, bool) {
	raw := chi.URLParam(r, "kind")
	kind, ok := domain.ParseKind(raw)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("unknown document kind: "+raw), h.logger)
		return "", false
	}
	return kind, true
}

func (h *SearchHandler) writeBindError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, err)
		return
	}
	httputil.WriteError(w, r, err, h.logger)
}

func decodeOne[D domain.Document](r *http.Request) (domain.Document, error) {
	var doc D
	if err := validator.DecodeAndValidate(r, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// decodeBulk decodes the array into dst and validates batch, which must
// hold dst as its Documents field.
func decodeBulk[D domain.Document](r *http.Request, dst *[]D, batch any) ([]domain.Document, error) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return nil, apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	if err := validator.Validate(batch); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, len(*dst))
	for i, d := range *dst {
		docs[i] = d
	}
	return docs, nil
}
