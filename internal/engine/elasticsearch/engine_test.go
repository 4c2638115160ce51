package elasticsearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/query"
	apperrors "github.com/travelbooking/search/pkg/errors"
	"github.com/travelbooking/search/pkg/httpclient"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// fakeCluster stands in for an Elasticsearch node. Handlers are keyed by
// "METHOD /path"; unknown routes answer 404.
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter)
	server   *httptest.Server
}

func newFakeCluster(t *testing.T) *fakeCluster {
	t.Helper()
	c := &fakeCluster{routes: map[string]func(w http.ResponseWriter){}}
	c.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		// Product check issued by the client before its first request.
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"8.19.0"},"tagline":"You Know, for Search"}`)
			return
		}

		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		h := c.routes[r.Method+" "+r.URL.Path]
		c.mu.Unlock()

		if h == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`)
			return
		}
		h(w)
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *fakeCluster) on(route string, status int, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[route] = func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (c *fakeCluster) recorded() []recordedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedRequest(nil), c.requests...)
}

func newTestEngine(t *testing.T, addr, prefix string) *Engine {
	t.Helper()
	e, err := New(Config{Addresses: []string{addr}, IndexPrefix: prefix}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func TestEnsureIndices_CreatesMissing(t *testing.T) {
	c := newFakeCluster(t)
	c.on("HEAD /", http.StatusOK, "")
	c.on("HEAD /travel_flights", http.StatusOK, "")
	c.on("PUT /travel_destinations", http.StatusOK, `{"acknowledged":true}`)
	c.on("PUT /travel_hotels", http.StatusOK, `{"acknowledged":true}`)

	e := newTestEngine(t, c.server.URL, "travel")
	require.NoError(t, e.EnsureIndices(context.Background()))

	var created []string
	var hotelBody []byte
	for _, r := range c.recorded() {
		if r.Method == http.MethodPut {
			created = append(created, r.Path)
			if r.Path == "/travel_hotels" {
				hotelBody = r.Body
			}
		}
	}
	assert.Equal(t, []string{"/travel_destinations", "/travel_hotels"}, created)

	var body map[string]any
	require.NoError(t, json.Unmarshal(hotelBody, &body))
	settings := body["settings"].(map[string]any)
	assert.EqualValues(t, 1, settings["number_of_shards"])
	assert.EqualValues(t, 0, settings["number_of_replicas"])

	filter := settings["analysis"].(map[string]any)["filter"].(map[string]any)["autocomplete_filter"].(map[string]any)
	assert.Equal(t, "edge_ngram", filter["type"])
	assert.EqualValues(t, 2, filter["min_gram"])
	assert.EqualValues(t, 20, filter["max_gram"])

	name := body["mappings"].(map[string]any)["properties"].(map[string]any)["name"].(map[string]any)
	assert.Equal(t, "autocomplete", name["analyzer"])
	assert.Equal(t, "standard", name["search_analyzer"])
}

func TestEnsureIndices_ExistingLeftUntouched(t *testing.T) {
	c := newFakeCluster(t)
	c.on("HEAD /", http.StatusOK, "")
	for _, idx := range []string{"destinations", "flights", "hotels"} {
		c.on("HEAD /"+idx, http.StatusOK, "")
	}

	e := newTestEngine(t, c.server.URL, "")
	require.NoError(t, e.EnsureIndices(context.Background()))

	for _, r := range c.recorded() {
		assert.Equal(t, http.MethodHead, r.Method, r.Path)
	}
}

func TestEnsureIndices_CreateFailureReported(t *testing.T) {
	c := newFakeCluster(t)
	c.on("HEAD /", http.StatusOK, "")
	c.on("PUT /destinations", http.StatusBadRequest,
		`{"error":{"type":"illegal_argument_exception","reason":"bad analyzer"},"status":400}`)

	e := newTestEngine(t, c.server.URL, "")
	err := e.EnsureIndices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad analyzer")
	assert.False(t, apperrors.Is(err, apperrors.KindEngineUnavailable))
}

func TestEnsureIndices_UnreachableFailsFast(t *testing.T) {
	c := newFakeCluster(t)
	addr := c.server.URL
	c.server.Close()

	e := newTestEngine(t, addr, "")
	err := e.EnsureIndices(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.KindEngineUnavailable))
}

func TestBulkUpsert_EmptyMakesNoCalls(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	e := newTestEngine(t, srv.URL, "")
	require.NoError(t, e.BulkUpsert(context.Background(), "hotels", nil))
	assert.Zero(t, calls)
}

func TestBulkUpsert_SendsNDJSON(t *testing.T) {
	c := newFakeCluster(t)
	c.on("POST /hotels/_bulk", http.StatusOK, `{"errors":false,"items":[]}`)

	e := newTestEngine(t, c.server.URL, "")
	docs := []domain.Document{
		domain.HotelDoc{ID: "hotel_1", HotelID: 1, Name: "Grand Plaza"},
		domain.HotelDoc{ID: "hotel_2", HotelID: 2, Name: "Grand Plaza"},
	}
	require.NoError(t, e.BulkUpsert(context.Background(), "hotels", docs))

	reqs := c.recorded()
	require.Len(t, reqs, 1)

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(reqs[0].Body))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_index":"hotels","_id":"hotel_1"}}`, lines[0])
	assert.Contains(t, lines[3], `"id":"hotel_2"`)
}

func TestBulkUpsert_ItemErrorsFailBatch(t *testing.T) {
	c := newFakeCluster(t)
	c.on("POST /hotels/_bulk", http.StatusOK, `{"errors":true,"items":[
		{"index":{"_id":"hotel_1","status":201}},
		{"index":{"_id":"hotel_2","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad rating"}}}
	]}`)

	e := newTestEngine(t, c.server.URL, "")
	err := e.BulkUpsert(context.Background(), "hotels", []domain.Document{
		domain.HotelDoc{ID: "hotel_1"}, domain.HotelDoc{ID: "hotel_2"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestSearch_DecodesHits(t *testing.T) {
	c := newFakeCluster(t)
	c.on("POST /hotels/_search", http.StatusOK, `{
		"took": 4,
		"hits": {"total": {"value": 12}, "hits": [
			{"_source": {"id":"hotel_1","name":"Grand Plaza"}},
			{"_source": {"id":"hotel_2","name":"Plaza Inn"}}
		]}
	}`)

	e := newTestEngine(t, c.server.URL, "")
	q, err := query.Build(query.Hotels, domain.SearchRequest{Query: "plaza", Page: 2, PageSize: 2})
	require.NoError(t, err)

	hits, err := e.Search(context.Background(), "hotels", q)
	require.NoError(t, err)
	assert.EqualValues(t, 12, hits.Total)
	assert.EqualValues(t, 4, hits.TookMs)
	require.Len(t, hits.Sources, 2)
	assert.JSONEq(t, `{"id":"hotel_2","name":"Plaza Inn"}`, string(hits.Sources[1]))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(c.recorded()[0].Body, &sent))
	assert.EqualValues(t, 2, sent["from"])
	assert.EqualValues(t, 2, sent["size"])
}

func TestSearch_ErrorResponse(t *testing.T) {
	c := newFakeCluster(t)
	c.on("POST /hotels/_search", http.StatusBadRequest,
		`{"error":{"type":"search_phase_execution_exception","reason":"all shards failed"},"status":400}`)

	e := newTestEngine(t, c.server.URL, "")
	_, err := e.Search(context.Background(), "hotels", query.Query{Text: "x", Size: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all shards failed")
}

func TestDelete_MissingIgnored(t *testing.T) {
	c := newFakeCluster(t)
	e := newTestEngine(t, c.server.URL, "")
	require.NoError(t, e.Delete(context.Background(), "hotels", "hotel_404"))

	reqs := c.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/hotels/_doc/hotel_404", reqs[0].Path)
}

func TestUpsert_UsesDocumentID(t *testing.T) {
	c := newFakeCluster(t)
	c.on("PUT /destinations/_doc/destination_12", http.StatusCreated, `{"result":"created"}`)

	e := newTestEngine(t, c.server.URL, "")
	require.NoError(t, e.Upsert(context.Background(), "destinations",
		domain.DestinationDoc{ID: "destination_12", Name: "Paris"}))
}

func TestBreakerTransport_OpenCircuitIsUnavailable(t *testing.T) {
	c := newFakeCluster(t)
	addr := c.server.URL
	c.server.Close()

	cfg := httpclient.DefaultCircuitBreakerConfig("es-test")
	cfg.MinRequests = 1
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e, err := New(Config{
		Addresses: []string{addr},
		Transport: httpclient.NewBreakerTransport(nil, cfg, logger),
	}, logger)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := e.Ping(context.Background())
		assert.True(t, apperrors.Is(err, apperrors.KindEngineUnavailable))
	}
	assert.True(t, strings.Contains(e.Ping(context.Background()).Error(), "circuit breaker open"))
}
