package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/engine"
	"github.com/travelbooking/search/internal/query"
	apperrors "github.com/travelbooking/search/pkg/errors"
)

// Config holds the Elasticsearch connection settings.
type Config struct {
	Addresses   []string
	Username    string
	Password    string
	IndexPrefix string
	MinGram     int
	MaxGram     int

	// Transport replaces the default HTTP transport, e.g. with a circuit
	// breaker.
	Transport http.RoundTripper
}

// Engine is an Elasticsearch-backed implementation of engine.IndexEngine.
type Engine struct {
	client  *elasticsearch.Client
	prefix  string
	minGram int
	maxGram int
	logger  *slog.Logger
}

var _ engine.IndexEngine = (*Engine)(nil)

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates an engine client. It does not contact the cluster; call
// EnsureIndices or Ping for that.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.MinGram <= 0 {
		cfg.MinGram = DefaultMinGram
	}
	if cfg.MaxGram < cfg.MinGram {
		cfg.MaxGram = DefaultMaxGram
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return &Engine{
		client:  client,
		prefix:  cfg.IndexPrefix,
		minGram: cfg.MinGram,
		maxGram: cfg.MaxGram,
		logger:  logger,
	}, nil
}

// IndexName returns the physical index name for a logical index.
func (e *Engine) IndexName(index string) string {
	if e.prefix == "" {
		return index
	}
	return e.prefix + "_" + index
}

func unavailable(op string, err error) error {
	return apperrors.EngineUnavailable(fmt.Errorf("elasticsearch %s: %w", op, err))
}

// responseError decodes an error response. 503 means the cluster itself
// cannot serve the request.
func responseError(op string, res *esapi.Response) error {
	var err error
	var errResp esErrorResponse
	if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
		err = fmt.Errorf("elasticsearch %s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	} else {
		err = fmt.Errorf("elasticsearch %s: unexpected status %s", op, res.Status())
	}
	if res.StatusCode == http.StatusServiceUnavailable {
		return apperrors.EngineUnavailable(err)
	}
	return err
}

func closeBody(res *esapi.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return unavailable("ping", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return apperrors.EngineUnavailable(fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status()))
	}
	return nil
}

// EnsureIndices pings the cluster and creates every missing index. The
// first failure stops provisioning; indices created before it remain.
func (e *Engine) EnsureIndices(ctx context.Context) error {
	if err := e.Ping(ctx); err != nil {
		return err
	}
	for _, kind := range domain.Kinds() {
		if err := e.ensureIndex(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ensureIndex(ctx context.Context, kind domain.Kind) error {
	name := e.IndexName(kind.Index())

	res, err := e.client.Indices.Exists([]string{name}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return unavailable("check index exists", err)
	}
	closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		e.logger.InfoContext(ctx, "elasticsearch index already exists", slog.String("index", name))
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("elasticsearch check index %s: unexpected status %s", name, res.Status())
	}

	body, err := json.Marshal(indexBody(kind, e.minGram, e.maxGram))
	if err != nil {
		return fmt.Errorf("elasticsearch create index %s: marshal body: %w", name, err)
	}

	res, err = e.client.Indices.Create(
		name,
		e.client.Indices.Create.WithBody(bytes.NewReader(body)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return unavailable("create index "+name, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("create index "+name, res)
	}

	e.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", name))
	return nil
}

// DeleteIndices removes every kind index. It is intended for tests and
// administrative resets only. Missing indices are ignored.
func (e *Engine) DeleteIndices(ctx context.Context) error {
	names := make([]string, 0, len(domain.Kinds()))
	for _, index := range engine.Indices() {
		names = append(names, e.IndexName(index))
	}

	res, err := e.client.Indices.Delete(
		names,
		e.client.Indices.Delete.WithIgnoreUnavailable(true),
		e.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return unavailable("delete indices", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete indices", res)
	}
	e.logger.InfoContext(ctx, "elasticsearch indices deleted", slog.Any("indices", names))
	return nil
}

// Search executes a search query against one index.
func (e *Engine) Search(ctx context.Context, index string, q query.Query) (*engine.Hits, error) {
	return e.search(ctx, "search", index, q.DSL())
}

// Prefix executes an autocomplete lookup against one index.
func (e *Engine) Prefix(ctx context.Context, index string, p query.Prefix) (*engine.Hits, error) {
	return e.search(ctx, "prefix", index, p.DSL())
}

func (e *Engine) search(ctx context.Context, op, index string, body map[string]interface{}) (*engine.Hits, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.IndexName(index)),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, responseError(op, res)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}

	hits := &engine.Hits{
		Total:   esResp.Hits.Total.Value,
		Sources: make([]json.RawMessage, 0, len(esResp.Hits.Hits)),
		TookMs:  esResp.Took,
	}
	for _, h := range esResp.Hits.Hits {
		hits.Sources = append(hits.Sources, h.Source)
	}
	return hits, nil
}

// Upsert creates or replaces a single document.
func (e *Engine) Upsert(ctx context.Context, index string, doc domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal document: %w", err)
	}

	res, err := e.client.Index(
		e.IndexName(index),
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(doc.DocumentID()),
		e.client.Index.WithRefresh("wait_for"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return unavailable("index", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("index", res)
	}

	e.logger.DebugContext(ctx, "indexed document",
		slog.String("index", index),
		slog.String("id", doc.DocumentID()),
	)
	return nil
}

// Delete removes a document by id. A 404 is ignored.
func (e *Engine) Delete(ctx context.Context, index, id string) error {
	res, err := e.client.Delete(
		e.IndexName(index),
		id,
		e.client.Delete.WithRefresh("wait_for"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return unavailable("delete", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}

	e.logger.DebugContext(ctx, "deleted document", slog.String("index", index), slog.String("id", id))
	return nil
}
