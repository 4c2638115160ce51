package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/travelbooking/search/internal/domain"
)

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// encodeBulk writes the NDJSON action and source line of every document.
func encodeBulk(indexName string, docs []domain.Document) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, doc := range docs {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": indexName,
				"_id":    doc.DocumentID(),
			},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.DocumentID(), err)
		}
	}
	return &buf, nil
}

// BulkUpsert indexes all documents in one _bulk request. Any item failure
// fails the whole batch; item diagnostics are logged. Nothing is retried.
func (e *Engine) BulkUpsert(ctx context.Context, index string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	name := e.IndexName(index)
	buf, err := encodeBulk(name, docs)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk: %w", err)
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(name),
		e.client.Bulk.WithRefresh("wait_for"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return unavailable("bulk", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("bulk", res)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}

	if bulkResp.Errors {
		failed := 0
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type == "" {
				continue
			}
			failed++
			e.logger.ErrorContext(ctx, "bulk item failed",
				slog.String("index", name),
				slog.String("id", item.Index.ID),
				slog.Int("status", item.Index.Status),
				slog.String("type", item.Index.Error.Type),
				slog.String("reason", item.Index.Error.Reason),
			)
		}
		return fmt.Errorf("elasticsearch bulk: %d of %d documents failed", failed, len(docs))
	}

	e.logger.InfoContext(ctx, "bulk indexed documents",
		slog.String("index", name),
		slog.Int("count", len(docs)),
	)
	return nil
}
