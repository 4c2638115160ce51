// Package memory provides an in-process engine.IndexEngine used by tests
// and by SEARCH_ENGINE=memory deployments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/engine"
	"github.com/travelbooking/search/internal/query"
)

// Op names an engine operation for call counting and fault injection.
type Op string

const (
	OpEnsure Op = "ensure"
	OpSearch Op = "search"
	OpPrefix Op = "prefix"
	OpUpsert Op = "upsert"
	OpBulk   Op = "bulk"
	OpDelete Op = "delete"
	OpPing   Op = "ping"
)

type stored struct {
	id     string
	raw    json.RawMessage
	fields map[string]interface{}
}

// Engine keeps documents in maps keyed by index and id. Matching is a
// case-insensitive substring test over the query fields; fuzziness is not
// emulated. Thread-safe via sync.RWMutex.
type Engine struct {
	mu      sync.RWMutex
	indices map[string]map[string]stored
	calls   map[Op]int
	errs    map[Op]error
}

var _ engine.IndexEngine = (*Engine)(nil)

// New creates a new in-memory engine with no indices.
func New() *Engine {
	return &Engine{
		indices: make(map[string]map[string]stored),
		calls:   make(map[Op]int),
		errs:    make(map[Op]error),
	}
}

// SetError makes every following call of op fail with err. A nil err clears it.
func (e *Engine) SetError(op Op, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.errs, op)
		return
	}
	e.errs[op] = err
}

// Calls returns how many times op was invoked, including failed calls.
func (e *Engine) Calls(op Op) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls[op]
}

// Count returns the number of documents in an index.
func (e *Engine) Count(index string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.indices[index])
}

// Get returns the stored source of a document.
func (e *Engine) Get(index, id string) (json.RawMessage, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.indices[index][id]
	return doc.raw, ok
}

// HasIndex reports whether an index was created.
func (e *Engine) HasIndex(index string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.indices[index]
	return ok
}

// begin records a call and returns its injected error. Callers hold e.mu.
func (e *Engine) begin(op Op) error {
	e.calls[op]++
	return e.errs[op]
}

func (e *Engine) Ping(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.begin(OpPing)
}

func (e *Engine) EnsureIndices(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(OpEnsure); err != nil {
		return err
	}
	for _, index := range engine.Indices() {
		if _, ok := e.indices[index]; !ok {
			e.indices[index] = make(map[string]stored)
		}
	}
	return nil
}

func encode(doc domain.Document) (stored, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return stored{}, fmt.Errorf("memory engine: marshal %s: %w", doc.DocumentID(), err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return stored{}, fmt.Errorf("memory engine: decode %s: %w", doc.DocumentID(), err)
	}
	return stored{id: doc.DocumentID(), raw: raw, fields: fields}, nil
}

// put stores a document, creating the index on first write like an
// auto-create cluster would. Callers hold e.mu.
func (e *Engine) put(index string, s stored) {
	idx, ok := e.indices[index]
	if !ok {
		idx = make(map[string]stored)
		e.indices[index] = idx
	}
	idx[s.id] = s
}

func (e *Engine) Upsert(_ context.Context, index string, doc domain.Document) error {
	s, err := encode(doc)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(OpUpsert); err != nil {
		return err
	}
	e.put(index, s)
	return nil
}

// BulkUpsert stores all documents or none.
func (e *Engine) BulkUpsert(_ context.Context, index string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	encoded := make([]stored, 0, len(docs))
	for _, doc := range docs {
		s, err := encode(doc)
		if err != nil {
			return err
		}
		encoded = append(encoded, s)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(OpBulk); err != nil {
		return err
	}
	for _, s := range encoded {
		e.put(index, s)
	}
	return nil
}

func (e *Engine) Delete(_ context.Context, index, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(OpDelete); err != nil {
		return err
	}
	delete(e.indices[index], id)
	return nil
}

type scored struct {
	doc   stored
	score float64
}

// Search returns the page of documents that contain the query text in any
// of the query fields and satisfy every filter.
func (e *Engine) Search(_ context.Context, index string, q query.Query) (*engine.Hits, error) {
	e.mu.Lock()
	err := e.begin(OpSearch)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	var matched []scored
	for _, doc := range e.indices[index] {
		if !matchesFilters(doc.fields, q.Filters) {
			continue
		}
		var score float64
		for _, f := range q.Fields {
			if containsText(doc.fields[f.Name], needle) {
				boost := f.Boost
				if boost == 0 {
					boost = 1
				}
				score += boost
			}
		}
		if score > 0 {
			matched = append(matched, scored{doc: doc, score: score})
		}
	}

	sortMatches(matched, q.Sort)

	hits := &engine.Hits{Total: int64(len(matched)), Sources: []json.RawMessage{}}
	if q.From < 0 || q.Size <= 0 || q.From >= len(matched) {
		return hits, nil
	}
	end := len(matched)
	if q.Size < end-q.From {
		end = q.From + q.Size
	}
	for _, m := range matched[q.From:end] {
		hits.Sources = append(hits.Sources, m.doc.raw)
	}
	return hits, nil
}

// Prefix returns documents having a word in the field that starts with the
// text, the way an edge n-gram analyzer matches.
func (e *Engine) Prefix(_ context.Context, index string, p query.Prefix) (*engine.Hits, error) {
	e.mu.Lock()
	err := e.begin(OpPrefix)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(p.Text))
	var matched []stored
	for _, doc := range e.indices[index] {
		value, _ := doc.fields[p.Field].(string)
		for _, word := range strings.Fields(strings.ToLower(value)) {
			if strings.HasPrefix(word, needle) {
				matched = append(matched, doc)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })

	hits := &engine.Hits{Total: int64(len(matched)), Sources: []json.RawMessage{}}
	for i := 0; i < len(matched) && i < p.Size; i++ {
		hits.Sources = append(hits.Sources, matched[i].raw)
	}
	return hits, nil
}

func containsText(v interface{}, needle string) bool {
	switch val := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(val), needle)
	case []interface{}:
		for _, item := range val {
			if containsText(item, needle) {
				return true
			}
		}
	}
	return false
}

func matchesFilters(fields map[string]interface{}, terms []query.Term) bool {
	for _, t := range terms {
		if !equalsTerm(fields[t.Field], t.Value) {
			return false
		}
	}
	return true
}

func equalsTerm(v interface{}, want string) bool {
	switch val := v.(type) {
	case nil:
		return false
	case []interface{}:
		for _, item := range val {
			if equalsTerm(item, want) {
				return true
			}
		}
		return false
	default:
		return fmt.Sprint(val) == want
	}
}

func sortMatches(matched []scored, sorts []query.Sort) {
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		for _, s := range sorts {
			field := strings.TrimSuffix(s.Field, ".keyword")
			c := compare(a.doc.fields[field], b.doc.fields[field])
			if c == 0 {
				continue
			}
			if s.Descending {
				return c > 0
			}
			return c < 0
		}
		if len(sorts) == 0 && a.score != b.score {
			return a.score > b.score
		}
		return a.doc.id < b.doc.id
	})
}

func compare(a, b interface{}) int {
	fa, aNum := a.(float64)
	fb, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
