// Package query turns a SearchRequest into an engine-neutral query
// description and renders it as an Elasticsearch request body.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/travelbooking/search/internal/domain"
	apperrors "github.com/travelbooking/search/pkg/errors"
	"github.com/travelbooking/search/pkg/pagination"
)

// Field is a searchable field with its relevance boost. A boost of 0 or 1
// leaves the field unweighted.
type Field struct {
	Name  string
	Boost float64
}

func (f Field) String() string {
	if f.Boost == 0 || f.Boost == 1 {
		return f.Name
	}
	return f.Name + "^" + strconv.FormatFloat(f.Boost, 'f', -1, 64)
}

// Spec describes how one document kind is searched. Sortable and Filterable
// map a normalized request field name to the engine field.
type Spec struct {
	Fields     []Field
	Fuzzy      bool
	Sortable   map[string]string
	Filterable map[string]string
}

// Term is an exact keyword filter.
type Term struct {
	Field string
	Value string
}

// Sort orders results by a field. An empty Sort list means relevance.
type Sort struct {
	Field      string
	Descending bool
}

// Query is the engine-neutral description of one search page.
type Query struct {
	Text    string
	Fields  []Field
	Fuzzy   bool
	Filters []Term
	Sort    []Sort
	From    int
	Size    int
}

var (
	Destinations = Spec{
		Fields: []Field{{"name", 3}, {"country", 2}, {"description", 1}, {"tags", 1}},
		Fuzzy:  true,
		Sortable: map[string]string{
			"name":              "name.keyword",
			"country":           "country",
			"averagehotelprice": "average_hotel_price",
			"popularityscore":   "popularity_score",
		},
		Filterable: map[string]string{
			"country":         "country",
			"tags":            "tags",
			"popularkeywords": "popular_keywords",
		},
	}

	Flights = Spec{
		Fields: []Field{{"airline", 2}, {"departure_destination", 1}, {"arrival_destination", 1}},
		Sortable: map[string]string{
			"airline":              "airline.keyword",
			"price":                "price",
			"departuretime":        "departure_time",
			"arrivaltime":          "arrival_time",
			"durationminutes":      "duration_minutes",
			"departuredestination": "departure_destination",
			"arrivaldestination":   "arrival_destination",
		},
		Filterable: map[string]string{
			"departuredestination": "departure_destination",
			"arrivaldestination":   "arrival_destination",
			"flightclass":          "flight_class",
			"amenities":            "amenities",
			"hasstopovers":         "has_stopovers",
		},
	}

	Hotels = Spec{
		Fields: []Field{{"name", 3}, {"destination", 2}, {"description", 1}, {"amenities", 1}},
		Fuzzy:  true,
		Sortable: map[string]string{
			"name":          "name.keyword",
			"pricepernight": "price_per_night",
			"rating":        "rating",
			"destination":   "destination",
		},
		Filterable: map[string]string{
			"destination": "destination",
			"amenities":   "amenities",
		},
	}
)

// SpecFor returns the search spec of a kind.
func SpecFor(kind domain.Kind) Spec {
	switch kind {
	case domain.KindDestination:
		return Destinations
	case domain.KindFlight:
		return Flights
	default:
		return Hotels
	}
}

// normalizeField makes "PricePerNight", "price_per_night" and
// "pricepernight" equivalent.
func normalizeField(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
}

// Build translates a normalized request into a Query. Unknown sort or
// filter fields are rejected as invalid input. A page ending past the
// result window becomes a count-only query (from 0, size 0).
func Build(spec Spec, req domain.SearchRequest) (Query, error) {
	q := Query{
		Text:   req.Query,
		Fields: spec.Fields,
		Fuzzy:  spec.Fuzzy,
		From:   req.Offset(),
		Size:   req.PageSize,
	}
	if !pagination.InResultWindow(req.Page, req.PageSize) {
		q.From, q.Size = 0, 0
	}

	for _, raw := range req.Filters {
		name, value, ok := strings.Cut(raw, ":")
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			return Query{}, apperrors.InvalidInput(fmt.Sprintf("filter %q must have the form field:value", raw))
		}
		field, known := spec.Filterable[normalizeField(name)]
		if !known {
			return Query{}, apperrors.InvalidInput(fmt.Sprintf("cannot filter on %q", name))
		}
		q.Filters = append(q.Filters, Term{Field: field, Value: value})
	}

	if req.SortBy != "" {
		field, known := spec.Sortable[normalizeField(req.SortBy)]
		if !known {
			return Query{}, apperrors.InvalidInput(fmt.Sprintf("cannot sort by %q", req.SortBy))
		}
		q.Sort = []Sort{{Field: field, Descending: req.SortDescending}}
	}

	return q, nil
}

// FieldNames returns the weighted field list as rendered in the DSL.
func (q Query) FieldNames() []string {
	names := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		names[i] = f.String()
	}
	return names
}

// DSL renders the Elasticsearch search body.
func (q Query) DSL() map[string]interface{} {
	multiMatch := map[string]interface{}{
		"query":  q.Text,
		"fields": q.FieldNames(),
		"type":   "best_fields",
	}
	if q.Fuzzy {
		multiMatch["fuzziness"] = "AUTO"
		multiMatch["prefix_length"] = 1
	}

	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{"multi_match": multiMatch},
		},
	}
	if len(q.Filters) > 0 {
		filters := make([]interface{}, 0, len(q.Filters))
		for _, t := range q.Filters {
			filters = append(filters, map[string]interface{}{
				"term": map[string]interface{}{t.Field: t.Value},
			})
		}
		boolQuery["filter"] = filters
	}

	sort := []interface{}{map[string]interface{}{"_score": "desc"}}
	if len(q.Sort) > 0 {
		sort = sort[:0]
		for _, s := range q.Sort {
			order := "asc"
			if s.Descending {
				order = "desc"
			}
			sort = append(sort, map[string]interface{}{
				s.Field: map[string]interface{}{"order": order},
			})
		}
	}

	return map[string]interface{}{
		"query":            map[string]interface{}{"bool": boolQuery},
		"from":             q.From,
		"size":             q.Size,
		"sort":             sort,
		"track_total_hits": true,
	}
}

// AutocompleteAnalyzer is the edge n-gram analyzer defined on every index
// for name-like fields.
const AutocompleteAnalyzer = "autocomplete"

// Prefix is an autocomplete lookup against one analyzed field.
type Prefix struct {
	Field    string
	Text     string
	Analyzer string
	Size     int
}

// DSL renders the Elasticsearch search body for the prefix lookup.
func (p Prefix) DSL() map[string]interface{} {
	match := map[string]interface{}{"query": p.Text}
	if p.Analyzer != "" {
		match["analyzer"] = p.Analyzer
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{p.Field: match},
		},
		"size": p.Size,
	}
}
