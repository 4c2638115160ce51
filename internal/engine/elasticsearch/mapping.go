package elasticsearch

import (
	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/query"
)

// Default edge n-gram bounds of the autocomplete analyzer.
const (
	DefaultMinGram = 2
	DefaultMaxGram = 20
)

type object = map[string]interface{}

func settings(minGram, maxGram int) object {
	return object{
		"number_of_shards":   1,
		"number_of_replicas": 0,
		"analysis": object{
			"analyzer": object{
				query.AutocompleteAnalyzer: object{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "autocomplete_filter"},
				},
			},
			"filter": object{
				"autocomplete_filter": object{
					"type":     "edge_ngram",
					"min_gram": minGram,
					"max_gram": maxGram,
				},
			},
		},
	}
}

var (
	keyword  = object{"type": "keyword"}
	text     = object{"type": "text"}
	double   = object{"type": "double"}
	integer  = object{"type": "integer"}
	date     = object{"type": "date"}
	boolean  = object{"type": "boolean"}
	sortable = object{"keyword": object{"type": "keyword", "ignore_above": 256}}
)

func autocompleteText() object {
	return object{
		"type":            "text",
		"analyzer":        query.AutocompleteAnalyzer,
		"search_analyzer": "standard",
		"fields":          sortable,
	}
}

func properties(kind domain.Kind) object {
	switch kind {
	case domain.KindDestination:
		return object{
			"id":                  keyword,
			"destination_id":      integer,
			"name":                autocompleteText(),
			"country":             keyword,
			"description":         text,
			"popular_keywords":    keyword,
			"average_hotel_price": double,
			"popularity_score":    integer,
			"tags":                keyword,
		}
	case domain.KindFlight:
		return object{
			"id":                    keyword,
			"flight_id":             integer,
			"airline":               object{"type": "text", "analyzer": "standard", "fields": sortable},
			"departure_destination": keyword,
			"arrival_destination":   keyword,
			"departure_time":        date,
			"arrival_time":          date,
			"price":                 double,
			"duration_minutes":      integer,
			"flight_class":          keyword,
			"has_stopovers":         boolean,
			"amenities":             keyword,
		}
	default:
		return object{
			"id":              keyword,
			"hotel_id":        integer,
			"name":            autocompleteText(),
			"destination":     keyword,
			"price_per_night": double,
			"rating":          double,
			"amenities":       keyword,
			"description":     text,
		}
	}
}

// indexBody returns the create-index request body for a kind.
func indexBody(kind domain.Kind, minGram, maxGram int) object {
	return object{
		"settings": settings(minGram, maxGram),
		"mappings": object{"properties": properties(kind)},
	}
}
