package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/query"
	apperrors "github.com/travelbooking/search/pkg/errors"
)

const (
	minPrefixLength        = 2
	defaultSuggestionLimit = 5
	suggestionsPerKind     = 3
)

// Autocomplete looks up destinations and hotels whose name starts with
// prefix, merges both lists sorted by display text and truncates to limit.
// It only reflects what is indexed; the store is never consulted.
func (s *SearchService) Autocomplete(ctx context.Context, prefix string, limit int) ([]domain.Suggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < minPrefixLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("prefix must be at least %d characters", minPrefixLength))
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	lookup := query.Prefix{
		Field:    "name",
		Text:     prefix,
		Analyzer: query.AutocompleteAnalyzer,
		Size:     suggestionsPerKind,
	}

	var destSuggestions, hotelSuggestions []domain.Suggestion
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		destSuggestions, err = s.suggest(gctx, domain.KindDestination, lookup, func(raw json.RawMessage) (domain.Suggestion, error) {
			var d domain.DestinationDoc
			if err := json.Unmarshal(raw, &d); err != nil {
				return domain.Suggestion{}, err
			}
			return domain.Suggestion{
				Text: displayText(d.Name, d.Country),
				Type: domain.SuggestionDestination,
				ID:   d.ID,
			}, nil
		})
		return err
	})

	g.Go(func() error {
		var err error
		hotelSuggestions, err = s.suggest(gctx, domain.KindHotel, lookup, func(raw json.RawMessage) (domain.Suggestion, error) {
			var h domain.HotelDoc
			if err := json.Unmarshal(raw, &h); err != nil {
				return domain.Suggestion{}, err
			}
			return domain.Suggestion{
				Text: displayText(h.Name, h.Destination),
				Type: domain.SuggestionHotel,
				ID:   h.ID,
			}, nil
		})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("autocomplete: %w", err))
	}

	merged := append(destSuggestions, hotelSuggestions...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Text < merged[j].Text })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (s *SearchService) suggest(
	ctx context.Context,
	kind domain.Kind,
	lookup query.Prefix,
	convert func(json.RawMessage) (domain.Suggestion, error),
) ([]domain.Suggestion, error) {
	hits, err := s.engine.Prefix(ctx, kind.Index(), lookup)
	if err != nil {
		return nil, fmt.Errorf("prefix %s: %w", kind.Index(), err)
	}

	out := make([]domain.Suggestion, 0, len(hits.Sources))
	for _, raw := range hits.Sources {
		sg, err := convert(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s suggestion: %w", kind, err)
		}
		out = append(out, sg)
	}
	return out, nil
}

// displayText joins a name with its context, e.g. "Paris, France".
func displayText(name, qualifier string) string {
	if qualifier == "" {
		return name
	}
	return name + ", " + qualifier
}
