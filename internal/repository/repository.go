package repository

import (
	"context"

	"github.com/travelbooking/search/internal/domain"
)

// Store is the read-only view of the authoritative relational store.
// Search methods match term as a substring (LIKE '%term%', store collation,
// no fuzziness) and eagerly load related rows.
type Store interface {
	// SearchDestinations matches name, country or description and loads
	// each destination's hotels.
	SearchDestinations(ctx context.Context, term string) ([]domain.Destination, error)

	// SearchFlights matches airline or either destination name.
	SearchFlights(ctx context.Context, term string) ([]domain.Flight, error)

	// SearchHotels matches hotel name or destination name.
	SearchHotels(ctx context.Context, term string) ([]domain.Hotel, error)

	// GetDestination, GetFlight and GetHotel load one row with its related
	// rows, returning apperrors.KindNotFound when absent.
	GetDestination(ctx context.Context, id int) (*domain.Destination, error)
	GetFlight(ctx context.Context, id int) (*domain.Flight, error)
	GetHotel(ctx context.Context, id int) (*domain.Hotel, error)
}
