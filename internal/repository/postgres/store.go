package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/travelbooking/search/internal/domain"
	"github.com/travelbooking/search/internal/repository"
	"github.com/travelbooking/search/pkg/database"
	apperrors "github.com/travelbooking/search/pkg/errors"
)

// Store implements repository.Store using PostgreSQL.
type Store struct {
	db database.DBTX
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a new PostgreSQL-backed store.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching term anywhere, with LIKE
// metacharacters in term taken literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

const destinationColumns = `destination_id, name, country, COALESCE(description, '')`

const hotelColumns = `h.hotel_id, h.name, h.destination_id, h.price_per_night, h.rating, COALESCE(h.amenities, '')`

// SearchDestinations matches name, country or description and loads hotels.
func (s *Store) SearchDestinations(ctx context.Context, term string) ([]domain.Destination, error) {
	query := `
		SELECT ` + destinationColumns + `
		FROM destinations
		WHERE name LIKE $1 OR country LIKE $1 OR description LIKE $1
		ORDER BY destination_id`

	ctx, end := database.TraceQuery(ctx, "SearchDestinations", query)
	rows, err := s.db.Query(ctx, query, containsPattern(term))
	if err != nil {
		end(0, err)
		return nil, fmt.Errorf("search destinations: %w", err)
	}

	dests, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Destination, error) {
		var d domain.Destination
		err := row.Scan(&d.ID, &d.Name, &d.Country, &d.Description)
		return d, err
	})
	end(len(dests), err)
	if err != nil {
		return nil, fmt.Errorf("scan destinations: %w", err)
	}

	if err := s.attachHotels(ctx, dests); err != nil {
		return nil, err
	}
	return dests, nil
}

// attachHotels loads the hotels of every destination in one query.
func (s *Store) attachHotels(ctx context.Context, dests []domain.Destination) error {
	if len(dests) == 0 {
		return nil
	}

	ids := make([]int, len(dests))
	pos := make(map[int]int, len(dests))
	for i, d := range dests {
		ids[i] = d.ID
		pos[d.ID] = i
	}

	query := `
		SELECT ` + hotelColumns + `
		FROM hotels h
		WHERE h.destination_id = ANY($1)
		ORDER BY h.hotel_id`

	ctx, end := database.TraceQuery(ctx, "LoadDestinationHotels", query)
	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		end(0, err)
		return fmt.Errorf("load destination hotels: %w", err)
	}

	hotels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Hotel, error) {
		var h domain.Hotel
		err := row.Scan(&h.ID, &h.Name, &h.DestinationID, &h.PricePerNight, &h.Rating, &h.Amenities)
		return h, err
	})
	end(len(hotels), err)
	if err != nil {
		return fmt.Errorf("scan destination hotels: %w", err)
	}

	for _, h := range hotels {
		if i, ok := pos[h.DestinationID]; ok {
			dests[i].Hotels = append(dests[i].Hotels, h)
		}
	}
	return nil
}

// GetDestination loads one destination with its hotels.
func (s *Store) GetDestination(ctx context.Context, id int) (*domain.Destination, error) {
	query := `
		SELECT ` + destinationColumns + `
		FROM destinations
		WHERE destination_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetDestination", query)
	var d domain.Destination
	err := s.db.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name, &d.Country, &d.Description)
	if err != nil {
		end(0, err)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("destination", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("get destination: %w", err)
	}
	end(1, nil)

	dests := []domain.Destination{d}
	if err := s.attachHotels(ctx, dests); err != nil {
		return nil, err
	}
	return &dests[0], nil
}

const flightSelect = `
		SELECT f.flight_id, f.airline, f.departure_destination_id, f.arrival_destination_id,
		       f.departure_time, f.arrival_time, f.price,
		       dd.name, dd.country, ad.name, ad.country
		FROM flights f
		LEFT JOIN destinations dd ON dd.destination_id = f.departure_destination_id
		LEFT JOIN destinations ad ON ad.destination_id = f.arrival_destination_id`

func scanFlight(row pgx.Row) (domain.Flight, error) {
	var (
		f                   domain.Flight
		depName, depCountry *string
		arrName, arrCountry *string
	)
	err := row.Scan(
		&f.ID, &f.Airline, &f.DepartureDestinationID, &f.ArrivalDestinationID,
		&f.DepartureTime, &f.ArrivalTime, &f.Price,
		&depName, &depCountry, &arrName, &arrCountry,
	)
	if err != nil {
		return f, err
	}
	f.DepartureDestination = joinedDestination(f.DepartureDestinationID, depName, depCountry)
	f.ArrivalDestination = joinedDestination(f.ArrivalDestinationID, arrName, arrCountry)
	return f, nil
}

// joinedDestination returns nil when the LEFT JOIN found no row.
func joinedDestination(id int, name, country *string) *domain.Destination {
	if name == nil {
		return nil
	}
	d := &domain.Destination{ID: id, Name: *name}
	if country != nil {
		d.Country = *country
	}
	return d
}

// SearchFlights matches airline or either destination name.
func (s *Store) SearchFlights(ctx context.Context, term string) ([]domain.Flight, error) {
	query := flightSelect + `
		WHERE f.airline LIKE $1 OR dd.name LIKE $1 OR ad.name LIKE $1
		ORDER BY f.flight_id`

	ctx, end := database.TraceQuery(ctx, "SearchFlights", query)
	rows, err := s.db.Query(ctx, query, containsPattern(term))
	if err != nil {
		end(0, err)
		return nil, fmt.Errorf("search flights: %w", err)
	}

	flights, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Flight, error) {
		return scanFlight(row)
	})
	end(len(flights), err)
	if err != nil {
		return nil, fmt.Errorf("scan flights: %w", err)
	}
	return flights, nil
}

// GetFlight loads one flight with its destinations.
func (s *Store) GetFlight(ctx context.Context, id int) (*domain.Flight, error) {
	query := flightSelect + `
		WHERE f.flight_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetFlight", query)
	f, err := scanFlight(s.db.QueryRow(ctx, query, id))
	if err != nil {
		end(0, err)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("flight", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("get flight: %w", err)
	}
	end(1, nil)
	return &f, nil
}

const hotelSelect = `
		SELECT ` + hotelColumns + `,
		       d.name, d.country, d.description
		FROM hotels h
		LEFT JOIN destinations d ON d.destination_id = h.destination_id`

func scanHotel(row pgx.Row) (domain.Hotel, error) {
	var (
		h                     domain.Hotel
		destName, destCountry *string
		destDescription       *string
	)
	err := row.Scan(
		&h.ID, &h.Name, &h.DestinationID, &h.PricePerNight, &h.Rating, &h.Amenities,
		&destName, &destCountry, &destDescription,
	)
	if err != nil {
		return h, err
	}
	h.Destination = joinedDestination(h.DestinationID, destName, destCountry)
	if h.Destination != nil && destDescription != nil {
		h.Destination.Description = *destDescription
	}
	return h, nil
}

// SearchHotels matches hotel name or destination name.
func (s *Store) SearchHotels(ctx context.Context, term string) ([]domain.Hotel, error) {
	query := hotelSelect + `
		WHERE h.name LIKE $1 OR d.name LIKE $1
		ORDER BY h.hotel_id`

	ctx, end := database.TraceQuery(ctx, "SearchHotels", query)
	rows, err := s.db.Query(ctx, query, containsPattern(term))
	if err != nil {
		end(0, err)
		return nil, fmt.Errorf("search hotels: %w", err)
	}

	hotels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Hotel, error) {
		return scanHotel(row)
	})
	end(len(hotels), err)
	if err != nil {
		return nil, fmt.Errorf("scan hotels: %w", err)
	}
	return hotels, nil
}

// GetHotel loads one hotel with its destination.
func (s *Store) GetHotel(ctx context.Context, id int) (*domain.Hotel, error) {
	query := hotelSelect + `
		WHERE h.hotel_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetHotel", query)
	h, err := scanHotel(s.db.QueryRow(ctx, query, id))
	if err != nil {
		end(0, err)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("hotel", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("get hotel: %w", err)
	}
	end(1, nil)
	return &h, nil
}
