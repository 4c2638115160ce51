package domain

import (
	"fmt"
	"time"
)

// Kind identifies one of the three searchable entity kinds.
type Kind string

const (
	KindDestination Kind = "destination"
	KindFlight      Kind = "flight"
	KindHotel       Kind = "hotel"
)

// Kinds lists every kind in index provisioning order.
func Kinds() []Kind {
	return []Kind{KindDestination, KindFlight, KindHotel}
}

// ParseKind accepts both the singular and the plural (index) spelling.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "destination", "destinations":
		return KindDestination, true
	case "flight", "flights":
		return KindFlight, true
	case "hotel", "hotels":
		return KindHotel, true
	}
	return "", false
}

// Index returns the unprefixed index name for the kind.
func (k Kind) Index() string {
	return string(k) + "s"
}

// DocumentID builds the index primary key for a relational row, e.g. hotel_3.
func (k Kind) DocumentID(sourceID int) string {
	return fmt.Sprintf("%s_%d", k, sourceID)
}

// Document is a search document that can be upserted by id.
type Document interface {
	DocumentID() string
}

// DestinationDoc is the indexed projection of a destination.
type DestinationDoc struct {
	ID                string   `json:"id" validate:"required,startswith=destination_"`
	DestinationID     int      `json:"destination_id" validate:"gt=0"`
	Name              string   `json:"name" validate:"required"`
	Country           string   `json:"country" validate:"required"`
	Description       string   `json:"description"`
	PopularKeywords   []string `json:"popular_keywords"`
	AverageHotelPrice float64  `json:"average_hotel_price" validate:"gte=0"`
	PopularityScore   int      `json:"popularity_score" validate:"gte=0"`
	Tags              []string `json:"tags"`
}

func (d DestinationDoc) DocumentID() string { return d.ID }

// FlightDoc is the indexed projection of a flight.
type FlightDoc struct {
	ID                   string    `json:"id" validate:"required,startswith=flight_"`
	FlightID             int       `json:"flight_id" validate:"gt=0"`
	Airline              string    `json:"airline" validate:"required"`
	DepartureDestination string    `json:"departure_destination"`
	ArrivalDestination   string    `json:"arrival_destination"`
	DepartureTime        time.Time `json:"departure_time"`
	ArrivalTime          time.Time `json:"arrival_time"`
	Price                float64   `json:"price" validate:"gte=0"`
	DurationMinutes      int       `json:"duration_minutes"`
	FlightClass          string    `json:"flight_class,omitempty"`
	HasStopovers         bool      `json:"has_stopovers"`
	Amenities            []string  `json:"amenities"`
}

func (d FlightDoc) DocumentID() string { return d.ID }

// HotelDoc is the indexed projection of a hotel.
type HotelDoc struct {
	ID            string   `json:"id" validate:"required,startswith=hotel_"`
	HotelID       int      `json:"hotel_id" validate:"gt=0"`
	Name          string   `json:"name" validate:"required"`
	Destination   string   `json:"destination"`
	PricePerNight float64  `json:"price_per_night" validate:"gte=0"`
	Rating        *float64 `json:"rating" validate:"omitempty,gte=0,lte=10"`
	Amenities     []string `json:"amenities"`
	Description   string   `json:"description"`
}

func (d HotelDoc) DocumentID() string { return d.ID }
