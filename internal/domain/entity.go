package domain

import "time"

// Destination is a row of the relational destinations table. Hotels is
// populated only when the store loaded the related rows.
type Destination struct {
	ID          int
	Name        string
	Country     string
	Description string
	Hotels      []Hotel
}

// Flight is a row of the relational flights table with its resolved
// departure and arrival destinations. Either may be nil.
type Flight struct {
	ID                     int
	Airline                string
	DepartureDestinationID int
	ArrivalDestinationID   int
	DepartureTime          time.Time
	ArrivalTime            time.Time
	Price                  float64

	DepartureDestination *Destination
	ArrivalDestination   *Destination
}

// Hotel is a row of the relational hotels table. Amenities holds the raw
// comma-separated column.
type Hotel struct {
	ID            int
	Name          string
	DestinationID int
	PricePerNight float64
	Rating        *float64
	Amenities     string

	Destination *Destination
}
