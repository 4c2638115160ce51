package domain

import "strings"

var defaultHotelAmenities = []string{"WiFi", "Parking"}

// ProjectDestination flattens a destination and its loaded hotels.
func ProjectDestination(d Destination) DestinationDoc {
	var avg float64
	if len(d.Hotels) > 0 {
		var sum float64
		for _, h := range d.Hotels {
			sum += h.PricePerNight
		}
		avg = sum / float64(len(d.Hotels))
	}

	return DestinationDoc{
		ID:                KindDestination.DocumentID(d.ID),
		DestinationID:     d.ID,
		Name:              d.Name,
		Country:           d.Country,
		Description:       d.Description,
		PopularKeywords:   []string{d.Name, d.Country},
		AverageHotelPrice: avg,
		PopularityScore:   len(d.Hotels),
		Tags:              []string{d.Country, "destination"},
	}
}

// ProjectFlight flattens a flight. Unresolved destinations leave the display
// names empty.
func ProjectFlight(f Flight) FlightDoc {
	doc := FlightDoc{
		ID:              KindFlight.DocumentID(f.ID),
		FlightID:        f.ID,
		Airline:         f.Airline,
		DepartureTime:   f.DepartureTime,
		ArrivalTime:     f.ArrivalTime,
		Price:           f.Price,
		DurationMinutes: int(f.ArrivalTime.Sub(f.DepartureTime).Minutes()),
		HasStopovers:    false,
		Amenities:       []string{"Standard"},
	}
	if f.DepartureDestination != nil {
		doc.DepartureDestination = f.DepartureDestination.Name
	}
	if f.ArrivalDestination != nil {
		doc.ArrivalDestination = f.ArrivalDestination.Name
	}
	return doc
}

// ProjectHotel flattens a hotel.
func ProjectHotel(h Hotel) HotelDoc {
	doc := HotelDoc{
		ID:            KindHotel.DocumentID(h.ID),
		HotelID:       h.ID,
		Name:          h.Name,
		PricePerNight: h.PricePerNight,
		Amenities:     ParseAmenities(h.Amenities),
	}
	if h.Rating != nil {
		r := *h.Rating
		doc.Rating = &r
	}
	if h.Destination != nil {
		doc.Destination = h.Destination.Name
		doc.Description = h.Destination.Description
	}
	return doc
}

// ParseAmenities splits the comma-separated amenities column, falling back to
// WiFi and Parking when nothing is listed.
func ParseAmenities(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if a := strings.TrimSpace(part); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultHotelAmenities...)
	}
	return out
}
