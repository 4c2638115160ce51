package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/travelbooking/search/internal/domain"
	apperrors "github.com/travelbooking/search/pkg/errors"
)

// fakeStore is an in-memory repository.Store with case-sensitive substring
// matching, mirroring LIKE under a binary collation.
type fakeStore struct {
	mu           sync.Mutex
	destinations []domain.Destination
	flights      []domain.Flight
	hotels       []domain.Hotel
	err          error
	calls        int
}

func (s *fakeStore) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeStore) SearchDestinations(_ context.Context, term string) ([]domain.Destination, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	var out []domain.Destination
	for _, d := range s.destinations {
		if strings.Contains(d.Name, term) || strings.Contains(d.Country, term) || strings.Contains(d.Description, term) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchFlights(_ context.Context, term string) ([]domain.Flight, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	var out []domain.Flight
	for _, f := range s.flights {
		if strings.Contains(f.Airline, term) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchHotels(_ context.Context, term string) ([]domain.Hotel, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	var out []domain.Hotel
	for _, h := range s.hotels {
		if strings.Contains(h.Name, term) || (h.Destination != nil && strings.Contains(h.Destination.Name, term)) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeStore) GetDestination(_ context.Context, id int) (*domain.Destination, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	for _, d := range s.destinations {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, apperrors.NotFound("destination", strconv.Itoa(id))
}

func (s *fakeStore) GetFlight(_ context.Context, id int) (*domain.Flight, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	for _, f := range s.flights {
		if f.ID == id {
			return &f, nil
		}
	}
	return nil, apperrors.NotFound("flight", strconv.Itoa(id))
}

func (s *fakeStore) GetHotel(_ context.Context, id int) (*domain.Hotel, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	for _, h := range s.hotels {
		if h.ID == id {
			return &h, nil
		}
	}
	return nil, apperrors.NotFound("hotel", strconv.Itoa(id))
}
