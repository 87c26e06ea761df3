package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu           sync.Mutex
	txMu         sync.Mutex
	venues       map[string]Venue
	tables       []Table
	reservations []Reservation
	nextID       int

	failVenue        error
	failTables       error
	failReservations error
	venueReads       int
	reservationReads int
}

func newMemStore() *memStore {
	return &memStore{venues: make(map[string]Venue)}
}

func (s *memStore) addVenue(v Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

func (s *memStore) addTable(venueID, id, zone string, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, Table{ID: id, VenueID: venueID, Zone: zone, Capacity: capacity})
}

func (s *memStore) addReservation(r Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		s.nextID++
		r.ID = fmt.Sprintf("seed-%d", s.nextID)
	}
	s.reservations = append(s.reservations, r)
}

func (s *memStore) GetVenue(ctx context.Context, venueID string) (Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venueReads++
	if s.failVenue != nil {
		return Venue{}, s.failVenue
	}
	v, ok := s.venues[venueID]
	if !ok {
		return Venue{}, ErrVenueNotFound
	}
	return v, nil
}

func (s *memStore) ListTables(ctx context.Context, venueID string) ([]Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTables != nil {
		return nil, s.failTables
	}
	var out []Table
	for _, t := range s.tables {
		if t.VenueID == venueID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) ListReservations(ctx context.Context, venueID string, date string) ([]Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservationReads++
	if s.failReservations != nil {
		return nil, s.failReservations
	}
	var out []Reservation
	for _, r := range s.reservations {
		if r.VenueID == venueID && r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) CreateReservation(ctx context.Context, r Reservation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = fmt.Sprintf("res-%d", s.nextID)
	s.reservations = append(s.reservations, r)
	return r.ID, nil
}

func (s *memStore) DeleteReservation(ctx context.Context, venueID, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reservations {
		if r.VenueID == venueID && r.ID == reservationID {
			s.reservations = append(s.reservations[:i], s.reservations[i+1:]...)
			return nil
		}
	}
	return ErrReservationNotFound
}

func (s *memStore) Atomically(ctx context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

func (s *memStore) tableReservations(tableID, date string) []Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reservation
	for _, r := range s.reservations {
		if r.TableID == tableID && r.Date == date {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func everyDay(hours string) map[string]string {
	m := make(map[string]string, len(DayNames))
	for _, day := range DayNames {
		m[day] = hours
	}
	return m
}

func newTestEngine(t *testing.T, store Store, clock Clock) *Engine {
	t.Helper()
	engine, err := NewEngine(store, Options{Clock: clock, Location: time.UTC})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		t.Fatalf("parse date %q: %v", raw, err)
	}
	return d
}

func slotAt(t *testing.T, slots []Slot, at TimeOfDay) Slot {
	t.Helper()
	for _, slot := range slots {
		if slot.Time == at {
			return slot
		}
	}
	t.Fatalf("no slot at %s", at)
	return Slot{}
}
