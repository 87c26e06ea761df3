package booking

import (
	"context"
	"time"
)

// Store is the document store the engine reads venues, tables and
// reservations from.
type Store interface {
	GetVenue(ctx context.Context, venueID string) (Venue, error)
	ListTables(ctx context.Context, venueID string) ([]Table, error)
	ListReservations(ctx context.Context, venueID string, date string) ([]Reservation, error)
	CreateReservation(ctx context.Context, reservation Reservation) (string, error)
	DeleteReservation(ctx context.Context, venueID, reservationID string) error

	// Atomically runs fn with exclusive write access. Reads made through the
	// Store passed to fn observe every reservation committed before it, and
	// no other Atomically section can commit in between.
	Atomically(ctx context.Context, fn func(Store) error) error
}

// Clock supplies the current venue-local time.
type Clock interface {
	Now() time.Time
}

type realClock struct {
	loc *time.Location
}

func (c realClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// SystemClock returns a Clock reading the system time in loc.
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return realClock{loc: loc}
}
