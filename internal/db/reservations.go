package db

import (
	"context"
	"fmt"
	"time"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/db/dbgen"
)

// UserReservation is a reservation with the venue details shown in a
// customer's reservation list.
type UserReservation struct {
	booking.Reservation
	VenueName string `json:"venue_name"`
	Zone      string `json:"zone"`
}

// ListUserReservations returns every reservation made by userID, newest
// first.
func (db *DB) ListUserReservations(ctx context.Context, userID string) ([]UserReservation, error) {
	rows, err := db.Queries.ListReservationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations for user: %w", err)
	}
	out := make([]UserReservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := ReservationFromRow(row.Reservation)
		if err != nil {
			return nil, err
		}
		out = append(out, UserReservation{
			Reservation: reservation,
			VenueName:   row.VenueName,
			Zone:        row.Zone,
		})
	}
	return out, nil
}

// ReminderCandidate is a reservation that still needs a reminder email.
type ReminderCandidate struct {
	booking.Reservation
	VenueName    string
	VenueAddress string
	StartsAt     time.Time
}

// ListReminderCandidates returns reservations with an email address and no
// reminder sent that start within (now, now+window], evaluated in loc.
func (db *DB) ListReminderCandidates(ctx context.Context, now time.Time, window time.Duration, loc *time.Location) ([]ReminderCandidate, error) {
	now = now.In(loc)
	until := now.Add(window)
	rows, err := db.Queries.ListReservationsPendingReminder(ctx, dbgen.ListReservationsPendingReminderParams{
		FromDate: now.Format(booking.DateLayout),
		ToDate:   until.Format(booking.DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations pending reminder: %w", err)
	}

	var out []ReminderCandidate
	for _, row := range rows {
		reservation, err := ReservationFromRow(row.Reservation)
		if err != nil {
			return nil, err
		}
		date, err := time.ParseInLocation(booking.DateLayout, reservation.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("reservation %s date: %w", reservation.ID, err)
		}
		startsAt := reservation.Start.On(date)
		if !startsAt.After(now) || startsAt.After(until) {
			continue
		}
		out = append(out, ReminderCandidate{
			Reservation:  reservation,
			VenueName:    row.VenueName,
			VenueAddress: row.VenueAddress,
			StartsAt:     startsAt,
		})
	}
	return out, nil
}

// MarkReminderSent claims the reminder for a reservation. It returns false
// when another run already sent it.
func (db *DB) MarkReminderSent(ctx context.Context, reservationID string, sentAt time.Time) (bool, error) {
	n, err := db.Queries.MarkReminderSent(ctx, dbgen.MarkReminderSentParams{
		SentAt: sentAt.UTC(),
		ID:     reservationID,
	})
	if err != nil {
		return false, fmt.Errorf("mark reminder sent for %s: %w", reservationID, err)
	}
	return n > 0, nil
}
