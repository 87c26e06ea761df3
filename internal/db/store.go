package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/db/dbgen"
)

var _ booking.Store = (*DB)(nil)

func (db *DB) GetVenue(ctx context.Context, venueID string) (booking.Venue, error) {
	row, err := db.Queries.GetVenue(ctx, venueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.Venue{}, booking.ErrVenueNotFound
		}
		return booking.Venue{}, fmt.Errorf("get venue %s: %w", venueID, err)
	}
	return VenueFromRow(row)
}

func (db *DB) ListTables(ctx context.Context, venueID string) ([]booking.Table, error) {
	rows, err := db.Queries.ListVenueTables(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("list tables for venue %s: %w", venueID, err)
	}
	tables := make([]booking.Table, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, booking.Table{
			ID:       row.ID,
			VenueID:  row.VenueID,
			Zone:     row.Zone,
			Capacity: int(row.Capacity),
		})
	}
	return tables, nil
}

func (db *DB) ListReservations(ctx context.Context, venueID string, date string) ([]booking.Reservation, error) {
	rows, err := db.Queries.ListReservationsForVenueDate(ctx, dbgen.ListReservationsForVenueDateParams{
		VenueID:         venueID,
		ReservationDate: date,
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations for venue %s on %s: %w", venueID, date, err)
	}
	reservations := make([]booking.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := ReservationFromRow(row)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

// CreateReservation inserts r under a new id. A unique index violation on
// (table, date, start) reports booking.ErrNoCapacity.
func (db *DB) CreateReservation(ctx context.Context, r booking.Reservation) (string, error) {
	id := uuid.NewString()
	err := db.Queries.CreateReservation(ctx, dbgen.CreateReservationParams{
		ID:              id,
		VenueID:         r.VenueID,
		TableID:         r.TableID,
		ReservationDate: r.Date,
		StartTime:       r.Start.String(),
		EndTime:         r.End.String(),
		PartySize:       int64(r.PartySize),
		UserID:          r.UserID,
		CustomerName:    r.CustomerName,
		CustomerPhone:   nullString(r.CustomerPhone),
		CustomerEmail:   nullString(r.CustomerEmail),
		CreatedAt:       r.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return "", booking.ErrNoCapacity
		}
		return "", fmt.Errorf("insert reservation: %w", err)
	}
	return id, nil
}

func (db *DB) DeleteReservation(ctx context.Context, venueID, reservationID string) error {
	n, err := db.Queries.DeleteReservation(ctx, dbgen.DeleteReservationParams{
		ID:      reservationID,
		VenueID: venueID,
	})
	if err != nil {
		return fmt.Errorf("delete reservation %s: %w", reservationID, err)
	}
	if n == 0 {
		return booking.ErrReservationNotFound
	}
	return nil
}

// Atomically runs fn inside an immediate (write-locked) transaction, so no
// other Atomically section can commit between fn's reads and its write.
func (db *DB) Atomically(ctx context.Context, fn func(booking.Store) error) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		return fn(tx)
	})
}

// GetReservation loads one reservation of a venue.
func (db *DB) GetReservation(ctx context.Context, venueID, reservationID string) (booking.Reservation, error) {
	row, err := db.Queries.GetReservation(ctx, dbgen.GetReservationParams{
		ID:      reservationID,
		VenueID: venueID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.Reservation{}, booking.ErrReservationNotFound
		}
		return booking.Reservation{}, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}
	return ReservationFromRow(row)
}

// VenueFromRow decodes a venue row, including its opening hours document.
func VenueFromRow(row dbgen.Venue) (booking.Venue, error) {
	hours := map[string]string{}
	if row.OpeningHours != "" {
		if err := json.Unmarshal([]byte(row.OpeningHours), &hours); err != nil {
			return booking.Venue{}, fmt.Errorf("decode opening hours for venue %s: %w", row.ID, err)
		}
	}
	return booking.Venue{
		ID:                  row.ID,
		Name:                row.Name,
		Description:         row.Description,
		Type:                row.Type,
		Address:             row.Address,
		Town:                row.Town,
		Latitude:            row.Latitude,
		Longitude:           row.Longitude,
		OpeningHours:        hours,
		AcceptsReservations: row.AcceptsReservations,
		Rating:              row.Rating,
		MenuURL:             row.MenuUrl,
	}, nil
}

// ReservationFromRow converts a stored reservation.
func ReservationFromRow(row dbgen.Reservation) (booking.Reservation, error) {
	start, err := booking.ParseTimeOfDay(row.StartTime)
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("reservation %s start time: %w", row.ID, err)
	}
	end, err := booking.ParseTimeOfDay(row.EndTime)
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("reservation %s end time: %w", row.ID, err)
	}
	return booking.Reservation{
		ID:            row.ID,
		VenueID:       row.VenueID,
		TableID:       row.TableID,
		Date:          row.ReservationDate,
		Start:         start,
		End:           end,
		PartySize:     int(row.PartySize),
		UserID:        row.UserID,
		CustomerName:  row.CustomerName,
		CustomerPhone: row.CustomerPhone.String,
		CustomerEmail: row.CustomerEmail.String,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
