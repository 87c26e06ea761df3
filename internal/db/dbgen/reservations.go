package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const reservationColumns = `id, venue_id, table_id, reservation_date, start_time, end_time,
    party_size, user_id, customer_name, customer_phone, customer_email,
    reminder_sent_at, created_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (Reservation, error) {
	var i Reservation
	err := row.Scan(
		&i.ID,
		&i.VenueID,
		&i.TableID,
		&i.ReservationDate,
		&i.StartTime,
		&i.EndTime,
		&i.PartySize,
		&i.UserID,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.CustomerEmail,
		&i.ReminderSentAt,
		&i.CreatedAt,
	)
	return i, err
}

func scanReservations(rows *sql.Rows) ([]Reservation, error) {
	defer rows.Close()
	var items []Reservation
	for rows.Next() {
		i, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReservation = `
INSERT INTO reservations (
    id, venue_id, table_id, reservation_date, start_time, end_time,
    party_size, user_id, customer_name, customer_phone, customer_email, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateReservationParams struct {
	ID              string
	VenueID         string
	TableID         string
	ReservationDate string
	StartTime       string
	EndTime         string
	PartySize       int64
	UserID          string
	CustomerName    string
	CustomerPhone   sql.NullString
	CustomerEmail   sql.NullString
	CreatedAt       time.Time
}

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) error {
	_, err := q.db.ExecContext(ctx, createReservation,
		arg.ID,
		arg.VenueID,
		arg.TableID,
		arg.ReservationDate,
		arg.StartTime,
		arg.EndTime,
		arg.PartySize,
		arg.UserID,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.CustomerEmail,
		arg.CreatedAt,
	)
	return err
}

const getReservation = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? AND venue_id = ?`

type GetReservationParams struct {
	ID      string
	VenueID string
}

func (q *Queries) GetReservation(ctx context.Context, arg GetReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRowContext(ctx, getReservation, arg.ID, arg.VenueID))
}

const listReservationsForVenueDate = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE venue_id = ? AND reservation_date = ?
ORDER BY start_time, table_id`

type ListReservationsForVenueDateParams struct {
	VenueID         string
	ReservationDate string
}

func (q *Queries) ListReservationsForVenueDate(ctx context.Context, arg ListReservationsForVenueDateParams) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsForVenueDate, arg.VenueID, arg.ReservationDate)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

const deleteReservation = `DELETE FROM reservations WHERE id = ? AND venue_id = ?`

type DeleteReservationParams struct {
	ID      string
	VenueID string
}

// DeleteReservation returns the number of rows removed.
func (q *Queries) DeleteReservation(ctx context.Context, arg DeleteReservationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservation, arg.ID, arg.VenueID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listReservationsByUser = `
SELECT r.id, r.venue_id, r.table_id, r.reservation_date, r.start_time, r.end_time,
    r.party_size, r.user_id, r.customer_name, r.customer_phone, r.customer_email,
    r.reminder_sent_at, r.created_at, v.name, t.zone
FROM reservations r
JOIN venues v ON v.id = r.venue_id
JOIN venue_tables t ON t.id = r.table_id
WHERE r.user_id = ?
ORDER BY r.reservation_date DESC, r.start_time DESC`

type ListReservationsByUserRow struct {
	Reservation
	VenueName string `json:"venue_name"`
	Zone      string `json:"zone"`
}

func (q *Queries) ListReservationsByUser(ctx context.Context, userID string) ([]ListReservationsByUserRow, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListReservationsByUserRow
	for rows.Next() {
		var i ListReservationsByUserRow
		if err := rows.Scan(
			&i.ID,
			&i.VenueID,
			&i.TableID,
			&i.ReservationDate,
			&i.StartTime,
			&i.EndTime,
			&i.PartySize,
			&i.UserID,
			&i.CustomerName,
			&i.CustomerPhone,
			&i.CustomerEmail,
			&i.ReminderSentAt,
			&i.CreatedAt,
			&i.VenueName,
			&i.Zone,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listReservationsPendingReminder = `
SELECT r.id, r.venue_id, r.table_id, r.reservation_date, r.start_time, r.end_time,
    r.party_size, r.user_id, r.customer_name, r.customer_phone, r.customer_email,
    r.reminder_sent_at, r.created_at, v.name, v.address
FROM reservations r
JOIN venues v ON v.id = r.venue_id
WHERE r.reminder_sent_at IS NULL
  AND r.customer_email IS NOT NULL
  AND r.customer_email != ''
  AND r.reservation_date BETWEEN ? AND ?
ORDER BY r.reservation_date, r.start_time`

type ListReservationsPendingReminderParams struct {
	FromDate string
	ToDate   string
}

type ListReservationsPendingReminderRow struct {
	Reservation
	VenueName    string
	VenueAddress string
}

// ListReservationsPendingReminder returns reservations with an email address
// and no reminder sent, dated within [FromDate, ToDate].
func (q *Queries) ListReservationsPendingReminder(ctx context.Context, arg ListReservationsPendingReminderParams) ([]ListReservationsPendingReminderRow, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsPendingReminder, arg.FromDate, arg.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListReservationsPendingReminderRow
	for rows.Next() {
		var i ListReservationsPendingReminderRow
		if err := rows.Scan(
			&i.ID,
			&i.VenueID,
			&i.TableID,
			&i.ReservationDate,
			&i.StartTime,
			&i.EndTime,
			&i.PartySize,
			&i.UserID,
			&i.CustomerName,
			&i.CustomerPhone,
			&i.CustomerEmail,
			&i.ReminderSentAt,
			&i.CreatedAt,
			&i.VenueName,
			&i.VenueAddress,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markReminderSent = `
UPDATE reservations SET reminder_sent_at = ?
WHERE id = ? AND reminder_sent_at IS NULL`

type MarkReminderSentParams struct {
	SentAt time.Time
	ID     string
}

// MarkReminderSent returns the number of rows updated; zero means another
// run already claimed the reminder.
func (q *Queries) MarkReminderSent(ctx context.Context, arg MarkReminderSentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markReminderSent, arg.SentAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
