package dbgen

import (
	"context"
)

const venueColumns = `id, name, description, type, address, town, latitude, longitude,
    opening_hours, accepts_reservations, rating, menu_url, created_at`

func scanVenue(row interface{ Scan(...interface{}) error }) (Venue, error) {
	var i Venue
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Type,
		&i.Address,
		&i.Town,
		&i.Latitude,
		&i.Longitude,
		&i.OpeningHours,
		&i.AcceptsReservations,
		&i.Rating,
		&i.MenuUrl,
		&i.CreatedAt,
	)
	return i, err
}

const upsertVenue = `
INSERT INTO venues (
    id, name, description, type, address, town, latitude, longitude,
    opening_hours, accepts_reservations, menu_url
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    type = excluded.type,
    address = excluded.address,
    town = excluded.town,
    latitude = excluded.latitude,
    longitude = excluded.longitude,
    opening_hours = excluded.opening_hours,
    accepts_reservations = excluded.accepts_reservations,
    menu_url = excluded.menu_url
RETURNING ` + venueColumns

type UpsertVenueParams struct {
	ID                  string
	Name                string
	Description         string
	Type                string
	Address             string
	Town                string
	Latitude            float64
	Longitude           float64
	OpeningHours        string
	AcceptsReservations bool
	MenuUrl             string
}

func (q *Queries) UpsertVenue(ctx context.Context, arg UpsertVenueParams) (Venue, error) {
	row := q.db.QueryRowContext(ctx, upsertVenue,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Type,
		arg.Address,
		arg.Town,
		arg.Latitude,
		arg.Longitude,
		arg.OpeningHours,
		arg.AcceptsReservations,
		arg.MenuUrl,
	)
	return scanVenue(row)
}

const getVenue = `SELECT ` + venueColumns + ` FROM venues WHERE id = ?`

func (q *Queries) GetVenue(ctx context.Context, id string) (Venue, error) {
	return scanVenue(q.db.QueryRowContext(ctx, getVenue, id))
}

const listVenues = `
SELECT ` + venueColumns + `
FROM venues
WHERE (?1 = '' OR town = ?1 COLLATE NOCASE)
ORDER BY rating DESC, name`

// ListVenues returns venues ordered by rating. An empty town matches all.
func (q *Queries) ListVenues(ctx context.Context, town string) ([]Venue, error) {
	rows, err := q.db.QueryContext(ctx, listVenues, town)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Venue
	for rows.Next() {
		i, err := scanVenue(rows)
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

const updateVenueRating = `UPDATE venues SET rating = ? WHERE id = ?`

type UpdateVenueRatingParams struct {
	Rating float64
	ID     string
}

func (q *Queries) UpdateVenueRating(ctx context.Context, arg UpdateVenueRatingParams) error {
	_, err := q.db.ExecContext(ctx, updateVenueRating, arg.Rating, arg.ID)
	return err
}

const upsertVenueTable = `
INSERT INTO venue_tables (id, venue_id, zone, capacity)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    zone = excluded.zone,
    capacity = excluded.capacity
RETURNING id, venue_id, zone, capacity`

type UpsertVenueTableParams struct {
	ID       string
	VenueID  string
	Zone     string
	Capacity int64
}

func (q *Queries) UpsertVenueTable(ctx context.Context, arg UpsertVenueTableParams) (VenueTable, error) {
	row := q.db.QueryRowContext(ctx, upsertVenueTable,
		arg.ID,
		arg.VenueID,
		arg.Zone,
		arg.Capacity,
	)
	var i VenueTable
	err := row.Scan(
		&i.ID,
		&i.VenueID,
		&i.Zone,
		&i.Capacity,
	)
	return i, err
}

const listVenueTables = `
SELECT id, venue_id, zone, capacity
FROM venue_tables
WHERE venue_id = ?
ORDER BY rowid`

// ListVenueTables returns a venue's tables in insertion order.
func (q *Queries) ListVenueTables(ctx context.Context, venueID string) ([]VenueTable, error) {
	rows, err := q.db.QueryContext(ctx, listVenueTables, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VenueTable
	for rows.Next() {
		var i VenueTable
		if err := rows.Scan(
			&i.ID,
			&i.VenueID,
			&i.Zone,
			&i.Capacity,
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
