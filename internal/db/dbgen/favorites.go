package dbgen

import (
	"context"
	"time"
)

const addFavorite = `
INSERT INTO favorites (user_id, venue_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id, venue_id) DO NOTHING`

type AddFavoriteParams struct {
	UserID    string
	VenueID   string
	CreatedAt time.Time
}

func (q *Queries) AddFavorite(ctx context.Context, arg AddFavoriteParams) error {
	_, err := q.db.ExecContext(ctx, addFavorite, arg.UserID, arg.VenueID, arg.CreatedAt)
	return err
}

const removeFavorite = `DELETE FROM favorites WHERE user_id = ? AND venue_id = ?`

type RemoveFavoriteParams struct {
	UserID  string
	VenueID string
}

func (q *Queries) RemoveFavorite(ctx context.Context, arg RemoveFavoriteParams) error {
	_, err := q.db.ExecContext(ctx, removeFavorite, arg.UserID, arg.VenueID)
	return err
}

const listFavoriteVenues = `
SELECT v.id, v.name, v.description, v.type, v.address, v.town, v.latitude, v.longitude,
    v.opening_hours, v.accepts_reservations, v.rating, v.menu_url, v.created_at
FROM favorites f
JOIN venues v ON v.id = f.venue_id
WHERE f.user_id = ?
ORDER BY f.created_at DESC, v.name`

func (q *Queries) ListFavoriteVenues(ctx context.Context, userID string) ([]Venue, error) {
	rows, err := q.db.QueryContext(ctx, listFavoriteVenues, userID)
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
