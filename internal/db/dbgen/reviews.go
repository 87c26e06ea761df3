package dbgen

import (
	"context"
	"time"
)

const createReview = `
INSERT INTO reviews (id, venue_id, user_id, user_name, rating, comment, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id, venue_id, user_id, user_name, rating, comment, created_at`

type CreateReviewParams struct {
	ID        string
	VenueID   string
	UserID    string
	UserName  string
	Rating    int64
	Comment   string
	CreatedAt time.Time
}

func (q *Queries) CreateReview(ctx context.Context, arg CreateReviewParams) (Review, error) {
	row := q.db.QueryRowContext(ctx, createReview,
		arg.ID,
		arg.VenueID,
		arg.UserID,
		arg.UserName,
		arg.Rating,
		arg.Comment,
		arg.CreatedAt,
	)
	var i Review
	err := row.Scan(
		&i.ID,
		&i.VenueID,
		&i.UserID,
		&i.UserName,
		&i.Rating,
		&i.Comment,
		&i.CreatedAt,
	)
	return i, err
}

const listReviewsByVenue = `
SELECT id, venue_id, user_id, user_name, rating, comment, created_at
FROM reviews
WHERE venue_id = ?
ORDER BY created_at DESC`

func (q *Queries) ListReviewsByVenue(ctx context.Context, venueID string) ([]Review, error) {
	rows, err := q.db.QueryContext(ctx, listReviewsByVenue, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Review
	for rows.Next() {
		var i Review
		if err := rows.Scan(
			&i.ID,
			&i.VenueID,
			&i.UserID,
			&i.UserName,
			&i.Rating,
			&i.Comment,
			&i.CreatedAt,
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

const averageVenueRating = `
SELECT CAST(COALESCE(AVG(rating), 0) AS REAL) FROM reviews WHERE venue_id = ?`

func (q *Queries) AverageVenueRating(ctx context.Context, venueID string) (float64, error) {
	var avg float64
	err := q.db.QueryRowContext(ctx, averageVenueRating, venueID).Scan(&avg)
	return avg, err
}
