package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/db/dbgen"
)

// AddFavorite marks a venue as a favourite of the user. Adding a venue that
// is already a favourite is a no-op.
func (db *DB) AddFavorite(ctx context.Context, userID, venueID string) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		if _, err := tx.Queries.GetVenue(ctx, venueID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return booking.ErrVenueNotFound
			}
			return fmt.Errorf("get venue %s: %w", venueID, err)
		}
		if err := tx.Queries.AddFavorite(ctx, dbgen.AddFavoriteParams{
			UserID:    userID,
			VenueID:   venueID,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("add favorite: %w", err)
		}
		return nil
	})
}

// RemoveFavorite drops a venue from the user's favourites. Removing a venue
// that is not a favourite is a no-op.
func (db *DB) RemoveFavorite(ctx context.Context, userID, venueID string) error {
	if err := db.Queries.RemoveFavorite(ctx, dbgen.RemoveFavoriteParams{
		UserID:  userID,
		VenueID: venueID,
	}); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the user's favourite venues, most recently added first.
func (db *DB) ListFavorites(ctx context.Context, userID string) ([]booking.Venue, error) {
	rows, err := db.Queries.ListFavoriteVenues(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	venues := make([]booking.Venue, 0, len(rows))
	for _, row := range rows {
		venue, err := VenueFromRow(row)
		if err != nil {
			return nil, err
		}
		venues = append(venues, venue)
	}
	return venues, nil
}
