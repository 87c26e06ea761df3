package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/db/dbgen"
)

// ListVenues returns venues ordered by rating, optionally filtered by town.
func (db *DB) ListVenues(ctx context.Context, town string) ([]booking.Venue, error) {
	rows, err := db.Queries.ListVenues(ctx, strings.TrimSpace(town))
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
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

// SaveVenue inserts or updates a venue and its tables. Venues and tables
// without an id get a new uuid.
func (db *DB) SaveVenue(ctx context.Context, venue booking.Venue, tables []booking.Table) (booking.Venue, error) {
	if venue.ID == "" {
		venue.ID = uuid.NewString()
	}
	hours, err := json.Marshal(venue.OpeningHours)
	if err != nil {
		return booking.Venue{}, fmt.Errorf("encode opening hours: %w", err)
	}

	var saved booking.Venue
	err = db.RunInTx(ctx, func(tx *DB) error {
		row, err := tx.Queries.UpsertVenue(ctx, dbgen.UpsertVenueParams{
			ID:                  venue.ID,
			Name:                venue.Name,
			Description:         venue.Description,
			Type:                venue.Type,
			Address:             venue.Address,
			Town:                venue.Town,
			Latitude:            venue.Latitude,
			Longitude:           venue.Longitude,
			OpeningHours:        string(hours),
			AcceptsReservations: venue.AcceptsReservations,
			MenuUrl:             venue.MenuURL,
		})
		if err != nil {
			return fmt.Errorf("upsert venue %s: %w", venue.Name, err)
		}
		for _, table := range tables {
			if table.Capacity <= 0 {
				return fmt.Errorf("table %q of venue %s: capacity must be positive", table.ID, venue.Name)
			}
			if table.ID == "" {
				table.ID = uuid.NewString()
			}
			if _, err := tx.Queries.UpsertVenueTable(ctx, dbgen.UpsertVenueTableParams{
				ID:       table.ID,
				VenueID:  row.ID,
				Zone:     table.Zone,
				Capacity: int64(table.Capacity),
			}); err != nil {
				return fmt.Errorf("upsert table %s: %w", table.ID, err)
			}
		}
		saved, err = VenueFromRow(row)
		return err
	})
	if err != nil {
		return booking.Venue{}, err
	}
	return saved, nil
}

// Review is a customer rating of a venue.
type Review struct {
	ID        string    `json:"id"`
	VenueID   string    `json:"venue_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// AddReview stores a review and recomputes the venue rating as the average
// of all its reviews rounded to one decimal. It returns the new rating.
func (db *DB) AddReview(ctx context.Context, review Review) (Review, float64, error) {
	if review.Rating < 1 || review.Rating > 5 {
		return Review{}, 0, booking.FieldError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	var (
		created Review
		rating  float64
	)
	err := db.RunInTx(ctx, func(tx *DB) error {
		if _, err := tx.Queries.GetVenue(ctx, review.VenueID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return booking.ErrVenueNotFound
			}
			return fmt.Errorf("get venue %s: %w", review.VenueID, err)
		}
		row, err := tx.Queries.CreateReview(ctx, dbgen.CreateReviewParams{
			ID:        uuid.NewString(),
			VenueID:   review.VenueID,
			UserID:    review.UserID,
			UserName:  review.UserName,
			Rating:    int64(review.Rating),
			Comment:   review.Comment,
			CreatedAt: review.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		avg, err := tx.Queries.AverageVenueRating(ctx, review.VenueID)
		if err != nil {
			return fmt.Errorf("average rating: %w", err)
		}
		rating = math.Round(avg*10) / 10
		if err := tx.Queries.UpdateVenueRating(ctx, dbgen.UpdateVenueRatingParams{
			Rating: rating,
			ID:     review.VenueID,
		}); err != nil {
			return fmt.Errorf("update venue rating: %w", err)
		}
		created = reviewFromRow(row)
		return nil
	})
	if err != nil {
		return Review{}, 0, err
	}
	return created, rating, nil
}

// ListReviews returns a venue's reviews, newest first.
func (db *DB) ListReviews(ctx context.Context, venueID string) ([]Review, error) {
	rows, err := db.Queries.ListReviewsByVenue(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("list reviews for venue %s: %w", venueID, err)
	}
	reviews := make([]Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, reviewFromRow(row))
	}
	return reviews, nil
}

func reviewFromRow(row dbgen.Review) Review {
	return Review{
		ID:        row.ID,
		VenueID:   row.VenueID,
		UserID:    row.UserID,
		UserName:  row.UserName,
		Rating:    int(row.Rating),
		Comment:   row.Comment,
		CreatedAt: row.CreatedAt,
	}
}
