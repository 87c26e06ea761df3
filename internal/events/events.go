// Package events publishes reservation lifecycle events to RabbitMQ.
package events

import (
	"context"
	"time"

	"github.com/tablebook/tablebook/internal/booking"
)

const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is the JSON body of a published message.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	VenueID       string    `json:"venue_id"`
	TableID       string    `json:"table_id"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	PartySize     int       `json:"party_size"`
	UserID        string    `json:"user_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewReservationEvent builds an event of the given type for r.
func NewReservationEvent(eventType string, r booking.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          eventType,
		ReservationID: r.ID,
		VenueID:       r.VenueID,
		TableID:       r.TableID,
		Date:          r.Date,
		StartTime:     r.Start.String(),
		EndTime:       r.End.String(),
		PartySize:     r.PartySize,
		UserID:        r.UserID,
		OccurredAt:    at.UTC(),
	}
}

// Publisher delivers reservation events.
type Publisher interface {
	Publish(ctx context.Context, event ReservationEvent) error
	Close() error
}

// Noop discards events. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, ReservationEvent) error { return nil }
func (Noop) Close() error                                    { return nil }
