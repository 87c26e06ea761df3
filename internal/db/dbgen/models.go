package dbgen

import (
	"database/sql"
	"time"
)

type Venue struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Type                string    `json:"type"`
	Address             string    `json:"address"`
	Town                string    `json:"town"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	OpeningHours        string    `json:"opening_hours"`
	AcceptsReservations bool      `json:"accepts_reservations"`
	Rating              float64   `json:"rating"`
	MenuUrl             string    `json:"menu_url"`
	CreatedAt           time.Time `json:"created_at"`
}

type VenueTable struct {
	ID       string `json:"id"`
	VenueID  string `json:"venue_id"`
	Zone     string `json:"zone"`
	Capacity int64  `json:"capacity"`
}

type Reservation struct {
	ID              string         `json:"id"`
	VenueID         string         `json:"venue_id"`
	TableID         string         `json:"table_id"`
	ReservationDate string         `json:"reservation_date"`
	StartTime       string         `json:"start_time"`
	EndTime         string         `json:"end_time"`
	PartySize       int64          `json:"party_size"`
	UserID          string         `json:"user_id"`
	CustomerName    string         `json:"customer_name"`
	CustomerPhone   sql.NullString `json:"customer_phone"`
	CustomerEmail   sql.NullString `json:"customer_email"`
	ReminderSentAt  sql.NullTime   `json:"reminder_sent_at"`
	CreatedAt       time.Time      `json:"created_at"`
}

type Review struct {
	ID        string    `json:"id"`
	VenueID   string    `json:"venue_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int64     `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
