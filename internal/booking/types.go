// Package booking computes table availability for venues and allocates tables
// to new reservations.
package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for reservation dates.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// TimeOfDay is a venue-local wall clock time in minutes since midnight.
// Values at or beyond 24h denote times on the following calendar day.
type TimeOfDay int

// At builds a TimeOfDay from an hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" or "HH.MM". A bare hour ("17") is accepted.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty time of day")
	}
	hourPart, minutePart, found := strings.Cut(raw, ":")
	if !found {
		hourPart, minutePart, found = strings.Cut(raw, ".")
	}
	if !found {
		minutePart = "0"
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(minutePart))
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return At(hour, minute), nil
}

// Add returns t shifted by d, truncated to whole minutes.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// String formats t as "HH:MM", wrapping values past midnight.
func (t TimeOfDay) String() string {
	m := int(t) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// On returns the instant t on the given date, in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, int(t), 0, 0, date.Location())
}

// TimeOfDayOf extracts the wall clock time of ts.
func TimeOfDayOf(ts time.Time) TimeOfDay {
	return At(ts.Hour(), ts.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Venue struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Type                string            `json:"type,omitempty"`
	Address             string            `json:"address,omitempty"`
	Town                string            `json:"town,omitempty"`
	Latitude            float64           `json:"latitude,omitempty"`
	Longitude           float64           `json:"longitude,omitempty"`
	OpeningHours        map[string]string `json:"opening_hours"`
	AcceptsReservations bool              `json:"accepts_reservations"`
	Rating              float64           `json:"rating"`
	MenuURL             string            `json:"menu_url,omitempty"`
}

// Table is a physical seating unit.
type Table struct {
	ID       string `json:"id"`
	VenueID  string `json:"venue_id"`
	Zone     string `json:"zone"`
	Capacity int    `json:"capacity"`
}

type Reservation struct {
	ID            string    `json:"id"`
	VenueID       string    `json:"venue_id"`
	TableID       string    `json:"table_id"`
	Date          string    `json:"date"`
	Start         TimeOfDay `json:"start_time"`
	End           TimeOfDay `json:"end_time"`
	PartySize     int       `json:"party_size"`
	UserID        string    `json:"user_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Interval returns the reservation's [start, end) block in minutes. An end
// not after the start is taken to have wrapped past midnight.
func (r Reservation) Interval() (TimeOfDay, TimeOfDay) {
	start := r.Start % minutesPerDay
	end := r.End % minutesPerDay
	if end <= start {
		end += minutesPerDay
	}
	return start, end
}

// EndsAt returns the instant the reservation's seating block ends.
func (r Reservation) EndsAt(loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, r.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse reservation date: %w", err)
	}
	_, end := r.Interval()
	return end.On(date), nil
}

// Slot is a candidate reservation start time.
type Slot struct {
	Time        TimeOfDay `json:"time"`
	Available   bool      `json:"available"`
	FreeTables  int       `json:"free_tables"`
	TotalTables int       `json:"total_tables"`
}

// Zones returns the distinct zones of tables in first-appearance order.
func Zones(tables []Table) []string {
	seen := make(map[string]struct{}, len(tables))
	zones := make([]string, 0, 4)
	for _, table := range tables {
		if _, ok := seen[table.Zone]; ok {
			continue
		}
		seen[table.Zone] = struct{}{}
		zones = append(zones, table.Zone)
	}
	return zones
}

func tablesInZone(tables []Table, zone string) []Table {
	filtered := make([]Table, 0, len(tables))
	for _, table := range tables {
		if table.Zone == zone {
			filtered = append(filtered, table)
		}
	}
	return filtered
}
