package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/db"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// EveryDay builds opening hours with the same entry for all seven days.
func EveryDay(hours string) map[string]string {
	m := make(map[string]string, len(booking.DayNames))
	for _, day := range booking.DayNames {
		m[day] = hours
	}
	return m
}

// SeedVenue stores a venue accepting reservations with the given hours and
// tables, and returns it.
func SeedVenue(t *testing.T, database *db.DB, name string, hours map[string]string, tables ...booking.Table) booking.Venue {
	t.Helper()

	venue, err := database.SaveVenue(context.Background(), booking.Venue{
		Name:                name,
		Town:                "Cluj-Napoca",
		Type:                "Restaurant",
		OpeningHours:        hours,
		AcceptsReservations: true,
	}, tables)
	if err != nil {
		t.Fatalf("seed venue %s: %v", name, err)
	}
	return venue
}
