package db_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/testutil"
)

func TestSeed_ExampleFileIsIdempotent(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "config", "seed.example.yaml"))
	if err != nil {
		t.Fatalf("read seed file: %v", err)
	}
	file, err := db.ParseSeedFile(data)
	if err != nil {
		t.Fatalf("parse seed file: %v", err)
	}

	database := testutil.NewTestDB(t)
	ctx := context.Background()
	for run := 0; run < 2; run++ {
		n, err := database.Seed(ctx, file)
		if err != nil {
			t.Fatalf("seed run %d: %v", run, err)
		}
		if n != len(file.Venues) {
			t.Errorf("seeded %d venues, want %d", n, len(file.Venues))
		}
	}

	venues, err := database.ListVenues(ctx, "")
	if err != nil {
		t.Fatalf("list venues: %v", err)
	}
	if len(venues) != len(file.Venues) {
		t.Fatalf("venues = %d after two runs, want %d", len(venues), len(file.Venues))
	}
	for _, venue := range venues {
		if _, ok := booking.DayEntry(venue.OpeningHours, monday(t)); !ok {
			t.Errorf("venue %s has no Monday hours", venue.Name)
		}
	}
}

func TestParseSeedFile_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "venues:\n  - town: Cluj\n", "name is required"},
		{"missing zone", "venues:\n  - name: A\n    tables:\n      - capacity: 2\n", "zone is required"},
		{"zero capacity", "venues:\n  - name: A\n    tables:\n      - zone: terasa\n", "capacity must be positive"},
		{"bad yaml", "venues: [", "parse seed file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.ParseSeedFile([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
