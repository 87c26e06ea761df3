package db

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tablebook/tablebook/internal/booking"
)

// SeedFile is the YAML document loaded by the seed tool.
type SeedFile struct {
	Venues []SeedVenue `yaml:"venues"`
}

type SeedVenue struct {
	ID                  string            `yaml:"id"`
	Name                string            `yaml:"name"`
	Description         string            `yaml:"description"`
	Type                string            `yaml:"type"`
	Address             string            `yaml:"address"`
	Town                string            `yaml:"town"`
	Latitude            float64           `yaml:"latitude"`
	Longitude           float64           `yaml:"longitude"`
	MenuURL             string            `yaml:"menu_url"`
	AcceptsReservations bool              `yaml:"accepts_reservations"`
	OpeningHours        map[string]string `yaml:"opening_hours"`
	Tables              []SeedTable       `yaml:"tables"`
}

type SeedTable struct {
	ID       string `yaml:"id"`
	Zone     string `yaml:"zone"`
	Capacity int    `yaml:"capacity"`
}

// ParseSeedFile decodes a seed document and checks that every venue has a
// name and every table a zone and a positive capacity.
func ParseSeedFile(data []byte) (*SeedFile, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, venue := range file.Venues {
		if venue.Name == "" {
			return nil, fmt.Errorf("venue %d: name is required", i)
		}
		for j, table := range venue.Tables {
			if table.Zone == "" {
				return nil, fmt.Errorf("venue %s table %d: zone is required", venue.Name, j)
			}
			if table.Capacity <= 0 {
				return nil, fmt.Errorf("venue %s table %d: capacity must be positive", venue.Name, j)
			}
		}
	}
	return &file, nil
}

// Seed upserts every venue of the file with its tables and returns how many
// venues were written. Venues are written one transaction each.
func (db *DB) Seed(ctx context.Context, file *SeedFile) (int, error) {
	for i, seed := range file.Venues {
		tables := make([]booking.Table, 0, len(seed.Tables))
		for _, table := range seed.Tables {
			tables = append(tables, booking.Table{
				ID:       table.ID,
				Zone:     table.Zone,
				Capacity: table.Capacity,
			})
		}
		if _, err := db.SaveVenue(ctx, booking.Venue{
			ID:                  seed.ID,
			Name:                seed.Name,
			Description:         seed.Description,
			Type:                seed.Type,
			Address:             seed.Address,
			Town:                seed.Town,
			Latitude:            seed.Latitude,
			Longitude:           seed.Longitude,
			OpeningHours:        seed.OpeningHours,
			AcceptsReservations: seed.AcceptsReservations,
			MenuURL:             seed.MenuURL,
		}, tables); err != nil {
			return i, err
		}
	}
	return len(file.Venues), nil
}
