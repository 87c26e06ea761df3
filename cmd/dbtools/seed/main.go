// cmd/dbtools/seed/main.go
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/config"
	"github.com/tablebook/tablebook/internal/db"
)

func main() {
	var (
		configPath = flag.String("config", "config/app.yaml", "Path to app.yaml")
		seedPath   = flag.String("file", "config/seed.example.yaml", "Path to the venue seed file")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *seedPath).Msg("Failed to read seed file")
	}
	file, err := db.ParseSeedFile(data)
	if err != nil {
		log.Fatal().Err(err).Str("file", *seedPath).Msg("Invalid seed file")
	}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := database.Seed(ctx, file)
	if err != nil {
		log.Error().Err(err).Int("seeded", n).Msg("Seeding failed")
		database.Close()
		os.Exit(1)
	}
	log.Info().Int("venues", n).Str("database", cfg.Database.Filename).Msg("Seed complete")
}
