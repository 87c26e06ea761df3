// cmd/server/server.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/api"
	"github.com/tablebook/tablebook/internal/api/reservations"
	"github.com/tablebook/tablebook/internal/api/venues"
	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/cache"
	"github.com/tablebook/tablebook/internal/config"
	"github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/email"
	"github.com/tablebook/tablebook/internal/events"
	"github.com/tablebook/tablebook/internal/ratelimit"
	"github.com/tablebook/tablebook/internal/scheduler"
)

// application holds the long-lived collaborators shared by the handlers.
type application struct {
	db        *db.DB
	engine    *booking.Engine
	refresher *booking.Refresher
	redis     *redis.Client
	cache     *cache.Availability
	publisher events.Publisher
	email     email.EmailSender
	limiter   *ratelimit.Limiter

	closeOnce sync.Once
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app := &application{db: database}

	app.engine, err = booking.NewEngine(database, booking.Options{
		Step:        cfg.Booking.SlotStep(),
		Seating:     cfg.Booking.Seating(),
		Location:    loc,
		PhoneRegion: cfg.Booking.PhoneRegion,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create booking engine: %w", err)
	}

	app.refresher, err = booking.NewRefresher(app.engine, cfg.Booking.RefreshInterval)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create availability refresher: %w", err)
	}

	app.redis = cache.NewRedisClient(ctx, cfg.Redis)
	app.cache = cache.NewAvailability(app.redis, cfg.Redis.CacheTTL)

	app.publisher = events.Noop{}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, reservation events disabled")
		} else {
			app.publisher = publisher
		}
	}

	if cfg.Email.Sender != "" {
		sesClient, err := email.NewSESClient(ctx, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			log.Warn().Err(err).Msg("SES client unavailable, reservation emails disabled")
		} else {
			app.email = sesClient
		}
	}

	app.limiter = ratelimit.New(&ratelimit.Config{
		MaxPerHour:   cfg.RateLimit.BookMaxPerHour,
		MaxIPPerHour: cfg.RateLimit.BookMaxIPPerHour,
		Window:       time.Hour,
	})

	if err := scheduler.Init(loc); err != nil {
		app.Close()
		return nil, fmt.Errorf("initialize scheduler: %w", err)
	}
	if err := scheduler.RegisterReminderJobs(database, app.email, scheduler.ReminderOptions{
		CronExpr:    cfg.Booking.ReminderCron,
		HoursBefore: cfg.Booking.ReminderHoursBefore,
		Location:    loc,
		Sender:      cfg.Email.Sender,
	}); err != nil {
		app.Close()
		return nil, fmt.Errorf("register reminder jobs: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		app.Close()
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	venues.InitHandlers(database, app.engine, app.refresher, app.cache)
	reservations.InitHandlers(reservations.Deps{
		DB:          database,
		Engine:      app.engine,
		Cache:       app.cache,
		Events:      app.publisher,
		Email:       app.email,
		EmailSender: cfg.Email.Sender,
		Limiter:     app.limiter,
		TrustProxy:  cfg.RateLimit.TrustProxy,
	})

	log.Info().
		Bool("cache_enabled", app.redis != nil).
		Bool("events_enabled", cfg.RabbitMQ.URL != "").
		Bool("email_enabled", app.email != nil).
		Str("timezone", loc.String()).
		Msg("Application initialized")
	return app, nil
}

// Close releases every collaborator. It is safe to call more than once.
func (a *application) Close() {
	a.closeOnce.Do(func() {
		if err := scheduler.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotInitialized) {
			log.Warn().Err(err).Msg("Failed to stop scheduler")
		}
		if a.refresher != nil {
			if err := a.refresher.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to stop availability refresher")
			}
		}
		if a.limiter != nil {
			a.limiter.Close()
		}
		if a.publisher != nil {
			if err := a.publisher.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close event publisher")
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close redis client")
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}
	})
}

func newServer(cfg *config.Config, app *application) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithIdentity,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router, app)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	server.RegisterOnShutdown(venues.CloseStreams)
	return server
}

func registerRoutes(mux *http.ServeMux, app *application) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.db.PingContext(ctx); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Venue routes
	mux.HandleFunc("GET /api/v1/venues", venues.HandleVenueList)
	mux.HandleFunc("GET /api/v1/venues/{id}", venues.HandleVenueDetail)
	mux.HandleFunc("GET /api/v1/venues/{id}/availability", venues.HandleAvailability)
	mux.HandleFunc("GET /api/v1/venues/{id}/availability/stream", venues.HandleAvailabilityStream)
	mux.HandleFunc("POST /api/v1/venues/{id}/reviews", venues.HandleReviewCreate)
	mux.HandleFunc("PUT /api/v1/venues/{id}/favorite", venues.HandleFavoriteAdd)
	mux.HandleFunc("DELETE /api/v1/venues/{id}/favorite", venues.HandleFavoriteRemove)
	mux.HandleFunc("GET /api/v1/me/favorites", venues.HandleMyFavorites)

	// Reservation routes
	mux.HandleFunc("POST /api/v1/venues/{id}/reservations", reservations.HandleReservationCreate)
	mux.HandleFunc("DELETE /api/v1/venues/{id}/reservations/{reservation_id}", reservations.HandleReservationCancel)
	mux.HandleFunc("GET /api/v1/me/reservations", reservations.HandleMyReservations)
}
