// internal/api/venues/handlers.go
package venues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/api"
	"github.com/tablebook/tablebook/internal/api/apiutil"
	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/cache"
	appdb "github.com/tablebook/tablebook/internal/db"
)

const (
	venueQueryTimeout = 5 * time.Second
	venueIDParam      = "id"
	keepAliveInterval = 25 * time.Second
)

var (
	store     *appdb.DB
	engine    *booking.Engine
	refresher *booking.Refresher
	slotCache *cache.Availability

	shutdown     = make(chan struct{})
	shutdownOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
// The cache may be nil.
func InitHandlers(database *appdb.DB, bookingEngine *booking.Engine, availabilityRefresher *booking.Refresher, availabilityCache *cache.Availability) {
	store = database
	engine = bookingEngine
	refresher = availabilityRefresher
	slotCache = availabilityCache
}

type venueSummary struct {
	booking.Venue
	OpenNow bool `json:"open_now"`
}

type venueDetail struct {
	booking.Venue
	OpenNow bool           `json:"open_now"`
	Zones   []string       `json:"zones"`
	Reviews []appdb.Review `json:"reviews"`
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResponse struct {
	Review appdb.Review `json:"review"`
	Rating float64      `json:"venue_rating"`
}

// CloseStreams ends every open availability stream. It is registered as a
// server shutdown hook, since streams never go idle on their own.
func CloseStreams() {
	shutdownOnce.Do(func() { close(shutdown) })
}

// GET /api/v1/venues
func HandleVenueList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if store == nil || engine == nil {
		logger.Error().Msg("Venue handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	openNowOnly, err := apiutil.QueryBool(r, "open_now")
	if err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}
	town := strings.TrimSpace(r.URL.Query().Get("town"))

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	venues, err := store.ListVenues(ctx, town)
	if err != nil {
		apiutil.WriteError(w, logger, &booking.StoreError{Op: "list venues", Err: err})
		return
	}

	now := engine.Now()
	out := make([]venueSummary, 0, len(venues))
	for _, venue := range venues {
		open := booking.OpenAt(venue.OpeningHours, now)
		if openNowOnly && !open {
			continue
		}
		out = append(out, venueSummary{Venue: venue, OpenNow: open})
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"venues": out}); err != nil {
		logger.Error().Err(err).Msg("Failed to write venue list response")
	}
}

// GET /api/v1/venues/{id}
func HandleVenueDetail(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if store == nil || engine == nil {
		logger.Error().Msg("Venue handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	venueID, err := apiutil.PathValue(r, venueIDParam)
	if err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	venue, err := store.GetVenue(ctx, venueID)
	if err != nil {
		apiutil.WriteError(w, logger, storeError("get venue", err))
		return
	}
	tables, err := store.ListTables(ctx, venueID)
	if err != nil {
		apiutil.WriteError(w, logger, storeError("list tables", err))
		return
	}
	reviews, err := store.ListReviews(ctx, venueID)
	if err != nil {
		apiutil.WriteError(w, logger, storeError("list reviews", err))
		return
	}

	detail := venueDetail{
		Venue:   venue,
		OpenNow: booking.OpenAt(venue.OpeningHours, engine.Now()),
		Zones:   booking.Zones(tables),
		Reviews: reviews,
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, detail); err != nil {
		logger.Error().Err(err).Str("venue_id", venueID).Msg("Failed to write venue response")
	}
}

// GET /api/v1/venues/{id}/availability
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if engine == nil {
		logger.Error().Msg("Venue handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	query, err := availabilityQuery(r)
	if err != nil {
		apiutil.WriteError(w, logger, err)
		return
	}
	dateKey := query.Date.Format(booking.DateLayout)

	gen := slotCache.Generation(r.Context(), query.VenueID, dateKey)
	availability, hit := slotCache.Get(r.Context(), query.VenueID, dateKey, query.Zone)
	if !hit {
		availability = engine.Availability(r.Context(), query)
		slotCache.Set(r.Context(), query.Zone, gen, availability)
	}

	logger.Debug().
		Str("venue_id", query.VenueID).
		Str("date", dateKey).
		Str("zone", query.Zone).
		Bool("cache_hit", hit).
		Msg("Availability served")

	if err := apiutil.WriteJSON(w, http.StatusOK, availability); err != nil {
		logger.Error().Err(err).Str("venue_id", query.VenueID).Msg("Failed to write availability response")
	}
}

// GET /api/v1/venues/{id}/availability/stream
//
// Streams availability as server-sent events until the client disconnects.
func HandleAvailabilityStream(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if refresher == nil || engine == nil {
		logger.Error().Msg("Venue handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	query, err := availabilityQuery(r)
	if err != nil {
		apiutil.WriteError(w, logger, err)
		return
	}

	// Holds at most the latest result; the writer loop only needs the newest.
	updates := make(chan booking.Availability, 1)
	token, err := refresher.Start(r.Context(), query, func(availability booking.Availability) {
		for {
			select {
			case updates <- availability:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		apiutil.WriteError(w, logger, &booking.StoreError{Op: "start availability refresh", Err: err})
		return
	}
	defer refresher.Cancel(token)

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn().Err(err).Msg("Failed to clear write deadline for availability stream")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Error().Err(err).Msg("Streaming unsupported by response writer")
		return
	}

	logger.Info().
		Str("venue_id", query.VenueID).
		Str("token", token.String()).
		Msg("Availability stream opened")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info().Str("venue_id", query.VenueID).Msg("Availability stream closed")
			return
		case <-shutdown:
			logger.Info().Str("venue_id", query.VenueID).Msg("Availability stream closed for shutdown")
			return
		case availability := <-updates:
			if err := writeEvent(w, "availability", availability); err != nil {
				logger.Warn().Err(err).Str("venue_id", query.VenueID).Msg("Failed to write availability event")
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// POST /api/v1/venues/{id}/reviews
func HandleReviewCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if store == nil {
		logger.Error().Msg("Venue handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	identity, ok := api.CurrentIdentity(r.Context())
	if !ok {
		apiutil.WriteError(w, logger, apiutil.Unauthorized())
		return
	}
	venueID, err := apiutil.PathValue(r, venueIDParam)
	if err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}

	var req reviewRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	review, rating, err := store.AddReview(ctx, appdb.Review{
		VenueID:  venueID,
		UserID:   identity.UserID,
		UserName: identity.Name,
		Rating:   req.Rating,
		Comment:  strings.TrimSpace(req.Comment),
	})
	if err != nil {
		apiutil.WriteError(w, logger, storeError("add review", err))
		return
	}

	logger.Info().
		Str("venue_id", venueID).
		Str("review_id", review.ID).
		Float64("venue_rating", rating).
		Msg("Review added")

	if err := apiutil.WriteJSON(w, http.StatusCreated, reviewResponse{Review: review, Rating: rating}); err != nil {
		logger.Error().Err(err).Msg("Failed to write review response")
	}
}

// availabilityQuery reads the venue id, date and zone of an availability
// request. A missing date means today.
func availabilityQuery(r *http.Request) (booking.Query, error) {
	venueID, err := apiutil.PathValue(r, venueIDParam)
	if err != nil {
		return booking.Query{}, apiutil.BadRequest(err)
	}
	date := engine.Today()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		date, err = engine.ParseDate(raw)
		if err != nil {
			return booking.Query{}, err
		}
	}
	return booking.Query{
		VenueID: venueID,
		Date:    date,
		Zone:    strings.TrimSpace(r.URL.Query().Get("zone")),
	}, nil
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// storeError keeps domain errors and marks everything else as a store
// failure.
func storeError(op string, err error) error {
	var fieldErr booking.FieldError
	if errors.As(err, &fieldErr) ||
		errors.Is(err, booking.ErrVenueNotFound) ||
		errors.Is(err, booking.ErrReservationNotFound) ||
		errors.Is(err, booking.ErrStoreUnavailable) {
		return err
	}
	return &booking.StoreError{Op: op, Err: err}
}
