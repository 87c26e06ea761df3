// internal/api/reservations/handlers.go
package reservations

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/api"
	"github.com/tablebook/tablebook/internal/api/apiutil"
	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/cache"
	appdb "github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/email"
	"github.com/tablebook/tablebook/internal/events"
	"github.com/tablebook/tablebook/internal/ratelimit"
)

const (
	reservationQueryTimeout = 10 * time.Second
	venueIDParam            = "id"
	reservationIDParam      = "reservation_id"
)

// Deps are the collaborators of the reservation handlers. Cache, Events,
// Email and Limiter are optional.
type Deps struct {
	DB          *appdb.DB
	Engine      *booking.Engine
	Cache       *cache.Availability
	Events      events.Publisher
	Email       email.EmailSender
	EmailSender string
	Limiter     *ratelimit.Limiter
	TrustProxy  bool
}

var deps Deps

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	deps = d
}

type reservationRequest struct {
	Date          string `json:"date"`
	Zone          string `json:"zone"`
	StartTime     string `json:"start_time"`
	PartySize     int    `json:"party_size"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
}

type reservationResponse struct {
	booking.Reservation
	Zone string `json:"zone"`
}

type myReservationsResponse struct {
	Active []appdb.UserReservation `json:"active"`
	Past   []appdb.UserReservation `json:"past"`
}

// POST /api/v1/venues/{id}/reservations
func HandleReservationCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if deps.DB == nil || deps.Engine == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	userID := api.CurrentUserID(r.Context())
	if userID == "" {
		apiutil.WriteError(w, logger, apiutil.Unauthorized())
		return
	}
	venueID, err := apiutil.PathValue(r, venueIDParam)
	if err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}

	if deps.Limiter != nil {
		ip := ratelimit.GetClientIP(r, deps.TrustProxy)
		if result := deps.Limiter.Allow(userID, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), userID, ip, result)
			apiutil.WriteError(w, logger, apiutil.TooManyRequests(result.RetryAfter))
			return
		}
	}

	var req reservationRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}
	date, err := deps.Engine.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		apiutil.WriteError(w, logger, err)
		return
	}
	start, err := booking.ParseTimeOfDay(req.StartTime)
	if err != nil {
		apiutil.WriteError(w, logger, booking.FieldError{Field: "start_time", Reason: "must be an HH:MM time"})
		return
	}
	zone := strings.TrimSpace(req.Zone)

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	created, err := deps.Engine.Book(ctx, booking.BookRequest{
		VenueID:       venueID,
		Date:          date,
		Zone:          zone,
		Start:         start,
		PartySize:     req.PartySize,
		UserID:        userID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		apiutil.WriteError(w, logger, err)
		return
	}

	deps.Cache.Invalidate(ctx, created.VenueID, created.Date)
	publish(ctx, logger, events.TypeReservationCreated, created)

	if created.CustomerEmail != "" {
		if details, ok := emailDetails(ctx, logger, created, zone); ok {
			email.SendConfirmationEmail(ctx, deps.Email, created.CustomerEmail, email.BuildConfirmationEmail(details), logger)
		}
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, reservationResponse{Reservation: created, Zone: zone}); err != nil {
		logger.Error().Err(err).Str("reservation_id", created.ID).Msg("Failed to write reservation response")
	}
}

// DELETE /api/v1/venues/{id}/reservations/{reservation_id}
func HandleReservationCancel(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if deps.DB == nil || deps.Engine == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	userID := api.CurrentUserID(r.Context())
	if userID == "" {
		apiutil.WriteError(w, logger, apiutil.Unauthorized())
		return
	}
	venueID, err := apiutil.PathValue(r, venueIDParam)
	if err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}
	reservationID, err := apiutil.PathValue(r, reservationIDParam)
	if err != nil {
		apiutil.WriteError(w, logger, apiutil.BadRequest(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	existing, err := deps.DB.GetReservation(ctx, venueID, reservationID)
	if err != nil {
		if !errors.Is(err, booking.ErrReservationNotFound) {
			err = &booking.StoreError{Op: "get reservation", Err: err}
		}
		apiutil.WriteError(w, logger, err)
		return
	}
	if existing.UserID != userID {
		logger.Warn().
			Str("reservation_id", reservationID).
			Str("owner_id", existing.UserID).
			Msg("Cancellation denied: not the owner")
		apiutil.WriteError(w, logger, apiutil.Forbidden())
		return
	}

	if err := deps.Engine.Cancel(ctx, venueID, reservationID); err != nil {
		apiutil.WriteError(w, logger, err)
		return
	}

	deps.Cache.Invalidate(ctx, existing.VenueID, existing.Date)
	publish(ctx, logger, events.TypeReservationCancelled, existing)

	if existing.CustomerEmail != "" {
		if details, ok := emailDetails(ctx, logger, existing, ""); ok {
			email.SendCancellationEmail(ctx, deps.Email, existing.CustomerEmail, email.BuildCancellationEmail(details), deps.EmailSender, logger)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/me/reservations
func HandleMyReservations(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if deps.DB == nil || deps.Engine == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	userID := api.CurrentUserID(r.Context())
	if userID == "" {
		apiutil.WriteError(w, logger, apiutil.Unauthorized())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	all, err := deps.DB.ListUserReservations(ctx, userID)
	if err != nil {
		apiutil.WriteError(w, logger, &booking.StoreError{Op: "list user reservations", Err: err})
		return
	}

	resp, err := splitByEnd(all, deps.Engine.Now(), deps.Engine.Location())
	if err != nil {
		apiutil.WriteError(w, logger, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservations response")
	}
}

// splitByEnd separates reservations whose block has not ended yet from past
// ones. Active reservations are ordered soonest first, past ones newest
// first.
func splitByEnd(all []appdb.UserReservation, now time.Time, loc *time.Location) (myReservationsResponse, error) {
	resp := myReservationsResponse{
		Active: []appdb.UserReservation{},
		Past:   []appdb.UserReservation{},
	}
	for _, reservation := range all {
		endsAt, err := reservation.EndsAt(loc)
		if err != nil {
			return myReservationsResponse{}, err
		}
		if endsAt.After(now) {
			resp.Active = append(resp.Active, reservation)
		} else {
			resp.Past = append(resp.Past, reservation)
		}
	}
	slices.SortFunc(resp.Active, func(a, b appdb.UserReservation) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.Start, b.Start))
	})
	slices.SortFunc(resp.Past, func(a, b appdb.UserReservation) int {
		return cmp.Or(cmp.Compare(b.Date, a.Date), cmp.Compare(b.Start, a.Start))
	})
	return resp, nil
}

func publish(ctx context.Context, logger *zerolog.Logger, eventType string, reservation booking.Reservation) {
	event := events.NewReservationEvent(eventType, reservation, time.Now())
	if err := deps.Events.Publish(ctx, event); err != nil {
		logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("reservation_id", reservation.ID).
			Msg("Failed to publish reservation event")
	}
}

// emailDetails loads the venue and table shown in reservation emails. zone
// may be empty, in which case it is looked up from the table.
func emailDetails(ctx context.Context, logger *zerolog.Logger, reservation booking.Reservation, zone string) (email.ReservationDetails, bool) {
	if deps.Email == nil {
		return email.ReservationDetails{}, false
	}
	loc := deps.Engine.Location()

	venue, err := deps.DB.GetVenue(ctx, reservation.VenueID)
	if err != nil {
		logger.Error().Err(err).Str("reservation_id", reservation.ID).Msg("Failed to load venue for reservation email")
		return email.ReservationDetails{}, false
	}
	if zone == "" {
		tables, err := deps.DB.ListTables(ctx, reservation.VenueID)
		if err == nil {
			for _, table := range tables {
				if table.ID == reservation.TableID {
					zone = table.Zone
					break
				}
			}
		}
	}

	date, err := time.ParseInLocation(booking.DateLayout, reservation.Date, loc)
	if err != nil {
		logger.Error().Err(err).Str("reservation_id", reservation.ID).Msg("Failed to parse reservation date for email")
		return email.ReservationDetails{}, false
	}
	endsAt, err := reservation.EndsAt(loc)
	if err != nil {
		return email.ReservationDetails{}, false
	}
	dateLabel, timeRange := email.FormatDateTimeRange(reservation.Start.On(date), endsAt)

	return email.ReservationDetails{
		VenueName:    venue.Name,
		VenueAddress: venue.Address,
		CustomerName: reservation.CustomerName,
		Date:         dateLabel,
		TimeRange:    timeRange,
		Zone:         zone,
		PartySize:    reservation.PartySize,
	}, true
}
