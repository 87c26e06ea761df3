package venues

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/api"
	"github.com/tablebook/tablebook/internal/api/apiutil"
	"github.com/tablebook/tablebook/internal/booking"
)

// PUT /api/v1/venues/{id}/favorite
func HandleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	handleFavorite(w, r, true)
}

// DELETE /api/v1/venues/{id}/favorite
func HandleFavoriteRemove(w http.ResponseWriter, r *http.Request) {
	handleFavorite(w, r, false)
}

func handleFavorite(w http.ResponseWriter, r *http.Request, add bool) {
	logger := log.Ctx(r.Context())
	if store == nil {
		logger.Error().Msg("Venue handlers not initialized")
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

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	if add {
		err = store.AddFavorite(ctx, userID, venueID)
	} else {
		err = store.RemoveFavorite(ctx, userID, venueID)
	}
	if err != nil {
		apiutil.WriteError(w, logger, storeError("update favorites", err))
		return
	}

	logger.Debug().Str("venue_id", venueID).Bool("favorite", add).Msg("Favorites updated")
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/me/favorites
func HandleMyFavorites(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if store == nil || engine == nil {
		logger.Error().Msg("Venue handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	userID := api.CurrentUserID(r.Context())
	if userID == "" {
		apiutil.WriteError(w, logger, apiutil.Unauthorized())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), venueQueryTimeout)
	defer cancel()

	venues, err := store.ListFavorites(ctx, userID)
	if err != nil {
		apiutil.WriteError(w, logger, storeError("list favorites", err))
		return
	}

	now := engine.Now()
	out := make([]venueSummary, 0, len(venues))
	for _, venue := range venues {
		out = append(out, venueSummary{Venue: venue, OpenNow: booking.OpenAt(venue.OpeningHours, now)})
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"venues": out}); err != nil {
		logger.Error().Err(err).Msg("Failed to write favorites response")
	}
}
