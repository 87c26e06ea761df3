package apiutil

import (
	"errors"
	"net/http"
	"time"

	"github.com/tablebook/tablebook/internal/booking"
)

// Error codes returned with 409 responses so clients can tell the
// rejection reasons apart.
const (
	CodeClosedVenue     = "closed_venue"
	CodeNoTablesInZone  = "no_tables_in_zone"
	CodeSlotUnavailable = "slot_unavailable"
	CodeNoCapacity      = "no_capacity"
	CodeNotAccepting    = "not_accepting"
	CodeRateLimited     = "rate_limited"
)

// FromError maps booking errors to HTTP responses.
func FromError(err error) HandlerError {
	var fieldErr booking.FieldError
	switch {
	case errors.As(err, &fieldErr):
		return HandlerError{Status: http.StatusBadRequest, Message: fieldErr.Error(), Err: err}
	case errors.Is(err, booking.ErrInvalidInput):
		return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	case errors.Is(err, booking.ErrVenueNotFound):
		return HandlerError{Status: http.StatusNotFound, Message: "Venue not found", Err: err}
	case errors.Is(err, booking.ErrReservationNotFound):
		return HandlerError{Status: http.StatusNotFound, Message: "Reservation not found", Err: err}
	case errors.Is(err, booking.ErrClosedVenue), errors.Is(err, booking.ErrMalformedSchedule):
		return HandlerError{Status: http.StatusConflict, Code: CodeClosedVenue, Message: "The venue is closed on the selected date", Err: err}
	case errors.Is(err, booking.ErrNoTablesInZone):
		return HandlerError{Status: http.StatusConflict, Code: CodeNoTablesInZone, Message: "The venue has no tables in the selected zone", Err: err}
	case errors.Is(err, booking.ErrSlotUnavailable):
		return HandlerError{Status: http.StatusConflict, Code: CodeSlotUnavailable, Message: "The selected time cannot be booked", Err: err}
	case errors.Is(err, booking.ErrNoCapacity):
		return HandlerError{Status: http.StatusConflict, Code: CodeNoCapacity, Message: "No table is free for this party size", Err: err}
	case errors.Is(err, booking.ErrNotAccepting):
		return HandlerError{Status: http.StatusConflict, Code: CodeNotAccepting, Message: "The venue does not accept reservations", Err: err}
	case errors.Is(err, booking.ErrStoreUnavailable):
		return HandlerError{Status: http.StatusServiceUnavailable, Message: "Service temporarily unavailable", Err: err}
	default:
		return HandlerError{Status: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
	}
}

// BadRequest wraps a request parsing failure.
func BadRequest(err error) HandlerError {
	return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

// Unauthorized is returned to anonymous callers of endpoints that need a user.
func Unauthorized() HandlerError {
	return HandlerError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
}

// Forbidden is returned when the caller does not own the resource.
func Forbidden() HandlerError {
	return HandlerError{Status: http.StatusForbidden, Message: "Forbidden"}
}

// TooManyRequests is returned when a caller exceeds the booking rate limit.
func TooManyRequests(retryAfter time.Duration) HandlerError {
	return HandlerError{
		Status:     http.StatusTooManyRequests,
		Code:       CodeRateLimited,
		Message:    "Too many booking attempts, try again later",
		RetryAfter: retryAfter,
	}
}
