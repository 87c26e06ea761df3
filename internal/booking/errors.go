package booking

import (
	"errors"
	"fmt"
)

var (
	ErrClosedVenue         = errors.New("venue is closed on the selected date")
	ErrNoTablesInZone      = errors.New("no tables in the selected zone")
	ErrMalformedSchedule   = errors.New("malformed opening hours")
	ErrNoCapacity          = errors.New("no table available for the party size")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrVenueNotFound       = errors.New("venue not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotAccepting        = errors.New("venue does not accept reservations")
	ErrSlotUnavailable     = errors.New("selected time is not bookable")
)

// FieldError describes a single invalid input field. It matches ErrInvalidInput.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e FieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StoreError wraps a backend failure. It matches ErrStoreUnavailable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

var domainErrors = []error{
	ErrClosedVenue,
	ErrNoTablesInZone,
	ErrMalformedSchedule,
	ErrNoCapacity,
	ErrStoreUnavailable,
	ErrInvalidInput,
	ErrVenueNotFound,
	ErrReservationNotFound,
	ErrNotAccepting,
	ErrSlotUnavailable,
}

// storeErr passes domain errors through untouched and wraps anything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, domainErr := range domainErrors {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}
