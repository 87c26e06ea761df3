package booking

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// BookRequest is a table booking submitted by a customer.
type BookRequest struct {
	VenueID       string
	Date          time.Time
	Zone          string
	Start         TimeOfDay
	PartySize     int
	UserID        string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
}

// Book re-validates availability for the requested slot, assigns the smallest
// free table in the zone that seats the party and persists the reservation.
// The check and the write happen inside one Store.Atomically section, so two
// concurrent calls can never both claim the same table for overlapping times.
func (e *Engine) Book(ctx context.Context, req BookRequest) (Reservation, error) {
	req, err := e.normalizeBookRequest(req)
	if err != nil {
		return Reservation{}, err
	}

	date := e.day(req.Date)
	dateKey := date.Format(DateLayout)
	logger := e.logger(ctx, req.VenueID).With().
		Str("date", dateKey).
		Str("zone", req.Zone).
		Str("start_time", req.Start.String()).
		Int("party_size", req.PartySize).
		Logger()

	var created Reservation
	err = e.store.Atomically(ctx, func(s Store) error {
		venue, err := s.GetVenue(ctx, req.VenueID)
		if err != nil {
			return storeErr("get venue", err)
		}
		if !venue.AcceptsReservations {
			return ErrNotAccepting
		}

		window := Resolve(venue.OpeningHours, date, e.seating)
		if window.Closed {
			return window.Reason
		}
		if !e.onGrid(window, req.Start) {
			return ErrSlotUnavailable
		}
		now := e.clock.Now()
		if req.Start.On(date).Before(now) {
			return ErrSlotUnavailable
		}

		tables, err := s.ListTables(ctx, req.VenueID)
		if err != nil {
			return storeErr("list tables", err)
		}
		zoneTables := tablesInZone(tables, req.Zone)
		if len(zoneTables) == 0 {
			return ErrNoTablesInZone
		}

		blocks, err := e.occupancy(ctx, s, req.VenueID, date, window)
		if err != nil {
			return storeErr("list reservations", err)
		}

		table, ok := bestFit(e.freeTables(zoneTables, blocks, req.Start), req.PartySize)
		if !ok {
			return ErrNoCapacity
		}

		record := Reservation{
			VenueID:       req.VenueID,
			TableID:       table.ID,
			Date:          dateKey,
			Start:         req.Start,
			End:           req.Start.Add(e.seating),
			PartySize:     req.PartySize,
			UserID:        req.UserID,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			CustomerEmail: req.CustomerEmail,
			CreatedAt:     now.UTC(),
		}
		id, err := s.CreateReservation(ctx, record)
		if err != nil {
			return storeErr("create reservation", err)
		}
		record.ID = id
		created = record
		return nil
	})
	if err != nil {
		err = storeErr("book", err)
		if errors.Is(err, ErrStoreUnavailable) {
			logger.Error().Err(err).Msg("Booking failed")
		} else {
			logger.Info().Err(err).Msg("Booking rejected")
		}
		return Reservation{}, err
	}

	logger.Info().
		Str("reservation_id", created.ID).
		Str("table_id", created.TableID).
		Msg("Reservation committed")
	return created, nil
}

// Cancel deletes a reservation, freeing its table.
func (e *Engine) Cancel(ctx context.Context, venueID, reservationID string) error {
	if strings.TrimSpace(venueID) == "" {
		return FieldError{Field: "venue_id", Reason: "is required"}
	}
	if strings.TrimSpace(reservationID) == "" {
		return FieldError{Field: "reservation_id", Reason: "is required"}
	}
	if err := e.store.DeleteReservation(ctx, venueID, reservationID); err != nil {
		return storeErr("delete reservation", err)
	}
	logger := e.logger(ctx, venueID)
	logger.Info().Str("reservation_id", reservationID).Msg("Reservation cancelled")
	return nil
}

// bestFit picks the smallest table seating partySize, lowest ID on ties.
func bestFit(free []Table, partySize int) (Table, bool) {
	eligible := make([]Table, 0, len(free))
	for _, table := range free {
		if table.Capacity >= partySize {
			eligible = append(eligible, table)
		}
	}
	if len(eligible) == 0 {
		return Table{}, false
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Capacity != eligible[j].Capacity {
			return eligible[i].Capacity < eligible[j].Capacity
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible[0], true
}

func (e *Engine) normalizeBookRequest(req BookRequest) (BookRequest, error) {
	req.VenueID = strings.TrimSpace(req.VenueID)
	req.Zone = strings.TrimSpace(req.Zone)
	req.UserID = strings.TrimSpace(req.UserID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)

	switch {
	case req.VenueID == "":
		return req, FieldError{Field: "venue_id", Reason: "is required"}
	case req.Date.IsZero():
		return req, FieldError{Field: "date", Reason: "is required"}
	case req.Zone == "":
		return req, FieldError{Field: "zone", Reason: "is required"}
	case req.PartySize <= 0:
		return req, FieldError{Field: "party_size", Reason: "must be greater than 0"}
	case req.UserID == "":
		return req, FieldError{Field: "user_id", Reason: "is required"}
	case req.CustomerName == "":
		return req, FieldError{Field: "customer_name", Reason: "is required"}
	}
	if req.Start < 0 || req.Start >= minutesPerDay {
		return req, FieldError{Field: "start_time", Reason: "must be a time of day"}
	}
	if e.day(req.Date).Before(e.Today()) {
		return req, FieldError{Field: "date", Reason: "must not be in the past"}
	}

	if req.CustomerPhone != "" {
		phone, err := NormalizePhone(req.CustomerPhone, e.phoneRegion)
		if err != nil {
			return req, FieldError{Field: "customer_phone", Reason: "must be a valid phone number"}
		}
		req.CustomerPhone = phone
	}
	if req.CustomerEmail != "" {
		addr, err := mail.ParseAddress(req.CustomerEmail)
		if err != nil {
			return req, FieldError{Field: "customer_email", Reason: "must be a valid email address"}
		}
		req.CustomerEmail = addr.Address
	}
	return req, nil
}
