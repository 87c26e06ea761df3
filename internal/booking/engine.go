package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Status classifies the outcome of an availability lookup.
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosed      Status = "closed"
	StatusNoTables    Status = "no_tables"
	StatusUnavailable Status = "unavailable"
)

// Query selects the venue, date and zone to compute availability for.
type Query struct {
	VenueID string
	Date    time.Time
	Zone    string
}

// Availability is the slot grid for one venue, date and zone.
type Availability struct {
	VenueID       string   `json:"venue_id"`
	Date          string   `json:"date"`
	Status        Status   `json:"status"`
	Zone          string   `json:"zone"`
	RequestedZone string   `json:"requested_zone"`
	ZoneChanged   bool     `json:"zone_changed"`
	Zones         []string `json:"zones"`
	Slots         []Slot   `json:"slots"`
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Step        time.Duration
	Seating     time.Duration
	Clock       Clock
	Location    *time.Location
	PhoneRegion string
}

// Engine generates availability and allocates tables against a Store.
type Engine struct {
	store       Store
	step        time.Duration
	seating     time.Duration
	clock       Clock
	loc         *time.Location
	phoneRegion string
}

func NewEngine(store Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("booking engine requires a store")
	}
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.Seating <= 0 {
		opts.Seating = DefaultSeating
	}
	if opts.Step < time.Minute || opts.Seating < time.Minute {
		return nil, fmt.Errorf("slot step and seating must be at least one minute")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock(opts.Location)
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = DefaultPhoneRegion
	}
	return &Engine{
		store:       store,
		step:        opts.Step,
		seating:     opts.Seating,
		clock:       opts.Clock,
		loc:         opts.Location,
		phoneRegion: opts.PhoneRegion,
	}, nil
}

// Location returns the venue-local time zone the engine works in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Seating returns the length of a reservation block.
func (e *Engine) Seating() time.Duration {
	return e.seating
}

// ParseDate parses a "2006-01-02" calendar date in the engine's location.
func (e *Engine) ParseDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, raw, e.loc)
	if err != nil {
		return time.Time{}, FieldError{Field: "date", Reason: "must be a YYYY-MM-DD date"}
	}
	return date, nil
}

// Now returns the current venue-local time.
func (e *Engine) Now() time.Time {
	return e.clock.Now().In(e.loc)
}

// Today returns midnight of the current venue-local date.
func (e *Engine) Today() time.Time {
	return e.day(e.clock.Now())
}

func (e *Engine) day(ts time.Time) time.Time {
	ts = ts.In(e.loc)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, e.loc)
}

func (e *Engine) logger(ctx context.Context, venueID string) zerolog.Logger {
	return log.Ctx(ctx).With().
		Str("component", "booking_engine").
		Str("venue_id", venueID).
		Logger()
}

// Availability lists the bookable slots for the query. Lookup failures
// degrade to an empty result with a non-open Status; they are logged, not
// returned. When the requested zone has no tables the first zone that does is
// used instead and ZoneChanged is set.
func (e *Engine) Availability(ctx context.Context, q Query) Availability {
	date := e.day(q.Date)
	result := Availability{
		VenueID:       q.VenueID,
		Date:          date.Format(DateLayout),
		Zone:          q.Zone,
		RequestedZone: q.Zone,
		Zones:         []string{},
		Slots:         []Slot{},
	}
	logger := e.logger(ctx, q.VenueID).With().Str("date", result.Date).Str("zone", q.Zone).Logger()

	venue, err := e.store.GetVenue(ctx, q.VenueID)
	if err != nil {
		if errors.Is(err, ErrVenueNotFound) {
			logger.Warn().Msg("Availability requested for unknown venue")
		} else {
			logger.Error().Err(err).Msg("Failed to load venue for availability")
		}
		result.Status = StatusUnavailable
		return result
	}
	if !venue.AcceptsReservations {
		logger.Debug().Msg("Venue does not accept reservations")
		result.Status = StatusUnavailable
		return result
	}

	window := Resolve(venue.OpeningHours, date, e.seating)
	if window.Closed {
		if errors.Is(window.Reason, ErrMalformedSchedule) {
			logger.Warn().Err(window.Reason).Msg("Venue opening hours could not be parsed")
		}
		result.Status = StatusClosed
		return result
	}

	tables, err := e.store.ListTables(ctx, q.VenueID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load tables for availability")
		result.Status = StatusUnavailable
		return result
	}
	result.Zones = Zones(tables)
	if len(tables) == 0 {
		result.Status = StatusNoTables
		return result
	}

	zoneTables := tablesInZone(tables, q.Zone)
	if len(zoneTables) == 0 {
		result.Zone = result.Zones[0]
		result.ZoneChanged = true
		zoneTables = tablesInZone(tables, result.Zone)
		logger.Debug().Str("fallback_zone", result.Zone).Msg("Requested zone has no tables")
	}

	blocks, err := e.occupancy(ctx, e.store, q.VenueID, date, window)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load reservations for availability")
		result.Status = StatusUnavailable
		return result
	}

	for _, start := range e.slotStarts(window, date) {
		free := e.freeTables(zoneTables, blocks, start)
		result.Slots = append(result.Slots, Slot{
			Time:        start,
			Available:   len(free) > 0,
			FreeTables:  len(free),
			TotalTables: len(zoneTables),
		})
	}
	result.Status = StatusOpen
	return result
}

// slotStarts enumerates the grid from the window start through its last
// bookable start, skipping times already past. A past date yields no slots.
func (e *Engine) slotStarts(window Window, date time.Time) []TimeOfDay {
	now := e.clock.Now().In(e.loc)
	if date.Before(e.day(now)) {
		return nil
	}

	var starts []TimeOfDay
	for i := 0; ; i++ {
		start := window.Start.Add(time.Duration(i) * e.step)
		if start > window.LastStart {
			break
		}
		if start.On(date).Before(now) {
			continue
		}
		starts = append(starts, start)
	}
	return starts
}

func (e *Engine) onGrid(window Window, start TimeOfDay) bool {
	stepMinutes := TimeOfDay(e.step / time.Minute)
	return window.Contains(start) && (start-window.Start)%stepMinutes == 0
}

// block is a table's occupied [start, end) interval relative to the
// midnight that opens the day being checked.
type block struct {
	tableID    string
	start, end TimeOfDay
}

// occupancy loads the date's reservations once. When the grid opens within
// one seating of midnight, the previous day's reservations are loaded too and
// those running past midnight occupy their tables until they end.
func (e *Engine) occupancy(ctx context.Context, s Store, venueID string, date time.Time, window Window) ([]block, error) {
	reservations, err := s.ListReservations(ctx, venueID, date.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	blocks := make([]block, 0, len(reservations))
	for _, r := range reservations {
		start, end := r.Interval()
		blocks = append(blocks, block{tableID: r.TableID, start: start, end: end})
	}

	if window.Start >= TimeOfDay(e.seating/time.Minute) {
		return blocks, nil
	}
	previous, err := s.ListReservations(ctx, venueID, date.AddDate(0, 0, -1).Format(DateLayout))
	if err != nil {
		return nil, err
	}
	for _, r := range previous {
		start, end := r.Interval()
		if end <= minutesPerDay {
			continue
		}
		blocks = append(blocks, block{tableID: r.TableID, start: start - minutesPerDay, end: end - minutesPerDay})
	}
	return blocks, nil
}

// freeTables returns the tables with no occupied block overlapping the
// seating starting at start.
func (e *Engine) freeTables(tables []Table, blocks []block, start TimeOfDay) []Table {
	end := start.Add(e.seating)
	occupied := make(map[string]struct{})
	for _, b := range blocks {
		if start < b.end && end > b.start {
			occupied[b.tableID] = struct{}{}
		}
	}

	free := make([]Table, 0, len(tables))
	for _, table := range tables {
		if _, ok := occupied[table.ID]; ok {
			continue
		}
		free = append(free, table)
	}
	return free
}
