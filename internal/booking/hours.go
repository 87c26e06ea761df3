package booking

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSeating is the length of a reservation block: 90 minutes less a
	// one-minute buffer so back-to-back bookings do not touch.
	DefaultSeating = 89 * time.Minute

	// DefaultStep is the spacing of the generated slot grid.
	DefaultStep = 10 * time.Minute
)

var (
	// Closing times before this are read as past midnight.
	postMidnightCutoff = At(5, 0)
	// Last bookable start for venues that close past midnight.
	postMidnightLastStart = At(23, 30)
)

// DayNames maps time.Weekday (Sunday first) to the key used in a venue's
// opening hours.
var DayNames = [7]string{"Duminica", "Luni", "Marti", "Miercuri", "Joi", "Vineri", "Sambata"}

var closedMarkers = map[string]struct{}{
	"inchis": {},
	"închis": {},
	"closed": {},
}

// range separators, longest first
var rangeSeparators = []string{"–", "—", "-"}

// Hours is one day's parsed opening hours.
type Hours struct {
	Closed bool
	Open   TimeOfDay
	Close  TimeOfDay
}

// ParseHours parses a day entry such as "11:00-23:30", "17.00 – 02.00" or
// "Inchis".
func ParseHours(raw string) (Hours, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Hours{Closed: true}, nil
	}
	if _, ok := closedMarkers[strings.ToLower(raw)]; ok {
		return Hours{Closed: true}, nil
	}

	var startRaw, endRaw string
	found := false
	for _, sep := range rangeSeparators {
		if startRaw, endRaw, found = strings.Cut(raw, sep); found {
			break
		}
	}
	if !found {
		return Hours{}, fmt.Errorf("%w: %q has no range separator", ErrMalformedSchedule, raw)
	}

	open, err := ParseTimeOfDay(startRaw)
	if err != nil {
		return Hours{}, fmt.Errorf("%w: %v", ErrMalformedSchedule, err)
	}
	closing, err := ParseTimeOfDay(endRaw)
	if err != nil {
		return Hours{}, fmt.Errorf("%w: %v", ErrMalformedSchedule, err)
	}
	return Hours{Open: open, Close: closing}, nil
}

// Window is the bookable window of a single day.
type Window struct {
	Closed    bool
	Reason    error
	Start     TimeOfDay
	LastStart TimeOfDay
}

// Contains reports whether t is a start time inside the window.
func (w Window) Contains(t TimeOfDay) bool {
	return !w.Closed && t >= w.Start && t <= w.LastStart
}

// DayEntry returns the opening-hours entry for the date's weekday, trying the
// localized day name first and the English one second.
func DayEntry(openingHours map[string]string, date time.Time) (string, bool) {
	weekday := date.Weekday()
	if entry, ok := openingHours[DayNames[weekday]]; ok {
		return entry, true
	}
	entry, ok := openingHours[weekday.String()]
	return entry, ok
}

// Resolve determines whether a venue is open on date and, if so, the range of
// start times a reservation of the given seating length may use. It never
// fails: unknown or unparseable entries resolve to a closed window.
func Resolve(openingHours map[string]string, date time.Time, seating time.Duration) Window {
	entry, ok := DayEntry(openingHours, date)
	if !ok {
		return Window{Closed: true, Reason: ErrClosedVenue}
	}
	hours, err := ParseHours(entry)
	if err != nil {
		return Window{Closed: true, Reason: err}
	}
	if hours.Closed {
		return Window{Closed: true, Reason: ErrClosedVenue}
	}

	lastStart := hours.Close.Add(-seating)
	if hours.Close < postMidnightCutoff {
		lastStart = postMidnightLastStart
	}
	return Window{Start: hours.Open, LastStart: lastStart}
}

// OpenAt reports whether the venue is open at instant ts, following ranges
// that cross midnight into the next day.
func OpenAt(openingHours map[string]string, ts time.Time) bool {
	now := TimeOfDayOf(ts)
	if openDuring(openingHours, ts, now) {
		return true
	}
	// still inside yesterday's post-midnight tail
	return openDuring(openingHours, ts.AddDate(0, 0, -1), now+minutesPerDay)
}

func openDuring(openingHours map[string]string, date time.Time, at TimeOfDay) bool {
	entry, ok := DayEntry(openingHours, date)
	if !ok {
		return false
	}
	hours, err := ParseHours(entry)
	if err != nil || hours.Closed {
		return false
	}
	closing := hours.Close
	if closing <= hours.Open {
		closing += minutesPerDay
	}
	return at >= hours.Open && at <= closing
}
