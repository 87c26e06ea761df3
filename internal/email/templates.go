package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

// ReservationDetails are the facts every reservation email shows.
type ReservationDetails struct {
	VenueName    string
	VenueAddress string
	CustomerName string
	Date         string
	TimeRange    string
	Zone         string
	PartySize    int
}

// FormatDateTimeRange renders a reservation block for email bodies.
func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s", start.Format("15:04"), end.Format("15:04"))
	return date, timeRange
}

func BuildConfirmationEmail(details ReservationDetails) Message {
	lines := []string{
		greeting(details.CustomerName),
		"",
		"Your table is booked.",
		"",
	}
	lines = append(lines, detailLines(details)...)
	lines = append(lines, "", "If your plans change, please cancel from My reservations so the table can go to someone else.")
	return Message{
		Subject: subjectFor("Reservation Confirmed", details.VenueName),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildCancellationEmail(details ReservationDetails) Message {
	lines := []string{
		greeting(details.CustomerName),
		"",
		"Your reservation has been cancelled.",
		"",
	}
	lines = append(lines, detailLines(details)...)
	return Message{
		Subject: subjectFor("Reservation Cancelled", details.VenueName),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildReminderEmail(details ReservationDetails) Message {
	lines := []string{
		greeting(details.CustomerName),
		"",
		"Reminder: your reservation is coming up.",
		"",
	}
	lines = append(lines, detailLines(details)...)
	return Message{
		Subject: subjectFor("Upcoming Reservation Reminder", details.VenueName),
		Body:    strings.Join(lines, "\n"),
	}
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", name)
}

func subjectFor(prefix, venueName string) string {
	venueName = strings.TrimSpace(venueName)
	if venueName == "" {
		return prefix
	}
	return fmt.Sprintf("%s - %s", prefix, venueName)
}

func detailLines(details ReservationDetails) []string {
	lines := []string{
		fmt.Sprintf("Venue: %s", orTBD(details.VenueName)),
	}
	if address := strings.TrimSpace(details.VenueAddress); address != "" {
		lines = append(lines, fmt.Sprintf("Address: %s", address))
	}
	lines = append(lines,
		fmt.Sprintf("Date: %s", orTBD(details.Date)),
		fmt.Sprintf("Time: %s", orTBD(details.TimeRange)),
	)
	if zone := strings.TrimSpace(details.Zone); zone != "" {
		lines = append(lines, fmt.Sprintf("Zone: %s", zone))
	}
	if details.PartySize > 0 {
		lines = append(lines, fmt.Sprintf("Guests: %d", details.PartySize))
	}
	return lines
}

func orTBD(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "TBD"
	}
	return value
}
