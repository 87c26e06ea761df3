package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/email"
)

const reminderJobTimeout = 2 * time.Minute

// ReminderOptions configures the reservation reminder job.
type ReminderOptions struct {
	CronExpr    string
	HoursBefore int
	Location    *time.Location
	// Sender overrides the SES default sender when set.
	Sender string
	Now    func() time.Time
}

// RegisterReminderJobs registers the scheduled reservation reminder task on
// the singleton scheduler.
func RegisterReminderJobs(database *db.DB, sender email.EmailSender, opts ReminderOptions) error {
	if database == nil {
		return fmt.Errorf("reminder jobs require database")
	}

	jobName := "reservation_reminders"
	jobLogger := log.With().
		Str("component", "reservation_reminders_job").
		Str("job_name", jobName).
		Str("cron", opts.CronExpr).
		Logger()

	_, err := AddJob(jobName, opts.CronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reminderJobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if sender == nil {
			jobLogger.Debug().Msg("Reminder job skipped: email client not configured")
			return
		}
		sent, err := SendDueReminders(ctx, database, sender, opts)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Reminder job failed")
			return
		}
		if sent > 0 {
			jobLogger.Info().Int("sent", sent).Msg("Reservation reminders sent")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return fmt.Errorf("add reservation reminder job: %w", err)
	}

	jobLogger.Info().Int("hours_before", opts.HoursBefore).Msg("Reservation reminder job registered")
	return nil
}

// SendDueReminders emails every reservation starting within the next
// HoursBefore hours that has not been reminded yet, and returns how many
// were sent. A reminder is recorded only after a successful send.
func SendDueReminders(ctx context.Context, database *db.DB, sender email.EmailSender, opts ReminderOptions) (int, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}
	window := time.Duration(opts.HoursBefore) * time.Hour

	candidates, err := database.ListReminderCandidates(ctx, now, window, loc)
	if err != nil {
		return 0, err
	}

	logger := log.Ctx(ctx)
	sent := 0
	for _, candidate := range candidates {
		endsAt, err := candidate.EndsAt(loc)
		if err != nil {
			logger.Error().Err(err).Str("reservation_id", candidate.ID).Msg("Skipping reminder for unreadable reservation")
			continue
		}
		date, timeRange := email.FormatDateTimeRange(candidate.StartsAt, endsAt)
		message := email.BuildReminderEmail(email.ReservationDetails{
			VenueName:    candidate.VenueName,
			VenueAddress: candidate.VenueAddress,
			CustomerName: candidate.CustomerName,
			Date:         date,
			TimeRange:    timeRange,
			PartySize:    candidate.PartySize,
		})
		if err := email.SendReminderEmail(ctx, sender, candidate.CustomerEmail, message, opts.Sender); err != nil {
			logger.Error().Err(err).Str("reservation_id", candidate.ID).Msg("Failed to send reminder email")
			continue
		}
		claimed, err := database.MarkReminderSent(ctx, candidate.ID, now)
		if err != nil {
			logger.Error().Err(err).Str("reservation_id", candidate.ID).Msg("Failed to record reminder")
			continue
		}
		if claimed {
			sent++
		}
	}
	return sent, nil
}
