package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const sendTimeout = 5 * time.Second

// SendConfirmationEmail sends a booking confirmation asynchronously.
func SendConfirmationEmail(ctx context.Context, client EmailSender, recipient string, message Message, logger *zerolog.Logger) {
	sendAsync(ctx, client, "confirmation", recipient, message, "", logger)
}

// SendCancellationEmail sends a cancellation notice asynchronously.
func SendCancellationEmail(ctx context.Context, client EmailSender, recipient string, message Message, sender string, logger *zerolog.Logger) {
	sendAsync(ctx, client, "cancellation", recipient, message, sender, logger)
}

// SendReminderEmail sends a reminder synchronously so the caller can record
// delivery.
func SendReminderEmail(ctx context.Context, client EmailSender, recipient string, message Message, sender string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return client.SendFrom(sendCtx, strings.TrimSpace(recipient), message.Subject, message.Body, sender)
}

func sendAsync(ctx context.Context, client EmailSender, kind, recipient string, message Message, sender string, logger *zerolog.Logger) {
	if client == nil {
		return
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || message.Subject == "" || message.Body == "" {
		return
	}

	go func() {
		sendCtx, cancel := newEmailContext(ctx, sendTimeout)
		defer cancel()

		var err error
		if sender == "" {
			err = client.Send(sendCtx, recipient, message.Subject, message.Body)
		} else {
			err = client.SendFrom(sendCtx, recipient, message.Subject, message.Body, sender)
		}
		if logger == nil {
			return
		}
		if err != nil {
			logger.Error().Err(err).Str("email_kind", kind).Str("recipient", recipient).Msg("Failed to send email")
			return
		}
		logger.Debug().Str("email_kind", kind).Msg("Email sent")
	}()
}
