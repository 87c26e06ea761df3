package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tablebook/tablebook/internal/booking"
)

// HandlerError is an error with the HTTP response it should produce.
type HandlerError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// maxBodyBytes bounds request bodies decoded by DecodeJSON.
const maxBodyBytes = 1 << 20

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError writes err as a JSON error response. Errors that are not a
// HandlerError are mapped with FromError first. Server-side failures are
// logged with the underlying cause.
func WriteError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	var herr HandlerError
	if !errors.As(err, &herr) {
		herr = FromError(err)
	}

	if herr.Status >= http.StatusInternalServerError && logger != nil {
		logger.Error().Err(err).Int("status", herr.Status).Msg("Request failed")
	}
	if herr.RetryAfter > 0 {
		seconds := int(herr.RetryAfter.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	body := ErrorResponse{Error: herr.Message, Code: herr.Code}
	var fieldErr booking.FieldError
	if errors.As(err, &fieldErr) {
		body.Field = fieldErr.Field
	}
	if writeErr := WriteJSON(w, herr.Status, body); writeErr != nil && logger != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}
