package apiutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tablebook/tablebook/internal/booking"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"field", booking.FieldError{Field: "party_size", Reason: "must be at least 1"}, http.StatusBadRequest, ""},
		{"invalid input", fmt.Errorf("parse: %w", booking.ErrInvalidInput), http.StatusBadRequest, ""},
		{"venue missing", booking.ErrVenueNotFound, http.StatusNotFound, ""},
		{"reservation missing", booking.ErrReservationNotFound, http.StatusNotFound, ""},
		{"closed", booking.ErrClosedVenue, http.StatusConflict, CodeClosedVenue},
		{"malformed hours", booking.ErrMalformedSchedule, http.StatusConflict, CodeClosedVenue},
		{"zone", booking.ErrNoTablesInZone, http.StatusConflict, CodeNoTablesInZone},
		{"slot", booking.ErrSlotUnavailable, http.StatusConflict, CodeSlotUnavailable},
		{"capacity", booking.ErrNoCapacity, http.StatusConflict, CodeNoCapacity},
		{"not accepting", booking.ErrNotAccepting, http.StatusConflict, CodeNotAccepting},
		{"store", &booking.StoreError{Op: "list tables", Err: errors.New("disk I/O error")}, http.StatusServiceUnavailable, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Status != tt.status || got.Code != tt.code {
				t.Errorf("FromError = %d/%q, want %d/%q", got.Status, got.Code, tt.status, tt.code)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("HandlerError does not unwrap to %v", tt.err)
			}
		})
	}
}

func TestWriteError_FieldAndRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, nil, booking.FieldError{Field: "zone", Reason: "is required"})

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if rec.Code != http.StatusBadRequest || body.Field != "zone" || body.Error != "zone is required" {
		t.Errorf("response = %d %+v", rec.Code, body)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, nil, TooManyRequests(90*time.Second))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Retry-After = %q, want 90", got)
	}
}

func TestDecodeJSON_RejectsUnknownAndTrailingData(t *testing.T) {
	type payload struct {
		Zone string `json:"zone"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"zone":"terasa"}`, false},
		{"unknown field", `{"zone":"terasa","table":"T1"}`, true},
		{"trailing object", `{"zone":"terasa"}{"zone":"x"}`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQueryBool(t *testing.T) {
	for raw, want := range map[string]bool{"": false, "1": true, "true": true, "0": false} {
		req := httptest.NewRequest(http.MethodGet, "/?open_now="+raw, nil)
		got, err := QueryBool(req, "open_now")
		if err != nil || got != want {
			t.Errorf("QueryBool(%q) = %v, %v, want %v", raw, got, err, want)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/?open_now=maybe", nil)
	if _, err := QueryBool(req, "open_now"); err == nil {
		t.Error("expected error for non-boolean flag")
	}
}
