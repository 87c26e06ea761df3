package reservations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tablebook/tablebook/internal/api"
	"github.com/tablebook/tablebook/internal/api/apiutil"
	"github.com/tablebook/tablebook/internal/booking"
	appdb "github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/events"
	"github.com/tablebook/tablebook/internal/ratelimit"
	"github.com/tablebook/tablebook/internal/testutil"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// Monday 2024-06-03, 12:00 UTC.
var testNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type fakeEmailSender struct {
	sent chan string
}

func (f *fakeEmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	return f.SendFrom(ctx, recipient, subject, body, "")
}

func (f *fakeEmailSender) SendFrom(_ context.Context, _, subject, _, _ string) error {
	f.sent <- subject
	return nil
}

type fixture struct {
	db        *appdb.DB
	handler   http.Handler
	publisher *recordingPublisher
	mail      *fakeEmailSender
	venue     booking.Venue
}

func setup(t *testing.T, limits *ratelimit.Config) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	engine, err := booking.NewEngine(database, booking.Options{
		Clock:    fixedClock{now: testNow},
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	venue := testutil.SeedVenue(t, database, "Negroni", testutil.EveryDay("11:00-23:00"),
		booking.Table{ID: "T4", Zone: "inauntru", Capacity: 4},
	)

	f := &fixture{
		db:        database,
		publisher: &recordingPublisher{},
		mail:      &fakeEmailSender{sent: make(chan string, 8)},
		venue:     venue,
	}
	var limiter *ratelimit.Limiter
	if limits != nil {
		limiter = ratelimit.New(limits)
		t.Cleanup(limiter.Close)
	}
	InitHandlers(Deps{
		DB:      database,
		Engine:  engine,
		Events:  f.publisher,
		Email:   f.mail,
		Limiter: limiter,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/venues/{id}/reservations", HandleReservationCreate)
	mux.HandleFunc("DELETE /api/v1/venues/{id}/reservations/{reservation_id}", HandleReservationCancel)
	mux.HandleFunc("GET /api/v1/me/reservations", HandleMyReservations)
	f.handler = api.ChainMiddleware(mux, api.WithIdentity, api.WithRequestID)
	return f
}

func (f *fixture) do(method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(api.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) book(userID, start string) *httptest.ResponseRecorder {
	body := `{"date":"2024-06-03","zone":"inauntru","start_time":"` + start +
		`","party_size":2,"customer_name":"Ana Popescu","customer_phone":"0721 234 567","customer_email":"ana@example.com"}`
	return f.do(http.MethodPost, "/api/v1/venues/"+f.venue.ID+"/reservations", userID, body)
}

func waitForEmail(t *testing.T, f *fixture) string {
	t.Helper()
	select {
	case subject := <-f.mail.sent:
		return subject
	case <-time.After(time.Second):
		t.Fatal("expected an email")
		return ""
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiutil.ErrorResponse {
	t.Helper()
	var body apiutil.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandleReservationCreate(t *testing.T) {
	f := setup(t, nil)

	rec := f.book("user-1", "13:00")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created reservationResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.TableID != "T4" || created.End != booking.At(14, 29) || created.Zone != "inauntru" {
		t.Errorf("reservation = %+v", created)
	}
	if created.CustomerPhone != "+40721234567" {
		t.Errorf("phone = %q, want E.164", created.CustomerPhone)
	}

	if subject := waitForEmail(t, f); subject != "Reservation Confirmed - Negroni" {
		t.Errorf("email subject = %q", subject)
	}
	if got := f.publisher.types(); len(got) != 1 || got[0] != events.TypeReservationCreated {
		t.Errorf("events = %v", got)
	}
}

func TestHandleReservationCreate_Rejections(t *testing.T) {
	f := setup(t, nil)
	if rec := f.book("user-1", "19:00"); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking status = %d", rec.Code)
	}

	tests := []struct {
		name       string
		userID     string
		body       string
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"anonymous", "", `{}`, http.StatusUnauthorized, "", ""},
		{"overlapping slot", "user-2", `{"date":"2024-06-03","zone":"inauntru","start_time":"19:30","party_size":2,"customer_name":"Ion"}`, http.StatusConflict, apiutil.CodeNoCapacity, ""},
		{"party too large", "user-2", `{"date":"2024-06-03","zone":"inauntru","start_time":"13:00","party_size":9,"customer_name":"Ion"}`, http.StatusConflict, apiutil.CodeNoCapacity, ""},
		{"unknown zone", "user-2", `{"date":"2024-06-03","zone":"vip","start_time":"13:00","party_size":2,"customer_name":"Ion"}`, http.StatusConflict, apiutil.CodeNoTablesInZone, ""},
		{"off grid", "user-2", `{"date":"2024-06-03","zone":"inauntru","start_time":"13:05","party_size":2,"customer_name":"Ion"}`, http.StatusConflict, apiutil.CodeSlotUnavailable, ""},
		{"bad start time", "user-2", `{"date":"2024-06-03","zone":"inauntru","start_time":"soon","party_size":2,"customer_name":"Ion"}`, http.StatusBadRequest, "", "start_time"},
		{"bad date", "user-2", `{"date":"03/06/2024","zone":"inauntru","start_time":"13:00","party_size":2,"customer_name":"Ion"}`, http.StatusBadRequest, "", "date"},
		{"unknown field", "user-2", `{"table_id":"T4"}`, http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/v1/venues/"+f.venue.ID+"/reservations", tt.userID, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Code != tt.wantCode || body.Field != tt.wantField {
				t.Errorf("error body = %+v, want code %q field %q", body, tt.wantCode, tt.wantField)
			}
		})
	}

	rec := f.do(http.MethodPost, "/api/v1/venues/missing/reservations", "user-2",
		`{"date":"2024-06-03","zone":"inauntru","start_time":"13:00","party_size":2,"customer_name":"Ion"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing venue status = %d, want 404", rec.Code)
	}
}

func TestHandleReservationCreate_RateLimited(t *testing.T) {
	f := setup(t, &ratelimit.Config{MaxPerHour: 1, MaxIPPerHour: 100, Window: time.Hour})

	if rec := f.book("user-1", "13:00"); rec.Code != http.StatusCreated {
		t.Fatalf("first booking status = %d", rec.Code)
	}
	rec := f.book("user-1", "17:00")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second booking status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if body := decodeError(t, rec); body.Code != apiutil.CodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}
	if rec := f.book("user-2", "17:00"); rec.Code != http.StatusCreated {
		t.Errorf("other user status = %d, want 201", rec.Code)
	}
}

func TestHandleReservationCancel(t *testing.T) {
	f := setup(t, nil)
	rec := f.book("user-1", "13:00")
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status = %d", rec.Code)
	}
	waitForEmail(t, f)
	var created reservationResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	path := "/api/v1/venues/" + f.venue.ID + "/reservations/" + created.ID

	if rec := f.do(http.MethodDelete, path, "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous cancel status = %d, want 401", rec.Code)
	}
	if rec := f.do(http.MethodDelete, path, "user-2", ""); rec.Code != http.StatusForbidden {
		t.Errorf("foreign cancel status = %d, want 403", rec.Code)
	}
	if rec := f.do(http.MethodDelete, path, "user-1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("owner cancel status = %d, body %s", rec.Code, rec.Body.String())
	}
	if subject := waitForEmail(t, f); subject != "Reservation Cancelled - Negroni" {
		t.Errorf("email subject = %q", subject)
	}
	if rec := f.do(http.MethodDelete, path, "user-1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second cancel status = %d, want 404", rec.Code)
	}

	got := f.publisher.types()
	if len(got) != 2 || got[1] != events.TypeReservationCancelled {
		t.Errorf("events = %v", got)
	}

	// the slot is bookable again
	if rec := f.book("user-2", "13:00"); rec.Code != http.StatusCreated {
		t.Errorf("rebook status = %d, want 201", rec.Code)
	}
}

func TestHandleMyReservations_SplitsActiveAndPast(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	insert := func(date string, start booking.TimeOfDay, userID string) {
		t.Helper()
		if _, err := f.db.CreateReservation(ctx, booking.Reservation{
			VenueID: f.venue.ID, TableID: "T4", Date: date,
			Start: start, End: start.Add(booking.DefaultSeating), PartySize: 2,
			UserID: userID, CustomerName: "Ana", CreatedAt: testNow,
		}); err != nil {
			t.Fatalf("insert reservation: %v", err)
		}
	}
	insert("2024-06-01", booking.At(19, 0), "user-1")
	insert("2024-06-03", booking.At(11, 0), "user-1") // ends 12:29, still running
	insert("2024-06-03", booking.At(10, 0), "user-1") // ends 11:29
	insert("2024-06-05", booking.At(20, 0), "user-1")
	insert("2024-06-04", booking.At(20, 0), "user-2")

	if rec := f.do(http.MethodGet, "/api/v1/me/reservations", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	rec := f.do(http.MethodGet, "/api/v1/me/reservations", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got myReservationsResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Active) != 2 || got.Active[0].Date != "2024-06-03" || got.Active[1].Date != "2024-06-05" {
		t.Errorf("active = %+v", got.Active)
	}
	if len(got.Past) != 2 || got.Past[0].Start != booking.At(10, 0) || got.Past[1].Date != "2024-06-01" {
		t.Errorf("past = %+v", got.Past)
	}
	for _, r := range append(got.Active, got.Past...) {
		if r.VenueName != "Negroni" || r.Zone != "inauntru" {
			t.Errorf("reservation missing venue details: %+v", r)
		}
	}
}
