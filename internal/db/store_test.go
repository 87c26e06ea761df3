package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/testutil"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newEngine(t *testing.T, store booking.Store) *booking.Engine {
	t.Helper()
	engine, err := booking.NewEngine(store, booking.Options{
		Clock:    fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func monday(t *testing.T) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(booking.DateLayout, "2024-06-03", time.UTC)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func TestStore_VenueRoundTrip(t *testing.T) {
	database := testutil.NewTestDB(t)
	hours := testutil.EveryDay("17:00 – 02:00")
	hours["Luni"] = "Inchis"
	venue := testutil.SeedVenue(t, database, "Negroni", hours,
		booking.Table{ID: "T1", Zone: "terasa", Capacity: 4},
		booking.Table{ID: "T2", Zone: "inauntru", Capacity: 2},
		booking.Table{ID: "T3", Zone: "terasa", Capacity: 6},
	)

	got, err := database.GetVenue(context.Background(), venue.ID)
	if err != nil {
		t.Fatalf("get venue: %v", err)
	}
	if got.Name != "Negroni" || !got.AcceptsReservations || got.OpeningHours["Luni"] != "Inchis" {
		t.Errorf("unexpected venue %+v", got)
	}

	tables, err := database.ListTables(context.Background(), venue.ID)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	zones := booking.Zones(tables)
	if len(zones) != 2 || zones[0] != "terasa" || zones[1] != "inauntru" {
		t.Errorf("zones = %v, want [terasa inauntru]", zones)
	}

	if _, err := database.GetVenue(context.Background(), "missing"); !errors.Is(err, booking.ErrVenueNotFound) {
		t.Errorf("missing venue error = %v, want ErrVenueNotFound", err)
	}
}

func TestStore_BookPersistsAndCancelFrees(t *testing.T) {
	database := testutil.NewTestDB(t)
	// post-midnight close clamps the last start to 23:30
	venue := testutil.SeedVenue(t, database, "Negroni", testutil.EveryDay("17:00-02:00"),
		booking.Table{ID: "T4", Zone: "inauntru", Capacity: 4},
	)
	engine := newEngine(t, database)
	ctx := context.Background()

	created, err := engine.Book(ctx, booking.BookRequest{
		VenueID:       venue.ID,
		Date:          monday(t),
		Zone:          "inauntru",
		Start:         booking.At(23, 0),
		PartySize:     2,
		UserID:        "user-1",
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	stored, err := database.GetReservation(ctx, venue.ID, created.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if stored.Start != booking.At(23, 0) || stored.End != booking.At(0, 29) {
		t.Errorf("stored block = %s-%s, want 23:00-00:29", stored.Start, stored.End)
	}
	if _, end := stored.Interval(); end != booking.At(24, 29) {
		t.Errorf("interval end = %d, want wrap past midnight", end)
	}
	if stored.CustomerEmail != "ana@example.com" || stored.CustomerPhone != "" {
		t.Errorf("contact = %q/%q", stored.CustomerEmail, stored.CustomerPhone)
	}

	mine, err := database.ListUserReservations(ctx, "user-1")
	if err != nil {
		t.Fatalf("list user reservations: %v", err)
	}
	if len(mine) != 1 || mine[0].VenueName != "Negroni" || mine[0].Zone != "inauntru" {
		t.Errorf("user reservations = %+v", mine)
	}

	if err := engine.Cancel(ctx, venue.ID, created.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := database.GetReservation(ctx, venue.ID, created.ID); !errors.Is(err, booking.ErrReservationNotFound) {
		t.Errorf("get after cancel error = %v, want ErrReservationNotFound", err)
	}
	if err := database.DeleteReservation(ctx, venue.ID, created.ID); !errors.Is(err, booking.ErrReservationNotFound) {
		t.Errorf("second delete error = %v, want ErrReservationNotFound", err)
	}
}

func TestStore_UniqueIndexRejectsDuplicateStart(t *testing.T) {
	database := testutil.NewTestDB(t)
	venue := testutil.SeedVenue(t, database, "Negroni", testutil.EveryDay("11:00-23:30"),
		booking.Table{ID: "T4", Zone: "inauntru", Capacity: 4},
	)
	record := booking.Reservation{
		VenueID: venue.ID, TableID: "T4", Date: "2024-06-03",
		Start: booking.At(19, 0), End: booking.At(20, 29), PartySize: 2,
		UserID: "user-1", CustomerName: "Ana", CreatedAt: time.Now().UTC(),
	}
	if _, err := database.CreateReservation(context.Background(), record); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := database.CreateReservation(context.Background(), record); !errors.Is(err, booking.ErrNoCapacity) {
		t.Fatalf("duplicate insert error = %v, want ErrNoCapacity", err)
	}
}

func TestStore_AtomicallyRollsBackOnError(t *testing.T) {
	database := testutil.NewTestDB(t)
	venue := testutil.SeedVenue(t, database, "Negroni", testutil.EveryDay("11:00-23:30"),
		booking.Table{ID: "T4", Zone: "inauntru", Capacity: 4},
	)
	ctx := context.Background()
	boom := errors.New("boom")

	err := database.Atomically(ctx, func(s booking.Store) error {
		if _, err := s.CreateReservation(ctx, booking.Reservation{
			VenueID: venue.ID, TableID: "T4", Date: "2024-06-03",
			Start: booking.At(19, 0), End: booking.At(20, 29), PartySize: 2,
			UserID: "user-1", CustomerName: "Ana", CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("atomically error = %v, want boom", err)
	}

	reservations, err := database.ListReservations(ctx, venue.ID, "2024-06-03")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(reservations) != 0 {
		t.Errorf("rolled back insert is visible: %+v", reservations)
	}
}

func TestStore_ConcurrentBookingsNeverDoubleBook(t *testing.T) {
	database := testutil.NewTestDB(t)
	venue := testutil.SeedVenue(t, database, "Negroni", testutil.EveryDay("11:00-23:30"),
		booking.Table{ID: "T2", Zone: "inauntru", Capacity: 2},
		booking.Table{ID: "T4", Zone: "inauntru", Capacity: 4},
	)
	engine := newEngine(t, database)

	date := monday(t)
	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// staggered starts overlap each other's 89 minute blocks
			start := booking.At(19, 0).Add(time.Duration(i%3) * 10 * time.Minute)
			_, errs[i] = engine.Book(context.Background(), booking.BookRequest{
				VenueID:      venue.ID,
				Date:         date,
				Zone:         "inauntru",
				Start:        start,
				PartySize:    2,
				UserID:       "user-1",
				CustomerName: "Ana",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, booking.ErrNoCapacity):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 2 {
		t.Errorf("succeeded = %d, want 2 (one per table)", succeeded)
	}

	reservations, err := database.ListReservations(context.Background(), venue.ID, "2024-06-03")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	byTable := map[string][]booking.Reservation{}
	for _, r := range reservations {
		byTable[r.TableID] = append(byTable[r.TableID], r)
	}
	for tableID, rs := range byTable {
		if len(rs) > 1 {
			t.Errorf("table %s holds %d overlapping reservations", tableID, len(rs))
		}
	}
}
