package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/config"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	var nilCache *Availability
	caches := map[string]*Availability{
		"nil cache":  nilCache,
		"nil client": NewAvailability(nil, time.Minute),
	}
	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c.Set(ctx, "terasa", 0, booking.Availability{VenueID: "v1", Date: "2024-06-03", Status: booking.StatusOpen})
			if _, ok := c.Get(ctx, "v1", "2024-06-03", "terasa"); ok {
				t.Errorf("disabled cache returned a hit")
			}
			c.Invalidate(ctx, "v1", "2024-06-03")
		})
	}
}

func TestUnreachableRedisIsAMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewAvailability(rdb, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "terasa", 0, booking.Availability{VenueID: "v1", Date: "2024-06-03", Status: booking.StatusOpen})
	if _, ok := c.Get(ctx, "v1", "2024-06-03", "terasa"); ok {
		t.Errorf("unreachable redis returned a hit")
	}
	c.Invalidate(ctx, "v1", "2024-06-03")
}

func TestNewRedisClient_NoAddrDisablesCache(t *testing.T) {
	if client := NewRedisClient(context.Background(), config.RedisConfig{}); client != nil {
		t.Errorf("expected nil client without an address")
	}
}

func TestDateKey(t *testing.T) {
	if got := dateKey("v1", "2024-06-03"); got != "tablebook:availability:v1:2024-06-03" {
		t.Errorf("dateKey = %q", got)
	}
}

func newTestCache(t *testing.T) (*Availability, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAvailability(rdb, time.Minute), mr
}

func openDay(zone string) booking.Availability {
	return booking.Availability{
		VenueID: "v1",
		Date:    "2024-06-03",
		Status:  booking.StatusOpen,
		Zone:    zone,
		Slots:   []booking.Slot{{Time: booking.At(19, 0), Available: true, FreeTables: 1, TotalTables: 1}},
	}
}

func TestSetThenGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	gen := c.Generation(ctx, "v1", "2024-06-03")
	c.Set(ctx, "terasa", gen, openDay("terasa"))

	got, ok := c.Get(ctx, "v1", "2024-06-03", "terasa")
	if !ok {
		t.Fatalf("expected a cache hit")
	}
	if got.Zone != "terasa" || len(got.Slots) != 1 || !got.Slots[0].Available {
		t.Errorf("cached availability = %+v", got)
	}
	if _, ok := c.Get(ctx, "v1", "2024-06-03", "inauntru"); ok {
		t.Errorf("other zone should miss")
	}
	if ttl := mr.TTL(dateKey("v1", "2024-06-03")); ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}
}

func TestInvalidateDropsEveryZone(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	gen := c.Generation(ctx, "v1", "2024-06-03")
	c.Set(ctx, "terasa", gen, openDay("terasa"))
	c.Set(ctx, "inauntru", gen, openDay("inauntru"))
	c.Invalidate(ctx, "v1", "2024-06-03")

	for _, zone := range []string{"terasa", "inauntru"} {
		if _, ok := c.Get(ctx, "v1", "2024-06-03", zone); ok {
			t.Errorf("zone %s still cached after invalidation", zone)
		}
	}
	if next := c.Generation(ctx, "v1", "2024-06-03"); next != gen+1 {
		t.Errorf("generation = %d, want %d", next, gen+1)
	}
}

func TestSetAfterInvalidationIsDropped(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// computed before a booking committed, written after its invalidation
	gen := c.Generation(ctx, "v1", "2024-06-03")
	c.Invalidate(ctx, "v1", "2024-06-03")
	c.Set(ctx, "terasa", gen, openDay("terasa"))

	if _, ok := c.Get(ctx, "v1", "2024-06-03", "terasa"); ok {
		t.Errorf("availability computed before the invalidation was cached")
	}

	fresh := c.Generation(ctx, "v1", "2024-06-03")
	c.Set(ctx, "terasa", fresh, openDay("terasa"))
	if _, ok := c.Get(ctx, "v1", "2024-06-03", "terasa"); !ok {
		t.Errorf("availability computed after the invalidation should be cached")
	}
}

func TestUnavailableIsNotCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "terasa", 0, booking.Availability{VenueID: "v1", Date: "2024-06-03", Status: booking.StatusUnavailable})
	if _, ok := c.Get(ctx, "v1", "2024-06-03", "terasa"); ok {
		t.Errorf("unavailable result was cached")
	}
}
