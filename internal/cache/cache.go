// Package cache keeps computed availability in Redis between requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/config"
)

const (
	keyPrefix        = "tablebook:availability"
	generationPrefix = "tablebook:availability-gen"
	generationTTL    = 48 * time.Hour
)

var errStaleGeneration = errors.New("availability generation changed")

// NewRedisClient connects to the configured Redis server. It returns nil when
// no address is configured or the server does not answer a ping, and callers
// run without caching.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unavailable, availability cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// Availability caches availability per venue and date, one hash field per
// zone, so a booking or cancellation drops every zone of that date at once.
// Every invalidation bumps a per venue/date generation; a result computed
// under an older generation is never written back.
// A nil *Availability or one without a client is a disabled cache.
type Availability struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAvailability(rdb *redis.Client, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Availability{rdb: rdb, ttl: ttl}
}

func (c *Availability) enabled() bool {
	return c != nil && c.rdb != nil
}

func dateKey(venueID, date string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, venueID, date)
}

func generationKey(venueID, date string) string {
	return fmt.Sprintf("%s:%s:%s", generationPrefix, venueID, date)
}

// Generation returns the invalidation counter of a venue's date. Read it
// before computing availability and hand it to Set.
func (c *Availability) Generation(ctx context.Context, venueID, date string) int64 {
	if !c.enabled() {
		return 0
	}
	gen, err := c.rdb.Get(ctx, generationKey(venueID, date)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Ctx(ctx).Warn().Err(err).Str("venue_id", venueID).Msg("Availability generation read failed")
		return -1
	}
	return gen
}

// Get returns the cached availability for the requested zone. Redis errors
// count as a miss.
func (c *Availability) Get(ctx context.Context, venueID, date, zone string) (booking.Availability, bool) {
	if !c.enabled() {
		return booking.Availability{}, false
	}
	raw, err := c.rdb.HGet(ctx, dateKey(venueID, date), zone).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Warn().Err(err).Str("venue_id", venueID).Msg("Availability cache read failed")
		}
		return booking.Availability{}, false
	}
	var availability booking.Availability
	if err := json.Unmarshal(raw, &availability); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("venue_id", venueID).Msg("Discarding undecodable availability cache entry")
		return booking.Availability{}, false
	}
	return availability, true
}

// Set stores availability under the zone it was requested for, provided the
// date's generation still equals gen. Unavailable results are not cached.
func (c *Availability) Set(ctx context.Context, zone string, gen int64, availability booking.Availability) {
	if !c.enabled() || gen < 0 || availability.Status == booking.StatusUnavailable {
		return
	}
	raw, err := json.Marshal(availability)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to encode availability for cache")
		return
	}
	genKey := generationKey(availability.VenueID, availability.Date)
	key := dateKey(availability.VenueID, availability.Date)

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, zone, raw)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey)

	logger := log.Ctx(ctx).With().Str("venue_id", availability.VenueID).Str("date", availability.Date).Logger()
	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		logger.Debug().Msg("Skipped caching availability computed before an invalidation")
	default:
		logger.Warn().Err(err).Msg("Availability cache write failed")
	}
}

// Invalidate bumps the date's generation and drops every cached zone of it.
func (c *Availability) Invalidate(ctx context.Context, venueID, date string) {
	if !c.enabled() {
		return
	}
	genKey := generationKey(venueID, date)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, dateKey(venueID, date))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("venue_id", venueID).Str("date", date).Msg("Availability cache invalidation failed")
	}
}
