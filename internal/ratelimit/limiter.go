// Package ratelimit throttles reservation attempts per user and per client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration. A zero limit disables that layer.
type Config struct {
	MaxPerHour   int           // Booking attempts per user per window (default: 10)
	MaxIPPerHour int           // Booking attempts per client IP per window (default: 30)
	Window       time.Duration // Counting window (default: 1h)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPerHour:   10,
		MaxIPPerHour: 30,
		Window:       time.Hour,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// entry tracks attempts inside one fixed window.
type entry struct {
	count   int
	firstAt time.Time
	lastAt  time.Time
}

// Limiter counts booking attempts in fixed windows keyed by user and IP.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.Mutex
	byUser map[string]*entry
	byIP   map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byUser:        make(map[string]*entry),
		byIP:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Allow checks and records one booking attempt. A rejected attempt is not
// counted.
func (l *Limiter) Allow(userID, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	userKey := hashKey("book:user:", normalizeIdentifier(userID))
	ipKey := hashKey("book:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	if result := l.check(l.byUser[userKey], l.config.MaxPerHour, now, "user_limit"); !result.Allowed {
		return result
	}
	if result := l.check(l.byIP[ipKey], l.config.MaxIPPerHour, now, "ip_limit"); !result.Allowed {
		return result
	}

	l.record(l.byUser, userKey, now)
	l.record(l.byIP, ipKey, now)
	return LimitResult{Allowed: true}
}

func (l *Limiter) check(e *entry, limit int, now time.Time, reason string) LimitResult {
	if e == nil || limit <= 0 {
		return LimitResult{Allowed: true}
	}
	elapsed := now.Sub(e.firstAt)
	if elapsed < l.config.Window && e.count >= limit {
		return LimitResult{
			Allowed:    false,
			RetryAfter: l.config.Window - elapsed,
			Reason:     reason,
		}
	}
	return LimitResult{Allowed: true}
}

func (l *Limiter) record(entries map[string]*entry, key string, now time.Time) {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= l.config.Window {
		entries[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entries := range []map[string]*entry{l.byUser, l.byIP} {
		for k, e := range entries {
			if now.Sub(e.lastAt) > l.config.Window {
				delete(entries, k)
			}
		}
	}
}

// LogRateLimitExceeded logs a rejected booking attempt.
func LogRateLimitExceeded(ctx context.Context, userID, ip string, result LimitResult) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("user_id", userID).
		Str("ip", ip).
		Str("reason", result.Reason).
		Dur("retry_after", result.RetryAfter).
		Msg("Booking rate limit exceeded")
}
