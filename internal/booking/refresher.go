package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshInterval is how often an open availability view is recomputed.
const DefaultRefreshInterval = 60 * time.Second

// Token identifies a refresh subscription.
type Token uuid.UUID

func (t Token) String() string {
	return uuid.UUID(t).String()
}

type subscription struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// Refresher recomputes availability on a fixed interval for each active
// subscription and hands the result to the subscriber's callback. Ticks of a
// single subscription never overlap.
type Refresher struct {
	engine    *Engine
	interval  time.Duration
	scheduler gocron.Scheduler

	mu   sync.Mutex
	subs map[uuid.UUID]*subscription

	closeOnce sync.Once
	closeErr  error
}

func NewRefresher(engine *Engine, interval time.Duration) (*Refresher, error) {
	if engine == nil {
		return nil, errors.New("refresher requires a booking engine")
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(engine.Location()),
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Availability refresh panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create refresh scheduler: %w", err)
	}
	sched.Start()

	return &Refresher{
		engine:    engine,
		interval:  interval,
		scheduler: sched,
		subs:      make(map[uuid.UUID]*subscription),
	}, nil
}

// Start computes availability for q immediately and then once per interval,
// passing each result to fn. The subscription ends when Cancel is called with
// the returned token or when ctx is done.
func (r *Refresher) Start(ctx context.Context, q Query, fn func(Availability)) (Token, error) {
	if fn == nil {
		return Token{}, errors.New("refresh callback is required")
	}
	if ctx.Err() != nil {
		return Token{}, ctx.Err()
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}

	task := func() {
		if sub.stopped.Load() || subCtx.Err() != nil {
			return
		}
		availability := r.engine.Availability(subCtx, q)
		if sub.stopped.Load() || subCtx.Err() != nil {
			return
		}
		fn(availability)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		cancel()
		return Token{}, errors.New("refresher is closed")
	}
	job, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(task),
		gocron.WithName("availability_refresh"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return Token{}, fmt.Errorf("schedule availability refresh: %w", err)
	}
	token := Token(job.ID())
	r.subs[job.ID()] = sub

	context.AfterFunc(subCtx, func() {
		r.Cancel(token)
	})

	log.Ctx(ctx).Debug().
		Str("token", token.String()).
		Str("venue_id", q.VenueID).
		Dur("interval", r.interval).
		Msg("Availability refresh started")
	return token, nil
}

// Cancel ends a subscription. No new callback starts after Cancel returns.
// Cancelling an unknown or already cancelled token is a no-op.
func (r *Refresher) Cancel(token Token) {
	id := uuid.UUID(token)

	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	sub.stopped.Store(true)
	sub.cancel()
	if err := r.scheduler.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		log.Error().Err(err).Str("token", token.String()).Msg("Failed to remove availability refresh job")
	}
}

// Active returns the number of live subscriptions.
func (r *Refresher) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close cancels every subscription and stops the scheduler.
func (r *Refresher) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		subs := r.subs
		r.subs = nil
		r.mu.Unlock()

		for _, sub := range subs {
			sub.stopped.Store(true)
			sub.cancel()
		}
		r.closeErr = r.scheduler.Shutdown()
	})
	return r.closeErr
}
