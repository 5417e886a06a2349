// Package ratelimit enforces the discounts-prices API request quota:
// at most 10 requests within any 6 second window, with at least 600 ms
// between consecutive requests. All waiting happens through an injected
// Clock so the quota invariant is testable without real time.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Quota limits published for the discounts-prices API.
const (
	// WindowRequests is the maximum number of requests per window.
	WindowRequests = 10

	// WindowDuration is the length of the quota window.
	WindowDuration = 6 * time.Second

	// MinInterval is the minimum spacing between consecutive requests.
	MinInterval = 600 * time.Millisecond
)

// Prometheus metrics for rate window behavior.
var (
	rateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wb_rate_wait_seconds",
		Help:    "Time spent waiting for a rate window slot",
		Buckets: []float64{0.1, 0.6, 1, 2, 6, 10},
	})

	rateWindowResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wb_rate_window_resets_total",
		Help: "Number of times the rate window was exhausted and reset",
	})
)

// Clock abstracts time for the window. Production code uses RealClock;
// tests inject a fake to observe sleeps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock is the wall-clock implementation of Clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep pauses the calling goroutine.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// Window tracks requests issued within the current quota window and
// blocks callers until the next request may be sent. It is not safe for
// concurrent use; the fetch pipeline is sequential by design.
type Window struct {
	clock  Clock
	store  Store
	logger zerolog.Logger

	windowStart time.Time
	count       int
	lastRequest time.Time
}

// NewWindow creates a rate window. store may be nil for purely in-memory
// operation.
func NewWindow(clock Clock, store Store, logger zerolog.Logger) *Window {
	if clock == nil {
		clock = RealClock{}
	}
	return &Window{
		clock:  clock,
		store:  store,
		logger: logger,
	}
}

// Restore loads previously persisted window state from the store, so a
// restarted process (or a second process sharing the store) honors the
// quota consumed by earlier requests. A nil store or absent state is not
// an error.
func (w *Window) Restore(ctx context.Context) error {
	if w.store == nil {
		return nil
	}

	state, err := w.store.Load(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	// State older than one window carries no quota information.
	if w.clock.Now().Sub(state.WindowStart) >= WindowDuration {
		return nil
	}

	w.windowStart = state.WindowStart
	w.count = state.Count
	w.lastRequest = state.LastRequest

	w.logger.Debug().
		Int("count", state.Count).
		Time("window_start", state.WindowStart).
		Msg("Restored rate window state")

	return nil
}

// Reserve blocks until the next request may be issued and records it
// against the window. It returns the total time spent waiting.
func (w *Window) Reserve(ctx context.Context) time.Duration {
	var waited time.Duration

	// Enforce minimum spacing between consecutive requests.
	if !w.lastRequest.IsZero() {
		gap := w.clock.Now().Sub(w.lastRequest)
		if gap < MinInterval {
			d := MinInterval - gap
			w.clock.Sleep(d)
			waited += d
		}
	}

	// Enforce the per-window request quota.
	if w.count >= WindowRequests {
		elapsed := w.clock.Now().Sub(w.windowStart)
		if elapsed < WindowDuration {
			d := WindowDuration - elapsed

			w.logger.Warn().
				Int("count", w.count).
				Dur("wait", d).
				Msg("Rate window exhausted, waiting for reset")

			w.clock.Sleep(d)
			waited += d
		}
		rateWindowResets.Inc()
		w.count = 0
	}

	now := w.clock.Now()
	if w.count == 0 {
		w.windowStart = now
	}
	w.count++
	w.lastRequest = now

	rateWaitSeconds.Observe(waited.Seconds())
	w.persist(ctx)

	return waited
}

// Backoff pauses for a server-requested duration (429 Retry-After) without
// consuming a window slot. The window restarts afterwards since the server
// side quota has fully drained during the wait.
func (w *Window) Backoff(ctx context.Context, d time.Duration) {
	w.logger.Warn().Dur("retry_after", d).Msg("Rate limited by server, backing off")
	w.clock.Sleep(d)
	w.count = 0
	w.windowStart = w.clock.Now()
	w.persist(ctx)
}

func (w *Window) persist(ctx context.Context) {
	if w.store == nil {
		return
	}
	state := &State{
		WindowStart: w.windowStart,
		Count:       w.count,
		LastRequest: w.lastRequest,
	}
	if err := w.store.Save(ctx, state); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to persist rate window state")
	}
}
