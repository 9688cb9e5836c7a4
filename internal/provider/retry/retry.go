package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"offeragg/internal/metrics"
	"offeragg/internal/provider"
)

// ErrExhausted is wrapped by the error returned when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

const (
	DefaultMaxAttempts = 3
	DefaultBase        = 5.0
	DefaultTimeout     = 15 * time.Second
)

// Provider retries a failing fetch with exponential backoff. After the
// n-th failed attempt it waits Base^n seconds before trying again.
//
// It never returns a nil slice: on exhaustion the result is empty and the
// error wraps ErrExhausted, so callers can treat it as "no offers".
type Provider struct {
	P           provider.Provider
	MaxAttempts int
	Base        float64
	// Timeout bounds each attempt on its own.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (r *Provider) ID() provider.ID { return r.P.ID() }

// Fetch calls the wrapped provider until it succeeds or attempts run out.
func (r *Provider) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("provider", string(r.P.ID()))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		offers, err := r.attempt(ctx, addr)
		if err == nil {
			if offers == nil {
				offers = []provider.Offer{}
			}
			if attempt > 1 {
				log.Info("fetch recovered", "attempt", attempt)
			}
			return offers, nil
		}
		lastErr = err
		log.Warn("fetch attempt failed", "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		if attempt == maxAttempts {
			break
		}
		if err := r.sleep(ctx, r.Backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	r.Metrics.Exhaust(string(r.P.ID()))
	log.Error("fetch gave up", "error", lastErr)
	return []provider.Offer{}, fmt.Errorf("%s: %w: %w", r.P.ID(), ErrExhausted, lastErr)
}

func (r *Provider) attempt(ctx context.Context, addr provider.Address) (offers []provider.Offer, err error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		r.Metrics.Attempt(string(r.P.ID()), time.Since(start), err)
	}()
	return r.P.Fetch(actx, addr)
}

// Backoff returns the wait after the given failed attempt (1-based).
func (r *Provider) Backoff(attempt int) time.Duration {
	base := r.Base
	if base <= 0 {
		base = DefaultBase
	}
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}

func (r *Provider) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
