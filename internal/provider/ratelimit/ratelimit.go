package ratelimit

import (
	"context"
	"sync"
	"time"

	"offeragg/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between the
// starts of consecutive calls. Waiting callers return early on cancellation.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) ID() provider.ID { return m.P.ID() }

func (m *MinInterval) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	if m.Interval > 0 {
		if err := m.reserve(ctx); err != nil {
			return nil, err
		}
	}
	return m.P.Fetch(ctx, addr)
}

// reserve claims the next free slot and waits for it.
func (m *MinInterval) reserve(ctx context.Context) error {
	m.mu.Lock()
	now := time.Now()
	slot := m.next
	if slot.Before(now) {
		slot = now
	}
	m.next = slot.Add(m.Interval)
	m.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
