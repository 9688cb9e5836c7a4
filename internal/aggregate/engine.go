package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"offeragg/internal/filter"
	"offeragg/internal/metrics"
	"offeragg/internal/provider"
)

// Batch is one provider's normalized contribution. Err is set when the
// provider failed; Offers is then empty, never nil.
type Batch struct {
	Provider provider.ID      `json:"provider"`
	Offers   []provider.Offer `json:"offers"`
	Err      error            `json:"-"`
}

// Engine fans an address out to every provider and merges the answers.
type Engine struct {
	providers []provider.Provider
	workers   int
	log       *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Engine)

// WithWorkers bounds how many providers are queried at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New builds an engine over providers, queried in the given order. By
// default every provider gets its own worker.
func New(providers []provider.Provider, opts ...Option) *Engine {
	e := &Engine{providers: providers, workers: len(providers), log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	if e.workers <= 0 {
		e.workers = 1
	}
	return e
}

// Providers lists the engine's providers in query order.
func (e *Engine) Providers() []provider.ID {
	ids := make([]provider.ID, len(e.providers))
	for i, p := range e.providers {
		ids[i] = p.ID()
	}
	return ids
}

// Aggregate waits for every provider and returns the union of their
// offers in provider order. Failed providers contribute nothing. If ctx
// ends first Aggregate returns its error, but upstream calls already
// started run to completion so their results still reach the cache.
func (e *Engine) Aggregate(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	batches := make([]Batch, len(e.providers))
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.run(ctx, addr, func(i int, b Batch) { batches[i] = b })
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := make([]provider.Offer, 0, 64)
	for _, b := range batches {
		out = append(out, b.Offers...)
	}
	return out, nil
}

// Stream sends each provider's batch as soon as it is ready, in completion
// order, and closes the channel after the last one. The channel holds every
// batch, so a consumer that stops reading never blocks the workers.
func (e *Engine) Stream(ctx context.Context, addr provider.Address) (<-chan Batch, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	ch := make(chan Batch, len(e.providers))
	go func() {
		defer close(ch)
		e.run(ctx, addr, func(_ int, b Batch) { ch <- b })
	}()
	return ch, nil
}

// Search aggregates, then filters and sorts.
func (e *Engine) Search(ctx context.Context, addr provider.Address, c filter.Criteria, key filter.SortKey) ([]provider.Offer, error) {
	offers, err := e.Aggregate(ctx, addr)
	if err != nil {
		return nil, err
	}
	return filter.Sort(filter.Apply(offers, c.Filters()...), key), nil
}

func (e *Engine) run(ctx context.Context, addr provider.Address, emit func(int, Batch)) {
	runID := uuid.NewString()
	log := e.log.With("run_id", runID)
	// Upstream calls outlive the caller.
	uctx := context.WithoutCancel(ctx)

	start := time.Now()
	log.Info("aggregation started", "providers", len(e.providers), "workers", e.workers)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, p := range e.providers {
		g.Go(func() error {
			emit(i, e.fetch(uctx, p, addr, log))
			return nil
		})
	}
	_ = g.Wait()

	log.Info("aggregation finished", "elapsed", time.Since(start).Round(time.Millisecond))
}

func (e *Engine) fetch(ctx context.Context, p provider.Provider, addr provider.Address, log *slog.Logger) Batch {
	id := p.ID()
	log = log.With("provider", string(id))
	start := time.Now()

	rows, err := safeFetch(ctx, p, addr)
	if err != nil {
		log.Warn("provider contributed no offers", "error", err, "elapsed", time.Since(start).Round(time.Millisecond))
		return Batch{Provider: id, Offers: []provider.Offer{}, Err: err}
	}
	offers := Normalize(id, rows, log)
	e.metrics.OffersReturned(string(id), len(offers))
	log.Info("provider done", "offers", len(offers), "elapsed", time.Since(start).Round(time.Millisecond))
	return Batch{Provider: id, Offers: offers}
}

func safeFetch(ctx context.Context, p provider.Provider, addr provider.Address) (rows []provider.Offer, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%s: panic: %v", p.ID(), r)
		}
	}()
	return p.Fetch(ctx, addr)
}
