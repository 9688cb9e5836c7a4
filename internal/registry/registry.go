// Package registry maps provider IDs to their configured, decorated
// implementations. It is the only place that knows how the five adapters
// are constructed.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"offeragg/internal/config"
	"offeragg/internal/httpx"
	"offeragg/internal/metrics"
	"offeragg/internal/provider"
	"offeragg/internal/provider/byteme"
	"offeragg/internal/provider/cache"
	"offeragg/internal/provider/pingperfect"
	"offeragg/internal/provider/ratelimit"
	"offeragg/internal/provider/retry"
	"offeragg/internal/provider/servusspeed"
	"offeragg/internal/provider/verbyndich"
	"offeragg/internal/provider/webwunder"
)

// Deps are the shared collaborators handed to every provider.
type Deps struct {
	// HTTP defaults to an httpx.Client with a one minute timeout.
	HTTP httpx.Doer
	// Store enables caching when non-nil.
	Store   cache.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Sleep overrides the retry backoff wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Registry holds the decorated providers in fixed provider order.
type Registry struct {
	order []provider.ID
	byID  map[provider.ID]provider.Provider
}

// Build constructs every enabled provider from cfg. Providers lacking
// credentials are skipped with a warning.
func Build(cfg config.Config, d Deps) (*Registry, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.HTTP == nil {
		d.HTTP = httpx.New(time.Minute)
	}

	r := &Registry{byID: make(map[provider.ID]provider.Provider)}
	for _, id := range provider.IDs() {
		u := *cfg.Providers.Get(id)
		if !u.Enabled {
			continue
		}
		if !u.HasCredentials(id) {
			d.Logger.Warn("provider skipped: missing credentials", "provider", string(id))
			continue
		}
		p, err := Adapter(id, u, d.HTTP, d.Logger)
		if err != nil {
			return nil, err
		}
		r.order = append(r.order, id)
		r.byID[id] = decorate(p, u, cfg, d)
	}
	return r, nil
}

// Adapter returns the undecorated client for id.
func Adapter(id provider.ID, u config.Upstream, hc httpx.Doer, log *slog.Logger) (provider.Provider, error) {
	switch id {
	case provider.ByteMe:
		opts := []byteme.Option{byteme.WithHTTPClient(hc), byteme.WithLogger(log)}
		if u.BaseURL != "" {
			opts = append(opts, byteme.WithBaseURL(u.BaseURL))
		}
		return byteme.New(u.APIKey, opts...), nil
	case provider.PingPerfect:
		opts := []pingperfect.Option{pingperfect.WithHTTPClient(hc), pingperfect.WithLogger(log)}
		if u.BaseURL != "" {
			opts = append(opts, pingperfect.WithBaseURL(u.BaseURL))
		}
		return pingperfect.New(u.ClientID, u.Secret, opts...), nil
	case provider.ServusSpeed:
		opts := []servusspeed.Option{servusspeed.WithHTTPClient(hc), servusspeed.WithLogger(log)}
		if u.BaseURL != "" {
			opts = append(opts, servusspeed.WithBaseURL(u.BaseURL))
		}
		return servusspeed.New(u.Username, u.Password, opts...), nil
	case provider.VerbynDich:
		opts := []verbyndich.Option{verbyndich.WithHTTPClient(hc), verbyndich.WithLogger(log)}
		if u.BaseURL != "" {
			opts = append(opts, verbyndich.WithBaseURL(u.BaseURL))
		}
		return verbyndich.New(u.APIKey, opts...), nil
	case provider.WebWunder:
		opts := []webwunder.Option{webwunder.WithHTTPClient(hc), webwunder.WithLogger(log)}
		if u.BaseURL != "" {
			opts = append(opts, webwunder.WithBaseURL(u.BaseURL))
		}
		return webwunder.New(u.APIKey, opts...), nil
	}
	return nil, fmt.Errorf("registry: unknown provider %q", id)
}

// decorate wraps p as cache(retry(ratelimit(p))). Rate limiting sits
// under retry so that every attempt is gated.
func decorate(p provider.Provider, u config.Upstream, cfg config.Config, d Deps) provider.Provider {
	if u.MaxRequestsPerMinute > 0 {
		tb := ratelimit.PerMinute(u.MaxRequestsPerMinute)
		if u.Burst > 0 {
			tb = ratelimit.NewTokenBucket(float64(u.MaxRequestsPerMinute)/60, u.Burst)
		}
		p = &ratelimit.TokenBucketProvider{P: p, TB: tb}
	}
	if u.MinRequestIntervalSec > 0 {
		p = &ratelimit.MinInterval{P: p, Interval: time.Duration(u.MinRequestIntervalSec) * time.Second}
	}
	p = &retry.Provider{
		P:           p,
		MaxAttempts: cfg.Retry.MaxAttempts,
		Base:        cfg.Retry.Backoff,
		Timeout:     u.Timeout(),
		Logger:      d.Logger,
		Metrics:     d.Metrics,
		Sleep:       d.Sleep,
	}
	if d.Store != nil {
		p = &cache.Provider{P: p, Store: d.Store, TTL: cfg.Cache.TTL(), Logger: d.Logger, Metrics: d.Metrics}
	}
	return p
}

// IDs lists the registered providers in query order.
func (r *Registry) IDs() []provider.ID {
	return append([]provider.ID(nil), r.order...)
}

// Get returns the decorated provider for id.
func (r *Registry) Get(id provider.ID) (provider.Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Providers returns the decorated providers in query order.
func (r *Registry) Providers() []provider.Provider {
	out := make([]provider.Provider, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

// Select narrows the registry to ids, keeping query order. Unknown or
// unregistered ids are ignored; an empty ids keeps everything.
func (r *Registry) Select(ids ...provider.ID) []provider.Provider {
	if len(ids) == 0 {
		return r.Providers()
	}
	want := make(map[provider.ID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []provider.Provider
	for _, id := range r.order {
		if want[id] {
			out = append(out, r.byID[id])
		}
	}
	return out
}
