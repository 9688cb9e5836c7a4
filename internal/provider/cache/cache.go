package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"
	"offeragg/internal/metrics"
	"offeragg/internal/provider"
)

// DefaultTTL is how long a provider's answer for an address stays usable.
const DefaultTTL = time.Hour

// Entry is one cached provider answer.
type Entry struct {
	Provider  provider.ID      `json:"provider,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Rows      []provider.Offer `json:"rows"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}

// Store persists entries by key. Get reports a missing key as ok=false
// with a nil error. Stores are safe for concurrent use; concurrent Sets on
// one key leave whichever finished last.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error
	Close() error
}

// Key identifies a (provider, address) pair. Addresses that differ only in
// case, spacing or diacritics share a key.
func Key(id provider.ID, addr provider.Address) string {
	b, _ := json.Marshal(addr.Canonical())
	h := sha256.New()
	h.Write([]byte(id))
	h.Write(b)
	return id.Slug() + "_" + hex.EncodeToString(h.Sum(nil))
}

// Provider answers from Store while an entry is fresh and otherwise calls
// P and stores the result, empty results included. Failed fetches are not
// stored. Concurrent misses for one key share a single upstream call.
type Provider struct {
	P       provider.Provider
	Store   Store
	TTL     time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time

	group singleflight.Group
}

func (c *Provider) ID() provider.ID { return c.P.ID() }

func (c *Provider) Fetch(ctx context.Context, addr provider.Address) ([]provider.Offer, error) {
	if c.Store == nil || c.TTL <= 0 {
		return c.P.Fetch(ctx, addr)
	}
	id := c.P.ID()
	key := Key(id, addr)

	if e, ok := c.lookup(ctx, key); ok {
		c.Metrics.CacheLookup(string(id), true)
		c.logger().Debug("cache hit", "provider", string(id), "key", key, "age", c.now().Sub(e.Timestamp).Round(time.Second))
		return slices.Clone(e.Rows), nil
	}
	c.Metrics.CacheLookup(string(id), false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have filled the key while we waited.
		if e, ok := c.lookup(ctx, key); ok {
			return e.Rows, nil
		}
		rows, err := c.P.Fetch(ctx, addr)
		if err != nil {
			return rows, err
		}
		if rows == nil {
			rows = []provider.Offer{}
		}
		e := Entry{Provider: id, Timestamp: c.now(), Rows: rows}
		if err := c.Store.Set(ctx, key, e, c.TTL); err != nil {
			c.logger().Warn("cache write failed", "provider", string(id), "key", key, "error", err)
		}
		return rows, nil
	})
	rows, _ := v.([]provider.Offer)
	return slices.Clone(rows), err
}

func (c *Provider) lookup(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		c.logger().Warn("cache read failed", "provider", string(c.P.ID()), "key", key, "error", err)
		return Entry{}, false
	}
	if !ok || !e.Fresh(c.now(), c.TTL) {
		return Entry{}, false
	}
	return e, true
}

func (c *Provider) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Provider) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
