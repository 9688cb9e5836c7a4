package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"offeragg/internal/aggregate"
	"offeragg/internal/filter"
	"offeragg/internal/provider"
)

type server struct {
	engine  *aggregate.Engine
	log     *slog.Logger
	timeout time.Duration
}

type offersResponse struct {
	Count  int              `json:"count"`
	Offers []provider.Offer `json:"offers"`
}

// streamLine is one NDJSON record of /offers/stream.
type streamLine struct {
	Provider provider.ID      `json:"provider"`
	Offers   []provider.Offer `json:"offers"`
	Error    string           `json:"error,omitempty"`
}

// routes mounts the API behind the middleware chain. /metrics stays
// outside it since promhttp negotiates its own encoding.
func (s *server) routes(metricsHandler http.Handler) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	api.HandleFunc("GET /providers", s.handleProviders)
	api.HandleFunc("GET /offers", s.handleOffers)
	api.HandleFunc("GET /offers/stream", s.handleStream)

	root := http.NewServeMux()
	if metricsHandler != nil {
		root.Handle("GET /metrics", metricsHandler)
	}
	root.Handle("/", withJSONHeaders(withGzip(recoverPanic(s.log, api))))
	return root
}

func (s *server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.engine.Providers()})
}

func (s *server) handleOffers(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()

	offers, err := s.engine.Search(ctx, q.addr, q.criteria, q.sort)
	switch {
	case errors.Is(err, provider.ErrInvalidAddress):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "search timed out", http.StatusGatewayTimeout)
		return
	case err != nil:
		// client went away
		s.log.Info("search abandoned", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, offersResponse{Count: len(offers), Offers: offers})
}

// handleStream writes one NDJSON line per provider as soon as its batch
// is ready. Filters apply per batch; sorting is not possible across
// batches and is ignored.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()

	ch, err := s.engine.Stream(ctx, q.addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	fs := q.criteria.Filters()
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			line := streamLine{Provider: b.Provider, Offers: filter.Apply(b.Offers, fs...)}
			if b.Err != nil {
				line.Error = b.Err.Error()
			}
			if err := enc.Encode(line); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

func (s *server) context(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

type query struct {
	addr     provider.Address
	criteria filter.Criteria
	sort     filter.SortKey
}

// parseQuery reads the address, filter and sort parameters. Booleans
// accept true/1/yes/y; an empty value leaves the filter off.
func parseQuery(v url.Values) (query, error) {
	var q query
	q.addr = provider.Address{
		Street:      v.Get("street"),
		HouseNumber: first(v, "house_number", "houseNumber"),
		PostalCode:  first(v, "plz", "postal_code"),
		City:        v.Get("city"),
	}

	var err error
	c := &q.criteria
	if c.MinSpeed, err = optInt(v, "min_speed"); err != nil {
		return q, err
	}
	if c.MaxDuration, err = optInt(v, "max_duration"); err != nil {
		return q, err
	}
	if c.MinLimitGB, err = optInt(v, "min_limit_gb"); err != nil {
		return q, err
	}
	if c.Age, err = optInt(v, "age"); err != nil {
		return q, err
	}
	if s := v.Get("tv"); s != "" {
		c.TV = provider.Ptr(filter.ParseBool(s))
	}
	c.UnlimitedOnly = filter.ParseBool(v.Get("unlimited"))
	c.InstallationRequired = filter.ParseBool(v.Get("installation"))
	c.ConnectionTypes = splitCSV(v.Get("connection"))
	for _, name := range splitCSV(v.Get("providers")) {
		id, ok := provider.ParseID(name)
		if !ok {
			return q, fmt.Errorf("unknown provider %q", name)
		}
		c.Providers = append(c.Providers, id)
	}

	if q.sort, err = filter.ParseSortKey(v.Get("sort")); err != nil {
		return q, err
	}
	return q, nil
}

func first(v url.Values, keys ...string) string {
	for _, k := range keys {
		if s := v.Get(k); s != "" {
			return s
		}
	}
	return ""
}

func optInt(v url.Values, key string) (*int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return &n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	gzPool := sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, gz: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) { return g.gz.Write(b) }

// Flush pushes buffered compressed bytes to the client, which keeps
// NDJSON streaming under gzip.
func (g *gzipResponseWriter) Flush() {
	_ = g.gz.Flush()
	_ = http.NewResponseController(g.ResponseWriter).Flush()
}

// recoverPanic protects handlers from panics.
func recoverPanic(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panic", "path", r.URL.Path, "panic", rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
