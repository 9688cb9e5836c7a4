package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"offeragg/internal/provider"
)

// PostgresStore keeps entries in the offer_cache table. Rows older than the
// TTL are purged on write.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects to dsn, waits for the server and creates the
// table if needed.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: postgres open: %w", err)
	}
	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: postgres ping: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: postgres migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS offer_cache (
			key        TEXT        PRIMARY KEY,
			provider   TEXT        NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			rows       JSONB       NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_offer_cache_fetched_at ON offer_cache(fetched_at);
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		prov    string
		fetched time.Time
		rows    []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, fetched_at, rows FROM offer_cache WHERE key = $1`, key,
	).Scan(&prov, &fetched, &rows)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e, err := DecodeRow(prov, fetched, rows)
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return e, true, nil
}

// DecodeRow rebuilds an Entry from an offer_cache row. The provider column
// is taken verbatim, as written by Set.
func DecodeRow(prov string, fetched time.Time, rows []byte) (Entry, error) {
	e := Entry{Provider: provider.ID(prov), Timestamp: fetched}
	if err := json.Unmarshal(rows, &e.Rows); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	rows, err := json.Marshal(e.Rows)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO offer_cache (key, provider, fetched_at, rows)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET provider = EXCLUDED.provider, fetched_at = EXCLUDED.fetched_at, rows = EXCLUDED.rows
	`, key, string(e.Provider), e.Timestamp, rows); err != nil {
		return fmt.Errorf("cache: postgres upsert: %w", err)
	}
	if ttl > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM offer_cache WHERE fetched_at < $1`, e.Timestamp.Add(-ttl),
		); err != nil {
			return fmt.Errorf("cache: postgres purge: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
