package cache

import (
	"context"
	"fmt"
)

// Backends accepted by Open.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a Store.
type Options struct {
	Backend     string
	Dir         string
	RedisURL    string
	DatabaseURL string
}

// Open builds the Store named by o.Backend. An empty backend means file.
func Open(ctx context.Context, o Options) (Store, error) {
	switch o.Backend {
	case "", BackendFile:
		return NewFileStore(o.Dir)
	case BackendRedis:
		return NewRedisStore(ctx, o.RedisURL)
	case BackendPostgres:
		return OpenPostgresStore(ctx, o.DatabaseURL)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", o.Backend)
	}
}
