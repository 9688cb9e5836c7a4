package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"offeragg/internal/provider"
)

// Validation errors.
var (
	ErrNoProviders          = errors.New("at least one provider must be enabled")
	ErrInvalidCacheBackend  = errors.New("cache.backend must be one of: file, redis, postgres, memory")
	ErrInvalidCacheTTL      = errors.New("cache.ttl_sec must be non-negative")
	ErrMissingCacheDir      = errors.New("cache.dir is required for the file backend")
	ErrMissingRedisURL      = errors.New("cache.redis_url is required for the redis backend")
	ErrMissingDatabaseURL   = errors.New("cache.database_url is required for the postgres backend")
	ErrInvalidMaxAttempts   = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidBackoff       = errors.New("retry.backoff must be at least 1")
	ErrInvalidTimeout       = errors.New("provider timeout_sec must be between 1 and 60")
	ErrInvalidLogLevel      = errors.New("log.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat     = errors.New("log.format must be 'text' or 'json'")
	ErrInvalidWorkers       = errors.New("workers must be non-negative")
	ErrInvalidRequestWindow = errors.New("provider rate limits must be non-negative")
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type Cache struct {
	Backend     string `json:"backend" yaml:"backend"`
	TTLSeconds  int    `json:"ttl_sec" yaml:"ttl_sec"`
	Dir         string `json:"dir" yaml:"dir"`
	RedisURL    string `json:"redis_url" yaml:"redis_url"`
	DatabaseURL string `json:"database_url" yaml:"database_url"`
}

// TTL returns the configured lifetime of a cache entry.
func (c Cache) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

type Retry struct {
	MaxAttempts int     `json:"max_attempts" yaml:"max_attempts"`
	Backoff     float64 `json:"backoff" yaml:"backoff"`
}

// Upstream configures one provider. Only the credential fields the
// provider uses are read.
type Upstream struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Secret   string `json:"signature_secret" yaml:"signature_secret"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	TimeoutSec            int `json:"timeout_sec" yaml:"timeout_sec"`
	MaxRequestsPerMinute  int `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	// Burst defaults to a tenth of MaxRequestsPerMinute.
	Burst                 int `json:"burst" yaml:"burst"`
}

// Timeout is the per-attempt deadline.
func (u Upstream) Timeout() time.Duration { return time.Duration(u.TimeoutSec) * time.Second }

type Providers struct {
	ByteMe      Upstream `json:"byteme" yaml:"byteme"`
	PingPerfect Upstream `json:"pingperfect" yaml:"pingperfect"`
	ServusSpeed Upstream `json:"servusspeed" yaml:"servusspeed"`
	VerbynDich  Upstream `json:"verbyndich" yaml:"verbyndich"`
	WebWunder   Upstream `json:"webwunder" yaml:"webwunder"`
}

// Get returns the settings for id.
func (p *Providers) Get(id provider.ID) *Upstream {
	switch id {
	case provider.ByteMe:
		return &p.ByteMe
	case provider.PingPerfect:
		return &p.PingPerfect
	case provider.ServusSpeed:
		return &p.ServusSpeed
	case provider.VerbynDich:
		return &p.VerbynDich
	case provider.WebWunder:
		return &p.WebWunder
	}
	return nil
}

// HasCredentials reports whether u carries what id needs to authenticate.
func (u Upstream) HasCredentials(id provider.ID) bool {
	switch id {
	case provider.PingPerfect:
		return u.ClientID != "" && u.Secret != ""
	case provider.ServusSpeed:
		return u.Username != "" && u.Password != ""
	default:
		return u.APIKey != ""
	}
}

type Config struct {
	Server    Server    `json:"server" yaml:"server"`
	Log       Log       `json:"log" yaml:"log"`
	Cache     Cache     `json:"cache" yaml:"cache"`
	Retry     Retry     `json:"retry" yaml:"retry"`
	Workers   int       `json:"workers" yaml:"workers"`
	Providers Providers `json:"providers" yaml:"providers"`
}

func Default() Config {
	up := func(timeout int) Upstream { return Upstream{Enabled: true, TimeoutSec: timeout} }
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 120},
		Log:    Log{Level: "info", Format: "text"},
		Cache:  Cache{Backend: "file", TTLSeconds: 3600, Dir: "cache"},
		Retry:  Retry{MaxAttempts: 3, Backoff: 5},
		Providers: Providers{
			ByteMe:      up(10),
			PingPerfect: up(10),
			ServusSpeed: up(20),
			VerbynDich:  up(15),
			WebWunder:   up(20),
		},
	}
}

// Load reads a .env file if present, then a JSON or YAML config from path
// (chosen by extension), then applies environment overrides. If path is
// empty, config.json or config.yaml in the working directory is used when
// present; otherwise defaults apply.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, min int, dst *int) {
		if v := os.Getenv(key); v != "" {
			if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x >= min {
				*dst = x
			}
		}
	}

	str("PORT", &cfg.Server.Port)
	num("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	num("WORKERS", 0, &cfg.Workers)

	str("CACHE_BACKEND", &cfg.Cache.Backend)
	str("CACHE_DIR", &cfg.Cache.Dir)
	num("CACHE_TIME", 0, &cfg.Cache.TTLSeconds)
	str("REDIS_URL", &cfg.Cache.RedisURL)
	str("DATABASE_URL", &cfg.Cache.DatabaseURL)

	num("MAX_RETRIES", 1, &cfg.Retry.MaxAttempts)
	if v := os.Getenv("RETRY_BACKOFF"); v != "" {
		if x, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && x >= 1 {
			cfg.Retry.Backoff = x
		}
	}

	p := &cfg.Providers
	str("BYTEME_API_KEY", &p.ByteMe.APIKey)
	str("PINGPERFECT_CLIENT_ID", &p.PingPerfect.ClientID)
	str("PINGPERFECT_SIGNATURE_SECRET", &p.PingPerfect.Secret)
	str("SERVUSSPEED_USERNAME", &p.ServusSpeed.Username)
	str("SERVUSSPEED_PASSWORD", &p.ServusSpeed.Password)
	str("VERBYNDICH_API_KEY", &p.VerbynDich.APIKey)
	str("WEBWUNDER_API_KEY", &p.WebWunder.APIKey)

	for _, id := range provider.IDs() {
		u := p.Get(id)
		prefix := strings.ToUpper(id.Slug()) + "_"
		str(prefix+"BASE_URL", &u.BaseURL)
		num(prefix+"TIMEOUT_SEC", 1, &u.TimeoutSec)
		num(prefix+"MAX_RPM", 0, &u.MaxRequestsPerMinute)
		num(prefix+"MIN_INTERVAL_SEC", 0, &u.MinRequestIntervalSec)
		if v := os.Getenv(prefix + "ENABLED"); v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "y":
				u.Enabled = true
			case "0", "false", "no", "n":
				u.Enabled = false
			}
		}
	}
}

// Validate checks structural settings. Missing credentials are not an
// error here; such providers are skipped when the registry is built.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	if c.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Cache.TTLSeconds < 0 {
		return ErrInvalidCacheTTL
	}
	switch c.Cache.Backend {
	case "file":
		if c.Cache.Dir == "" {
			return ErrMissingCacheDir
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			return ErrMissingRedisURL
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case "memory":
	default:
		return ErrInvalidCacheBackend
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.Backoff < 1 {
		return ErrInvalidBackoff
	}

	enabled := 0
	for _, id := range provider.IDs() {
		u := c.Providers.Get(id)
		if !u.Enabled {
			continue
		}
		enabled++
		if u.TimeoutSec < 1 || u.TimeoutSec > 60 {
			return fmt.Errorf("%s: %w", id, ErrInvalidTimeout)
		}
		if u.MaxRequestsPerMinute < 0 || u.MinRequestIntervalSec < 0 || u.Burst < 0 {
			return fmt.Errorf("%s: %w", id, ErrInvalidRequestWindow)
		}
	}
	if enabled == 0 {
		return ErrNoProviders
	}
	return nil
}
