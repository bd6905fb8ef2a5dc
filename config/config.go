// Package config reads service settings from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"kanban-sync/domain"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTable  = "table"
)

type Config struct {
	ListenAddr string
	Debug      bool
	Layout     domain.Layout
	// Boards are the board ids the gateway serves. They all read the same
	// remote list and differ only in cache key and notification channel.
	Boards []string

	// Shared connection settings.
	RedisConnection   string
	StorageConnection string

	Remote RemoteConfig
	Cache  CacheConfig
	Notify NotifyConfig
	Auth   AuthConfig
}

type RemoteConfig struct {
	BaseURL    string
	Token      string
	JWTSecret  string
	JWTSubject string
	Timeout    time.Duration
}

type CacheConfig struct {
	Backend string
	TTL     time.Duration
	Table   string
}

type NotifyConfig struct {
	// Channel is the Redis pub/sub channel; empty publishes per board. Redis
	// publishing is enabled whenever a Redis connection is configured.
	Channel        string
	Queue          string
	Workers        int
	Buffer         int
	HandoffTimeout time.Duration
}

type AuthConfig struct {
	Domain       string
	Audience     string
	TestMode     bool
	TestSecret   string
	JWKSCacheTTL time.Duration
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func load(lookup lookupFunc) (Config, error) {
	var errs []error
	env := envReader{lookup: lookup, errs: &errs}

	cfg := Config{
		ListenAddr:        ":8080",
		Debug:             env.Bool("DEBUG", false),
		RedisConnection:   env.String("REDIS_CONNECTION_STRING", ""),
		StorageConnection: env.String("STORAGE_CONNECTION_STRING", ""),
		Remote: RemoteConfig{
			BaseURL:    env.String("REMOTE_BASE_URL", ""),
			Token:      env.String("REMOTE_TOKEN", ""),
			JWTSecret:  env.String("REMOTE_JWT_SECRET", ""),
			JWTSubject: env.String("REMOTE_JWT_SUBJECT", "kanban-sync"),
			Timeout:    env.Dur("REMOTE_TIMEOUT", 15*time.Second),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(env.String("CACHE_BACKEND", CacheMemory)),
			TTL:     env.Dur("CACHE_TTL", 7*24*time.Hour),
			Table:   env.String("CACHE_TABLE", "BoardSnapshots"),
		},
		Notify: NotifyConfig{
			Channel:        env.String("NOTIFY_CHANNEL", ""),
			Queue:          env.String("NOTIFY_QUEUE", ""),
			Workers:        env.Int("NOTIFY_WORKERS", 4),
			Buffer:         env.Int("NOTIFY_BUFFER", 256),
			HandoffTimeout: env.Dur("NOTIFY_HANDOFF_TIMEOUT", 15*time.Millisecond),
		},
		Auth: AuthConfig{
			Domain:       env.String("AUTH0_DOMAIN", ""),
			Audience:     env.String("AUTH0_AUDIENCE", ""),
			TestMode:     env.String("AUTH0_TEST_MODE", "") == "1",
			TestSecret:   env.String("TEST_JWT_SECRET", ""),
			JWKSCacheTTL: env.Dur("JWKS_CACHE_TTL", 15*time.Minute),
		},
	}
	if v := env.String("LISTEN_ADDR", ""); v != "" {
		cfg.ListenAddr = v
	} else if v := env.String("FUNCTIONS_CUSTOMHANDLER_PORT", ""); v != "" {
		cfg.ListenAddr = ":" + v
	}

	cfg.Layout = domain.DefaultLayout()
	if raw := env.String("BOARD_COLUMNS", ""); raw != "" {
		layout, err := domain.ParseLayout(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOARD_COLUMNS: %w", err))
		} else {
			cfg.Layout = layout
		}
	}

	cfg.Boards = parseBoards(env.String("BOARD_IDS", "main"))

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("missing REMOTE_BASE_URL"))
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisConnection == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis needs REDIS_CONNECTION_STRING"))
		}
	case CacheTable:
		if c.StorageConnection == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=table needs STORAGE_CONNECTION_STRING"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported CACHE_BACKEND %q", c.Cache.Backend))
	}
	if c.Notify.Queue != "" && c.StorageConnection == "" {
		errs = append(errs, errors.New("NOTIFY_QUEUE needs STORAGE_CONNECTION_STRING"))
	}
	if len(c.Boards) == 0 {
		errs = append(errs, errors.New("BOARD_IDS must name at least one board"))
	}
	if c.Notify.Workers <= 0 {
		errs = append(errs, errors.New("NOTIFY_WORKERS must be greater than zero"))
	}
	if c.Auth.TestMode {
		if c.Auth.TestSecret == "" {
			errs = append(errs, errors.New("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1"))
		}
	} else if c.Auth.Domain == "" || c.Auth.Audience == "" {
		errs = append(errs, errors.New("missing Auth0 config"))
	}
	return errs
}

func parseBoards(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// RedisOptions parses a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}

// envReader collects parse errors instead of failing on the first one.
type envReader struct {
	lookup lookupFunc
	errs   *[]error
}

func (e envReader) String(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e envReader) Int(key string, def int) int {
	raw := e.String(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (e envReader) Dur(key string, def time.Duration) time.Duration {
	raw := e.String(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s: %q", key, raw))
		return def
	}
	return d
}

func (e envReader) Bool(key string, def bool) bool {
	raw := e.String(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}
