package config

import (
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"REMOTE_BASE_URL": "http://remote/api",
		"AUTH0_TEST_MODE": "1",
		"TEST_JWT_SECRET": "s3cret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(lookupFrom(baseEnv()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Cache.Backend != CacheMemory || cfg.Remote.Timeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Layout) != 3 || cfg.Layout[0].Name != "DOEN" {
		t.Fatalf("unexpected default layout: %+v", cfg.Layout)
	}
	if len(cfg.Boards) != 1 || cfg.Boards[0] != "main" {
		t.Fatalf("unexpected default boards: %v", cfg.Boards)
	}
	if cfg.Notify.Workers != 4 || cfg.Notify.HandoffTimeout != 15*time.Millisecond {
		t.Fatalf("unexpected notify defaults: %+v", cfg.Notify)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["FUNCTIONS_CUSTOMHANDLER_PORT"] = "7071"
	env["BOARD_COLUMNS"] = "todo:To do, doing:Doing ,done"
	env["CACHE_BACKEND"] = "Redis"
	env["REDIS_CONNECTION_STRING"] = "localhost:6379"
	env["CACHE_TTL"] = "1h"
	env["NOTIFY_WORKERS"] = "8"
	env["DEBUG"] = "true"
	env["BOARD_IDS"] = " sales, ops ,sales,"

	cfg, err := load(lookupFrom(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7071" || !cfg.Debug || cfg.Cache.Backend != CacheRedis || cfg.Cache.TTL != time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Layout) != 3 || cfg.Layout[1].ID != "doing" || cfg.Layout[2].Name != "done" {
		t.Fatalf("unexpected layout: %+v", cfg.Layout)
	}
	if len(cfg.Boards) != 2 || cfg.Boards[0] != "sales" || cfg.Boards[1] != "ops" {
		t.Fatalf("unexpected boards: %v", cfg.Boards)
	}
	if cfg.Notify.Workers != 8 {
		t.Fatalf("unexpected workers: %d", cfg.Notify.Workers)
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	env := map[string]string{
		"NOTIFY_WORKERS": "many",
		"CACHE_TTL":      "-1s",
		"CACHE_BACKEND":  "table",
		"BOARD_COLUMNS":  "a,a",
		"BOARD_IDS":      " , ",
	}
	_, err := load(lookupFrom(env))
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{"NOTIFY_WORKERS", "CACHE_TTL", "REMOTE_BASE_URL", "STORAGE_CONNECTION_STRING", "BOARD_COLUMNS", "BOARD_IDS", "Auth0"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got %v", want, err)
		}
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions("redis://:pw@localhost:6380/2")
	if err != nil || opts.Addr != "localhost:6380" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("unexpected url options: %+v err=%v", opts, err)
	}
	opts, err = RedisOptions("cache.redis.example:6380,password=abc,ssl=True,abortConnect=False")
	if err != nil || opts.Addr != "cache.redis.example:6380" || opts.Password != "abc" || opts.TLSConfig == nil {
		t.Fatalf("unexpected azure options: %+v err=%v", opts, err)
	}
	if _, err := RedisOptions(""); err == nil {
		t.Fatalf("expected error for empty connection string")
	}
}
