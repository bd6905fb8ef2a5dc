package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kanban-sync/api"
	"kanban-sync/board"
	"kanban-sync/cache"
	"kanban-sync/config"
	"kanban-sync/notify"
	"kanban-sync/remote"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("kanban-sync: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	var rc *redis.Client
	if cfg.RedisConnection != "" {
		opts, err := config.RedisOptions(cfg.RedisConnection)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rc = redis.NewClient(opts)
		defer rc.Close()
	}

	snapshots, err := newCache(ctx, cfg, rc)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	sink, err := newSink(ctx, cfg, rc, logger)
	if err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	dispatcher := notify.NewDispatcher(sink, notify.DispatcherConfig{
		Workers:        cfg.Notify.Workers,
		Buffer:         cfg.Notify.Buffer,
		HandoffTimeout: cfg.Notify.HandoffTimeout,
	}, logger)
	defer dispatcher.Close()

	client := remote.New(cfg.Remote.BaseURL, &http.Client{Timeout: cfg.Remote.Timeout}, tokenSource(cfg.Remote), logger)
	boards := board.NewRegistry(client, board.Config{
		Layout:   cfg.Layout,
		Cache:    snapshots,
		Notifier: dispatcher,
		Logger:   logger,
	}, cfg.Boards...)

	auth, err := newAuth(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	e := echo.New()
	api.Use(e, logger)
	api.Register(e, boards, auth, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on %s", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newCache(ctx context.Context, cfg config.Config, rc *redis.Client) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		return cache.NewRedis(rc, cfg.Cache.TTL), nil
	case config.CacheTable:
		t, err := cache.NewTable(cfg.StorageConnection, cfg.Cache.Table)
		if err != nil {
			return nil, err
		}
		if err := t.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return cache.NewMemory(), nil
	}
}

func newSink(ctx context.Context, cfg config.Config, rc *redis.Client, logger *log.Logger) (notify.Sink, error) {
	sinks := notify.Fanout{notify.LogSink{Logger: logger}}
	if rc != nil {
		sinks = append(sinks, notify.NewRedisSink(rc, cfg.Notify.Channel))
	}
	if cfg.Notify.Queue != "" {
		q, err := notify.NewQueueSink(cfg.StorageConnection, cfg.Notify.Queue)
		if err != nil {
			return nil, err
		}
		if err := q.EnsureQueue(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, q)
	}
	return sinks, nil
}

func tokenSource(cfg config.RemoteConfig) remote.TokenSource {
	switch {
	case cfg.JWTSecret != "":
		return remote.NewHS256Source([]byte(cfg.JWTSecret), cfg.JWTSubject, "", 5*time.Minute)
	case cfg.Token != "":
		return remote.StaticToken(cfg.Token)
	default:
		return nil
	}
}

func newAuth(cfg config.AuthConfig) (*api.Auth, error) {
	if cfg.TestMode {
		return api.NewAuth(nil, cfg.Audience, "", api.AuthOptions{TestSecret: []byte(cfg.TestSecret)}), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   cfg.JWKSCacheTTL,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, cfg.Audience, "https://"+cfg.Domain+"/", api.AuthOptions{}), nil
}
