package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"watchparty-quiz/internal/app"
	"watchparty-quiz/internal/config"
	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/infra/memory"
	pgnotify "watchparty-quiz/internal/infra/postgres"
	"watchparty-quiz/internal/infra/rabbitmq"
	redisinfra "watchparty-quiz/internal/infra/redis"
	"watchparty-quiz/internal/infra/sqlstore"
)

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openSQLStore opens the configured SQL store and applies migrations.
func openSQLStore(ctx context.Context, cfg config.Config) (*sqlstore.Store, error) {
	var (
		store *sqlstore.Store
		err   error
	)
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		store, err = sqlstore.OpenSQLite(cfg.SQLite.Path)
	case config.StoragePostgres:
		store, err = sqlstore.OpenPostgres(cfg.Postgres.URL)
	default:
		return nil, fmt.Errorf("storage driver %q has no database", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}
	if _, err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// components is everything start needs, with one cleanup for all of it.
type components struct {
	service    *app.Service
	subscriber app.Subscriber
	closers    []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func buildComponents(ctx context.Context, cfg config.Config, log *slog.Logger) (*components, error) {
	c := &components{}
	fail := func(err error) (*components, error) {
		c.Close()
		return nil, err
	}

	var store app.Store
	if cfg.Storage.Driver == config.StorageMemory {
		store = memory.NewStore()
	} else {
		sql, err := openSQLStore(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		c.closers = append(c.closers, sql.Close)
		store = sql
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, redisClient.Close)
	}

	hub := memory.NewHub()
	var notifier app.Notifier = hub
	c.subscriber = hub
	switch cfg.Notify.Driver {
	case config.NotifyRedis:
		n := redisinfra.NewNotifier(redisClient, hub, cfg.Notify.Channel, log)
		if err := n.Start(ctx); err != nil {
			return fail(err)
		}
		notifier = n
	case config.NotifyPostgres:
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		n := pgnotify.NewNotifier(pool, hub, cfg.Notify.Channel, log)
		if err := n.Start(ctx); err != nil {
			return fail(err)
		}
		notifier = n
	case config.NotifyRabbitMQ:
		n, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, hub, log)
		if err != nil {
			return fail(err)
		}
		c.closers = append(c.closers, n.Close)
		if err := n.Start(ctx); err != nil {
			return fail(err)
		}
		notifier = n
	}

	ttl := config.TTLDuration(cfg.Results.TTL, 5*time.Second)
	var cache app.ResultsCache
	switch cfg.Results.Cache {
	case config.CacheMemory:
		cache = memory.NewResultsCache(ttl)
	case config.CacheRedis:
		cache = redisinfra.NewResultsCache(redisClient, ttl)
	}

	c.service = app.NewService(store, notifier, cache, app.Options{
		DefaultScoring:  domain.ScoringMode(cfg.Quiz.ScoringMode),
		EnforceDeadline: cfg.Quiz.EnforceDeadline,
		DeadlineGrace:   config.TTLDuration(cfg.Quiz.DeadlineGrace, 2*time.Second),
		Logger:          log,
	})
	log.Info("components ready",
		"storage", cfg.Storage.Driver,
		"notify", cfg.Notify.Driver,
		"results_cache", cfg.Results.Cache,
	)
	return c, nil
}

func stderrLogger(cfg config.Config) *slog.Logger {
	return newLogger(cfg, os.Stderr)
}
