package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Notify drivers.
const (
	NotifyMemory   = "memory"
	NotifyRedis    = "redis"
	NotifyPostgres = "postgres"
	NotifyRabbitMQ = "rabbitmq"
)

// Results cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Notify struct {
		Driver  string `yaml:"driver"`
		Channel string `yaml:"channel"`
	} `yaml:"notify"`
	Quiz struct {
		ScoringMode     string `yaml:"scoring_mode"`
		EnforceDeadline bool   `yaml:"enforce_deadline"`
		DeadlineGrace   string `yaml:"deadline_grace"`
	} `yaml:"quiz"`
	Results struct {
		Cache string `yaml:"cache"`
		TTL   string `yaml:"ttl"`
	} `yaml:"results"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the single-process configuration: in-memory store,
// in-process notifications and a memory results cache.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Storage.Driver = StorageMemory
	cfg.SQLite.Path = "watchparty.db"
	cfg.Notify.Driver = NotifyMemory
	cfg.Quiz.ScoringMode = "time_weighted"
	cfg.Quiz.DeadlineGrace = "2s"
	cfg.Results.Cache = CacheMemory
	cfg.Results.TTL = "5s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file is not
// an error: the defaults (plus flags and env) are enough to run.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver needs.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			errs = append(errs, errors.New("sqlite.path is required for the sqlite store"))
		}
	case StoragePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres.url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Notify.Driver {
	case NotifyMemory:
	case NotifyRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for redis notifications"))
		}
	case NotifyPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres.url is required for postgres notifications"))
		}
	case NotifyRabbitMQ:
		if c.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("rabbitmq.url is required for rabbitmq notifications"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notify.driver %q", c.Notify.Driver))
	}

	switch c.Results.Cache {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis results cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown results.cache %q", c.Results.Cache))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
