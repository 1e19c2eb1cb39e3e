package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server struct {
		Port       int    `toml:"port"`
		AdminToken string `toml:"admin_token"`
	} `toml:"server"`

	Alpaca struct {
		BaseURL string `toml:"base_url"`
		Key     string `toml:"key"`
		Secret  string `toml:"secret"`
	} `toml:"alpaca"`

	Storage struct {
		Backend string   `toml:"backend"` // sqlite | postgres | redis | memory
		Mirrors []string `toml:"mirrors"`

		SQLite struct {
			Path string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`

		Redis struct {
			Addr       string `toml:"addr"`
			Password   string `toml:"password"`
			DB         int    `toml:"db"`
			Prefix     string `toml:"prefix"`
			TTLSeconds int    `toml:"ttl_seconds"`
		} `toml:"redis"`
	} `toml:"storage"`

	Refresh struct {
		Enabled  bool   `toml:"enabled"`
		Schedule string `toml:"schedule"`
	} `toml:"refresh"`
}

// Load reads the toml config file, overlays environment variables and
// validates the result. A missing file is not an error; env + defaults alone
// are a valid configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables on top of the file. Secrets are
// expected to arrive this way in deployment; the legacy variable names are
// honoured as fallbacks.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := envFirst("ALPACA_API_KEY", "ALPACA_KEY_ID"); v != "" {
		cfg.Alpaca.Key = v
	}
	if v := envFirst("ALPACA_API_SECRET", "ALPACA_SECRET_KEY"); v != "" {
		cfg.Alpaca.Secret = v
	}
	if v := envFirst("ALPACA_DATA_BASE_URL", "ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
}

func envFirst(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/folio.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "folio"
	}
	if cfg.Refresh.Schedule == "" {
		cfg.Refresh.Schedule = "@every 5m"
	}
}

func validate(cfg *Config) error {
	backends := append([]string{cfg.Storage.Backend}, cfg.Storage.Mirrors...)
	for _, backend := range backends {
		switch backend {
		case "sqlite", "memory":
		case "postgres":
			if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
				return errors.New("storage.postgres.dsn empty but postgres backend selected")
			}
		case "redis":
			if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
				return errors.New("storage.redis.addr empty but redis backend selected")
			}
		default:
			return fmt.Errorf("unknown storage backend %q", backend)
		}
	}
	return nil
}
