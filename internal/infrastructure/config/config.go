package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"polyticker/internal/domain"
)

// EnvAPIKey is read when feed.api_key is empty.
const EnvAPIKey = "POLYGON_API_KEY"

type Config struct {
	App struct {
		RefreshSec int    `toml:"refresh_sec" yaml:"refresh_sec"`
		LogLevel   string `toml:"log_level" yaml:"log_level"`
	} `toml:"app" yaml:"app"`

	Feed struct {
		Family          string   `toml:"family" yaml:"family"`
		WsURL           string   `toml:"ws_url" yaml:"ws_url"`
		APIKey          string   `toml:"api_key" yaml:"api_key"`
		Subscribe       []string `toml:"subscribe" yaml:"subscribe"`
		ChannelCapacity int      `toml:"channel_capacity" yaml:"channel_capacity"`
		PingIntervalSec int      `toml:"ping_interval_sec" yaml:"ping_interval_sec"`
		ReadTimeoutSec  int      `toml:"read_timeout_sec" yaml:"read_timeout_sec"`
	} `toml:"feed" yaml:"feed"`

	Instruments struct {
		List []string `toml:"list" yaml:"list"`
	} `toml:"instruments" yaml:"instruments"`

	Metrics struct {
		Enabled bool   `toml:"enabled" yaml:"enabled"`
		Addr    string `toml:"addr" yaml:"addr"`
	} `toml:"metrics" yaml:"metrics"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled" yaml:"enabled"`
			Path    string `toml:"path" yaml:"path"`
		} `toml:"sqlite" yaml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled" yaml:"enabled"`
			DSN     string `toml:"dsn" yaml:"dsn"`
		} `toml:"postgres" yaml:"postgres"`

		Redis struct {
			Enabled    bool   `toml:"enabled" yaml:"enabled"`
			Addr       string `toml:"addr" yaml:"addr"`
			Password   string `toml:"password" yaml:"password"`
			DB         int    `toml:"db" yaml:"db"`
			Prefix     string `toml:"prefix" yaml:"prefix"`
			TTLSeconds int    `toml:"ttl_seconds" yaml:"ttl_seconds"`
			Channel    string `toml:"channel" yaml:"channel"`
		} `toml:"redis" yaml:"redis"`

		Kafka struct {
			Enabled bool     `toml:"enabled" yaml:"enabled"`
			Brokers []string `toml:"brokers" yaml:"brokers"`
			Topic   string   `toml:"topic" yaml:"topic"`
			// EnsureTopic creates the topic (compacted) on startup.
			EnsureTopic bool `toml:"ensure_topic" yaml:"ensure_topic"`
		} `toml:"kafka" yaml:"kafka"`
	} `toml:"storage" yaml:"storage"`
}

// Load reads a TOML file, or YAML when the extension is .yml/.yaml.
func Load(path string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.RefreshSec <= 0 {
		cfg.App.RefreshSec = 1
	}
	if strings.TrimSpace(cfg.App.LogLevel) == "" {
		cfg.App.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.Feed.Family) == "" {
		cfg.Feed.Family = "crypto"
	}
	cfg.Feed.Family = strings.ToLower(strings.TrimSpace(cfg.Feed.Family))
	if cfg.Feed.ChannelCapacity <= 0 {
		cfg.Feed.ChannelCapacity = 1000
	}
	if strings.TrimSpace(cfg.Feed.APIKey) == "" {
		cfg.Feed.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		cfg.Metrics.Addr = ":9100"
	}
	if cfg.Storage.SQLite.Enabled && strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
		cfg.Storage.SQLite.Path = "data/polyticker.db"
	}
	if strings.TrimSpace(cfg.Storage.Redis.Prefix) == "" {
		cfg.Storage.Redis.Prefix = "polyticker"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Feed.APIKey) == "" {
		return fmt.Errorf("feed.api_key is empty and %s is not set", EnvAPIKey)
	}

	cfg.Instruments.List = normalizeInstruments(cfg.Instruments.List)
	if len(cfg.Instruments.List) == 0 {
		return errors.New("instruments.list is empty")
	}
	for _, inst := range cfg.Instruments.List {
		if _, _, ok := domain.SplitInstrument(inst); !ok {
			return fmt.Errorf("instruments.list: %q is not SYMBOL-CURRENCY", inst)
		}
	}
	if cfg.Feed.PingIntervalSec < 0 || cfg.Feed.ReadTimeoutSec < 0 {
		return errors.New("feed.ping_interval_sec and feed.read_timeout_sec must not be negative")
	}

	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.Kafka.Enabled && (len(cfg.Storage.Kafka.Brokers) == 0 || strings.TrimSpace(cfg.Storage.Kafka.Topic) == "") {
		return errors.New("storage.kafka.brokers/topic empty but enabled")
	}
	return nil
}

// normalizeInstruments upper-cases, trims and de-duplicates "SYM-CCY" entries.
// A bare symbol means USD.
func normalizeInstruments(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if !strings.Contains(u, "-") {
			u += "-USD"
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
