// Package config defines all configuration for the trading simulator.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via TRADESIM_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP/WebSocket listener.
//
//   - SubmitRatePerSec / SubmitBurst: per-user token-bucket throttle on
//     order submissions, applied before the risk gate.
type ServerConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	SubmitRatePerSec float64       `mapstructure:"submit_rate_per_sec"`
	SubmitBurst      int           `mapstructure:"submit_burst"`
}

// SeedConfig selects where the simulation world is loaded from.
// Source is one of: embedded, yaml, sqlite, http.
type SeedConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"` // yaml file or sqlite database
	URL    string `mapstructure:"url"`  // http source
}

// EngineConfig tunes the simulation loop cadences.
//
//   - TickInterval: news activation and GBM stepping.
//   - BotRefreshInterval: bot quote cancel-and-replace cycle.
//   - GeneratorInterval: paired reference orders.
//   - BroadcastInterval: price pushes to WebSocket subscribers.
type EngineConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	BotRefreshInterval time.Duration `mapstructure:"bot_refresh_interval"`
	GeneratorInterval  time.Duration `mapstructure:"generator_interval"`
	BroadcastInterval  time.Duration `mapstructure:"broadcast_interval"`
}

// StoreConfig sets where user ledger state is persisted (JSON files).
// An empty DataDir disables persistence.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides
// (TRADESIM_SERVER_PORT, TRADESIM_SEED_SOURCE, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.submit_rate_per_sec", 50.0)
	v.SetDefault("server.submit_burst", 100)
	v.SetDefault("seed.source", "embedded")
	v.SetDefault("engine.tick_interval", time.Second)
	v.SetDefault("engine.bot_refresh_interval", 750*time.Millisecond)
	v.SetDefault("engine.generator_interval", 5*time.Second)
	v.SetDefault("engine.broadcast_interval", 500*time.Millisecond)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	switch c.Seed.Source {
	case "embedded":
	case "yaml", "sqlite":
		if c.Seed.Path == "" {
			return fmt.Errorf("seed.path is required when seed.source is %q", c.Seed.Source)
		}
	case "http":
		if c.Seed.URL == "" {
			return fmt.Errorf("seed.url is required when seed.source is http")
		}
	default:
		return fmt.Errorf("seed.source must be one of: embedded, yaml, sqlite, http")
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be > 0")
	}
	if c.Engine.BotRefreshInterval <= 0 {
		return fmt.Errorf("engine.bot_refresh_interval must be > 0")
	}
	if c.Engine.GeneratorInterval <= 0 {
		return fmt.Errorf("engine.generator_interval must be > 0")
	}
	if c.Engine.BroadcastInterval <= 0 {
		return fmt.Errorf("engine.broadcast_interval must be > 0")
	}
	if c.Server.SubmitRatePerSec <= 0 {
		return fmt.Errorf("server.submit_rate_per_sec must be > 0")
	}
	return nil
}
