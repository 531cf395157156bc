package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  host: 127.0.0.1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want default 8000", cfg.Server.Port)
	}
	if cfg.Seed.Source != "embedded" {
		t.Errorf("seed source = %q, want default embedded", cfg.Seed.Source)
	}
	if cfg.Engine.TickInterval != time.Second {
		t.Errorf("tick interval = %v, want default 1s", cfg.Engine.TickInterval)
	}
	if cfg.Engine.BotRefreshInterval != 750*time.Millisecond {
		t.Errorf("bot refresh interval = %v, want default 750ms", cfg.Engine.BotRefreshInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
seed:
  source: yaml
  path: world.yaml
engine:
  generator_interval: 2s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Seed.Source != "yaml" || cfg.Seed.Path != "world.yaml" {
		t.Errorf("seed = %+v, want yaml source with path", cfg.Seed)
	}
	if cfg.Engine.GeneratorInterval != 2*time.Second {
		t.Errorf("generator interval = %v, want 2s", cfg.Engine.GeneratorInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRADESIM_SERVER_PORT", "9200")
	path := writeConfig(t, "server:\n  port: 9100\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want env override 9200", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8000, SubmitRatePerSec: 50, SubmitBurst: 100},
			Seed:   SeedConfig{Source: "embedded"},
			Engine: EngineConfig{
				TickInterval:       time.Second,
				BotRefreshInterval: 750 * time.Millisecond,
				GeneratorInterval:  5 * time.Second,
				BroadcastInterval:  500 * time.Millisecond,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"yaml source needs path", func(c *Config) { c.Seed.Source = "yaml" }, true},
		{"sqlite source with path", func(c *Config) { c.Seed.Source = "sqlite"; c.Seed.Path = "w.db" }, false},
		{"http source needs url", func(c *Config) { c.Seed.Source = "http" }, true},
		{"unknown source", func(c *Config) { c.Seed.Source = "carrier-pigeon" }, true},
		{"zero tick interval", func(c *Config) { c.Engine.TickInterval = 0 }, true},
		{"zero broadcast interval", func(c *Config) { c.Engine.BroadcastInterval = 0 }, true},
		{"zero submit rate", func(c *Config) { c.Server.SubmitRatePerSec = 0 }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
