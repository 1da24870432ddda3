package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "test.sqlite"},
		},
		Scheduler: SchedulerConfig{Interval: time.Minute},
		Monitor: MonitorConfig{
			Window:       15 * time.Minute,
			ThresholdPct: 20,
			Exchanges:    []string{"binance", "okx"},
			FetchTimeout: 12 * time.Second,
		},
		Export: ExportConfig{MaxDataPoints: 1000},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"zero window", func(c *Config) { c.Monitor.Window = 0 }},
		{"zero threshold", func(c *Config) { c.Monitor.ThresholdPct = 0 }},
		{"negative threshold", func(c *Config) { c.Monitor.ThresholdPct = -5 }},
		{"no exchanges", func(c *Config) { c.Monitor.Exchanges = nil }},
		{"unknown exchange", func(c *Config) { c.Monitor.Exchanges = []string{"binance", "mtgox"} }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"sqlite without path", func(c *Config) { c.Storage.SQLite.Path = "" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"telegram without token", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "chat"
		}},
		{"telegram without chat", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.BotToken = "token"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEffectiveCooldownFlooredAtInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.Interval = time.Minute

	cfg.Alerting.Cooldown = 10 * time.Second
	if got := cfg.EffectiveCooldown(); got != time.Minute {
		t.Fatalf("cooldown below interval should floor to interval, got %s", got)
	}

	cfg.Alerting.Cooldown = 5 * time.Minute
	if got := cfg.EffectiveCooldown(); got != 5*time.Minute {
		t.Fatalf("cooldown above interval should win, got %s", got)
	}
}

func TestExchangeIDsParsesNames(t *testing.T) {
	cfg := validConfig()
	ids, err := cfg.ExchangeIDs()
	if err != nil {
		t.Fatalf("parse exchanges: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("default interval should be 60s, got %s", cfg.Scheduler.Interval)
	}
	if cfg.Monitor.Window != 15*time.Minute {
		t.Fatalf("default window should be 15m, got %s", cfg.Monitor.Window)
	}
	if cfg.Monitor.ThresholdPct != 20.0 {
		t.Fatalf("default threshold should be 20, got %v", cfg.Monitor.ThresholdPct)
	}
	if len(cfg.Monitor.Exchanges) != 4 {
		t.Fatalf("default exchanges should cover all venues, got %v", cfg.Monitor.Exchanges)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("default driver should be sqlite, got %s", cfg.Storage.Driver)
	}
}
