package config

import (
	"os"
	"path/filepath"
	"testing"

	"TradeSentinel/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
advisory:
  remote:
    api_key: sk-or-test
    model: test/model
`

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Trading.InitialBalance != 10000 {
		t.Errorf("expected default balance 10000, got %.2f", cfg.Trading.InitialBalance)
	}
	if cfg.Trading.ConfidenceThreshold != 0.8 {
		t.Errorf("expected default threshold 0.8, got %.2f", cfg.Trading.ConfidenceThreshold)
	}
	if cfg.Trading.OnValidationUnavailable != "reject" {
		t.Errorf("expected reject default, got %q", cfg.Trading.OnValidationUnavailable)
	}
	if cfg.MarketData.Provider != "yahoo" {
		t.Errorf("expected yahoo provider without api key, got %q", cfg.MarketData.Provider)
	}
	if cfg.Schedule.MonitorCron != "@every 300s" {
		t.Errorf("expected default monitor interval, got %q", cfg.Schedule.MonitorCron)
	}
	if len(cfg.Universe) == 0 {
		t.Error("expected default universe")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_UniverseEntriesActiveByDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
universe:
  - symbol: AZN.L
    name: AstraZeneca
  - symbol: SHEL.L
    name: Shell
    active: false
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Universe) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(cfg.Universe))
	}
	if !cfg.Universe[0].Active {
		t.Error("entry without an active key must default to active")
	}
	if cfg.Universe[0].Kind != model.KindEquity {
		t.Errorf("expected default kind equity, got %q", cfg.Universe[0].Kind)
	}
	if cfg.Universe[1].Active {
		t.Error("explicit active: false must be honored")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INITIAL_BALANCE", "25000")
	t.Setenv("REMOTE_ONLY_MODE", "true")
	t.Setenv("CHECK_INTERVAL_SECONDS", "60")
	t.Setenv("ALPHAVANTAGE_API_KEY", "av-key")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Trading.InitialBalance != 25000 {
		t.Errorf("expected env balance 25000, got %.2f", cfg.Trading.InitialBalance)
	}
	if !cfg.Advisory.RemoteOnly {
		t.Error("expected remote-only mode from env")
	}
	if cfg.Schedule.MonitorCron != "@every 60s" {
		t.Errorf("expected env monitor interval, got %q", cfg.Schedule.MonitorCron)
	}
	if cfg.MarketData.Provider != "alphavantage" {
		t.Errorf("expected alphavantage provider with api key, got %q", cfg.MarketData.Provider)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	t.Setenv("OPENROUTER_MODEL", "test/model")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("env-only config must validate: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing remote key", func(c *Config) { c.Advisory.Remote.APIKey = "" }},
		{"missing remote model", func(c *Config) { c.Advisory.Remote.Model = "" }},
		{"bad threshold", func(c *Config) { c.Trading.ConfidenceThreshold = 1.5 }},
		{"exposure below sizing", func(c *Config) { c.Trading.MaxExposure = 0.01 }},
		{"bad unavailable policy", func(c *Config) { c.Trading.OnValidationUnavailable = "maybe" }},
		{"alphavantage without key", func(c *Config) {
			c.MarketData.Provider = "alphavantage"
			c.MarketData.APIKey = ""
		}},
		{"empty universe", func(c *Config) { c.Universe = nil }},
		{"all instruments inactive", func(c *Config) {
			for i := range c.Universe {
				c.Universe[i].Active = false
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}
