package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"TradeSentinel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Trading struct {
		InitialBalance      float64 `yaml:"initial_balance"`
		SizeFraction        float64 `yaml:"size_fraction"`
		MaxExposure         float64 `yaml:"max_exposure"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
		LiveMode            bool    `yaml:"live_mode"`
		// "reject" blocks high-confidence trades when the validator is
		// unreachable; "proceed" executes them anyway.
		OnValidationUnavailable string `yaml:"on_validation_unavailable"`
		IgnoreMarketHours       bool   `yaml:"ignore_market_hours"`
		LedgerFile              string `yaml:"ledger_file"`
	} `yaml:"trading"`

	Advisory struct {
		RemoteOnly bool `yaml:"remote_only"`
		Local      struct {
			BaseURL string `yaml:"base_url"`
			Model   string `yaml:"model"`
		} `yaml:"local"`
		Remote struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model"`
		} `yaml:"remote"`
	} `yaml:"advisory"`

	MarketData struct {
		Provider string `yaml:"provider"` // yahoo or alphavantage
		APIKey   string `yaml:"api_key"`
		Suffix   string `yaml:"suffix"`
	} `yaml:"market_data"`

	Prescreen struct {
		TopN         int    `yaml:"top_n"`
		CutoffSymbol string `yaml:"cutoff_symbol"`
	} `yaml:"prescreen"`

	Schedule struct {
		MonitorCron string `yaml:"monitor_cron"`
		HourlyCron  string `yaml:"hourly_cron"`
		Workers     int    `yaml:"workers"`
	} `yaml:"schedule"`

	News struct {
		Feeds    []string `yaml:"feeds"`
		MaxItems int      `yaml:"max_items"`
	} `yaml:"news"`

	Universe []model.Instrument `yaml:"universe"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.InitialBalance = f
		}
	}
	if v := os.Getenv("MAX_POSITION_SIZE_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.MaxExposure = f
		}
	}
	if v := os.Getenv("REMOTE_ONLY_MODE"); v != "" {
		cfg.Advisory.RemoteOnly = v == "1" || v == "true"
	}
	if v := os.Getenv("LOCAL_MODEL_URL"); v != "" {
		cfg.Advisory.Local.BaseURL = v
	}
	if v := os.Getenv("LOCAL_MODEL_NAME"); v != "" {
		cfg.Advisory.Local.Model = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Advisory.Remote.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		cfg.Advisory.Remote.Model = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.MarketData.APIKey = v
	}
	if v := os.Getenv("CHECK_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Schedule.MonitorCron = fmt.Sprintf("@every %ds", n)
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Trading.InitialBalance == 0 {
		c.Trading.InitialBalance = 10000
	}
	if c.Trading.SizeFraction == 0 {
		c.Trading.SizeFraction = 0.05
	}
	if c.Trading.MaxExposure == 0 {
		c.Trading.MaxExposure = 0.10
	}
	if c.Trading.ConfidenceThreshold == 0 {
		c.Trading.ConfidenceThreshold = 0.8
	}
	if c.Trading.OnValidationUnavailable == "" {
		c.Trading.OnValidationUnavailable = "reject"
	}
	if c.Trading.LedgerFile == "" {
		c.Trading.LedgerFile = "data/ledger.json"
	}
	if c.Advisory.Local.BaseURL == "" {
		c.Advisory.Local.BaseURL = "http://localhost:1234/v1"
	}
	if c.Advisory.Local.Model == "" {
		c.Advisory.Local.Model = "local-model"
	}
	if c.MarketData.Provider == "" {
		if c.MarketData.APIKey != "" {
			c.MarketData.Provider = "alphavantage"
		} else {
			c.MarketData.Provider = "yahoo"
		}
	}
	if c.MarketData.Suffix == "" {
		c.MarketData.Suffix = ".L"
	}
	if c.Prescreen.TopN == 0 {
		c.Prescreen.TopN = 10
	}
	if c.Schedule.MonitorCron == "" {
		c.Schedule.MonitorCron = "@every 300s"
	}
	if c.Schedule.HourlyCron == "" {
		c.Schedule.HourlyCron = "0 0 * * * *"
	}
	if c.Schedule.Workers == 0 {
		c.Schedule.Workers = 4
	}
	if c.News.MaxItems == 0 {
		c.News.MaxItems = 10
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/trade_sentinel.db"
	}
	if len(c.Universe) == 0 {
		c.Universe = defaultUniverse()
	}
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if c.Trading.InitialBalance <= 0 {
		return fmt.Errorf("trading.initial_balance must be positive")
	}
	if c.Trading.SizeFraction <= 0 || c.Trading.SizeFraction > 1 {
		return fmt.Errorf("trading.size_fraction must be in (0,1]")
	}
	if c.Trading.MaxExposure < c.Trading.SizeFraction {
		return fmt.Errorf("trading.max_exposure must not be below trading.size_fraction")
	}
	if c.Trading.ConfidenceThreshold <= 0 || c.Trading.ConfidenceThreshold > 1 {
		return fmt.Errorf("trading.confidence_threshold must be in (0,1]")
	}
	switch c.Trading.OnValidationUnavailable {
	case "reject", "proceed":
	default:
		return fmt.Errorf("trading.on_validation_unavailable must be reject or proceed")
	}
	if c.Advisory.Remote.APIKey == "" {
		return fmt.Errorf("advisory.remote.api_key is required")
	}
	if c.Advisory.Remote.Model == "" {
		return fmt.Errorf("advisory.remote.model is required")
	}
	if c.MarketData.Provider == "alphavantage" && c.MarketData.APIKey == "" {
		return fmt.Errorf("market_data.api_key is required for the alphavantage provider")
	}
	if len(c.Universe) == 0 {
		return fmt.Errorf("universe must not be empty")
	}
	active := 0
	for _, inst := range c.Universe {
		if inst.Active {
			active++
		}
	}
	if active == 0 {
		return fmt.Errorf("universe has no active instruments")
	}
	return nil
}

// defaultUniverse is a starter set of liquid LSE names used when no universe
// is configured.
func defaultUniverse() []model.Instrument {
	symbols := []struct {
		symbol, name string
	}{
		{"AZN.L", "AstraZeneca"},
		{"SHEL.L", "Shell"},
		{"HSBA.L", "HSBC Holdings"},
		{"ULVR.L", "Unilever"},
		{"BP.L", "BP"},
		{"GSK.L", "GSK"},
		{"RIO.L", "Rio Tinto"},
		{"REL.L", "RELX"},
		{"DGE.L", "Diageo"},
		{"BARC.L", "Barclays"},
		{"LSEG.L", "London Stock Exchange Group"},
		{"NG.L", "National Grid"},
		{"VOD.L", "Vodafone"},
		{"TSCO.L", "Tesco"},
		{"BA.L", "BAE Systems"},
		{"PRU.L", "Prudential"},
		{"GLEN.L", "Glencore"},
		{"CPG.L", "Compass Group"},
		{"AAL.L", "Anglo American"},
		{"STAN.L", "Standard Chartered"},
	}
	out := make([]model.Instrument, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, model.Instrument{
			Symbol: s.symbol,
			Name:   s.name,
			Kind:   model.KindEquity,
			Active: true,
		})
	}
	return out
}
