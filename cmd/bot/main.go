package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"TradeSentinel/internal/advisory"
	"TradeSentinel/internal/config"
	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/ledger"
	"TradeSentinel/internal/marketdata"
	"TradeSentinel/internal/news"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/prescreen"
	"TradeSentinel/internal/repository"
	"TradeSentinel/internal/risk"
	"TradeSentinel/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] TradeSentinel starting...")

	// .env first so config env overrides see it
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init market data provider
	var provider marketdata.Provider
	if cfg.MarketData.Provider == "alphavantage" {
		provider = marketdata.NewAlphaVantageProvider(cfg.MarketData.APIKey, cfg.Proxy)
	} else {
		yp := marketdata.NewYahooProvider(cfg.Proxy)
		yp.Suffix = cfg.MarketData.Suffix
		provider = yp
	}
	log.Printf("[INFO] market data provider: %s", provider.Name())
	builder := marketdata.NewSnapshotBuilder(provider)

	// Init paper ledger
	book, err := ledger.New(cfg.Trading.LedgerFile, cfg.Trading.InitialBalance)
	if err != nil {
		log.Fatalf("[FATAL] init ledger: %v", err)
	}
	log.Printf("[INFO] ledger loaded: cash %.2f, %d positions", book.Cash(), len(book.Positions()))

	// Init repository
	var repo repository.Repository
	if cfg.Database.SQLitePath != "" {
		sr, err := repository.NewSQLiteRepository(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite repository failed, using noop: %v", err)
			repo = repository.NewNoopRepository()
		} else {
			repo = sr
			defer sr.Close()
		}
	} else {
		repo = repository.NewNoopRepository()
	}
	for _, inst := range cfg.Universe {
		if err := repo.UpsertInstrument(inst); err != nil {
			log.Printf("[WARN] seed instrument %s: %v", inst.Symbol, err)
		}
	}

	// Init notifier
	var notify notifier.Notifier = notifier.NoopNotifier{}
	var telegram *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notify = telegram
	} else {
		log.Println("[INFO] Telegram not configured, notifications disabled")
	}

	// Init advisory tiers
	tier1 := advisory.NewLocalClient(advisory.LocalConfig{
		BaseURL: cfg.Advisory.Local.BaseURL,
		Model:   cfg.Advisory.Local.Model,
	})
	tier2 := advisory.NewOpenRouterClient(advisory.OpenRouterConfig{
		BaseURL: cfg.Advisory.Remote.BaseURL,
		APIKey:  cfg.Advisory.Remote.APIKey,
		Model:   cfg.Advisory.Remote.Model,
	})

	// Init decision engine
	eng := engine.New(book, risk.NewPolicy(cfg.Trading.SizeFraction, cfg.Trading.MaxExposure),
		tier2, repo, notify, engine.Config{
			ValidationThreshold:  cfg.Trading.ConfidenceThreshold,
			ProceedOnUnavailable: cfg.Trading.OnValidationUnavailable == "proceed",
			LiveMode:             cfg.Trading.LiveMode,
		})

	fetcher := news.NewFetcher(cfg.News.Feeds, cfg.News.MaxItems)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.New(ctx, builder, tier1, tier2, eng, book, fetcher, notify, repo,
		cfg.Universe, scheduler.Config{
			ConfidenceThreshold: cfg.Trading.ConfidenceThreshold,
			RemoteOnly:          cfg.Advisory.RemoteOnly,
			IgnoreMarketHours:   cfg.Trading.IgnoreMarketHours,
			Workers:             cfg.Schedule.Workers,
			Prescreen: prescreen.Config{
				TopN:         cfg.Prescreen.TopN,
				CutoffSymbol: cfg.Prescreen.CutoffSymbol,
			},
		})
	if err := sched.RegisterAll(cfg.Schedule.MonitorCron, cfg.Schedule.HourlyCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram command polling
	if telegram != nil {
		router := notifier.NewCommandRouter()
		router.Register("/status", sched.StatusReport)
		router.Register("/trades", sched.TradesReport)
		go telegram.StartPolling(ctx, router)
		log.Println("[INFO] Telegram polling started")
	}

	if err := notify.Notify(ctx, notifier.FormatStartup(len(cfg.Universe), cfg.Advisory.RemoteOnly, book.Cash())); err != nil {
		log.Printf("[WARN] startup notification: %v", err)
	}

	// Full-universe sweep before the cron loop takes over
	go sched.RunStartupSweep()

	log.Println("[INFO] TradeSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] TradeSentinel stopped")
}
