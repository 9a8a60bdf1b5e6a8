// Package scheduler runs the trading loop: a startup sweep over the whole
// universe, a short-interval watch on open positions, and an hourly deep
// re-analysis that escalates every judgment to the validator.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"TradeSentinel/internal/advisory"
	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/interpret"
	"TradeSentinel/internal/ledger"
	"TradeSentinel/internal/marketdata"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/news"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/prescreen"
	"TradeSentinel/internal/repository"
)

// Config tunes the trading loop.
type Config struct {
	// ConfidenceThreshold gates which recommendations are acted on.
	// Zero means 0.8.
	ConfidenceThreshold float64

	// RemoteOnly skips the local tier and sends all analysis to tier 2.
	RemoteOnly bool

	// IgnoreMarketHours treats the market as always open. Useful for
	// development against the mock provider.
	IgnoreMarketHours bool

	// Workers bounds concurrent snapshot collection. Zero means 4.
	Workers int

	Prescreen prescreen.Config
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Builder  *marketdata.SnapshotBuilder
	Tier1    advisory.Tier1
	Tier2    advisory.Tier2
	Engine   *engine.Engine
	Ledger   *ledger.Ledger
	News     *news.Fetcher
	Notifier notifier.Notifier
	Repo     repository.Repository

	cfg      Config
	universe []model.Instrument
	ctx      context.Context
}

// New creates a Scheduler over the configured instrument universe.
func New(ctx context.Context, b *marketdata.SnapshotBuilder, t1 advisory.Tier1, t2 advisory.Tier2,
	eng *engine.Engine, l *ledger.Ledger, nf *news.Fetcher, n notifier.Notifier,
	repo repository.Repository, universe []model.Instrument, cfg Config) *Scheduler {

	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.8
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	if repo == nil {
		repo = repository.NewNoopRepository()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Builder:  b,
		Tier1:    t1,
		Tier2:    t2,
		Engine:   eng,
		Ledger:   l,
		News:     nf,
		Notifier: n,
		Repo:     repo,
		cfg:      cfg,
		universe: universe,
		ctx:      ctx,
	}
}

// RegisterAll registers the monitoring tick and the hourly deep check.
func (s *Scheduler) RegisterAll(monitorSpec, hourlySpec string) error {
	if _, err := s.Cron.AddFunc(monitorSpec, s.monitorTick); err != nil {
		return fmt.Errorf("register monitor task: %w", err)
	}
	if _, err := s.Cron.AddFunc(hourlySpec, s.hourlyTask); err != nil {
		return fmt.Errorf("register hourly task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunStartupSweep analyzes the full universe once. Runs at boot before the
// cron loop takes over, regardless of market hours: decisions made while the
// market is closed are planned and executed at the next open.
func (s *Scheduler) RunStartupSweep() {
	log.Printf("[INFO] startup sweep over %d instruments", len(s.universe))

	snaps := s.collectSnapshots(s.ctx, s.activeSymbols())
	if len(snaps) == 0 {
		log.Println("[WARN] startup sweep: no usable snapshots")
		return
	}

	candidates := prescreen.Screen(snaps, s.cfg.Prescreen)
	if len(candidates) == 0 {
		log.Println("[INFO] startup sweep: nothing passed the prescreen")
		return
	}
	log.Printf("[INFO] prescreen kept %d of %d instruments", len(candidates), len(snaps))

	actx := s.advisoryContext(candidates)
	status := s.marketStatus()

	if s.cfg.RemoteOnly {
		s.runRemoteAnalysis(actx, candidates, status.IsOpen)
		return
	}

	result := s.runLocalAnalysis(actx)
	acted := s.processAnalysis(result, candidates, status.IsOpen)

	// Tier 1 produced nothing worth buying: hand the same context to the
	// stronger model.
	if !acted {
		log.Println("[INFO] no actionable local recommendation, falling back to tier 2")
		s.runRemoteAnalysis(actx, candidates, status.IsOpen)
	}
}

// monitorTick is the short-interval watch: retry planned decisions, then ask
// tier 1 about every open position using recent history.
func (s *Scheduler) monitorTick() {
	status := s.marketStatus()
	if status.IsOpen {
		s.retryPlanned()
	}

	positions := s.Ledger.Positions()
	if len(positions) == 0 {
		return
	}
	log.Printf("[INFO] monitoring %d open positions", len(positions))

	prices := make(map[string]float64, len(positions))
	for _, pos := range positions {
		if err := s.ctx.Err(); err != nil {
			return
		}
		snap, err := s.monitorSnapshot(pos.Symbol)
		if err != nil {
			log.Printf("[WARN] monitor %s: %v", pos.Symbol, err)
			continue
		}
		prices[pos.Symbol] = snap.Price
		s.checkPosition(pos, *snap, status.IsOpen, false)
	}

	if len(prices) > 0 {
		s.Ledger.MarkToMarket(prices)
	}
}

// hourlyTask is the deep check: full-history snapshots, mark-to-market, and
// every position judgment escalated to the validator regardless of action.
func (s *Scheduler) hourlyTask() {
	positions := s.Ledger.Positions()
	if len(positions) == 0 {
		return
	}
	log.Printf("[INFO] hourly deep check on %d positions", len(positions))

	status := s.marketStatus()
	prices := make(map[string]float64, len(positions))
	for _, pos := range positions {
		if err := s.ctx.Err(); err != nil {
			return
		}
		snap, err := s.Builder.Build(s.ctx, pos.Symbol)
		if err != nil {
			log.Printf("[WARN] hourly check %s: %v", pos.Symbol, err)
			continue
		}
		prices[pos.Symbol] = snap.Price
		s.checkPosition(pos, *snap, status.IsOpen, true)
	}

	if len(prices) > 0 {
		s.Ledger.MarkToMarket(prices)
		s.syncPositions()
	}
	s.trySend(s.StatusReport())
}

// checkPosition asks tier 1 for a HOLD/SELL judgment on one position and
// routes the answer through the engine. Low-confidence sells still escalate;
// forceEscalate (the hourly pass) escalates every parsed judgment.
func (s *Scheduler) checkPosition(pos model.Position, snap model.IndicatorSnapshot, marketOpen, forceEscalate bool) {
	pctx := advisory.PositionContext{
		Snapshot: snap,
		Position: pos,
	}
	if s.News != nil {
		pctx.Headlines = news.Titles(s.News.TickerNews(s.ctx, pos.Symbol))
	}

	var raw string
	var err error
	source := model.TierLocal
	if s.cfg.RemoteOnly {
		source = model.TierRemote
		raw, err = s.Tier2.AnalyzeDirect(s.ctx, advisory.Context{
			Candidates: []model.IndicatorSnapshot{snap},
			Headlines:  pctx.Headlines,
			Portfolio:  s.portfolio(),
		})
	} else {
		raw, err = s.Tier1.CheckPosition(s.ctx, pctx)
	}
	if err != nil {
		log.Printf("[WARN] position check %s: %v", pos.Symbol, err)
		return
	}

	rec, ok := interpret.ParsePositionCheck(raw, pos.Symbol, source)
	if !ok {
		log.Printf("[WARN] position check %s: unusable judgment, holding", pos.Symbol)
		return
	}
	rec.RemoteOrigin = s.cfg.RemoteOnly

	if rec.Action == model.ActionHold && !forceEscalate {
		return
	}

	s.process(rec, snap, marketOpen, forceEscalate || rec.Confidence <= s.cfg.ConfidenceThreshold)
}

// processAnalysis turns a parsed analysis into engine calls. Returns whether
// any BUY cleared the confidence threshold.
func (s *Scheduler) processAnalysis(result interpret.Result, candidates []prescreen.Candidate, marketOpen bool) bool {
	if result.ParseFailed {
		log.Println("[WARN] analysis response could not be parsed")
		return false
	}
	if result.Dropped > 0 {
		log.Printf("[WARN] dropped %d malformed recommendation entries", result.Dropped)
	}

	snapsBySymbol := make(map[string]model.IndicatorSnapshot, len(candidates))
	for _, c := range candidates {
		snapsBySymbol[c.Snapshot.Symbol] = c.Snapshot
	}

	acted := false
	for _, rec := range result.Recommendations {
		snap, known := snapsBySymbol[rec.Symbol]
		if !known {
			log.Printf("[WARN] recommendation for unscreened symbol %s ignored", rec.Symbol)
			continue
		}

		switch rec.Action {
		case model.ActionBuy:
			// A buy at exactly the threshold still counts as tier-1
			// conviction for fallback purposes, but only one above it
			// is actionable.
			if rec.Confidence >= s.cfg.ConfidenceThreshold {
				acted = true
			}
			if rec.Confidence <= s.cfg.ConfidenceThreshold {
				log.Printf("[INFO] discarding low-confidence BUY %s (%.2f)", rec.Symbol, rec.Confidence)
				continue
			}
			s.process(rec, snap, marketOpen, false)
		case model.ActionSell:
			if _, held := s.Ledger.Position(rec.Symbol); !held {
				continue
			}
			s.process(rec, snap, marketOpen, rec.Confidence <= s.cfg.ConfidenceThreshold)
		}
	}
	return acted
}

func (s *Scheduler) process(rec model.Recommendation, snap model.IndicatorSnapshot, marketOpen, forceValidate bool) {
	_, err := s.Engine.Process(s.ctx, engine.Proposal{
		Recommendation: rec,
		Snapshot:       snap,
		Price:          snap.Price,
		MarketOpen:     marketOpen,
		ForceValidate:  forceValidate,
	})
	if err != nil {
		log.Printf("[ERROR] process %s %s: %v", rec.Action, rec.Symbol, err)
	}
}

func (s *Scheduler) runLocalAnalysis(actx advisory.Context) interpret.Result {
	raw, err := s.Tier1.Analyze(s.ctx, actx)
	if err != nil {
		log.Printf("[WARN] tier 1 analysis failed: %v", err)
		return interpret.Result{ParseFailed: true}
	}
	return interpret.Parse(raw, model.TierLocal, false)
}

func (s *Scheduler) runRemoteAnalysis(actx advisory.Context, candidates []prescreen.Candidate, marketOpen bool) {
	raw, err := s.Tier2.AnalyzeDirect(s.ctx, actx)
	if err != nil {
		log.Printf("[ERROR] tier 2 analysis failed: %v", err)
		return
	}
	s.processAnalysis(interpret.Parse(raw, model.TierRemote, true), candidates, marketOpen)
}

// retryPlanned re-runs decisions deferred while the market was closed.
func (s *Scheduler) retryPlanned() {
	planned, err := s.Repo.PlannedDecisions()
	if err != nil {
		log.Printf("[ERROR] load planned decisions: %v", err)
		return
	}
	for i := range planned {
		d := &planned[i]
		quote, err := s.Builder.Provider.GetQuote(s.ctx, d.Recommendation.Symbol)
		if err != nil {
			log.Printf("[WARN] retry planned %s: quote: %v", d.Recommendation.Symbol, err)
			continue
		}
		if err := s.Engine.ExecutePlanned(s.ctx, d, quote.Price, true); err != nil {
			log.Printf("[ERROR] retry planned %s: %v", d.Recommendation.Symbol, err)
		}
	}
}

// collectSnapshots builds indicator snapshots with a bounded worker pool.
// Instruments that fail are excluded from the cycle, not fatal.
func (s *Scheduler) collectSnapshots(ctx context.Context, symbols []string) []model.IndicatorSnapshot {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		snaps []model.IndicatorSnapshot
	)
	sem := make(chan struct{}, s.cfg.Workers)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			snap, err := s.Builder.Build(ctx, symbol)
			if err != nil {
				log.Printf("[WARN] snapshot %s: %v", symbol, err)
				return
			}
			mu.Lock()
			snaps = append(snaps, *snap)
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return snaps
}

// monitorSnapshot computes a lightweight snapshot from three months of bars.
// SMA200 is unavailable at this depth and left zero; the position prompts do
// not depend on it.
func (s *Scheduler) monitorSnapshot(symbol string) (*model.IndicatorSnapshot, error) {
	return s.Builder.BuildShort(s.ctx, symbol, "3mo")
}

func (s *Scheduler) advisoryContext(candidates []prescreen.Candidate) advisory.Context {
	actx := advisory.Context{Portfolio: s.portfolio()}
	for _, c := range candidates {
		actx.Candidates = append(actx.Candidates, c.Snapshot)
	}
	if s.News != nil {
		actx.Headlines = news.Titles(s.News.Headlines(s.ctx))
	}
	return actx
}

func (s *Scheduler) portfolio() advisory.Portfolio {
	return advisory.Portfolio{
		Cash:       s.Ledger.Cash(),
		TotalValue: s.Ledger.TotalValue(),
		Positions:  s.Ledger.Positions(),
	}
}

func (s *Scheduler) marketStatus() model.MarketStatus {
	if s.cfg.IgnoreMarketHours {
		return model.MarketStatus{IsOpen: true}
	}
	status, err := s.Builder.Provider.GetMarketStatus(s.ctx)
	if err != nil {
		log.Printf("[WARN] market status: %v", err)
		return model.MarketStatus{}
	}
	return status
}

func (s *Scheduler) activeSymbols() []string {
	var out []string
	for _, inst := range s.universe {
		if inst.Active {
			out = append(out, inst.Symbol)
		}
	}
	return out
}

// StatusReport renders the current portfolio for notifications and the
// /status chat command.
func (s *Scheduler) StatusReport() string {
	return notifier.FormatPortfolio(s.Ledger.Cash(), s.Ledger.TotalValue(), s.Ledger.Positions())
}

// TradesReport renders recent trades for the /trades chat command.
func (s *Scheduler) TradesReport() string {
	trades := s.Ledger.Trades()
	if len(trades) == 0 {
		return "No trades yet."
	}
	var b strings.Builder
	b.WriteString("Recent trades:\n")
	start := 0
	if len(trades) > 10 {
		start = len(trades) - 10
	}
	for _, t := range trades[start:] {
		fmt.Fprintf(&b, "%s %s %.0f @ %.2f (%s)\n",
			t.Time.Format("01-02 15:04"), t.Action, t.Quantity, t.Price, t.Symbol)
	}
	return b.String()
}

func (s *Scheduler) syncPositions() {
	for _, pos := range s.Ledger.Positions() {
		if err := s.Repo.SavePosition(pos); err != nil {
			log.Printf("[ERROR] persist position %s: %v", pos.Symbol, err)
		}
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.Notify(s.ctx, text); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
