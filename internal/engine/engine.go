// Package engine turns recommendations into executed, planned, or rejected
// decisions. It owns the escalation protocol: high-confidence proposals must
// survive tier-2 validation before money moves, and a validator that cannot
// be reached blocks the trade unless the operator opted out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"TradeSentinel/internal/advisory"
	"TradeSentinel/internal/ledger"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/repository"
	"TradeSentinel/internal/risk"
)

// Config tunes the escalation protocol.
type Config struct {
	// ValidationThreshold is the confidence above which tier-2 validation
	// is mandatory. Zero means the 0.8 default.
	ValidationThreshold float64

	// ProceedOnUnavailable executes high-confidence trades even when the
	// validator cannot be reached. Off by default: an unreachable
	// validator rejects the trade.
	ProceedOnUnavailable bool

	// LiveMode routes every validated trade to manual review instead of
	// executing it. No order is ever placed automatically in live mode.
	LiveMode bool
}

const defaultValidationThreshold = 0.8

// Proposal is one recommendation plus the market context needed to act on it.
type Proposal struct {
	Recommendation model.Recommendation
	Snapshot       model.IndicatorSnapshot
	Price          float64
	MarketOpen     bool

	// ForceValidate escalates regardless of confidence. Set for monitored
	// position sells and for the deep re-analysis pass.
	ForceValidate bool
}

// Engine coordinates validation, risk checks, and execution.
type Engine struct {
	ledger   *ledger.Ledger
	policy   *risk.Policy
	tier2    advisory.Tier2
	repo     repository.Repository
	notifier notifier.Notifier
	cfg      Config
	now      func() time.Time
}

func New(l *ledger.Ledger, policy *risk.Policy, tier2 advisory.Tier2, repo repository.Repository, n notifier.Notifier, cfg Config) *Engine {
	if cfg.ValidationThreshold <= 0 {
		cfg.ValidationThreshold = defaultValidationThreshold
	}
	if repo == nil {
		repo = repository.NewNoopRepository()
	}
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	return &Engine{
		ledger:   l,
		policy:   policy,
		tier2:    tier2,
		repo:     repo,
		notifier: n,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Process runs one recommendation through the full decision pipeline and
// returns the resulting decision. The returned error is reserved for context
// cancellation; every domain failure lands in the decision's outcome.
func (e *Engine) Process(ctx context.Context, p Proposal) (*model.Decision, error) {
	d := &model.Decision{
		ID:             uuid.NewString(),
		Recommendation: p.Recommendation,
		Outcome:        model.OutcomePending,
		Price:          p.Price,
		CreatedAt:      e.now().UTC(),
	}

	if err := e.decide(ctx, d, p); err != nil {
		return d, err
	}
	e.record(ctx, d, false)
	return d, nil
}

func (e *Engine) decide(ctx context.Context, d *model.Decision, p Proposal) error {
	rec := &d.Recommendation

	if !rec.Action.Valid() {
		e.reject(d, fmt.Sprintf("invalid action %q", rec.Action))
		return nil
	}
	if p.Price <= 0 && rec.Action != model.ActionHold {
		e.reject(d, "no usable price")
		return nil
	}

	// A buy that would not trigger validation is not actionable at all:
	// tier-1 conviction alone never opens a position. Remote-origin picks
	// and explicitly escalated proposals take the validation path instead.
	if rec.Action == model.ActionBuy && !rec.RemoteOrigin && !p.ForceValidate &&
		rec.Confidence <= e.cfg.ValidationThreshold {
		e.reject(d, fmt.Sprintf("buy confidence %.2f does not clear validation threshold", rec.Confidence))
		return nil
	}

	// Size the order before validation so the validator judges a concrete
	// trade, not an abstract intent.
	if !e.size(d, p.Price) {
		return nil
	}

	if rec.Action == model.ActionBuy && e.boughtToday(rec.Symbol) {
		e.reject(d, "daily buy limit reached for symbol")
		return nil
	}

	needsValidation := !rec.RemoteOrigin &&
		(rec.Confidence > e.cfg.ValidationThreshold || p.ForceValidate)
	d.Escalated = rec.RemoteOrigin || needsValidation

	if needsValidation {
		proceed, err := e.validate(ctx, d, p)
		if err != nil {
			return err
		}
		if !proceed {
			return nil
		}
		// MODIFY may have changed the size fraction; re-size and re-check.
		if !e.size(d, p.Price) {
			return nil
		}
	}

	if rec.Action == model.ActionHold {
		d.Outcome = model.OutcomeValidated
		return nil
	}

	if e.cfg.LiveMode {
		d.Outcome = model.OutcomeRequiresReview
		d.Reason = "live mode requires manual execution"
		return nil
	}

	if !p.MarketOpen {
		d.Outcome = model.OutcomePlanned
		d.Reason = "market closed"
		return nil
	}

	e.execute(d)
	return nil
}

// size computes and risk-checks the order quantity. Returns false when the
// decision was rejected.
func (e *Engine) size(d *model.Decision, price float64) bool {
	rec := &d.Recommendation
	if rec.Action == model.ActionHold {
		return true
	}

	totalValue := e.ledger.TotalValue()
	pos, held := e.ledger.Position(rec.Symbol)

	switch rec.Action {
	case model.ActionBuy:
		qty := e.policy.BuyQuantity(totalValue, price, rec.SizeFraction)
		if qty <= 0 {
			e.reject(d, "position size rounds to zero shares")
			return false
		}
		positionValue := 0.0
		if held {
			positionValue = pos.Quantity * price
		}
		if err := e.policy.ValidateBuy(qty, price, totalValue, positionValue, e.ledger.Cash()); err != nil {
			e.reject(d, err.Error())
			return false
		}
		d.Quantity = qty

	case model.ActionSell:
		if !held {
			e.reject(d, "no open position to sell")
			return false
		}
		d.Quantity = e.policy.SellQuantity(pos.Quantity, price, totalValue, rec.SizeFraction)
	}
	return true
}

// validate escalates the sized proposal to tier 2 and applies the verdict.
// Returns whether execution may continue.
func (e *Engine) validate(ctx context.Context, d *model.Decision, p Proposal) (bool, error) {
	req := advisory.ValidationRequest{
		Recommendation: d.Recommendation,
		Snapshot:       p.Snapshot,
		Quantity:       d.Quantity,
		Price:          p.Price,
		Portfolio: advisory.Portfolio{
			Cash:       e.ledger.Cash(),
			TotalValue: e.ledger.TotalValue(),
			Positions:  e.ledger.Positions(),
		},
	}

	v, err := e.tier2.Validate(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		log.Printf("[WARN] validation of %s %s failed: %v", d.Recommendation.Action, d.Recommendation.Symbol, err)
		if e.cfg.ProceedOnUnavailable {
			d.Verdict = model.VerdictProceed
			d.Comments = "validator unreachable, proceeding per configuration"
			return true, nil
		}
		e.reject(d, "validation unavailable")
		return false, nil
	}

	d.Verdict = v.Verdict
	d.Comments = v.Comments

	switch v.Verdict {
	case model.VerdictReject:
		d.Outcome = model.OutcomeRejected
		if d.Reason == "" {
			d.Reason = "rejected by validator"
		}
		return false, nil
	case model.VerdictModify:
		if v.Confidence != nil {
			d.Recommendation.Confidence = *v.Confidence
		}
		if v.SizeFraction != nil {
			d.Recommendation.SizeFraction = *v.SizeFraction
		}
	}
	return true, nil
}

func (e *Engine) execute(d *model.Decision) {
	rec := d.Recommendation

	var trade model.Trade
	var err error
	switch rec.Action {
	case model.ActionBuy:
		trade, err = e.ledger.ExecuteBuy(rec.Symbol, d.Quantity, d.Price, d.Escalated)
	case model.ActionSell:
		trade, err = e.ledger.ExecuteSell(rec.Symbol, d.Quantity, d.Price, d.Escalated)
	}
	if err != nil {
		e.reject(d, err.Error())
		return
	}

	d.Outcome = model.OutcomeExecuted
	d.ExecutedAt = trade.Time

	if err := e.repo.AppendTrade(trade); err != nil {
		log.Printf("[ERROR] persist trade %s: %v", trade.ID, err)
	}
	e.syncPosition(rec.Symbol)
	log.Printf("[INFO] executed %s %s: %.0f @ %.2f", rec.Action, rec.Symbol, d.Quantity, d.Price)
}

// ExecutePlanned retries a decision deferred while the market was closed.
// The order is re-sized against the fresh price before execution.
func (e *Engine) ExecutePlanned(ctx context.Context, d *model.Decision, price float64, marketOpen bool) error {
	if !marketOpen {
		return nil
	}
	if d.Outcome != model.OutcomePlanned {
		return fmt.Errorf("decision %s is %s, not planned", d.ID, d.Outcome)
	}

	d.Price = price
	d.Reason = ""
	if e.size(d, price) {
		if d.Recommendation.Action == model.ActionBuy && e.boughtToday(d.Recommendation.Symbol) {
			e.reject(d, "daily buy limit reached for symbol")
		} else {
			e.execute(d)
		}
	}
	e.record(ctx, d, true)
	return nil
}

// boughtToday reports whether the symbol already has a BUY since UTC
// midnight. Sells are exempt from the daily limit.
func (e *Engine) boughtToday(symbol string) bool {
	now := e.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	trades, err := e.repo.TradesBetween(symbol, midnight, now)
	if err != nil {
		log.Printf("[ERROR] query trades for %s: %v", symbol, err)
	}
	// The repository extends the check across restarts; the in-memory trade
	// log covers the current session even when no database is configured.
	trades = append(trades, e.ledger.Trades()...)
	for _, t := range trades {
		if t.Symbol == symbol && t.Action == model.ActionBuy && !t.Time.Before(midnight) {
			return true
		}
	}
	return false
}

func (e *Engine) syncPosition(symbol string) {
	if pos, ok := e.ledger.Position(symbol); ok {
		if err := e.repo.SavePosition(pos); err != nil {
			log.Printf("[ERROR] persist position %s: %v", symbol, err)
		}
		return
	}
	if err := e.repo.DeletePosition(symbol); err != nil {
		log.Printf("[ERROR] remove position %s: %v", symbol, err)
	}
}

func (e *Engine) reject(d *model.Decision, reason string) {
	d.Outcome = model.OutcomeRejected
	d.Reason = reason
	log.Printf("[INFO] rejected %s %s: %s", d.Recommendation.Action, d.Recommendation.Symbol, reason)
}

// record persists the decision and pushes a notification for anything the
// operator should see.
func (e *Engine) record(ctx context.Context, d *model.Decision, update bool) {
	var err error
	if update {
		err = e.repo.UpdateDecision(d)
	} else {
		err = e.repo.SaveDecision(d)
	}
	if err != nil {
		log.Printf("[ERROR] persist decision %s: %v", d.ID, err)
	}

	var msg string
	switch d.Outcome {
	case model.OutcomeExecuted:
		msg = notifier.FormatTrade(d)
	case model.OutcomeRejected, model.OutcomePlanned, model.OutcomeRequiresReview:
		msg = notifier.FormatDecision(d)
	default:
		return
	}
	if err := e.notifier.Notify(ctx, msg); err != nil {
		log.Printf("[WARN] notify: %v", err)
	}
}
