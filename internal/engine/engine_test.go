package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"TradeSentinel/internal/advisory"
	"TradeSentinel/internal/ledger"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/repository"
	"TradeSentinel/internal/risk"
)

// fakeTier2 records validation calls and replays a canned verdict.
type fakeTier2 struct {
	validation model.Validation
	err        error
	calls      int
	lastReq    advisory.ValidationRequest
}

func (f *fakeTier2) Validate(_ context.Context, req advisory.ValidationRequest) (model.Validation, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return model.Validation{}, f.err
	}
	return f.validation, nil
}

func (f *fakeTier2) AnalyzeDirect(context.Context, advisory.Context) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeTier2) Name() string { return "fake" }

// memRepo is an in-memory repository capturing persisted state.
type memRepo struct {
	trades    []model.Trade
	decisions map[string]model.Decision
	positions map[string]model.Position
}

func newMemRepo() *memRepo {
	return &memRepo{
		decisions: map[string]model.Decision{},
		positions: map[string]model.Position{},
	}
}

func (m *memRepo) UpsertInstrument(model.Instrument) error    { return nil }
func (m *memRepo) Instruments() ([]model.Instrument, error)   { return nil, nil }
func (m *memRepo) SavePosition(p model.Position) error        { m.positions[p.Symbol] = p; return nil }
func (m *memRepo) DeletePosition(symbol string) error         { delete(m.positions, symbol); return nil }
func (m *memRepo) Positions() ([]model.Position, error)       { return nil, nil }
func (m *memRepo) AppendTrade(t model.Trade) error            { m.trades = append(m.trades, t); return nil }
func (m *memRepo) SaveDecision(d *model.Decision) error       { m.decisions[d.ID] = *d; return nil }
func (m *memRepo) UpdateDecision(d *model.Decision) error     { m.decisions[d.ID] = *d; return nil }
func (m *memRepo) PlannedDecisions() ([]model.Decision, error) { return nil, nil }
func (m *memRepo) Close() error                               { return nil }

func (m *memRepo) TradesBetween(symbol string, from, to time.Time) ([]model.Trade, error) {
	var out []model.Trade
	for _, t := range m.trades {
		if t.Symbol == symbol && !t.Time.Before(from) && t.Time.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fixture struct {
	engine *Engine
	ledger *ledger.Ledger
	tier2  *fakeTier2
	repo   *memRepo
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	l, err := ledger.New(filepath.Join(t.TempDir(), "ledger.json"), 10000)
	if err != nil {
		t.Fatal(err)
	}
	tier2 := &fakeTier2{validation: model.Validation{Verdict: model.VerdictProceed}}
	repo := newMemRepo()
	return &fixture{
		engine: New(l, risk.NewPolicy(0.05, 0.10), tier2, repo, nil, cfg),
		ledger: l,
		tier2:  tier2,
		repo:   repo,
	}
}

func buyProposal(conf float64) Proposal {
	return Proposal{
		Recommendation: model.Recommendation{
			Symbol:     "AZN.L",
			Action:     model.ActionBuy,
			Confidence: conf,
			Source:     model.TierLocal,
		},
		Price:      50,
		MarketOpen: true,
	}
}

func TestProcess_HighConfidenceBuyValidatedAndSized(t *testing.T) {
	f := newFixture(t, Config{})

	d, err := f.engine.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeExecuted {
		t.Fatalf("expected EXECUTED, got %s (%s)", d.Outcome, d.Reason)
	}
	if f.tier2.calls != 1 {
		t.Errorf("expected exactly one validation call, got %d", f.tier2.calls)
	}
	// 10000 total value, 5% default sizing, price 50: 10 whole shares.
	if d.Quantity != 10 {
		t.Errorf("expected 10 shares, got %.2f", d.Quantity)
	}
	if f.ledger.Cash() != 10000-500 {
		t.Errorf("expected cash 9500, got %.2f", f.ledger.Cash())
	}
	if !d.Escalated {
		t.Error("expected decision marked escalated")
	}
	// The validator must see the sized order, not the raw intent.
	if f.tier2.lastReq.Quantity != 10 || f.tier2.lastReq.Price != 50 {
		t.Errorf("validator saw quantity %.0f price %.2f", f.tier2.lastReq.Quantity, f.tier2.lastReq.Price)
	}
}

func TestProcess_BuyAtOrBelowThresholdDiscarded(t *testing.T) {
	f := newFixture(t, Config{})

	// 0.8 is the boundary: mandatory validation starts strictly above it,
	// so a buy at exactly 0.8 must never trade unvalidated.
	for _, conf := range []float64{0.5, 0.8} {
		d, err := f.engine.Process(context.Background(), buyProposal(conf))
		if err != nil {
			t.Fatal(err)
		}
		if d.Outcome != model.OutcomeRejected {
			t.Fatalf("confidence %.2f: expected REJECTED, got %s", conf, d.Outcome)
		}
		if d.Escalated {
			t.Errorf("confidence %.2f: discarded buy must not be marked escalated", conf)
		}
	}
	if f.tier2.calls != 0 {
		t.Errorf("discarded buys must not consume validation calls, got %d", f.tier2.calls)
	}
	if len(f.ledger.Trades()) != 0 {
		t.Errorf("expected no trades, got %d", len(f.ledger.Trades()))
	}
	if f.ledger.Cash() != 10000 {
		t.Errorf("expected cash untouched, got %.2f", f.ledger.Cash())
	}
}

func TestProcess_ForcedLowConfidenceBuyEscalates(t *testing.T) {
	f := newFixture(t, Config{})

	p := buyProposal(0.5)
	p.ForceValidate = true
	d, err := f.engine.Process(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeExecuted {
		t.Fatalf("expected EXECUTED after forced validation, got %s (%s)", d.Outcome, d.Reason)
	}
	if f.tier2.calls != 1 {
		t.Errorf("expected one validation call, got %d", f.tier2.calls)
	}
	if !d.Escalated {
		t.Error("forced escalation must mark the decision escalated")
	}
}

func TestProcess_ValidatorRejectBlocksTrade(t *testing.T) {
	f := newFixture(t, Config{})
	f.tier2.validation = model.Validation{Verdict: model.VerdictReject, Comments: "earnings tomorrow"}

	d, err := f.engine.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeRejected {
		t.Fatalf("expected REJECTED, got %s", d.Outcome)
	}
	if d.Comments != "earnings tomorrow" {
		t.Errorf("expected validator comments preserved, got %q", d.Comments)
	}
	if f.ledger.Cash() != 10000 {
		t.Errorf("rejected trade must not move cash, got %.2f", f.ledger.Cash())
	}
}

func TestProcess_ValidatorModifyResizesOrder(t *testing.T) {
	f := newFixture(t, Config{})
	newConf := 0.82
	newSize := 0.02
	f.tier2.validation = model.Validation{
		Verdict:      model.VerdictModify,
		Confidence:   &newConf,
		SizeFraction: &newSize,
		Comments:     "halve the exposure",
	}

	d, err := f.engine.Process(context.Background(), buyProposal(0.95))
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeExecuted {
		t.Fatalf("expected EXECUTED, got %s (%s)", d.Outcome, d.Reason)
	}
	// 2% of 10000 at price 50: 4 shares instead of the original 10.
	if d.Quantity != 4 {
		t.Errorf("expected re-sized quantity 4, got %.2f", d.Quantity)
	}
	if d.Recommendation.Confidence != newConf {
		t.Errorf("expected confidence override %.2f, got %.2f", newConf, d.Recommendation.Confidence)
	}
}

func TestProcess_RemoteOriginSkipsValidation(t *testing.T) {
	f := newFixture(t, Config{})

	p := buyProposal(0.95)
	p.Recommendation.Source = model.TierRemote
	p.Recommendation.RemoteOrigin = true

	d, err := f.engine.Process(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeExecuted {
		t.Fatalf("expected EXECUTED, got %s (%s)", d.Outcome, d.Reason)
	}
	if f.tier2.calls != 0 {
		t.Errorf("tier-2-origin recommendation must not be re-validated, got %d calls", f.tier2.calls)
	}
	if !d.Escalated {
		t.Error("tier-2-origin decision still counts as escalated")
	}
}

func TestProcess_ValidatorUnavailableRejectsByDefault(t *testing.T) {
	f := newFixture(t, Config{})
	f.tier2.err = fmt.Errorf("tier2: %w", advisory.ErrUnavailable)

	d, err := f.engine.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeRejected || d.Reason != "validation unavailable" {
		t.Fatalf("expected rejection for unreachable validator, got %s (%s)", d.Outcome, d.Reason)
	}
	if f.ledger.Cash() != 10000 {
		t.Error("no trade may execute without validation")
	}
}

func TestProcess_ValidatorUnavailableProceedsWhenConfigured(t *testing.T) {
	f := newFixture(t, Config{ProceedOnUnavailable: true})
	f.tier2.err = fmt.Errorf("tier2: %w", advisory.ErrUnavailable)

	d, err := f.engine.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeExecuted {
		t.Fatalf("expected EXECUTED under proceed policy, got %s (%s)", d.Outcome, d.Reason)
	}
}

func TestProcess_MarketClosedPlansDecision(t *testing.T) {
	f := newFixture(t, Config{})

	p := buyProposal(0.9)
	p.MarketOpen = false

	d, err := f.engine.Process(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomePlanned {
		t.Fatalf("expected PLANNED, got %s", d.Outcome)
	}
	if f.tier2.calls != 1 {
		t.Error("planned decisions are validated before deferral")
	}
	if f.ledger.Cash() != 10000 {
		t.Error("planned decision must not execute")
	}

	// Market opens; the plan executes at the fresh price.
	if err := f.engine.ExecutePlanned(context.Background(), d, 40, true); err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeExecuted {
		t.Fatalf("expected EXECUTED after retry, got %s (%s)", d.Outcome, d.Reason)
	}
	// Re-sized at 40: floor(10000*0.05/40) = 12 shares.
	if d.Quantity != 12 {
		t.Errorf("expected re-sized quantity 12, got %.2f", d.Quantity)
	}
	if f.tier2.calls != 1 {
		t.Error("retry must not re-validate")
	}
}

func TestExecutePlanned_StaysPlannedWhileClosed(t *testing.T) {
	f := newFixture(t, Config{})

	p := buyProposal(0.9)
	p.MarketOpen = false
	d, _ := f.engine.Process(context.Background(), p)

	if err := f.engine.ExecutePlanned(context.Background(), d, 50, false); err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomePlanned {
		t.Errorf("expected decision to remain PLANNED, got %s", d.Outcome)
	}
}

func TestProcess_LiveModeRequiresReview(t *testing.T) {
	f := newFixture(t, Config{LiveMode: true})

	d, err := f.engine.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeRequiresReview {
		t.Fatalf("expected REQUIRES_REVIEW, got %s", d.Outcome)
	}
	if f.ledger.Cash() != 10000 {
		t.Error("live mode must never auto-execute")
	}
}

func TestProcess_SecondBuySameDayRejected(t *testing.T) {
	f := newFixture(t, Config{})

	first, err := f.engine.Process(context.Background(), buyProposal(0.9))
	if err != nil || first.Outcome != model.OutcomeExecuted {
		t.Fatalf("setup buy failed: %v %s", err, first.Outcome)
	}

	second, err := f.engine.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != model.OutcomeRejected {
		t.Fatalf("expected second same-day buy rejected, got %s", second.Outcome)
	}
	if f.tier2.calls != 1 {
		t.Error("daily limit check must run before paying for validation")
	}
}

func TestProcess_SecondBuySameDayRejectedWithoutDatabase(t *testing.T) {
	l, err := ledger.New(filepath.Join(t.TempDir(), "ledger.json"), 10000)
	if err != nil {
		t.Fatal(err)
	}
	tier2 := &fakeTier2{validation: model.Validation{Verdict: model.VerdictProceed}}
	// The noop repository returns no trades; the ledger's own log must
	// still enforce the daily limit.
	eng := New(l, risk.NewPolicy(0.05, 0.10), tier2, repository.NewNoopRepository(), nil, Config{})

	first, err := eng.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if first.Outcome != model.OutcomeExecuted {
		t.Fatalf("setup buy failed: %s (%s)", first.Outcome, first.Reason)
	}

	second, err := eng.Process(context.Background(), buyProposal(0.9))
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != model.OutcomeRejected {
		t.Fatalf("expected second same-day buy rejected, got %s", second.Outcome)
	}
	if len(l.Trades()) != 1 {
		t.Errorf("expected exactly one trade, got %d", len(l.Trades()))
	}
}

func TestProcess_SellExemptFromDailyLimit(t *testing.T) {
	f := newFixture(t, Config{})

	if d, _ := f.engine.Process(context.Background(), buyProposal(0.9)); d.Outcome != model.OutcomeExecuted {
		t.Fatalf("setup buy failed: %s", d.Outcome)
	}

	sell := Proposal{
		Recommendation: model.Recommendation{
			Symbol:     "AZN.L",
			Action:     model.ActionSell,
			Confidence: 0.9,
			Source:     model.TierLocal,
		},
		Price:      55,
		MarketOpen: true,
	}
	d, err := f.engine.Process(context.Background(), sell)
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeExecuted {
		t.Fatalf("same-day sell must be allowed, got %s (%s)", d.Outcome, d.Reason)
	}
	if _, held := f.ledger.Position("AZN.L"); held {
		t.Error("expected full liquidation")
	}
}

func TestProcess_SellWithoutPositionRejected(t *testing.T) {
	f := newFixture(t, Config{})

	p := Proposal{
		Recommendation: model.Recommendation{
			Symbol: "BP.L", Action: model.ActionSell, Confidence: 0.9, Source: model.TierLocal,
		},
		Price:      5,
		MarketOpen: true,
	}
	d, err := f.engine.Process(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != model.OutcomeRejected {
		t.Fatalf("expected REJECTED, got %s", d.Outcome)
	}
	if f.tier2.calls != 0 {
		t.Error("unsellable proposal must not reach the validator")
	}
}

func TestProcess_ForcedHoldEscalatesButDoesNotTrade(t *testing.T) {
	f := newFixture(t, Config{})

	p := Proposal{
		Recommendation: model.Recommendation{
			Symbol: "AZN.L", Action: model.ActionHold, Confidence: 0.95, Source: model.TierLocal,
		},
		Price:         50,
		MarketOpen:    true,
		ForceValidate: true,
	}
	d, err := f.engine.Process(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if f.tier2.calls != 1 {
		t.Errorf("forced escalation must consult tier 2, got %d calls", f.tier2.calls)
	}
	if d.Outcome != model.OutcomeValidated {
		t.Fatalf("expected VALIDATED with no trade, got %s", d.Outcome)
	}
	if f.ledger.Cash() != 10000 {
		t.Error("a HOLD never moves cash")
	}
}

func TestProcess_DecisionsArePersisted(t *testing.T) {
	f := newFixture(t, Config{})

	d, _ := f.engine.Process(context.Background(), buyProposal(0.9))
	stored, ok := f.repo.decisions[d.ID]
	if !ok {
		t.Fatal("expected decision persisted")
	}
	if stored.Outcome != model.OutcomeExecuted {
		t.Errorf("expected stored outcome EXECUTED, got %s", stored.Outcome)
	}
	if len(f.repo.trades) != 1 {
		t.Errorf("expected 1 persisted trade, got %d", len(f.repo.trades))
	}
	if _, ok := f.repo.positions["AZN.L"]; !ok {
		t.Error("expected position persisted")
	}
}
