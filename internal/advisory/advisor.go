// Package advisory drives the two model tiers that feed the decision
// pipeline. Tier 1 is a local model that analyzes the screened universe and
// watches open positions; tier 2 is a remote model that validates
// high-confidence proposals and takes over analysis when the local tier
// produces nothing actionable.
package advisory

import (
	"context"
	"errors"

	"TradeSentinel/internal/model"
)

// ErrUnavailable marks failures where the tier could not be reached at all:
// transport errors, 5xx responses, rate limiting, and open circuits. Callers
// distinguish it from a reachable tier returning garbage.
var ErrUnavailable = errors.New("advisory tier unavailable")

// Portfolio is the account summary included in advisory prompts.
type Portfolio struct {
	Cash       float64
	TotalValue float64
	Positions  []model.Position
}

// Context carries everything a tier needs for a full universe analysis.
type Context struct {
	Candidates []model.IndicatorSnapshot
	Headlines  []string
	Portfolio  Portfolio
}

// PositionContext carries the inputs for a single open-position check.
type PositionContext struct {
	Snapshot  model.IndicatorSnapshot
	Position  model.Position
	Headlines []string
}

// ValidationRequest asks tier 2 to judge a sized, priced trade proposal.
type ValidationRequest struct {
	Recommendation model.Recommendation
	Snapshot       model.IndicatorSnapshot
	Portfolio      Portfolio
	Quantity       float64
	Price          float64
}

// Tier1 is the local advisory model. Responses are raw text; the interpret
// package turns them into recommendations.
type Tier1 interface {
	Analyze(ctx context.Context, actx Context) (string, error)
	CheckPosition(ctx context.Context, pctx PositionContext) (string, error)
	Name() string
}

// Tier2 is the remote advisory model. It validates proposals and can run a
// full analysis directly when tier 1 is skipped or comes up empty.
type Tier2 interface {
	Validate(ctx context.Context, req ValidationRequest) (model.Validation, error)
	AnalyzeDirect(ctx context.Context, actx Context) (string, error)
	Name() string
}
