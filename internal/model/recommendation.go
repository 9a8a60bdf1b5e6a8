package model

// Action is a trading action proposed by an advisory tier.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Valid reports whether the action is one of BUY, SELL, HOLD.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

// Tier identifies which advisory tier produced a recommendation.
type Tier string

const (
	TierLocal  Tier = "tier1"
	TierRemote Tier = "tier2"
)

// Recommendation is a validated, structured trading suggestion.
// Immutable once created by the interpreter.
type Recommendation struct {
	Symbol       string
	Action       Action
	Confidence   float64 // [0,1]
	Reasoning    string
	SizeFraction float64 // suggested fraction of portfolio, 0 means default
	Source       Tier
	RemoteOrigin bool // produced directly by tier-2, skips validation
}
