// Package risk implements position sizing and exposure limits applied to
// every validated trade before it reaches the ledger.
package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrRejected marks a trade that violates the sizing or cash limits. The
// owning decision moves to REJECTED and is not retried within the cycle.
var ErrRejected = errors.New("trade rejected by risk policy")

const (
	DefaultSizeFraction = 0.05
	DefaultMaxExposure  = 0.10
)

// Policy holds the fixed-percentage sizing parameters.
type Policy struct {
	SizeFraction float64 // default fraction of portfolio per BUY
	MaxExposure  float64 // maximum single-position fraction of portfolio
}

// NewPolicy creates a Policy, filling zero parameters with the defaults.
func NewPolicy(sizeFraction, maxExposure float64) *Policy {
	if sizeFraction <= 0 {
		sizeFraction = DefaultSizeFraction
	}
	if maxExposure <= 0 {
		maxExposure = DefaultMaxExposure
	}
	return &Policy{SizeFraction: sizeFraction, MaxExposure: maxExposure}
}

// BuyQuantity computes the whole-share quantity for a BUY: portfolio value
// times the size fraction (the recommendation's hint when present), divided
// by price and floored.
func (p *Policy) BuyQuantity(totalValue, price, sizeHint float64) float64 {
	if price <= 0 || totalValue <= 0 {
		return 0
	}
	fraction := p.SizeFraction
	if sizeHint > 0 {
		fraction = sizeHint
	}
	return math.Floor(totalValue * fraction / price)
}

// ValidateBuy rejects the trade when the projected position value would
// exceed the exposure cap or when cash cannot cover the cost.
func (p *Policy) ValidateBuy(quantity, price, totalValue, currentPositionValue, cash float64) error {
	cost := quantity * price
	if cost > cash {
		return fmt.Errorf("cost %.2f exceeds cash %.2f: %w", cost, cash, ErrRejected)
	}
	projected := currentPositionValue + cost
	if limit := totalValue * p.MaxExposure; projected > limit {
		return fmt.Errorf("projected exposure %.2f exceeds limit %.2f: %w", projected, limit, ErrRejected)
	}
	return nil
}

// SellQuantity targets full liquidation unless a partial size hint is
// present, in which case the hint (as a fraction of portfolio value at the
// given price) is capped at the held quantity.
func (p *Policy) SellQuantity(held, price, totalValue, sizeHint float64) float64 {
	if sizeHint <= 0 || price <= 0 {
		return held
	}
	qty := math.Floor(totalValue * sizeHint / price)
	if qty <= 0 || qty > held {
		return held
	}
	return qty
}
