package calculator

import (
	"errors"
	"math"
)

// CalculateBollinger computes Bollinger Bands over the given period with the
// given standard-deviation multiplier. Returns (lower, middle, upper).
func CalculateBollinger(prices []float64, period int, stdMult float64) (lower, middle, upper float64, err error) {
	if period <= 0 {
		return 0, 0, 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, 0, 0, errors.New("not enough data for Bollinger calculation")
	}

	middle, err = CalculateSMA(prices, period)
	if err != nil {
		return 0, 0, 0, err
	}

	window := prices[len(prices)-period:]
	variance := 0.0
	for _, p := range window {
		variance += (p - middle) * (p - middle)
	}
	variance /= float64(period)
	stdDev := math.Sqrt(variance)

	lower = middle - stdMult*stdDev
	upper = middle + stdMult*stdDev
	return lower, middle, upper, nil
}
