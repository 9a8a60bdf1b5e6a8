package calculator

import "errors"

// CalculateMACD computes MACD(12,26) and its 9-period signal line from the
// given prices. Requires at least 26+9 prices for a meaningful signal.
func CalculateMACD(prices []float64) (macd, signal float64, err error) {
	const (
		fastPeriod   = 12
		slowPeriod   = 26
		signalPeriod = 9
	)
	if len(prices) < slowPeriod+signalPeriod {
		return 0, 0, errors.New("not enough data for MACD calculation")
	}

	fast, err := emaSeries(prices, fastPeriod)
	if err != nil {
		return 0, 0, err
	}
	slow, err := emaSeries(prices, slowPeriod)
	if err != nil {
		return 0, 0, err
	}

	// Align both series on the slow EMA's start index.
	offset := len(fast) - len(slow)
	macdSeries := make([]float64, len(slow))
	for i := range slow {
		macdSeries[i] = fast[i+offset] - slow[i]
	}

	signalSeries, err := emaSeries(macdSeries, signalPeriod)
	if err != nil {
		return 0, 0, err
	}

	return macdSeries[len(macdSeries)-1], signalSeries[len(signalSeries)-1], nil
}
