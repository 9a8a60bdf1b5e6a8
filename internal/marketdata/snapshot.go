package marketdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// minBars is the history needed to compute the full indicator set (SMA200).
const minBars = 200

// SnapshotBuilder fetches price history and computes the per-instrument
// indicator snapshot used by the prescreener.
type SnapshotBuilder struct {
	Provider Provider
}

// NewSnapshotBuilder creates a new SnapshotBuilder.
func NewSnapshotBuilder(provider Provider) *SnapshotBuilder {
	return &SnapshotBuilder{Provider: provider}
}

// BuildShort computes a reduced snapshot from a short history window, used
// by the position watch where fetching two years per tick would be wasteful.
// Long-horizon indicators that the window cannot support are left zero.
func (b *SnapshotBuilder) BuildShort(ctx context.Context, symbol, period string) (*model.IndicatorSnapshot, error) {
	bars, err := b.Provider.GetHistorical(ctx, symbol, period)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars for %s: %w", period, symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no bars: %w", symbol, ErrInsufficientData)
	}

	closes := calculator.ExtractCloses(bars)
	last := bars[len(bars)-1]

	snap := &model.IndicatorSnapshot{
		Symbol: symbol,
		Time:   time.Now(),
		Price:  last.Close,
		Volume: last.Volume,
	}

	if rsi, err := calculator.CalculateRSI(closes, 14); err == nil {
		snap.RSI = rsi
	} else {
		snap.RSI = 50
	}
	if macd, signal, err := calculator.CalculateMACD(closes); err == nil {
		snap.MACD = macd
		snap.MACDSignal = signal
	}
	if sma50, err := calculator.CalculateSMA(closes, 50); err == nil {
		snap.SMA50 = sma50
	}
	if lower, middle, upper, err := calculator.CalculateBollinger(closes, 20, 2.0); err == nil {
		snap.BollLower = lower
		snap.BollMiddle = middle
		snap.BollUpper = upper
	}
	return snap, nil
}

// Build fetches two years of daily bars for the symbol and computes all
// indicators. Returns ErrInsufficientData when the history is too short; the
// caller excludes the instrument from the cycle.
func (b *SnapshotBuilder) Build(ctx context.Context, symbol string) (*model.IndicatorSnapshot, error) {
	bars, err := b.Provider.GetHistorical(ctx, symbol, "2y")
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", symbol, err)
	}
	if len(bars) < minBars {
		return nil, fmt.Errorf("%s: %d bars: %w", symbol, len(bars), ErrInsufficientData)
	}

	closes := calculator.ExtractCloses(bars)
	last := bars[len(bars)-1]

	snap := &model.IndicatorSnapshot{
		Symbol: symbol,
		Time:   time.Now(),
		Price:  last.Close,
		Volume: last.Volume,
	}

	if rsi, err := calculator.CalculateRSI(closes, 14); err != nil {
		log.Printf("[WARN] RSI calculation failed for %s: %v, defaulting to 50", symbol, err)
		snap.RSI = 50
	} else {
		snap.RSI = rsi
	}

	macd, signal, err := calculator.CalculateMACD(closes)
	if err != nil {
		return nil, fmt.Errorf("%s MACD: %w", symbol, ErrInsufficientData)
	}
	snap.MACD = macd
	snap.MACDSignal = signal

	sma50, err := calculator.CalculateSMA(closes, 50)
	if err != nil {
		return nil, fmt.Errorf("%s SMA50: %w", symbol, ErrInsufficientData)
	}
	snap.SMA50 = sma50

	sma200, err := calculator.CalculateSMA(closes, 200)
	if err != nil {
		return nil, fmt.Errorf("%s SMA200: %w", symbol, ErrInsufficientData)
	}
	snap.SMA200 = sma200

	if lower, middle, upper, err := calculator.CalculateBollinger(closes, 20, 2.0); err != nil {
		log.Printf("[WARN] Bollinger calculation failed for %s: %v", symbol, err)
	} else {
		snap.BollLower = lower
		snap.BollMiddle = middle
		snap.BollUpper = upper
	}

	return snap, nil
}
