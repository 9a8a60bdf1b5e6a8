package marketdata

import (
	"context"
	"errors"
	"time"

	"TradeSentinel/internal/model"
)

// ErrInsufficientData marks an instrument whose history is too short to
// compute the full indicator set. Callers exclude the instrument from the
// cycle instead of failing the pass.
var ErrInsufficientData = errors.New("insufficient indicator data")

// Provider defines the interface for fetching market data.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	GetHistorical(ctx context.Context, symbol, period string) ([]model.OHLCV, error)
	GetMarketStatus(ctx context.Context) (model.MarketStatus, error)
	Name() string
}

// londonStatus computes LSE trading status from wall-clock time
// (Mon-Fri, 08:00-16:30 Europe/London).
func londonStatus(now time.Time) model.MarketStatus {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	open := time.Date(local.Year(), local.Month(), local.Day(), 8, 0, 0, 0, loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), 16, 30, 0, 0, loc)

	weekday := local.Weekday()
	isOpen := weekday != time.Saturday && weekday != time.Sunday &&
		!local.Before(open) && !local.After(close)

	next := open
	if !local.Before(close) || weekday == time.Saturday || weekday == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return model.MarketStatus{IsOpen: isOpen, NextOpen: next}
}
