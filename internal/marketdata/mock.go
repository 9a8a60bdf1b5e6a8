package marketdata

import (
	"context"
	"time"

	"TradeSentinel/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Price      float64
	Bars       map[string][]model.OHLCV
	MarketOpen bool
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	return model.Quote{Symbol: symbol, Price: m.Price, Volume: 1000000, Time: time.Now()}, nil
}

func (m *MockProvider) GetHistorical(_ context.Context, symbol, _ string) ([]model.OHLCV, error) {
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	return GenerateBars(m.Price, 300), nil
}

func (m *MockProvider) GetMarketStatus(_ context.Context) (model.MarketStatus, error) {
	return model.MarketStatus{IsOpen: m.MarketOpen}, nil
}

// GenerateBars builds a mildly trending synthetic daily series around basePrice.
func GenerateBars(basePrice float64, count int) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   time.Now().AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
