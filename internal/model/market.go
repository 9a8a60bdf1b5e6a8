package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is a point-in-time price for a symbol.
type Quote struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}

// MarketStatus reports whether the exchange is currently trading.
type MarketStatus struct {
	IsOpen   bool
	NextOpen time.Time
}

// IndicatorSnapshot holds the computed technical indicators for one
// instrument at one point in time. Consumed transiently by the prescreener.
type IndicatorSnapshot struct {
	Symbol     string
	Time       time.Time
	Price      float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	SMA50      float64
	SMA200     float64
	BollLower  float64
	BollMiddle float64
	BollUpper  float64
	Volume     float64
}
