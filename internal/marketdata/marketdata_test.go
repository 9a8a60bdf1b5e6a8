package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"TradeSentinel/internal/model"
)

func mustLondon(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestLondonStatus(t *testing.T) {
	loc := mustLondon(t)

	cases := []struct {
		name string
		now  time.Time
		open bool
	}{
		{"mid-session", time.Date(2026, 3, 2, 10, 0, 0, 0, loc), true},   // Monday
		{"before open", time.Date(2026, 3, 2, 7, 59, 0, 0, loc), false},
		{"after close", time.Date(2026, 3, 2, 16, 31, 0, 0, loc), false},
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, loc), false},
		{"sunday", time.Date(2026, 3, 8, 12, 0, 0, 0, loc), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := londonStatus(tc.now)
			if status.IsOpen != tc.open {
				t.Errorf("expected open=%v at %s", tc.open, tc.now)
			}
			if !status.IsOpen && !status.NextOpen.After(tc.now) {
				t.Errorf("NextOpen %s must be after now %s", status.NextOpen, tc.now)
			}
		})
	}
}

func TestLondonStatus_NextOpenSkipsWeekend(t *testing.T) {
	loc := mustLondon(t)
	friday := time.Date(2026, 3, 6, 17, 0, 0, 0, loc)

	status := londonStatus(friday)
	if status.IsOpen {
		t.Fatal("market must be closed after Friday close")
	}
	if status.NextOpen.Weekday() != time.Monday {
		t.Errorf("expected next open on Monday, got %s", status.NextOpen.Weekday())
	}
}

func TestSnapshotBuilder_Build(t *testing.T) {
	b := NewSnapshotBuilder(&MockProvider{Price: 100})

	snap, err := b.Build(context.Background(), "AZN.L")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Symbol != "AZN.L" || snap.Price <= 0 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.SMA200 <= 0 || snap.SMA50 <= 0 {
		t.Error("expected long averages computed from 300 bars")
	}
	// Synthetic uptrend: the short average leads the long one.
	if snap.SMA50 <= snap.SMA200 {
		t.Errorf("expected SMA50 %.2f above SMA200 %.2f", snap.SMA50, snap.SMA200)
	}
}

func TestSnapshotBuilder_BuildInsufficientHistory(t *testing.T) {
	provider := &MockProvider{
		Price: 100,
		Bars:  map[string][]model.OHLCV{"NEW.L": GenerateBars(100, 50)},
	}
	b := NewSnapshotBuilder(provider)

	_, err := b.Build(context.Background(), "NEW.L")
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestSnapshotBuilder_BuildShort(t *testing.T) {
	provider := &MockProvider{
		Price: 100,
		Bars:  map[string][]model.OHLCV{"AZN.L": GenerateBars(100, 60)},
	}
	b := NewSnapshotBuilder(provider)

	snap, err := b.BuildShort(context.Background(), "AZN.L", "3mo")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Price <= 0 || snap.RSI <= 0 {
		t.Errorf("expected price and RSI from short window, got %+v", snap)
	}
	if snap.SMA200 != 0 {
		t.Error("SMA200 must stay zero on a short window")
	}
}

func TestChartBars_MalformedResponses(t *testing.T) {
	decode := func(t *testing.T, raw string) *yahooChart {
		t.Helper()
		var chart yahooChart
		if err := json.Unmarshal([]byte(raw), &chart); err != nil {
			t.Fatal(err)
		}
		return &chart
	}

	t.Run("missing quote series", func(t *testing.T) {
		chart := decode(t, `{"chart": {"result": [
			{"timestamp": [1740000000, 1740086400], "indicators": {"quote": []}}]}}`)
		if _, err := chartBars(chart, "AZN.L"); err == nil {
			t.Fatal("expected error for empty quote series")
		}
	})

	t.Run("short field arrays", func(t *testing.T) {
		chart := decode(t, `{"chart": {"result": [{
			"timestamp": [1740000000, 1740086400, 1740172800],
			"indicators": {"quote": [{
				"open": [10, 11], "high": [12, 13], "low": [9, 10],
				"close": [11, 12], "volume": [100, 200]}]}}]}}`)
		bars, err := chartBars(chart, "AZN.L")
		if err != nil {
			t.Fatal(err)
		}
		// The third timestamp has no matching fields and must be dropped.
		if len(bars) != 2 {
			t.Fatalf("expected 2 bars, got %d", len(bars))
		}
		if bars[1].Close != 12 {
			t.Errorf("expected last close 12, got %.2f", bars[1].Close)
		}
	})
}
