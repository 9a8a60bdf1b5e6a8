// Package prescreen reduces the instrument universe to a ranked candidate
// subset using technical indicators, before any advisory tier is consulted.
package prescreen

import (
	"math"
	"sort"

	"TradeSentinel/internal/model"
)

// idealRSI is the center of the band that breaks ties between instruments of
// equal score: closer to it ranks higher.
const idealRSI = 40.0

// DefaultTopN bounds the candidate set when no cutoff symbol is configured.
const DefaultTopN = 10

// Config controls how the ranked candidate list is truncated.
type Config struct {
	TopN         int    // maximum candidates; DefaultTopN when 0
	CutoffSymbol string // keep all candidates scoring at or above this symbol's score
}

// Candidate is a qualifying instrument with its score and criteria breakdown.
type Candidate struct {
	Snapshot model.IndicatorSnapshot
	Score    int

	NotOverbought    bool // RSI < 70
	PositiveMomentum bool // MACD > 0
	TrendAligned     bool // price > SMA50 > SMA200
}

// Evaluate scores a single snapshot against the three criteria. An instrument
// qualifies when at least two pass.
func Evaluate(snap model.IndicatorSnapshot) Candidate {
	c := Candidate{
		Snapshot:         snap,
		NotOverbought:    snap.RSI < 70,
		PositiveMomentum: snap.MACD > 0,
		TrendAligned:     snap.Price > snap.SMA50 && snap.SMA50 > snap.SMA200,
	}
	for _, passed := range []bool{c.NotOverbought, c.PositiveMomentum, c.TrendAligned} {
		if passed {
			c.Score++
		}
	}
	return c
}

// Qualifies reports whether the candidate passes the 2-of-3 threshold.
func (c Candidate) Qualifies() bool { return c.Score >= 2 }

// Screen evaluates all snapshots and returns the qualifying candidates ranked
// descending by score. Ties break by RSI proximity to the ideal band, then by
// symbol, so the ordering is total and stable across identical inputs.
func Screen(snaps []model.IndicatorSnapshot, cfg Config) []Candidate {
	candidates := make([]Candidate, 0, len(snaps))
	for _, snap := range snaps {
		if c := Evaluate(snap); c.Qualifies() {
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		da := math.Abs(a.Snapshot.RSI - idealRSI)
		db := math.Abs(b.Snapshot.RSI - idealRSI)
		if da != db {
			return da < db
		}
		return a.Snapshot.Symbol < b.Snapshot.Symbol
	})

	return truncate(candidates, cfg)
}

func truncate(ranked []Candidate, cfg Config) []Candidate {
	if cfg.CutoffSymbol != "" {
		for _, c := range ranked {
			if c.Snapshot.Symbol == cfg.CutoffSymbol {
				cut := c.Score
				keep := ranked[:0:0]
				for _, r := range ranked {
					if r.Score >= cut {
						keep = append(keep, r)
					}
				}
				return keep
			}
		}
	}

	topN := cfg.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
