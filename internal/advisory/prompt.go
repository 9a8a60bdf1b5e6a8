package advisory

import (
	"fmt"
	"strings"

	"TradeSentinel/internal/model"
)

const analysisSystem = `You are a cautious trading analyst for a UK equities paper account.
Respond with a single JSON object and nothing else:
{"analysis_summary": "...", "recommendations": [{"action": "BUY|SELL|HOLD", "symbol": "...", "confidence": 0.0, "reasoning": "...", "size_pct": 0.0}]}
Confidence is your conviction in [0,1]. size_pct is the suggested fraction of total portfolio value, at most 0.1. Recommend nothing rather than a weak trade.`

const positionSystem = `You are reviewing one open position in a UK equities paper account.
Respond with a single JSON object and nothing else:
{"decision": "HOLD|SELL", "confidence": 0.0, "reasoning": "..."}`

const validationSystem = `You are the senior reviewer for a UK equities paper account. A high-confidence trade proposal needs your sign-off before execution.
Respond with a single JSON object and nothing else:
{"decision": "PROCEED|MODIFY|REJECT", "new_confidence": 0.0, "new_size_pct": 0.0, "comments": "..."}
Use MODIFY to adjust confidence or size, REJECT to block the trade.`

func buildAnalysisPrompt(actx Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Portfolio: cash %.2f, total value %.2f.\n", actx.Portfolio.Cash, actx.Portfolio.TotalValue)
	if len(actx.Portfolio.Positions) > 0 {
		b.WriteString("Open positions:\n")
		for _, p := range actx.Portfolio.Positions {
			fmt.Fprintf(&b, "  %s: %.0f shares @ %.2f, last %.2f\n", p.Symbol, p.Quantity, p.EntryPrice, p.LastPrice)
		}
	} else {
		b.WriteString("No open positions.\n")
	}

	b.WriteString("\nScreened candidates:\n")
	for _, s := range actx.Candidates {
		writeSnapshot(&b, s)
	}

	if len(actx.Headlines) > 0 {
		b.WriteString("\nRecent market headlines:\n")
		for _, h := range actx.Headlines {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
	}

	b.WriteString("\nWhich of these candidates, if any, are worth a trade today?")
	return b.String()
}

func buildPositionPrompt(pctx PositionContext) string {
	var b strings.Builder

	p := pctx.Position
	pnl := p.Quantity * (pctx.Snapshot.Price - p.EntryPrice)
	fmt.Fprintf(&b, "Position: %s, %.0f shares, entry %.2f, current %.2f, unrealized P&L %.2f.\n",
		p.Symbol, p.Quantity, p.EntryPrice, pctx.Snapshot.Price, pnl)

	b.WriteString("Indicators:\n")
	writeSnapshot(&b, pctx.Snapshot)

	if len(pctx.Headlines) > 0 {
		b.WriteString("Recent headlines:\n")
		for _, h := range pctx.Headlines {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
	}

	b.WriteString("\nShould this position be held or sold?")
	return b.String()
}

func buildValidationPrompt(req ValidationRequest) string {
	var b strings.Builder

	rec := req.Recommendation
	fmt.Fprintf(&b, "Proposal: %s %s, confidence %.2f.\n", rec.Action, rec.Symbol, rec.Confidence)
	fmt.Fprintf(&b, "Sized order: %.0f shares at %.2f (%.2f total).\n", req.Quantity, req.Price, req.Quantity*req.Price)
	if rec.Reasoning != "" {
		fmt.Fprintf(&b, "Analyst reasoning: %s\n", rec.Reasoning)
	}

	fmt.Fprintf(&b, "\nPortfolio: cash %.2f, total value %.2f.\n", req.Portfolio.Cash, req.Portfolio.TotalValue)
	for _, p := range req.Portfolio.Positions {
		fmt.Fprintf(&b, "  %s: %.0f shares @ %.2f\n", p.Symbol, p.Quantity, p.EntryPrice)
	}

	b.WriteString("\nIndicators:\n")
	writeSnapshot(&b, req.Snapshot)

	b.WriteString("\nDoes this trade go through?")
	return b.String()
}

func writeSnapshot(b *strings.Builder, s model.IndicatorSnapshot) {
	fmt.Fprintf(b, "  %s: price %.2f, RSI %.1f, MACD %.3f (signal %.3f), SMA50 %.2f, SMA200 %.2f, Bollinger %.2f/%.2f/%.2f\n",
		s.Symbol, s.Price, s.RSI, s.MACD, s.MACDSignal, s.SMA50, s.SMA200, s.BollLower, s.BollMiddle, s.BollUpper)
}
