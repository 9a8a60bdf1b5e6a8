package notifier

import (
	"fmt"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// FormatTrade formats an executed decision into a Telegram message.
func FormatTrade(d *model.Decision) string {
	var b strings.Builder

	icon := "🟢"
	if d.Recommendation.Action == model.ActionSell {
		icon = "🔴"
	}
	fmt.Fprintf(&b, "%s <b>%s %s</b>\n\n", icon, d.Recommendation.Action, d.Recommendation.Symbol)
	fmt.Fprintf(&b, "Quantity: %.0f @ %.2f (%.2f total)\n", d.Quantity, d.Price, d.Quantity*d.Price)
	fmt.Fprintf(&b, "Confidence: %.2f (%s)\n", d.Recommendation.Confidence, d.Recommendation.Source)

	if d.Escalated {
		fmt.Fprintf(&b, "Validation: %s", d.Verdict)
		if d.Comments != "" {
			fmt.Fprintf(&b, " (%s)", d.Comments)
		}
		b.WriteString("\n")
	}
	if d.Recommendation.Reasoning != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Recommendation.Reasoning)
	}
	return b.String()
}

// FormatDecision formats a non-executed decision (rejected, planned, or
// flagged for manual review).
func FormatDecision(d *model.Decision) string {
	var b strings.Builder

	icon := "⚠️"
	switch d.Outcome {
	case model.OutcomeRejected:
		icon = "🚫"
	case model.OutcomePlanned:
		icon = "🕒"
	}
	fmt.Fprintf(&b, "%s <b>%s</b>: %s %s\n", icon, d.Outcome, d.Recommendation.Action, d.Recommendation.Symbol)
	fmt.Fprintf(&b, "Confidence: %.2f\n", d.Recommendation.Confidence)
	if d.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", d.Reason)
	}
	if d.Comments != "" {
		fmt.Fprintf(&b, "Reviewer: %s\n", d.Comments)
	}
	return b.String()
}

// FormatPortfolio formats the current account state for display.
func FormatPortfolio(cash, totalValue float64, positions []model.Position) string {
	var b strings.Builder

	b.WriteString("📦 <b>Portfolio</b>\n\n")
	fmt.Fprintf(&b, "Cash: %.2f\n", cash)
	fmt.Fprintf(&b, "Total value: %.2f\n", totalValue)

	if len(positions) == 0 {
		b.WriteString("\nNo open positions.\n")
		return b.String()
	}

	b.WriteString("\nPositions:\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "  %s: %.0f @ %.2f, last %.2f, P&amp;L %+.2f\n",
			p.Symbol, p.Quantity, p.EntryPrice, p.LastPrice, p.UnrealizedPnL)
	}
	return b.String()
}

// FormatStartup formats the boot banner.
func FormatStartup(universe int, remoteOnly bool, cash float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚀 <b>TradeSentinel started</b> | %s\n\n", time.Now().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Universe: %d instruments\n", universe)
	fmt.Fprintf(&b, "Cash: %.2f\n", cash)
	if remoteOnly {
		b.WriteString("Mode: remote-only\n")
	}
	return b.String()
}
