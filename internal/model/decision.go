package model

import "time"

// Outcome is the lifecycle state of a Decision.
type Outcome string

const (
	OutcomePending        Outcome = "PENDING"
	OutcomeValidated      Outcome = "VALIDATED"
	OutcomeRejected       Outcome = "REJECTED"
	OutcomeRequiresReview Outcome = "REQUIRES_REVIEW"
	OutcomePlanned        Outcome = "PLANNED"
	OutcomeExecuted       Outcome = "EXECUTED"
)

// Verdict is the tier-2 validation result for a proposed trade.
type Verdict string

const (
	VerdictProceed Verdict = "PROCEED"
	VerdictModify  Verdict = "MODIFY"
	VerdictReject  Verdict = "REJECT"
)

// Decision wraps a Recommendation with its validation and execution outcome.
// Created PENDING, transitions once through validation (or the tier-2-origin
// skip), and terminates at EXECUTED, REJECTED, or REQUIRES_REVIEW. PLANNED
// decisions are re-tried when the market next opens.
type Decision struct {
	ID             string
	Recommendation Recommendation
	Outcome        Outcome
	Verdict        Verdict
	Comments       string
	Reason         string
	Escalated      bool
	Quantity       float64
	Price          float64
	CreatedAt      time.Time
	ExecutedAt     time.Time
}

// Validation is a tier-2 verdict on a proposed trade. Pointer fields carry
// MODIFY overrides; nil means keep the proposal's original value.
type Validation struct {
	Verdict      Verdict
	Confidence   *float64
	SizeFraction *float64
	Comments     string
}

// Terminal reports whether the decision has reached a final state.
func (d *Decision) Terminal() bool {
	switch d.Outcome {
	case OutcomeExecuted, OutcomeRejected, OutcomeRequiresReview:
		return true
	}
	return false
}
