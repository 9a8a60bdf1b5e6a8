// Package interpret decodes raw advisory-tier output into validated
// recommendations. Advisory responses arrive as free text that may wrap a
// JSON payload in reasoning preamble or delimited thinking segments; nothing
// untyped crosses this boundary.
package interpret

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"TradeSentinel/internal/model"
)

// Result is the outcome of parsing one advisory response.
type Result struct {
	Summary         string
	Recommendations []model.Recommendation
	Dropped         int  // entries rejected by validation
	ParseFailed     bool // no recommendations payload could be located
}

var thinkBlockRe = regexp.MustCompile(`(?is)\[THINK\].*?\[/THINK\]|<think>.*?</think>`)

// stripThinking removes clearly delimited internal-reasoning segments.
func stripThinking(text string) string {
	return strings.TrimSpace(thinkBlockRe.ReplaceAllString(text, ""))
}

// recommendationsPayload is the expected JSON shape of an analysis response.
// Entries stay raw so one malformed entry cannot reject the batch.
type recommendationsPayload struct {
	Summary         string            `json:"analysis_summary"`
	Recommendations []json.RawMessage `json:"recommendations"`
}

// rawEntry is a single recommendation before validation. Pointer fields
// distinguish absent from zero.
type rawEntry struct {
	Action       string   `json:"action"`
	Symbol       string   `json:"symbol"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
	SizeFraction *float64 `json:"size_pct"`
}

// extractPayload locates the first well-formed JSON object containing a
// recommendations array anywhere in the text.
func extractPayload(text string) (*recommendationsPayload, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var p recommendationsPayload
		if err := dec.Decode(&p); err == nil && p.Recommendations != nil {
			return &p, true
		}
	}
	return nil, false
}

// Parse interprets a raw advisory response from the given tier. Malformed
// input never produces an error: it yields an empty or partial result with
// ParseFailed or Dropped set for observability.
func Parse(raw string, source model.Tier, remoteOrigin bool) Result {
	cleaned := stripThinking(raw)

	payload, ok := extractPayload(cleaned)
	if !ok {
		return Result{Summary: cleaned, ParseFailed: true}
	}

	res := Result{Summary: payload.Summary}
	for _, entry := range payload.Recommendations {
		rec, ok := decodeEntry(entry, source, remoteOrigin)
		if !ok {
			res.Dropped++
			continue
		}
		res.Recommendations = append(res.Recommendations, rec)
	}
	return res
}

func decodeEntry(data json.RawMessage, source model.Tier, remoteOrigin bool) (model.Recommendation, bool) {
	var e rawEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return model.Recommendation{}, false
	}

	action := model.Action(strings.ToUpper(strings.TrimSpace(e.Action)))
	if !action.Valid() || e.Symbol == "" || e.Confidence == nil {
		return model.Recommendation{}, false
	}

	conf := *e.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return model.Recommendation{}, false
	}

	rec := model.Recommendation{
		Symbol:       strings.TrimSpace(e.Symbol),
		Action:       action,
		Confidence:   conf,
		Reasoning:    e.Reasoning,
		Source:       source,
		RemoteOrigin: remoteOrigin,
	}
	if e.SizeFraction != nil {
		rec.SizeFraction = clamp01(*e.SizeFraction)
	}
	return rec, true
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// validationPayload is the JSON shape of a tier-2 validation verdict.
type validationPayload struct {
	Decision      string   `json:"decision"`
	NewConfidence *float64 `json:"new_confidence"`
	NewSizePct    *float64 `json:"new_size_pct"`
	Comments      string   `json:"comments"`
}

// ParseValidation interprets a raw tier-2 validation response. Returns false
// when no usable verdict can be extracted.
func ParseValidation(raw string) (model.Validation, bool) {
	cleaned := stripThinking(raw)

	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(cleaned[i:]))
		var vp validationPayload
		if err := dec.Decode(&vp); err != nil {
			continue
		}

		verdict := model.Verdict(strings.ToUpper(strings.TrimSpace(vp.Decision)))
		switch verdict {
		case model.VerdictProceed, model.VerdictModify, model.VerdictReject:
		default:
			continue
		}

		v := model.Validation{Verdict: verdict, Comments: vp.Comments}
		if vp.NewConfidence != nil {
			c := *vp.NewConfidence
			if !math.IsNaN(c) && c >= 0 && c <= 1 {
				v.Confidence = &c
			}
		}
		if vp.NewSizePct != nil {
			s := clamp01(*vp.NewSizePct)
			v.SizeFraction = &s
		}
		return v, true
	}
	return model.Validation{}, false
}

// positionCheck is the JSON shape of a tier-1 position judgment.
type positionCheck struct {
	Decision   string   `json:"decision"`
	Action     string   `json:"action"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// ParsePositionCheck interprets a raw HOLD/SELL judgment for a single open
// position. Returns false when no usable judgment can be extracted; callers
// treat that as HOLD.
func ParsePositionCheck(raw string, symbol string, source model.Tier) (model.Recommendation, bool) {
	cleaned := stripThinking(raw)

	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(cleaned[i:]))
		var pc positionCheck
		if err := dec.Decode(&pc); err != nil {
			continue
		}

		field := pc.Decision
		if field == "" {
			field = pc.Action
		}
		action := model.Action(strings.ToUpper(strings.TrimSpace(field)))
		if !action.Valid() || pc.Confidence == nil {
			continue
		}
		conf := *pc.Confidence
		if math.IsNaN(conf) || conf < 0 || conf > 1 {
			continue
		}
		return model.Recommendation{
			Symbol:     symbol,
			Action:     action,
			Confidence: conf,
			Reasoning:  pc.Reasoning,
			Source:     source,
		}, true
	}
	return model.Recommendation{}, false
}
