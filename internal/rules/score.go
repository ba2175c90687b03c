package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"canonry/internal/entity"
)

// Score is the outcome of evaluating one candidate against a rule set.
type Score struct {
	Value   float64
	State   entity.State
	Reasons []string
}

// ReasonsJSON renders the confidence reasons for persistence. An empty
// reason list persists as an empty JSON array, not null.
func (s Score) ReasonsJSON() (string, error) {
	if len(s.Reasons) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s.Reasons)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HardBlocked reports whether the score was forced to reject by a hard
// block, which suppresses enrichment recommendations.
func (s Score) HardBlocked() bool {
	for _, r := range s.Reasons {
		if strings.HasPrefix(r, "hard_block:") {
			return true
		}
	}
	return false
}

// ComputeScore evaluates features against a rule set.
//
// Evaluation order matters: hard blocks short-circuit before any weight
// accumulation, and penalties apply only after the full weighted sum so a
// candidate cannot be penalized before it has earned partial credit.
func ComputeScore(rs *RuleSet, features entity.FeatureSet, hardBlockFlags []string) Score {
	var reasons []string

	for _, flag := range hardBlockFlags {
		if rs.HasHardBlock(flag) {
			reasons = append(reasons, "hard_block:"+flag)
			return Score{Value: 0.0, State: entity.StateReject, Reasons: reasons}
		}
	}

	score := 0.0
	for _, feat := range rs.WeightNames() {
		if features[feat] {
			weight := rs.FeatureWeights[feat]
			score += weight
			reasons = append(reasons, fmt.Sprintf("feature:%s:%.4f", feat, weight))
		}
	}

	for _, penaltyKey := range rs.PenaltyNames() {
		attrName := strings.TrimPrefix(penaltyKey, "missing_")
		hasAttr := false
		for feat := range rs.FeatureWeights {
			if strings.HasPrefix(feat, attrName) && features[feat] {
				hasAttr = true
				break
			}
		}
		if !hasAttr {
			penalty := rs.MissingAttributePenalties[penaltyKey]
			score = math.Max(0.0, score-penalty)
			reasons = append(reasons, fmt.Sprintf("penalty:%s:%.4f", penaltyKey, penalty))
		}
	}

	score = Round4(math.Min(1.0, math.Max(0.0, score)))
	return Score{Value: score, State: rs.StateForScore(score), Reasons: reasons}
}

// StateForScore routes a pre-computed numeric score to a resolution state.
func (r *RuleSet) StateForScore(score float64) entity.State {
	switch {
	case score >= r.Thresholds.AutoPromote:
		return entity.StateAutoPromote
	case score >= r.Thresholds.Review:
		return entity.StateReview
	case score >= r.Thresholds.Hold:
		return entity.StateHold
	default:
		return entity.StateReject
	}
}

// Round4 rounds to 4 decimal places, the persisted score precision.
func Round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
