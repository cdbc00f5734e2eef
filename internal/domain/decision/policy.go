// Package decision implements the risk classification policy.
//
// Classification is a pure function of the action's declared risk inputs and
// the thresholds in effect: no clock, no store, no hidden state. Actions keep
// the classification made under the policy version in effect at
// classification time; policy changes are never applied retroactively.
package decision

import (
	"fmt"

	"github.com/blipee-dev/agentcore/internal/domain"
	"github.com/blipee-dev/agentcore/internal/domain/action"
)

// Thresholds are the policy cut-offs applied to a risk score.
type Thresholds struct {
	// Low: scores strictly below auto-approve.
	Low float64 `json:"low"`
	// High: scores at or above are rejected outright.
	High float64 `json:"high"`
	// Version identifies the policy that produced a classification.
	Version int `json:"version"`
}

// DefaultThresholds is policy version 1: auto-approve below 0.3, reject at
// 0.8 and above, human approval in between. Any change must bump Version.
var DefaultThresholds = Thresholds{Low: 0.3, High: 0.8, Version: 1}

// TenantOverrideVersion stamps classifications made under a tenant's own
// thresholds, so the audit trail distinguishes them from the default policy.
const TenantOverrideVersion = 2

// Validate checks threshold ordering and range.
func (t Thresholds) Validate() error {
	if t.Low < 0 || t.High > 1 || t.Low >= t.High {
		return fmt.Errorf("%w: thresholds low=%v high=%v (need 0 <= low < high <= 1)", domain.ErrValidation, t.Low, t.High)
	}
	return nil
}

// Score derives the risk score from an action's declared risk inputs.
// Irreversible, high-magnitude, low-confidence actions score highest.
// The result is clamped to [0, 1].
func Score(in action.RiskInputs) float64 {
	magnitude := clamp01(in.Magnitude)
	irreversibility := 1 - clamp01(in.Reversibility)
	doubt := 1 - clamp01(in.Confidence)

	// Magnitude dominates; irreversibility amplifies it; doubt adds a
	// smaller independent contribution.
	score := magnitude*0.5 + magnitude*irreversibility*0.3 + doubt*0.2
	return clamp01(score)
}

// Classify maps a risk score to a classification under the given thresholds.
func Classify(score float64, t Thresholds) action.Classification {
	switch {
	case score < t.Low:
		return action.AutoApprove
	case score >= t.High:
		return action.Reject
	default:
		return action.NeedsApproval
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
