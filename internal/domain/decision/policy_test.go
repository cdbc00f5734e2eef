package decision

import (
	"testing"

	"github.com/blipee-dev/agentcore/internal/domain/action"
)

func TestScoreBounds(t *testing.T) {
	cases := []action.RiskInputs{
		{Magnitude: 0, Reversibility: 1, Confidence: 1},
		{Magnitude: 1, Reversibility: 0, Confidence: 0},
		{Magnitude: 0.5, Reversibility: 0.5, Confidence: 0.5},
		{Magnitude: -2, Reversibility: 5, Confidence: -1}, // out of range, clamped
	}
	for _, in := range cases {
		score := Score(in)
		if score < 0 || score > 1 {
			t.Errorf("Score(%+v) = %v, outside [0, 1]", in, score)
		}
	}
}

func TestScoreExtremes(t *testing.T) {
	// A reversible no-op reported with full confidence carries no risk.
	if got := Score(action.RiskInputs{Magnitude: 0, Reversibility: 1, Confidence: 1}); got != 0 {
		t.Fatalf("expected score 0, got %v", got)
	}
	// An irreversible maximum-magnitude action with zero confidence is maximal.
	if got := Score(action.RiskInputs{Magnitude: 1, Reversibility: 0, Confidence: 0}); got != 1 {
		t.Fatalf("expected score 1, got %v", got)
	}
}

func TestScoreMonotonicInMagnitude(t *testing.T) {
	low := Score(action.RiskInputs{Magnitude: 0.2, Reversibility: 0.5, Confidence: 0.8})
	high := Score(action.RiskInputs{Magnitude: 0.9, Reversibility: 0.5, Confidence: 0.8})
	if high <= low {
		t.Fatalf("expected higher magnitude to score higher: %v vs %v", high, low)
	}
}

func TestScoreIrreversibilityAmplifies(t *testing.T) {
	reversible := Score(action.RiskInputs{Magnitude: 0.7, Reversibility: 1, Confidence: 0.8})
	irreversible := Score(action.RiskInputs{Magnitude: 0.7, Reversibility: 0, Confidence: 0.8})
	if irreversible <= reversible {
		t.Fatalf("expected irreversible action to score higher: %v vs %v", irreversible, reversible)
	}
}

func TestScoreDeterministic(t *testing.T) {
	in := action.RiskInputs{Magnitude: 0.42, Reversibility: 0.33, Confidence: 0.77}
	first := Score(in)
	for range 10 {
		if got := Score(in); got != first {
			t.Fatalf("score not deterministic: %v vs %v", got, first)
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds

	cases := []struct {
		score float64
		want  action.Classification
	}{
		{0, action.AutoApprove},
		{0.29, action.AutoApprove},
		{0.3, action.NeedsApproval}, // low threshold is inclusive for approval
		{0.5, action.NeedsApproval},
		{0.79, action.NeedsApproval},
		{0.8, action.Reject}, // high threshold is inclusive for reject
		{1, action.Reject},
	}
	for _, tc := range cases {
		if got := Classify(tc.score, th); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds.Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}

	bad := []Thresholds{
		{Low: -0.1, High: 0.5},
		{Low: 0.5, High: 1.1},
		{Low: 0.6, High: 0.4},
		{Low: 0.5, High: 0.5},
	}
	for _, th := range bad {
		if err := th.Validate(); err == nil {
			t.Errorf("Validate(%+v): expected error, got nil", th)
		}
	}
}
