package rules

import (
	"math"
	"testing"
)

// benign is an input that fires no rules.
func benign() Input {
	return Input{
		Amount:           1500,
		Velocity:         2,
		DistanceKm:       4,
		MinutesSinceLast: 60,
		Hour:             14,
		AuthMethod:       "PIN",
		Weekend:          false,
	}
}

func TestEvaluateNoRules(t *testing.T) {
	out := Evaluate(benign())
	if out.Score != 0 {
		t.Errorf("expected score 0, got %v", out.Score)
	}
	if len(out.Labels) != 0 {
		t.Errorf("expected no labels, got %v", out.Labels)
	}
}

func TestEvaluateSingleRules(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Input)
		score  float64
		label  string
	}{
		{
			name:   "HighAmount",
			modify: func(in *Input) { in.Amount = 75_000_001 },
			score:  0.30,
			label:  LabelHighAmount,
		},
		{
			name:   "HighVelocity",
			modify: func(in *Input) { in.Velocity = 11 },
			score:  0.25,
			label:  LabelHighVelocity,
		},
		{
			name:   "LongDistance",
			modify: func(in *Input) { in.DistanceKm = 501 },
			score:  0.20,
			label:  LabelUnusualDistance,
		},
		{
			name:   "RapidSuccession",
			modify: func(in *Input) { in.MinutesSinceLast = 0.5 },
			score:  0.15,
			label:  LabelRapidSuccession,
		},
		{
			name:   "NightLate",
			modify: func(in *Input) { in.Hour = 22 },
			score:  0.10,
			label:  LabelNightTime,
		},
		{
			name:   "NightEarly",
			modify: func(in *Input) { in.Hour = 6 },
			score:  0.10,
			label:  LabelNightTime,
		},
		{
			name:   "FailedAuth",
			modify: func(in *Input) { in.AuthMethod = "Failed" },
			score:  0.40,
			label:  LabelFailedAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := benign()
			tt.modify(&in)
			out := Evaluate(in)

			if math.Abs(out.Score-tt.score) > 1e-9 {
				t.Errorf("expected score %v, got %v", tt.score, out.Score)
			}
			if len(out.Labels) != 1 || out.Labels[0] != tt.label {
				t.Errorf("expected label %q, got %v", tt.label, out.Labels)
			}
		})
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	// Thresholds are strict: the boundary values themselves never fire
	in := benign()
	in.Amount = HighAmountThreshold
	in.Velocity = HighVelocityThreshold
	in.DistanceKm = LongDistanceThresholdKm
	in.MinutesSinceLast = RapidSuccessionMinutes

	out := Evaluate(in)
	if out.Score != 0 {
		t.Errorf("expected score 0 at thresholds, got %v with labels %v", out.Score, out.Labels)
	}

	// One past the boundary on each side of the night window
	for _, hour := range []int{7, 21} {
		in := benign()
		in.Hour = hour
		if out := Evaluate(in); out.Score != 0 {
			t.Errorf("hour %d should not fire night rule, got %v", hour, out.Labels)
		}
	}
	for _, hour := range []int{23, 0, 5} {
		in := benign()
		in.Hour = hour
		if out := Evaluate(in); math.Abs(out.Score-NightScore) > 1e-9 {
			t.Errorf("hour %d should fire only the night rule, got %v", hour, out.Labels)
		}
	}
}

func TestEvaluateWeekendMultiplier(t *testing.T) {
	in := benign()
	in.Amount = 80_000_000
	in.Weekend = true

	out := Evaluate(in)

	if math.Abs(out.Score-0.36) > 1e-9 {
		t.Errorf("expected 0.30 * 1.2 = 0.36, got %v", out.Score)
	}
	if len(out.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %v", out.Labels)
	}
	if out.Labels[0] != LabelHighAmount || out.Labels[1] != LabelWeekend {
		t.Errorf("expected [high amount, weekend], got %v", out.Labels)
	}
}

func TestEvaluateWeekendWithoutRules(t *testing.T) {
	// The multiplier scales zero to zero but the label still applies
	in := benign()
	in.Weekend = true

	out := Evaluate(in)
	if out.Score != 0 {
		t.Errorf("expected score 0, got %v", out.Score)
	}
	if len(out.Labels) != 1 || out.Labels[0] != LabelWeekend {
		t.Errorf("expected only weekend label, got %v", out.Labels)
	}
}

func TestEvaluateClamp(t *testing.T) {
	// All six rules: 0.30+0.25+0.20+0.15+0.10+0.40 = 1.40, weekend
	// scales to 1.68, clamps to 1.0
	in := Input{
		Amount:           80_000_000,
		Velocity:         15,
		DistanceKm:       750,
		MinutesSinceLast: 0.5,
		Hour:             23,
		AuthMethod:       "Failed",
		Weekend:          true,
	}

	out := Evaluate(in)
	if out.Score != 1.0 {
		t.Errorf("expected clamped score 1.0, got %v", out.Score)
	}

	want := []string{
		LabelHighAmount,
		LabelHighVelocity,
		LabelUnusualDistance,
		LabelRapidSuccession,
		LabelNightTime,
		LabelFailedAuth,
		LabelWeekend,
	}
	if len(out.Labels) != len(want) {
		t.Fatalf("expected %d labels, got %v", len(want), out.Labels)
	}
	for i, label := range want {
		if out.Labels[i] != label {
			t.Errorf("label[%d] = %q, want %q", i, out.Labels[i], label)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	in := Input{
		Amount:           80_000_000,
		Velocity:         12,
		DistanceKm:       600,
		MinutesSinceLast: 0.2,
		Hour:             2,
		AuthMethod:       "Failed",
		Weekend:          false,
	}

	first := Evaluate(in)
	for i := 0; i < 100; i++ {
		if out := Evaluate(in); out.Score != first.Score {
			t.Fatalf("score changed on iteration %d: %v vs %v", i, out.Score, first.Score)
		}
	}
}
