package model

import (
	"errors"
	"fmt"
)

// Ensemble blends member classifiers by weighted-average probability.
// Weights come from each member's validation F1 score, normalized to
// sum 1; members that scored zero everywhere fall back to equal
// weighting.
type Ensemble struct {
	members  []*GradientBoosted
	weights  []float64
	features []string
}

// NewEnsemble builds an ensemble from trained members and their
// validation F1 scores. All members must share one feature schema.
func NewEnsemble(members []*GradientBoosted, f1Scores []float64) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, errors.New("ensemble needs at least one member")
	}
	if len(members) != len(f1Scores) {
		return nil, fmt.Errorf("member/score length mismatch: %d vs %d", len(members), len(f1Scores))
	}

	features := members[0].FeatureNames()
	for i, m := range members[1:] {
		if !sameSchema(features, m.FeatureNames()) {
			return nil, fmt.Errorf("member %d feature schema differs from member 0", i+1)
		}
	}

	var total float64
	for _, f1 := range f1Scores {
		if f1 < 0 {
			return nil, fmt.Errorf("negative F1 score %f", f1)
		}
		total += f1
	}

	weights := make([]float64, len(members))
	if total == 0 {
		for i := range weights {
			weights[i] = 1 / float64(len(members))
		}
	} else {
		for i, f1 := range f1Scores {
			weights[i] = f1 / total
		}
	}

	return &Ensemble{members: members, weights: weights, features: features}, nil
}

// PredictProbability returns the weighted average member probability.
func (e *Ensemble) PredictProbability(features []float64) (float64, error) {
	var sum float64
	for i, m := range e.members {
		p, err := m.PredictProbability(features)
		if err != nil {
			return 0, fmt.Errorf("ensemble member %d: %w", i, err)
		}
		sum += e.weights[i] * p
	}
	return sum, nil
}

// FeatureNames returns the shared member schema.
func (e *Ensemble) FeatureNames() []string {
	return append([]string(nil), e.features...)
}

// Weights returns the normalized member weights.
func (e *Ensemble) Weights() []float64 {
	return append([]float64(nil), e.weights...)
}

// Size returns the member count.
func (e *Ensemble) Size() int { return len(e.members) }

func sameSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
