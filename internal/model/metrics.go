package model

import (
	"fmt"

	"github.com/opensource-finance/talon/internal/domain"
)

// Metrics holds binary classification quality on a labeled set.
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64

	TruePositive  int
	FalsePositive int
	TrueNegative  int
	FalseNegative int
}

// Evaluate scores a classifier against labeled vectors at the given
// probability threshold.
func Evaluate(c domain.Classifier, data [][]float64, labels []int, threshold float64) (*Metrics, error) {
	if len(data) != len(labels) {
		return nil, fmt.Errorf("data/label length mismatch: %d vs %d", len(data), len(labels))
	}

	var m Metrics
	for i, vec := range data {
		p, err := c.PredictProbability(vec)
		if err != nil {
			return nil, fmt.Errorf("predict row %d: %w", i, err)
		}
		predicted := p >= threshold
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			m.TruePositive++
		case predicted && !actual:
			m.FalsePositive++
		case !predicted && actual:
			m.FalseNegative++
		default:
			m.TrueNegative++
		}
	}

	total := len(labels)
	if total > 0 {
		m.Accuracy = float64(m.TruePositive+m.TrueNegative) / float64(total)
	}
	if m.TruePositive+m.FalsePositive > 0 {
		m.Precision = float64(m.TruePositive) / float64(m.TruePositive+m.FalsePositive)
	}
	if m.TruePositive+m.FalseNegative > 0 {
		m.Recall = float64(m.TruePositive) / float64(m.TruePositive+m.FalseNegative)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return &m, nil
}
