// Package model implements the learned fraud classifiers: a gradient
// boosted tree model trained in-process and an F1-weighted ensemble.
// Both satisfy the domain.Classifier contract; the detector never
// depends on a concrete model type.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// GradientBoosted is a binary classifier built from shallow regression
// trees fit to logistic-loss gradients.
type GradientBoosted struct {
	mu sync.RWMutex

	// Configuration
	nTrees       int
	maxDepth     int
	learningRate float64
	minSamples   int
	subsample    float64
	candidates   int
	rng          *rand.Rand

	// Trained model
	baseScore float64
	trees     []*Node
	features  []string
	trained   bool
}

// Option configures a GradientBoosted classifier.
type Option func(*GradientBoosted)

// WithTrees sets the number of boosting rounds.
func WithTrees(n int) Option {
	return func(m *GradientBoosted) { m.nTrees = n }
}

// WithDepth sets the maximum tree depth.
func WithDepth(d int) Option {
	return func(m *GradientBoosted) { m.maxDepth = d }
}

// WithLearningRate sets the shrinkage applied to each tree.
func WithLearningRate(lr float64) Option {
	return func(m *GradientBoosted) { m.learningRate = lr }
}

// WithSubsample sets the row fraction sampled per boosting round.
func WithSubsample(f float64) Option {
	return func(m *GradientBoosted) { m.subsample = f }
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(m *GradientBoosted) { m.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a GradientBoosted classifier with the given options.
func New(opts ...Option) *GradientBoosted {
	m := &GradientBoosted{
		nTrees:       100,
		maxDepth:     4,
		learningRate: 0.1,
		minSamples:   5,
		subsample:    0.8,
		candidates:   16,
		rng:          rand.New(rand.NewSource(42)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit trains the classifier. labels must be 0 or 1; featureNames fixes
// the schema PredictProbability expects.
func (m *GradientBoosted) Fit(data [][]float64, labels []int, featureNames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if len(data) != len(labels) {
		return fmt.Errorf("data/label length mismatch: %d vs %d", len(data), len(labels))
	}
	if len(featureNames) != len(data[0]) {
		return fmt.Errorf("feature name count %d does not match vector width %d", len(featureNames), len(data[0]))
	}

	n := len(data)

	// Initial score: log-odds of the positive rate.
	var pos int
	for _, y := range labels {
		if y == 1 {
			pos++
		}
	}
	p := clampProb(float64(pos) / float64(n))
	m.baseScore = math.Log(p / (1 - p))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = m.baseScore
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	m.trees = make([]*Node, 0, m.nTrees)

	sampleN := int(m.subsample * float64(n))
	if sampleN < 1 {
		sampleN = n
	}

	for t := 0; t < m.nTrees; t++ {
		for i := 0; i < n; i++ {
			pi := sigmoid(scores[i])
			grad[i] = float64(labels[i]) - pi
			hess[i] = pi * (1 - pi)
		}

		rows := make([]int, sampleN)
		for i := range rows {
			rows[i] = m.rng.Intn(n)
		}

		grower := &treeGrower{
			data:       data,
			grad:       grad,
			hess:       hess,
			maxDepth:   m.maxDepth,
			minSamples: m.minSamples,
			candidates: m.candidates,
			rng:        m.rng,
		}
		tree := grower.grow(rows, 0)
		m.trees = append(m.trees, tree)

		for i := 0; i < n; i++ {
			scores[i] += m.learningRate * tree.Predict(data[i])
		}
	}

	m.features = append([]string(nil), featureNames...)
	m.trained = true
	return nil
}

// PredictProbability returns the fraud probability for one vector.
func (m *GradientBoosted) PredictProbability(features []float64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(m.features) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.features), len(features))
	}

	score := m.baseScore
	for _, tree := range m.trees {
		score += m.learningRate * tree.Predict(features)
	}
	return sigmoid(score), nil
}

// FeatureNames returns the schema the model was trained on.
func (m *GradientBoosted) FeatureNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.features...)
}

// FeatureImportance counts split usage per feature, normalized to sum 1.
func (m *GradientBoosted) FeatureImportance() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make([]float64, len(m.features))
	var total float64
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil || n.IsLeaf() {
			return
		}
		counts[n.SplitFeature]++
		total++
		walk(n.Left)
		walk(n.Right)
	}
	for _, tree := range m.trees {
		walk(tree)
	}

	out := make(map[string]float64, len(m.features))
	for i, name := range m.features {
		if total > 0 {
			out[name] = counts[i] / total
		} else {
			out[name] = 0
		}
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// clampProb keeps the initial log-odds finite on degenerate label sets.
func clampProb(p float64) float64 {
	const eps = 1e-6
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
