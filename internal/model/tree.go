package model

import (
	"math"
	"math/rand"
)

// Node is one node of a regression tree. Fields are exported for gob.
type Node struct {
	// Split parameters (internal nodes)
	SplitFeature int
	SplitValue   float64

	// Children; both nil for leaves
	Left  *Node
	Right *Node

	// Leaf value (Newton step on the boosting objective)
	Value float64
}

// IsLeaf reports whether the node terminates a path.
func (n *Node) IsLeaf() bool { return n.Left == nil && n.Right == nil }

// Predict walks the tree for one feature vector.
func (n *Node) Predict(features []float64) float64 {
	cur := n
	for !cur.IsLeaf() {
		if features[cur.SplitFeature] <= cur.SplitValue {
			cur = cur.Left
		} else {
			cur = cur.Right
		}
	}
	return cur.Value
}

// treeGrower fits one regression tree to gradient/hessian targets.
type treeGrower struct {
	data       [][]float64
	grad       []float64
	hess       []float64
	maxDepth   int
	minSamples int
	candidates int
	rng        *rand.Rand
}

func (g *treeGrower) grow(rows []int, depth int) *Node {
	if depth >= g.maxDepth || len(rows) < g.minSamples*2 {
		return &Node{Value: g.leafValue(rows)}
	}

	feat, split, ok := g.bestSplit(rows)
	if !ok {
		return &Node{Value: g.leafValue(rows)}
	}

	var left, right []int
	for _, r := range rows {
		if g.data[r][feat] <= split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < g.minSamples || len(right) < g.minSamples {
		return &Node{Value: g.leafValue(rows)}
	}

	return &Node{
		SplitFeature: feat,
		SplitValue:   split,
		Left:         g.grow(left, depth+1),
		Right:        g.grow(right, depth+1),
	}
}

// leafValue is the regularized Newton step: sum(grad) / (sum(hess) + eps).
func (g *treeGrower) leafValue(rows []int) float64 {
	var sg, sh float64
	for _, r := range rows {
		sg += g.grad[r]
		sh += g.hess[r]
	}
	return sg / (sh + 1e-9)
}

// bestSplit scans every feature over sampled candidate thresholds and
// returns the split with the highest gradient-variance gain.
func (g *treeGrower) bestSplit(rows []int) (feature int, split float64, ok bool) {
	nFeatures := len(g.data[rows[0]])

	var baseSum float64
	for _, r := range rows {
		baseSum += g.grad[r]
	}
	baseScore := baseSum * baseSum / float64(len(rows))

	bestGain := 0.0
	for f := 0; f < nFeatures; f++ {
		for _, cand := range g.sampleThresholds(rows, f) {
			var lSum, rSum float64
			var lN, rN int
			for _, r := range rows {
				if g.data[r][f] <= cand {
					lSum += g.grad[r]
					lN++
				} else {
					rSum += g.grad[r]
					rN++
				}
			}
			if lN < g.minSamples || rN < g.minSamples {
				continue
			}
			gain := lSum*lSum/float64(lN) + rSum*rSum/float64(rN) - baseScore
			if gain > bestGain {
				bestGain = gain
				feature = f
				split = cand
				ok = true
			}
		}
	}
	return feature, split, ok
}

// sampleThresholds picks up to candidates distinct values of a feature.
func (g *treeGrower) sampleThresholds(rows []int, feat int) []float64 {
	seen := make(map[float64]struct{}, g.candidates)
	out := make([]float64, 0, g.candidates)
	for i := 0; i < g.candidates*4 && len(out) < g.candidates; i++ {
		v := g.data[rows[g.rng.Intn(len(rows))]][feat]
		if math.IsNaN(v) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
