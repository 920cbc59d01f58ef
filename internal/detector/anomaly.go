package detector

import "math"

// AnomalyLabel annotates detections whose amount is a statistical
// outlier against the training distribution.
const AnomalyLabel = "Anomalous transaction amount"

// Baseline holds amount-distribution statistics for outlier checks.
// It flags values more than three standard deviations from the mean
// or outside the 1.5*IQR Tukey fences.
type Baseline struct {
	Mean float64
	Std  float64
	Q1   float64
	Q3   float64
}

// NewBaseline computes a baseline from a sorted sample.
func NewBaseline(sorted []float64) *Baseline {
	if len(sorted) == 0 {
		return &Baseline{}
	}
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))
	var ss float64
	for _, v := range sorted {
		d := v - mean
		ss += d * d
	}
	return &Baseline{
		Mean: mean,
		Std:  math.Sqrt(ss / float64(len(sorted))),
		Q1:   sortedQuantile(sorted, 0.25),
		Q3:   sortedQuantile(sorted, 0.75),
	}
}

// IsAnomalous reports whether an amount is an outlier.
func (b *Baseline) IsAnomalous(amount float64) bool {
	if b.Std > 0 {
		z := (amount - b.Mean) / b.Std
		if z > 3 || z < -3 {
			return true
		}
	}
	iqr := b.Q3 - b.Q1
	if iqr > 0 {
		if amount < b.Q1-1.5*iqr || amount > b.Q3+1.5*iqr {
			return true
		}
	}
	return false
}

func sortedQuantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
