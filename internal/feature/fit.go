package feature

import (
	"fmt"
	"math"
	"sort"

	"github.com/opensource-finance/talon/internal/domain"
)

// State holds every statistic Transform needs, frozen at fit time.
// Fields are exported for gob serialization; treat a loaded State as
// immutable.
type State struct {
	Fitted   bool
	Features []string

	// Amount distribution from the training set
	AmountMean    float64
	AmountStd     float64
	SortedAmounts []float64

	// Threshold quantiles
	VelocityQ75 float64
	DistanceQ75 float64
	AmountQ95   float64
	DistanceQ90 float64

	// Standard scaler parameters keyed by feature name
	ScalerMean map[string]float64
	ScalerStd  map[string]float64

	// Category encoders keyed by input attribute name. Codes follow
	// the sorted order of the training categories.
	Encoders map[string]map[string]int

	// Imputation statistics keyed by input attribute name
	Medians map[string]float64
	Modes   map[string]string
}

// FeatureNames returns the feature schema in vector order.
func (s *State) FeatureNames() []string {
	return s.Features
}

// Fit computes transform state from labeled or unlabeled historical
// transactions. The input set is read once and never mutated.
func Fit(records []*domain.Transaction) (*State, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no training records", domain.ErrInvalidInput)
	}

	s := &State{
		Fitted:     true,
		Features:   append([]string(nil), Names...),
		ScalerMean: make(map[string]float64),
		ScalerStd:  make(map[string]float64),
		Encoders:   make(map[string]map[string]int),
		Medians:    make(map[string]float64),
		Modes:      make(map[string]string),
	}

	// Imputation statistics from the observed values.
	for attr, get := range historyAttrs {
		var present []float64
		for _, tx := range records {
			if v := get(tx); v != nil {
				present = append(present, *v)
			}
		}
		s.Medians[attr] = median(present)
	}
	for _, col := range categoricalCols {
		var present []string
		for _, tx := range records {
			if v := categoryValue(tx, col.Attr); v != "" {
				present = append(present, v)
			}
		}
		s.Modes[col.Attr] = mode(present)
	}

	// Timestamp modes back records that arrive without a date or time.
	var dates, times []string
	for _, tx := range records {
		if tx.Date != "" {
			dates = append(dates, tx.Date)
		}
		if tx.Time != "" {
			times = append(times, tx.Time)
		}
	}
	s.Modes["Transaction_Date"] = mode(dates)
	s.Modes["Transaction_Time"] = mode(times)
	if s.Modes["Transaction_Date"] == "" {
		s.Modes["Transaction_Date"] = fallbackDate
	}
	if s.Modes["Transaction_Time"] == "" {
		s.Modes["Transaction_Time"] = fallbackTime
	}

	// Resolve every record once; all downstream statistics see the
	// imputed view, matching what Transform will see at inference.
	resolved := make([]Resolved, 0, len(records))
	for _, tx := range records {
		r, _, err := s.resolve(tx)
		if err != nil {
			return nil, fmt.Errorf("fit record %s: %w", tx.ID, err)
		}
		resolved = append(resolved, r)
	}

	amounts := make([]float64, len(resolved))
	velocities := make([]float64, len(resolved))
	distances := make([]float64, len(resolved))
	for i, r := range resolved {
		amounts[i] = r.Amount
		velocities[i] = r.Velocity
		distances[i] = r.DistanceKm
	}
	sort.Float64s(amounts)
	s.SortedAmounts = amounts
	s.AmountMean = mean(amounts)
	s.AmountStd = stddev(amounts, s.AmountMean)
	s.VelocityQ75 = quantile(velocities, 0.75)
	s.DistanceQ75 = quantile(distances, 0.75)
	s.AmountQ95 = quantile(amounts, 0.95)
	s.DistanceQ90 = quantile(distances, 0.90)

	// Encoders: sorted unique categories, codes 0..n-1.
	for _, col := range categoricalCols {
		seen := make(map[string]struct{})
		for _, tx := range records {
			v := categoryValue(tx, col.Attr)
			if v == "" {
				v = s.Modes[col.Attr]
			}
			if v != "" {
				seen[v] = struct{}{}
			}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		enc := make(map[string]int, len(cats))
		for i, v := range cats {
			enc[v] = i
		}
		s.Encoders[col.Attr] = enc
	}

	// Scaler parameters from the unscaled training vectors.
	cols := make(map[string][]float64, len(scaledNames))
	for i, r := range resolved {
		raw := s.rawVector(records[i], r)
		for _, name := range scaledNames {
			cols[name] = append(cols[name], raw[nameIdx[name]])
		}
	}
	for _, name := range scaledNames {
		m := mean(cols[name])
		s.ScalerMean[name] = m
		s.ScalerStd[name] = stddev(cols[name], m)
	}

	return s, nil
}

// Timestamp fallbacks for the degenerate case where the training set
// itself carries no dates or times. Noon on a Monday keeps every
// time-derived flag neutral.
const (
	fallbackDate = "2000-01-03"
	fallbackTime = "12:00:00"
)

// historyAttrs maps the optional numeric attributes to their accessor.
var historyAttrs = map[string]func(*domain.Transaction) *float64{
	"Previous_Transaction_Count":       func(t *domain.Transaction) *float64 { return t.PrevTxCount },
	"Distance_Between_Transactions_km": func(t *domain.Transaction) *float64 { return t.DistanceKm },
	"Time_Since_Last_Transaction_min":  func(t *domain.Transaction) *float64 { return t.MinutesSinceLast },
	"Transaction_Velocity":             func(t *domain.Transaction) *float64 { return t.Velocity },
}

// historyAttrOrder fixes the reporting order of imputed fields.
var historyAttrOrder = []string{
	"Previous_Transaction_Count",
	"Distance_Between_Transactions_km",
	"Time_Since_Last_Transaction_min",
	"Transaction_Velocity",
}

func categoryValue(tx *domain.Transaction, attr string) string {
	switch attr {
	case "Transaction_Location":
		return tx.Location
	case "Card_Type":
		return tx.CardType
	case "Transaction_Currency":
		return tx.Currency
	case "Transaction_Status":
		return tx.Status
	case "Authentication_Method":
		return tx.AuthMethod
	case "Transaction_Category":
		return tx.Category
	}
	return ""
}

// nameIdx maps feature names to their fixed vector position. Names
// never changes at runtime, so the index is built once.
var nameIdx = func() map[string]int {
	idx := make(map[string]int, len(Names))
	for i, n := range Names {
		idx[n] = i
	}
	return idx
}()

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mode returns the most frequent value; ties break to the smallest so
// repeated fits on the same data agree.
func mode(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	counts := make(map[string]int, len(xs))
	for _, x := range xs {
		counts[x]++
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

// quantile uses linear interpolation between order statistics.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// percentileRank returns the fraction of the frozen training amounts
// at or below v.
func percentileRank(sorted []float64, v float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	n := sort.SearchFloat64s(sorted, math.Nextafter(v, math.Inf(1)))
	return float64(n) / float64(len(sorted))
}
