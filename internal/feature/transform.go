package feature

import (
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Transform maps one transaction to its feature vector. It is pure:
// the same record and state always produce the same vector, and the
// state is never mutated.
func (s *State) Transform(tx *domain.Transaction) (*Vector, error) {
	if s == nil || !s.Fitted {
		return nil, domain.ErrNotTrained
	}
	r, imputed, err := s.resolve(tx)
	if err != nil {
		return nil, err
	}

	values := s.rawVector(tx, r)
	for _, name := range scaledNames {
		i := nameIdx[name]
		std := s.ScalerStd[name]
		if std == 0 {
			values[i] = 0
			continue
		}
		values[i] = (values[i] - s.ScalerMean[name]) / std
	}

	return &Vector{Values: values, Imputed: imputed, Resolved: r}, nil
}

// resolve fills missing timestamp, history and category attributes from
// fit-time statistics and reports which ones were imputed. Only values
// that are present but unparseable are an error.
func (s *State) resolve(tx *domain.Transaction) (Resolved, []string, error) {
	var imputed []string

	date, clock := tx.Date, tx.Time
	if date == "" {
		if date = s.Modes["Transaction_Date"]; date == "" {
			date = fallbackDate
		}
		imputed = append(imputed, "Transaction_Date")
	}
	if clock == "" {
		if clock = s.Modes["Transaction_Time"]; clock == "" {
			clock = fallbackTime
		}
		imputed = append(imputed, "Transaction_Time")
	}
	occurred, err := time.Parse("2006-01-02 15:04:05", date+" "+clock)
	if err != nil {
		return Resolved{}, nil, fmt.Errorf("%w: parse transaction timestamp: %v", domain.ErrInvalidInput, err)
	}
	pick := func(attr string, v *float64) float64 {
		if v != nil {
			return *v
		}
		imputed = append(imputed, attr)
		return s.Medians[attr]
	}

	r := Resolved{
		Amount:   tx.Amount,
		Hour:     occurred.Hour(),
		Weekend:  occurred.Weekday() == time.Saturday || occurred.Weekday() == time.Sunday,
		Occurred: occurred,
	}
	for _, attr := range historyAttrOrder {
		v := pick(attr, historyAttrs[attr](tx))
		switch attr {
		case "Previous_Transaction_Count":
			r.PrevTxCount = v
		case "Distance_Between_Transactions_km":
			r.DistanceKm = v
		case "Time_Since_Last_Transaction_min":
			r.MinutesSinceLast = v
		case "Transaction_Velocity":
			r.Velocity = v
		}
	}

	r.AuthMethod = tx.AuthMethod
	for _, col := range categoricalCols {
		if categoryValue(tx, col.Attr) == "" {
			imputed = append(imputed, col.Attr)
			if col.Attr == "Authentication_Method" {
				r.AuthMethod = s.Modes[col.Attr]
			}
		}
	}

	return r, imputed, nil
}

// rawVector computes the unscaled feature values in canonical order.
func (s *State) rawVector(tx *domain.Transaction, r Resolved) []float64 {
	values := make([]float64, len(Names))
	set := func(name string, v float64) { values[nameIdx[name]] = v }

	set("amount", r.Amount)
	set("previous_tx_count", r.PrevTxCount)
	set("distance_km", r.DistanceKm)
	set("minutes_since_last", r.MinutesSinceLast)
	set("velocity", r.Velocity)
	set("log_amount", math.Log1p(r.Amount))

	// Calendar features; day_of_week counts Monday as 0.
	set("day_of_week", float64((int(r.Occurred.Weekday())+6)%7))
	set("day_of_month", float64(r.Occurred.Day()))
	set("month", float64(int(r.Occurred.Month())))
	set("is_weekend", boolToFloat(r.Weekend))

	set("hour", float64(r.Hour))
	set("is_night", boolToFloat(r.Hour >= 22 || r.Hour <= 6))
	set("is_business_hours", boolToFloat(r.Hour >= 9 && r.Hour <= 17))

	if s.AmountStd > 0 {
		set("amount_zscore", (r.Amount-s.AmountMean)/s.AmountStd)
	}
	set("amount_percentile", percentileRank(s.SortedAmounts, r.Amount))

	set("high_velocity", boolToFloat(r.Velocity > s.VelocityQ75))
	set("long_distance", boolToFloat(r.DistanceKm > s.DistanceQ75))
	set("quick_succession", boolToFloat(r.MinutesSinceLast < 5))
	set("time_gap_category", timeGapCategory(r.MinutesSinceLast))

	set("amount_velocity_ratio", r.Amount/(r.Velocity+1))
	set("amount_distance_product", r.Amount*r.DistanceKm)
	set("amount_per_prev_tx", r.Amount/(r.PrevTxCount+1))

	highAmount := r.Amount > s.AmountQ95
	unusualLoc := r.DistanceKm > s.DistanceQ90
	rapid := r.MinutesSinceLast < 2
	set("high_amount_flag", boolToFloat(highAmount))
	set("unusual_location_flag", boolToFloat(unusualLoc))
	set("rapid_transaction_flag", boolToFloat(rapid))
	set("risk_score", boolToFloat(highAmount)+boolToFloat(unusualLoc)+boolToFloat(rapid))

	for _, col := range categoricalCols {
		v := categoryValue(tx, col.Attr)
		if v == "" {
			v = s.Modes[col.Attr]
		}
		code, ok := s.Encoders[col.Attr][v]
		if !ok {
			code = UnseenCategoryCode
		}
		set(col.Feature, float64(code))
	}

	return values
}

// timeGapCategory buckets the minutes since the previous transaction.
func timeGapCategory(minutes float64) float64 {
	switch {
	case minutes < 5:
		return 0
	case minutes < 30:
		return 1
	case minutes < 60:
		return 2
	case minutes < 1440:
		return 3
	default:
		return 4
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
