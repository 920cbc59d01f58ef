package rules

// The built-in rule table. Thresholds and contributions are calibrated
// against the production training corpus and are not tenant
// configurable; operator-defined rules go through the CEL overlay
// engine instead.
const (
	HighAmountThreshold = 75_000_000.0
	HighAmountScore     = 0.30

	HighVelocityThreshold = 10.0
	HighVelocityScore     = 0.25

	LongDistanceThresholdKm = 500.0
	LongDistanceScore       = 0.20

	RapidSuccessionMinutes = 1.0 // strictly less than
	RapidSuccessionScore   = 0.15

	NightStartHour = 22
	NightEndHour   = 6
	NightScore     = 0.10

	FailedAuthStatus = "Failed"
	FailedAuthScore  = 0.40

	WeekendMultiplier = 1.2
)

// Rule labels, in evaluation order.
const (
	LabelHighAmount      = "High transaction amount"
	LabelHighVelocity    = "High transaction velocity"
	LabelUnusualDistance = "Unusual distance between transactions"
	LabelRapidSuccession = "Rapid successive transactions"
	LabelNightTime       = "Night time transaction"
	LabelFailedAuth      = "Failed authentication"
	LabelWeekend         = "Weekend transaction"
)

// Input holds the raw post-imputation attributes the table evaluates.
type Input struct {
	Amount           float64
	Velocity         float64
	DistanceKm       float64
	MinutesSinceLast float64
	Hour             int
	AuthMethod       string
	Weekend          bool
}

// Outcome is the deterministic result of one table pass.
type Outcome struct {
	// Score is the clamped [0,1] rule risk score.
	Score float64

	// Labels lists the triggered rules in evaluation order.
	Labels []string
}

// Evaluate runs the fixed rule table against one transaction. The six
// rules accumulate independently in order; the weekend multiplier then
// scales the running sum before clamping. Same input, same outcome.
func Evaluate(in Input) Outcome {
	var out Outcome
	add := func(score float64, label string) {
		out.Score += score
		out.Labels = append(out.Labels, label)
	}

	if in.Amount > HighAmountThreshold {
		add(HighAmountScore, LabelHighAmount)
	}
	if in.Velocity > HighVelocityThreshold {
		add(HighVelocityScore, LabelHighVelocity)
	}
	if in.DistanceKm > LongDistanceThresholdKm {
		add(LongDistanceScore, LabelUnusualDistance)
	}
	if in.MinutesSinceLast < RapidSuccessionMinutes {
		add(RapidSuccessionScore, LabelRapidSuccession)
	}
	if in.Hour >= NightStartHour || in.Hour <= NightEndHour {
		add(NightScore, LabelNightTime)
	}
	if in.AuthMethod == FailedAuthStatus {
		add(FailedAuthScore, LabelFailedAuth)
	}

	if in.Weekend {
		out.Score *= WeekendMultiplier
		out.Labels = append(out.Labels, LabelWeekend)
	}

	if out.Score > 1 {
		out.Score = 1
	}
	if out.Score < 0 {
		out.Score = 0
	}
	return out
}
