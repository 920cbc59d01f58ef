// Package feature turns raw card transactions into the fixed feature
// vector the classifier and rule engine consume. All data-dependent
// statistics are frozen at fit time in a State; Transform is a pure
// function of one record plus that state.
package feature

import "time"

// Feature names in canonical vector order. The classifier persists this
// schema at train time and the detector refuses to run if the loaded
// state and classifier disagree.
var Names = []string{
	"amount",
	"previous_tx_count",
	"distance_km",
	"minutes_since_last",
	"velocity",
	"log_amount",
	"day_of_week",
	"day_of_month",
	"month",
	"is_weekend",
	"hour",
	"is_night",
	"is_business_hours",
	"amount_zscore",
	"amount_percentile",
	"high_velocity",
	"long_distance",
	"quick_succession",
	"time_gap_category",
	"amount_velocity_ratio",
	"amount_distance_product",
	"amount_per_prev_tx",
	"high_amount_flag",
	"unusual_location_flag",
	"rapid_transaction_flag",
	"risk_score",
	"location_code",
	"card_type_code",
	"currency_code",
	"status_code",
	"auth_method_code",
	"category_code",
}

// scaledNames are the unbounded continuous features that get
// standard-scaled with fit-time mean/std. Z-score, log and percentile
// features are already normalized; flags, calendar fields and encoder
// codes pass through.
var scaledNames = []string{
	"amount",
	"previous_tx_count",
	"distance_km",
	"minutes_since_last",
	"velocity",
	"amount_velocity_ratio",
	"amount_distance_product",
	"amount_per_prev_tx",
}

// categoricalCols maps input attribute names to their code feature.
var categoricalCols = []struct {
	Attr    string
	Feature string
}{
	{"Transaction_Location", "location_code"},
	{"Card_Type", "card_type_code"},
	{"Transaction_Currency", "currency_code"},
	{"Transaction_Status", "status_code"},
	{"Authentication_Method", "auth_method_code"},
	{"Transaction_Category", "category_code"},
}

// UnseenCategoryCode is emitted for category values never observed at
// fit time. Tree models split it into its own branch; it is never an
// error.
const UnseenCategoryCode = -1

// Vector is the transform output for one transaction.
type Vector struct {
	// Values are ordered per Names.
	Values []float64

	// Imputed lists input attributes that were missing and filled
	// from fit-time statistics, in a stable order.
	Imputed []string

	// Resolved carries the post-imputation raw values the rule
	// engine evaluates against.
	Resolved Resolved
}

// Resolved holds the raw (unscaled, post-imputation) attributes of a
// transaction.
type Resolved struct {
	Amount           float64
	PrevTxCount      float64
	DistanceKm       float64
	MinutesSinceLast float64
	Velocity         float64
	Hour             int
	Weekend          bool
	AuthMethod       string
	Occurred         time.Time
}
