package domain

import (
	"fmt"
	"time"
)

// Transaction represents an incoming card transaction to be scored.
// JSON tags follow the upstream data dictionary so historical exports
// can be replayed against the API unchanged.
type Transaction struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Financial details
	Amount   float64 `json:"Transaction_Amount"`
	Currency string  `json:"Transaction_Currency"`

	// Temporal (wire format: date "2006-01-02", time "15:04:05")
	Date string `json:"Transaction_Date"`
	Time string `json:"Transaction_Time"`

	// Context
	Location   string `json:"Transaction_Location"`
	CardType   string `json:"Card_Type"`
	Status     string `json:"Transaction_Status"`
	AuthMethod string `json:"Authentication_Method"`
	Category   string `json:"Transaction_Category"`

	// Behavioral history (may be absent; enriched or imputed)
	PrevTxCount      *float64 `json:"Previous_Transaction_Count,omitempty"`
	DistanceKm       *float64 `json:"Distance_Between_Transactions_km,omitempty"`
	MinutesSinceLast *float64 `json:"Time_Since_Last_Transaction_min,omitempty"`
	Velocity         *float64 `json:"Transaction_Velocity,omitempty"`

	// Optional entity identifier used for history enrichment
	EntityID string `json:"entityId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Occurred parses the transaction's calendar date and clock time.
func (t *Transaction) Occurred() (time.Time, error) {
	ts, err := time.Parse("2006-01-02 15:04:05", t.Date+" "+t.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse transaction timestamp: %w", err)
	}
	return ts, nil
}

// Validate checks the fields a transaction cannot be scored without.
// Absent attributes are fine: history fields, date and time are all
// imputed downstream. Values that are present must parse.
func (t *Transaction) Validate() error {
	if t.Amount < 0 {
		return fmt.Errorf("%w: Transaction_Amount must be non-negative", ErrInvalidInput)
	}
	if t.Date != "" {
		if _, err := time.Parse("2006-01-02", t.Date); err != nil {
			return fmt.Errorf("%w: parse Transaction_Date: %v", ErrInvalidInput, err)
		}
	}
	if t.Time != "" {
		if _, err := time.Parse("15:04:05", t.Time); err != nil {
			return fmt.Errorf("%w: parse Transaction_Time: %v", ErrInvalidInput, err)
		}
	}
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"Previous_Transaction_Count", t.PrevTxCount},
		{"Distance_Between_Transactions_km", t.DistanceKm},
		{"Time_Since_Last_Transaction_min", t.MinutesSinceLast},
		{"Transaction_Velocity", t.Velocity},
	} {
		if f.value != nil && *f.value < 0 {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidInput, f.name)
		}
	}
	return nil
}

// Float returns a pointer for optional history fields on inline payloads.
func Float(v float64) *float64 { return &v }
