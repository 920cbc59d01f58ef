package domain

import "time"

// Scenario groups operator-defined rules with weights into a named
// fraud pattern. Scenario scores are advisory: they generate labels and
// alerts but never feed the blended risk score.
// Example: "Card Testing" combines small-amount (0.5) + rapid-fire (0.3)
// + foreign-currency (0.2).
type Scenario struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Rules contains the operator rules with their weights
	Rules []ScenarioRuleWeight `json:"rules"`

	// AlertThreshold is the minimum weighted score to label the
	// scenario as matched (0.0-1.0)
	AlertThreshold float64 `json:"alertThreshold"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ScenarioRuleWeight defines a rule and its weight within a scenario.
type ScenarioRuleWeight struct {
	RuleID string  `json:"ruleId"`
	Weight float64 `json:"weight"` // 0.0 to 1.0
}

// ScenarioResult is the aggregated result of rules for a scenario.
type ScenarioResult struct {
	ScenarioID    string             `json:"scenarioId"`
	ScenarioName  string             `json:"scenarioName"`
	Score         float64            `json:"score"`
	Threshold     float64            `json:"threshold"`
	Matched       bool               `json:"matched"`
	Rules         []RuleResult       `json:"rules"`
	Contributions []RuleContribution `json:"contributions,omitempty"`
	ProcessMs     int64              `json:"processMs,omitempty"`
}

// RuleContribution shows how a single rule contributed to a scenario score.
type RuleContribution struct {
	RuleID       string  `json:"ruleId"`
	RuleScore    float64 `json:"ruleScore"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"` // ruleScore * weight
}
