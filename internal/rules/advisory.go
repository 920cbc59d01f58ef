package rules

import (
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// NewEvaluateInput builds overlay rule input from a transaction. History
// fields left nil evaluate as zero; callers that want real values should
// enrich the transaction first.
func NewEvaluateInput(tenantID string, tx *domain.Transaction) *EvaluateInput {
	input := &EvaluateInput{
		TenantID:   tenantID,
		TxID:       tx.ID,
		EntityID:   tx.EntityID,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Location:   tx.Location,
		CardType:   tx.CardType,
		Category:   tx.Category,
		Status:     tx.Status,
		AuthMethod: tx.AuthMethod,
	}

	if tx.Velocity != nil {
		input.Velocity = *tx.Velocity
	}
	if tx.DistanceKm != nil {
		input.DistanceKm = *tx.DistanceKm
	}
	if tx.MinutesSinceLast != nil {
		input.MinutesSinceLast = *tx.MinutesSinceLast
	}

	if ts, err := tx.Occurred(); err == nil {
		input.Hour = ts.Hour()
		wd := ts.Weekday()
		input.Weekend = wd == time.Saturday || wd == time.Sunday
	}

	return input
}

// AdvisoryLabels collects human-readable labels from overlay rule failures
// and matched scenarios. These annotate detection results without moving
// the blended score.
func AdvisoryLabels(ruleResults []domain.RuleResult, scenarioResults []domain.ScenarioResult) []string {
	var labels []string
	for _, r := range ruleResults {
		if r.SubRuleRef == domain.RuleOutcomeFail || r.SubRuleRef == domain.RuleOutcomeReview {
			labels = append(labels, "Rule "+r.RuleID+": "+r.Reason)
		}
	}
	for _, s := range scenarioResults {
		if s.Matched {
			labels = append(labels, "Scenario: "+s.ScenarioName)
		}
	}
	return labels
}
