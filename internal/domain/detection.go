package domain

import (
	"time"
)

// DetectionResult represents the complete scoring outcome for a transaction.
// Wire field names match the upstream detection API contract.
type DetectionResult struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	TxID     string `json:"txId"`

	IsFraud       bool    `json:"is_fraud"`
	ModelScore    float64 `json:"ml_risk_score"`
	RuleScore     float64 `json:"rule_risk_score"`
	CombinedScore float64 `json:"combined_risk_score"`
	RiskLevel     string  `json:"risk_level"`

	// TriggeredRules holds the built-in rule labels in evaluation order.
	TriggeredRules []string `json:"triggered_rules"`

	// AdvisoryLabels holds operator-defined rule hits. They annotate the
	// result but never move the scores.
	AdvisoryLabels []string `json:"advisory_labels,omitempty"`

	Recommendation string `json:"recommendation"`

	// Degraded is set when the classifier was unavailable and the model
	// score fell back to its neutral value.
	Degraded bool `json:"degraded,omitempty"`

	// ImputedFields lists input attributes that were absent and filled
	// from fit-time statistics.
	ImputedFields []string `json:"imputed_fields,omitempty"`

	Timestamp    time.Time `json:"timestamp"`
	ProcessingMs float64   `json:"processing_time_ms"`

	Metadata DetectionMetadata `json:"metadata"`
}

// DetectionMetadata contains processing information.
type DetectionMetadata struct {
	TraceID       string `json:"traceId"`
	FeatureMs     int64  `json:"featureMs"`
	RulesMs       int64  `json:"rulesMs"`
	ModelMs       int64  `json:"modelMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// Risk tier constants.
const (
	RiskHigh   = "HIGH"
	RiskMedium = "MEDIUM"
	RiskLow    = "LOW"
)

// Recommendation strings. The cutoffs behind these intentionally differ
// from the fraud and tier cutoffs; each band carries its own constant.
const (
	RecommendationBlock   = "BLOCK - High fraud risk detected. Manual review required."
	RecommendationReview  = "REVIEW - Moderate fraud risk. Additional verification recommended."
	RecommendationMonitor = "MONITOR - Low-moderate risk. Continue monitoring."
	RecommendationApprove = "APPROVE - Low fraud risk. Transaction appears legitimate."
)

// Alert is raised for MEDIUM and HIGH risk detections. Alerts are
// persisted and published on the event bus for downstream case tooling.
type Alert struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	TxID        string    `json:"txId"`
	DetectionID string    `json:"detectionId"`
	RiskLevel   string    `json:"riskLevel"`
	Score       float64   `json:"score"`
	Reasons     []string  `json:"reasons,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BatchSummary aggregates a batch detection call.
type BatchSummary struct {
	Total        int `json:"total"`
	FraudCount   int `json:"fraud_count"`
	HighCount    int `json:"high_count"`
	MediumCount  int `json:"medium_count"`
	DegradedRows int `json:"degraded_rows,omitempty"`
}
