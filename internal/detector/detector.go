// Package detector blends the built-in rule table and the learned
// classifier into final fraud decisions.
package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/feature"
	"github.com/opensource-finance/talon/internal/rules"
)

// Score blending and decision cutoffs. The fraud, tier and
// recommendation cutoffs are deliberately independent knobs; analysts
// tune them against different review queues.
const (
	ModelWeight = 0.7
	RuleWeight  = 0.3

	FraudThreshold = 0.5

	TierHighThreshold   = 0.7
	TierMediumThreshold = 0.4

	RecommendBlockThreshold   = 0.7
	RecommendReviewThreshold  = 0.5
	RecommendMonitorThreshold = 0.3

	// DegradedModelScore is the neutral probability used when no
	// classifier is loaded.
	DegradedModelScore = 0.5

	EngineVersion = "talon-1.0"
)

// Engine produces detections from transactions. The transform state is
// immutable once set; the classifier can be hot-swapped, guarded by a
// schema-compatibility check.
type Engine struct {
	mu         sync.RWMutex
	state      *feature.State
	classifier domain.Classifier
	baseline   *Baseline
}

// NewEngine creates a detection engine. classifier may be nil, which
// puts the engine in degraded mode until SetClassifier succeeds.
func NewEngine(state *feature.State, classifier domain.Classifier) (*Engine, error) {
	if state == nil || !state.Fitted {
		return nil, domain.ErrNotTrained
	}
	if classifier != nil {
		if err := checkSchema(state, classifier); err != nil {
			return nil, err
		}
	}
	return &Engine{
		state:      state,
		classifier: classifier,
		baseline:   NewBaseline(state.SortedAmounts),
	}, nil
}

// checkSchema fails loudly when the classifier was trained against a
// different feature schema than the loaded state.
func checkSchema(state *feature.State, classifier domain.Classifier) error {
	want := state.FeatureNames()
	got := classifier.FeatureNames()
	if len(want) != len(got) {
		return fmt.Errorf("%w: state has %d features, classifier expects %d",
			domain.ErrSchemaMismatch, len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("%w: position %d is %q in state but %q in classifier",
				domain.ErrSchemaMismatch, i, want[i], got[i])
		}
	}
	return nil
}

// SetClassifier swaps in a new classifier after validating its schema.
func (e *Engine) SetClassifier(classifier domain.Classifier) error {
	if classifier != nil {
		if err := checkSchema(e.state, classifier); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.classifier = classifier
	e.mu.Unlock()
	return nil
}

// Ready reports whether the engine can produce non-degraded scores.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.classifier != nil
}

// State returns the transform state the engine scores with.
func (e *Engine) State() *feature.State { return e.state }

// Input carries one transaction through detection.
type Input struct {
	TenantID  string
	TraceID   string
	Tx        *domain.Transaction
	StartTime time.Time

	// AdvisoryLabels are overlay rule/scenario annotations computed
	// by the caller. They are attached verbatim.
	AdvisoryLabels []string
}

// Detect scores one transaction. Deterministic for a fixed engine:
// the same transaction always yields the same detection scores.
func (e *Engine) Detect(ctx context.Context, input *Input) (*domain.DetectionResult, error) {
	start := time.Now()
	if input.Tx == nil {
		return nil, fmt.Errorf("%w: transaction is required", domain.ErrInvalidInput)
	}
	if err := input.Tx.Validate(); err != nil {
		return nil, err
	}

	featStart := time.Now()
	vec, err := e.state.Transform(input.Tx)
	if err != nil {
		return nil, err
	}
	featureMs := time.Since(featStart).Milliseconds()

	rulesStart := time.Now()
	tableOut := rules.Evaluate(rules.Input{
		Amount:           vec.Resolved.Amount,
		Velocity:         vec.Resolved.Velocity,
		DistanceKm:       vec.Resolved.DistanceKm,
		MinutesSinceLast: vec.Resolved.MinutesSinceLast,
		Hour:             vec.Resolved.Hour,
		AuthMethod:       vec.Resolved.AuthMethod,
		Weekend:          vec.Resolved.Weekend,
	})
	rulesMs := time.Since(rulesStart).Milliseconds()

	modelStart := time.Now()
	modelScore, degraded := e.modelScore(vec.Values)
	modelMs := time.Since(modelStart).Milliseconds()

	combined := ModelWeight*modelScore + RuleWeight*tableOut.Score

	advisory := input.AdvisoryLabels
	if e.baseline.IsAnomalous(vec.Resolved.Amount) {
		advisory = append(advisory, AnomalyLabel)
	}

	startTime := input.StartTime
	if startTime.IsZero() {
		startTime = start
	}

	det := &domain.DetectionResult{
		ID:             uuid.New().String(),
		TenantID:       input.TenantID,
		TxID:           input.Tx.ID,
		IsFraud:        combined >= FraudThreshold,
		ModelScore:     modelScore,
		RuleScore:      tableOut.Score,
		CombinedScore:  combined,
		RiskLevel:      riskLevel(combined),
		TriggeredRules: tableOut.Labels,
		AdvisoryLabels: advisory,
		Recommendation: recommendation(combined),
		Degraded:       degraded,
		ImputedFields:  vec.Imputed,
		Timestamp:      time.Now().UTC(),
		Metadata: domain.DetectionMetadata{
			TraceID:       input.TraceID,
			FeatureMs:     featureMs,
			RulesMs:       rulesMs,
			ModelMs:       modelMs,
			TotalMs:       time.Since(startTime).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}
	det.ProcessingMs = float64(time.Since(startTime).Microseconds()) / 1000
	return det, nil
}

// modelScore returns the classifier probability, or the neutral
// fallback when no classifier is loaded or prediction fails.
func (e *Engine) modelScore(values []float64) (float64, bool) {
	e.mu.RLock()
	classifier := e.classifier
	e.mu.RUnlock()

	if classifier == nil {
		return DegradedModelScore, true
	}
	p, err := classifier.PredictProbability(values)
	if err != nil {
		return DegradedModelScore, true
	}
	return p, false
}

// BatchItem pairs one batch row with its result or failure.
type BatchItem struct {
	Index  int                     `json:"index"`
	Result *domain.DetectionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// DetectBatch scores records independently: a bad row never affects
// its neighbors, and each result equals what Detect would return for
// that row alone.
func (e *Engine) DetectBatch(ctx context.Context, tenantID, traceID string, txs []*domain.Transaction) ([]BatchItem, *domain.BatchSummary) {
	items := make([]BatchItem, len(txs))
	summary := &domain.BatchSummary{Total: len(txs)}

	for i, tx := range txs {
		items[i].Index = i
		det, err := e.Detect(ctx, &Input{TenantID: tenantID, TraceID: traceID, Tx: tx})
		if err != nil {
			items[i].Error = err.Error()
			continue
		}
		items[i].Result = det
		if det.IsFraud {
			summary.FraudCount++
		}
		switch det.RiskLevel {
		case domain.RiskHigh:
			summary.HighCount++
		case domain.RiskMedium:
			summary.MediumCount++
		}
		if det.Degraded {
			summary.DegradedRows++
		}
	}
	return items, summary
}

// riskLevel maps the combined score to a tier.
func riskLevel(score float64) string {
	switch {
	case score >= TierHighThreshold:
		return domain.RiskHigh
	case score >= TierMediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// recommendation maps the combined score to an action string.
func recommendation(score float64) string {
	switch {
	case score >= RecommendBlockThreshold:
		return domain.RecommendationBlock
	case score >= RecommendReviewThreshold:
		return domain.RecommendationReview
	case score >= RecommendMonitorThreshold:
		return domain.RecommendationMonitor
	default:
		return domain.RecommendationApprove
	}
}

// ShouldAlert returns true when a detection warrants an alert record.
func ShouldAlert(det *domain.DetectionResult) bool {
	return det.RiskLevel == domain.RiskHigh || det.RiskLevel == domain.RiskMedium
}

// BuildAlert constructs the alert record for a detection.
func BuildAlert(det *domain.DetectionResult) *domain.Alert {
	return &domain.Alert{
		ID:          uuid.New().String(),
		TenantID:    det.TenantID,
		TxID:        det.TxID,
		DetectionID: det.ID,
		RiskLevel:   det.RiskLevel,
		Score:       det.CombinedScore,
		Reasons:     det.TriggeredRules,
		CreatedAt:   time.Now().UTC(),
	}
}
