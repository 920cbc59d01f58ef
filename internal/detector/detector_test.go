package detector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/feature"
)

// stubClassifier returns a fixed probability, or an error when broken.
type stubClassifier struct {
	p        float64
	features []string
	broken   bool
}

func (s *stubClassifier) PredictProbability([]float64) (float64, error) {
	if s.broken {
		return 0, errors.New("prediction failed")
	}
	return s.p, nil
}

func (s *stubClassifier) FeatureNames() []string { return s.features }

func fitState(t *testing.T) *feature.State {
	t.Helper()

	records := []*domain.Transaction{
		{ID: "h1", Amount: 1200, Currency: "INR", Date: "2025-06-09", Time: "10:15:00", Location: "Mumbai", CardType: "Visa", Status: "Successful", AuthMethod: "PIN", Category: "POS", PrevTxCount: domain.Float(5), DistanceKm: domain.Float(3), MinutesSinceLast: domain.Float(45), Velocity: domain.Float(2)},
		{ID: "h2", Amount: 800, Currency: "INR", Date: "2025-06-09", Time: "12:30:00", Location: "Delhi", CardType: "Mastercard", Status: "Successful", AuthMethod: "Biometric", Category: "Online", PrevTxCount: domain.Float(8), DistanceKm: domain.Float(12), MinutesSinceLast: domain.Float(120), Velocity: domain.Float(1)},
		{ID: "h3", Amount: 50000, Currency: "INR", Date: "2025-06-10", Time: "18:45:00", Location: "Mumbai", CardType: "Visa", Status: "Successful", AuthMethod: "OTP", Category: "ATM", PrevTxCount: domain.Float(12), DistanceKm: domain.Float(6), MinutesSinceLast: domain.Float(30), Velocity: domain.Float(3)},
		{ID: "h4", Amount: 300, Currency: "INR", Date: "2025-06-10", Time: "09:05:00", Location: "Bangalore", CardType: "Rupay", Status: "Successful", AuthMethod: "PIN", Category: "POS", PrevTxCount: domain.Float(2), DistanceKm: domain.Float(1), MinutesSinceLast: domain.Float(400), Velocity: domain.Float(1)},
		{ID: "h5", Amount: 9500, Currency: "INR", Date: "2025-06-11", Time: "21:10:00", Location: "Delhi", CardType: "Visa", Status: "Successful", AuthMethod: "Biometric", Category: "Online", PrevTxCount: domain.Float(20), DistanceKm: domain.Float(25), MinutesSinceLast: domain.Float(15), Velocity: domain.Float(4)},
	}

	state, err := feature.Fit(records)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return state
}

func benignTx() *domain.Transaction {
	return &domain.Transaction{
		ID:               "tx-benign",
		Amount:           1500,
		Currency:         "INR",
		Date:             "2025-06-11", // Wednesday
		Time:             "14:30:00",
		Location:         "Mumbai",
		CardType:         "Visa",
		Status:           "Successful",
		AuthMethod:       "PIN",
		Category:         "POS",
		PrevTxCount:      domain.Float(6),
		DistanceKm:       domain.Float(4),
		MinutesSinceLast: domain.Float(60),
		Velocity:         domain.Float(2),
	}
}

func TestNewEngineRequiresFittedState(t *testing.T) {
	if _, err := NewEngine(nil, nil); !errors.Is(err, domain.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained for nil state, got %v", err)
	}
	if _, err := NewEngine(&feature.State{}, nil); !errors.Is(err, domain.ErrNotTrained) {
		t.Errorf("expected ErrNotTrained for unfitted state, got %v", err)
	}
}

func TestSchemaMismatchFailsLoudly(t *testing.T) {
	state := fitState(t)

	wrongCount := &stubClassifier{p: 0.5, features: []string{"a", "b"}}
	if _, err := NewEngine(state, wrongCount); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch for wrong feature count, got %v", err)
	}

	shuffled := append([]string(nil), state.FeatureNames()...)
	shuffled[0], shuffled[1] = shuffled[1], shuffled[0]
	wrongOrder := &stubClassifier{p: 0.5, features: shuffled}
	if _, err := NewEngine(state, wrongOrder); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch for wrong feature order, got %v", err)
	}

	engine, err := NewEngine(state, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := engine.SetClassifier(wrongCount); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch from SetClassifier, got %v", err)
	}
	if engine.Ready() {
		t.Error("rejected classifier must not make the engine ready")
	}
}

func TestDetectBenign(t *testing.T) {
	state := fitState(t)
	classifier := &stubClassifier{p: 0.1, features: state.FeatureNames()}
	engine, err := NewEngine(state, classifier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	det, err := engine.Detect(context.Background(), &Input{
		TenantID: "tenant-001",
		TraceID:  "trace-001",
		Tx:       benignTx(),
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if det.RuleScore != 0 {
		t.Errorf("expected rule score 0, got %v", det.RuleScore)
	}
	if det.ModelScore != 0.1 {
		t.Errorf("expected model score 0.1, got %v", det.ModelScore)
	}
	// 0.7*0.1 + 0.3*0 = 0.07
	if math.Abs(det.CombinedScore-0.07) > 1e-9 {
		t.Errorf("expected combined 0.07, got %v", det.CombinedScore)
	}
	if det.IsFraud {
		t.Error("expected not fraud")
	}
	if det.RiskLevel != domain.RiskLow {
		t.Errorf("expected LOW, got %s", det.RiskLevel)
	}
	if det.Recommendation != domain.RecommendationApprove {
		t.Errorf("expected approve recommendation, got %q", det.Recommendation)
	}
	if det.Degraded {
		t.Error("expected non-degraded with working classifier")
	}
	if len(det.TriggeredRules) != 0 {
		t.Errorf("expected no triggered rules, got %v", det.TriggeredRules)
	}
	if det.TenantID != "tenant-001" || det.Metadata.TraceID != "trace-001" {
		t.Error("tenant or trace ID not propagated")
	}
}

func TestDetectAllRulesClamped(t *testing.T) {
	state := fitState(t)
	classifier := &stubClassifier{p: 0.9, features: state.FeatureNames()}
	engine, err := NewEngine(state, classifier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	tx := benignTx()
	tx.ID = "tx-hot"
	tx.Amount = 80_000_000
	tx.Date = "2025-06-14" // Saturday
	tx.Time = "23:30:00"
	tx.AuthMethod = "Failed"
	tx.Status = "Failed"
	tx.Velocity = domain.Float(15)
	tx.DistanceKm = domain.Float(750)
	tx.MinutesSinceLast = domain.Float(0.5)

	det, err := engine.Detect(context.Background(), &Input{TenantID: "tenant-001", Tx: tx})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// 1.40 * 1.2 clamps to 1.0
	if det.RuleScore != 1.0 {
		t.Errorf("expected clamped rule score 1.0, got %v", det.RuleScore)
	}
	// 0.7*0.9 + 0.3*1.0 = 0.93
	if math.Abs(det.CombinedScore-0.93) > 1e-9 {
		t.Errorf("expected combined 0.93, got %v", det.CombinedScore)
	}
	if !det.IsFraud {
		t.Error("expected fraud")
	}
	if det.RiskLevel != domain.RiskHigh {
		t.Errorf("expected HIGH, got %s", det.RiskLevel)
	}
	if det.Recommendation != domain.RecommendationBlock {
		t.Errorf("expected block recommendation, got %q", det.Recommendation)
	}
	if len(det.TriggeredRules) != 7 {
		t.Errorf("expected 7 labels (6 rules + weekend), got %v", det.TriggeredRules)
	}

	// The amount is a statistical outlier against the training set
	found := false
	for _, label := range det.AdvisoryLabels {
		if label == AnomalyLabel {
			found = true
		}
	}
	if !found {
		t.Errorf("expected anomaly label, got %v", det.AdvisoryLabels)
	}
}

func TestDetectWeekendMultiplier(t *testing.T) {
	state := fitState(t)
	classifier := &stubClassifier{p: 0.1, features: state.FeatureNames()}
	engine, err := NewEngine(state, classifier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	tx := benignTx()
	tx.Amount = 80_000_000
	tx.Date = "2025-06-14" // Saturday

	det, err := engine.Detect(context.Background(), &Input{TenantID: "tenant-001", Tx: tx})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	// 0.30 * 1.2 = 0.36
	if det.RuleScore < 0.3599 || det.RuleScore > 0.3601 {
		t.Errorf("expected rule score 0.36, got %v", det.RuleScore)
	}
	if len(det.TriggeredRules) != 2 {
		t.Errorf("expected high-amount and weekend labels, got %v", det.TriggeredRules)
	}
}

func TestDetectDegraded(t *testing.T) {
	state := fitState(t)
	engine, err := NewEngine(state, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if engine.Ready() {
		t.Error("expected not ready with no classifier")
	}

	det, err := engine.Detect(context.Background(), &Input{TenantID: "tenant-001", Tx: benignTx()})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if !det.Degraded {
		t.Error("expected degraded flag")
	}
	if det.ModelScore != DegradedModelScore {
		t.Errorf("expected neutral model score %v, got %v", DegradedModelScore, det.ModelScore)
	}
	// 0.7*0.5 + 0.3*0 = 0.35
	if math.Abs(det.CombinedScore-0.35) > 1e-9 {
		t.Errorf("expected combined 0.35, got %v", det.CombinedScore)
	}
	if det.RiskLevel != domain.RiskLow {
		t.Errorf("expected LOW, got %s", det.RiskLevel)
	}
}

func TestDetectDegradedOnPredictionFailure(t *testing.T) {
	state := fitState(t)
	classifier := &stubClassifier{broken: true, features: state.FeatureNames()}
	engine, err := NewEngine(state, classifier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	det, err := engine.Detect(context.Background(), &Input{TenantID: "tenant-001", Tx: benignTx()})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if !det.Degraded {
		t.Error("expected degraded flag when the classifier errors")
	}
	if det.ModelScore != DegradedModelScore {
		t.Errorf("expected neutral model score, got %v", det.ModelScore)
	}
}

func TestDetectValidation(t *testing.T) {
	state := fitState(t)
	engine, err := NewEngine(state, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if _, err := engine.Detect(context.Background(), &Input{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil tx, got %v", err)
	}

	bad := benignTx()
	bad.Date = "11-06-2025"
	if _, err := engine.Detect(context.Background(), &Input{Tx: bad}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a malformed date, got %v", err)
	}

	neg := benignTx()
	neg.Amount = -5
	if _, err := engine.Detect(context.Background(), &Input{Tx: neg}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative amount, got %v", err)
	}
}

func TestDetectMissingTimestampImputed(t *testing.T) {
	state := fitState(t)
	classifier := &stubClassifier{p: 0.1, features: state.FeatureNames()}
	engine, err := NewEngine(state, classifier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	tx := benignTx()
	tx.Date = ""
	tx.Time = ""

	det, err := engine.Detect(context.Background(), &Input{TenantID: "tenant-001", Tx: tx})
	if err != nil {
		t.Fatalf("Detect without date/time must impute, got %v", err)
	}

	var gotDate, gotTime bool
	for _, f := range det.ImputedFields {
		switch f {
		case "Transaction_Date":
			gotDate = true
		case "Transaction_Time":
			gotTime = true
		}
	}
	if !gotDate || !gotTime {
		t.Errorf("expected Transaction_Date and Transaction_Time in imputed fields, got %v", det.ImputedFields)
	}

	// Imputed mode time is 09:05, daytime on a weekday: no rules fire
	if det.RuleScore != 0 {
		t.Errorf("expected rule score 0 on imputed timestamp, got %v", det.RuleScore)
	}
	if det.IsFraud {
		t.Error("expected benign result with imputed timestamp")
	}
}

func TestDetectDeterministic(t *testing.T) {
	state := fitState(t)
	classifier := &stubClassifier{p: 0.42, features: state.FeatureNames()}
	engine, err := NewEngine(state, classifier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	first, err := engine.Detect(context.Background(), &Input{TenantID: "t", Tx: benignTx()})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		det, err := engine.Detect(context.Background(), &Input{TenantID: "t", Tx: benignTx()})
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if det.CombinedScore != first.CombinedScore || det.RuleScore != first.RuleScore ||
			det.RiskLevel != first.RiskLevel || det.Recommendation != first.Recommendation {
			t.Fatalf("detection changed on iteration %d", i)
		}
	}
}

func TestDetectBatchMatchesSingle(t *testing.T) {
	state := fitState(t)
	classifier := &stubClassifier{p: 0.5, features: state.FeatureNames()}
	engine, err := NewEngine(state, classifier)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	good := benignTx()
	hot := benignTx()
	hot.ID = "tx-hot"
	hot.AuthMethod = "Failed"
	bad := benignTx()
	bad.ID = "tx-bad"
	bad.Date = "not-a-date"

	items, summary := engine.DetectBatch(context.Background(), "tenant-001", "trace-1",
		[]*domain.Transaction{good, hot, bad})

	if summary.Total != 3 {
		t.Errorf("expected total 3, got %d", summary.Total)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if items[0].Result == nil || items[1].Result == nil {
		t.Fatal("expected results for valid rows")
	}
	if items[2].Error == "" {
		t.Error("expected error for invalid row")
	}
	if items[2].Result != nil {
		t.Error("invalid row must not carry a result")
	}

	// Each batch row equals what Detect returns alone
	single, err := engine.Detect(context.Background(), &Input{TenantID: "tenant-001", TraceID: "trace-1", Tx: benignTx()})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if items[0].Result.CombinedScore != single.CombinedScore {
		t.Errorf("batch row score %v differs from single %v",
			items[0].Result.CombinedScore, single.CombinedScore)
	}

	if items[1].Result.RiskLevel != domain.RiskMedium {
		t.Errorf("expected MEDIUM for failed-auth row, got %s", items[1].Result.RiskLevel)
	}
	if summary.MediumCount != 1 {
		t.Errorf("expected 1 medium row, got %d", summary.MediumCount)
	}
}

func TestShouldAlertAndBuildAlert(t *testing.T) {
	low := &domain.DetectionResult{RiskLevel: domain.RiskLow}
	if ShouldAlert(low) {
		t.Error("LOW must not alert")
	}

	for _, level := range []string{domain.RiskMedium, domain.RiskHigh} {
		det := &domain.DetectionResult{
			ID:             "det-1",
			TenantID:       "tenant-001",
			TxID:           "tx-1",
			RiskLevel:      level,
			CombinedScore:  0.8,
			TriggeredRules: []string{"Failed authentication"},
		}
		if !ShouldAlert(det) {
			t.Errorf("%s must alert", level)
		}

		alert := BuildAlert(det)
		if alert.ID == "" {
			t.Error("expected alert id")
		}
		if alert.TxID != "tx-1" || alert.DetectionID != "det-1" || alert.TenantID != "tenant-001" {
			t.Errorf("alert identifiers wrong: %+v", alert)
		}
		if alert.Score != 0.8 || alert.RiskLevel != level {
			t.Errorf("alert score/level wrong: %+v", alert)
		}
		if len(alert.Reasons) != 1 {
			t.Errorf("expected triggered rules as reasons, got %v", alert.Reasons)
		}
	}
}

func TestSetClassifierRecovers(t *testing.T) {
	state := fitState(t)
	engine, err := NewEngine(state, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if err := engine.SetClassifier(&stubClassifier{p: 0.2, features: state.FeatureNames()}); err != nil {
		t.Fatalf("SetClassifier failed: %v", err)
	}
	if !engine.Ready() {
		t.Error("expected ready after classifier hot-swap")
	}

	det, err := engine.Detect(context.Background(), &Input{TenantID: "t", Tx: benignTx()})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if det.Degraded {
		t.Error("expected non-degraded after hot-swap")
	}
	if det.ModelScore != 0.2 {
		t.Errorf("expected model score 0.2, got %v", det.ModelScore)
	}
}

func TestBaselineAnomaly(t *testing.T) {
	b := NewBaseline([]float64{100, 200, 300, 400, 500})

	if b.IsAnomalous(300) {
		t.Error("median value must not be anomalous")
	}
	if !b.IsAnomalous(5000) {
		t.Error("expected far outlier to be anomalous")
	}

	empty := NewBaseline(nil)
	if empty.IsAnomalous(1000) {
		t.Error("empty baseline must never flag")
	}
}
