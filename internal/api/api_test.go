package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensource-finance/talon/internal/detector"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/feature"
	"github.com/opensource-finance/talon/internal/rules"
)

// testState fits a feature transform from a small synthetic history.
func testState(t *testing.T) *feature.State {
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

// createTestServer creates a server with a degraded-mode engine and a
// single overlay rule for testing.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	engine, err := detector.NewEngine(testState(t), nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	overlay, _ := rules.NewEngine(nil, 5)

	// A rule that only flags very high amounts so normal test
	// transactions stay unannotated
	testRule := &domain.RuleConfig{
		ID:         "test-rule-001",
		Name:       "High Value Test Rule",
		Expression: "amount > 100000.0",
		Weight:     1.0,
		Enabled:    true,
	}
	overlay.LoadRule(testRule)

	scenarios := rules.NewScenarioEngine()

	return NewServer(cfg, nil, nil, nil, engine, overlay, scenarios, nil, "test-v1")
}

func benignTransaction() map[string]any {
	return map[string]any{
		"Transaction_Amount":               1500.0,
		"Transaction_Currency":             "INR",
		"Transaction_Date":                 "2025-06-11",
		"Transaction_Time":                 "14:30:00",
		"Transaction_Location":             "Mumbai",
		"Card_Type":                        "Visa",
		"Transaction_Status":               "Successful",
		"Authentication_Method":            "PIN",
		"Transaction_Category":             "POS",
		"Previous_Transaction_Count":       6.0,
		"Distance_Between_Transactions_km": 4.0,
		"Time_Since_Last_Transaction_min":  60.0,
		"Transaction_Velocity":             2.0,
	}
}

func TestDetectEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulDetection", func(t *testing.T) {
		body, _ := json.Marshal(benignTransaction())
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var det domain.DetectionResult
		if err := json.Unmarshal(rr.Body.Bytes(), &det); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if det.ID == "" {
			t.Error("expected detection id in response")
		}
		if det.TxID == "" {
			t.Error("expected txID in response")
		}
		if !det.Degraded {
			t.Error("expected degraded flag with no classifier loaded")
		}
		if det.RiskLevel != domain.RiskLow {
			t.Errorf("expected LOW risk, got %s", det.RiskLevel)
		}
		if det.Recommendation == "" {
			t.Error("expected recommendation in response")
		}
		if det.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("FailedAuthElevatesRisk", func(t *testing.T) {
		tx := benignTransaction()
		tx["Authentication_Method"] = "Failed"
		tx["Time_Since_Last_Transaction_min"] = 0.5

		body, _ := json.Marshal(tx)
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var det domain.DetectionResult
		if err := json.Unmarshal(rr.Body.Bytes(), &det); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if det.RiskLevel != domain.RiskMedium {
			t.Errorf("expected MEDIUM risk, got %s", det.RiskLevel)
		}
		if len(det.TriggeredRules) == 0 {
			t.Error("expected triggered rules for failed authentication")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingDateImputed", func(t *testing.T) {
		tx := benignTransaction()
		delete(tx, "Transaction_Date")
		delete(tx, "Transaction_Time")

		body, _ := json.Marshal(tx)
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200 with imputed timestamp, got %d: %s", rr.Code, rr.Body.String())
		}

		var det domain.DetectionResult
		if err := json.Unmarshal(rr.Body.Bytes(), &det); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		var gotDate bool
		for _, f := range det.ImputedFields {
			if f == "Transaction_Date" {
				gotDate = true
			}
		}
		if !gotDate {
			t.Errorf("expected Transaction_Date in imputed fields, got %v", det.ImputedFields)
		}
	})

	t.Run("MalformedDate", func(t *testing.T) {
		tx := benignTransaction()
		tx["Transaction_Date"] = "11/06/2025"

		body, _ := json.Marshal(tx)
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for a malformed date, got %d", rr.Code)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		tx := benignTransaction()
		tx["Transaction_Amount"] = -100.0

		body, _ := json.Marshal(tx)
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		body, _ := json.Marshal(benignTransaction())
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestBatchEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("MixedBatch", func(t *testing.T) {
		good := benignTransaction()
		bad := benignTransaction()
		bad["Transaction_Date"] = "11/06/2025"

		body, _ := json.Marshal(map[string]any{
			"transactions": []map[string]any{good, bad},
		})
		req := httptest.NewRequest(http.MethodPost, "/detect/batch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp BatchResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.Summary == nil || resp.Summary.Total != 2 {
			t.Fatalf("expected summary total 2, got %+v", resp.Summary)
		}
		if len(resp.Results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(resp.Results))
		}
		if resp.Results[0].Result == nil {
			t.Error("expected a result for the valid row")
		}
		if resp.Results[1].Error == "" {
			t.Error("expected an error for the invalid row")
		}
		if resp.Summary.DegradedRows != 1 {
			t.Errorf("expected 1 degraded row, got %d", resp.Summary.DegradedRows)
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"transactions": []any{}})
		req := httptest.NewRequest(http.MethodPost, "/detect/batch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyDegraded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["ready"] != true {
			t.Error("expected ready true with fitted transform")
		}
		if resp["degraded"] != true {
			t.Error("expected degraded true with no classifier")
		}
	})

	t.Run("NotReadyWithoutTransform", func(t *testing.T) {
		cfg := domain.ServerConfig{Host: "localhost", Port: 8080}
		overlay, _ := rules.NewEngine(nil, 5)
		bare := NewServer(cfg, nil, nil, nil, nil, overlay, rules.NewScenarioEngine(), nil, "test-v1")

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		bare.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("MetricsCounters", func(t *testing.T) {
		// Score one transaction first
		body, _ := json.Marshal(benignTransaction())
		req := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")
		server.Router().ServeHTTP(httptest.NewRecorder(), req)

		mreq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, mreq)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)

		total, _ := resp["total_requests"].(float64)
		if total < 1 {
			t.Errorf("expected total_requests >= 1, got %v", resp["total_requests"])
		}
		if _, ok := resp["fraud_rate"]; !ok {
			t.Error("expected fraud_rate in metrics")
		}
		if _, ok := resp["avg_processing_time_ms"]; !ok {
			t.Error("expected avg_processing_time_ms in metrics")
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ListRules", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if count, _ := resp["count"].(float64); count != 1 {
			t.Errorf("expected 1 loaded rule, got %v", resp["count"])
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/test-rule-001", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("GetRuleNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/nonexistent", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateRule", func(t *testing.T) {
		body, _ := json.Marshal(CreateRuleRequest{
			ID:         "night-distance-001",
			Name:       "Night Distance",
			Expression: "(hour >= 22 || hour <= 6) && distance_km > 500.0",
			Weight:     1.0,
			Enabled:    true,
		})
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateRuleInvalidExpression", func(t *testing.T) {
		body, _ := json.Marshal(CreateRuleRequest{
			ID:         "bad-rule",
			Name:       "Bad Rule",
			Expression: "nonexistent_variable > )))",
			Weight:     1.0,
			Enabled:    true,
		})
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestScenarioEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateScenario", func(t *testing.T) {
		body, _ := json.Marshal(CreateScenarioRequest{
			ID:   "high-value-scenario",
			Name: "High Value",
			Rules: []domain.ScenarioRuleWeight{
				{RuleID: "test-rule-001", Weight: 1.0},
			},
			AlertThreshold: 0.5,
			Enabled:        true,
		})
		req := httptest.NewRequest(http.MethodPost, "/scenarios", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateScenarioUnknownRule", func(t *testing.T) {
		body, _ := json.Marshal(CreateScenarioRequest{
			ID:   "bad-scenario",
			Name: "Bad Scenario",
			Rules: []domain.ScenarioRuleWeight{
				{RuleID: "does-not-exist", Weight: 1.0},
			},
			AlertThreshold: 0.5,
			Enabled:        true,
		})
		req := httptest.NewRequest(http.MethodPost, "/scenarios", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateScenarioInvalidThreshold", func(t *testing.T) {
		body, _ := json.Marshal(CreateScenarioRequest{
			ID:   "zero-threshold",
			Name: "Zero Threshold",
			Rules: []domain.ScenarioRuleWeight{
				{RuleID: "test-rule-001", Weight: 1.0},
			},
			AlertThreshold: 0,
			Enabled:        true,
		})
		req := httptest.NewRequest(http.MethodPost, "/scenarios", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ListScenarios", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/scenarios", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("TenantMiddlewareRejectsMissingHeader", func(t *testing.T) {
		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not run without a tenant")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("LoggingMiddlewareCountsBytes", func(t *testing.T) {
		body := []byte(`{"is_fraud":false}`)

		handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(body)
		}))

		req := httptest.NewRequest(http.MethodGet, "/detections/tx-1", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got := rr.Body.Len(); got != len(body) {
			t.Errorf("expected %d bytes written through, got %d", len(body), got)
		}
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
		rw.Write(body)
		rw.Write(body)
		if rw.bytes != 2*len(body) {
			t.Errorf("expected %d bytes counted, got %d", 2*len(body), rw.bytes)
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
