package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/talon/internal/detector"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/history"
	"github.com/opensource-finance/talon/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *detector.Engine
	overlay   *rules.Engine
	scenarios *rules.ScenarioEngine
	history   *history.Service
	version   string

	startTime     time.Time
	totalRequests atomic.Int64
	fraudDetected atomic.Int64
	totalMicros   atomic.Int64
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *detector.Engine, overlay *rules.Engine, scenarios *rules.ScenarioEngine, hist *history.Service, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		overlay:   overlay,
		scenarios: scenarios,
		history:   hist,
		version:   version,
		startTime: time.Now(),
	}
}

// Detect handles POST /detect requests: it scores a single transaction
// synchronously and returns the full detection result.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.TenantID = tenantID
	tx.CreatedAt = time.Now().UTC()

	if err := tx.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Fill missing history attributes from cached entity profiles
	if h.history != nil {
		h.history.Enrich(ctx, tenantID, &tx)
	}

	// Overlay rules and scenarios annotate the result without
	// affecting the blended score
	advisory := h.advisoryLabels(ctx, tenantID, &tx)

	det, err := h.engine.Detect(ctx, &detector.Input{
		TenantID:       tenantID,
		TraceID:        traceID,
		Tx:             &tx,
		StartTime:      start,
		AdvisoryLabels: advisory,
	})
	if err != nil {
		slog.Error("detection failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "detection failed",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveTransaction(ctx, tenantID, &tx); err != nil {
			slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		}
		if err := h.repo.SaveDetection(ctx, tenantID, det); err != nil {
			slog.Error("failed to save detection", "detection_id", det.ID, "error", err)
		}
	}

	if detector.ShouldAlert(det) {
		alert := detector.BuildAlert(det)
		if h.repo != nil {
			if err := h.repo.SaveAlert(ctx, tenantID, alert); err != nil {
				slog.Error("failed to save alert", "tx_id", tx.ID, "error", err)
			}
		}
		if h.bus != nil {
			payload, _ := json.Marshal(alert)
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
				slog.Error("failed to publish alert", "tx_id", tx.ID, "error", err)
			}
		}
	}

	if h.history != nil {
		if err := h.history.Observe(ctx, tenantID, &tx); err != nil {
			slog.Debug("history update failed", "tx_id", tx.ID, "error", err)
		}
	}

	h.recordDetection(det, start)
	writeJSON(w, http.StatusOK, det)
}

// BatchRequest is the request body for POST /detect/batch.
type BatchRequest struct {
	Transactions []*domain.Transaction `json:"transactions"`
}

// BatchResponse is the response for POST /detect/batch.
type BatchResponse struct {
	Results []detector.BatchItem `json:"results"`
	Summary *domain.BatchSummary `json:"summary"`
}

// DetectBatch handles POST /detect/batch requests. Rows are scored
// independently; a bad row is reported in place, never aborts the batch.
func (h *Handler) DetectBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must not be empty",
		})
		return
	}

	for _, tx := range req.Transactions {
		if tx == nil {
			continue
		}
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		tx.TenantID = tenantID
		tx.CreatedAt = time.Now().UTC()
		if h.history != nil {
			h.history.Enrich(ctx, tenantID, tx)
		}
	}

	items, summary := h.engine.DetectBatch(ctx, tenantID, traceID, req.Transactions)

	for _, item := range items {
		if item.Result == nil {
			continue
		}
		if h.repo != nil {
			if err := h.repo.SaveDetection(ctx, tenantID, item.Result); err != nil {
				slog.Error("failed to save detection", "detection_id", item.Result.ID, "error", err)
			}
		}
		h.recordDetection(item.Result, start)
	}

	slog.Info("batch scored",
		"tenant_id", tenantID,
		"total", summary.Total,
		"fraud_count", summary.FraudCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, BatchResponse{
		Results: items,
		Summary: summary,
	})
}

// advisoryLabels runs overlay rules and scenarios for a transaction.
func (h *Handler) advisoryLabels(ctx context.Context, tenantID string, tx *domain.Transaction) []string {
	if h.overlay == nil || h.overlay.RulesCount() == 0 {
		return nil
	}
	ruleResults, err := h.overlay.EvaluateAll(ctx, rules.NewEvaluateInput(tenantID, tx))
	if err != nil {
		slog.Warn("overlay rule evaluation failed", "tx_id", tx.ID, "error", err)
		return nil
	}
	var scenarioResults []domain.ScenarioResult
	if h.scenarios != nil {
		scenarioResults = h.scenarios.EvaluateScenarios(ruleResults)
	}
	return rules.AdvisoryLabels(ruleResults, scenarioResults)
}

// recordDetection updates the service counters exposed by GET /metrics.
func (h *Handler) recordDetection(det *domain.DetectionResult, start time.Time) {
	h.totalRequests.Add(1)
	if det.IsFraud {
		h.fraudDetected.Add(1)
	}
	h.totalMicros.Add(time.Since(start).Microseconds())
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the detection engine can score traffic. A
// fitted transform is required; a missing classifier still reports
// ready because scoring degrades to the neutral model score.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil || h.engine.State() == nil || !h.engine.State().Fitted {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":  false,
			"reason": "feature transform not loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":    true,
		"degraded": !h.engine.Ready(),
	})
}

// Metrics returns service-level counters.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	total := h.totalRequests.Load()
	fraud := h.fraudDetected.Load()

	var fraudRate, avgMs float64
	if total > 0 {
		fraudRate = float64(fraud) / float64(total)
		avgMs = float64(h.totalMicros.Load()) / float64(total) / 1000.0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_requests":         total,
		"fraud_detected":         fraud,
		"fraud_rate":             fraudRate,
		"avg_processing_time_ms": avgMs,
		"uptime_seconds":         time.Since(h.startTime).Seconds(),
	})
}

// GetDetection retrieves a detection result by ID.
func (h *Handler) GetDetection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	detID := chi.URLParam(r, "id")

	if detID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "detection id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	det, err := h.repo.GetDetection(ctx, tenantID, detID)
	if err != nil {
		slog.Error("failed to get detection", "id", detID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "detection not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, det)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListAlerts returns recent alerts for the tenant.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	alerts, err := h.repo.ListAlerts(ctx, tenantID, since)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ListRules returns all loaded overlay rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.overlay.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.overlay.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an overlay rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Weight      float64           `json:"weight"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule creates a new overlay rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.overlay.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// ReloadRules reloads all overlay rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.overlay.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ============================================================================
// SCENARIO HANDLERS
// ============================================================================

// CreateScenarioRequest is the request body for creating a scenario.
type CreateScenarioRequest struct {
	ID             string                      `json:"id"`
	Name           string                      `json:"name"`
	Description    string                      `json:"description,omitempty"`
	Rules          []domain.ScenarioRuleWeight `json:"rules"`
	AlertThreshold float64                     `json:"alertThreshold"`
	Enabled        bool                        `json:"enabled"`
}

// ListScenarios returns all loaded scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	if h.scenarios == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "scenario engine not available",
		})
		return
	}

	scenarios := h.scenarios.GetLoadedScenarios()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": scenarios,
		"count":     len(scenarios),
		"source":    "database",
	})
}

// GetScenario retrieves a scenario by ID.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "id")

	if scenarioID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scenario id is required",
		})
		return
	}

	if h.scenarios == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "scenario engine not available",
		})
		return
	}

	for _, s := range h.scenarios.GetLoadedScenarios() {
		if s.ID == scenarioID {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "scenario not found",
	})
}

// CreateScenario creates a new scenario and saves it to the database.
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}

	if len(req.Rules) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one rule is required",
		})
		return
	}

	// Validate rules exist in engine and weights are valid
	loadedRules := h.overlay.GetLoadedRules()
	ruleIDSet := make(map[string]bool, len(loadedRules))
	for _, r := range loadedRules {
		ruleIDSet[r.ID] = true
	}

	var totalWeight float64
	for _, rule := range req.Rules {
		if rule.RuleID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "rule_id cannot be empty",
			})
			return
		}
		if !ruleIDSet[rule.RuleID] {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("rule_id '%s' does not exist in rule engine", rule.RuleID),
			})
			return
		}
		if rule.Weight < 0 || rule.Weight > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "rule weight must be between 0 and 1",
			})
			return
		}
		totalWeight += rule.Weight
	}

	// Warn if weights don't sum to approximately 1.0 (allow 0.01 tolerance)
	if totalWeight < 0.99 || totalWeight > 1.01 {
		slog.Warn("scenario weights do not sum to 1.0",
			"scenario_id", req.ID,
			"total_weight", totalWeight,
		)
	}

	// Threshold must be > 0 to avoid matching every transaction
	if req.AlertThreshold <= 0 || req.AlertThreshold > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alertThreshold must be between 0 (exclusive) and 1",
		})
		return
	}

	scenario := &domain.Scenario{
		ID:             req.ID,
		TenantID:       GlobalTenantID,
		Name:           req.Name,
		Description:    req.Description,
		Version:        "1.0.0",
		Rules:          req.Rules,
		AlertThreshold: req.AlertThreshold,
		Enabled:        req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveScenario(ctx, GlobalTenantID, scenario); err != nil {
			slog.Error("failed to save scenario", "id", scenario.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save scenario",
			})
			return
		}
	}

	slog.Info("scenario created", "id", scenario.ID, "name", scenario.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"scenario": scenario,
		"message":  "Scenario created. Call POST /scenarios/reload to apply changes.",
	})
}

// UpdateScenario updates an existing scenario.
func (h *Handler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scenarioID := chi.URLParam(r, "id")

	if scenarioID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scenario id is required",
		})
		return
	}

	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for _, rule := range req.Rules {
		if rule.RuleID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "rule_id cannot be empty",
			})
			return
		}
		if rule.Weight < 0 || rule.Weight > 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "rule weight must be between 0 and 1",
			})
			return
		}
	}

	scenario := &domain.Scenario{
		ID:             scenarioID,
		TenantID:       GlobalTenantID,
		Name:           req.Name,
		Description:    req.Description,
		Version:        "1.0.0",
		Rules:          req.Rules,
		AlertThreshold: req.AlertThreshold,
		Enabled:        req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveScenario(ctx, GlobalTenantID, scenario); err != nil {
			slog.Error("failed to update scenario", "id", scenarioID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to update scenario",
			})
			return
		}
	}

	slog.Info("scenario updated", "id", scenarioID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenario": scenario,
		"message":  "Scenario updated. Call POST /scenarios/reload to apply changes.",
	})
}

// DeleteScenario deletes a scenario and auto-reloads the engine.
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scenarioID := chi.URLParam(r, "id")

	if scenarioID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scenario id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteScenario(ctx, GlobalTenantID, scenarioID); err != nil {
			slog.Error("failed to delete scenario", "id", scenarioID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "scenario not found",
			})
			return
		}

		// Auto-reload scenario engine after delete
		if h.scenarios != nil {
			dbScenarios, err := h.repo.ListScenarios(ctx, GlobalTenantID)
			if err != nil {
				slog.Error("failed to reload scenarios after delete", "error", err)
			} else {
				h.scenarios.ReloadScenarios(dbScenarios)
				slog.Info("scenarios auto-reloaded after delete", "count", len(dbScenarios))
			}
		}
	}

	slog.Info("scenario deleted", "id", scenarioID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Scenario deleted and engine reloaded.",
	})
}

// ReloadScenarios reloads all scenarios from the database into the engine.
func (h *Handler) ReloadScenarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if h.scenarios == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "scenario engine not available",
		})
		return
	}

	dbScenarios, err := h.repo.ListScenarios(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list scenarios from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load scenarios from database",
		})
		return
	}

	h.scenarios.ReloadScenarios(dbScenarios)

	slog.Info("scenarios reloaded from database", "count", len(dbScenarios))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "scenarios reloaded successfully",
		"count":   len(dbScenarios),
	})
}
