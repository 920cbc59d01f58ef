// Package worker provides async message processing for the Pro tier.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/detector"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/history"
	"github.com/opensource-finance/talon/internal/rules"
)

// Worker scores ingested transactions asynchronously from the EventBus.
type Worker struct {
	events    domain.EventBus
	repo      domain.Repository
	engine    *detector.Engine
	history   *history.Service
	overlay   *rules.Engine
	scenarios *rules.ScenarioEngine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker. The overlay and scenario engines
// are optional; when present their labels annotate detection results.
func NewWorker(events domain.EventBus, repo domain.Repository, engine *detector.Engine, hist *history.Service, overlay *rules.Engine, scenarios *rules.ScenarioEngine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		events:    events,
		repo:      repo,
		engine:    engine,
		history:   hist,
		overlay:   overlay,
		scenarios: scenarios,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.events.Subscribe(w.ctx, "_global", domain.TopicTransactionIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.events.Subscribe(w.ctx, tenantID, domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.scoreTransaction(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicTransactionIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.scoreTransaction(ctx, msg.TenantID, msg)
}

// scoreTransaction runs one message through the detection pipeline.
func (w *Worker) scoreTransaction(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	env, err := bus.DecodeTransaction(msg)
	if err != nil {
		slog.Error("failed to parse transaction envelope",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Envelope tenant wins over subscription tenant
	if env.TenantID != "" {
		tenantID = env.TenantID
	}

	slog.Debug("scoring transaction",
		"tx_id", env.Tx.ID,
		"tenant_id", tenantID,
		"trace_id", env.TraceID,
	)

	// 1. Fill missing history attributes from cached profiles
	if w.history != nil {
		w.history.Enrich(ctx, tenantID, env.Tx)
	}

	// 2. Overlay rules and scenarios produce advisory labels only
	var advisory []string
	if w.overlay != nil && w.overlay.RulesCount() > 0 {
		ruleResults, err := w.overlay.EvaluateAll(ctx, rules.NewEvaluateInput(tenantID, env.Tx))
		if err != nil {
			slog.Warn("overlay rule evaluation failed",
				"tx_id", env.Tx.ID,
				"error", err,
			)
		} else {
			var scenarioResults []domain.ScenarioResult
			if w.scenarios != nil {
				scenarioResults = w.scenarios.EvaluateScenarios(ruleResults)
			}
			advisory = rules.AdvisoryLabels(ruleResults, scenarioResults)
		}
	}

	// 3. Score
	det, err := w.engine.Detect(ctx, &detector.Input{
		TenantID:       tenantID,
		TraceID:        env.TraceID,
		Tx:             env.Tx,
		StartTime:      start,
		AdvisoryLabels: advisory,
	})
	if err != nil {
		slog.Error("detection failed",
			"tx_id", env.Tx.ID,
			"error", err,
		)
		return err
	}

	// 4. Persist
	if w.repo != nil {
		if err := w.repo.SaveDetection(ctx, tenantID, det); err != nil {
			slog.Error("failed to save detection",
				"tx_id", env.Tx.ID,
				"error", err,
			)
		}
	}

	// 5. Publish result
	if err := bus.PublishDetection(ctx, w.events, tenantID, det); err != nil {
		slog.Error("failed to publish detection",
			"tx_id", env.Tx.ID,
			"error", err,
		)
	}

	// 6. Alert on elevated risk
	if detector.ShouldAlert(det) {
		alert := detector.BuildAlert(det)
		if w.repo != nil {
			if err := w.repo.SaveAlert(ctx, tenantID, alert); err != nil {
				slog.Error("failed to save alert",
					"tx_id", env.Tx.ID,
					"error", err,
				)
			}
		}
		if err := bus.PublishAlert(ctx, w.events, tenantID, alert); err != nil {
			slog.Error("failed to publish alert",
				"tx_id", env.Tx.ID,
				"error", err,
			)
		}
	}

	// 7. Update behavioral history
	if w.history != nil {
		if err := w.history.Observe(ctx, tenantID, env.Tx); err != nil {
			slog.Debug("history update failed",
				"tx_id", env.Tx.ID,
				"error", err,
			)
		}
	}

	slog.Info("transaction scored",
		"tx_id", env.Tx.ID,
		"tenant_id", tenantID,
		"risk_level", det.RiskLevel,
		"combined_score", det.CombinedScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
