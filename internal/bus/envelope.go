package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/talon/internal/domain"
)

// TransactionEnvelope is the payload carried on TopicTransactionIngested.
// TenantID and TraceID are optional on the wire; DecodeTransaction fills
// them from the bus message when absent.
type TransactionEnvelope struct {
	TenantID string              `json:"tenantId"`
	TraceID  string              `json:"traceId"`
	Tx       *domain.Transaction `json:"tx"`
}

// PublishTransaction enqueues a transaction for async scoring.
func PublishTransaction(ctx context.Context, b domain.EventBus, tenantID string, env *TransactionEnvelope) error {
	if env == nil || env.Tx == nil {
		return fmt.Errorf("%w: transaction envelope has no transaction", domain.ErrInvalidInput)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal transaction envelope: %w", err)
	}
	return b.Publish(ctx, tenantID, domain.TopicTransactionIngested, payload)
}

// DecodeTransaction unpacks an ingested-transaction message. A missing
// tenant falls back to the message tenant and a missing trace ID to the
// message ID, so every scoring run stays attributable.
func DecodeTransaction(msg *domain.Message) (*TransactionEnvelope, error) {
	var env TransactionEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, fmt.Errorf("decode transaction envelope: %w", err)
	}
	if env.Tx == nil {
		return nil, fmt.Errorf("%w: transaction envelope has no transaction", domain.ErrInvalidInput)
	}
	if env.TenantID == "" {
		env.TenantID = msg.TenantID
	}
	if env.TraceID == "" {
		env.TraceID = msg.ID
	}
	return &env, nil
}

// PublishDetection announces a completed detection on
// TopicDetectionCompleted.
func PublishDetection(ctx context.Context, b domain.EventBus, tenantID string, det *domain.DetectionResult) error {
	payload, err := json.Marshal(det)
	if err != nil {
		return fmt.Errorf("marshal detection result: %w", err)
	}
	return b.Publish(ctx, tenantID, domain.TopicDetectionCompleted, payload)
}

// SubscribeDetections delivers completed detections to fn.
func SubscribeDetections(ctx context.Context, b domain.EventBus, tenantID string, fn func(context.Context, *domain.DetectionResult) error) (domain.Subscription, error) {
	return b.Subscribe(ctx, tenantID, domain.TopicDetectionCompleted, func(ctx context.Context, msg *domain.Message) error {
		var det domain.DetectionResult
		if err := json.Unmarshal(msg.Payload, &det); err != nil {
			return fmt.Errorf("decode detection result: %w", err)
		}
		return fn(ctx, &det)
	})
}

// PublishAlert announces an elevated-risk detection on TopicAlert.
func PublishAlert(ctx context.Context, b domain.EventBus, tenantID string, alert *domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return b.Publish(ctx, tenantID, domain.TopicAlert, payload)
}

// SubscribeAlerts delivers alerts to fn.
func SubscribeAlerts(ctx context.Context, b domain.EventBus, tenantID string, fn func(context.Context, *domain.Alert) error) (domain.Subscription, error) {
	return b.Subscribe(ctx, tenantID, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		var alert domain.Alert
		if err := json.Unmarshal(msg.Payload, &alert); err != nil {
			return fmt.Errorf("decode alert: %w", err)
		}
		return fn(ctx, &alert)
	})
}
