// Package history provides behavioral history enrichment: velocity,
// recency and prior-count values for transactions that arrive without
// them.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Service derives history attributes from the repository and cached
// entity profiles. Supplied payload values always win; enrichment only
// fills gaps, and anything still missing falls through to fit-time
// imputation.
type Service struct {
	repo       domain.Repository
	cache      domain.Cache
	windowSecs int
}

// NewService creates a new history service.
func NewService(repo domain.Repository, cache domain.Cache, windowSecs int) *Service {
	if windowSecs <= 0 {
		windowSecs = 3600
	}
	return &Service{
		repo:       repo,
		cache:      cache,
		windowSecs: windowSecs,
	}
}

// GetTransactionCount returns the number of transactions for an entity within a time window.
// This is the VelocityGetter function signature expected by the rule engine.
func (s *Service) GetTransactionCount(ctx context.Context, tenantID, entityID string, windowSecs int) (int64, error) {
	if tenantID == "" || entityID == "" {
		return 0, fmt.Errorf("tenantID and entityID are required")
	}

	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	txs, err := s.repo.GetTransactionsByEntity(ctx, tenantID, entityID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to get transactions: %w", err)
	}
	return int64(len(txs)), nil
}

// GetVelocityGetter returns a VelocityGetter function for the rule engine.
func (s *Service) GetVelocityGetter() func(ctx context.Context, tenantID, entityID string, windowSecs int) (int64, error) {
	return s.GetTransactionCount
}

// Enrich fills absent history attributes in place and returns the
// names of the attributes it filled. Without an entity ID there is
// nothing to look up and the transaction is returned untouched.
func (s *Service) Enrich(ctx context.Context, tenantID string, tx *domain.Transaction) []string {
	if tx == nil || tx.EntityID == "" {
		return nil
	}

	var filled []string

	if tx.Velocity == nil {
		if count, err := s.GetTransactionCount(ctx, tenantID, tx.EntityID, s.windowSecs); err == nil {
			tx.Velocity = domain.Float(float64(count))
			filled = append(filled, "Transaction_Velocity")
		}
	}

	if s.cache == nil {
		return filled
	}
	profile, err := s.cache.GetProfile(ctx, tenantID, tx.EntityID)
	if err != nil || profile == nil {
		return filled
	}

	if tx.PrevTxCount == nil {
		tx.PrevTxCount = domain.Float(float64(profile.TxCount))
		filled = append(filled, "Previous_Transaction_Count")
	}
	if tx.MinutesSinceLast == nil && profile.LastSeen != "" {
		if last, err := time.Parse(time.RFC3339, profile.LastSeen); err == nil {
			if occurred, err := tx.Occurred(); err == nil && occurred.After(last) {
				tx.MinutesSinceLast = domain.Float(occurred.Sub(last).Minutes())
				filled = append(filled, "Time_Since_Last_Transaction_min")
			}
		}
	}
	// Same-location repeats cover the common case; cross-location
	// distance needs a geo source the profile does not carry.
	if tx.DistanceKm == nil && profile.LastLocation != "" && profile.LastLocation == tx.Location {
		tx.DistanceKm = domain.Float(0)
		filled = append(filled, "Distance_Between_Transactions_km")
	}

	return filled
}

// Observe records a scored transaction into the entity profile and the
// rolling velocity counter.
func (s *Service) Observe(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tx == nil || tx.EntityID == "" {
		return nil
	}

	occurred, err := tx.Occurred()
	if err != nil {
		occurred = time.Now().UTC()
	}

	if s.cache != nil {
		var count int64
		if prev, err := s.cache.GetProfile(ctx, tenantID, tx.EntityID); err == nil && prev != nil {
			count = prev.TxCount
		}
		profile := &domain.EntityProfile{
			EntityID:     tx.EntityID,
			TxCount:      count + 1,
			LastLocation: tx.Location,
			LastSeen:     occurred.Format(time.RFC3339),
			LastAmount:   tx.Amount,
		}
		if err := s.cache.SetProfile(ctx, tenantID, tx.EntityID, profile, 24*time.Hour); err != nil {
			return fmt.Errorf("update entity profile: %w", err)
		}

		window := time.Duration(s.windowSecs) * time.Second
		if _, err := s.cache.IncrementCounter(ctx, tenantID, "velocity:"+tx.EntityID, window); err != nil {
			return fmt.Errorf("increment velocity counter: %w", err)
		}
	}
	return nil
}
