// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Sentinels alias the domain errors so errors.Is matches either way.
var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, entity_id, amount, currency,
			tx_date, tx_time, location, card_type, status,
			auth_method, category, prev_tx_count, distance_km,
			minutes_since_last, velocity, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.EntityID, tx.Amount, tx.Currency,
		tx.Date, tx.Time, tx.Location, tx.CardType, tx.Status,
		tx.AuthMethod, tx.Category,
		nullable(tx.PrevTxCount), nullable(tx.DistanceKm),
		nullable(tx.MinutesSinceLast), nullable(tx.Velocity),
		tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, entity_id, amount, currency,
			   tx_date, tx_time, location, card_type, status,
			   auth_method, category, prev_tx_count, distance_km,
			   minutes_since_last, velocity, created_at
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// GetTransactionsByEntity retrieves transactions for an entity with tenant isolation.
func (r *SQLRepository) GetTransactionsByEntity(ctx context.Context, tenantID string, entityID string, since time.Time) ([]*domain.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, entity_id, amount, currency,
			   tx_date, tx_time, location, card_type, status,
			   auth_method, category, prev_tx_count, distance_km,
			   minutes_since_last, velocity, created_at
		FROM transactions
		WHERE tenant_id = ?
		  AND entity_id = ?
		  AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, entityID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var prevCount, distance, minutes, velocity sql.NullFloat64

	err := row.Scan(
		&tx.ID, &tx.TenantID, &tx.EntityID, &tx.Amount, &tx.Currency,
		&tx.Date, &tx.Time, &tx.Location, &tx.CardType, &tx.Status,
		&tx.AuthMethod, &tx.Category,
		&prevCount, &distance, &minutes, &velocity,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if prevCount.Valid {
		tx.PrevTxCount = domain.Float(prevCount.Float64)
	}
	if distance.Valid {
		tx.DistanceKm = domain.Float(distance.Float64)
	}
	if minutes.Valid {
		tx.MinutesSinceLast = domain.Float(minutes.Float64)
	}
	if velocity.Valid {
		tx.Velocity = domain.Float(velocity.Float64)
	}
	return &tx, nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// SaveDetection stores a detection result with tenant isolation.
func (r *SQLRepository) SaveDetection(ctx context.Context, tenantID string, det *domain.DetectionResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	triggered, _ := json.Marshal(det.TriggeredRules)
	advisory, _ := json.Marshal(det.AdvisoryLabels)
	imputed, _ := json.Marshal(det.ImputedFields)
	metadata, _ := json.Marshal(det.Metadata)

	query := `
		INSERT INTO detections (
			id, tenant_id, tx_id, is_fraud, model_score, rule_score,
			combined_score, risk_level, triggered_rules, advisory_labels,
			recommendation, degraded, imputed_fields, timestamp,
			processing_ms, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		det.ID, tenantID, det.TxID, boolToInt(det.IsFraud),
		det.ModelScore, det.RuleScore, det.CombinedScore, det.RiskLevel,
		string(triggered), string(advisory), det.Recommendation,
		boolToInt(det.Degraded), string(imputed), det.Timestamp,
		det.ProcessingMs, string(metadata),
	)
	return err
}

// GetDetection retrieves a detection by ID with tenant isolation.
func (r *SQLRepository) GetDetection(ctx context.Context, tenantID string, detID string) (*domain.DetectionResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, tx_id, is_fraud, model_score, rule_score,
			   combined_score, risk_level, triggered_rules, advisory_labels,
			   recommendation, degraded, imputed_fields, timestamp,
			   processing_ms, metadata
		FROM detections
		WHERE tenant_id = ? AND id = ?
	`

	var det domain.DetectionResult
	var isFraud, degraded int
	var triggered, advisory, imputed, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, detID).Scan(
		&det.ID, &det.TenantID, &det.TxID, &isFraud,
		&det.ModelScore, &det.RuleScore, &det.CombinedScore, &det.RiskLevel,
		&triggered, &advisory, &det.Recommendation, &degraded,
		&imputed, &det.Timestamp, &det.ProcessingMs, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	det.IsFraud = isFraud == 1
	det.Degraded = degraded == 1
	json.Unmarshal([]byte(triggered), &det.TriggeredRules)
	json.Unmarshal([]byte(advisory), &det.AdvisoryLabels)
	json.Unmarshal([]byte(imputed), &det.ImputedFields)
	json.Unmarshal([]byte(metadata), &det.Metadata)

	return &det, nil
}

// SaveAlert stores an alert with tenant isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, tenantID string, alert *domain.Alert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(alert.Reasons)

	query := `
		INSERT INTO alerts (
			id, tenant_id, tx_id, detection_id, risk_level, score, reasons, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.TxID, alert.DetectionID,
		alert.RiskLevel, alert.Score, string(reasons), alert.CreatedAt,
	)
	return err
}

// ListAlerts retrieves alerts created at or after since.
func (r *SQLRepository) ListAlerts(ctx context.Context, tenantID string, since time.Time) ([]*domain.Alert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, tx_id, detection_id, risk_level, score, reasons, created_at
		FROM alerts
		WHERE tenant_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var reasons string
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.TxID, &a.DetectionID,
			&a.RiskLevel, &a.Score, &reasons, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(reasons), &a.Reasons)
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// SaveRuleConfig stores a rule configuration with tenant isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, name, description, version, expression, bands, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), rule.Weight, enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves a rule configuration with tenant isolation.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)

	return &cfg, nil
}

// ListRuleConfigs retrieves all active rule configurations for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveScenario stores a scenario configuration with tenant isolation.
func (r *SQLRepository) SaveScenario(ctx context.Context, tenantID string, scenario *domain.Scenario) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	rules, _ := json.Marshal(scenario.Rules)

	enabled := 0
	if scenario.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO scenarios (
			id, tenant_id, name, description, version, rules, alert_threshold, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			rules = excluded.rules,
			alert_threshold = excluded.alert_threshold,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		scenario.ID, tenantID, scenario.Name, scenario.Description,
		scenario.Version, string(rules), scenario.AlertThreshold, enabled,
		now, now,
	)
	return err
}

// GetScenario retrieves a scenario configuration with tenant isolation.
func (r *SQLRepository) GetScenario(ctx context.Context, tenantID string, scenarioID string) (*domain.Scenario, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, rules, alert_threshold, enabled, created_at, updated_at
		FROM scenarios
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var s domain.Scenario
	var rules string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, scenarioID).Scan(
		&s.ID, &s.TenantID, &s.Name, &s.Description,
		&s.Version, &rules, &s.AlertThreshold, &enabled,
		&s.CreatedAt, &s.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(rules), &s.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse scenario rules: %w", err)
	}

	return &s, nil
}

// ListScenarios retrieves all active scenario configurations for a tenant.
func (r *SQLRepository) ListScenarios(ctx context.Context, tenantID string) ([]*domain.Scenario, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, rules, alert_threshold, enabled, created_at, updated_at
		FROM scenarios
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []*domain.Scenario
	for rows.Next() {
		var s domain.Scenario
		var rules string
		var enabled int

		if err := rows.Scan(
			&s.ID, &s.TenantID, &s.Name, &s.Description,
			&s.Version, &rules, &s.AlertThreshold, &enabled,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}

		s.Enabled = enabled == 1
		if err := json.Unmarshal([]byte(rules), &s.Rules); err != nil {
			return nil, fmt.Errorf("failed to parse scenario rules for %s: %w", s.ID, err)
		}
		scenarios = append(scenarios, &s)
	}

	return scenarios, rows.Err()
}

// DeleteScenario soft-deletes a scenario by setting enabled = 0.
func (r *SQLRepository) DeleteScenario(ctx context.Context, tenantID string, scenarioID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE scenarios
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, scenarioID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
