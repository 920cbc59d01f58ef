package repository

// Schema definitions for Talon database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    entity_id TEXT,
    amount REAL NOT NULL,
    currency TEXT,
    tx_date TEXT NOT NULL,
    tx_time TEXT NOT NULL,
    location TEXT,
    card_type TEXT,
    status TEXT,
    auth_method TEXT,
    category TEXT,
    prev_tx_count REAL,
    distance_km REAL,
    minutes_since_last REAL,
    velocity REAL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_entity ON transactions(tenant_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(tenant_id, created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

const schemaDetections = `
CREATE TABLE IF NOT EXISTS detections (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    is_fraud INTEGER NOT NULL,
    model_score REAL NOT NULL,
    rule_score REAL NOT NULL,
    combined_score REAL NOT NULL,
    risk_level TEXT NOT NULL,
    triggered_rules TEXT NOT NULL,
    advisory_labels TEXT,
    recommendation TEXT NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    imputed_fields TEXT,
    timestamp TIMESTAMP NOT NULL,
    processing_ms REAL NOT NULL DEFAULT 0,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_detections_tenant ON detections(tenant_id);
CREATE INDEX IF NOT EXISTS idx_detections_tx ON detections(tenant_id, tx_id);
CREATE INDEX IF NOT EXISTS idx_detections_level ON detections(tenant_id, risk_level);
CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(tenant_id, timestamp);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    detection_id TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    score REAL NOT NULL,
    reasons TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_tenant ON alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(tenant_id, created_at);
`

// schemaScenarios defines the scenarios table. Scenarios group overlay
// rules with weights into named advisory fraud patterns.
const schemaScenarios = `
CREATE TABLE IF NOT EXISTS scenarios (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    rules TEXT NOT NULL,
    alert_threshold REAL NOT NULL DEFAULT 0.6,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_scenarios_tenant ON scenarios(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scenarios_enabled ON scenarios(tenant_id, enabled);
CREATE INDEX IF NOT EXISTS idx_scenarios_name ON scenarios(tenant_id, name);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRuleConfigs,
		schemaDetections,
		schemaAlerts,
		schemaScenarios,
	}
}
