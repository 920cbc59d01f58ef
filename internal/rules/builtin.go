package rules

import "github.com/opensource-finance/talon/internal/domain"

// BuiltinOverlayRules returns an empty slice - overlay rules must be
// configured via database. The built-in risk table in table.go is the
// only rule set that ships with the engine.
func BuiltinOverlayRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{}
}
