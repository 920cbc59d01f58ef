package rules

import (
	"sync"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// ScenarioEngine aggregates overlay rule results into named fraud
// patterns. It calculates weighted scores from individual rule results.
type ScenarioEngine struct {
	mu        sync.RWMutex
	scenarios map[string]*domain.Scenario // key: scenarioID
}

// NewScenarioEngine creates a new scenario evaluation engine.
func NewScenarioEngine() *ScenarioEngine {
	return &ScenarioEngine{
		scenarios: make(map[string]*domain.Scenario),
	}
}

// LoadScenarios loads scenario configurations into the engine.
func (e *ScenarioEngine) LoadScenarios(scenarios []*domain.Scenario) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scenarios = make(map[string]*domain.Scenario)
	for _, s := range scenarios {
		if s.Enabled {
			e.scenarios[s.ID] = s
		}
	}
}

// ReloadScenarios clears and reloads scenarios (hot reload).
func (e *ScenarioEngine) ReloadScenarios(scenarios []*domain.Scenario) {
	e.LoadScenarios(scenarios)
}

// GetLoadedScenarios returns currently loaded scenarios.
func (e *ScenarioEngine) GetLoadedScenarios() []*domain.Scenario {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*domain.Scenario, 0, len(e.scenarios))
	for _, s := range e.scenarios {
		result = append(result, s)
	}
	return result
}

// ScenarioCount returns the number of loaded scenarios.
func (e *ScenarioEngine) ScenarioCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.scenarios)
}

// EvaluateScenarios calculates scenario scores from rule results.
//
// Algorithm:
// 1. Build a map of ruleID -> score from rule results
// 2. For each scenario, sum (rule_score * weight) for matching rules
// 3. Compare against alert threshold
// 4. Return matched scenarios
func (e *ScenarioEngine) EvaluateScenarios(ruleResults []domain.RuleResult) []domain.ScenarioResult {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.scenarios) == 0 {
		return nil
	}

	// Build rule score map for O(1) lookups
	ruleScores := make(map[string]float64, len(ruleResults))
	for _, r := range ruleResults {
		ruleScores[r.RuleID] = r.Score
	}

	results := make([]domain.ScenarioResult, 0, len(e.scenarios))

	for _, scenario := range e.scenarios {
		result := e.evaluateScenario(scenario, ruleScores)
		result.ProcessMs = time.Since(start).Milliseconds()
		results = append(results, result)
	}

	return results
}

// evaluateScenario calculates the score for a single scenario.
func (e *ScenarioEngine) evaluateScenario(scenario *domain.Scenario, ruleScores map[string]float64) domain.ScenarioResult {
	result := domain.ScenarioResult{
		ScenarioID:    scenario.ID,
		ScenarioName:  scenario.Name,
		Threshold:     scenario.AlertThreshold,
		Contributions: make([]domain.RuleContribution, 0, len(scenario.Rules)),
	}

	var totalScore float64

	for _, ruleWeight := range scenario.Rules {
		ruleScore, exists := ruleScores[ruleWeight.RuleID]
		if !exists {
			// Rule not evaluated - skip
			continue
		}

		contribution := ruleScore * ruleWeight.Weight
		totalScore += contribution

		result.Contributions = append(result.Contributions, domain.RuleContribution{
			RuleID:       ruleWeight.RuleID,
			RuleScore:    ruleScore,
			Weight:       ruleWeight.Weight,
			Contribution: contribution,
		})
	}

	result.Score = totalScore
	result.Matched = totalScore >= scenario.AlertThreshold

	return result
}

// EvaluateScenario evaluates a single scenario by ID.
func (e *ScenarioEngine) EvaluateScenario(scenarioID string, ruleResults []domain.RuleResult) (*domain.ScenarioResult, bool) {
	e.mu.RLock()
	scenario, exists := e.scenarios[scenarioID]
	if !exists {
		e.mu.RUnlock()
		return nil, false
	}

	// Build rule score map while holding lock
	ruleScores := make(map[string]float64, len(ruleResults))
	for _, r := range ruleResults {
		ruleScores[r.RuleID] = r.Score
	}

	// Evaluate while holding lock to prevent data race on scenario pointer
	result := e.evaluateScenario(scenario, ruleScores)
	e.mu.RUnlock()

	return &result, true
}

// GetMatchedScenarios returns only scenarios that exceeded their threshold.
func (e *ScenarioEngine) GetMatchedScenarios(ruleResults []domain.RuleResult) []domain.ScenarioResult {
	all := e.EvaluateScenarios(ruleResults)
	matched := make([]domain.ScenarioResult, 0)
	for _, s := range all {
		if s.Matched {
			matched = append(matched, s)
		}
	}
	return matched
}

// Close cleans up the engine.
func (e *ScenarioEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenarios = make(map[string]*domain.Scenario)
	return nil
}
