// Package app provides the application services of the Butler automation
// core: the rule engine, the scheduler, the event router, and the butler
// service that coordinates them.
package app

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/greybell/butler/pkg/domain"
	ruledomain "github.com/greybell/butler/pkg/domain/rule"
	"github.com/greybell/butler/pkg/logger"
)

// ---------------------------------------------------------------------------
// Rule engine
// ---------------------------------------------------------------------------

// RuleEngine maintains the persisted, priority-ordered rule set and matches
// incoming events against it. Matching is pure: the engine produces ordered
// action copies and never performs side effects itself.
type RuleEngine struct {
	repo  ruledomain.Repository
	rules []*ruledomain.TriggerRule
	mu    sync.RWMutex
	log   *slog.Logger
}

// NewRuleEngine creates a rule engine over the given repository.
func NewRuleEngine(repo ruledomain.Repository) *RuleEngine {
	return &RuleEngine{
		repo: repo,
		log:  logger.L().With("component", "rule_engine"),
	}
}

// Load reads persisted rules into memory. A corrupt or unreadable store
// degrades to an empty rule set with a logged warning rather than
// preventing startup.
func (e *RuleEngine) Load() {
	rules, err := e.repo.LoadAll()
	if err != nil {
		e.log.Warn("failed to load rule store, starting with empty rule set", "error", err)
		rules = nil
	}

	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()

	e.log.Info("rules loaded", "count", len(rules))
}

// AddRule validates the rule, assigns an identity if absent, appends it to
// the set, and persists the whole list. The assigned rule ID is returned.
func (e *RuleEngine) AddRule(r *ruledomain.TriggerRule) (domain.EntityID, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if r.RuleID.IsZero() {
		r.RuleID = domain.NewID()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := append(append([]*ruledomain.TriggerRule(nil), e.rules...), r)
	if err := e.repo.SaveAll(next); err != nil {
		return "", err
	}
	e.rules = next

	e.log.Info("rule added", "rule_id", r.RuleID, "name", r.Name, "priority", r.Priority)
	return r.RuleID, nil
}

// RemoveRule removes a rule by ID and persists the remaining set. Returns
// whether the rule existed and the removal took effect; like AddRule, a
// persist failure leaves the in-memory set untouched.
func (e *RuleEngine) RemoveRule(id domain.EntityID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, r := range e.rules {
		if r.RuleID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	next := append(append([]*ruledomain.TriggerRule(nil), e.rules[:idx]...), e.rules[idx+1:]...)
	if err := e.repo.SaveAll(next); err != nil {
		e.log.Error("failed to persist rule removal", "rule_id", id, "error", err)
		return false
	}
	e.rules = next

	e.log.Info("rule removed", "rule_id", id)
	return true
}

// GetRule retrieves a rule by ID.
func (e *RuleEngine) GetRule(id domain.EntityID) (*ruledomain.TriggerRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if r.RuleID == id {
			return r, nil
		}
	}
	return nil, ruledomain.ErrRuleNotFound
}

// GetRuleByName retrieves a rule by its human-readable name.
func (e *RuleEngine) GetRuleByName(name string) (*ruledomain.TriggerRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, ruledomain.ErrRuleNotFound
}

// ListRules returns all rules in storage order.
func (e *RuleEngine) ListRules() []*ruledomain.TriggerRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return append([]*ruledomain.TriggerRule(nil), e.rules...)
}

// RuleCount returns the number of stored rules.
func (e *RuleEngine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Evaluate returns the ordered action list for an event: one rendered
// action per enabled rule whose trigger matches, sorted by descending
// priority with storage order breaking ties. The stored rules are never
// mutated; callers receive independent copies.
func (e *RuleEngine) Evaluate(event domain.AgentEvent) []ruledomain.RuleAction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	type match struct {
		action   ruledomain.RuleAction
		priority int
	}
	var matches []match
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		if !r.Trigger.Matches(event) {
			continue
		}
		matches = append(matches, match{action: r.EvaluatedAction(event), priority: r.Priority})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].priority > matches[j].priority
	})

	actions := make([]ruledomain.RuleAction, len(matches))
	for i, m := range matches {
		actions[i] = m.action
	}
	return actions
}
