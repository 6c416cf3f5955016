package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybell/butler/pkg/domain"
	ruledomain "github.com/greybell/butler/pkg/domain/rule"
	"github.com/greybell/butler/pkg/infrastructure/persistence"
)

// memoryRuleRepo is an in-memory rule.Repository for engine tests.
type memoryRuleRepo struct {
	mu      sync.Mutex
	rules   []*ruledomain.TriggerRule
	loadErr error
	saveErr error
}

func (m *memoryRuleRepo) LoadAll() ([]*ruledomain.TriggerRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]*ruledomain.TriggerRule(nil), m.rules...), nil
}

func (m *memoryRuleRepo) SaveAll(rules []*ruledomain.TriggerRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rules = append([]*ruledomain.TriggerRule(nil), rules...)
	return nil
}

func notifyRule(name string, priority int) *ruledomain.TriggerRule {
	return ruledomain.NewTriggerRule(name, "",
		ruledomain.TriggerCondition{Source: "*", EventType: "*"},
		ruledomain.RuleAction{Type: domain.ActionNotify, Params: domain.Payload{"rule": name}},
		priority)
}

func TestRuleEngineAddAndGet(t *testing.T) {
	engine := NewRuleEngine(&memoryRuleRepo{})

	id, err := engine.AddRule(notifyRule("greet", 1))
	require.NoError(t, err)
	require.False(t, id.IsZero())

	got, err := engine.GetRule(id)
	require.NoError(t, err)
	assert.Equal(t, "greet", got.Name)

	byName, err := engine.GetRuleByName("greet")
	require.NoError(t, err)
	assert.Equal(t, id, byName.RuleID)

	_, err = engine.GetRule("missing")
	assert.ErrorIs(t, err, ruledomain.ErrRuleNotFound)
	assert.Equal(t, 1, engine.RuleCount())
}

func TestRuleEngineAddRejectsInvalid(t *testing.T) {
	engine := NewRuleEngine(&memoryRuleRepo{})

	bad := notifyRule("", 0)
	_, err := engine.AddRule(bad)
	assert.ErrorIs(t, err, ruledomain.ErrEmptyName)
	assert.Zero(t, engine.RuleCount())
}

func TestRuleEngineAddFailsWhenPersistFails(t *testing.T) {
	repo := &memoryRuleRepo{saveErr: errors.New("disk full")}
	engine := NewRuleEngine(repo)

	_, err := engine.AddRule(notifyRule("greet", 0))
	require.Error(t, err)
	assert.Zero(t, engine.RuleCount())
}

func TestRuleEngineRemove(t *testing.T) {
	engine := NewRuleEngine(&memoryRuleRepo{})

	id, err := engine.AddRule(notifyRule("greet", 0))
	require.NoError(t, err)

	assert.True(t, engine.RemoveRule(id))
	assert.False(t, engine.RemoveRule(id))
	assert.Zero(t, engine.RuleCount())
}

func TestRuleEngineRemoveKeepsSetWhenPersistFails(t *testing.T) {
	repo := &memoryRuleRepo{}
	engine := NewRuleEngine(repo)

	id, err := engine.AddRule(notifyRule("sticky", 0))
	require.NoError(t, err)

	repo.saveErr = errors.New("disk full")

	// Like AddRule, a failed persist refuses the mutation.
	assert.False(t, engine.RemoveRule(id))
	assert.Equal(t, 1, engine.RuleCount())

	_, err = engine.GetRule(id)
	assert.NoError(t, err)
}

func TestRuleEngineLoadDegradesToEmptySet(t *testing.T) {
	repo := &memoryRuleRepo{loadErr: errors.New("corrupt store")}
	engine := NewRuleEngine(repo)

	engine.Load()
	assert.Zero(t, engine.RuleCount())
}

func TestRuleEngineEvaluateOrdering(t *testing.T) {
	engine := NewRuleEngine(&memoryRuleRepo{})

	_, err := engine.AddRule(notifyRule("low", 1))
	require.NoError(t, err)
	_, err = engine.AddRule(notifyRule("high", 10))
	require.NoError(t, err)
	_, err = engine.AddRule(notifyRule("mid-a", 5))
	require.NoError(t, err)
	_, err = engine.AddRule(notifyRule("mid-b", 5))
	require.NoError(t, err)

	actions := engine.Evaluate(domain.NewAgentEvent("x", "y", nil, nil))
	require.Len(t, actions, 4)

	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Params.Get("rule").(string)
	}
	// Descending priority, storage order breaking the tie.
	assert.Equal(t, []string{"high", "mid-a", "mid-b", "low"}, names)
}

func TestRuleEngineEvaluateSkipsDisabledRules(t *testing.T) {
	engine := NewRuleEngine(&memoryRuleRepo{})

	r := notifyRule("off", 0)
	r.Enabled = false
	_, err := engine.AddRule(r)
	require.NoError(t, err)

	actions := engine.Evaluate(domain.NewAgentEvent("x", "y", nil, nil))
	assert.Empty(t, actions)
}

func TestRuleEngineEvaluateSkipsNonMatching(t *testing.T) {
	engine := NewRuleEngine(&memoryRuleRepo{})

	r := notifyRule("calendar-only", 0)
	r.Trigger.Source = "calendar"
	_, err := engine.AddRule(r)
	require.NoError(t, err)

	assert.Empty(t, engine.Evaluate(domain.NewAgentEvent("email", "y", nil, nil)))
	assert.Len(t, engine.Evaluate(domain.NewAgentEvent("calendar", "y", nil, nil)), 1)
}

func TestRuleEngineSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	first := NewRuleEngine(persistence.NewRuleRepository(dir))
	first.Load()
	id, err := first.AddRule(notifyRule("persisted", 3))
	require.NoError(t, err)

	// A second engine over the same directory sees the same rule.
	second := NewRuleEngine(persistence.NewRuleRepository(dir))
	second.Load()
	require.Equal(t, 1, second.RuleCount())

	got, err := second.GetRule(id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
	assert.Equal(t, 3, got.Priority)
}
