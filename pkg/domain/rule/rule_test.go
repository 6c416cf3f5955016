package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybell/butler/pkg/domain"
)

func wildcardTrigger() TriggerCondition {
	return TriggerCondition{Source: "*", EventType: "*"}
}

func TestNewTriggerRuleDefaults(t *testing.T) {
	r := NewTriggerRule("greet", "says hello", wildcardTrigger(),
		RuleAction{Type: domain.ActionNotify}, 5)

	assert.False(t, r.RuleID.IsZero())
	assert.True(t, r.Enabled)
	assert.Equal(t, 5, r.Priority)
	assert.False(t, r.CreatedAt.IsZero())
	assert.NoError(t, r.Validate())
}

func TestTriggerRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TriggerRule)
		wantErr error
	}{
		{
			name:    "empty name",
			mutate:  func(r *TriggerRule) { r.Name = "" },
			wantErr: ErrEmptyName,
		},
		{
			name:    "unknown action type",
			mutate:  func(r *TriggerRule) { r.Action.Type = "launch_rocket" },
			wantErr: ErrInvalidActionType,
		},
		{
			name:    "empty source pattern",
			mutate:  func(r *TriggerRule) { r.Trigger.Source = "" },
			wantErr: ErrEmptyTriggerPattern,
		},
		{
			name:    "empty event type pattern",
			mutate:  func(r *TriggerRule) { r.Trigger.EventType = "" },
			wantErr: ErrEmptyTriggerPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTriggerRule("ok", "", wildcardTrigger(),
				RuleAction{Type: domain.ActionLogMemory}, 0)
			tt.mutate(r)
			assert.ErrorIs(t, r.Validate(), tt.wantErr)
		})
	}
}

func TestEvaluatedActionRendersTemplateIntoMessage(t *testing.T) {
	r := NewTriggerRule("remind", "", wildcardTrigger(), RuleAction{
		Type:     domain.ActionNotify,
		Params:   domain.Payload{"channel": "chat"},
		Template: "Meeting {{event.title}} soon",
	}, 0)

	event := testEvent("calendar", "calendar.upcoming", domain.Payload{"title": "Standup"})
	action := r.EvaluatedAction(event)

	assert.Equal(t, "Meeting Standup soon", action.Params.Get("message"))
	assert.Equal(t, "chat", action.Params.Get("channel"))
	assert.Equal(t, r.RuleID, action.RuleID)
}

func TestEvaluatedActionNeverMutatesStoredRule(t *testing.T) {
	r := NewTriggerRule("remind", "", wildcardTrigger(), RuleAction{
		Type:     domain.ActionNotify,
		Params:   domain.Payload{"channel": "chat"},
		Template: "hello {{event.name}}",
	}, 0)

	first := r.EvaluatedAction(testEvent("x", "y", domain.Payload{"name": "one"}))
	second := r.EvaluatedAction(testEvent("x", "y", domain.Payload{"name": "two"}))

	require.Equal(t, "hello one", first.Params.Get("message"))
	require.Equal(t, "hello two", second.Params.Get("message"))

	// The stored action is untouched.
	assert.False(t, r.Action.Params.Has("message"))
	assert.True(t, r.Action.RuleID.IsZero())
}

func TestEvaluatedActionWithoutTemplate(t *testing.T) {
	r := NewTriggerRule("plain", "", wildcardTrigger(),
		RuleAction{Type: domain.ActionLogMemory}, 0)

	action := r.EvaluatedAction(testEvent("x", "y", nil))
	assert.False(t, action.Params.Has("message"))
	assert.Equal(t, r.RuleID, action.RuleID)
}
