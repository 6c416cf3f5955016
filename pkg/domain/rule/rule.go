// Package rule defines the trigger-rule bounded context.
// A TriggerRule is a persisted condition→action mapping evaluated against
// incoming events: when the condition matches, the rule's action is
// collected for dispatch, ordered by priority.
package rule

import (
	"github.com/greybell/butler/pkg/domain"
)

// ---------------------------------------------------------------------------
// TriggerCondition: the matchable shape of an event
// ---------------------------------------------------------------------------

// TriggerCondition describes which events a rule reacts to.
// Source and EventType are either exact strings or the wildcard "*".
// Filters constrain payload fields: a plain value means exact equality, an
// operator object ({"$gt": 5, "$lte": 20}) applies every listed operator
// with AND semantics.
type TriggerCondition struct {
	Source    string                 `json:"source" yaml:"source"`
	EventType string                 `json:"event_type" yaml:"event_type"`
	Filters   map[string]interface{} `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// ---------------------------------------------------------------------------
// RuleAction: what to do when a rule matches
// ---------------------------------------------------------------------------

// RuleAction describes the side effect produced by a matching rule.
type RuleAction struct {
	Type     domain.ActionType `json:"action_type" yaml:"action_type"`
	Params   domain.Payload    `json:"params,omitempty" yaml:"params,omitempty"`
	Template string            `json:"template,omitempty" yaml:"template,omitempty"`

	// RuleID carries the owning rule's identity on evaluated copies, so
	// dispatch failures can be logged with context. Never persisted.
	RuleID domain.EntityID `json:"-" yaml:"-"`
}

// ---------------------------------------------------------------------------
// TriggerRule aggregate
// ---------------------------------------------------------------------------

// TriggerRule is a persisted automation rule.
type TriggerRule struct {
	RuleID      domain.EntityID  `json:"rule_id" yaml:"rule_id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Priority    int              `json:"priority" yaml:"priority"`
	Enabled     bool             `json:"enabled" yaml:"enabled"`
	Trigger     TriggerCondition `json:"trigger" yaml:"trigger"`
	Action      RuleAction       `json:"action" yaml:"action"`
	CreatedAt   domain.Timestamp `json:"created_at" yaml:"created_at"`
}

// NewTriggerRule creates an enabled rule with a fresh identity.
func NewTriggerRule(name, description string, trigger TriggerCondition, action RuleAction, priority int) *TriggerRule {
	return &TriggerRule{
		RuleID:      domain.NewID(),
		Name:        name,
		Description: description,
		Priority:    priority,
		Enabled:     true,
		Trigger:     trigger,
		Action:      action,
		CreatedAt:   domain.Now(),
	}
}

// Validate checks that the rule is dispatchable.
func (r *TriggerRule) Validate() error {
	if r.Name == "" {
		return ErrEmptyName
	}
	if !r.Action.Type.Valid() {
		return ErrInvalidActionType
	}
	if r.Trigger.Source == "" || r.Trigger.EventType == "" {
		return ErrEmptyTriggerPattern
	}
	return nil
}

// EvaluatedAction returns the action copy used for dispatch: params are
// cloned, the template (if any) is rendered against the event into
// params["message"], and the owning rule's identity is attached. The stored
// rule is never mutated.
func (r *TriggerRule) EvaluatedAction(event domain.AgentEvent) RuleAction {
	action := r.Action
	action.RuleID = r.RuleID

	params := make(domain.Payload, len(r.Action.Params)+1)
	for k, v := range r.Action.Params {
		params[k] = v
	}
	if r.Action.Template != "" {
		params["message"] = RenderTemplate(r.Action.Template, event)
	}
	action.Params = params
	return action
}

// ---------------------------------------------------------------------------
// Repository interface
// ---------------------------------------------------------------------------

// Repository persists the full rule list. The list is rewritten wholesale on
// every mutation; LoadAll reproduces the same set across restarts.
type Repository interface {
	LoadAll() ([]*TriggerRule, error)
	SaveAll(rules []*TriggerRule) error
}

// ---------------------------------------------------------------------------
// Domain errors
// ---------------------------------------------------------------------------

// RuleError is a rule-context domain error.
type RuleError string

func (e RuleError) Error() string { return string(e) }

const (
	ErrEmptyName           RuleError = "rule name cannot be empty"
	ErrInvalidActionType   RuleError = "unknown rule action type"
	ErrEmptyTriggerPattern RuleError = "trigger source and event_type cannot be empty"
	ErrRuleNotFound        RuleError = "rule not found"
)
