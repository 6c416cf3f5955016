package app

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/greybell/butler/pkg/domain"
	ruledomain "github.com/greybell/butler/pkg/domain/rule"
	"github.com/greybell/butler/pkg/logger"
)

// ---------------------------------------------------------------------------
// Event router
// ---------------------------------------------------------------------------

// NotifyFunc delivers a notification produced by a NOTIFY action.
type NotifyFunc func(channel, recipientID, message string, params domain.Payload) error

// ExecuteFunc hands a mission produced by an EXECUTE_MISSION action to the
// agent runtime.
type ExecuteFunc func(mission string, params domain.Payload) error

// MemoryFunc persists content produced by a LOG_MEMORY action.
type MemoryFunc func(content string, params domain.Payload) error

// MissionSynthesizer builds a mission string from an event when an
// EXECUTE_MISSION action carries no explicit mission. The concrete strategy
// is pluggable; an LLM-backed implementation can be injected from outside.
type MissionSynthesizer func(event domain.AgentEvent) string

// RouterCallbacks bundles the side-effecting callbacks actions dispatch to.
type RouterCallbacks struct {
	Notify  NotifyFunc
	Execute ExecuteFunc
	Memory  MemoryFunc
}

// RouterConfig carries the router's dispatch defaults.
type RouterConfig struct {
	DefaultChannel   string
	DefaultRecipient string
	LLMFallback      bool
	Synthesizer      MissionSynthesizer
}

// EventRouter turns matched rule actions into side effects and counts
// throughput. Callback failures are logged and contained: one failing
// action never blocks the remaining actions for the same event, and
// nothing propagates to the caller of Route.
type EventRouter struct {
	engine    *RuleEngine
	callbacks RouterCallbacks
	cfg       RouterConfig
	log       *slog.Logger

	eventCount  atomic.Uint64
	actionCount atomic.Uint64
}

// NewEventRouter creates a router over the given engine. A nil Synthesizer
// with LLMFallback enabled falls back to DefaultMissionSynthesizer.
func NewEventRouter(engine *RuleEngine, callbacks RouterCallbacks, cfg RouterConfig) *EventRouter {
	if cfg.LLMFallback && cfg.Synthesizer == nil {
		cfg.Synthesizer = DefaultMissionSynthesizer
	}
	return &EventRouter{
		engine:    engine,
		callbacks: callbacks,
		cfg:       cfg,
		log:       logger.L().With("component", "event_router"),
	}
}

// Route evaluates the event against the rule set and dispatches every
// matched action in the engine's sorted order.
func (r *EventRouter) Route(event domain.AgentEvent) {
	actions := r.engine.Evaluate(event)
	r.eventCount.Add(1)

	for _, action := range actions {
		r.actionCount.Add(1)
		r.dispatch(event, action)
	}
}

// EventCount returns the number of events processed.
func (r *EventRouter) EventCount() uint64 { return r.eventCount.Load() }

// ActionCount returns the number of actions dispatched.
func (r *EventRouter) ActionCount() uint64 { return r.actionCount.Load() }

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func (r *EventRouter) dispatch(event domain.AgentEvent, action ruledomain.RuleAction) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("action callback panicked",
				"rule_id", action.RuleID, "action_type", action.Type, "panic", p)
		}
	}()

	var err error
	switch action.Type {
	case domain.ActionNotify:
		err = r.dispatchNotify(event, action)
	case domain.ActionExecuteMission:
		err = r.dispatchExecuteMission(event, action)
	case domain.ActionLogMemory:
		err = r.dispatchLogMemory(event, action)
	default:
		r.log.Warn("unknown action type, skipping",
			"rule_id", action.RuleID, "action_type", action.Type)
		return
	}

	if err != nil {
		r.log.Error("action dispatch failed",
			"rule_id", action.RuleID, "action_type", action.Type, "error", err)
	}
}

func (r *EventRouter) dispatchNotify(event domain.AgentEvent, action ruledomain.RuleAction) error {
	if r.callbacks.Notify == nil {
		r.log.Warn("no notify callback configured", "rule_id", action.RuleID)
		return nil
	}

	channel := stringParam(action.Params, "channel")
	if channel == "" {
		channel = r.cfg.DefaultChannel
	}
	recipient := stringParam(action.Params, "recipient_id")
	if recipient == "" {
		recipient = r.cfg.DefaultRecipient
	}
	message := stringParam(action.Params, "message")
	if message == "" && action.Template == "" {
		// A template that rendered to empty text still counts as templated;
		// only untemplated rules without an explicit message get the default.
		message = fmt.Sprintf("Automation rule fired for event %s", event.Type)
	}

	return r.callbacks.Notify(channel, recipient, message, action.Params)
}

func (r *EventRouter) dispatchExecuteMission(event domain.AgentEvent, action ruledomain.RuleAction) error {
	if r.callbacks.Execute == nil {
		r.log.Warn("no execute callback configured", "rule_id", action.RuleID)
		return nil
	}

	mission := stringParam(action.Params, "mission")
	if mission == "" && r.cfg.LLMFallback && r.cfg.Synthesizer != nil {
		mission = r.cfg.Synthesizer(event)
	}
	if mission == "" {
		r.log.Warn("execute_mission action has no mission and no fallback, skipping",
			"rule_id", action.RuleID)
		return nil
	}

	return r.callbacks.Execute(mission, action.Params)
}

func (r *EventRouter) dispatchLogMemory(event domain.AgentEvent, action ruledomain.RuleAction) error {
	if r.callbacks.Memory == nil {
		r.log.Warn("no memory callback configured", "rule_id", action.RuleID)
		return nil
	}

	content := stringParam(action.Params, "message")
	if content == "" && action.Template == "" {
		content = event.Describe()
	}

	return r.callbacks.Memory(content, action.Params)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// DefaultMissionSynthesizer builds a plain-text mission from the event.
// Deployments wanting an LLM-crafted mission inject their own synthesizer.
func DefaultMissionSynthesizer(event domain.AgentEvent) string {
	return fmt.Sprintf("Handle the %s event from %s: %s", event.Type, event.Source, event.Describe())
}

func stringParam(params domain.Payload, key string) string {
	if s, ok := params.Get(key).(string); ok {
		return s
	}
	return ""
}
