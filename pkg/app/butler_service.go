package app

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/greybell/butler/pkg/bus"
	"github.com/greybell/butler/pkg/domain"
	ruledomain "github.com/greybell/butler/pkg/domain/rule"
	"github.com/greybell/butler/pkg/infrastructure/persistence"
	"github.com/greybell/butler/pkg/logger"
)

// ---------------------------------------------------------------------------
// Service state
// ---------------------------------------------------------------------------

// ServiceState tracks the butler lifecycle.
type ServiceState string

const (
	StateStopped  ServiceState = "stopped"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
)

func (st ServiceState) String() string { return string(st) }

// ---------------------------------------------------------------------------
// Butler service
// ---------------------------------------------------------------------------

// ButlerConfig carries the construction parameters for a ButlerService.
type ButlerConfig struct {
	// WorkDir roots all persisted state (job files, rule list).
	WorkDir string
	// DefaultChannel and DefaultRecipient fill NOTIFY actions that name none.
	DefaultChannel   string
	DefaultRecipient string
	// LLMFallback permits synthesizing missions for EXECUTE_MISSION actions
	// that carry no explicit mission text.
	LLMFallback bool
	// Synthesizer overrides the default mission synthesis strategy.
	Synthesizer MissionSynthesizer
}

// ButlerService owns the lifecycle of the automation core. It wires the
// rule engine, the scheduler, and the event router together with externally
// supplied event sources and collaborators, and funnels every event,
// whoever produced it, through a single handler into the router.
type ButlerService struct {
	cfg ButlerConfig
	log *slog.Logger

	engine    *RuleEngine
	scheduler *SchedulerService
	router    *EventRouter
	tap       *bus.EventTap

	mu       sync.Mutex
	state    ServiceState
	sources  []domain.EventSource
	gateway  domain.Gateway
	executor domain.MissionExecutor
	memories domain.MemoryStore
}

// NewButlerService constructs the automation core rooted at cfg.WorkDir.
// Collaborators (gateway, executor, memory store, event sources) are bound
// during a single-threaded assembly phase before Start.
func NewButlerService(cfg ButlerConfig) *ButlerService {
	b := &ButlerService{
		cfg:   cfg,
		log:   logger.L().With("component", "butler"),
		tap:   bus.NewEventTap(),
		state: StateStopped,
	}

	b.engine = NewRuleEngine(persistence.NewRuleRepository(cfg.WorkDir))
	// Loaded eagerly: rule mutations (AddRuleFromConfig, profile loading)
	// rewrite the whole persisted list, so the in-memory set must hold the
	// persisted rules before the first mutation, not just after Start.
	b.engine.Load()
	b.scheduler = NewSchedulerService(persistence.NewJobRepository(cfg.WorkDir), b.HandleEvent)
	b.router = NewEventRouter(b.engine,
		RouterCallbacks{
			Notify:  b.notifyCallback,
			Execute: b.executeCallback,
			Memory:  b.memoryCallback,
		},
		RouterConfig{
			DefaultChannel:   cfg.DefaultChannel,
			DefaultRecipient: cfg.DefaultRecipient,
			LLMFallback:      cfg.LLMFallback,
			Synthesizer:      cfg.Synthesizer,
		})
	return b
}

// Engine exposes the rule engine for rule management.
func (b *ButlerService) Engine() *RuleEngine { return b.engine }

// Scheduler exposes the scheduler for job management.
func (b *ButlerService) Scheduler() *SchedulerService { return b.scheduler }

// Tap returns the observer tap carrying every event the butler handles.
func (b *ButlerService) Tap() *bus.EventTap { return b.tap }

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

// AddEventSource registers an event source and binds its callback to the
// butler's event handler. Sources registered while the butler runs are
// started immediately.
func (b *ButlerService) AddEventSource(source domain.EventSource) {
	source.Bind(b.HandleEvent)

	b.mu.Lock()
	b.sources = append(b.sources, source)
	running := b.state == StateRunning
	b.mu.Unlock()

	if running {
		if err := source.Start(); err != nil {
			b.log.Error("failed to start event source", "source", source.Name(), "error", err)
		}
	}
}

// SetGateway late-binds the communication gateway. Absence is tolerated:
// NOTIFY actions become logged no-ops.
func (b *ButlerService) SetGateway(gw domain.Gateway) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gateway = gw
}

// SetExecutor late-binds the mission executor.
func (b *ButlerService) SetExecutor(ex domain.MissionExecutor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executor = ex
}

// SetMemoryStore late-binds the memory store.
func (b *ButlerService) SetMemoryStore(ms domain.MemoryStore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.memories = ms
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start loads rules, starts the scheduler, and starts every registered
// event source. Idempotent: calling Start on a running butler is a no-op.
func (b *ButlerService) Start() {
	b.mu.Lock()
	if b.state != StateStopped {
		b.mu.Unlock()
		return
	}
	b.state = StateStarting
	sources := append([]domain.EventSource(nil), b.sources...)
	b.mu.Unlock()

	b.engine.Load()
	b.scheduler.Start()

	for _, source := range sources {
		if err := source.Start(); err != nil {
			// One broken source never blocks the rest of the system.
			b.log.Error("failed to start event source", "source", source.Name(), "error", err)
		}
	}

	b.mu.Lock()
	b.state = StateRunning
	b.mu.Unlock()

	b.tap.Publish(domain.NewAgentEvent(domain.SourceButler, domain.EventButlerStarted, nil, nil))
	b.log.Info("butler started", "rules", b.engine.RuleCount(), "jobs", b.scheduler.JobCount())
}

// Stop halts every event source and the scheduler. Idempotent.
func (b *ButlerService) Stop() {
	b.mu.Lock()
	if b.state != StateRunning {
		b.mu.Unlock()
		return
	}
	b.state = StateStopping
	sources := append([]domain.EventSource(nil), b.sources...)
	b.mu.Unlock()

	for _, source := range sources {
		source.Stop()
	}
	b.scheduler.Stop()

	b.mu.Lock()
	b.state = StateStopped
	b.mu.Unlock()

	b.tap.Publish(domain.NewAgentEvent(domain.SourceButler, domain.EventButlerStopped, nil, nil))
	b.log.Info("butler stopped")
}

// Running reports whether the butler is in the running state.
func (b *ButlerService) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateRunning
}

// HandleEvent is the single integration point tying all components
// together: every event from any source, scheduler firings included,
// funnels through here into the router, then out to observer taps.
func (b *ButlerService) HandleEvent(event domain.AgentEvent) {
	b.router.Route(event)
	b.tap.Publish(event)
}

// ---------------------------------------------------------------------------
// Rule configuration
// ---------------------------------------------------------------------------

// RuleConfig is the declarative form of a trigger rule, as written in YAML
// rule profiles or submitted by a management surface.
type RuleConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Priority    int    `yaml:"priority,omitempty" json:"priority,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	Trigger struct {
		Source    string                 `yaml:"source,omitempty" json:"source,omitempty"`
		EventType string                 `yaml:"event_type,omitempty" json:"event_type,omitempty"`
		Filters   map[string]interface{} `yaml:"filters,omitempty" json:"filters,omitempty"`
	} `yaml:"trigger" json:"trigger"`

	Action struct {
		Type     string                 `yaml:"type" json:"type"`
		Params   map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
		Template string                 `yaml:"template,omitempty" json:"template,omitempty"`
	} `yaml:"action" json:"action"`
}

// AddRuleFromConfig builds a TriggerRule from its declarative form and adds
// it to the engine. Empty trigger patterns default to the wildcard.
func (b *ButlerService) AddRuleFromConfig(cfg RuleConfig) (domain.EntityID, error) {
	trigger := ruledomain.TriggerCondition{
		Source:    cfg.Trigger.Source,
		EventType: cfg.Trigger.EventType,
		Filters:   cfg.Trigger.Filters,
	}
	if trigger.Source == "" {
		trigger.Source = domain.WildcardPattern
	}
	if trigger.EventType == "" {
		trigger.EventType = domain.WildcardPattern
	}

	action := ruledomain.RuleAction{
		Type:     domain.ActionType(cfg.Action.Type),
		Params:   domain.Payload(cfg.Action.Params),
		Template: cfg.Action.Template,
	}

	r := ruledomain.NewTriggerRule(cfg.Name, cfg.Description, trigger, action, cfg.Priority)
	if cfg.Enabled != nil {
		r.Enabled = *cfg.Enabled
	}
	return b.engine.AddRule(r)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// SourceStatus reports one event source in a status snapshot.
type SourceStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

// SchedulerStatus reports the scheduler in a status snapshot.
type SchedulerStatus struct {
	Running  bool `json:"running"`
	JobCount int  `json:"job_count"`
}

// Status is a point-in-time snapshot of the automation core.
type Status struct {
	Running            bool            `json:"running"`
	State              ServiceState    `json:"state"`
	Sources            []SourceStatus  `json:"sources"`
	Scheduler          SchedulerStatus `json:"scheduler"`
	RuleCount          int             `json:"rule_count"`
	EventsProcessed    uint64          `json:"events_processed"`
	ActionsDispatched  uint64          `json:"actions_dispatched"`
	GatewayConfigured  bool            `json:"gateway_configured"`
	ExecutorConfigured bool            `json:"executor_configured"`
}

// GetStatus returns a snapshot of the whole system. It always reflects
// current reality, recent errors included.
func (b *ButlerService) GetStatus() Status {
	b.mu.Lock()
	state := b.state
	sources := append([]domain.EventSource(nil), b.sources...)
	gatewaySet := b.gateway != nil
	executorSet := b.executor != nil
	b.mu.Unlock()

	sourceStatuses := make([]SourceStatus, len(sources))
	for i, source := range sources {
		sourceStatuses[i] = SourceStatus{Name: source.Name(), Running: source.Running()}
	}

	return Status{
		Running: state == StateRunning,
		State:   state,
		Sources: sourceStatuses,
		Scheduler: SchedulerStatus{
			Running:  b.scheduler.Running(),
			JobCount: b.scheduler.JobCount(),
		},
		RuleCount:          b.engine.RuleCount(),
		EventsProcessed:    b.router.EventCount(),
		ActionsDispatched:  b.router.ActionCount(),
		GatewayConfigured:  gatewaySet,
		ExecutorConfigured: executorSet,
	}
}

// ---------------------------------------------------------------------------
// Router callbacks
// ---------------------------------------------------------------------------

func (b *ButlerService) notifyCallback(channel, recipientID, message string, params domain.Payload) error {
	b.mu.Lock()
	gw := b.gateway
	b.mu.Unlock()

	if gw == nil {
		b.log.Warn("notify action dropped: no gateway configured", "channel", channel)
		return nil
	}

	result := gw.SendNotification(domain.NotificationRequest{
		Channel:     channel,
		RecipientID: recipientID,
		Message:     message,
		Metadata:    metadataParam(params),
	})
	if !result.Success {
		return fmt.Errorf("gateway delivery failed: %s", result.Error)
	}
	return nil
}

func (b *ButlerService) executeCallback(mission string, params domain.Payload) error {
	b.mu.Lock()
	ex := b.executor
	b.mu.Unlock()

	if ex == nil {
		b.log.Warn("execute_mission action dropped: no executor configured")
		return nil
	}

	profile, _ := params.Get("profile").(string)
	result, err := ex.ExecuteMission(mission, profile)
	if err != nil {
		return err
	}
	b.log.Info("mission executed", "status", result.Status)
	return nil
}

func (b *ButlerService) memoryCallback(content string, params domain.Payload) error {
	b.mu.Lock()
	ms := b.memories
	b.mu.Unlock()

	if ms == nil {
		b.log.Warn("log_memory action dropped: no memory store configured")
		return nil
	}

	record := domain.MemoryRecord{
		Scope:   stringParam(params, "scope"),
		Kind:    stringParam(params, "kind"),
		Content: content,
		Tags:    stringSliceParam(params, "tags"),
	}
	if record.Scope == "" {
		record.Scope = "butler"
	}
	if record.Kind == "" {
		record.Kind = "automation"
	}
	return ms.Add(record)
}

// metadataParam extracts a "metadata" map from action params so rule-level
// annotations reach the gateway. Non-string values are dropped.
func metadataParam(params domain.Payload) domain.Metadata {
	switch v := params.Get("metadata").(type) {
	case map[string]string:
		return domain.Metadata(v)
	case domain.Metadata:
		return v
	case map[string]interface{}:
		md := make(domain.Metadata, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				md[k] = s
			}
		}
		return md
	default:
		return nil
	}
}

func stringSliceParam(params domain.Payload, key string) []string {
	switch v := params.Get(key).(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
