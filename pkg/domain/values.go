package domain

// ---------------------------------------------------------------------------
// Shared value objects used across bounded contexts
// ---------------------------------------------------------------------------

// ActionType represents the kind of side effect an automation produces.
type ActionType string

const (
	ActionNotify         ActionType = "notify"
	ActionExecuteMission ActionType = "execute_mission"
	ActionLogMemory      ActionType = "log_memory"
)

// AllActionTypes returns all known action types.
func AllActionTypes() []ActionType {
	return []ActionType{ActionNotify, ActionExecuteMission, ActionLogMemory}
}

// String implements fmt.Stringer.
func (at ActionType) String() string { return string(at) }

// Valid returns true if the action type is recognized.
func (at ActionType) Valid() bool {
	for _, t := range AllActionTypes() {
		if t == at {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------

// ScheduleType represents how a job's firing time is determined.
type ScheduleType string

const (
	// ScheduleOneShot fires once at an absolute RFC 3339 timestamp.
	ScheduleOneShot ScheduleType = "one_shot"
	// ScheduleInterval fires repeatedly every fixed duration ("30s", "15m", "1h", "2d").
	ScheduleInterval ScheduleType = "interval"
	// ScheduleCron fires on a standard 5-field cron expression.
	ScheduleCron ScheduleType = "cron"
)

// AllScheduleTypes returns all known schedule types.
func AllScheduleTypes() []ScheduleType {
	return []ScheduleType{ScheduleOneShot, ScheduleInterval, ScheduleCron}
}

func (st ScheduleType) String() string { return string(st) }

// Valid returns true if the schedule type is recognized.
func (st ScheduleType) Valid() bool {
	for _, t := range AllScheduleTypes() {
		if t == st {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------

// Payload carries event-specific data. Values are anything that survives a
// JSON round-trip.
type Payload map[string]interface{}

// Get returns a payload value, or nil if not present.
func (p Payload) Get(key string) interface{} {
	if p == nil {
		return nil
	}
	return p[key]
}

// Has returns true if the payload contains the key.
func (p Payload) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p[key]
	return ok
}

// ---------------------------------------------------------------------------

// Metadata is a generic key-value map for transport-level annotations.
type Metadata map[string]string

// Get returns a metadata value, or empty string if not present.
func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}

// Set writes a metadata key-value pair. Initializes the map if nil.
func (m *Metadata) Set(key, value string) {
	if *m == nil {
		*m = make(Metadata)
	}
	(*m)[key] = value
}
