package domain

// ---------------------------------------------------------------------------
// Collaborator ports, implemented outside the automation core
// ---------------------------------------------------------------------------

// NotificationRequest asks the communication gateway to deliver a message.
type NotificationRequest struct {
	Channel     string   `json:"channel"`
	RecipientID string   `json:"recipient_id"`
	Message     string   `json:"message"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// NotificationResult reports the outcome of a delivery attempt.
type NotificationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Gateway delivers notifications through whatever channels the surrounding
// system provides (chat transports, push, email).
type Gateway interface {
	SendNotification(req NotificationRequest) NotificationResult
}

// ---------------------------------------------------------------------------

// MissionResult reports the outcome of a mission execution.
type MissionResult struct {
	Status string  `json:"status"`
	Detail Payload `json:"detail,omitempty"`
}

// MissionExecutor hands a mission to the agent runtime for execution.
type MissionExecutor interface {
	ExecuteMission(mission, profile string) (MissionResult, error)
}

// ---------------------------------------------------------------------------

// MemoryRecord is one entry written to the agent's memory store.
type MemoryRecord struct {
	Scope   string   `json:"scope"`
	Kind    string   `json:"kind"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// MemoryStore persists memory records produced by automation rules.
type MemoryStore interface {
	Add(record MemoryRecord) error
}
