package protocol

// Wire types for the per-session streaming channel. Events flow server to
// client in emission order; Command is the single accepted inbound message.

type EventType string

const (
	EventTypeSessionStart    EventType = "session_start"
	EventTypeAgentStart      EventType = "agent_start"
	EventTypeAgentStream     EventType = "agent_stream"
	EventTypeAgentComplete   EventType = "agent_complete"
	EventTypeSessionComplete EventType = "session_complete"
	EventTypeSessionError    EventType = "session_error"
)

type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`

	// session_start
	IdeaTitle    string `json:"idea_title,omitempty"`
	IdeaCategory string `json:"idea_category,omitempty"`

	// agent_start / agent_stream / agent_complete
	AgentName string `json:"agent_name,omitempty"`
	Progress  int    `json:"progress,omitempty"`
	Content   string `json:"content,omitempty"`

	// agent_complete
	Duration   float64 `json:"duration,omitempty"`
	TokenCount int64   `json:"token_count,omitempty"`
	Cost       float64 `json:"cost,omitempty"`

	// session_complete
	BlueprintID string `json:"blueprint_id,omitempty"`

	// session_error
	Error string `json:"error,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Type == EventTypeSessionComplete || e.Type == EventTypeSessionError
}

const CommandStartWorkflow = "start_workflow"

type Command struct {
	Type   string `json:"type"`
	IdeaID int64  `json:"idea_id"`
}
