package types

import (
	"encoding/json"
	"time"
)

// Event is one journaled record of a workflow session. Seq starts at 1 and
// is contiguous within a session.
type Event struct {
	ID        EventID         `json:"id"`
	SessionID SessionID       `json:"session_id"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload"`
}

// Event types written to the journal.
const (
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
	EventUpload           = "upload"
	EventSummary          = "summary"
	EventReset            = "reset"
)

// SessionIndex is the index record of one journaled session.
type SessionIndex struct {
	SessionID    SessionID  `json:"session_id"`
	SessionKey   SessionKey `json:"session_key"`
	Workflow     string     `json:"workflow"`
	Source       string     `json:"source"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastEventSeq int64      `json:"last_event_seq"`
}
