package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxConversationHistory is the cap on retained conversation entries per
// assignment. Oldest entries are evicted first.
const MaxConversationHistory = 20

// HistoryEntry is one turn of an assignment's rolling transcript.
type HistoryEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentAssignment is the sticky routing decision for one contact: which
// automated agent owns the conversation, plus a bounded rolling transcript.
// At most one active assignment exists per normalized phone. Deactivation is
// soft; history is retained for audit and never deleted by the engine.
type AgentAssignment struct {
	ID                  uuid.UUID      `json:"id"`
	ContactID           string         `json:"contact_id"`
	Phone               string         `json:"phone"` // normalized, digits only
	AgentID             string         `json:"agent_id"`
	AgentName           string         `json:"agent_name,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
	IsActive            bool           `json:"is_active"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// AppendHistory adds an entry and trims the transcript to the most recent
// MaxConversationHistory entries, oldest first out.
func (a *AgentAssignment) AppendHistory(role, content string, at time.Time) {
	a.ConversationHistory = append(a.ConversationHistory, HistoryEntry{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
	if n := len(a.ConversationHistory); n > MaxConversationHistory {
		a.ConversationHistory = a.ConversationHistory[n-MaxConversationHistory:]
	}
}
