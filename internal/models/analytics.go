package models

import (
	"time"

	"github.com/google/uuid"
)

// InterestLevel is the LLM-derived interest classification
type InterestLevel string

const (
	InterestHighly        InterestLevel = "highly_interested"
	InterestInterested    InterestLevel = "interested"
	InterestNeutral       InterestLevel = "neutral"
	InterestNotInterested InterestLevel = "not_interested"
	InterestPending       InterestLevel = "pending"
)

// InterestLevels lists every interest level, in report ordering.
func InterestLevels() []InterestLevel {
	return []InterestLevel{
		InterestHighly,
		InterestInterested,
		InterestNeutral,
		InterestNotInterested,
		InterestPending,
	}
}

// AgentInteraction tracks one agent's engagement with a contact.
type AgentInteraction struct {
	AgentID          string    `json:"agent_id"`
	AgentName        string    `json:"agent_name,omitempty"`
	MessagesCount    int       `json:"messages_count"`
	FirstInteraction time.Time `json:"first_interaction"`
	LastInteraction  time.Time `json:"last_interaction"`
	DurationMinutes  int       `json:"duration_minutes"`
}

// ContactAnalytics is the richer, LLM-derived interest record for one contact.
// It is eventually consistent with analysis runs and may disagree with the
// contact's Qualification record.
type ContactAnalytics struct {
	ID                   uuid.UUID          `json:"id"`
	ContactID            string             `json:"contact_id"`
	Phone                string             `json:"phone"`
	ContactName          string             `json:"contact_name,omitempty"`
	InterestLevel        InterestLevel      `json:"interest_level"`
	InterestScore        int                `json:"interest_score"`
	InterestReason       string             `json:"interest_reason,omitempty"`
	TotalMessages        int                `json:"total_messages"`
	InboundMessages      int                `json:"inbound_messages"`
	OutboundMessages     int                `json:"outbound_messages"`
	AIAgentInteractions  []AgentInteraction `json:"ai_agent_interactions"`
	FirstContactTime     time.Time          `json:"first_contact_time"`
	LastContactTime      time.Time          `json:"last_contact_time"`
	ConversationDuration int                `json:"conversation_duration"` // minutes
	KeyTopics            []string           `json:"key_topics"`
	Objections           []string           `json:"objections"`
	PositiveSignals      []string           `json:"positive_signals"`
	NegativeSignals      []string           `json:"negative_signals"`
	LastAnalyzedAt       *time.Time         `json:"last_analyzed_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// FindAgentInteraction returns the interaction entry for agentID, or nil.
func (c *ContactAnalytics) FindAgentInteraction(agentID string) *AgentInteraction {
	for i := range c.AIAgentInteractions {
		if c.AIAgentInteractions[i].AgentID == agentID {
			return &c.AIAgentInteractions[i]
		}
	}
	return nil
}
