package models

import "time"

// MessageDirection indicates who authored a message
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageEvent is the per-message event delivered by the ingestion layer.
// Delivery is at-least-once; the engine treats each event as an independent
// unit of work.
type MessageEvent struct {
	ContactID    string           `json:"contact_id"`
	Phone        string           `json:"phone"`
	Name         string           `json:"name,omitempty"`
	Content      string           `json:"content"`
	Direction    MessageDirection `json:"direction"`
	Timestamp    time.Time        `json:"timestamp"`
	Source       Source           `json:"source"`
	CampaignID   string           `json:"campaign_id,omitempty"`
	CampaignName string           `json:"campaign_name,omitempty"`
	AgentID      string           `json:"agent_id,omitempty"`
	AgentName    string           `json:"agent_name,omitempty"`
}

// ConversationMessage is a timestamped message used for analysis input.
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
