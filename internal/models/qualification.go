package models

import (
	"time"

	"github.com/google/uuid"
)

// Source is the channel a contact first engaged through
type Source string

const (
	SourceAIChat   Source = "ai_chat"
	SourceCampaign Source = "campaign"
	SourceAd       Source = "ad"
	SourceLeadForm Source = "lead_form"
	SourceManual   Source = "manual"
)

// Sources lists every source value, in report ordering.
func Sources() []Source {
	return []Source{SourceAIChat, SourceCampaign, SourceAd, SourceLeadForm, SourceManual}
}

// QualificationCategory is the keyword-derived interest category
type QualificationCategory string

const (
	CategoryInterested    QualificationCategory = "interested"
	CategoryNotInterested QualificationCategory = "not_interested"
	CategoryPending       QualificationCategory = "pending"
)

// Qualification is the fast, keyword-derived interest record for one contact.
// Category starts at pending and, once it moves to interested or
// not_interested, never reverts to pending. Score stays within [0,100].
// Keywords only ever grow; totalMessages only ever increments.
type Qualification struct {
	ID             uuid.UUID             `json:"id"`
	ContactID      string                `json:"contact_id"`
	Phone          string                `json:"phone"`
	Name           string                `json:"name,omitempty"`
	Source         Source                `json:"source"`
	CampaignID     string                `json:"campaign_id,omitempty"`
	CampaignName   string                `json:"campaign_name,omitempty"`
	AgentID        string                `json:"agent_id,omitempty"`
	AgentName      string                `json:"agent_name,omitempty"`
	Category       QualificationCategory `json:"category"`
	Score          int                   `json:"score"`
	TotalMessages  int                   `json:"total_messages"`
	Keywords       []string              `json:"keywords"`
	FirstContactAt time.Time             `json:"first_contact_at"`
	LastMessageAt  time.Time             `json:"last_message_at"`
	Notes          string                `json:"notes,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// MergeKeywords unions new keywords into the stored set, preserving insertion
// order and skipping duplicates. The keyword set never shrinks.
func (q *Qualification) MergeKeywords(keywords []string) {
	existing := make(map[string]bool, len(q.Keywords))
	for _, k := range q.Keywords {
		existing[k] = true
	}
	for _, k := range keywords {
		if !existing[k] {
			q.Keywords = append(q.Keywords, k)
			existing[k] = true
		}
	}
}

// ClampScore bounds a qualification score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
