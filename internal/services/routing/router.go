package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"go.uber.org/zap"
)

// ErrEmptyPhone is returned when a routing write is attempted without a phone.
var ErrEmptyPhone = errors.New("phone is required")

// Router owns the sticky agent-to-contact assignment and its bounded
// conversation transcript.
type Router struct {
	repo   database.AssignmentRepositoryInterface
	logger *zap.Logger
}

// NewRouter creates a new session/agent router
func NewRouter(repo database.AssignmentRepositoryInterface, logger *zap.Logger) *Router {
	return &Router{repo: repo, logger: logger}
}

// Assign routes a contact to an agent. When an assignment already exists for
// the phone (matched via the identity resolver, active or not) the agent is
// swapped in place and the assignment reactivated; reassignment is a normal
// operation, e.g. a new campaign taking over a conversation. Otherwise a new
// assignment is created.
func (r *Router) Assign(ctx context.Context, contactID, phone, agentID, agentName string) (*models.AgentAssignment, error) {
	if models.NormalizePhone(phone) == "" {
		return nil, ErrEmptyPhone
	}

	existing, err := r.repo.FindByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up assignment: %w", err)
		}

		assignment := &models.AgentAssignment{
			ID:                  uuid.New(),
			ContactID:           contactID,
			Phone:               models.NormalizePhone(phone),
			AgentID:             agentID,
			AgentName:           agentName,
			ConversationHistory: []models.HistoryEntry{},
			IsActive:            true,
		}
		if err := r.repo.Create(ctx, assignment); err != nil {
			return nil, fmt.Errorf("failed to create assignment: %w", err)
		}

		r.logger.Info("agent_assigned",
			zap.String("assignment_id", assignment.ID.String()),
			zap.String("agent_id", agentID),
		)

		return assignment, nil
	}

	existing.AgentID = agentID
	existing.AgentName = agentName
	if contactID != "" {
		existing.ContactID = contactID
	}
	existing.IsActive = true
	if err := r.repo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}

	r.logger.Info("agent_reassigned",
		zap.String("assignment_id", existing.ID.String()),
		zap.String("agent_id", agentID),
	)

	return existing, nil
}

// AgentForContact returns the active assignment for the phone, or
// database.ErrNotFound when none exists or the contact was deactivated.
func (r *Router) AgentForContact(ctx context.Context, phone string) (*models.AgentAssignment, error) {
	return r.repo.FindActiveByPhone(ctx, phone)
}

// AddMessageToHistory appends a transcript entry to the contact's assignment,
// retaining the most recent entries up to the history cap. The assignment
// must already exist; callers assign before appending.
func (r *Router) AddMessageToHistory(ctx context.Context, phone, role, content string) error {
	assignment, err := r.repo.FindActiveByPhone(ctx, phone)
	if err != nil {
		return err
	}

	assignment.AppendHistory(role, content, time.Now())
	if err := r.repo.Update(ctx, assignment); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// ConversationHistory returns the transcript without timestamps, in the shape
// the LLM analyzer consumes.
func (r *Router) ConversationHistory(ctx context.Context, phone string) ([]models.ConversationMessage, error) {
	assignment, err := r.repo.FindActiveByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	history := make([]models.ConversationMessage, 0, len(assignment.ConversationHistory))
	for _, entry := range assignment.ConversationHistory {
		history = append(history, models.ConversationMessage{
			Role:      entry.Role,
			Content:   entry.Content,
			Timestamp: entry.Timestamp,
		})
	}
	return history, nil
}

// RemoveAgentFromContact soft-deactivates the contact's assignment. History
// is retained for audit.
func (r *Router) RemoveAgentFromContact(ctx context.Context, phone string) error {
	assignment, err := r.repo.FindActiveByPhone(ctx, phone)
	if err != nil {
		return err
	}

	assignment.IsActive = false
	if err := r.repo.Update(ctx, assignment); err != nil {
		return fmt.Errorf("failed to deactivate assignment: %w", err)
	}

	r.logger.Info("agent_removed_from_contact",
		zap.String("assignment_id", assignment.ID.String()),
		zap.String("agent_id", assignment.AgentID),
	)

	return nil
}
