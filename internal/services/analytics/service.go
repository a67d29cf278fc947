package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/services/ai"
	"go.uber.org/zap"
)

// Service maintains the LLM-derived ContactAnalytics records. It owns the
// per-agent interaction ledger and the analysis write path. Terminal analysis
// failures degrade to the keyword fallback inside the InterestAnalyzer;
// quota and rate-limit errors propagate so the worker can retry later.
type Service struct {
	analyticsRepo  database.AnalyticsRepositoryInterface
	assignmentRepo database.AssignmentRepositoryInterface
	analyzer       *ai.InterestAnalyzer
	logger         *zap.Logger
}

// NewService creates the analytics maintenance service
func NewService(analyticsRepo database.AnalyticsRepositoryInterface, assignmentRepo database.AssignmentRepositoryInterface, analyzer *ai.InterestAnalyzer, logger *zap.Logger) *Service {
	return &Service{
		analyticsRepo:  analyticsRepo,
		assignmentRepo: assignmentRepo,
		analyzer:       analyzer,
		logger:         logger,
	}
}

// AnalyzeAndUpdateContact runs the conversation analysis for a contact and
// stores the result. The conversation is read from the contact's assignment
// transcript; message counts and duration are recomputed from the transcript
// timestamps on every run. Whole-record replace; concurrent runs for the same
// contact can lose an update, accepted for a best-effort score.
func (s *Service) AnalyzeAndUpdateContact(ctx context.Context, phone string) (*models.ContactAnalytics, error) {
	assignment, err := s.assignmentRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation for analysis: %w", err)
	}

	history := make([]models.ConversationMessage, 0, len(assignment.ConversationHistory))
	for _, entry := range assignment.ConversationHistory {
		history = append(history, models.ConversationMessage{
			Role:      entry.Role,
			Content:   entry.Content,
			Timestamp: entry.Timestamp,
		})
	}

	analysis, err := s.analyzer.AnalyzeContactConversation(ctx, phone, history)
	if err != nil {
		// Retryable provider failure; nothing is persisted so the job can run
		// again once the provider recovers.
		return nil, fmt.Errorf("conversation analysis unavailable: %w", err)
	}

	record, err := s.findOrCreate(ctx, phone, assignment.ContactID, "")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record.InterestLevel = analysis.InterestLevel
	record.InterestScore = analysis.InterestScore
	record.InterestReason = analysis.InterestReason
	record.KeyTopics = analysis.KeyTopics
	record.Objections = analysis.Objections
	record.PositiveSignals = analysis.PositiveSignals
	record.NegativeSignals = analysis.NegativeSignals
	record.LastAnalyzedAt = &now

	applyConversationCounts(record, history)

	if err := s.analyticsRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist analysis: %w", err)
	}

	s.logger.Info("contact_analysis_stored",
		zap.String("phone", ai.RedactPhone(phone)),
		zap.String("interest_level", string(record.InterestLevel)),
		zap.Int("interest_score", record.InterestScore),
		zap.Int("message_count", len(history)),
	)

	return record, nil
}

// TrackAgentInteraction records one agent message against the contact's
// analytics, creating the record and the per-agent entry on first sight.
// durationMinutes is recomputed from the entry's first interaction each time.
func (s *Service) TrackAgentInteraction(ctx context.Context, phone, contactID, contactName, agentID, agentName string, direction models.MessageDirection, at time.Time) error {
	record, err := s.findOrCreate(ctx, phone, contactID, contactName)
	if err != nil {
		return err
	}

	if at.IsZero() {
		at = time.Now()
	}

	record.TotalMessages++
	if direction == models.DirectionInbound {
		record.InboundMessages++
	} else {
		record.OutboundMessages++
	}
	if record.FirstContactTime.IsZero() || at.Before(record.FirstContactTime) {
		record.FirstContactTime = at
	}
	if at.After(record.LastContactTime) {
		record.LastContactTime = at
	}
	record.ConversationDuration = int(record.LastContactTime.Sub(record.FirstContactTime).Minutes())
	if contactName != "" {
		record.ContactName = contactName
	}

	if agentID != "" {
		interaction := record.FindAgentInteraction(agentID)
		if interaction == nil {
			record.AIAgentInteractions = append(record.AIAgentInteractions, models.AgentInteraction{
				AgentID:          agentID,
				AgentName:        agentName,
				MessagesCount:    1,
				FirstInteraction: at,
				LastInteraction:  at,
			})
		} else {
			interaction.MessagesCount++
			interaction.LastInteraction = at
			interaction.DurationMinutes = int(at.Sub(interaction.FirstInteraction).Minutes())
			if agentName != "" {
				interaction.AgentName = agentName
			}
		}
	}

	if err := s.analyticsRepo.Update(ctx, record); err != nil {
		return fmt.Errorf("failed to track agent interaction: %w", err)
	}

	return nil
}

// findOrCreate loads the analytics record for the phone, creating a fresh
// pending record when none exists yet.
func (s *Service) findOrCreate(ctx context.Context, phone, contactID, contactName string) (*models.ContactAnalytics, error) {
	record, err := s.analyticsRepo.FindByPhone(ctx, phone)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up contact analytics: %w", err)
	}

	// Contact times stay zero until the first tracked message establishes them.
	record = &models.ContactAnalytics{
		ID:            uuid.New(),
		ContactID:     contactID,
		Phone:         models.NormalizePhone(phone),
		ContactName:   contactName,
		InterestLevel: models.InterestPending,
		InterestScore: 50,
	}
	if err := s.analyticsRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create contact analytics: %w", err)
	}

	s.logger.Info("contact_analytics_created",
		zap.String("analytics_id", record.ID.String()),
		zap.String("phone", ai.RedactPhone(phone)),
	)

	return record, nil
}

// applyConversationCounts recomputes the message tallies and the conversation
// span from the transcript timestamps.
func applyConversationCounts(record *models.ContactAnalytics, history []models.ConversationMessage) {
	if len(history) == 0 {
		return
	}

	inbound, outbound := 0, 0
	first, last := history[0].Timestamp, history[0].Timestamp
	for _, msg := range history {
		if msg.Role == "user" {
			inbound++
		} else {
			outbound++
		}
		if msg.Timestamp.Before(first) {
			first = msg.Timestamp
		}
		if msg.Timestamp.After(last) {
			last = msg.Timestamp
		}
	}

	record.TotalMessages = inbound + outbound
	record.InboundMessages = inbound
	record.OutboundMessages = outbound
	record.FirstContactTime = first
	record.LastContactTime = last
	record.ConversationDuration = int(last.Sub(first).Minutes())
}
