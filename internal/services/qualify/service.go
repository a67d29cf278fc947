package qualify

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

// ErrEmptyPhone is returned when a write is attempted without a phone number.
// Rejected before any storage access.
var ErrEmptyPhone = errors.New("phone is required")

// Service maintains the keyword-derived qualification records.
type Service struct {
	repo   database.QualificationRepositoryInterface
	logger *zap.Logger
}

// NewService creates a new qualification service
func NewService(repo database.QualificationRepositoryInterface, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ContactUpdate carries the per-message fields for CreateOrUpdate. Campaign
// and agent fields overwrite the stored record only when supplied.
type ContactUpdate struct {
	Phone        string
	Name         string
	Message      string
	Direction    models.MessageDirection
	Source       models.Source
	ContactID    string
	CampaignID   string
	CampaignName string
	AgentID      string
	AgentName    string
	Timestamp    time.Time
}

// CreateOrUpdate analyzes one message and folds the result into the contact's
// qualification record. First contact creates the record from the analysis
// alone; later contacts merge under a monotonic state machine:
//
//   - interested with a higher score raises the stored score
//   - not_interested always wins immediately
//   - a pending record adopts any non-pending analysis
//   - otherwise the stored category/score stand
//
// The keyword set is a union and never shrinks; totalMessages increments on
// every call. Outbound messages are agent-authored and carry no buyer intent,
// so they are counted but never scored.
func (s *Service) CreateOrUpdate(ctx context.Context, update ContactUpdate) (*models.Qualification, error) {
	if models.NormalizePhone(update.Phone) == "" {
		return nil, ErrEmptyPhone
	}

	at := update.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	analysis := AnalyzeMessage(update.Message)
	if update.Direction == models.DirectionOutbound {
		analysis = MessageAnalysis{Category: models.CategoryPending, Score: baseScore, Keywords: []string{}}
	}

	existing, err := s.repo.FindByPhone(ctx, update.Phone)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up qualification: %w", err)
		}
		return s.create(ctx, update, analysis, at)
	}

	s.merge(existing, update, analysis, at)
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update qualification: %w", err)
	}

	s.logger.Debug("qualification_updated",
		zap.String("qualification_id", existing.ID.String()),
		zap.String("category", string(existing.Category)),
		zap.Int("score", existing.Score),
		zap.Int("total_messages", existing.TotalMessages),
	)

	return existing, nil
}

func (s *Service) create(ctx context.Context, update ContactUpdate, analysis MessageAnalysis, at time.Time) (*models.Qualification, error) {
	source := update.Source
	if source == "" {
		source = models.SourceManual
	}

	q := &models.Qualification{
		ID:             uuid.New(),
		ContactID:      update.ContactID,
		Phone:          models.NormalizePhone(update.Phone),
		Name:           update.Name,
		Source:         source,
		CampaignID:     update.CampaignID,
		CampaignName:   update.CampaignName,
		AgentID:        update.AgentID,
		AgentName:      update.AgentName,
		Category:       analysis.Category,
		Score:          analysis.Score,
		TotalMessages:  1,
		Keywords:       analysis.Keywords,
		FirstContactAt: at,
		LastMessageAt:  at,
	}

	if err := s.repo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to create qualification: %w", err)
	}

	s.logger.Info("qualification_created",
		zap.String("qualification_id", q.ID.String()),
		zap.String("source", string(q.Source)),
		zap.String("category", string(q.Category)),
		zap.Int("score", q.Score),
	)

	return q, nil
}

func (s *Service) merge(q *models.Qualification, update ContactUpdate, analysis MessageAnalysis, at time.Time) {
	q.MergeKeywords(analysis.Keywords)
	q.TotalMessages++
	q.LastMessageAt = at

	switch {
	case analysis.Category == models.CategoryInterested && analysis.Score > q.Score:
		q.Category = models.CategoryInterested
		q.Score = analysis.Score
	case analysis.Category == models.CategoryNotInterested:
		// Explicit opt-out language always wins, regardless of prior score.
		q.Category = models.CategoryNotInterested
		q.Score = analysis.Score
	case q.Category == models.CategoryPending && analysis.Category != models.CategoryPending:
		q.Category = analysis.Category
		q.Score = analysis.Score
	}

	if update.Name != "" {
		q.Name = update.Name
	}
	if update.ContactID != "" {
		q.ContactID = update.ContactID
	}
	if update.CampaignID != "" {
		q.CampaignID = update.CampaignID
	}
	if update.CampaignName != "" {
		q.CampaignName = update.CampaignName
	}
	if update.AgentID != "" {
		q.AgentID = update.AgentID
	}
	if update.AgentName != "" {
		q.AgentName = update.AgentName
	}
}

// UpdateCategory is the manual operator override. It bypasses the automatic
// state machine entirely.
func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, category models.QualificationCategory, notes string) (*models.Qualification, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	q.Category = category
	if notes != "" {
		q.Notes = notes
	}

	if err := s.repo.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to update qualification category: %w", err)
	}

	s.logger.Info("qualification_category_overridden",
		zap.String("qualification_id", id.String()),
		zap.String("category", string(category)),
	)

	return q, nil
}

// UpdateNotes replaces the operator notes on a qualification.
func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Qualification, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	q.Notes = notes
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to update qualification notes: %w", err)
	}

	return q, nil
}
