package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/services/ai"
	"go.uber.org/zap"
)

type mockAnalyticsRepo struct {
	byPhone map[string]*models.ContactAnalytics

	createErr error
	updateErr error

	createCalls int
	updateCalls int
}

func newMockAnalyticsRepo() *mockAnalyticsRepo {
	return &mockAnalyticsRepo{byPhone: make(map[string]*models.ContactAnalytics)}
}

func (m *mockAnalyticsRepo) Create(ctx context.Context, c *models.ContactAnalytics) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	m.byPhone[c.Phone] = c
	return nil
}

func (m *mockAnalyticsRepo) Update(ctx context.Context, c *models.ContactAnalytics) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.byPhone[c.Phone] = c
	return nil
}

func (m *mockAnalyticsRepo) FindByPhone(ctx context.Context, phone string) (*models.ContactAnalytics, error) {
	if c, ok := m.byPhone[models.NormalizePhone(phone)]; ok {
		return c, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockAnalyticsRepo) List(ctx context.Context, level *models.InterestLevel, limit, offset int) ([]*models.ContactAnalytics, int, error) {
	var out []*models.ContactAnalytics
	for _, c := range m.byPhone {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockAnalyticsRepo) ListAll(ctx context.Context) ([]*models.ContactAnalytics, error) {
	var out []*models.ContactAnalytics
	for _, c := range m.byPhone {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockAnalyticsRepo) ListAllPhones(ctx context.Context) ([]string, error) {
	var out []string
	for phone := range m.byPhone {
		out = append(out, phone)
	}
	return out, nil
}

type mockAssignmentRepo struct {
	byPhone map[string]*models.AgentAssignment
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{byPhone: make(map[string]*models.AgentAssignment)}
}

func (m *mockAssignmentRepo) Create(ctx context.Context, a *models.AgentAssignment) error {
	m.byPhone[a.Phone] = a
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, a *models.AgentAssignment) error {
	m.byPhone[a.Phone] = a
	return nil
}

func (m *mockAssignmentRepo) FindActiveByPhone(ctx context.Context, phone string) (*models.AgentAssignment, error) {
	a, ok := m.byPhone[models.NormalizePhone(phone)]
	if !ok || !a.IsActive {
		return nil, database.ErrNotFound
	}
	return a, nil
}

func (m *mockAssignmentRepo) FindByPhone(ctx context.Context, phone string) (*models.AgentAssignment, error) {
	if a, ok := m.byPhone[models.NormalizePhone(phone)]; ok {
		return a, nil
	}
	return nil, database.ErrNotFound
}

func seedAssignment(repo *mockAssignmentRepo, phone string, entries []models.HistoryEntry) {
	repo.byPhone[phone] = &models.AgentAssignment{
		ID:                  uuid.New(),
		ContactID:           "contact-1",
		Phone:               phone,
		AgentID:             "agent-1",
		ConversationHistory: entries,
		IsActive:            true,
	}
}

func TestAnalyzeAndUpdateContact_FallbackPath(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	assignmentRepo := newMockAssignmentRepo()
	seedAssignment(assignmentRepo, "14155550100", []models.HistoryEntry{
		{Role: "assistant", Content: "Hi! Interested in our offer?", Timestamp: base},
		{Role: "user", Content: "how much does it cost?", Timestamp: base.Add(10 * time.Minute)},
	})

	analyticsRepo := newMockAnalyticsRepo()
	// nil provider forces the keyword fallback
	analyzer := ai.NewInterestAnalyzer(nil, time.Second, zap.NewNop())
	svc := NewService(analyticsRepo, assignmentRepo, analyzer, zap.NewNop())

	record, err := svc.AnalyzeAndUpdateContact(context.Background(), "14155550100")
	if err != nil {
		t.Fatalf("AnalyzeAndUpdateContact failed: %v", err)
	}

	if record.InterestReason != ai.FallbackReason {
		t.Errorf("Expected fallback tag, got %q", record.InterestReason)
	}
	if record.InterestLevel != models.InterestInterested {
		t.Errorf("InterestLevel = %s, want interested", record.InterestLevel)
	}
	if record.LastAnalyzedAt == nil {
		t.Error("Expected LastAnalyzedAt set")
	}

	// Counts recomputed from the transcript.
	if record.TotalMessages != 2 || record.InboundMessages != 1 || record.OutboundMessages != 1 {
		t.Errorf("Counts = %d/%d/%d, want 2/1/1", record.TotalMessages, record.InboundMessages, record.OutboundMessages)
	}
	if record.ConversationDuration != 10 {
		t.Errorf("ConversationDuration = %d, want 10", record.ConversationDuration)
	}
	if !record.FirstContactTime.Equal(base) {
		t.Errorf("FirstContactTime = %v, want %v", record.FirstContactTime, base)
	}

	if analyticsRepo.createCalls != 1 {
		t.Errorf("Expected record created on first analysis, got %d creates", analyticsRepo.createCalls)
	}
	if analyticsRepo.updateCalls != 1 {
		t.Errorf("Expected 1 update, got %d", analyticsRepo.updateCalls)
	}
}

func TestAnalyzeAndUpdateContact_ReplacesExistingRecord(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	assignmentRepo := newMockAssignmentRepo()
	seedAssignment(assignmentRepo, "14155550100", []models.HistoryEntry{
		{Role: "user", Content: "no thanks, stop", Timestamp: base},
	})

	analyticsRepo := newMockAnalyticsRepo()
	analyticsRepo.byPhone["14155550100"] = &models.ContactAnalytics{
		ID:            uuid.New(),
		Phone:         "14155550100",
		InterestLevel: models.InterestHighly,
		InterestScore: 95,
	}

	analyzer := ai.NewInterestAnalyzer(nil, time.Second, zap.NewNop())
	svc := NewService(analyticsRepo, assignmentRepo, analyzer, zap.NewNop())

	record, err := svc.AnalyzeAndUpdateContact(context.Background(), "14155550100")
	if err != nil {
		t.Fatalf("AnalyzeAndUpdateContact failed: %v", err)
	}

	// Latest analysis replaces the stored assessment wholesale.
	if record.InterestLevel != models.InterestNotInterested {
		t.Errorf("InterestLevel = %s, want not_interested", record.InterestLevel)
	}
	if analyticsRepo.createCalls != 0 {
		t.Errorf("Expected no create for existing record, got %d", analyticsRepo.createCalls)
	}
}

func TestAnalyzeAndUpdateContact_NoAssignment(t *testing.T) {
	t.Parallel()

	analyzer := ai.NewInterestAnalyzer(nil, time.Second, zap.NewNop())
	svc := NewService(newMockAnalyticsRepo(), newMockAssignmentRepo(), analyzer, zap.NewNop())

	_, err := svc.AnalyzeAndUpdateContact(context.Background(), "14155550100")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound without an assignment, got %v", err)
	}
}

func TestTrackAgentInteraction_CreatesRecordAndEntry(t *testing.T) {
	t.Parallel()

	analyticsRepo := newMockAnalyticsRepo()
	analyzer := ai.NewInterestAnalyzer(nil, time.Second, zap.NewNop())
	svc := NewService(analyticsRepo, newMockAssignmentRepo(), analyzer, zap.NewNop())

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	err := svc.TrackAgentInteraction(context.Background(), "14155550100", "contact-1", "Alex", "agent-1", "Promo Bot", models.DirectionOutbound, at)
	if err != nil {
		t.Fatalf("TrackAgentInteraction failed: %v", err)
	}

	record := analyticsRepo.byPhone["14155550100"]
	if record == nil {
		t.Fatal("Expected record created")
	}
	if record.InterestLevel != models.InterestPending || record.InterestScore != 50 {
		t.Errorf("Expected fresh record pending/50, got %s/%d", record.InterestLevel, record.InterestScore)
	}
	if record.TotalMessages != 1 || record.OutboundMessages != 1 || record.InboundMessages != 0 {
		t.Errorf("Counts = %d/%d/%d, want 1/1/0", record.TotalMessages, record.OutboundMessages, record.InboundMessages)
	}
	if record.ContactName != "Alex" {
		t.Errorf("ContactName = %q, want 'Alex'", record.ContactName)
	}

	if len(record.AIAgentInteractions) != 1 {
		t.Fatalf("Expected 1 agent interaction, got %d", len(record.AIAgentInteractions))
	}
	entry := record.AIAgentInteractions[0]
	if entry.AgentID != "agent-1" || entry.AgentName != "Promo Bot" {
		t.Errorf("Entry = %+v", entry)
	}
	if entry.MessagesCount != 1 {
		t.Errorf("MessagesCount = %d, want 1", entry.MessagesCount)
	}
	if !entry.FirstInteraction.Equal(at) || !entry.LastInteraction.Equal(at) {
		t.Error("Expected first and last interaction at the message time")
	}
}

func TestTrackAgentInteraction_AccumulatesPerAgent(t *testing.T) {
	t.Parallel()

	analyticsRepo := newMockAnalyticsRepo()
	analyzer := ai.NewInterestAnalyzer(nil, time.Second, zap.NewNop())
	svc := NewService(analyticsRepo, newMockAssignmentRepo(), analyzer, zap.NewNop())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	steps := []struct {
		agentID   string
		direction models.MessageDirection
		at        time.Time
	}{
		{"agent-1", models.DirectionOutbound, base},
		{"agent-1", models.DirectionInbound, base.Add(5 * time.Minute)},
		{"agent-2", models.DirectionOutbound, base.Add(10 * time.Minute)},
		{"agent-1", models.DirectionOutbound, base.Add(30 * time.Minute)},
	}
	for _, step := range steps {
		if err := svc.TrackAgentInteraction(context.Background(), "14155550100", "contact-1", "", step.agentID, "", step.direction, step.at); err != nil {
			t.Fatalf("TrackAgentInteraction failed: %v", err)
		}
	}

	record := analyticsRepo.byPhone["14155550100"]
	if record.TotalMessages != 4 || record.InboundMessages != 1 || record.OutboundMessages != 3 {
		t.Errorf("Counts = %d/%d/%d, want 4/1/3", record.TotalMessages, record.InboundMessages, record.OutboundMessages)
	}
	if record.ConversationDuration != 30 {
		t.Errorf("ConversationDuration = %d, want 30", record.ConversationDuration)
	}

	if len(record.AIAgentInteractions) != 2 {
		t.Fatalf("Expected 2 agent entries, got %d", len(record.AIAgentInteractions))
	}
	first := record.FindAgentInteraction("agent-1")
	if first.MessagesCount != 3 {
		t.Errorf("agent-1 MessagesCount = %d, want 3", first.MessagesCount)
	}
	if first.DurationMinutes != 30 {
		t.Errorf("agent-1 DurationMinutes = %d, want 30", first.DurationMinutes)
	}
	second := record.FindAgentInteraction("agent-2")
	if second.MessagesCount != 1 {
		t.Errorf("agent-2 MessagesCount = %d, want 1", second.MessagesCount)
	}
}

func TestTrackAgentInteraction_NoAgentSkipsLedger(t *testing.T) {
	t.Parallel()

	analyticsRepo := newMockAnalyticsRepo()
	analyzer := ai.NewInterestAnalyzer(nil, time.Second, zap.NewNop())
	svc := NewService(analyticsRepo, newMockAssignmentRepo(), analyzer, zap.NewNop())

	err := svc.TrackAgentInteraction(context.Background(), "14155550100", "", "", "", "", models.DirectionInbound, time.Now())
	if err != nil {
		t.Fatalf("TrackAgentInteraction failed: %v", err)
	}

	record := analyticsRepo.byPhone["14155550100"]
	if record.TotalMessages != 1 || record.InboundMessages != 1 {
		t.Errorf("Counts = %d/%d, want 1/1", record.TotalMessages, record.InboundMessages)
	}
	if len(record.AIAgentInteractions) != 0 {
		t.Errorf("Expected no agent entries without an agent ID, got %d", len(record.AIAgentInteractions))
	}
}

func TestTrackAgentInteraction_UpdateError(t *testing.T) {
	t.Parallel()

	analyticsRepo := newMockAnalyticsRepo()
	analyticsRepo.updateErr = errors.New("connection refused")
	analyzer := ai.NewInterestAnalyzer(nil, time.Second, zap.NewNop())
	svc := NewService(analyticsRepo, newMockAssignmentRepo(), analyzer, zap.NewNop())

	err := svc.TrackAgentInteraction(context.Background(), "14155550100", "", "", "agent-1", "", models.DirectionInbound, time.Now())
	if err == nil {
		t.Fatal("Expected error when update fails")
	}
}
