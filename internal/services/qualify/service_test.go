package qualify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"go.uber.org/zap"
)

// mockQualificationRepo is an in-memory QualificationRepositoryInterface for
// service tests.
type mockQualificationRepo struct {
	byPhone map[string]*models.Qualification
	byID    map[uuid.UUID]*models.Qualification

	createErr error
	updateErr error
	findErr   error

	createCalls int
	updateCalls int
}

func newMockQualificationRepo() *mockQualificationRepo {
	return &mockQualificationRepo{
		byPhone: make(map[string]*models.Qualification),
		byID:    make(map[uuid.UUID]*models.Qualification),
	}
}

func (m *mockQualificationRepo) Create(ctx context.Context, q *models.Qualification) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	m.byPhone[q.Phone] = q
	m.byID[q.ID] = q
	return nil
}

func (m *mockQualificationRepo) Update(ctx context.Context, q *models.Qualification) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.byPhone[q.Phone] = q
	m.byID[q.ID] = q
	return nil
}

func (m *mockQualificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Qualification, error) {
	if q, ok := m.byID[id]; ok {
		return q, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockQualificationRepo) FindByPhone(ctx context.Context, phone string) (*models.Qualification, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if q, ok := m.byPhone[models.NormalizePhone(phone)]; ok {
		return q, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockQualificationRepo) List(ctx context.Context, source *models.Source, limit, offset int) ([]*models.Qualification, int, error) {
	var out []*models.Qualification
	for _, q := range m.byPhone {
		if source != nil && q.Source != *source {
			continue
		}
		out = append(out, q)
	}
	return out, len(out), nil
}

func (m *mockQualificationRepo) ListAll(ctx context.Context) ([]*models.Qualification, error) {
	var out []*models.Qualification
	for _, q := range m.byPhone {
		out = append(out, q)
	}
	return out, nil
}

func TestCreateOrUpdate_FirstContact(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	q, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:   "+1 (415) 555-0100",
		Name:    "Alex",
		Message: "How much does it cost?",
		Source:  models.SourceAIChat,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	if q.Phone != "14155550100" {
		t.Errorf("Expected normalized phone '14155550100', got %q", q.Phone)
	}
	if q.Category != models.CategoryInterested {
		t.Errorf("Expected category interested, got %s", q.Category)
	}
	if q.Score != 65 {
		t.Errorf("Expected score 65, got %d", q.Score)
	}
	if q.TotalMessages != 1 {
		t.Errorf("Expected TotalMessages 1, got %d", q.TotalMessages)
	}
	if repo.createCalls != 1 {
		t.Errorf("Expected 1 create call, got %d", repo.createCalls)
	}
}

func TestCreateOrUpdate_EmptyPhone(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockQualificationRepo(), zap.NewNop())

	_, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:   "no digits here",
		Message: "hello",
	})
	if !errors.Is(err, ErrEmptyPhone) {
		t.Errorf("Expected ErrEmptyPhone, got %v", err)
	}
}

func TestCreateOrUpdate_DefaultSource(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	q, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:   "14155550100",
		Message: "hello",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}
	if q.Source != models.SourceManual {
		t.Errorf("Expected default source manual, got %s", q.Source)
	}
}

func TestCreateOrUpdate_MergeStateMachine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		messages     []string
		wantCategory models.QualificationCategory
		wantScore    int
		wantTotal    int
	}{
		{
			name:         "interested raises score only when higher",
			messages:     []string{"interested in a demo", "what's the price"},
			wantCategory: models.CategoryInterested,
			wantScore:    80, // 50+15+15 from first message; second scores 65 and does not lower it
			wantTotal:    2,
		},
		{
			name:         "not_interested always wins",
			messages:     []string{"interested in a demo", "actually stop contacting me"},
			wantCategory: models.CategoryNotInterested,
			wantScore:    30,
			wantTotal:    2,
		},
		{
			name:         "pending adopts first non-pending result",
			messages:     []string{"hello", "what's the price"},
			wantCategory: models.CategoryInterested,
			wantScore:    65,
			wantTotal:    2,
		},
		{
			name:         "pending message leaves interested record alone",
			messages:     []string{"what's the price", "ok"},
			wantCategory: models.CategoryInterested,
			wantScore:    65,
			wantTotal:    2,
		},
		{
			name:         "opt-out is terminal against later interest",
			messages:     []string{"stop", "actually how much is it"},
			wantCategory: models.CategoryNotInterested,
			wantScore:    30,
			wantTotal:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMockQualificationRepo()
			svc := NewService(repo, zap.NewNop())

			var q *models.Qualification
			var err error
			for _, msg := range tt.messages {
				q, err = svc.CreateOrUpdate(context.Background(), ContactUpdate{
					Phone:   "14155550100",
					Message: msg,
				})
				if err != nil {
					t.Fatalf("CreateOrUpdate(%q) failed: %v", msg, err)
				}
			}

			if q.Category != tt.wantCategory {
				t.Errorf("Category = %s, want %s", q.Category, tt.wantCategory)
			}
			if q.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", q.Score, tt.wantScore)
			}
			if q.TotalMessages != tt.wantTotal {
				t.Errorf("TotalMessages = %d, want %d", q.TotalMessages, tt.wantTotal)
			}
		})
	}
}

func TestCreateOrUpdate_OutboundMessagesCountedNotScored(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	// An inbound question establishes interest.
	_, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:     "14155550100",
		Message:   "what's the price",
		Direction: models.DirectionInbound,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	// The agent's reply is full of keyword triggers but is agent-authored.
	q, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:     "14155550100",
		Message:   "Great! The price is $99, want to book a demo or schedule a call?",
		Direction: models.DirectionOutbound,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	if q.Category != models.CategoryInterested {
		t.Errorf("Category = %s, want interested unchanged by outbound message", q.Category)
	}
	if q.Score != 65 {
		t.Errorf("Score = %d, want 65 unchanged by outbound message", q.Score)
	}
	if q.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", q.TotalMessages)
	}
	if len(q.Keywords) != 1 || q.Keywords[0] != "price" {
		t.Errorf("Expected only the inbound keyword, got %v", q.Keywords)
	}
}

func TestCreateOrUpdate_OutboundFirstContactStaysPending(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	q, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:     "14155550100",
		Message:   "Hi! Interested in a demo? Check our price list",
		Direction: models.DirectionOutbound,
		Source:    models.SourceCampaign,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	if q.Category != models.CategoryPending {
		t.Errorf("Category = %s, want pending for an outbound opener", q.Category)
	}
	if q.Score != 50 {
		t.Errorf("Score = %d, want 50", q.Score)
	}
	if len(q.Keywords) != 0 {
		t.Errorf("Expected no keywords from an outbound opener, got %v", q.Keywords)
	}
}

func TestCreateOrUpdate_KeywordsNeverShrink(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	messages := []string{"what's the price", "stop", "ok"}
	var q *models.Qualification
	var err error
	for _, msg := range messages {
		q, err = svc.CreateOrUpdate(context.Background(), ContactUpdate{
			Phone:   "14155550100",
			Message: msg,
		})
		if err != nil {
			t.Fatalf("CreateOrUpdate(%q) failed: %v", msg, err)
		}
	}

	want := map[string]bool{"price": true, "stop": true}
	if len(q.Keywords) != len(want) {
		t.Fatalf("Expected %d keywords, got %v", len(want), q.Keywords)
	}
	for _, kw := range q.Keywords {
		if !want[kw] {
			t.Errorf("Unexpected keyword %q", kw)
		}
	}
}

func TestCreateOrUpdate_ContactFieldsOverwriteOnlyWhenSupplied(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	_, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:        "14155550100",
		Name:         "Alex",
		Message:      "hello",
		CampaignID:   "camp-1",
		CampaignName: "Spring",
		AgentID:      "agent-1",
		AgentName:    "Promo Bot",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	q, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:   "14155550100",
		Message: "ok",
		AgentID: "agent-2",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	if q.AgentID != "agent-2" {
		t.Errorf("Expected AgentID 'agent-2', got %q", q.AgentID)
	}
	if q.Name != "Alex" {
		t.Errorf("Expected Name 'Alex' retained, got %q", q.Name)
	}
	if q.CampaignID != "camp-1" {
		t.Errorf("Expected CampaignID 'camp-1' retained, got %q", q.CampaignID)
	}
}

func TestCreateOrUpdate_RepoLookupError(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	repo.findErr = errors.New("connection refused")
	svc := NewService(repo, zap.NewNop())

	_, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:   "14155550100",
		Message: "hello",
	})
	if err == nil {
		t.Fatal("Expected error when lookup fails")
	}
	if repo.createCalls != 0 {
		t.Errorf("Expected no create on lookup failure, got %d", repo.createCalls)
	}
}

func TestUpdateCategory_Override(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	created, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:   "14155550100",
		Message: "stop",
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}
	if created.Category != models.CategoryNotInterested {
		t.Fatalf("Precondition failed, category = %s", created.Category)
	}

	// The manual override bypasses the monotonic state machine.
	q, err := svc.UpdateCategory(context.Background(), created.ID, models.CategoryInterested, "spoke on the phone, wants a follow-up")
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}
	if q.Category != models.CategoryInterested {
		t.Errorf("Expected category interested after override, got %s", q.Category)
	}
	if q.Notes != "spoke on the phone, wants a follow-up" {
		t.Errorf("Expected notes stored, got %q", q.Notes)
	}
}

func TestUpdateCategory_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockQualificationRepo(), zap.NewNop())

	_, err := svc.UpdateCategory(context.Background(), uuid.New(), models.CategoryInterested, "")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateNotes(t *testing.T) {
	t.Parallel()

	repo := newMockQualificationRepo()
	svc := NewService(repo, zap.NewNop())

	created, err := svc.CreateOrUpdate(context.Background(), ContactUpdate{
		Phone:     "14155550100",
		Message:   "hello",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	q, err := svc.UpdateNotes(context.Background(), created.ID, "left voicemail")
	if err != nil {
		t.Fatalf("UpdateNotes failed: %v", err)
	}
	if q.Notes != "left voicemail" {
		t.Errorf("Expected notes 'left voicemail', got %q", q.Notes)
	}
}
