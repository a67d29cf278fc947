package reports

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"go.uber.org/zap"
)

type mockQualRepo struct {
	records []*models.Qualification
	err     error
}

func (m *mockQualRepo) Create(ctx context.Context, q *models.Qualification) error { return nil }
func (m *mockQualRepo) Update(ctx context.Context, q *models.Qualification) error { return nil }
func (m *mockQualRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Qualification, error) {
	return nil, database.ErrNotFound
}
func (m *mockQualRepo) FindByPhone(ctx context.Context, phone string) (*models.Qualification, error) {
	return nil, database.ErrNotFound
}
func (m *mockQualRepo) List(ctx context.Context, source *models.Source, limit, offset int) ([]*models.Qualification, int, error) {
	return m.records, len(m.records), m.err
}
func (m *mockQualRepo) ListAll(ctx context.Context) ([]*models.Qualification, error) {
	return m.records, m.err
}

type mockAnalyticsRepo struct {
	records []*models.ContactAnalytics
	err     error
}

func (m *mockAnalyticsRepo) Create(ctx context.Context, c *models.ContactAnalytics) error { return nil }
func (m *mockAnalyticsRepo) Update(ctx context.Context, c *models.ContactAnalytics) error { return nil }
func (m *mockAnalyticsRepo) FindByPhone(ctx context.Context, phone string) (*models.ContactAnalytics, error) {
	return nil, database.ErrNotFound
}
func (m *mockAnalyticsRepo) List(ctx context.Context, level *models.InterestLevel, limit, offset int) ([]*models.ContactAnalytics, int, error) {
	return m.records, len(m.records), m.err
}
func (m *mockAnalyticsRepo) ListAll(ctx context.Context) ([]*models.ContactAnalytics, error) {
	return m.records, m.err
}
func (m *mockAnalyticsRepo) ListAllPhones(ctx context.Context) ([]string, error) {
	var phones []string
	for _, r := range m.records {
		phones = append(phones, r.Phone)
	}
	return phones, m.err
}

func qual(category models.QualificationCategory, source models.Source) *models.Qualification {
	return &models.Qualification{ID: uuid.New(), Category: category, Source: source}
}

func TestGetQualificationStats(t *testing.T) {
	t.Parallel()

	qualRepo := &mockQualRepo{records: []*models.Qualification{
		qual(models.CategoryInterested, models.SourceAIChat),
		qual(models.CategoryInterested, models.SourceAIChat),
		qual(models.CategoryNotInterested, models.SourceCampaign),
		qual(models.CategoryPending, models.SourceManual),
	}}
	svc := NewService(qualRepo, &mockAnalyticsRepo{}, zap.NewNop())

	stats, err := svc.GetQualificationStats(context.Background())
	if err != nil {
		t.Fatalf("GetQualificationStats failed: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.Interested != 2 || stats.NotInterested != 1 || stats.Pending != 1 {
		t.Errorf("Counts = %d/%d/%d, want 2/1/1", stats.Interested, stats.NotInterested, stats.Pending)
	}
	if stats.InterestedPercent != 50 {
		t.Errorf("InterestedPercent = %d, want 50", stats.InterestedPercent)
	}
	if stats.NotInterestedPercent != 25 || stats.PendingPercent != 25 {
		t.Errorf("Percentages = %d/%d, want 25/25", stats.NotInterestedPercent, stats.PendingPercent)
	}
}

func TestGetQualificationStats_EmptyDataset(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockQualRepo{}, &mockAnalyticsRepo{}, zap.NewNop())

	stats, err := svc.GetQualificationStats(context.Background())
	if err != nil {
		t.Fatalf("GetQualificationStats failed: %v", err)
	}

	// Zero total never divides; every field is zero.
	if stats.Total != 0 || stats.InterestedPercent != 0 || stats.PendingPercent != 0 {
		t.Errorf("Expected all-zero stats, got %+v", stats)
	}
}

func TestGetQualificationStats_RoundsPercentages(t *testing.T) {
	t.Parallel()

	// 1 of 3 is 33.33, 2 of 3 is 66.67; rounded to 33 and 67.
	qualRepo := &mockQualRepo{records: []*models.Qualification{
		qual(models.CategoryInterested, models.SourceAIChat),
		qual(models.CategoryPending, models.SourceAIChat),
		qual(models.CategoryPending, models.SourceAIChat),
	}}
	svc := NewService(qualRepo, &mockAnalyticsRepo{}, zap.NewNop())

	stats, err := svc.GetQualificationStats(context.Background())
	if err != nil {
		t.Fatalf("GetQualificationStats failed: %v", err)
	}
	if stats.InterestedPercent != 33 {
		t.Errorf("InterestedPercent = %d, want 33", stats.InterestedPercent)
	}
	if stats.PendingPercent != 67 {
		t.Errorf("PendingPercent = %d, want 67", stats.PendingPercent)
	}
}

func TestGetQualificationReport_SourceGroupingIsZeroFilled(t *testing.T) {
	t.Parallel()

	qualRepo := &mockQualRepo{records: []*models.Qualification{
		qual(models.CategoryInterested, models.SourceAIChat),
	}}
	svc := NewService(qualRepo, &mockAnalyticsRepo{}, zap.NewNop())

	report, err := svc.GetQualificationReport(context.Background())
	if err != nil {
		t.Fatalf("GetQualificationReport failed: %v", err)
	}

	if len(report.BySource) != len(models.Sources()) {
		t.Fatalf("Expected %d source groups, got %d", len(models.Sources()), len(report.BySource))
	}

	found := make(map[string]GroupStats)
	for _, g := range report.BySource {
		found[g.Key] = g
	}
	if found["ai_chat"].Total != 1 || found["ai_chat"].Interested != 1 {
		t.Errorf("ai_chat group = %+v", found["ai_chat"])
	}
	if found["campaign"].Total != 0 {
		t.Errorf("Expected zero-filled campaign group, got %+v", found["campaign"])
	}
}

func TestGetQualificationReport_CampaignAndAgentGroups(t *testing.T) {
	t.Parallel()

	withCampaign := func(category models.QualificationCategory, campaignID, campaignName string) *models.Qualification {
		q := qual(category, models.SourceCampaign)
		q.CampaignID = campaignID
		q.CampaignName = campaignName
		return q
	}

	records := []*models.Qualification{
		withCampaign(models.CategoryInterested, "camp-1", "Spring Sale"),
		withCampaign(models.CategoryPending, "camp-1", "Renamed Later"),
		withCampaign(models.CategoryNotInterested, "camp-2", "Autumn Push"),
		qual(models.CategoryPending, models.SourceManual), // no campaign, skipped
	}
	records[0].AgentID = "agent-1"
	records[0].AgentName = "Promo Bot"

	svc := NewService(&mockQualRepo{records: records}, &mockAnalyticsRepo{}, zap.NewNop())

	report, err := svc.GetQualificationReport(context.Background())
	if err != nil {
		t.Fatalf("GetQualificationReport failed: %v", err)
	}

	if len(report.ByCampaign) != 2 {
		t.Fatalf("Expected 2 campaign groups, got %d", len(report.ByCampaign))
	}
	first := report.ByCampaign[0]
	if first.Key != "camp-1" {
		t.Errorf("Expected insertion order preserved, first key = %q", first.Key)
	}
	if first.Name != "Spring Sale" {
		t.Errorf("Expected display name from first record, got %q", first.Name)
	}
	if first.Total != 2 || first.Interested != 1 || first.Pending != 1 {
		t.Errorf("camp-1 stats = %+v", first.QualificationStats)
	}

	if len(report.ByAgent) != 1 {
		t.Fatalf("Expected 1 agent group, got %d", len(report.ByAgent))
	}
	if report.ByAgent[0].Key != "agent-1" || report.ByAgent[0].Name != "Promo Bot" {
		t.Errorf("Agent group = %+v", report.ByAgent[0])
	}
}

func TestGetQualificationReport_RepoError(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockQualRepo{err: errors.New("connection refused")}, &mockAnalyticsRepo{}, zap.NewNop())

	if _, err := svc.GetQualificationReport(context.Background()); err == nil {
		t.Fatal("Expected error when repo fails")
	}
}

func TestGetAnalyticsSummary(t *testing.T) {
	t.Parallel()

	analyticsRepo := &mockAnalyticsRepo{records: []*models.ContactAnalytics{
		{Phone: "14155550100", InterestLevel: models.InterestHighly, InterestScore: 90},
		{Phone: "14155550101", InterestLevel: models.InterestInterested, InterestScore: 70},
		{Phone: "14155550102", InterestLevel: models.InterestInterested, InterestScore: 65},
	}}
	svc := NewService(&mockQualRepo{}, analyticsRepo, zap.NewNop())

	summary, err := svc.GetAnalyticsSummary(context.Background())
	if err != nil {
		t.Fatalf("GetAnalyticsSummary failed: %v", err)
	}

	if summary.Total != 3 {
		t.Errorf("Total = %d, want 3", summary.Total)
	}

	// Every level appears, observed or not.
	if len(summary.ByInterestLevel) != len(models.InterestLevels()) {
		t.Fatalf("Expected %d level entries, got %d", len(models.InterestLevels()), len(summary.ByInterestLevel))
	}
	counts := make(map[models.InterestLevel]int)
	for _, lc := range summary.ByInterestLevel {
		counts[lc.Level] = lc.Count
	}
	if counts[models.InterestInterested] != 2 || counts[models.InterestHighly] != 1 {
		t.Errorf("Level counts = %v", counts)
	}
	if counts[models.InterestPending] != 0 {
		t.Errorf("Expected zero-filled pending, got %d", counts[models.InterestPending])
	}

	// (90+70+65)/3 = 75
	if summary.AverageScore != 75 {
		t.Errorf("AverageScore = %v, want 75", summary.AverageScore)
	}
}

func TestGetAnalyticsSummary_AverageRoundsToTwoDecimals(t *testing.T) {
	t.Parallel()

	analyticsRepo := &mockAnalyticsRepo{records: []*models.ContactAnalytics{
		{InterestScore: 50},
		{InterestScore: 50},
		{InterestScore: 51},
	}}
	svc := NewService(&mockQualRepo{}, analyticsRepo, zap.NewNop())

	summary, err := svc.GetAnalyticsSummary(context.Background())
	if err != nil {
		t.Fatalf("GetAnalyticsSummary failed: %v", err)
	}
	if summary.AverageScore != 50.33 {
		t.Errorf("AverageScore = %v, want 50.33", summary.AverageScore)
	}
}

func TestGetAnalyticsSummary_TopAgents(t *testing.T) {
	t.Parallel()

	// Seven agents; agent-3 touches the most contacts.
	var records []*models.ContactAnalytics
	for i := 0; i < 4; i++ {
		records = append(records, &models.ContactAnalytics{
			Phone: fmt.Sprintf("1415555010%d", i),
			AIAgentInteractions: []models.AgentInteraction{
				{AgentID: "agent-3", AgentName: "Closer Bot", MessagesCount: 5},
			},
		})
	}
	for i := 0; i < 7; i++ {
		records = append(records, &models.ContactAnalytics{
			Phone: fmt.Sprintf("1415555020%d", i),
			AIAgentInteractions: []models.AgentInteraction{
				{AgentID: fmt.Sprintf("agent-%d", i+10), MessagesCount: 1},
			},
		})
	}

	svc := NewService(&mockQualRepo{}, &mockAnalyticsRepo{records: records}, zap.NewNop())

	summary, err := svc.GetAnalyticsSummary(context.Background())
	if err != nil {
		t.Fatalf("GetAnalyticsSummary failed: %v", err)
	}

	if len(summary.TopAgents) != 5 {
		t.Fatalf("Expected top list capped at 5, got %d", len(summary.TopAgents))
	}
	top := summary.TopAgents[0]
	if top.AgentID != "agent-3" {
		t.Errorf("Expected agent-3 on top, got %q", top.AgentID)
	}
	if top.TotalContacts != 4 {
		t.Errorf("TotalContacts = %d, want 4", top.TotalContacts)
	}
	if top.TotalMessages != 20 {
		t.Errorf("TotalMessages = %d, want 20", top.TotalMessages)
	}
	if top.AgentName != "Closer Bot" {
		t.Errorf("AgentName = %q, want 'Closer Bot'", top.AgentName)
	}
}

func TestGetAnalyticsSummary_Empty(t *testing.T) {
	t.Parallel()

	svc := NewService(&mockQualRepo{}, &mockAnalyticsRepo{}, zap.NewNop())

	summary, err := svc.GetAnalyticsSummary(context.Background())
	if err != nil {
		t.Fatalf("GetAnalyticsSummary failed: %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("Total = %d, want 0", summary.Total)
	}
	if summary.AverageScore != 0 {
		t.Errorf("AverageScore = %v, want 0", summary.AverageScore)
	}
	if len(summary.TopAgents) != 0 {
		t.Errorf("Expected no agents, got %v", summary.TopAgents)
	}
}
