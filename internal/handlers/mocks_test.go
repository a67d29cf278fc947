package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/queue"
)

// In-memory repository mocks shared by the handler tests.

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

type mockQualificationRepo struct {
	byPhone map[string]*models.Qualification
	byID    map[uuid.UUID]*models.Qualification
}

func newMockQualificationRepo() *mockQualificationRepo {
	return &mockQualificationRepo{
		byPhone: make(map[string]*models.Qualification),
		byID:    make(map[uuid.UUID]*models.Qualification),
	}
}

func (m *mockQualificationRepo) Create(ctx context.Context, q *models.Qualification) error {
	m.byPhone[q.Phone] = q
	m.byID[q.ID] = q
	return nil
}

func (m *mockQualificationRepo) Update(ctx context.Context, q *models.Qualification) error {
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

type mockAnalyticsRepo struct {
	byPhone map[string]*models.ContactAnalytics
}

func newMockAnalyticsRepo() *mockAnalyticsRepo {
	return &mockAnalyticsRepo{byPhone: make(map[string]*models.ContactAnalytics)}
}

func (m *mockAnalyticsRepo) Create(ctx context.Context, c *models.ContactAnalytics) error {
	m.byPhone[c.Phone] = c
	return nil
}

func (m *mockAnalyticsRepo) Update(ctx context.Context, c *models.ContactAnalytics) error {
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
		if level != nil && c.InterestLevel != *level {
			continue
		}
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

// mockJobQueue records enqueued jobs.
type mockJobQueue struct {
	jobs       []*queue.Job
	enqueueErr error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobQueue) Dequeue(ctx context.Context) (*queue.Message, error) {
	return nil, nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	msgChan := make(chan *queue.Message)
	errChan := make(chan error)
	close(msgChan)
	close(errChan)
	return msgChan, errChan, nil
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)
