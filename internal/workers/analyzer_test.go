package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/queue"
	"github.com/leadloop/engage/internal/services/ai"
	"github.com/leadloop/engage/internal/services/analytics"
	"go.uber.org/zap"
)

// In-memory repo mocks for the worker tests.

type mockAnalyticsRepo struct {
	byPhone map[string]*models.ContactAnalytics

	listPhonesErr error
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
	if m.listPhonesErr != nil {
		return nil, m.listPhonesErr
	}
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

// mockQueueMessage implements queue.MessageInterface without a broker.
type mockQueueMessage struct {
	job *queue.Job

	acked        bool
	nacked       bool
	nackRequeued bool
}

func (m *mockQueueMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockQueueMessage) Nack(requeue bool) error {
	m.nacked = true
	m.nackRequeued = requeue
	return nil
}

func (m *mockQueueMessage) GetJob() *queue.Job { return m.job }

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

func (m *mockJobQueue) Dequeue(ctx context.Context) (*queue.Message, error) { return nil, nil }

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	msgChan := make(chan *queue.Message)
	errChan := make(chan error)
	close(msgChan)
	close(errChan)
	return msgChan, errChan, nil
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

func newTestAnalyzer(assignmentRepo *mockAssignmentRepo, analyticsRepo *mockAnalyticsRepo, jobQueue queue.JobQueue) *ConversationAnalyzer {
	logger := zap.NewNop()
	interestAnalyzer := ai.NewInterestAnalyzer(nil, time.Second, logger)
	analyticsService := analytics.NewService(analyticsRepo, assignmentRepo, interestAnalyzer, logger)
	return NewConversationAnalyzer(analyticsService, analyticsRepo, jobQueue)
}

func seedConversation(assignmentRepo *mockAssignmentRepo, phone string, contents ...string) {
	assignment := &models.AgentAssignment{
		ID:       uuid.New(),
		Phone:    phone,
		AgentID:  "agent-1",
		IsActive: true,
	}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range contents {
		assignment.AppendHistory("user", content, base.Add(time.Duration(i)*time.Minute))
	}
	assignmentRepo.byPhone[phone] = assignment
}

func TestProcessConversationAnalysisJob(t *testing.T) {
	t.Parallel()

	assignmentRepo := newMockAssignmentRepo()
	analyticsRepo := newMockAnalyticsRepo()
	seedConversation(assignmentRepo, "14155550100", "how much does it cost?")

	analyzer := newTestAnalyzer(assignmentRepo, analyticsRepo, &mockJobQueue{})

	job := queue.NewJob(queue.JobTypeConversationAnalysis, "14155550100")
	if err := analyzer.ProcessConversationAnalysisJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessConversationAnalysisJob failed: %v", err)
	}

	record := analyticsRepo.byPhone["14155550100"]
	if record == nil {
		t.Fatal("Expected analytics record written")
	}
	if record.InterestLevel != models.InterestInterested {
		t.Errorf("InterestLevel = %s, want interested", record.InterestLevel)
	}
	if record.LastAnalyzedAt == nil {
		t.Error("Expected LastAnalyzedAt set")
	}
}

func TestProcessConversationAnalysisJob_RequiresPhone(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(newMockAssignmentRepo(), newMockAnalyticsRepo(), &mockJobQueue{})

	job := queue.NewJob(queue.JobTypeConversationAnalysis, "")
	if err := analyzer.ProcessConversationAnalysisJob(context.Background(), job); err == nil {
		t.Fatal("Expected error for job without a phone")
	}
}

func TestProcessConversationAnalysisJob_NoConversationIsNotAFailure(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(newMockAssignmentRepo(), newMockAnalyticsRepo(), &mockJobQueue{})

	job := queue.NewJob(queue.JobTypeConversationAnalysis, "19995550000")
	if err := analyzer.ProcessConversationAnalysisJob(context.Background(), job); err != nil {
		t.Fatalf("Expected nil for contact without a conversation, got %v", err)
	}
}

func TestProcessReanalyzeContactsJob(t *testing.T) {
	t.Parallel()

	assignmentRepo := newMockAssignmentRepo()
	analyticsRepo := newMockAnalyticsRepo()

	// Two tracked contacts with conversations, one stale record without one.
	seedConversation(assignmentRepo, "14155550100", "what's the price")
	seedConversation(assignmentRepo, "14155550101", "no thanks, stop")
	for _, phone := range []string{"14155550100", "14155550101", "14155550102"} {
		analyticsRepo.byPhone[phone] = &models.ContactAnalytics{ID: uuid.New(), Phone: phone}
	}

	analyzer := newTestAnalyzer(assignmentRepo, analyticsRepo, &mockJobQueue{})

	job := queue.NewJob(queue.JobTypeReanalyzeContacts, "")
	if err := analyzer.ProcessReanalyzeContactsJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessReanalyzeContactsJob failed: %v", err)
	}

	if analyticsRepo.byPhone["14155550100"].InterestLevel != models.InterestInterested {
		t.Errorf("First contact level = %s, want interested", analyticsRepo.byPhone["14155550100"].InterestLevel)
	}
	if analyticsRepo.byPhone["14155550101"].InterestLevel != models.InterestNotInterested {
		t.Errorf("Second contact level = %s, want not_interested", analyticsRepo.byPhone["14155550101"].InterestLevel)
	}
	// The contact without a conversation is skipped, not failed.
	if analyticsRepo.byPhone["14155550102"].LastAnalyzedAt != nil {
		t.Error("Expected stale contact untouched")
	}
}

func TestProcessReanalyzeContactsJob_ListError(t *testing.T) {
	t.Parallel()

	analyticsRepo := newMockAnalyticsRepo()
	analyticsRepo.listPhonesErr = errors.New("connection refused")
	analyzer := newTestAnalyzer(newMockAssignmentRepo(), analyticsRepo, &mockJobQueue{})

	job := queue.NewJob(queue.JobTypeReanalyzeContacts, "")
	if err := analyzer.ProcessReanalyzeContactsJob(context.Background(), job); err == nil {
		t.Fatal("Expected error when listing contacts fails")
	}
}

func TestProcessJob_AcksCompletedAnalysis(t *testing.T) {
	t.Parallel()

	assignmentRepo := newMockAssignmentRepo()
	analyticsRepo := newMockAnalyticsRepo()
	seedConversation(assignmentRepo, "14155550100", "hello")

	analyzer := newTestAnalyzer(assignmentRepo, analyticsRepo, &mockJobQueue{})

	msg := &mockQueueMessage{job: queue.NewJob(queue.JobTypeConversationAnalysis, "14155550100")}
	if err := analyzer.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if !msg.acked {
		t.Error("Expected message acked")
	}
	if msg.nacked {
		t.Error("Expected no nack")
	}
}

func TestProcessJob_NotReadyJobReturnsToQueue(t *testing.T) {
	t.Parallel()

	jobQueue := &mockJobQueue{}
	analyzer := newTestAnalyzer(newMockAssignmentRepo(), newMockAnalyticsRepo(), jobQueue)

	job := queue.NewJob(queue.JobTypeConversationAnalysis, "14155550100")
	future := time.Now().Add(time.Hour)
	job.NotBefore = &future

	msg := &mockQueueMessage{job: job}
	if err := analyzer.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}

	// An early delivery is re-enqueued, not dropped.
	if len(jobQueue.jobs) != 1 {
		t.Fatalf("Expected not-ready job re-enqueued, got %d jobs", len(jobQueue.jobs))
	}
	if jobQueue.jobs[0].NotBefore == nil || !jobQueue.jobs[0].NotBefore.Equal(future) {
		t.Errorf("Expected NotBefore %v preserved, got %v", future, jobQueue.jobs[0].NotBefore)
	}
	if !msg.acked {
		t.Error("Expected original delivery acked after re-enqueue")
	}
	if msg.nacked {
		t.Error("Expected no nack when re-enqueue succeeds")
	}
}

func TestProcessJob_NotReadyJobRequeuesWhenEnqueueFails(t *testing.T) {
	t.Parallel()

	jobQueue := &mockJobQueue{enqueueErr: errors.New("broker unavailable")}
	analyzer := newTestAnalyzer(newMockAssignmentRepo(), newMockAnalyticsRepo(), jobQueue)

	job := queue.NewJob(queue.JobTypeConversationAnalysis, "14155550100")
	future := time.Now().Add(time.Hour)
	job.NotBefore = &future

	msg := &mockQueueMessage{job: job}
	if err := analyzer.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if msg.acked {
		t.Error("Expected no ack when the re-enqueue failed")
	}
	if !msg.nacked || !msg.nackRequeued {
		t.Error("Expected nack with requeue so the job is not lost")
	}
}

// throttledProvider simulates a provider rejecting calls with an API error.
type throttledProvider struct {
	err error
}

func (p *throttledProvider) AnalyzeConversation(ctx context.Context, messages []models.ConversationMessage) (*ai.ConversationAnalysis, error) {
	return nil, p.err
}

func newThrottledAnalyzer(assignmentRepo *mockAssignmentRepo, analyticsRepo *mockAnalyticsRepo, jobQueue queue.JobQueue, providerErr error) *ConversationAnalyzer {
	logger := zap.NewNop()
	interestAnalyzer := ai.NewInterestAnalyzer(&throttledProvider{err: providerErr}, time.Second, logger)
	analyticsService := analytics.NewService(analyticsRepo, assignmentRepo, interestAnalyzer, logger)
	return NewConversationAnalyzer(analyticsService, analyticsRepo, jobQueue)
}

func TestProcessJob_QuotaErrorReEnqueuesWithDelay(t *testing.T) {
	t.Parallel()

	assignmentRepo := newMockAssignmentRepo()
	analyticsRepo := newMockAnalyticsRepo()
	seedConversation(assignmentRepo, "14155550100", "how much does it cost?")

	jobQueue := &mockJobQueue{}
	analyzer := newThrottledAnalyzer(assignmentRepo, analyticsRepo, jobQueue, &ai.APIError{
		StatusCode:  429,
		Code:        "insufficient_quota",
		IsPermanent: true,
		Message:     "You exceeded your current quota",
	})

	msg := &mockQueueMessage{job: queue.NewJob(queue.JobTypeConversationAnalysis, "14155550100")}
	if err := analyzer.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("Expected quota exhaustion handled via re-enqueue, got %v", err)
	}

	if !msg.acked {
		t.Error("Expected original message acked after delayed re-enqueue")
	}
	if len(jobQueue.jobs) != 1 {
		t.Fatalf("Expected 1 delayed retry job, got %d", len(jobQueue.jobs))
	}
	retry := jobQueue.jobs[0]
	if retry.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", retry.RetryCount)
	}
	if retry.NotBefore == nil {
		t.Fatal("Expected NotBefore set on the retry job")
	}
	if !retry.NotBefore.After(time.Now().Add(30 * time.Minute)) {
		t.Errorf("Expected quota retry at least an hour out, got %v", retry.NotBefore)
	}
	// No degraded record is persisted while the retry is pending.
	if _, ok := analyticsRepo.byPhone["14155550100"]; ok {
		t.Error("Expected no analytics record written for a throttled analysis")
	}
}

func TestProcessJob_RateLimitReEnqueuesWithBackoff(t *testing.T) {
	t.Parallel()

	assignmentRepo := newMockAssignmentRepo()
	analyticsRepo := newMockAnalyticsRepo()
	seedConversation(assignmentRepo, "14155550100", "hello")

	jobQueue := &mockJobQueue{}
	analyzer := newThrottledAnalyzer(assignmentRepo, analyticsRepo, jobQueue, &ai.APIError{
		StatusCode: 429,
		Type:       "rate_limit_error",
		Message:    "Rate limit reached",
	})

	msg := &mockQueueMessage{job: queue.NewJob(queue.JobTypeConversationAnalysis, "14155550100")}
	if err := analyzer.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("Expected rate limit handled via re-enqueue, got %v", err)
	}

	if !msg.acked {
		t.Error("Expected original message acked after delayed re-enqueue")
	}
	if len(jobQueue.jobs) != 1 {
		t.Fatalf("Expected 1 delayed retry job, got %d", len(jobQueue.jobs))
	}
	retry := jobQueue.jobs[0]
	if retry.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", retry.RetryCount)
	}
	now := time.Now()
	if retry.NotBefore == nil || !retry.NotBefore.After(now) {
		t.Fatalf("Expected a future NotBefore, got %v", retry.NotBefore)
	}
	if retry.NotBefore.After(now.Add(20 * time.Minute)) {
		t.Errorf("Expected a short rate limit backoff, got %v", retry.NotBefore)
	}
}

func TestProcessJob_UnknownTypeGoesToDLQ(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(newMockAssignmentRepo(), newMockAnalyticsRepo(), &mockJobQueue{})

	msg := &mockQueueMessage{job: queue.NewJob(queue.JobType("mystery"), "")}
	if err := analyzer.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for unknown job type")
	}
	if !msg.nacked || msg.nackRequeued {
		t.Error("Expected nack without requeue for unknown job type")
	}
}

func TestProcessJob_FailedJobRetries(t *testing.T) {
	t.Parallel()

	// A job without a phone fails validation inside the processor; standard
	// retry nacks with requeue while attempts remain.
	analyzer := newTestAnalyzer(newMockAssignmentRepo(), newMockAnalyticsRepo(), &mockJobQueue{})

	job := queue.NewJob(queue.JobTypeConversationAnalysis, "")
	msg := &mockQueueMessage{job: job}

	if err := analyzer.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for failing job")
	}
	if !msg.nacked || !msg.nackRequeued {
		t.Error("Expected nack with requeue while retries remain")
	}
	if job.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", job.RetryCount)
	}
}

func TestProcessJob_MaxRetriesGoesToDLQ(t *testing.T) {
	t.Parallel()

	analyzer := newTestAnalyzer(newMockAssignmentRepo(), newMockAnalyticsRepo(), &mockJobQueue{})

	job := queue.NewJob(queue.JobTypeConversationAnalysis, "")
	job.RetryCount = job.MaxRetries

	msg := &mockQueueMessage{job: job}
	if err := analyzer.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error at max retries")
	}
	if !msg.nacked || msg.nackRequeued {
		t.Error("Expected nack without requeue at max retries")
	}
}
