package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/models"
)

// AssignmentRepositoryInterface defines the assignment repository operations.
// The narrow interfaces in this file exist so services and workers can be
// tested against in-memory mocks.
type AssignmentRepositoryInterface interface {
	Create(ctx context.Context, a *models.AgentAssignment) error
	Update(ctx context.Context, a *models.AgentAssignment) error
	FindActiveByPhone(ctx context.Context, phone string) (*models.AgentAssignment, error)
	FindByPhone(ctx context.Context, phone string) (*models.AgentAssignment, error)
}

// QualificationRepositoryInterface defines the qualification repository operations
type QualificationRepositoryInterface interface {
	Create(ctx context.Context, q *models.Qualification) error
	Update(ctx context.Context, q *models.Qualification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Qualification, error)
	FindByPhone(ctx context.Context, phone string) (*models.Qualification, error)
	List(ctx context.Context, source *models.Source, limit, offset int) ([]*models.Qualification, int, error)
	ListAll(ctx context.Context) ([]*models.Qualification, error)
}

// AnalyticsRepositoryInterface defines the contact analytics repository operations
type AnalyticsRepositoryInterface interface {
	Create(ctx context.Context, c *models.ContactAnalytics) error
	Update(ctx context.Context, c *models.ContactAnalytics) error
	FindByPhone(ctx context.Context, phone string) (*models.ContactAnalytics, error)
	List(ctx context.Context, level *models.InterestLevel, limit, offset int) ([]*models.ContactAnalytics, int, error)
	ListAll(ctx context.Context) ([]*models.ContactAnalytics, error)
	ListAllPhones(ctx context.Context) ([]string, error)
}

// Ensure concrete types implement the interfaces
var (
	_ AssignmentRepositoryInterface    = (*AssignmentRepository)(nil)
	_ QualificationRepositoryInterface = (*QualificationRepository)(nil)
	_ AnalyticsRepositoryInterface     = (*AnalyticsRepository)(nil)
)
