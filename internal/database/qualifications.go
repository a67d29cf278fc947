package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadloop/engage/internal/models"
)

// QualificationRepository handles qualification database operations
type QualificationRepository struct {
	db *DB
}

// NewQualificationRepository creates a new qualification repository
func NewQualificationRepository(db *DB) *QualificationRepository {
	return &QualificationRepository{db: db}
}

// Create inserts a new qualification. The phone is stored normalized.
func (r *QualificationRepository) Create(ctx context.Context, q *models.Qualification) error {
	keywordsJSON, err := json.Marshal(q.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	now := time.Now()
	q.Phone = models.NormalizePhone(q.Phone)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO qualifications (id, contact_id, phone, name, source, campaign_id, campaign_name, agent_id, agent_name,
			category, score, total_messages, keywords, first_contact_at, last_message_at, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`,
		q.ID,
		q.ContactID,
		q.Phone,
		q.Name,
		q.Source,
		q.CampaignID,
		q.CampaignName,
		q.AgentID,
		q.AgentName,
		q.Category,
		q.Score,
		q.TotalMessages,
		keywordsJSON,
		q.FirstContactAt,
		q.LastMessageAt,
		q.Notes,
		now,
		now,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create qualification: %w", err)
	}

	return nil
}

// Update replaces the stored qualification (whole-record replace).
func (r *QualificationRepository) Update(ctx context.Context, q *models.Qualification) error {
	keywordsJSON, err := json.Marshal(q.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, `
		UPDATE qualifications
		SET contact_id = $2, name = $3, source = $4, campaign_id = $5, campaign_name = $6, agent_id = $7, agent_name = $8,
			category = $9, score = $10, total_messages = $11, keywords = $12, last_message_at = $13, notes = $14, updated_at = $15
		WHERE id = $1
		RETURNING updated_at
	`,
		q.ID,
		q.ContactID,
		q.Name,
		q.Source,
		q.CampaignID,
		q.CampaignName,
		q.AgentID,
		q.AgentName,
		q.Category,
		q.Score,
		q.TotalMessages,
		keywordsJSON,
		q.LastMessageAt,
		q.Notes,
		now,
	).Scan(&q.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("qualification %s: %w", q.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update qualification: %w", err)
	}

	return nil
}

// GetByID retrieves a qualification by ID
func (r *QualificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Qualification, error) {
	rows, err := r.db.QueryContext(ctx, qualificationSelect+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query qualification: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		return scanQualification(rows)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating qualifications: %w", err)
	}
	return nil, fmt.Errorf("qualification %s: %w", id, ErrNotFound)
}

// FindByPhone returns the qualification matching the phone via the resolver
// rules (exact normalized equality or shared last-10-digit suffix).
func (r *QualificationRepository) FindByPhone(ctx context.Context, phone string) (*models.Qualification, error) {
	normalized := models.NormalizePhone(phone)
	suffix := models.PhoneSuffix(phone)

	rows, err := r.db.QueryContext(ctx, qualificationSelect+`
		WHERE phone = $1 OR ($2 <> '' AND length(phone) >= 10 AND phone LIKE '%' || $2)
		ORDER BY updated_at DESC
	`, normalized, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to query qualifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQualification(rows)
		if err != nil {
			return nil, err
		}
		if models.PhoneMatch(q.Phone, phone) {
			return q, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating qualifications: %w", err)
	}

	return nil, fmt.Errorf("qualification for phone: %w", ErrNotFound)
}

// List returns qualifications, optionally filtered by source, newest first.
func (r *QualificationRepository) List(ctx context.Context, source *models.Source, limit, offset int) ([]*models.Qualification, int, error) {
	countQuery := `SELECT COUNT(*) FROM qualifications`
	listQuery := qualificationSelect
	args := []any{}
	if source != nil {
		countQuery += ` WHERE source = $1`
		listQuery += ` WHERE source = $1`
		args = append(args, string(*source))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count qualifications: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY last_message_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query qualifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Qualification
	for rows.Next() {
		q, err := scanQualification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating qualifications: %w", err)
	}

	return out, total, nil
}

// ListAll returns every qualification, oldest first. The reporting layer
// aggregates over the full set; qualification data is retained indefinitely
// for its long-term reporting value.
func (r *QualificationRepository) ListAll(ctx context.Context) ([]*models.Qualification, error) {
	rows, err := r.db.QueryContext(ctx, qualificationSelect+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query qualifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Qualification
	for rows.Next() {
		q, err := scanQualification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating qualifications: %w", err)
	}

	return out, nil
}

const qualificationSelect = `
	SELECT id, contact_id, phone, name, source, campaign_id, campaign_name, agent_id, agent_name,
		category, score, total_messages, keywords, first_contact_at, last_message_at, notes, created_at, updated_at
	FROM qualifications`

func scanQualification(rows *sql.Rows) (*models.Qualification, error) {
	q := &models.Qualification{}
	var keywordsJSON []byte
	err := rows.Scan(
		&q.ID,
		&q.ContactID,
		&q.Phone,
		&q.Name,
		&q.Source,
		&q.CampaignID,
		&q.CampaignName,
		&q.AgentID,
		&q.AgentName,
		&q.Category,
		&q.Score,
		&q.TotalMessages,
		&keywordsJSON,
		&q.FirstContactAt,
		&q.LastMessageAt,
		&q.Notes,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan qualification: %w", err)
	}
	if err := json.Unmarshal(keywordsJSON, &q.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}
	return q, nil
}
