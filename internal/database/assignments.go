package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leadloop/engage/internal/models"
)

// AssignmentRepository handles agent assignment database operations
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment. The phone is stored normalized.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.AgentAssignment) error {
	historyJSON, err := json.Marshal(a.ConversationHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}

	now := time.Now()
	a.Phone = models.NormalizePhone(a.Phone)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO agent_assignments (id, contact_id, phone, agent_id, agent_name, conversation_history, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`,
		a.ID,
		a.ContactID,
		a.Phone,
		a.AgentID,
		a.AgentName,
		historyJSON,
		a.IsActive,
		now,
		now,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

// Update replaces the stored assignment. Whole-record replace: concurrent
// updates to the same contact can lose writes, an accepted limitation.
func (r *AssignmentRepository) Update(ctx context.Context, a *models.AgentAssignment) error {
	historyJSON, err := json.Marshal(a.ConversationHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, `
		UPDATE agent_assignments
		SET contact_id = $2, agent_id = $3, agent_name = $4, conversation_history = $5, is_active = $6, updated_at = $7
		WHERE id = $1
		RETURNING updated_at
	`,
		a.ID,
		a.ContactID,
		a.AgentID,
		a.AgentName,
		historyJSON,
		a.IsActive,
		now,
	).Scan(&a.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("assignment %s: %w", a.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	return nil
}

// FindActiveByPhone returns the active assignment matching the phone, by exact
// normalized equality or by last-10-digit suffix when both sides carry at
// least 10 digits. Candidates are re-checked with models.PhoneMatch so the
// LIKE query never widens the match rule.
func (r *AssignmentRepository) FindActiveByPhone(ctx context.Context, phone string) (*models.AgentAssignment, error) {
	normalized := models.NormalizePhone(phone)
	suffix := models.PhoneSuffix(phone)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_id, phone, agent_id, agent_name, conversation_history, is_active, created_at, updated_at
		FROM agent_assignments
		WHERE is_active = TRUE
		  AND (phone = $1 OR ($2 <> '' AND length(phone) >= 10 AND phone LIKE '%' || $2))
		ORDER BY updated_at DESC
	`, normalized, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		if models.PhoneMatch(a.Phone, phone) {
			return a, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return nil, fmt.Errorf("active assignment for phone: %w", ErrNotFound)
}

// FindByPhone returns the most recently updated assignment for the phone,
// active or not. Used when reactivating a soft-deactivated contact.
func (r *AssignmentRepository) FindByPhone(ctx context.Context, phone string) (*models.AgentAssignment, error) {
	normalized := models.NormalizePhone(phone)
	suffix := models.PhoneSuffix(phone)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_id, phone, agent_id, agent_name, conversation_history, is_active, created_at, updated_at
		FROM agent_assignments
		WHERE phone = $1 OR ($2 <> '' AND length(phone) >= 10 AND phone LIKE '%' || $2)
		ORDER BY updated_at DESC
	`, normalized, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		if models.PhoneMatch(a.Phone, phone) {
			return a, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return nil, fmt.Errorf("assignment for phone: %w", ErrNotFound)
}

func scanAssignment(rows *sql.Rows) (*models.AgentAssignment, error) {
	a := &models.AgentAssignment{}
	var historyJSON []byte
	err := rows.Scan(
		&a.ID,
		&a.ContactID,
		&a.Phone,
		&a.AgentID,
		&a.AgentName,
		&historyJSON,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &a.ConversationHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return a, nil
}
