package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leadloop/engage/internal/models"
)

// AnalyticsRepository handles contact analytics database operations
type AnalyticsRepository struct {
	db *DB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Create inserts a new contact analytics record. The phone is stored normalized.
func (r *AnalyticsRepository) Create(ctx context.Context, c *models.ContactAnalytics) error {
	fields, err := marshalAnalyticsLists(c)
	if err != nil {
		return err
	}

	now := time.Now()
	c.Phone = models.NormalizePhone(c.Phone)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO contact_analytics (id, contact_id, phone, contact_name, interest_level, interest_score, interest_reason,
			total_messages, inbound_messages, outbound_messages, agent_interactions, first_contact_time, last_contact_time,
			conversation_duration, key_topics, objections, positive_signals, negative_signals, last_analyzed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at
	`,
		c.ID,
		c.ContactID,
		c.Phone,
		c.ContactName,
		c.InterestLevel,
		c.InterestScore,
		c.InterestReason,
		c.TotalMessages,
		c.InboundMessages,
		c.OutboundMessages,
		fields.interactions,
		c.FirstContactTime,
		c.LastContactTime,
		c.ConversationDuration,
		fields.keyTopics,
		fields.objections,
		fields.positive,
		fields.negative,
		nullableTime(c.LastAnalyzedAt),
		now,
		now,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact analytics: %w", err)
	}

	return nil
}

// Update replaces the stored record. Whole-record replace by design; two
// concurrent analyses of the same contact can race (lost update), accepted
// for a best-effort engagement score.
func (r *AnalyticsRepository) Update(ctx context.Context, c *models.ContactAnalytics) error {
	fields, err := marshalAnalyticsLists(c)
	if err != nil {
		return err
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, `
		UPDATE contact_analytics
		SET contact_id = $2, contact_name = $3, interest_level = $4, interest_score = $5, interest_reason = $6,
			total_messages = $7, inbound_messages = $8, outbound_messages = $9, agent_interactions = $10,
			first_contact_time = $11, last_contact_time = $12, conversation_duration = $13,
			key_topics = $14, objections = $15, positive_signals = $16, negative_signals = $17,
			last_analyzed_at = $18, updated_at = $19
		WHERE id = $1
		RETURNING updated_at
	`,
		c.ID,
		c.ContactID,
		c.ContactName,
		c.InterestLevel,
		c.InterestScore,
		c.InterestReason,
		c.TotalMessages,
		c.InboundMessages,
		c.OutboundMessages,
		fields.interactions,
		c.FirstContactTime,
		c.LastContactTime,
		c.ConversationDuration,
		fields.keyTopics,
		fields.objections,
		fields.positive,
		fields.negative,
		nullableTime(c.LastAnalyzedAt),
		now,
	).Scan(&c.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("contact analytics %s: %w", c.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update contact analytics: %w", err)
	}

	return nil
}

// FindByPhone returns the analytics record matching the phone via the
// resolver rules.
func (r *AnalyticsRepository) FindByPhone(ctx context.Context, phone string) (*models.ContactAnalytics, error) {
	normalized := models.NormalizePhone(phone)
	suffix := models.PhoneSuffix(phone)

	rows, err := r.db.QueryContext(ctx, analyticsSelect+`
		WHERE phone = $1 OR ($2 <> '' AND length(phone) >= 10 AND phone LIKE '%' || $2)
		ORDER BY updated_at DESC
	`, normalized, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact analytics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanAnalytics(rows)
		if err != nil {
			return nil, err
		}
		if models.PhoneMatch(c.Phone, phone) {
			return c, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact analytics: %w", err)
	}

	return nil, fmt.Errorf("contact analytics for phone: %w", ErrNotFound)
}

// List returns analytics records, optionally filtered by interest level,
// most recently contacted first.
func (r *AnalyticsRepository) List(ctx context.Context, level *models.InterestLevel, limit, offset int) ([]*models.ContactAnalytics, int, error) {
	countQuery := `SELECT COUNT(*) FROM contact_analytics`
	listQuery := analyticsSelect
	args := []any{}
	if level != nil {
		countQuery += ` WHERE interest_level = $1`
		listQuery += ` WHERE interest_level = $1`
		args = append(args, string(*level))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contact analytics: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY last_contact_time DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query contact analytics: %w", err)
	}
	defer rows.Close()

	var out []*models.ContactAnalytics
	for rows.Next() {
		c, err := scanAnalytics(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating contact analytics: %w", err)
	}

	return out, total, nil
}

// ListAll returns every analytics record for the summary aggregation.
func (r *AnalyticsRepository) ListAll(ctx context.Context) ([]*models.ContactAnalytics, error) {
	rows, err := r.db.QueryContext(ctx, analyticsSelect+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact analytics: %w", err)
	}
	defer rows.Close()

	var out []*models.ContactAnalytics
	for rows.Next() {
		c, err := scanAnalytics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact analytics: %w", err)
	}

	return out, nil
}

// ListAllPhones returns the distinct phones with an analytics record, used by
// the re-analysis sweep.
func (r *AnalyticsRepository) ListAllPhones(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT phone FROM contact_analytics`)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics phones: %w", err)
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan phone: %w", err)
		}
		phones = append(phones, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analytics phones: %w", err)
	}

	return phones, nil
}

const analyticsSelect = `
	SELECT id, contact_id, phone, contact_name, interest_level, interest_score, interest_reason,
		total_messages, inbound_messages, outbound_messages, agent_interactions, first_contact_time, last_contact_time,
		conversation_duration, key_topics, objections, positive_signals, negative_signals, last_analyzed_at, created_at, updated_at
	FROM contact_analytics`

type analyticsListFields struct {
	interactions []byte
	keyTopics    []byte
	objections   []byte
	positive     []byte
	negative     []byte
}

func marshalAnalyticsLists(c *models.ContactAnalytics) (*analyticsListFields, error) {
	f := &analyticsListFields{}
	var err error
	if f.interactions, err = json.Marshal(emptyIfNilInteractions(c.AIAgentInteractions)); err != nil {
		return nil, fmt.Errorf("failed to marshal agent interactions: %w", err)
	}
	if f.keyTopics, err = json.Marshal(emptyIfNil(c.KeyTopics)); err != nil {
		return nil, fmt.Errorf("failed to marshal key topics: %w", err)
	}
	if f.objections, err = json.Marshal(emptyIfNil(c.Objections)); err != nil {
		return nil, fmt.Errorf("failed to marshal objections: %w", err)
	}
	if f.positive, err = json.Marshal(emptyIfNil(c.PositiveSignals)); err != nil {
		return nil, fmt.Errorf("failed to marshal positive signals: %w", err)
	}
	if f.negative, err = json.Marshal(emptyIfNil(c.NegativeSignals)); err != nil {
		return nil, fmt.Errorf("failed to marshal negative signals: %w", err)
	}
	return f, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyIfNilInteractions(s []models.AgentInteraction) []models.AgentInteraction {
	if s == nil {
		return []models.AgentInteraction{}
	}
	return s
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanAnalytics(rows *sql.Rows) (*models.ContactAnalytics, error) {
	c := &models.ContactAnalytics{}
	var interactionsJSON, topicsJSON, objectionsJSON, positiveJSON, negativeJSON []byte
	var lastAnalyzed sql.NullTime
	err := rows.Scan(
		&c.ID,
		&c.ContactID,
		&c.Phone,
		&c.ContactName,
		&c.InterestLevel,
		&c.InterestScore,
		&c.InterestReason,
		&c.TotalMessages,
		&c.InboundMessages,
		&c.OutboundMessages,
		&interactionsJSON,
		&c.FirstContactTime,
		&c.LastContactTime,
		&c.ConversationDuration,
		&topicsJSON,
		&objectionsJSON,
		&positiveJSON,
		&negativeJSON,
		&lastAnalyzed,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan contact analytics: %w", err)
	}
	if err := json.Unmarshal(interactionsJSON, &c.AIAgentInteractions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent interactions: %w", err)
	}
	if err := json.Unmarshal(topicsJSON, &c.KeyTopics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key topics: %w", err)
	}
	if err := json.Unmarshal(objectionsJSON, &c.Objections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal objections: %w", err)
	}
	if err := json.Unmarshal(positiveJSON, &c.PositiveSignals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positive signals: %w", err)
	}
	if err := json.Unmarshal(negativeJSON, &c.NegativeSignals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal negative signals: %w", err)
	}
	if lastAnalyzed.Valid {
		c.LastAnalyzedAt = &lastAnalyzed.Time
	}
	return c, nil
}
