package reports

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"go.uber.org/zap"
)

// QualificationStats is the counts-plus-percentages rollup of the
// qualification records. Percentages are rounded; an empty dataset yields all
// zeroes, never a division by zero.
type QualificationStats struct {
	Total                int `json:"total"`
	Interested           int `json:"interested"`
	NotInterested        int `json:"not_interested"`
	Pending              int `json:"pending"`
	InterestedPercent    int `json:"interested_percent"`
	NotInterestedPercent int `json:"not_interested_percent"`
	PendingPercent       int `json:"pending_percent"`
}

// GroupStats is the per-group slice of a qualification report: the shared
// stats shape plus the group key and its display name.
type GroupStats struct {
	Key   string `json:"key"`
	Name  string `json:"name,omitempty"`
	QualificationStats
}

// QualificationReport holds the three independent group-bys plus the overall
// rollup.
type QualificationReport struct {
	Overall    QualificationStats `json:"overall"`
	BySource   []GroupStats       `json:"by_source"`
	ByCampaign []GroupStats       `json:"by_campaign"`
	ByAgent    []GroupStats       `json:"by_agent"`
}

// InterestLevelCount is one interest level's share of the analytics summary.
type InterestLevelCount struct {
	Level models.InterestLevel `json:"level"`
	Count int                  `json:"count"`
}

// AgentRanking is one agent's standing in the top-agents list.
type AgentRanking struct {
	AgentID       string `json:"agent_id"`
	AgentName     string `json:"agent_name,omitempty"`
	TotalContacts int    `json:"total_contacts"`
	TotalMessages int    `json:"total_messages"`
}

// AnalyticsSummary is the read-side rollup of the contact analytics records.
type AnalyticsSummary struct {
	Total           int                  `json:"total"`
	ByInterestLevel []InterestLevelCount `json:"by_interest_level"`
	AverageScore    float64              `json:"average_score"`
	TopAgents       []AgentRanking       `json:"top_agents"`
}

// Service computes the read-side aggregations. Every aggregation is a full
// scan over the relevant collection; the datasets this engine manages are
// small enough that precomputed rollups would be premature.
type Service struct {
	qualRepo      database.QualificationRepositoryInterface
	analyticsRepo database.AnalyticsRepositoryInterface
	logger        *zap.Logger
}

// NewService creates the reporting service
func NewService(qualRepo database.QualificationRepositoryInterface, analyticsRepo database.AnalyticsRepositoryInterface, logger *zap.Logger) *Service {
	return &Service{
		qualRepo:      qualRepo,
		analyticsRepo: analyticsRepo,
		logger:        logger,
	}
}

// GetQualificationStats returns the overall qualification rollup.
func (s *Service) GetQualificationStats(ctx context.Context) (*QualificationStats, error) {
	records, err := s.qualRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load qualifications: %w", err)
	}

	stats := computeStats(records)
	return &stats, nil
}

// GetQualificationReport returns the overall rollup plus the three group-bys.
// The source grouping always covers the full source enum, zero-count sources
// included; campaign and agent groupings cover only observed keys. Display
// names come from the first record seen in each group.
func (s *Service) GetQualificationReport(ctx context.Context) (*QualificationReport, error) {
	records, err := s.qualRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load qualifications: %w", err)
	}

	report := &QualificationReport{
		Overall:    computeStats(records),
		BySource:   groupBySource(records),
		ByCampaign: groupBy(records, func(q *models.Qualification) (string, string) { return q.CampaignID, q.CampaignName }),
		ByAgent:    groupBy(records, func(q *models.Qualification) (string, string) { return q.AgentID, q.AgentName }),
	}
	return report, nil
}

// GetAnalyticsSummary returns the contact analytics rollup: counts for every
// interest level (zero-filled), the average score, and the top five agents by
// contacts interacted with.
func (s *Service) GetAnalyticsSummary(ctx context.Context) (*AnalyticsSummary, error) {
	records, err := s.analyticsRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact analytics: %w", err)
	}

	levelCounts := make(map[models.InterestLevel]int)
	scoreSum := 0
	for _, r := range records {
		levelCounts[r.InterestLevel]++
		scoreSum += r.InterestScore
	}

	byLevel := make([]InterestLevelCount, 0, len(models.InterestLevels()))
	for _, level := range models.InterestLevels() {
		byLevel = append(byLevel, InterestLevelCount{Level: level, Count: levelCounts[level]})
	}

	avg := 0.0
	if len(records) > 0 {
		avg = math.Round(float64(scoreSum)/float64(len(records))*100) / 100
	}

	return &AnalyticsSummary{
		Total:           len(records),
		ByInterestLevel: byLevel,
		AverageScore:    avg,
		TopAgents:       topAgents(records, 5),
	}, nil
}

func computeStats(records []*models.Qualification) QualificationStats {
	stats := QualificationStats{Total: len(records)}
	for _, q := range records {
		switch q.Category {
		case models.CategoryInterested:
			stats.Interested++
		case models.CategoryNotInterested:
			stats.NotInterested++
		default:
			stats.Pending++
		}
	}
	stats.InterestedPercent = percent(stats.Interested, stats.Total)
	stats.NotInterestedPercent = percent(stats.NotInterested, stats.Total)
	stats.PendingPercent = percent(stats.Pending, stats.Total)
	return stats
}

func percent(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

func groupBySource(records []*models.Qualification) []GroupStats {
	buckets := make(map[models.Source][]*models.Qualification)
	for _, q := range records {
		buckets[q.Source] = append(buckets[q.Source], q)
	}

	out := make([]GroupStats, 0, len(models.Sources()))
	for _, source := range models.Sources() {
		out = append(out, GroupStats{
			Key:                string(source),
			QualificationStats: computeStats(buckets[source]),
		})
	}
	return out
}

// groupBy buckets records by the key the extractor yields, skipping records
// with an empty key. The display name is the extractor's name from the first
// record in the bucket.
func groupBy(records []*models.Qualification, extract func(*models.Qualification) (key, name string)) []GroupStats {
	buckets := make(map[string][]*models.Qualification)
	names := make(map[string]string)
	var order []string
	for _, q := range records {
		key, name := extract(q)
		if key == "" {
			continue
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
			names[key] = name
		}
		buckets[key] = append(buckets[key], q)
	}

	out := make([]GroupStats, 0, len(order))
	for _, key := range order {
		out = append(out, GroupStats{
			Key:                key,
			Name:               names[key],
			QualificationStats: computeStats(buckets[key]),
		})
	}
	return out
}

// topAgents flattens every record's agent interactions, ranks agents by how
// many contacts they interacted with, and keeps the top n.
func topAgents(records []*models.ContactAnalytics, n int) []AgentRanking {
	byAgent := make(map[string]*AgentRanking)
	var order []string
	for _, r := range records {
		for _, interaction := range r.AIAgentInteractions {
			ranking, ok := byAgent[interaction.AgentID]
			if !ok {
				ranking = &AgentRanking{AgentID: interaction.AgentID, AgentName: interaction.AgentName}
				byAgent[interaction.AgentID] = ranking
				order = append(order, interaction.AgentID)
			}
			ranking.TotalContacts++
			ranking.TotalMessages += interaction.MessagesCount
		}
	}

	out := make([]AgentRanking, 0, len(order))
	for _, id := range order {
		out = append(out, *byAgent[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalContacts > out[j].TotalContacts
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
