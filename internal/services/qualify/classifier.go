package qualify

import (
	"strings"

	"github.com/leadloop/engage/internal/models"
)

const baseScore = 50

// Keyword dictionaries for the deterministic first-tier classifier. Negative
// keywords are opt-out language and always outrank positive matches in the
// same message.
var (
	positiveKeywords = []string{
		"price",
		"how much",
		"buy",
		"purchase",
		"book",
		"schedule",
		"appointment",
		"interested",
		"want",
		"need",
		"sign up",
		"demo",
		"more info",
		"details",
		"quote",
	}

	negativeKeywords = []string{
		"stop",
		"unsubscribe",
		"not interested",
		"no thanks",
		"wrong number",
		"remove me",
		"don't contact",
		"do not contact",
		"leave me alone",
		"spam",
	}
)

// MessageAnalysis is the classifier output for a single message.
type MessageAnalysis struct {
	Category models.QualificationCategory `json:"category"`
	Score    int                          `json:"score"`
	Keywords []string                     `json:"keywords"`
}

// AnalyzeMessage scores a single message against the keyword dictionaries.
// Base score is 50. Any negative match classifies the message not_interested
// with a 20-point penalty; otherwise positive matches add 15 points each,
// capped at 100. No match leaves the message pending at 50.
func AnalyzeMessage(text string) MessageAnalysis {
	lowered := strings.ToLower(text)

	var negatives []string
	for _, kw := range negativeKeywords {
		if strings.Contains(lowered, kw) {
			negatives = append(negatives, kw)
		}
	}
	if len(negatives) > 0 {
		return MessageAnalysis{
			Category: models.CategoryNotInterested,
			Score:    models.ClampScore(baseScore - 20),
			Keywords: negatives,
		}
	}

	var positives []string
	score := baseScore
	for _, kw := range positiveKeywords {
		if strings.Contains(lowered, kw) {
			positives = append(positives, kw)
			score = models.ClampScore(score + 15)
		}
	}
	if len(positives) > 0 {
		return MessageAnalysis{
			Category: models.CategoryInterested,
			Score:    score,
			Keywords: positives,
		}
	}

	return MessageAnalysis{
		Category: models.CategoryPending,
		Score:    baseScore,
		Keywords: []string{},
	}
}
