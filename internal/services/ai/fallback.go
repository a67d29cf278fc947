package ai

import (
	"regexp"

	"github.com/leadloop/engage/internal/models"
)

// FallbackReason tags heuristic-derived results so downstream consumers can
// distinguish them from AI-derived assessments.
const FallbackReason = "Keyword-based analysis (AI analysis failed)"

// Broad signal patterns for the degraded path. Only customer-authored
// messages are scanned; agent messages say nothing about the customer's
// interest.
var (
	fallbackPositive = regexp.MustCompile(`(?i)(price|cost|how much|interested|buy|purchase|book|schedule|appointment|demo|quote|sign me up|sounds good|yes please|tell me more|when can)`)
	fallbackNegative = regexp.MustCompile(`(?i)(not interested|stop|unsubscribe|no thanks|wrong number|remove me|too expensive|leave me alone|don'?t contact|do not contact|spam)`)
)

// FallbackAnalysis produces a degraded-confidence assessment from regex
// matches over the customer's messages. It is used whenever the LLM call
// fails for any reason and never fails itself.
func FallbackAnalysis(messages []models.ConversationMessage) *ConversationAnalysis {
	var positives, negatives []string
	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		positives = append(positives, fallbackPositive.FindAllString(msg.Content, -1)...)
		negatives = append(negatives, fallbackNegative.FindAllString(msg.Content, -1)...)
	}

	score := models.ClampScore(50 + 10*len(positives) - 15*len(negatives))

	var level models.InterestLevel
	switch {
	case len(negatives) > len(positives):
		level = models.InterestNotInterested
	case len(positives) > 0 && score >= 75:
		level = models.InterestHighly
	case len(positives) > 0:
		level = models.InterestInterested
	default:
		level = models.InterestNeutral
	}

	return &ConversationAnalysis{
		InterestLevel:   level,
		InterestScore:   score,
		InterestReason:  FallbackReason,
		KeyTopics:       []string{},
		Objections:      []string{},
		PositiveSignals: dedupe(positives),
		NegativeSignals: dedupe(negatives),
	}
}

func dedupe(in []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
