package ai

import (
	"context"

	"github.com/leadloop/engage/internal/models"
)

// ConversationAnalysis is the semantic interest assessment of a contact's
// conversation.
type ConversationAnalysis struct {
	InterestLevel   models.InterestLevel `json:"interest_level"`
	InterestScore   int                  `json:"interest_score"`
	InterestReason  string               `json:"interest_reason"`
	KeyTopics       []string             `json:"key_topics"`
	Objections      []string             `json:"objections"`
	PositiveSignals []string             `json:"positive_signals"`
	NegativeSignals []string             `json:"negative_signals"`
}

// ConversationProvider is the interface for LLM conversation analysis
type ConversationProvider interface {
	// AnalyzeConversation sends the transcript to the model and returns the
	// parsed assessment. Implementations return an error on provider or
	// parse failures; graceful degradation is the InterestAnalyzer's job.
	AnalyzeConversation(ctx context.Context, messages []models.ConversationMessage) (*ConversationAnalysis, error)
}

// ProviderFactory creates a conversation provider from configuration
type ProviderFactory func(config map[string]string) (ConversationProvider, error)

// ProviderRegistry stores available conversation providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (ConversationProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
