package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/leadloop/engage/internal/models"
	"go.uber.org/zap"
)

// InterestAnalyzer wraps a ConversationProvider with the bounded timeout and
// the keyword fallback. Terminal failures degrade to a lower-confidence,
// heuristic-derived result; quota and rate-limit errors surface to the caller
// so the async pipeline can retry once the provider recovers.
type InterestAnalyzer struct {
	provider ConversationProvider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInterestAnalyzer creates an analyzer. timeout <= 0 uses DefaultTimeout.
// provider may be nil, in which case every analysis takes the fallback path.
func NewInterestAnalyzer(provider ConversationProvider, timeout time.Duration, logger *zap.Logger) *InterestAnalyzer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &InterestAnalyzer{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// AnalyzeContactConversation assesses the contact's conversation. The LLM
// call is bounded by the configured timeout. Quota and rate-limit errors are
// returned so the worker can re-enqueue the job with a delay instead of
// persisting a degraded record; every other failure (network error, non-JSON
// response, timeout) takes the keyword fallback with no retry.
func (a *InterestAnalyzer) AnalyzeContactConversation(ctx context.Context, phone string, messages []models.ConversationMessage) (*ConversationAnalysis, error) {
	if a.provider == nil {
		return FallbackAnalysis(messages), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	analysis, err := a.provider.AnalyzeConversation(callCtx, messages)
	if err != nil {
		if IsQuotaError(err) || IsRateLimitError(err) {
			a.logger.Warn("conversation_analysis_provider_throttled",
				zap.String("phone", RedactPhone(phone)),
				zap.Int("message_count", len(messages)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("provider throttled: %w", err)
		}
		a.logger.Warn("conversation_analysis_fell_back",
			zap.String("phone", RedactPhone(phone)),
			zap.Int("message_count", len(messages)),
			zap.Error(err),
		)
		return FallbackAnalysis(messages), nil
	}

	return analysis, nil
}
