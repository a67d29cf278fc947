package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leadloop/engage/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTemperature keeps the interest assessment deterministic-ish
	DefaultTemperature = 0.3
	// DefaultTimeout bounds the analysis call so a slow provider cannot
	// stall the caller; the fallback path triggers on timeout exactly as on
	// error.
	DefaultTimeout = 12 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

const analysisSystemInstruction = `You are a sales analyst. You will be given the transcript of a conversation between a customer and an automated sales agent. Assess the customer's interest in the offering.

Respond with a JSON object only, exactly this shape:
{
  "interestLevel": "highly_interested" | "interested" | "neutral" | "not_interested",
  "interestScore": 0-100,
  "interestReason": "one sentence explaining the assessment",
  "keyTopics": ["..."],
  "objections": ["..."],
  "positiveSignals": ["..."],
  "negativeSignals": ["..."]
}

Base the assessment only on what the customer wrote. Return only valid JSON.`

// OpenAIProvider implements ConversationProvider using OpenAI's API
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *zap.Logger
	debugMode   bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:      client,
		model:       model,
		temperature: DefaultTemperature,
		logger:      logger,
		debugMode:   debugMode,
	}
}

// AnalyzeConversation sends the conversation transcript to the model and
// parses the strict-JSON assessment it returns.
func (p *OpenAIProvider) AnalyzeConversation(ctx context.Context, messages []models.ConversationMessage) (*ConversationAnalysis, error) {
	transcript := BuildTranscript(messages)

	openAIMessages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(analysisSystemInstruction),
		openai.UserMessage(transcript),
	}

	req := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    openAIMessages,
		Temperature: openai.Float(p.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "analyze_conversation"),
			zap.String("model", p.model),
			zap.Int("message_count", len(messages)),
			zap.Int("transcript_length", len(transcript)),
			zap.String("transcript_preview", SanitizePrompt(transcript, true)),
			zap.String("request_id", ExtractRequestID(ctx)),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "analyze_conversation"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to analyze conversation: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to analyze conversation: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "analyze_conversation"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	analysis, err := ParseAnalysisResponse(content)
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// BuildTranscript renders a message list as the "Customer:"/"Agent:"
// transcript the analysis prompt expects.
func BuildTranscript(messages []models.ConversationMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		speaker := "Agent"
		if msg.Role == "user" {
			speaker = "Customer"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseAnalysisResponse parses the model's JSON response. Code fences are
// stripped and the outermost brace pair is salvaged when the model wraps the
// JSON in prose. Missing fields get defaults: interestLevel neutral,
// interestScore 50.
func ParseAnalysisResponse(content string) (*ConversationAnalysis, error) {
	raw := stripCodeFences(content)

	var parsed struct {
		InterestLevel   string   `json:"interestLevel"`
		InterestScore   *int     `json:"interestScore"`
		InterestReason  string   `json:"interestReason"`
		KeyTopics       []string `json:"keyTopics"`
		Objections      []string `json:"objections"`
		PositiveSignals []string `json:"positiveSignals"`
		NegativeSignals []string `json:"negativeSignals"`
	}

	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		start := bytes.Index([]byte(raw), []byte("{"))
		end := bytes.LastIndex([]byte(raw), []byte("}"))
		if start == -1 || end == -1 || end <= start {
			return nil, fmt.Errorf("failed to parse analysis response: %w", err)
		}
		raw = raw[start : end+1]
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse analysis response: %w", err)
		}
	}

	level := models.InterestLevel(parsed.InterestLevel)
	switch level {
	case models.InterestHighly, models.InterestInterested, models.InterestNeutral, models.InterestNotInterested:
	default:
		level = models.InterestNeutral
	}

	score := 50
	if parsed.InterestScore != nil {
		score = models.ClampScore(*parsed.InterestScore)
	}

	return &ConversationAnalysis{
		InterestLevel:   level,
		InterestScore:   score,
		InterestReason:  parsed.InterestReason,
		KeyTopics:       parsed.KeyTopics,
		Objections:      parsed.Objections,
		PositiveSignals: parsed.PositiveSignals,
		NegativeSignals: parsed.NegativeSignals,
	}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string) (ConversationProvider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}

		model := config["model"]
		baseURL := config["base_url"]

		return NewOpenAIProviderWithLogger(apiKey, baseURL, model, nil, false), nil
	})
}
