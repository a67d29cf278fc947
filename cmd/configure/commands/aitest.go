package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/leadloop/engage/internal/config"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/services/ai"
	"github.com/spf13/cobra"
)

// NewAITestCmd creates the ai-test command
func NewAITestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai-test",
		Short: "Test AI provider connectivity",
		Long:  "Send a short sample conversation to the configured AI provider and print the assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if cfg.OpenAIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is not configured")
			}

			provider := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, nil, false)

			now := time.Now()
			sample := []models.ConversationMessage{
				{Role: "assistant", Content: "Hi! Would you like to hear about our offer?", Timestamp: now.Add(-2 * time.Minute)},
				{Role: "user", Content: "Sure, how much does it cost?", Timestamp: now.Add(-1 * time.Minute)},
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.AITimeoutSeconds)*time.Second)
			defer cancel()

			fmt.Printf("Testing AI provider (model: %s)...\n", cfg.AIModel)
			analysis, err := provider.AnalyzeConversation(ctx, sample)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			fmt.Println("✓ AI provider is reachable")
			fmt.Printf("Interest level: %s\n", analysis.InterestLevel)
			fmt.Printf("Interest score: %d\n", analysis.InterestScore)
			fmt.Printf("Reason: %s\n", analysis.InterestReason)
			return nil
		},
	}

	return cmd
}
