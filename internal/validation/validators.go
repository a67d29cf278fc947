package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/leadloop/engage/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("contact_source", validateSource); err != nil {
		panic(fmt.Sprintf("failed to register contact_source validator: %v", err))
	}
	if err := Validate.RegisterValidation("qualification_category", validateCategory); err != nil {
		panic(fmt.Sprintf("failed to register qualification_category validator: %v", err))
	}
	if err := Validate.RegisterValidation("interest_level", validateInterestLevel); err != nil {
		panic(fmt.Sprintf("failed to register interest_level validator: %v", err))
	}
	if err := Validate.RegisterValidation("message_direction", validateDirection); err != nil {
		panic(fmt.Sprintf("failed to register message_direction validator: %v", err))
	}
}

// validateSource validates that a string is a valid Source enum value
func validateSource(fl validator.FieldLevel) bool {
	return ValidateSource(fl.Field().String()) == nil
}

// validateCategory validates that a string is a valid QualificationCategory enum value
func validateCategory(fl validator.FieldLevel) bool {
	return ValidateCategory(fl.Field().String()) == nil
}

// validateInterestLevel validates that a string is a valid InterestLevel enum value
func validateInterestLevel(fl validator.FieldLevel) bool {
	return ValidateInterestLevel(fl.Field().String()) == nil
}

// validateDirection validates that a string is a valid MessageDirection enum value
func validateDirection(fl validator.FieldLevel) bool {
	return ValidateDirection(fl.Field().String()) == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateSource validates a Source string value
func ValidateSource(value string) error {
	switch models.Source(value) {
	case models.SourceAIChat, models.SourceCampaign, models.SourceAd, models.SourceLeadForm, models.SourceManual:
		return nil
	default:
		return fmt.Errorf("invalid source: %s (must be 'ai_chat', 'campaign', 'ad', 'lead_form', or 'manual')", value)
	}
}

// ValidateCategory validates a QualificationCategory string value
func ValidateCategory(value string) error {
	switch models.QualificationCategory(value) {
	case models.CategoryInterested, models.CategoryNotInterested, models.CategoryPending:
		return nil
	default:
		return fmt.Errorf("invalid category: %s (must be 'interested', 'not_interested', or 'pending')", value)
	}
}

// ValidateInterestLevel validates an InterestLevel string value
func ValidateInterestLevel(value string) error {
	switch models.InterestLevel(value) {
	case models.InterestHighly, models.InterestInterested, models.InterestNeutral, models.InterestNotInterested, models.InterestPending:
		return nil
	default:
		return fmt.Errorf("invalid interest_level: %s (must be 'highly_interested', 'interested', 'neutral', 'not_interested', or 'pending')", value)
	}
}

// ValidateDirection validates a MessageDirection string value
func ValidateDirection(value string) error {
	switch models.MessageDirection(value) {
	case models.DirectionInbound, models.DirectionOutbound:
		return nil
	default:
		return fmt.Errorf("invalid direction: %s (must be 'inbound' or 'outbound')", value)
	}
}
