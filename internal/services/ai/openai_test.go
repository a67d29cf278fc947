package ai

import (
	"testing"

	"github.com/leadloop/engage/internal/models"
)

func TestParseAnalysisResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		wantLevel models.InterestLevel
		wantScore int
	}{
		{
			name:      "clean JSON",
			content:   `{"interestLevel":"interested","interestScore":72,"interestReason":"asked about pricing"}`,
			wantLevel: models.InterestInterested,
			wantScore: 72,
		},
		{
			name: "json code fence",
			content: "```json\n" +
				`{"interestLevel":"highly_interested","interestScore":90}` +
				"\n```",
			wantLevel: models.InterestHighly,
			wantScore: 90,
		},
		{
			name: "bare code fence",
			content: "```\n" +
				`{"interestLevel":"not_interested","interestScore":15}` +
				"\n```",
			wantLevel: models.InterestNotInterested,
			wantScore: 15,
		},
		{
			name:      "JSON wrapped in prose is salvaged",
			content:   `Here is my assessment: {"interestLevel":"interested","interestScore":60} Hope that helps!`,
			wantLevel: models.InterestInterested,
			wantScore: 60,
		},
		{
			name:      "missing fields get defaults",
			content:   `{"interestReason":"hard to tell"}`,
			wantLevel: models.InterestNeutral,
			wantScore: 50,
		},
		{
			name:      "unknown level falls back to neutral",
			content:   `{"interestLevel":"enthusiastic","interestScore":80}`,
			wantLevel: models.InterestNeutral,
			wantScore: 80,
		},
		{
			name:      "out of range score is clamped",
			content:   `{"interestLevel":"interested","interestScore":250}`,
			wantLevel: models.InterestInterested,
			wantScore: 100,
		},
		{
			name:      "zero score is preserved, not defaulted",
			content:   `{"interestLevel":"not_interested","interestScore":0}`,
			wantLevel: models.InterestNotInterested,
			wantScore: 0,
		},
		{
			name:    "no JSON at all",
			content: "I cannot analyze this conversation.",
			wantErr: true,
		},
		{
			name:    "malformed JSON inside braces",
			content: `{"interestLevel": interested}`,
			wantErr: true,
		},
		{
			name:    "empty response",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAnalysisResponse(tt.content)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAnalysisResponse failed: %v", err)
			}

			if got.InterestLevel != tt.wantLevel {
				t.Errorf("InterestLevel = %s, want %s", got.InterestLevel, tt.wantLevel)
			}
			if got.InterestScore != tt.wantScore {
				t.Errorf("InterestScore = %d, want %d", got.InterestScore, tt.wantScore)
			}
		})
	}
}

func TestParseAnalysisResponse_Signals(t *testing.T) {
	t.Parallel()

	content := `{
		"interestLevel": "interested",
		"interestScore": 68,
		"interestReason": "asked about pricing twice",
		"keyTopics": ["pricing", "delivery"],
		"objections": ["too expensive"],
		"positiveSignals": ["asked for a quote"],
		"negativeSignals": []
	}`

	got, err := ParseAnalysisResponse(content)
	if err != nil {
		t.Fatalf("ParseAnalysisResponse failed: %v", err)
	}

	if len(got.KeyTopics) != 2 || got.KeyTopics[0] != "pricing" {
		t.Errorf("KeyTopics = %v", got.KeyTopics)
	}
	if len(got.Objections) != 1 {
		t.Errorf("Objections = %v", got.Objections)
	}
	if len(got.PositiveSignals) != 1 {
		t.Errorf("PositiveSignals = %v", got.PositiveSignals)
	}
	if got.InterestReason != "asked about pricing twice" {
		t.Errorf("InterestReason = %q", got.InterestReason)
	}
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no fence", input: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "plain fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounding whitespace", input: "  {\"a\":1}  ", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := stripCodeFences(tt.input); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
