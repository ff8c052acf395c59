package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"seva/internal/modules/donation"
)

// GeminiSuggester implements PrioritySuggester using Google's Gemini models.
type GeminiSuggester struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiSuggester initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiSuggester(ctx context.Context, apiKey string) (*GeminiSuggester, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Flash keeps latency and cost low for a per-submission call.
	model := client.GenerativeModel("gemini-2.0-flash")

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	return &GeminiSuggester{client: client, model: model}, nil
}

func (p *GeminiSuggester) Close() {
	p.client.Close()
}

// SuggestPriority classifies a donation into one of the closed priority
// levels. Output outside that set is rejected rather than passed through.
func (p *GeminiSuggester) SuggestPriority(ctx context.Context, items donation.Items, description string) (*Suggestion, error) {
	prompt := buildPrompt(items, description)

	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates from Gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}

	cleanJSON := cleanJSONString(responseText.String())

	var out Suggestion
	if err := json.Unmarshal([]byte(cleanJSON), &out); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleanJSON)
	}
	if !donation.ValidPriority(out.Priority) {
		return nil, fmt.Errorf("model returned unknown priority %q", out.Priority)
	}
	return &out, nil
}

func buildPrompt(items donation.Items, description string) string {
	var mix strings.Builder
	for cat, qty := range items {
		fmt.Fprintf(&mix, "- %s: %d\n", cat, qty)
	}
	if mix.Len() == 0 {
		mix.WriteString("- none\n")
	}
	if description == "" {
		description = "NONE"
	}

	return fmt.Sprintf(`Role: You triage charitable donations for pickup scheduling.

Donation items:
%s
Free-text description: %s

Classify the urgency as exactly one of: "critical", "high", "medium", "low".
- "critical": perishable food, medicine, medical supplies, anything emergency-related.
- "high": essentials people need soon (blankets in winter, infant goods).
- "medium": useful everyday goods.
- "low": everything else.

Respond with JSON only: {"priority": "...", "rationale": "one short sentence"}`,
		mix.String(), description)
}

// cleanJSONString strips markdown code fences some models wrap around JSON.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
