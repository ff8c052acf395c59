package ai

import (
	"context"

	"seva/internal/modules/donation"
)

// PrioritySuggester proposes a priority for a donation from its free-text
// description and item mix. Suggestions are advisory; the donor or NGO may
// override, and the lifecycle never depends on this collaborator.
type PrioritySuggester interface {
	SuggestPriority(ctx context.Context, items donation.Items, description string) (*Suggestion, error)
}

type Suggestion struct {
	Priority  donation.Priority `json:"priority"`
	Rationale string            `json:"rationale"`
}
