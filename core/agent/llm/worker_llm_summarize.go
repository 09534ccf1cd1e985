package llm

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/pkg/apperr"
)

const summarySystemPrompt = `You help manage and organize travel itineraries.
Present the travel items you are given in a clear, organized way.
Consider time zones and travel duration when organizing schedules.

When presenting information:
1. Only show the items provided; they are upcoming and active
2. Group items by type (flights, hotels, activities)
3. Sort chronologically
4. Include confirmation numbers and important details
5. Highlight any scheduling conflicts

Format the output in a clear, easy-to-read way with:
- Dates and times
- Confirmation numbers
- Important details like flight numbers or hotel names
- Prices when available`

// TextCompleter is satisfied by every chat client in this package
type TextCompleter interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Summarizer renders an itinerary digest through an LLM
type Summarizer struct {
	llm      TextCompleter
	provider string
}

var _ out.SummaryAgent = (*Summarizer)(nil)

func NewSummarizer(llm TextCompleter, provider string) *Summarizer {
	return &Summarizer{llm: llm, provider: provider}
}

func (s *Summarizer) Summarize(ctx context.Context, userID string, items []domain.TravelItem) (string, error) {
	if len(items) == 0 {
		return "No upcoming travel.", nil
	}

	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", apperr.InternalWithError(err)
	}

	userPrompt := fmt.Sprintf("Give me a summary of upcoming travel for user %s.\n\nItems:\n%s", userID, payload)

	digest, err := s.llm.CompleteWithSystem(ctx, summarySystemPrompt, userPrompt)
	if err != nil {
		return "", apperr.ExternalError(s.provider, err)
	}
	return digest, nil
}
