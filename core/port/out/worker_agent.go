package out

import (
	"context"

	"travel_server/core/domain"
)

// Extraction is what an extraction agent recovered from one email
type Extraction struct {
	Items      []domain.TravelItem
	Commentary string
}

// ExtractionAgent turns raw email text into candidate travel items.
// An error means "no item"; callers skip the email without mutating state.
type ExtractionAgent interface {
	Extract(ctx context.Context, userID, text string) (*Extraction, error)
}

// SummaryAgent renders a digest of a user's upcoming items
type SummaryAgent interface {
	Summarize(ctx context.Context, userID string, items []domain.TravelItem) (string, error)
}

// DigestSender delivers a rendered digest
type DigestSender interface {
	SendDigest(ctx context.Context, subject, body string) error
}
