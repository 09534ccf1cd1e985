package out

import (
	"context"
	"time"
)

// MailMessage is the part of an email the pipeline consumes
type MailMessage struct {
	ID         string    `json:"id"`
	From       string    `json:"from,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// MailQuery selects messages received after a cutoff
type MailQuery struct {
	After      time.Time
	MaxResults int
}

// MailSource yields candidate messages for a scan. Implementations are read-only.
type MailSource interface {
	FetchMessages(ctx context.Context, q MailQuery) ([]MailMessage, error)
}
