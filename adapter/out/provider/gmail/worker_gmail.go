// Package gmail provides a read-only Gmail mail source.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"travel_server/core/port/out"
	"travel_server/pkg/logger"
	"travel_server/pkg/mailtext"
	"travel_server/pkg/resilience"
)

// subjectTerms narrow the server-side search to booking mail
var subjectTerms = []string{"confirmation", "confirmed", "booking", "reservation", "itinerary", "e-ticket"}

// Provider implements out.MailSource for Gmail.
type Provider struct {
	service *gmail.Service
	breaker *gobreaker.CircuitBreaker
}

var _ out.MailSource = (*Provider)(nil)

// NewProvider creates a Gmail provider. Pass option.WithHTTPClient with an
// authorized client; see Client.
func NewProvider(ctx context.Context, opts ...option.ClientOption) (*Provider, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Provider{
		service: service,
		breaker: resilience.NewBreaker("gmail", resilience.DefaultBreakerConfig()),
	}, nil
}

// BuildQuery returns the search query for mail received after the cutoff
func BuildQuery(after time.Time) string {
	clauses := make([]string, len(subjectTerms))
	for i, term := range subjectTerms {
		clauses[i] = fmt.Sprintf("subject:%q", term)
	}
	return fmt.Sprintf("after:%s AND (%s)", after.Format("2006/01/02"), strings.Join(clauses, " OR "))
}

// FetchMessages lists matching messages and fetches each in list order.
// Messages that cannot be fetched or have no body are skipped.
func (p *Provider) FetchMessages(ctx context.Context, q out.MailQuery) ([]out.MailMessage, error) {
	query := BuildQuery(q.After)
	log := logger.WithField("query", query)

	req := p.service.Users.Messages.List("me").Q(query)
	if q.MaxResults > 0 {
		req = req.MaxResults(int64(q.MaxResults))
	}

	resp, err := resilience.Call(p.breaker, func() (*gmail.ListMessagesResponse, error) {
		return req.Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]out.MailMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if err := ctx.Err(); err != nil {
			return messages, err
		}

		msg, err := p.getMessage(ctx, m.Id)
		if err != nil {
			if resilience.IsOpen(err) {
				return messages, err
			}
			log.WithError(err).Warn("skipping message %s", m.Id)
			continue
		}
		if msg.Body == "" {
			log.Debug("skipping message %s without body", m.Id)
			continue
		}
		messages = append(messages, *msg)
	}

	log.Info("fetched %d of %d messages", len(messages), len(resp.Messages))
	return messages, nil
}

func (p *Provider) getMessage(ctx context.Context, messageID string) (*out.MailMessage, error) {
	msg, err := resilience.Call(p.breaker, func() (*gmail.Message, error) {
		return p.service.Users.Messages.Get("me", messageID).
			Format("full").
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return parseMessage(msg), nil
}

// Helper functions

func parseMessage(msg *gmail.Message) *out.MailMessage {
	mm := &out.MailMessage{
		ID:         msg.Id,
		Subject:    "No Subject",
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}

	if msg.Payload == nil {
		return mm
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			mm.From = header.Value
		case "Subject":
			if header.Value != "" {
				mm.Subject = header.Value
			}
		}
	}

	htmlBody, textBody := parseBody(msg.Payload)
	mm.Body = strings.TrimSpace(textBody)
	if mm.Body == "" && htmlBody != "" {
		mm.Body = mailtext.HTMLToText(htmlBody)
	}

	return mm
}

// parseBody returns the first text/html and text/plain parts, depth first.
// A single-part message without a known type is treated as plain text.
func parseBody(payload *gmail.MessagePart) (html, text string) {
	if payload == nil {
		return "", ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		data := decodeBody(payload.Body.Data)
		switch {
		case payload.MimeType == "text/html":
			html = data
		case payload.MimeType == "text/plain", len(payload.Parts) == 0 && !strings.HasPrefix(payload.MimeType, "multipart/"):
			text = data
		}
	}

	for _, part := range payload.Parts {
		h, t := parseBody(part)
		if html == "" && h != "" {
			html = h
		}
		if text == "" && t != "" {
			text = t
		}
	}

	return html, text
}

// decodeBody accepts padded and unpadded base64url
func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(b)
}
