package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"travel_server/core/agent/tools"
	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/pkg/apperr"
	"travel_server/pkg/logger"
)

// maxEmailChars bounds the email text sent to the model
const maxEmailChars = 8000

const extractionSystemPrompt = `You are an expert at parsing travel-related emails.
Extract key information like flight details, hotel bookings, and activities.
When you find travel information, report it with store_travel_item, one call per booking.

IMPORTANT RULES:
1. Only report bookings with a valid confirmation or ticket number
2. Skip any promotional emails or price tracking
3. If the email cancels a booking, report it with booking_status "cancelled"
4. Only report future travel items
5. For activities, only report those with actual tickets or bookings

For flights, extract: flight number and airline, departure and arrival airports,
exact times, confirmation number, booking status, price paid if available.

For hotels, extract: hotel name, exact check-in and check-out dates and times
(start_time is check-in, end_time is check-out), confirmation number, room type,
price paid if available.

For activities, only if there is a confirmed booking: activity name, exact date
and time, location, ticket or booking reference, ticket type, price paid if available.

Times are ISO-8601 without offset, e.g. 2024-07-20T08:15:00.

DO NOT report:
- Price alerts or deals
- Wishlists or saved items
- Past travel items
- Activities without a booking confirmation`

// ToolCompleter is satisfied by chat clients that support function calling
type ToolCompleter interface {
	CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, toolDefs []tools.ToolDefinition) (string, []tools.ToolCall, error)
}

// ToolExtractor extracts travel items through store_travel_item function calls
type ToolExtractor struct {
	llm ToolCompleter
}

var _ out.ExtractionAgent = (*ToolExtractor)(nil)

func NewToolExtractor(llm ToolCompleter) *ToolExtractor {
	return &ToolExtractor{llm: llm}
}

// Extract asks the model for store_travel_item calls. Calls that fail
// validation are dropped and noted in the commentary.
func (e *ToolExtractor) Extract(ctx context.Context, userID, text string) (*out.Extraction, error) {
	content, calls, err := e.llm.CompleteWithTools(ctx, extractionSystemPrompt, extractionUserPrompt(userID, text),
		[]tools.ToolDefinition{tools.StoreTravelItemDefinition()})
	if err != nil {
		return nil, apperr.ExternalError("openai", err)
	}

	var items []domain.TravelItem
	var dropped []string
	for _, call := range calls {
		item, err := tools.ParseToolCall(call)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("%s: %v", call.Name, err))
			continue
		}
		items = append(items, item)
	}

	return newExtraction(userID, items, content, dropped), nil
}

// SchemaCompleter is satisfied by clients that return JSON constrained
// to the store_travel_item batch schema
type SchemaCompleter interface {
	ExtractJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SchemaExtractor extracts travel items from a structured JSON response
type SchemaExtractor struct {
	llm SchemaCompleter
}

var _ out.ExtractionAgent = (*SchemaExtractor)(nil)

func NewSchemaExtractor(llm SchemaCompleter) *SchemaExtractor {
	return &SchemaExtractor{llm: llm}
}

// extractionBatch is the response shape: items follow store_travel_item
type extractionBatch struct {
	Items      []json.RawMessage `json:"items"`
	Commentary string            `json:"commentary"`
}

func (e *SchemaExtractor) Extract(ctx context.Context, userID, text string) (*out.Extraction, error) {
	resp, err := e.llm.ExtractJSON(ctx, extractionSystemPrompt, extractionUserPrompt(userID, text))
	if err != nil {
		return nil, apperr.ExternalError("gemini", err)
	}

	var batch extractionBatch
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &batch); err != nil {
		return nil, apperr.ExternalError("gemini", fmt.Errorf("failed to parse extraction: %w", err))
	}

	var items []domain.TravelItem
	var dropped []string
	for i, raw := range batch.Items {
		item, err := tools.ParseStoreTravelItem(raw)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		items = append(items, item)
	}

	return newExtraction(userID, items, batch.Commentary, dropped), nil
}

func extractionUserPrompt(userID, text string) string {
	return fmt.Sprintf(`Process this email for user %s. Remember:
- Only extract bookings with confirmation numbers
- Skip promotional or tracking emails
- Only future travel items

Email content:
%s`, userID, truncateBody(text, maxEmailChars))
}

func newExtraction(userID string, items []domain.TravelItem, commentary string, dropped []string) *out.Extraction {
	commentary = strings.TrimSpace(commentary)
	if len(dropped) > 0 {
		logger.WithFields(map[string]any{
			"user_id": userID,
			"dropped": len(dropped),
		}).Warn("dropped invalid extraction results")

		note := "dropped invalid results: " + strings.Join(dropped, "; ")
		if commentary == "" {
			commentary = note
		} else {
			commentary += "\n" + note
		}
	}
	return &out.Extraction{Items: items, Commentary: commentary}
}

func stripCodeFence(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

// truncateBody keeps the first maxLen characters. It never splits a rune.
func truncateBody(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	n := 0
	for i := range body {
		if n == maxLen {
			return body[:i] + "..."
		}
		n++
	}
	return body
}
