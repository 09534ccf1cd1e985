package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"travel_server/core/agent/tools"
	"travel_server/core/domain"
	"travel_server/pkg/apperr"
)

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		maxLen   int
		expected string
	}{
		{name: "short body", body: "Hello world", maxLen: 100, expected: "Hello world"},
		{name: "exact length", body: "Hello", maxLen: 5, expected: "Hello"},
		{name: "truncated", body: "Hello world, this is a long message", maxLen: 10, expected: "Hello worl..."},
		{name: "empty body", body: "", maxLen: 100, expected: ""},
		{name: "multibyte counted as characters", body: "Zürich→München", maxLen: 7, expected: "Zürich→..."},
		{name: "multibyte under limit", body: "Zürich", maxLen: 6, expected: "Zürich"},
		{name: "cut before emoji", body: "Trip ✈️ booked", maxLen: 5, expected: "Trip ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateBody(tt.body, tt.maxLen)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"items":[]}`, want: `{"items":[]}`},
		{name: "json fence", in: "```json\n{\"items\":[]}\n```", want: `{"items":[]}`},
		{name: "bare fence", in: "```\n{}\n```\n", want: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}

type mockToolCompleter struct {
	fn func(ctx context.Context, system, user string, defs []tools.ToolDefinition) (string, []tools.ToolCall, error)
}

func (m *mockToolCompleter) CompleteWithTools(ctx context.Context, system, user string, defs []tools.ToolDefinition) (string, []tools.ToolCall, error) {
	return m.fn(ctx, system, user, defs)
}

func TestToolExtractor_Extract(t *testing.T) {
	var gotUser string
	var gotDefs []tools.ToolDefinition
	llm := &mockToolCompleter{fn: func(_ context.Context, _, user string, defs []tools.ToolDefinition) (string, []tools.ToolCall, error) {
		gotUser, gotDefs = user, defs
		return "Found one flight.", []tools.ToolCall{
			{ID: "1", Name: tools.StoreTravelItemName, Args: map[string]any{
				"item_type":           "flight",
				"description":         "New York to Chicago",
				"start_time":          "2024-07-20T10:00:00",
				"confirmation_number": "ABC123",
				"flight_number":       "AA456",
			}},
			{ID: "2", Name: tools.StoreTravelItemName, Args: map[string]any{"item_type": "train"}},
			{ID: "3", Name: "book_spa"},
		}, nil
	}}

	ext, err := NewToolExtractor(llm).Extract(context.Background(), "u1", "Subject: Flight Confirmation")
	require.NoError(t, err)

	assert.Contains(t, gotUser, "user u1")
	assert.Contains(t, gotUser, "Subject: Flight Confirmation")
	require.Len(t, gotDefs, 1)
	assert.Equal(t, tools.StoreTravelItemName, gotDefs[0].Name)

	require.Len(t, ext.Items, 1)
	assert.Equal(t, domain.ItemTypeFlight, ext.Items[0].Type)
	assert.Equal(t, "ABC123", ext.Items[0].Details.Confirmation())
	assert.True(t, strings.HasPrefix(ext.Commentary, "Found one flight."))
	assert.Contains(t, ext.Commentary, "dropped invalid results")
	assert.Contains(t, ext.Commentary, "book_spa")
}

func TestToolExtractor_LLMFailure(t *testing.T) {
	llm := &mockToolCompleter{fn: func(context.Context, string, string, []tools.ToolDefinition) (string, []tools.ToolCall, error) {
		return "", nil, errors.New("rate limited")
	}}

	ext, err := NewToolExtractor(llm).Extract(context.Background(), "u1", "text")
	assert.Nil(t, ext)
	assert.True(t, apperr.HasCode(err, apperr.CodeExternalError))
}

type mockSchemaCompleter struct {
	resp string
	err  error
}

func (m *mockSchemaCompleter) ExtractJSON(context.Context, string, string) (string, error) {
	return m.resp, m.err
}

func TestSchemaExtractor_Extract(t *testing.T) {
	tests := []struct {
		name      string
		resp      string
		wantItems int
		wantErr   bool
		wantNote  string
	}{
		{
			name: "hotel and activity",
			resp: "```json\n" + `{"items":[
				{"item_type":"hotel","description":"The Grand Hotel Chicago","start_time":"2024-07-20T15:00:00","end_time":"2024-07-23T11:00:00","confirmation_number":"HOTEL789","hotel_name":"The Grand Hotel Chicago","price_paid":null},
				{"item_type":"activity","description":"Architecture River Cruise","start_time":"2024-07-21T14:00:00","confirmation_number":"TOUR456","activity_name":"Chicago Architecture River Cruise","location":"Navy Pier"}
			],"commentary":"two bookings"}` + "\n```",
			wantItems: 2,
			wantNote:  "two bookings",
		},
		{
			name:      "nothing found",
			resp:      `{"items":[],"commentary":"promotional email"}`,
			wantItems: 0,
			wantNote:  "promotional email",
		},
		{
			name:      "invalid item dropped",
			resp:      `{"items":[{"item_type":"hotel","description":"x","start_time":"2024-07-20","spa":true}],"commentary":""}`,
			wantItems: 0,
			wantNote:  "dropped invalid results: item 0",
		},
		{
			name:    "not json",
			resp:    "I could not find anything.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := NewSchemaExtractor(&mockSchemaCompleter{resp: tt.resp}).Extract(context.Background(), "u1", "body")
			if tt.wantErr {
				assert.True(t, apperr.HasCode(err, apperr.CodeExternalError))
				return
			}
			require.NoError(t, err)
			assert.Len(t, ext.Items, tt.wantItems)
			assert.Contains(t, ext.Commentary, tt.wantNote)
		})
	}
}

func TestExtractionSchema(t *testing.T) {
	schema := ExtractionSchema()

	require.Contains(t, schema.Properties, "items")
	item := schema.Properties["items"].Items
	require.NotNil(t, item)
	assert.Equal(t, genai.TypeObject, item.Type)
	assert.Len(t, item.Properties, len(tools.StoreTravelItemParams))
	assert.Equal(t, []string{"item_type", "description", "start_time"}, item.Required)
	assert.Equal(t, genai.TypeNumber, item.Properties["price_paid"].Type)
	assert.Equal(t, []string{"flight", "hotel", "activity"}, item.Properties["item_type"].Enum)
	assert.Equal(t, "item_type", item.PropertyOrdering[0])
}

func TestClient_CompleteWithTools(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [
						{"id": "call_1", "type": "function", "function": {"name": "store_travel_item", "arguments": "{\"item_type\":\"flight\",\"description\":\"JFK-ORD\",\"start_time\":\"2030-07-20T10:00:00\"}"}},
						{"id": "call_2", "type": "function", "function": {"name": "store_travel_item", "arguments": "not json"}}
					]
				}
			}]
		}`))
	}))
	defer srv.Close()

	c := NewClientWithConfig(ClientConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	_, calls, err := c.CompleteWithTools(context.Background(), "system", "user",
		[]tools.ToolDefinition{tools.StoreTravelItemDefinition()})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, gotReq["model"])
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "flight", calls[0].Args["item_type"])
	assert.Nil(t, calls[1].Args)

	item, err := tools.ParseToolCall(calls[0])
	require.NoError(t, err)
	assert.Equal(t, "JFK-ORD", item.Description)
}
