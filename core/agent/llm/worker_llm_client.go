// Package llm holds the LLM-backed extraction and summary agents.
package llm

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	openai "github.com/sashabaranov/go-openai"

	"travel_server/core/agent/tools"
	"travel_server/pkg/metrics"
	"travel_server/pkg/resilience"
)

const providerOpenAI = "openai"

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
}

type ClientConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	BaseURL     string // override for proxies and tests
}

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.2
	DefaultTimeout     = 60 * time.Second
)

func NewClient(apiKey string) *Client {
	return NewClientWithConfig(ClientConfig{APIKey: apiKey})
}

func NewClientWithConfig(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
		breaker:     resilience.NewBreaker("openai", resilience.DefaultBreakerConfig()),
	}
}

// Model returns the configured chat model
func (c *Client) Model() string {
	return c.model
}

// chat sends one request through the breaker and returns the first choice
func (c *Client) chat(ctx context.Context, operation string, req openai.ChatCompletionRequest) (*openai.ChatCompletionMessage, error) {
	req.Model = c.model
	req.MaxTokens = c.maxTokens
	req.Temperature = c.temperature

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.LLMCallDuration.WithLabelValues(providerOpenAI, operation).Observe(time.Since(start).Seconds())
	}()

	return resilience.Call(c.breaker, func() (*openai.ChatCompletionMessage, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return &openai.ChatCompletionMessage{}, nil
		}
		return &resp.Choices[0].Message, nil
	})
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.chat(ctx, "complete", openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := c.chat(ctx, "complete", openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// CompleteJSON returns a JSON object response from LLM
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := c.chat(ctx, "json", openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if msg.Content == "" {
		return "{}", nil
	}
	return msg.Content, nil
}

// CompleteWithTools calls LLM with function calling capability. Calls whose
// arguments are not a JSON object are returned with nil Args.
func (c *Client) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, toolDefs []tools.ToolDefinition) (string, []tools.ToolCall, error) {
	openaiTools := make([]openai.Tool, len(toolDefs))
	for i, t := range toolDefs {
		openaiTools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}

	msg, err := c.chat(ctx, "tools", openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Tools: openaiTools,
	})
	if err != nil {
		return "", nil, err
	}

	var toolCalls []tools.ToolCall
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = nil
		}
		toolCalls = append(toolCalls, tools.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	return msg.Content, toolCalls, nil
}
