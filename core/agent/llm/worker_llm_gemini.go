package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"travel_server/core/agent/tools"
	"travel_server/pkg/metrics"
	"travel_server/pkg/resilience"
)

const (
	providerGemini     = "gemini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// GeminiClient calls the Gemini API for structured extraction and plain text
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
}

func NewGeminiClient(ctx context.Context, cfg ClientConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
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

	return &GeminiClient{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
		timeout:     timeout,
		breaker:     resilience.NewBreaker("gemini", resilience.DefaultBreakerConfig()),
	}, nil
}

func (c *GeminiClient) generate(ctx context.Context, operation, systemPrompt, userPrompt string, schema *genai.Schema) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.LLMCallDuration.WithLabelValues(providerGemini, operation).Observe(time.Since(start).Seconds())
	}()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxTokens,
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	return resilience.Call(c.breaker, func() (string, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), cfg)
		if err != nil {
			return "", fmt.Errorf("gemini API call failed: %w", err)
		}
		return resp.Text(), nil
	})
}

// ExtractJSON returns a JSON document matching ExtractionSchema
func (c *GeminiClient) ExtractJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, "extract", systemPrompt, userPrompt, ExtractionSchema())
}

func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, "complete", systemPrompt, userPrompt, nil)
}

// ExtractionSchema is {items: [store_travel_item arguments], commentary}
func ExtractionSchema() *genai.Schema {
	def := tools.StoreTravelItemDefinition()

	properties := make(map[string]*genai.Schema, len(tools.StoreTravelItemParams))
	ordering := make([]string, 0, len(tools.StoreTravelItemParams))
	for _, p := range tools.StoreTravelItemParams {
		properties[p.Name] = &genai.Schema{
			Type:        schemaType(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
			Nullable:    genai.Ptr(!p.Required),
		}
		ordering = append(ordering, p.Name)
	}

	item := &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       properties,
		Required:         def.Parameters.Required,
		PropertyOrdering: ordering,
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {
				Type:        genai.TypeArray,
				Items:       item,
				Description: "One entry per booking found in the email. Empty when there is none.",
			},
			"commentary": {
				Type:        genai.TypeString,
				Description: "Short note on what was found or why nothing was reported.",
			},
		},
		Required: []string{"items", "commentary"},
	}
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
