// Package tools describes the functions an LLM agent may call.
package tools

// ToolCategory categorizes tools
type ToolCategory string

const (
	CategoryTravel ToolCategory = "travel"
)

// ParameterSpec defines a tool parameter
type ParameterSpec struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // string, number, boolean
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"` // allowed values
}

// ToolDefinition for LLM function calling
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    ToolCategory   `json:"category"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters for OpenAI function calling format
type ToolParameters struct {
	Type       string                       `json:"type"`
	Properties map[string]ParameterProperty `json:"properties"`
	Required   []string                     `json:"required"`
}

// ParameterProperty for OpenAI format
type ParameterProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolCall represents a tool call from LLM
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// NewDefinition builds a definition from an ordered parameter list
func NewDefinition(name, description string, category ToolCategory, params []ParameterSpec) ToolDefinition {
	properties := make(map[string]ParameterProperty, len(params))
	required := []string{}

	for _, p := range params {
		properties[p.Name] = ParameterProperty{
			Type:        p.Type,
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return ToolDefinition{
		Name:        name,
		Description: description,
		Category:    category,
		Parameters: ToolParameters{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}
}
