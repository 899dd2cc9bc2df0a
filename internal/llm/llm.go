// Package llm talks to an OpenAI-compatible text generation API. It is the
// only place that knows the provider's wire format; the rest of the code
// depends on the Engine interface.
package llm

import "context"

// Engine abstracts the generation provider. Consumers such as the index
// builder and the query engine use this interface instead of depending on
// a concrete client.
type Engine interface {
	// Complete sends messages to the given model and returns the assistant's
	// response. When jsonSchema is non-nil, structured JSON output is requested.
	Complete(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)

	// Embed returns the embedding vector for the given text using the specified model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Message represents a chat message in the provider's API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema describes the expected JSON output structure for structured
// completion responses.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties,omitempty"`
	Items      *Schema                   `json:"items,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}
