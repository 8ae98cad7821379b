package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Provider is a chat-style text model.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// JSONProvider is an optional interface. Providers may return schema-constrained JSON.
type JSONProvider interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *Schema, target any) error
}

// Researcher is an optional interface for search-grounded calls.
type Researcher interface {
	Research(ctx context.Context, prompt string) (string, error)
}

// Schema describes the expected JSON object of a GenerateJSON call.
type Schema struct {
	Properties map[string]SchemaField
	Required   []string
}

type SchemaField struct {
	Type        string // "string" or "array" (of strings)
	Description string
}
