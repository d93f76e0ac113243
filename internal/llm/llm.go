// Package llm abstracts the model provider behind a small client interface
// with tool calling, structured output and retry/error classification.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles as sent to the provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDefinition describes a callable tool for the model. Parameters is a
// serialized JSON Schema. Strict tools reject arguments outside the schema.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Strict      bool
}

// Response is the assistant's reply: free text, tool calls, or both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the provider surface the rest of the system depends on.
type Client interface {
	// ChatWithTools runs one completion turn with the tool set exposed.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)

	// StructuredCompletion requests output conforming to the given JSON
	// schema and unmarshals it into out. A model refusal is returned as
	// an error matching ErrRefusal.
	StructuredCompletion(ctx context.Context, messages []Message, schemaName string, schema json.RawMessage, out any) error

	// TextCompletion runs a plain completion with no tools.
	TextCompletion(ctx context.Context, messages []Message) (string, error)
}
