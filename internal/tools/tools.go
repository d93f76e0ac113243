// Package tools exposes schema-declared capabilities the model can call.
// Every tool enforces a strict JSON-schema contract and converts its own
// failures into model-readable error strings so a bad call never crashes
// the agent turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/jsonschema"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/requirements"
	"github.com/ashureev/elicit/internal/store"
	"github.com/ashureev/elicit/internal/wire"
)

// Context carries the per-turn collaborators tools act on. State is
// refreshed by tools that mutate the ledger so later tools in the same
// turn see the result.
type Context struct {
	State        *domain.SessionState
	Emit         func(wire.Message) error
	Mapper       *wire.Mapper
	Manager      *store.Manager
	Requirements *requirements.Service
	Schedule     func(artifactType string)
	Catalog      *artifacts.Catalog
	Logger       *slog.Logger
}

// Tool is one callable capability.
type Tool interface {
	Name() string
	Description() string
	InputSchema() *jsonschema.Schema
	Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error)
}

// Registry holds the tool set and is the error boundary for execution.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(tool Tool) {
	if _, ok := r.tools[tool.Name()]; !ok {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Definitions returns the strict tool schemas for the provider, in
// registration order.
func (r *Registry) Definitions() ([]llm.ToolDefinition, error) {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		schema, err := tool.InputSchema().MarshalStrict()
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", name, err)
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  schema,
			Strict:      true,
		})
	}
	return defs, nil
}

// Dispatch runs the named tool and always returns a string for the model.
// Tool errors are converted to {"error": ...} payloads, never propagated.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage, tc *Context) string {
	tool, ok := r.tools[name]
	if !ok {
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
	out, err := tool.Execute(ctx, args, tc)
	if err != nil {
		tc.Logger.Warn("tool execution failed", "tool", name, "error", err)
		return errorResult(fmt.Sprintf("Tool execution failed: %v", err))
	}
	return out
}

func errorResult(message string) string {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return string(raw)
}
