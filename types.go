package agent

import (
	"context"
	"strings"

	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// ToolSpec describes how the agent should present a tool to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Signature   string         `json:"signature,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Examples    []string       `json:"examples,omitempty"`
}

// Instruction returns the fragment rendered for the tool in the system prompt.
func (s ToolSpec) Instruction() toolcall.ToolInstruction {
	return toolcall.ToolInstruction{
		Name:        s.Name,
		Signature:   s.Signature,
		Description: s.Description,
		Examples:    s.Examples,
	}
}

// ToolRequest captures an invocation request for a tool. Arguments is the raw
// text between the call's parentheses; tools decode it themselves, usually
// with toolcall.ParseArguments.
type ToolRequest struct {
	SessionID string
	CallID    string
	Arguments string
}

// ToolResponse is a structured result a tool may return instead of a plain value.
type ToolResponse struct {
	Content  string
	Metadata map[string]string
}

// Tool exposes metadata and an invocation handler. The returned value is
// rendered to text before it enters the conversation.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (any, error)
}

// ToolCatalog maintains a registry of tools addressable by name.
type ToolCatalog interface {
	Register(tool Tool) error
	Lookup(name string) (Tool, ToolSpec, bool)
	Specs() []ToolSpec
	Tools() []Tool
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc struct {
	spec ToolSpec
	fn   func(ctx context.Context, req ToolRequest) (any, error)
}

// NewTool wraps fn as a tool described by spec.
func NewTool(spec ToolSpec, fn func(ctx context.Context, req ToolRequest) (any, error)) *ToolFunc {
	return &ToolFunc{spec: spec, fn: fn}
}

func (t *ToolFunc) Spec() ToolSpec { return t.spec }

func (t *ToolFunc) Invoke(ctx context.Context, req ToolRequest) (any, error) {
	return t.fn(ctx, req)
}

// validToolName reports whether name can be written as @name(...).
func validToolName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			c := part[i]
			switch {
			case c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
			case i > 0 && '0' <= c && c <= '9':
			default:
				return false
			}
		}
	}
	return true
}
