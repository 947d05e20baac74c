package tools

import (
	"context"
	"strings"
	"time"

	agent "github.com/Protocol-Lattice/toolloop"
	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// EchoTool repeats the provided input. Useful for testing tool wiring.
type EchoTool struct{}

func (e *EchoTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "echo",
		Description: "Echoes the provided text back to the caller.",
		Signature:   "echo(text: str) -> str",
	}
}

func (e *EchoTool) Invoke(_ context.Context, req agent.ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	text, err := args.StringOr("text", 0, "")
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(text), nil
}

// TimeTool reports the current UTC time in RFC3339 format.
type TimeTool struct {
	Now func() time.Time
}

func (t *TimeTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "time",
		Description: "Returns the current UTC time.",
		Signature:   "time() -> str",
	}
}

func (t *TimeTool) Invoke(context.Context, agent.ToolRequest) (any, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return now().UTC().Format(time.RFC3339), nil
}
