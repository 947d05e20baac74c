package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	"github.com/universal-tool-calling-protocol/go-utcp/src/tools"

	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// UTCPClient is the part of a UTCP client the tool bridge needs.
type UTCPClient interface {
	CallTool(ctx context.Context, toolName string, args map[string]any) (any, error)
	SearchTools(query string, limit int) ([]tools.Tool, error)
}

var _ UTCPClient = utcp.UtcpClientInterface(nil)

// UTCPTools discovers tools on a UTCP client and exposes them as Tools.
func UTCPTools(client UTCPClient, query string, limit int) ([]Tool, error) {
	if client == nil {
		return nil, errors.New("utcp client is nil")
	}
	found, err := client.SearchTools(query, limit)
	if err != nil {
		return nil, fmt.Errorf("search utcp tools: %w", err)
	}
	out := make([]Tool, 0, len(found))
	for _, t := range found {
		if !validToolName(t.Name) {
			continue
		}
		out = append(out, &utcpTool{client: client, tool: t})
	}
	return out, nil
}

type utcpTool struct {
	client UTCPClient
	tool   tools.Tool
}

// paramOrder lists required inputs first, then the optional ones sorted, which
// is the order positional arguments bind to.
func (t *utcpTool) paramOrder() []string {
	order := slices.Clone(t.tool.Inputs.Required)
	var optional []string
	for name := range t.tool.Inputs.Properties {
		if !slices.Contains(order, name) {
			optional = append(optional, name)
		}
	}
	slices.Sort(optional)
	return append(order, optional...)
}

func (t *utcpTool) Spec() ToolSpec {
	params := t.paramOrder()
	for i, name := range params {
		if !slices.Contains(t.tool.Inputs.Required, name) {
			params[i] = name + "=None"
		}
	}
	return ToolSpec{
		Name:        t.tool.Name,
		Description: t.tool.Description,
		Signature:   fmt.Sprintf("%s(%s)", t.tool.Name, strings.Join(params, ", ")),
		InputSchema: map[string]any{
			"type":       t.tool.Inputs.Type,
			"properties": t.tool.Inputs.Properties,
			"required":   t.tool.Inputs.Required,
		},
	}
}

func (t *utcpTool) Invoke(ctx context.Context, req ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	params := t.paramOrder()
	if len(args.Positional) > len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d positional", t.tool.Name, len(params), len(args.Positional))
	}
	input := make(map[string]any, len(args.Positional)+len(args.Keyword))
	for i, v := range args.Positional {
		input[params[i]] = v
	}
	for k, v := range args.Keyword {
		if _, dup := input[k]; dup {
			return nil, fmt.Errorf("%s got multiple values for argument %q", t.tool.Name, k)
		}
		input[k] = v
	}
	return t.client.CallTool(ctx, t.tool.Name, input)
}

// AgentToolAdapter adapts an Agent to the Tool interface. Every invocation is
// a new instruction on the wrapped agent's conversation, so calls accumulate
// context. An agent registered as its own tool fails with ErrAgentBusy.
type AgentToolAdapter struct {
	agent       *Agent
	name        string
	description string
}

// NewAgentTool creates a new tool that wraps an Agent.
func NewAgentTool(name, description string, agent *Agent) Tool {
	return &AgentToolAdapter{
		agent:       agent,
		name:        name,
		description: description,
	}
}

func (t *AgentToolAdapter) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.name,
		Description: t.description,
		Signature:   t.name + "(instruction: str) -> str",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"instruction": map[string]any{
					"type":        "string",
					"description": "The instruction or query for the sub-agent.",
				},
			},
			"required": []string{"instruction"},
		},
	}
}

func (t *AgentToolAdapter) Invoke(ctx context.Context, req ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	instruction, err := args.String("instruction", 0)
	if err != nil {
		return nil, err
	}
	out, err := t.agent.Generate(ctx, instruction)
	if err != nil {
		return nil, err
	}
	return ToolResponse{
		Content:  out,
		Metadata: map[string]string{"session_id": t.agent.SessionID()},
	}, nil
}

// AsTool returns a Tool representation of the Agent.
func (a *Agent) AsTool(name, description string) Tool {
	return NewAgentTool(name, description, a)
}

// AsUTCPTool exposes the agent as a UTCP tool with an in-process handler.
// The tool accepts a required "instruction" input and answers with
// "response" and "session_id".
func (a *Agent) AsUTCPTool(name, description string) tools.Tool {
	providerName := strings.TrimSpace(name)
	if parts := strings.Split(name, "."); len(parts) > 1 {
		providerName = parts[0]
	}
	return tools.Tool{
		Name:        name,
		Description: description,
		Provider: &base.BaseProvider{
			Name:         providerName,
			ProviderType: base.ProviderCLI, // in-process handler, no remote transport
		},
		Inputs: tools.ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]any{
				"instruction": map[string]any{
					"type":        "string",
					"description": "The instruction or query for the agent.",
				},
			},
			Required: []string{"instruction"},
		},
		Outputs: tools.ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]any{
				"response":   map[string]any{"type": "string"},
				"session_id": map[string]any{"type": "string"},
			},
		},
		// The handler's first argument is a value map, not a context.
		Handler: func(_ map[string]interface{}, inputs map[string]interface{}) (map[string]interface{}, error) {
			instruction, ok := inputs["instruction"].(string)
			if !ok || strings.TrimSpace(instruction) == "" {
				return nil, fmt.Errorf("missing or invalid 'instruction'")
			}
			out, err := a.Generate(context.Background(), instruction)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"response": out, "session_id": a.SessionID()}, nil
		},
	}
}
