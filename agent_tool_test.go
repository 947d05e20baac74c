package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	"github.com/universal-tool-calling-protocol/go-utcp/src/tools"

	"github.com/Protocol-Lattice/toolloop/pkg/models"
)

type stubUTCPClient struct {
	tools    []tools.Tool
	lastName string
	lastArgs map[string]any
	err      error
}

func (s *stubUTCPClient) CallTool(_ context.Context, name string, args map[string]any) (any, error) {
	s.lastName = name
	s.lastArgs = args
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"ok": true}, nil
}

func (s *stubUTCPClient) SearchTools(string, int) ([]tools.Tool, error) {
	return s.tools, nil
}

func newStubClient() *stubUTCPClient {
	return &stubUTCPClient{tools: []tools.Tool{
		{
			Name:        "weather.lookup",
			Description: "Looks up the weather.",
			Inputs: tools.ToolInputOutputSchema{
				Type: "object",
				Properties: map[string]any{
					"city":  map[string]any{"type": "string"},
					"units": map[string]any{"type": "string"},
				},
				Required: []string{"city"},
			},
		},
		{Name: "not a valid name"},
	}}
}

func TestUTCPToolsDiscovery(t *testing.T) {
	found, err := UTCPTools(newStubClient(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected invalid names to be skipped, got %d tools", len(found))
	}
	spec := found[0].Spec()
	if spec.Name != "weather.lookup" || spec.Signature != "weather.lookup(city, units=None)" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if _, err := UTCPTools(nil, "", 1); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestUTCPToolInvokeBindsArguments(t *testing.T) {
	client := newStubClient()
	found, _ := UTCPTools(client, "", 10)
	tool := found[0]

	out, err := tool.Invoke(context.Background(), ToolRequest{Arguments: `"Oslo", units="metric"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if RenderValue(out) != `{"ok":true}` {
		t.Fatalf("unexpected output %v", out)
	}
	if client.lastName != "weather.lookup" || client.lastArgs["city"] != "Oslo" || client.lastArgs["units"] != "metric" {
		t.Fatalf("unexpected call %s %v", client.lastName, client.lastArgs)
	}

	if _, err := tool.Invoke(context.Background(), ToolRequest{Arguments: `"Oslo", city="Bergen"`}); err == nil {
		t.Fatalf("expected error for duplicate binding")
	}
	if _, err := tool.Invoke(context.Background(), ToolRequest{Arguments: `1, 2, 3`}); err == nil {
		t.Fatalf("expected error for too many positional arguments")
	}

	client.err = errors.New("remote down")
	if _, err := tool.Invoke(context.Background(), ToolRequest{Arguments: `city="Oslo"`}); err == nil {
		t.Fatalf("expected remote error to surface")
	}
}

func TestAgentAsTool(t *testing.T) {
	sub := newTestAgent(t, models.NewScriptedLLM(models.Reply("sub answer")), Options{Name: "sub"})
	tool := sub.AsTool("researcher", "Delegates research.")

	if spec := tool.Spec(); spec.Name != "researcher" || spec.Signature == "" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	out, err := tool.Invoke(context.Background(), ToolRequest{Arguments: `instruction="find it"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, ok := out.(ToolResponse)
	if !ok || resp.Content != "sub answer" || resp.Metadata["session_id"] != sub.SessionID() {
		t.Fatalf("unexpected response %#v", out)
	}
	if _, err := tool.Invoke(context.Background(), ToolRequest{Arguments: ``}); err == nil {
		t.Fatalf("expected error for missing instruction")
	}
}

func TestAgentAsToolInsideLoop(t *testing.T) {
	sub := newTestAgent(t, models.NewScriptedLLM(models.Reply("42")), Options{Name: "sub"})
	parent := newTestAgent(t, models.NewScriptedLLM(
		models.Reply(`@ask("what is the answer?")`),
		models.Reply("The answer is 42."),
	), Options{Tools: []Tool{sub.AsTool("ask", "Asks the sub agent.")}})

	out, err := parent.Generate(context.Background(), "question")
	if err != nil || out != "The answer is 42." {
		t.Fatalf("unexpected output %q %v", out, err)
	}
	msgs := parent.Conversation().Messages()
	if msgs[3].Content != "42" {
		t.Fatalf("sub agent answer should be the tool message, got %q", msgs[3].Content)
	}
}

func TestAgentAsUTCPTool(t *testing.T) {
	a := newTestAgent(t, models.NewScriptedLLM(models.Reply("handled")), Options{})
	tool := a.AsUTCPTool("local.agent", "Runs the agent.")
	bp, ok := tool.Provider.(*base.BaseProvider)
	if !ok || bp.Name != "local" || tool.Provider.Type() != base.ProviderCLI {
		t.Fatalf("unexpected provider %#v", tool.Provider)
	}
	out, err := tool.Handler(nil, map[string]interface{}{"instruction": "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["response"] != "handled" || out["session_id"] != a.SessionID() {
		t.Fatalf("unexpected output %v", out)
	}
	if _, err := tool.Handler(nil, map[string]interface{}{}); err == nil {
		t.Fatalf("expected error for missing instruction")
	}
}

func TestAgentAsOwnToolReportsBusy(t *testing.T) {
	a := newTestAgent(t, models.NewScriptedLLM(
		models.Reply(`@self(instruction="again")`),
		models.Reply("done"),
	), Options{})
	if err := a.catalog.Register(a.AsTool("self", "Calls itself.")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	out, err := a.Generate(context.Background(), "start")
	if err != nil || out != "done" {
		t.Fatalf("unexpected result %q %v", out, err)
	}
	tool := a.Conversation().Messages()[3]
	if !strings.Contains(tool.Content, ErrAgentBusy.Error()) {
		t.Fatalf("expected busy failure in tool message, got %q", tool.Content)
	}
}
