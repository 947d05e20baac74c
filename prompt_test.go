package agent

import (
	"strings"
	"testing"

	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

func TestBuildSystemMessageDefaultTemplate(t *testing.T) {
	out, err := BuildSystemMessage("", PromptInput{
		Name:     "helper",
		Model:    "gpt-test",
		Behavior: "  Answer briefly.  ",
		Tools: []ToolSpec{{
			Name:        "search",
			Signature:   "search(query: str) -> str",
			Description: "Searches the web.",
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"You are helper, an assistant powered by gpt-test.",
		"Answer briefly.",
		toolcall.DisableMarker,
		"## Available functions",
		"def search(query: str) -> str",
		`"""Searches the web."""`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("system message missing %q:\n%s", want, out)
		}
	}
}

func TestBuildSystemMessageWithoutTools(t *testing.T) {
	out, err := BuildSystemMessage("", PromptInput{Name: "n", Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Tool use") || strings.Contains(out, "@") {
		t.Fatalf("tool section should be omitted:\n%s", out)
	}
}

func TestBuildSystemMessageCustomTemplate(t *testing.T) {
	out, err := BuildSystemMessage("{{.Name}} speaks {{.language}}. {{.Tools}}", PromptInput{
		Name:  "bot",
		Tools: []ToolSpec{{Name: "echo"}},
		Data:  map[string]any{"language": "French", "Name": "ignored"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "bot speaks French. def echo(...)") {
		t.Fatalf("unexpected rendering %q", out)
	}
}

func TestBuildSystemMessageBadTemplate(t *testing.T) {
	if _, err := BuildSystemMessage("{{.Name", PromptInput{}); err == nil {
		t.Fatalf("expected parse error")
	}
}
