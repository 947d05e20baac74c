package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	agent "github.com/Protocol-Lattice/toolloop"
	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

func invoke(t *testing.T, tool agent.Tool, args string) (any, error) {
	t.Helper()
	return tool.Invoke(context.Background(), agent.ToolRequest{Arguments: args})
}

func TestEchoTool(t *testing.T) {
	out, err := invoke(t, &EchoTool{}, `"  hello world  "`)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCalculatorTool(t *testing.T) {
	out, err := invoke(t, &CalculatorTool{}, `expression="21 / 3"`)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if agent.RenderValue(out) != "7" {
		t.Fatalf("unexpected calculator result: %v", out)
	}
}

func TestCalculatorToolErrors(t *testing.T) {
	tool := &CalculatorTool{}
	if _, err := invoke(t, tool, `"bad input"`); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := invoke(t, tool, `"1 / 0"`); err == nil {
		t.Fatalf("expected division by zero error")
	}
	if _, err := invoke(t, tool, ``); err == nil {
		t.Fatalf("expected missing argument error")
	}
}

func TestTimeTool(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	out, err := invoke(t, &TimeTool{Now: func() time.Time { return fixed }}, "")
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if out != "2026-01-02T02:04:05Z" {
		t.Fatalf("unexpected time %q", out)
	}
	out, _ = invoke(t, &TimeTool{}, "")
	if _, err := time.Parse(time.RFC3339, out.(string)); err != nil {
		t.Fatalf("expected RFC3339 output, got %q: %v", out, err)
	}
}

func TestFileTools(t *testing.T) {
	ws := Workspace{Root: t.TempDir()}

	out, err := invoke(t, &WriteFileTool{Workspace: ws}, `"notes/a.txt", content="line one\nline two"`)
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if !strings.HasPrefix(out.(string), "Content written to ") || !strings.HasSuffix(out.(string), "notes/a.txt") {
		t.Fatalf("unexpected write output %q", out)
	}

	out, err = invoke(t, &ReadFileTool{Workspace: ws}, `path="notes/a.txt"`)
	if err != nil || out != "line one\nline two" {
		t.Fatalf("read_file: %q %v", out, err)
	}

	if _, err := invoke(t, &ReadFileTool{Workspace: ws}, `"../outside.txt"`); err == nil {
		t.Fatalf("expected paths outside the workspace to be rejected")
	}
	if _, err := invoke(t, &ReadFileTool{Workspace: ws}, `"missing.txt"`); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestReadFilesTool(t *testing.T) {
	ws := Workspace{Root: t.TempDir()}
	if err := os.WriteFile(filepath.Join(ws.Root, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root, "b.txt"), []byte("beta"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	tool := &ReadFilesTool{Workspace: ws}

	out, err := invoke(t, tool, `"a.txt", "missing.txt", "b.txt"`)
	if err != nil {
		t.Fatalf("read_files: %v", err)
	}
	text := out.(string)
	if !strings.HasPrefix(text, "\n# a.txt\nalpha\n# missing.txt\nerror: ") || !strings.HasSuffix(text, "\n# b.txt\nbeta") {
		t.Fatalf("unexpected output %q", text)
	}

	out, err = invoke(t, tool, `paths=["b.txt", "../escape.txt"]`)
	if err != nil {
		t.Fatalf("read_files: %v", err)
	}
	if !strings.Contains(out.(string), "# b.txt\nbeta") || !strings.Contains(out.(string), "outside the workspace") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := invoke(t, tool, ""); !errors.Is(err, toolcall.ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments without paths, got %v", err)
	}
}

func TestListDirTool(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"pkg", ".git", "node_modules"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "main.go"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tool := &ListDirTool{Workspace: Workspace{Root: root}}

	out, err := invoke(t, tool, "")
	if err != nil {
		t.Fatalf("list_dir: %v", err)
	}
	if out != "main.go\npkg/" {
		t.Fatalf("unexpected listing %q", out)
	}

	out, err = invoke(t, tool, `".", show_hidden=True, ignore=[]`)
	if err != nil {
		t.Fatalf("list_dir: %v", err)
	}
	if out != ".git/\nmain.go\nnode_modules/\npkg/" {
		t.Fatalf("unexpected listing %q", out)
	}

	if _, err := invoke(t, tool, `ignore=[1]`); err == nil {
		t.Fatalf("expected error for non-string ignore entries")
	}
}

func TestBashTool(t *testing.T) {
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("bash not available")
	}
	root := t.TempDir()
	tool := &BashTool{Workspace: Workspace{Root: root}}

	out, err := invoke(t, tool, `"echo hi && pwd"`)
	if err != nil {
		t.Fatalf("bash: %v", err)
	}
	if !strings.HasPrefix(out.(string), "hi\n") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = invoke(t, tool, `"echo oops >&2; exit 3"`)
	if err != nil {
		t.Fatalf("failing commands are reported as output: %v", err)
	}
	if out != "exit status 3\noops\n" {
		t.Fatalf("unexpected failure output %q", out)
	}

	tool.Timeout = 50 * time.Millisecond
	if _, err := invoke(t, tool, `"sleep 5"`); !errors.Is(err, ErrBashTimedOut) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	tools, err := Select(Workspace{}, "read_file", "echo")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if tools[0].Spec().Name != "read_file" || tools[1].Spec().Name != "echo" {
		t.Fatalf("order not kept")
	}
	if _, err := Select(Workspace{}, "nope"); err == nil || !strings.Contains(err.Error(), "calculator") {
		t.Fatalf("expected error listing available tools, got %v", err)
	}
	if len(Names()) != 8 {
		t.Fatalf("unexpected builtin names %v", Names())
	}
}

func TestBuiltinsRunInsideAgent(t *testing.T) {
	catalog, err := agent.NewStaticToolCatalog(&CalculatorTool{})
	if err != nil {
		t.Fatal(err)
	}
	res := agent.Execute(context.Background(), catalog, "s", "c", callOf(`@calculator("2 ^ 10")`))
	if !res.OK() || res.Content != "1024" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func callOf(text string) toolcall.Call {
	return toolcall.NewParser().Parse(text).Calls[0]
}
