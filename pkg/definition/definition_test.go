package definition

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "honest.md")
	writeFile(t, path, `---
provider: openai
model: gpt-4
tools:
  - read_file
  - bash
max_iterations: 5
auto_save: false
prompt_data:
  language: English
---
You are an honest assistant.
`)
	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if def.Name != "honest" || def.Provider != "openai" || def.Model != "gpt-4" || def.MaxIterations != 5 {
		t.Fatalf("unexpected definition %+v", def)
	}
	if !slices.Equal(def.Tools, []string{"read_file", "bash"}) {
		t.Fatalf("unexpected tools %v", def.Tools)
	}
	if def.SaveEnabled() || def.PromptData["language"] != "English" {
		t.Fatalf("unexpected options %+v", def)
	}
	if def.Behavior != "You are an honest assistant." {
		t.Fatalf("unexpected behavior %q", def.Behavior)
	}
}

func TestParseDefaults(t *testing.T) {
	def, err := Parse([]byte("Just behavior.\n---\nnot frontmatter"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Provider != DefaultProvider || def.Model != DefaultModel || def.MaxIterations != DefaultMaxIterations || !def.SaveEnabled() {
		t.Fatalf("defaults not applied: %+v", def)
	}
	if def.Behavior != "Just behavior.\n---\nnot frontmatter" {
		t.Fatalf("unexpected behavior %q", def.Behavior)
	}

	def, err = Parse([]byte("---\r\nname: custom\r\n---\r\nBody\r\n"))
	if err != nil || def.Name != "custom" || def.Behavior != "Body" {
		t.Fatalf("CRLF frontmatter: %+v %v", def, err)
	}
}

func TestParseInvalidFrontmatter(t *testing.T) {
	_, err := Parse([]byte("---\nprovider: openai\nmodel gpt-4\ntools:  - a\n  - b\n---\nbody"))
	if err == nil {
		t.Fatalf("expected frontmatter error")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.md")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(second, "coder.md"), "x")
	writeFile(t, filepath.Join(first, "coder.md"), "y")

	got, err := Resolve("coder", first, second)
	if err != nil || got != filepath.Join(first, "coder.md") {
		t.Fatalf("expected first dir to win, got %q %v", got, err)
	}
	direct := filepath.Join(second, "coder.md")
	if got, err := Resolve(direct); err != nil || got != direct {
		t.Fatalf("direct path: %q %v", got, err)
	}
	if _, err := Resolve("missing", first); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadSystemTemplate(t *testing.T) {
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "prompts", "system_message")

	if got, err := LoadSystemTemplate("gpt-4", dataDir); err != nil || got != "" {
		t.Fatalf("expected built-in fallback, got %q %v", got, err)
	}

	writeFile(t, filepath.Join(dir, "default.prompt"), "default {{.Name}}")
	if got, _ := LoadSystemTemplate("gpt-4", dataDir); got != "default {{.Name}}" {
		t.Fatalf("expected default template, got %q", got)
	}

	writeFile(t, filepath.Join(dir, "gpt-4.prompt"), "model specific")
	if got, _ := LoadSystemTemplate("gpt-4", dataDir); got != "model specific" {
		t.Fatalf("expected model template, got %q", got)
	}
	writeFile(t, filepath.Join(dir, "openai_gpt-4o.prompt"), "slashed")
	if got, _ := LoadSystemTemplate("openai/gpt-4o", dataDir); got != "slashed" {
		t.Fatalf("expected slash-safe lookup, got %q", got)
	}
}
