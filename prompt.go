package agent

import (
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// DefaultSystemTemplate is used when Options.SystemTemplate is empty. Extra
// keys from Options.PromptData are available next to the fixed fields.
const DefaultSystemTemplate = `You are {{.Name}}, an assistant powered by {{.Model}}.
{{- if .Behavior}}

{{.Behavior}}
{{- end}}
{{- if .Tools}}

# Tool use

{{.ParserInstructions}}

## Available functions

{{.Tools}}
{{- end}}`

// PromptInput is the data a system template is rendered with.
type PromptInput struct {
	Name     string
	Model    string
	Behavior string
	Tools    []ToolSpec
	Data     map[string]any
}

// BuildSystemMessage renders tmpl (or DefaultSystemTemplate) with the tool
// fragments and the parser's syntax instructions.
func BuildSystemMessage(tmpl string, in PromptInput) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultSystemTemplate
	}
	t, err := template.New("system").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse system template: %w", err)
	}

	fragments := make([]string, 0, len(in.Tools))
	for _, spec := range in.Tools {
		fragments = append(fragments, toolcall.RenderTool(spec.Instruction()))
	}

	data := make(map[string]any, len(in.Data)+6)
	maps.Copy(data, in.Data)
	data["Name"] = in.Name
	data["Model"] = in.Model
	data["Behavior"] = strings.TrimSpace(in.Behavior)
	data["Tools"] = strings.TrimSpace(strings.Join(fragments, "\n"))
	data["ParserInstructions"] = toolcall.Instructions(nil)

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system template: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
