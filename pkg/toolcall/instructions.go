package toolcall

import (
	"fmt"
	"strings"
)

// ToolInstruction is the prompt fragment contributed by one registered tool.
type ToolInstruction struct {
	Name        string
	Signature   string
	Description string
	Examples    []string
}

const syntaxGuide = `You can call the functions below anywhere in your response, like a normal function call prefixed with the @ symbol.
Calls are executed after your response ends and you will be invoked again with their results.
You will keep being invoked until your response contains no function call.
Arguments are literals: quoted strings, numbers, true/false, null, [lists] and {objects}; name keyword arguments with name=value.
To mention the syntax without executing anything, include ` + DisableMarker + ` in your response.

## Example

def read_file(path: str) -> str
	"""Reads a file and returns its content."""

Usage:
@read_file('README.md')`

// Instructions renders the syntax guide followed by the available tools.
func Instructions(tools []ToolInstruction) string {
	var b strings.Builder
	b.WriteString(syntaxGuide)
	if len(tools) == 0 {
		return b.String()
	}
	b.WriteString("\n\n## Available functions\n")
	for _, t := range tools {
		b.WriteString("\n")
		b.WriteString(RenderTool(t))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderTool formats one tool as a signature with its description.
func RenderTool(t ToolInstruction) string {
	sig := strings.TrimSpace(t.Signature)
	if sig == "" {
		sig = t.Name + "(...)"
	}
	if !strings.HasPrefix(sig, t.Name) {
		sig = t.Name + sig
	}
	var b strings.Builder
	fmt.Fprintf(&b, "def %s\n", sig)
	if desc := strings.TrimSpace(t.Description); desc != "" {
		fmt.Fprintf(&b, "\t\"\"\"%s\"\"\"\n", desc)
	}
	for _, ex := range t.Examples {
		fmt.Fprintf(&b, "\tExample: %s\n", strings.TrimSpace(ex))
	}
	return b.String()
}
