package tools

import (
	"fmt"
	"slices"
	"strings"

	agent "github.com/Protocol-Lattice/toolloop"
)

// Builtins returns the built-in tools keyed by name, sharing one workspace.
func Builtins(ws Workspace) map[string]agent.Tool {
	return map[string]agent.Tool{
		"echo":       &EchoTool{},
		"calculator": &CalculatorTool{},
		"time":       &TimeTool{},
		"read_file":  &ReadFileTool{Workspace: ws},
		"read_files": &ReadFilesTool{Workspace: ws},
		"write_file": &WriteFileTool{Workspace: ws},
		"list_dir":   &ListDirTool{Workspace: ws},
		"bash":       &BashTool{Workspace: ws},
	}
}

// Names lists the built-in tool names, sorted.
func Names() []string {
	names := make([]string, 0, 8)
	for name := range Builtins(Workspace{}) {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Select returns the named built-ins in the order given. Unknown names are an
// error listing the available ones.
func Select(ws Workspace, names ...string) ([]agent.Tool, error) {
	all := Builtins(ws)
	out := make([]agent.Tool, 0, len(names))
	for _, name := range names {
		tool, ok := all[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(Names(), ", "))
		}
		out = append(out, tool)
	}
	return out, nil
}
