package helpers

import (
	"strings"

	agent "github.com/Protocol-Lattice/toolloop"
)

// ParseKeyValues reads "key=value" pairs separated by commas. Pairs without
// '=' or with an empty key are skipped.
func ParseKeyValues(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	values := make(map[string]any)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func ToolNames(specs []agent.ToolSpec) string {
	if len(specs) == 0 {
		return "<none>"
	}
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return strings.Join(names, ", ")
}

func ParseCSVList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
