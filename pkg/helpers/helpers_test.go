package helpers

import (
	"testing"

	agent "github.com/Protocol-Lattice/toolloop"
)

func TestParseKeyValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{"empty", "", nil},
		{"invalid pairs ignored", "alpha,=oops", nil},
		{"mix valid and invalid", "language=French, tone = dry, broken", map[string]any{"language": "French", "tone": "dry"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseKeyValues(tc.input)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d entries, got %d", len(tc.want), len(got))
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("expected %s -> %v, got %v", k, v, got[k])
				}
			}
		})
	}
}

func TestToolNames(t *testing.T) {
	if got := ToolNames(nil); got != "<none>" {
		t.Fatalf("expected <none> for nil slice, got %q", got)
	}
	specs := []agent.ToolSpec{{Name: "foo"}, {Name: "bar"}}
	if got := ToolNames(specs); got != "foo, bar" {
		t.Fatalf("unexpected tool names: %q", got)
	}
}

func TestParseCSVList(t *testing.T) {
	if got := ParseCSVList("   "); got != nil {
		t.Fatalf("expected nil for whitespace input, got %#v", got)
	}
	list := ParseCSVList("one, two, , three")
	want := []string{"one", "two", "three"}
	if len(list) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(list))
	}
	for i, v := range want {
		if list[i] != v {
			t.Fatalf("entry %d: expected %q, got %q", i, v, list[i])
		}
	}
}
