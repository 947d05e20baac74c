package toolcall

import (
	"strings"
	"testing"
)

func TestParseSingleCall(t *testing.T) {
	text := `Let me check: @search(query="weather today") then summarize.`
	res := NewParser().Parse(text)
	if len(res.Calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(res.Calls))
	}
	call := res.Calls[0]
	if call.Name != "search" || call.Args != `query="weather today"` {
		t.Fatalf("unexpected call %+v", call)
	}
	if text[call.Span.Start:call.Span.End] != `@search(query="weather today")` {
		t.Fatalf("span does not cover call: %q", text[call.Span.Start:call.Span.End])
	}
	if res.Display != `Let me check: search(query="weather today") then summarize.` {
		t.Fatalf("unexpected display %q", res.Display)
	}
}

func TestParseBalancedArgsVerbatim(t *testing.T) {
	cases := []struct {
		text string
		name string
		args string
	}{
		{"@tool1('value1', param2=42)", "tool1", "'value1', param2=42"},
		{"Some text before @tool2(123, key='value') and after.", "tool2", "123, key='value'"},
		{"@tool1(param1=[1, 2, (3, 4)], param2={'key': (5, 6)})", "tool1", "param1=[1, 2, (3, 4)], param2={'key': (5, 6)}"},
		{"@tool2(func(a, b), '@tool1(param1=42)', key={'n': (1, 2)})", "tool2", "func(a, b), '@tool1(param1=42)', key={'n': (1, 2)}"},
		{`@echo("a ) b")`, "echo", `"a ) b"`},
		{`@echo('it\'s (fine')`, "echo", `'it\'s (fine'`},
		{"@weather.lookup(city=`Oslo`)", "weather.lookup", "city=`Oslo`"},
		{"@now()", "now", ""},
	}
	for _, tc := range cases {
		res := NewParser().Parse(tc.text)
		if len(res.Calls) != 1 {
			t.Fatalf("%q: expected 1 call, got %d", tc.text, len(res.Calls))
		}
		if res.Calls[0].Name != tc.name || res.Calls[0].Args != tc.args {
			t.Fatalf("%q: got %+v", tc.text, res.Calls[0])
		}
	}
}

func TestParseIgnoresIncompleteAndNonCalls(t *testing.T) {
	cases := []string{
		"This is a test without tool call.",
		"@tool1(arg1, arg2",
		`@echo("unterminated)`,
		"mail me at bob@example(dot)com",
		"@ space(1)",
		"@1abc(2)",
		"@name (1)",
		"@obj.(1)",
	}
	for _, text := range cases {
		res := NewParser().Parse(text)
		if len(res.Calls) != 0 {
			t.Fatalf("%q: expected no calls, got %+v", text, res.Calls)
		}
		if res.Display != text {
			t.Fatalf("%q: display changed to %q", text, res.Display)
		}
	}
}

func TestParseMultipleCallsInOrder(t *testing.T) {
	text := "first @a(1) then @b(x='y') and finally @c()"
	res := NewParser(WithDisplayMode(DisplayStrip)).Parse(text)
	names := []string{}
	for _, c := range res.Calls {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "a,b,c" {
		t.Fatalf("unexpected order %v", names)
	}
	if res.Display != "first  then  and finally " {
		t.Fatalf("unexpected stripped display %q", res.Display)
	}
}

func TestDisableMarker(t *testing.T) {
	cases := []string{
		"@DISABLE_TOOL_CALL@ You call tools like @read_file('x').",
		"Example: @read_file('x') @DISABLE_TOOL_CALL@",
		"@DISABLE_@DISABLE_TOOL_CALL@TOOL_CALL@ @a(1)",
	}
	for _, mode := range []DisplayMode{DisplayMark, DisplayStrip, DisplayKeep} {
		for _, text := range cases {
			res := NewParser(WithDisplayMode(mode)).Parse(text)
			if len(res.Calls) != 0 || !res.Disabled {
				t.Fatalf("%s %q: expected disabled parse, got %+v", mode, text, res)
			}
			if strings.Contains(res.Display, DisableMarker) {
				t.Fatalf("%s %q: marker left in display %q", mode, text, res.Display)
			}
		}
	}
}

func TestDisplayKeep(t *testing.T) {
	text := "run @a(1) now"
	res := NewParser(WithDisplayMode(DisplayKeep)).Parse(text)
	if len(res.Calls) != 1 || res.Display != text {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestReparseDisplayYieldsNoCalls(t *testing.T) {
	texts := []string{
		`Let me check: @search(query="weather today") then summarize.`,
		"@@x(1)",
		"@a(@b(1))",
		`@a("@b(1)") and @c('@d(2)')`,
		"@outer(inner(@x(1)), y)",
		"@DISABLE_TOOL_CALL@ see @a(1)",
	}
	for _, mode := range []DisplayMode{DisplayMark, DisplayStrip} {
		p := NewParser(WithDisplayMode(mode))
		for _, text := range texts {
			first := p.Parse(text)
			second := p.Parse(first.Display)
			if len(second.Calls) != 0 {
				t.Fatalf("%s %q: display %q re-parsed into %+v", mode, text, first.Display, second.Calls)
			}
		}
	}
}

func TestParseIsDeterministic(t *testing.T) {
	text := "@a(1) @b('two') @c([3])"
	p := NewParser()
	first := p.Parse(text)
	for range 5 {
		next := p.Parse(text)
		if next.Display != first.Display || len(next.Calls) != len(first.Calls) {
			t.Fatalf("parse is not deterministic")
		}
		for i := range next.Calls {
			if next.Calls[i] != first.Calls[i] {
				t.Fatalf("call %d differs: %+v vs %+v", i, next.Calls[i], first.Calls[i])
			}
		}
	}
}

func TestInstructionsListTools(t *testing.T) {
	out := Instructions([]ToolInstruction{
		{Name: "read_file", Signature: "read_file(path: str) -> str", Description: "Reads a file."},
		{Name: "now", Description: "Current time.", Examples: []string{"@now()"}},
	})
	for _, want := range []string{DisableMarker, "def read_file(path: str) -> str", `"""Reads a file."""`, "def now(...)", "Example: @now()"} {
		if !strings.Contains(out, want) {
			t.Fatalf("instructions missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(Instructions(nil), "Available functions") {
		t.Fatalf("empty tool list should not render a function section")
	}
}
