package toolcall

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseArgumentsLiterals(t *testing.T) {
	args, err := ParseArguments(`'README.md', 3, -1.5, True, None, [1, "two", (3,)], {'k': 'v', n: 2}, limit=10, quiet=false`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []any{
		"README.md", int64(3), -1.5, true, nil,
		[]any{int64(1), "two", []any{int64(3)}},
		map[string]any{"k": "v", "n": int64(2)},
	}
	if !reflect.DeepEqual(args.Positional, want) {
		t.Fatalf("positional mismatch:\n got %#v\nwant %#v", args.Positional, want)
	}
	if args.Keyword["limit"] != int64(10) || args.Keyword["quiet"] != false {
		t.Fatalf("keyword mismatch: %#v", args.Keyword)
	}
}

func TestParseArgumentsStrings(t *testing.T) {
	args, err := ParseArguments(`query="weather \"today\"", path='a\nb', raw=` + "`C:\\dir`" + `, body="""multi
line""", u="\u00e9"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	checks := map[string]string{
		"query": `weather "today"`,
		"path":  "a\nb",
		"raw":   `C:\dir`,
		"body":  "multi\nline",
		"u":     "é",
	}
	for k, want := range checks {
		if got := args.Keyword[k]; got != want {
			t.Fatalf("%s: got %q want %q", k, got, want)
		}
	}
}

func TestParseArgumentsEmpty(t *testing.T) {
	args, err := ParseArguments("   ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(args.Positional) != 0 || len(args.Keyword) != 0 {
		t.Fatalf("expected no arguments, got %+v", args)
	}
}

func TestParseArgumentsErrors(t *testing.T) {
	cases := []string{
		`x=1, 2`,
		`'unterminated`,
		`a=1, a=2`,
		`1 2`,
		`[1, 2`,
		`{1: 2}`,
		`undefined_name`,
	}
	for _, raw := range cases {
		if _, err := ParseArguments(raw); !errors.Is(err, ErrInvalidArguments) {
			t.Fatalf("%q: expected ErrInvalidArguments, got %v", raw, err)
		}
	}
}

func TestArgumentAccessors(t *testing.T) {
	args, err := ParseArguments(`'a.txt', count=2, ratio=0.5`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	path, err := args.String("path", 0)
	if err != nil || path != "a.txt" {
		t.Fatalf("path: %q %v", path, err)
	}
	n, err := args.IntOr("count", 1, 9)
	if err != nil || n != 2 {
		t.Fatalf("count: %d %v", n, err)
	}
	f, err := args.Float("ratio", -1)
	if err != nil || f != 0.5 {
		t.Fatalf("ratio: %v %v", f, err)
	}
	if def, _ := args.StringOr("mode", -1, "r"); def != "r" {
		t.Fatalf("expected default, got %q", def)
	}
	if _, err := args.String("missing", 5); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected missing argument error, got %v", err)
	}
	if _, err := args.IntOr("ratio", -1, 0); err == nil {
		t.Fatalf("expected error for non-integer")
	}
}
