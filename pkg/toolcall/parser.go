// Package toolcall extracts @name(args) invocations from model output and
// renders the syntax instructions given to the model.
package toolcall

import "strings"

// DisableMarker suppresses every call in the text that contains it.
const DisableMarker = "@DISABLE_TOOL_CALL@"

// DisplayMode controls how recognised calls appear in display text.
type DisplayMode int

const (
	// DisplayMark drops the leading '@' so the call stays readable but can
	// no longer be executed.
	DisplayMark DisplayMode = iota
	// DisplayStrip removes the call text.
	DisplayStrip
	// DisplayKeep leaves the text as produced.
	DisplayKeep
)

func (m DisplayMode) String() string {
	switch m {
	case DisplayMark:
		return "mark"
	case DisplayStrip:
		return "strip"
	case DisplayKeep:
		return "keep"
	}
	return "unknown"
}

// ParseDisplayMode maps "mark", "strip" or "keep" to a DisplayMode.
func ParseDisplayMode(s string) (DisplayMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mark":
		return DisplayMark, true
	case "strip":
		return DisplayStrip, true
	case "keep":
		return DisplayKeep, true
	}
	return DisplayMark, false
}

// Span is a half-open byte range [Start, End) in the parsed text.
type Span struct {
	Start int
	End   int
}

// Call is one recognised invocation. Args is the verbatim text between the
// parentheses.
type Call struct {
	Name string
	Args string
	Span Span
}

// String renders the call in wire syntax.
func (c Call) String() string {
	return "@" + c.Name + "(" + c.Args + ")"
}

// Result is the outcome of parsing one assistant turn.
type Result struct {
	Calls    []Call
	Display  string
	Disabled bool
}

// Parser is stateless apart from its display mode and safe for concurrent use.
type Parser struct {
	mode DisplayMode
}

// Option configures a Parser.
type Option func(*Parser)

// WithDisplayMode selects how calls are rendered in display text.
func WithDisplayMode(mode DisplayMode) Option {
	return func(p *Parser) { p.mode = mode }
}

// NewParser returns a parser; the default display mode is DisplayMark.
func NewParser(opts ...Option) *Parser {
	p := &Parser{mode: DisplayMark}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Mode reports the configured display mode.
func (p *Parser) Mode() DisplayMode { return p.mode }

// Parse extracts calls from text in left-to-right order. Calls whose closing
// parenthesis is missing are ignored. When text contains DisableMarker no
// calls are returned, the marker is removed and any call syntax is marked
// rather than executed.
func (p *Parser) Parse(text string) Result {
	if strings.Contains(text, DisableMarker) {
		display := removeMarkers(text)
		if p.mode != DisplayKeep {
			display = neutralize(display, markCall)
		}
		return Result{Display: display, Disabled: true}
	}

	calls := scan(text)
	if len(calls) == 0 {
		return Result{Display: text}
	}
	display := text
	switch p.mode {
	case DisplayMark:
		display = neutralize(text, markCall)
	case DisplayStrip:
		display = neutralize(text, stripCall)
	}
	return Result{Calls: calls, Display: display}
}

func removeMarkers(text string) string {
	for strings.Contains(text, DisableMarker) {
		text = strings.ReplaceAll(text, DisableMarker, "")
	}
	return text
}

func markCall(c Call) string { return c.Name + "(" + c.Args + ")" }
func stripCall(Call) string { return "" }

// neutralize rewrites calls until the text contains none. Rewriting can expose
// a new call start (for example "@@x()" becomes "@x()"), so it repeats; every
// pass removes at least one '@' and therefore terminates.
func neutralize(text string, render func(Call) string) string {
	for {
		calls := scan(text)
		if len(calls) == 0 {
			return text
		}
		var b strings.Builder
		b.Grow(len(text))
		last := 0
		for _, c := range calls {
			b.WriteString(text[last:c.Span.Start])
			b.WriteString(render(c))
			last = c.Span.End
		}
		b.WriteString(text[last:])
		text = b.String()
	}
}

func scan(text string) []Call {
	var calls []Call
	i := 0
	for i < len(text) {
		at := strings.IndexByte(text[i:], '@')
		if at < 0 {
			break
		}
		pos := i + at
		i = pos + 1
		if pos > 0 && (isIdentByte(text[pos-1]) || text[pos-1] == '.') {
			continue
		}
		nameEnd := scanName(text, pos+1)
		if nameEnd < 0 || nameEnd >= len(text) || text[nameEnd] != '(' {
			continue
		}
		closing := matchParen(text, nameEnd)
		if closing < 0 {
			continue
		}
		calls = append(calls, Call{
			Name: text[pos+1 : nameEnd],
			Args: text[nameEnd+1 : closing],
			Span: Span{Start: pos, End: closing + 1},
		})
		i = closing + 1
	}
	return calls
}

// scanName returns the end of a dotted identifier starting at i, or -1.
func scanName(text string, i int) int {
	end := scanIdent(text, i)
	if end < 0 {
		return -1
	}
	for end < len(text)-1 && text[end] == '.' {
		next := scanIdent(text, end+1)
		if next < 0 {
			break
		}
		end = next
	}
	return end
}

func scanIdent(text string, i int) int {
	if i >= len(text) || !isIdentStart(text[i]) {
		return -1
	}
	i++
	for i < len(text) && isIdentByte(text[i]) {
		i++
	}
	return i
}

// matchParen returns the index of the ')' balancing the '(' at open. Quoted
// strings may contain parentheses and backslash escapes.
func matchParen(text string, open int) int {
	depth := 0
	var quote byte
	for j := open; j < len(text); j++ {
		c := text[j]
		if quote != 0 {
			switch c {
			case '\\':
				j++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}
