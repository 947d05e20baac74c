package toolcall

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArguments reports argument text that is not a valid literal list.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// Arguments is the decoded form of a call's argument text: positional values
// followed by keyword values. Values are string, int64, float64, bool, nil,
// []any or map[string]any.
type Arguments struct {
	Positional []any
	Keyword    map[string]any
}

// Get returns the keyword argument name, falling back to the positional
// argument at index when index >= 0.
func (a Arguments) Get(name string, index int) (any, bool) {
	if v, ok := a.Keyword[name]; ok {
		return v, true
	}
	if index >= 0 && index < len(a.Positional) {
		return a.Positional[index], true
	}
	return nil, false
}

// String returns a required string argument.
func (a Arguments) String(name string, index int) (string, error) {
	v, ok := a.Get(name, index)
	if !ok {
		return "", fmt.Errorf("%w: missing argument %q", ErrInvalidArguments, name)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case int64, float64, bool:
		return fmt.Sprint(s), nil
	}
	return "", fmt.Errorf("%w: argument %q must be a string, got %T", ErrInvalidArguments, name, v)
}

// StringOr returns an optional string argument.
func (a Arguments) StringOr(name string, index int, def string) (string, error) {
	if _, ok := a.Get(name, index); !ok {
		return def, nil
	}
	return a.String(name, index)
}

// Float returns a required numeric argument.
func (a Arguments) Float(name string, index int) (float64, error) {
	v, ok := a.Get(name, index)
	if !ok {
		return 0, fmt.Errorf("%w: missing argument %q", ErrInvalidArguments, name)
	}
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: argument %q must be a number, got %T", ErrInvalidArguments, name, v)
}

// IntOr returns an optional integer argument.
func (a Arguments) IntOr(name string, index int, def int) (int, error) {
	v, ok := a.Get(name, index)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%w: argument %q must be an integer, got %v", ErrInvalidArguments, name, v)
}

// BoolOr returns an optional boolean argument.
func (a Arguments) BoolOr(name string, index int, def bool) (bool, error) {
	v, ok := a.Get(name, index)
	if !ok {
		return def, nil
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("%w: argument %q must be a boolean, got %T", ErrInvalidArguments, name, v)
}

// ParseArguments decodes argument text such as `'a.txt', limit=3`. Strings
// may use single, double or backtick quotes; lists use [...] or (...),
// objects use {...}. None/null/nil decode to nil.
func ParseArguments(raw string) (Arguments, error) {
	p := &argParser{src: raw}
	args := Arguments{Keyword: map[string]any{}}
	p.skipSpace()
	for !p.eof() {
		name := ""
		if end := scanIdent(p.src, p.pos); end > 0 {
			save := p.pos
			ident := p.src[p.pos:end]
			p.pos = end
			p.skipSpace()
			if p.peek() == '=' && p.peekAt(1) != '=' {
				p.pos++
				name = ident
			} else {
				p.pos = save
			}
		}
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return Arguments{}, err
		}
		if name != "" {
			if _, dup := args.Keyword[name]; dup {
				return Arguments{}, p.errorf("duplicate keyword %q", name)
			}
			args.Keyword[name] = v
		} else {
			if len(args.Keyword) > 0 {
				return Arguments{}, p.errorf("positional argument after keyword argument")
			}
			args.Positional = append(args.Positional, v)
		}
		p.skipSpace()
		if p.eof() {
			break
		}
		if p.peek() != ',' {
			return Arguments{}, p.errorf("expected ',' got %q", p.peek())
		}
		p.pos++
		p.skipSpace()
	}
	return args, nil
}

type argParser struct {
	src string
	pos int
}

func (p *argParser) eof() bool { return p.pos >= len(p.src) }

func (p *argParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *argParser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *argParser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *argParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrInvalidArguments, fmt.Sprintf(format, args...), p.pos)
}

func (p *argParser) value() (any, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == 0:
		return nil, p.errorf("unexpected end of arguments")
	case c == '"' || c == '\'' || c == '`':
		return p.str()
	case c == '[':
		return p.list(']')
	case c == '(':
		return p.list(')')
	case c == '{':
		return p.object()
	case c == '-' || c == '+' || c == '.' || ('0' <= c && c <= '9'):
		return p.number()
	case isIdentStart(c):
		end := scanIdent(p.src, p.pos)
		word := p.src[p.pos:end]
		switch word {
		case "true", "True":
			p.pos = end
			return true, nil
		case "false", "False":
			p.pos = end
			return false, nil
		case "null", "None", "nil":
			p.pos = end
			return nil, nil
		}
		return nil, p.errorf("unexpected identifier %q", word)
	default:
		return nil, p.errorf("unexpected character %q", c)
	}
}

func (p *argParser) str() (string, error) {
	quote := p.src[p.pos]
	// Python style triple quotes.
	if quote != '`' && strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quote), 3)) {
		delim := strings.Repeat(string(quote), 3)
		end := strings.Index(p.src[p.pos+3:], delim)
		if end < 0 {
			return "", p.errorf("unterminated string")
		}
		s := p.src[p.pos+3 : p.pos+3+end]
		p.pos += 3 + end + 3
		return s, nil
	}
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\' && quote != '`':
			p.pos++
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *argParser) escape(b *strings.Builder) error {
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '0':
		b.WriteByte(0)
	case 'u':
		if p.pos+4 > len(p.src) {
			return p.errorf("short unicode escape")
		}
		r, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
		if err != nil {
			return p.errorf("bad unicode escape")
		}
		b.WriteRune(rune(r))
		p.pos += 4
	default:
		// \\, \', \" and unknown escapes keep the escaped character.
		b.WriteByte(c)
	}
	return nil
}

func (p *argParser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	for !p.eof() {
		c := p.src[p.pos]
		if ('0' <= c && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '_' ||
			((c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E')) {
			p.pos++
			continue
		}
		break
	}
	lit := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf("invalid number %q", lit)
	}
	return f, nil
}

func (p *argParser) list(closing byte) ([]any, error) {
	p.pos++
	out := []any{}
	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
		default:
			return nil, p.errorf("expected ',' or %q in list", closing)
		}
	}
}

func (p *argParser) object() (map[string]any, error) {
	p.pos++
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		var key string
		switch c := p.peek(); {
		case c == '"' || c == '\'' || c == '`':
			k, err := p.str()
			if err != nil {
				return nil, err
			}
			key = k
		case isIdentStart(c):
			end := scanIdent(p.src, p.pos)
			key = p.src[p.pos:end]
			p.pos = end
		default:
			return nil, p.errorf("expected object key")
		}
		p.skipSpace()
		if p.peek() != ':' && p.peek() != '=' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, p.errorf("expected ',' or '}' in object")
		}
	}
}
