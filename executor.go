package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// ToolErrorKind classifies tool failures.
type ToolErrorKind string

const (
	ToolNotFound       ToolErrorKind = "ToolNotFound"
	ToolExecutionError ToolErrorKind = "ToolExecutionError"
)

// ToolError describes a failed call. Every field is rendered once by Error.
type ToolError struct {
	Kind    ToolErrorKind
	Tool    string
	Type    string
	Message string
	Trace   string
	cause   error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch e.Kind {
	case ToolNotFound:
		fmt.Fprintf(&b, ": %s", e.Message)
	default:
		fmt.Fprintf(&b, " in %s: ", e.Tool)
		if e.Type != "" {
			b.WriteString(e.Type)
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.Trace != "" {
		b.WriteString("\nTraceback:\n")
		b.WriteString(strings.TrimRight(e.Trace, "\n"))
	}
	return b.String()
}

// Unwrap returns the fault raised by the tool, if any.
func (e *ToolError) Unwrap() error { return e.cause }

// ToolResult is the outcome of one call. Exactly one of Content (success) or
// Err (failure) describes it.
type ToolResult struct {
	CallID   string
	Name     string
	Args     string
	Value    any
	Content  string
	Metadata map[string]string
	Err      *ToolError
	Duration time.Duration
}

// OK reports whether the call succeeded.
func (r ToolResult) OK() bool { return r.Err == nil }

// Text is what enters the transcript for this result.
func (r ToolResult) Text() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Content
}

// Execute resolves call against catalog and runs it. Failures never escape:
// unknown names and faults raised by the tool, panics included, come back as
// a ToolResult carrying a ToolError.
func Execute(ctx context.Context, catalog ToolCatalog, sessionID, callID string, call toolcall.Call) ToolResult {
	res := ToolResult{CallID: callID, Name: call.Name, Args: call.Args}

	tool, _, ok := catalog.Lookup(call.Name)
	if !ok {
		res.Err = notFound(call.Name, catalog)
		return res
	}

	start := time.Now()
	value, err := invoke(ctx, tool, ToolRequest{SessionID: sessionID, CallID: callID, Arguments: call.Args})
	res.Duration = time.Since(start)
	if err == nil {
		err = render(&res, value)
	}
	if err != nil {
		res.Value, res.Metadata, res.Content = nil, nil, ""
		res.Err = asToolError(call.Name, err)
	}
	return res
}

// render fills the success fields of res from value. A String or MarshalJSON
// method that panics is reported like a panicking tool.
func render(res *ToolResult, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	res.Value = value
	if resp, ok := value.(ToolResponse); ok {
		res.Metadata = resp.Metadata
	}
	if resp, ok := value.(*ToolResponse); ok && resp != nil {
		res.Metadata = resp.Metadata
	}
	res.Content = RenderValue(value)
	return nil
}

func notFound(name string, catalog ToolCatalog) *ToolError {
	msg := fmt.Sprintf("no tool named %q is registered", name)
	specs := catalog.Specs()
	if len(specs) > 0 {
		names := make([]string, 0, len(specs))
		for _, s := range specs {
			names = append(names, s.Name)
		}
		msg += "; available tools: " + strings.Join(names, ", ")
	}
	return &ToolError{Kind: ToolNotFound, Tool: name, Message: msg}
}

// panicError carries a recovered panic value and the stack at recovery.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprint(p.value) }

func invoke(ctx context.Context, tool Tool, req ToolRequest) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return tool.Invoke(ctx, req)
}

func asToolError(name string, err error) *ToolError {
	te := &ToolError{Kind: ToolExecutionError, Tool: name, cause: err}

	var p *panicError
	if errors.As(err, &p) {
		if inner, ok := p.value.(error); ok {
			te.Type = "panic: " + errorType(inner)
			te.Message = inner.Error()
		} else {
			te.Type = "panic"
			te.Message = fmt.Sprint(p.value)
		}
		te.Trace = string(p.stack)
		return te
	}

	te.Type = errorType(err)
	te.Message = err.Error()
	te.Trace = stackTrace(err)
	return te
}

// errorType names the innermost error in the chain.
func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	name := reflect.TypeOf(err).String()
	switch name {
	case "*errors.errorString", "*errors.fundamental":
		return "error"
	}
	return name
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// stackTrace returns the deepest stack recorded by github.com/pkg/errors in
// the chain, or "" when none was recorded.
func stackTrace(err error) string {
	var trace pkgerrors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			trace = st.StackTrace()
		}
	}
	if len(trace) == 0 {
		return ""
	}
	return strings.TrimLeft(fmt.Sprintf("%+v", trace), "\n")
}

// RenderValue converts a tool's return value to transcript text. Strings pass
// through, numbers use their shortest exact form and structured values are
// rendered as JSON.
func RenderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []byte:
		return string(x)
	case ToolResponse:
		return x.Content
	case *ToolResponse:
		if x == nil {
			return "null"
		}
		return x.Content
	case fmt.Stringer:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(raw)
}
