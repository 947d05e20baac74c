package agent

import (
	"errors"
	"fmt"
)

// EventKind identifies what an Event carries.
type EventKind string

const (
	EventContent   EventKind = "content"
	EventReasoning EventKind = "reasoning"
	EventTool      EventKind = "tool"
	EventWarning   EventKind = "warning"
)

// Event is one element of a run. Content and reasoning events carry the chunk
// text; tool events carry the result; warning events carry a notice.
type Event struct {
	Kind      EventKind
	Text      string
	Tool      *ToolResult
	Iteration int
}

var (
	// ErrAgentBusy is returned when a run starts while another is active.
	ErrAgentBusy = errors.New("agent is already running")
	// ErrMissingModel is returned by New without a model.
	ErrMissingModel = errors.New("agent requires a language model")
)

// InferenceError ends a run whose model turn failed. Messages appended before
// the failure stay in the conversation.
type InferenceError struct {
	Iteration int
	Err       error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed on iteration %d: %v", e.Iteration, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
