package conversation

import (
	"slices"
	"strings"
)

// Accumulator builds the assistant message of the turn being streamed. It is
// valid until Finalize is called or another message is appended; afterwards
// every write returns ErrAccumulatorClosed and the message is immutable.
type Accumulator struct {
	conv      *Conversation
	index     int
	content   strings.Builder
	reasoning strings.Builder
}

func (a *Accumulator) liveLocked() bool {
	return a.conv.acc == a && a.conv.open == a.index
}

// Open reports whether the accumulator still owns its message.
func (a *Accumulator) Open() bool {
	a.conv.mu.RLock()
	defer a.conv.mu.RUnlock()
	return a.liveLocked()
}

// WriteContent appends visible answer text.
func (a *Accumulator) WriteContent(text string) error {
	c := a.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if !a.liveLocked() {
		return ErrAccumulatorClosed
	}
	if text == "" {
		return nil
	}
	a.content.WriteString(text)
	c.messages[a.index].Content = a.content.String()
	c.touch()
	return nil
}

// WriteReasoning appends deliberation text to the message transcript.
func (a *Accumulator) WriteReasoning(text string) error {
	c := a.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if !a.liveLocked() {
		return ErrAccumulatorClosed
	}
	if text == "" {
		return nil
	}
	a.reasoning.WriteString(text)
	c.messages[a.index].Reasoning = a.reasoning.String()
	c.touch()
	return nil
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string {
	a.conv.mu.RLock()
	defer a.conv.mu.RUnlock()
	return a.conv.messages[a.index].Content
}

// Replace overwrites the message content, typically with display text.
func (a *Accumulator) Replace(content string) error {
	c := a.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if !a.liveLocked() {
		return ErrAccumulatorClosed
	}
	a.content.Reset()
	a.content.WriteString(content)
	c.messages[a.index].Content = content
	c.touch()
	return nil
}

// Finalize closes the accumulator and returns the finished message.
func (a *Accumulator) Finalize() (Message, error) {
	c := a.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if !a.liveLocked() {
		return Message{}, ErrAccumulatorClosed
	}
	c.closeLocked()
	return c.messages[a.index], nil
}

// Discard removes the message when nothing was written to it and reports
// whether it did. A message holding content or reasoning is left in place.
func (a *Accumulator) Discard() bool {
	c := a.conv
	c.mu.Lock()
	defer c.mu.Unlock()
	if !a.liveLocked() || a.content.Len() > 0 || a.reasoning.Len() > 0 {
		return false
	}
	c.messages = slices.Delete(c.messages, a.index, a.index+1)
	c.closeLocked()
	c.touch()
	return true
}
