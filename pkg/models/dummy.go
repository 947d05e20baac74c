package models

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// Step is one scripted turn: chunks are streamed, then Err (if any).
type Step struct {
	Chunks []Chunk
	Err    error
}

// Reply scripts a content-only turn, streamed word by word.
func Reply(text string) Step {
	return Step{Chunks: split(ChunkContent, text)}
}

// Think scripts a turn with reasoning followed by content.
func Think(reasoning, text string) Step {
	return Step{Chunks: append(split(ChunkReasoning, reasoning), split(ChunkContent, text)...)}
}

// Fail scripts a turn that errors after streaming text (which may be empty).
func Fail(text string, err error) Step {
	return Step{Chunks: split(ChunkContent, text), Err: err}
}

func split(kind ChunkKind, text string) []Chunk {
	if text == "" {
		return nil
	}
	var out []Chunk
	for _, piece := range strings.SplitAfter(text, " ") {
		if piece != "" {
			out = append(out, Chunk{Kind: kind, Text: piece})
		}
	}
	return out
}

// DummyLLM is a lightweight model useful for local testing without API calls.
// With a script it plays the steps in order; otherwise it echoes the last
// non-empty line of the conversation.
type DummyLLM struct {
	Prefix string
	// Repeat replays the final step once the script is exhausted.
	Repeat bool

	mu       sync.Mutex
	script   []Step
	calls    int
	requests [][]conversation.Message
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyLLM{Prefix: prefix}
}

// NewScriptedLLM returns a dummy that plays steps in order.
func NewScriptedLLM(steps ...Step) *DummyLLM {
	d := NewDummyLLM("")
	d.script = steps
	return d
}

// Calls reports how many turns were requested.
func (d *DummyLLM) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Requests returns the messages each turn was seeded with.
func (d *DummyLLM) Requests() [][]conversation.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.requests)
}

func (d *DummyLLM) next(req Request) Step {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.requests = append(d.requests, slices.Clone(req.Messages))
	switch {
	case len(d.script) == 0:
		return Reply(fmt.Sprintf("%s %s", d.Prefix, lastLine(req.Messages)))
	case len(d.script) == 1 && d.Repeat:
		return d.script[0]
	}
	step := d.script[0]
	d.script = d.script[1:]
	return step
}

func lastLine(msgs []conversation.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		lines := strings.Split(msgs[i].Content, "\n")
		for j := len(lines) - 1; j >= 0; j-- {
			if candidate := strings.TrimSpace(lines[j]); candidate != "" {
				return candidate
			}
		}
	}
	return "<empty prompt>"
}

func (d *DummyLLM) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		step := d.next(req)
		var out int
		for _, c := range step.Chunks {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
			out += len(c.Text)
		}
		if step.Err != nil {
			yield(Chunk{}, step.Err)
			return
		}
		req.reportUsage(Usage{PromptTokens: len(req.Messages), CompletionTokens: out})
	}
}

var _ Model = (*DummyLLM)(nil)
