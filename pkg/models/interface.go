package models

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

var (
	// ErrTurnConsumed is yielded when a Turn is iterated a second time.
	ErrTurnConsumed = errors.New("turn already consumed")
	// ErrUnknownProvider is returned by NewLLMProvider.
	ErrUnknownProvider = errors.New("unknown provider")

	errStopped = errors.New("stream stopped by consumer")
)

// ChunkKind tags streamed output.
type ChunkKind string

const (
	ChunkContent   ChunkKind = "content"
	ChunkReasoning ChunkKind = "reasoning"
)

// Chunk is one piece of streamed model output.
type Chunk struct {
	Kind ChunkKind
	Text string
}

// Usage is token accounting reported by a backend at the end of a turn.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request is the input of one turn.
type Request struct {
	// Messages is the canonical conversation. Adapters re-encode it for
	// their wire format and never send reasoning back.
	Messages []conversation.Message
	// OnUsage, if set, receives usage metadata when the backend reports it.
	OnUsage func(Usage)
}

func (r Request) reportUsage(u Usage) {
	if r.OnUsage == nil {
		return
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	r.OnUsage(u)
}

// Model streams one assistant turn. The sequence ends when the turn is
// complete; a non-nil error is the last element yielded.
type Model interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error]
}

// Turn is a single-pass view over one Stream call. It cannot be rewound; a
// new turn has to be requested instead.
type Turn struct {
	seq  iter.Seq2[Chunk, error]
	used atomic.Bool
}

// NewTurn prepares a turn. Nothing is sent until Chunks is ranged over.
func NewTurn(ctx context.Context, m Model, req Request) *Turn {
	return &Turn{seq: m.Stream(ctx, req)}
}

// Chunks yields the turn's output in production order.
func (t *Turn) Chunks() iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if !t.used.CompareAndSwap(false, true) {
			yield(Chunk{}, ErrTurnConsumed)
			return
		}
		for c, err := range t.seq {
			if !yield(c, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
