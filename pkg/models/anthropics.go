package models

import (
	"context"
	"iter"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// AnthropicLLM streams from Anthropic's Messages API. The API only knows
// user and assistant turns, so tool results always go out as user messages.
type AnthropicLLM struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int
}

// NewAnthropicLLM constructs a client. It reads ANTHROPIC_API_KEY from the env.
func NewAnthropicLLM(model string) *AnthropicLLM {
	key := os.Getenv("ANTHROPIC_API_KEY")
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(key),
	)
	return &AnthropicLLM{
		Client:    &cl,
		Model:     model, // e.g. "claude-3-5-sonnet-latest"
		MaxTokens: 4096,
	}
}

func (a *AnthropicLLM) params(req Request) anthropic.MessageNewParams {
	system, rest := splitSystem(Outbound(req.Messages, ToolAsUser))
	rest = mergeConsecutive(rest)

	msgs := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == string(conversation.RoleAssistant) {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (a *AnthropicLLM) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		stream := a.Client.Messages.NewStreaming(ctx, a.params(req))
		defer stream.Close()

		var usage Usage
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.PromptTokens = int(ev.Message.Usage.InputTokens)
				usage.CompletionTokens = int(ev.Message.Usage.OutputTokens)
			case anthropic.MessageDeltaEvent:
				if ev.Usage.InputTokens > 0 {
					usage.PromptTokens = int(ev.Usage.InputTokens)
				}
				usage.CompletionTokens = int(ev.Usage.OutputTokens)
			case anthropic.ContentBlockDeltaEvent:
				switch d := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if d.Text != "" && !yield(Chunk{Kind: ChunkContent, Text: d.Text}, nil) {
						return
					}
				case anthropic.ThinkingDelta:
					if d.Thinking != "" && !yield(Chunk{Kind: ChunkReasoning, Text: d.Thinking}, nil) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield(Chunk{}, err)
			return
		}
		req.reportUsage(usage)
	}
}

var _ Model = (*AnthropicLLM)(nil)
