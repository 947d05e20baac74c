package models

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAILLM streams chat completions from OpenAI or any compatible endpoint.
type OpenAILLM struct {
	Client *openai.Client
	Model  string
	Roles  RoleTransform
}

// NewOpenAILLM reads OPENAI_API_KEY (or OPENAI_KEY) and OPENAI_BASE_URL.
func NewOpenAILLM(model string) *OpenAILLM {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	cfg := openai.DefaultConfig(apiKey)
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	return &OpenAILLM{Client: openai.NewClientWithConfig(cfg), Model: model, Roles: ToolAsUser}
}

func (o *OpenAILLM) messages(req Request) []openai.ChatCompletionMessage {
	wire := Outbound(req.Messages, o.Roles)
	out := make([]openai.ChatCompletionMessage, 0, len(wire))
	for _, m := range wire {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content, Name: openAIName(m.Name)})
	}
	return out
}

// openAIName keeps names within the API's allowed character set.
func openAIName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if !(c == '_' || c == '-' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')) {
			b[i] = '_'
		}
	}
	if len(b) > 64 {
		b = b[:64]
	}
	return string(b)
}

func (o *OpenAILLM) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		stream, err := o.Client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:         o.Model,
			Messages:      o.messages(req),
			Stream:        true,
			StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		})
		if err != nil {
			yield(Chunk{}, err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if resp.Usage != nil {
				req.reportUsage(Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				})
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.ReasoningContent != "" {
				if !yield(Chunk{Kind: ChunkReasoning, Text: delta.ReasoningContent}, nil) {
					return
				}
			}
			if delta.Content != "" {
				if !yield(Chunk{Kind: ChunkContent, Text: delta.Content}, nil) {
					return
				}
			}
		}
	}
}

var _ Model = (*OpenAILLM)(nil)
