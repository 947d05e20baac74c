package models

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"os"

	ollama "github.com/ollama/ollama/api" // <- correct import
)

// ---------------------------- Ollama -----------------------------------------

type OllamaLLM struct {
	Client *ollama.Client
	Model  string
	Roles  RoleTransform
}

func NewOllamaLLM(model string) (*OllamaLLM, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	c := ollama.NewClient(u, &http.Client{})
	return &OllamaLLM{Client: c, Model: model, Roles: ToolAsUser}, nil
}

func (o *OllamaLLM) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		wire := Outbound(req.Messages, o.Roles)
		msgs := make([]ollama.Message, 0, len(wire))
		for _, m := range wire {
			msgs = append(msgs, ollama.Message{Role: m.Role, Content: m.Content})
		}

		stopped := false
		err := o.Client.Chat(ctx, &ollama.ChatRequest{Model: o.Model, Messages: msgs}, func(resp ollama.ChatResponse) error {
			if resp.Message.Thinking != "" && !yield(Chunk{Kind: ChunkReasoning, Text: resp.Message.Thinking}, nil) {
				stopped = true
				return errStopped
			}
			if resp.Message.Content != "" && !yield(Chunk{Kind: ChunkContent, Text: resp.Message.Content}, nil) {
				stopped = true
				return errStopped
			}
			if resp.Done {
				req.reportUsage(Usage{
					PromptTokens:     resp.Metrics.PromptEvalCount,
					CompletionTokens: resp.Metrics.EvalCount,
				})
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Chunk{}, err)
		}
	}
}

var _ Model = (*OllamaLLM)(nil)
