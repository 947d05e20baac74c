package models

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// ---------------------------- Google Gemini ----------------------------------

type GeminiLLM struct {
	Client *genai.Client
	Model  string
}

func NewGeminiLLM(ctx context.Context, model string) (*GeminiLLM, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiLLM{Client: client, Model: model}, nil
}

// Close releases the underlying client.
func (g *GeminiLLM) Close() error { return g.Client.Close() }

func geminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == string(conversation.RoleAssistant) {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

func (g *GeminiLLM) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		system, rest := splitSystem(Outbound(req.Messages, ToolAsUser))
		rest = mergeConsecutive(rest)
		if len(rest) == 0 {
			yield(Chunk{}, errors.New("gemini: no messages to send"))
			return
		}

		model := g.Client.GenerativeModel(g.Model)
		if system != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		}
		contents := geminiContents(rest)
		cs := model.StartChat()
		cs.History = contents[:len(contents)-1]
		it := cs.SendMessageStream(ctx, contents[len(contents)-1].Parts...)

		var usage *genai.UsageMetadata
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				yield(Chunk{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			if resp.UsageMetadata != nil {
				usage = resp.UsageMetadata
			}
			// Only the first candidate is the answer.
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				text, ok := part.(genai.Text)
				if !ok || text == "" {
					continue
				}
				if !yield(Chunk{Kind: ChunkContent, Text: string(text)}, nil) {
					return
				}
			}
		}
		if usage != nil {
			req.reportUsage(Usage{
				PromptTokens:     int(usage.PromptTokenCount),
				CompletionTokens: int(usage.CandidatesTokenCount),
				TotalTokens:      int(usage.TotalTokenCount),
			})
		}
	}
}

var _ Model = (*GeminiLLM)(nil)
