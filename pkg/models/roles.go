package models

import (
	"strings"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

// Message is a conversation message re-encoded for a backend.
type Message struct {
	Role    string
	Content string
	Name    string
}

// RoleTransform maps a canonical message to the role and content a backend
// accepts. It never changes the stored conversation.
type RoleTransform func(conversation.Message) Message

// ToolAsUser sends tool results as user messages for backends without a tool
// role bound to native function calling.
func ToolAsUser(m conversation.Message) Message {
	out := Passthrough(m)
	if m.Role == conversation.RoleTool {
		out.Role = string(conversation.RoleUser)
	}
	return out
}

// Passthrough keeps the canonical role.
func Passthrough(m conversation.Message) Message {
	return Message{Role: string(m.Role), Content: m.Content, Name: m.Name}
}

// Outbound applies transform to every message. Reasoning is dropped, and so
// are assistant messages left without content: a reasoning-only turn or a
// turn whose call markup was stripped from the display text.
func Outbound(msgs []conversation.Message, transform RoleTransform) []Message {
	if transform == nil {
		transform = ToolAsUser
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == conversation.RoleAssistant && strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, transform(m))
	}
	return out
}

// splitSystem separates system text from the rest for backends that take it
// as a request parameter.
func splitSystem(msgs []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == string(conversation.RoleSystem) {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// mergeConsecutive joins adjacent messages that share a role, for backends
// that require strictly alternating turns.
func mergeConsecutive(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
