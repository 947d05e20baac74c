package conversation

import (
	"fmt"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ParseRole converts a stored role string back into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// Message is one conversation turn. Values handed out by a Conversation are
// copies; editing them never changes the stored transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Reasoning holds model deliberation streamed alongside an assistant
	// message. It is kept for the transcript only.
	Reasoning string `json:"reasoning,omitempty"`
	// Name is the tool name on tool messages.
	Name string `json:"name,omitempty"`
	// CallID links a tool message to the call that produced it.
	CallID string `json:"call_id,omitempty"`
}
