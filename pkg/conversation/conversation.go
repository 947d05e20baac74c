package conversation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAccumulatorClosed is returned when writing through an accumulator whose
// message is no longer the streaming target.
var ErrAccumulatorClosed = errors.New("assistant accumulator is closed")

// Config is the agent configuration captured when a session is created. It is
// never changed afterwards.
type Config struct {
	Name          string            `json:"name"`
	Provider      string            `json:"provider"`
	Model         string            `json:"model"`
	Behavior      string            `json:"behavior,omitempty"`
	Tools         []string          `json:"tools,omitempty"`
	MaxIterations int               `json:"max_iterations,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

func (c Config) clone() Config {
	out := c
	out.Tools = slices.Clone(c.Tools)
	out.Extra = maps.Clone(c.Extra)
	return out
}

// Snapshot is the serializable form of a Conversation used by persistence.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Config    Config    `json:"config"`
	Messages  []Message `json:"messages"`
}

// Option customises a Conversation.
type Option func(*Conversation)

// WithSessionID fixes the session identifier instead of generating one.
func WithSessionID(id string) Option {
	return func(c *Conversation) {
		if id = strings.TrimSpace(id); id != "" {
			c.id = id
		}
	}
}

// WithClock overrides the time source. Tests use it to control timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		if now != nil {
			c.now = now
		}
	}
}

// Conversation is the ordered, append-only message log of one session.
type Conversation struct {
	mu        sync.RWMutex
	id        string
	createdAt time.Time
	updatedAt time.Time
	config    Config
	messages  []Message
	now       func() time.Time

	// open is the index of the assistant message currently being streamed
	// into, or -1.
	open int
	acc  *Accumulator
}

// New starts an empty conversation with a fresh session identifier.
func New(cfg Config, opts ...Option) *Conversation {
	c := &Conversation{
		config: cfg.clone(),
		now:    time.Now,
		open:   -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.id == "" {
		c.id = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	c.createdAt = c.stamp()
	c.updatedAt = c.createdAt
	return c
}

// Restore rebuilds a conversation from a snapshot.
func Restore(s Snapshot, opts ...Option) (*Conversation, error) {
	if strings.TrimSpace(s.SessionID) == "" {
		return nil, errors.New("snapshot has no session id")
	}
	for i, m := range s.Messages {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	c := &Conversation{
		config:   s.Config.clone(),
		messages: slices.Clone(s.Messages),
		now:      time.Now,
		open:     -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.id = s.SessionID
	c.createdAt = s.CreatedAt
	c.updatedAt = s.UpdatedAt
	return c, nil
}

func (c *Conversation) stamp() time.Time {
	return c.now().UTC().Round(0)
}

// touch records a mutation; updated-at never moves backwards.
func (c *Conversation) touch() {
	if t := c.stamp(); t.After(c.updatedAt) {
		c.updatedAt = t
	}
}

// ID returns the session identifier.
func (c *Conversation) ID() string { return c.id }

// Config returns a copy of the configuration snapshot.
func (c *Conversation) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.clone()
}

// CreatedAt returns when the session was created.
func (c *Conversation) CreatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.createdAt
}

// UpdatedAt returns the time of the last mutation.
func (c *Conversation) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Append adds a message at the end of the log. Appending closes any open
// assistant accumulator.
func (c *Conversation) Append(role Role, content string) Message {
	return c.append(Message{Role: role, Content: content})
}

// AppendTool adds a tool-role message carrying the tool name and call id.
func (c *Conversation) AppendTool(name, callID, content string) Message {
	return c.append(Message{Role: RoleTool, Content: content, Name: name, CallID: callID})
}

func (c *Conversation) append(m Message) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	m.Timestamp = c.stamp()
	c.messages = append(c.messages, m)
	c.touch()
	return m
}

// Accumulator returns the handle for the assistant message currently being
// streamed into, creating a new assistant message when there is none.
func (c *Conversation) Accumulator() *Accumulator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acc != nil && c.open == len(c.messages)-1 {
		return c.acc
	}
	c.closeLocked()
	c.messages = append(c.messages, Message{Role: RoleAssistant, Timestamp: c.stamp()})
	c.open = len(c.messages) - 1
	c.acc = &Accumulator{conv: c, index: c.open}
	c.touch()
	return c.acc
}

func (c *Conversation) closeLocked() {
	c.open = -1
	c.acc = nil
}

// Messages returns the log in conversation order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Snapshot captures the conversation for persistence.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		SessionID: c.id,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
		Config:    c.config.clone(),
		Messages:  slices.Clone(c.messages),
	}
}
