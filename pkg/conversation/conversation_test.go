package conversation

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestConversation(clock *fakeClock) *Conversation {
	return New(Config{Name: "coder", Provider: "dummy", Model: "m1", Behavior: "be brief"},
		WithSessionID("s-1"), WithClock(clock.now))
}

func TestAppendKeepsOrderAndTimestamps(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	c := newTestConversation(clock)

	c.Append(RoleSystem, "sys")
	clock.t = clock.t.Add(time.Second)
	c.Append(RoleUser, "hi")
	clock.t = clock.t.Add(time.Second)
	c.AppendTool("echo", "call-1", "hi")

	msgs := c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []Role{RoleSystem, RoleUser, RoleTool}
	for i, m := range msgs {
		if m.Role != want[i] {
			t.Fatalf("message %d: expected role %s, got %s", i, want[i], m.Role)
		}
	}
	if msgs[2].Name != "echo" || msgs[2].CallID != "call-1" {
		t.Fatalf("tool metadata not recorded: %+v", msgs[2])
	}
	if !c.UpdatedAt().Equal(clock.t) {
		t.Fatalf("expected updated-at %v, got %v", clock.t, c.UpdatedAt())
	}
}

func TestUpdatedAtNeverMovesBackwards(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	c := newTestConversation(clock)
	c.Append(RoleUser, "one")
	before := c.UpdatedAt()

	clock.t = clock.t.Add(-time.Hour)
	c.Append(RoleUser, "two")
	if c.UpdatedAt().Before(before) {
		t.Fatalf("updated-at went backwards: %v < %v", c.UpdatedAt(), before)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	c := New(Config{})
	c.Append(RoleUser, "original")
	msgs := c.Messages()
	msgs[0].Content = "changed"
	if got := c.Messages()[0].Content; got != "original" {
		t.Fatalf("store was mutated through a copy: %q", got)
	}
}

func TestAccumulatorLifecycle(t *testing.T) {
	c := New(Config{})
	c.Append(RoleUser, "question")

	acc := c.Accumulator()
	if again := c.Accumulator(); again != acc {
		t.Fatalf("expected the open accumulator to be reused")
	}
	if err := acc.WriteContent("Hel"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = acc.WriteContent("lo")
	_ = acc.WriteReasoning("thinking")
	if acc.Content() != "Hello" {
		t.Fatalf("unexpected content %q", acc.Content())
	}

	msg, err := acc.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if msg.Role != RoleAssistant || msg.Content != "Hello" || msg.Reasoning != "thinking" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if err := acc.WriteContent("late"); !errors.Is(err, ErrAccumulatorClosed) {
		t.Fatalf("expected ErrAccumulatorClosed, got %v", err)
	}
	if c.Messages()[1].Content != "Hello" {
		t.Fatalf("finalized message changed")
	}

	next := c.Accumulator()
	if next == acc {
		t.Fatalf("expected a new accumulator after finalize")
	}
	if c.Len() != 3 {
		t.Fatalf("expected a new assistant message, have %d messages", c.Len())
	}
}

func TestAppendClosesAccumulator(t *testing.T) {
	c := New(Config{})
	acc := c.Accumulator()
	_ = acc.WriteContent("partial")
	c.AppendTool("echo", "1", "result")

	if acc.Open() {
		t.Fatalf("accumulator should be closed after append")
	}
	if err := acc.Replace("rewritten"); !errors.Is(err, ErrAccumulatorClosed) {
		t.Fatalf("expected ErrAccumulatorClosed, got %v", err)
	}
	if c.Messages()[0].Content != "partial" {
		t.Fatalf("closed message was mutated")
	}
}

func TestAccumulatorReplace(t *testing.T) {
	c := New(Config{})
	acc := c.Accumulator()
	_ = acc.WriteContent("call @echo(1)")
	if err := acc.Replace("call echo(1)"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	_ = acc.WriteContent(" done")
	if got := acc.Content(); got != "call echo(1) done" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 5, 8, 30, 0, 123456789, time.UTC)}
	c := New(Config{Name: "a", Provider: "p", Model: "m", Tools: []string{"echo"}, Extra: map[string]string{"k": "v"}},
		WithClock(clock.now))
	c.Append(RoleSystem, "sys")
	acc := c.Accumulator()
	_ = acc.WriteReasoning("hmm")
	_ = acc.WriteContent("answer")
	_, _ = acc.Finalize()
	c.AppendTool("echo", "c1", "x")

	raw, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID() != c.ID() {
		t.Fatalf("session id changed: %s vs %s", restored.ID(), c.ID())
	}
	if !reflect.DeepEqual(restored.Config(), c.Config()) {
		t.Fatalf("config changed: %+v vs %+v", restored.Config(), c.Config())
	}
	got, want := restored.Messages(), c.Messages()
	if len(got) != len(want) {
		t.Fatalf("message count changed")
	}
	for i := range want {
		if got[i].Role != want[i].Role || got[i].Content != want[i].Content ||
			!got[i].Timestamp.Equal(want[i].Timestamp) || got[i].Reasoning != want[i].Reasoning {
			t.Fatalf("message %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	if _, err := Restore(Snapshot{}); err == nil {
		t.Fatalf("expected error for missing session id")
	}
	_, err := Restore(Snapshot{SessionID: "x", Messages: []Message{{Role: "narrator"}}})
	if err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestNewGeneratesDistinctIDs(t *testing.T) {
	a, b := New(Config{}), New(Config{})
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID(), b.ID())
	}
}

func TestAccumulatorDiscard(t *testing.T) {
	c := New(Config{})
	c.Append(RoleUser, "hi")

	acc := c.Accumulator()
	if !acc.Discard() {
		t.Fatalf("an untouched message should be discarded")
	}
	if c.Len() != 1 || acc.Open() {
		t.Fatalf("expected only the user message, have %d (open=%v)", c.Len(), acc.Open())
	}

	acc = c.Accumulator()
	_ = acc.WriteReasoning("thinking")
	if acc.Discard() {
		t.Fatalf("a message with reasoning must be kept")
	}
	if c.Len() != 2 {
		t.Fatalf("expected the assistant message to stay, have %d", c.Len())
	}
}
