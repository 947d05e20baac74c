package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
	"github.com/Protocol-Lattice/toolloop/pkg/models"
	"github.com/Protocol-Lattice/toolloop/pkg/store"
	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// DefaultMaxIterations bounds a run when Options.MaxIterations is unset.
const DefaultMaxIterations = 15

// Agent drives the model/tool loop over one conversation. A single run is
// active at a time; separate Agents share no mutable state.
type Agent struct {
	model         models.Model
	conv          *conversation.Conversation
	catalog       *StaticToolCatalog
	parser        *toolcall.Parser
	maxIterations int
	store         store.Store
	autoSave      bool
	logger        *slog.Logger
	onUsage       func(models.Usage)
	newCallID     func() string

	running atomic.Bool
}

// Options configure a new Agent.
type Options struct {
	Model models.Model

	// Name, Provider, ModelName and Behavior go into the configuration
	// snapshot of a new conversation and into the system message.
	Name      string
	Provider  string
	ModelName string
	Behavior  string

	// Tools are registered into a catalog owned by the Agent. Tools from
	// Catalog, if set, are copied in first.
	Tools   []Tool
	Catalog ToolCatalog

	MaxIterations int
	Parser        *toolcall.Parser

	// SystemTemplate is a text/template; see DefaultSystemTemplate.
	SystemTemplate string
	PromptData     map[string]any

	// Conversation resumes an existing session. Its system message is kept.
	Conversation *conversation.Conversation
	// SessionID fixes the id of a new conversation.
	SessionID string
	Extra     map[string]string

	Store    store.Store
	AutoSave bool

	Logger  *slog.Logger
	OnUsage func(models.Usage)
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, ErrMissingModel
	}

	catalog, err := NewStaticToolCatalog()
	if err != nil {
		return nil, err
	}
	if opts.Catalog != nil {
		for _, tool := range opts.Catalog.Tools() {
			if err := catalog.Register(tool); err != nil {
				return nil, err
			}
		}
	}
	for _, tool := range opts.Tools {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	parser := opts.Parser
	if parser == nil {
		parser = toolcall.NewParser()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conv := opts.Conversation
	if conv == nil {
		conv = conversation.New(conversation.Config{
			Name:          opts.Name,
			Provider:      opts.Provider,
			Model:         opts.ModelName,
			Behavior:      opts.Behavior,
			Tools:         catalog.Names(),
			MaxIterations: maxIterations,
			Extra:         opts.Extra,
		}, conversation.WithSessionID(opts.SessionID))

		system, err := BuildSystemMessage(opts.SystemTemplate, PromptInput{
			Name:     opts.Name,
			Model:    opts.ModelName,
			Behavior: opts.Behavior,
			Tools:    catalog.Specs(),
			Data:     opts.PromptData,
		})
		if err != nil {
			return nil, err
		}
		conv.Append(conversation.RoleSystem, system)
	}

	return &Agent{
		model:         opts.Model,
		conv:          conv,
		catalog:       catalog,
		parser:        parser,
		maxIterations: maxIterations,
		store:         opts.Store,
		autoSave:      opts.AutoSave,
		logger:        logger.With("session_id", conv.ID()),
		onUsage:       opts.OnUsage,
		newCallID:     uuid.NewString,
	}, nil
}

// Resume loads a saved session from st and continues it with opts. Empty
// identity fields in opts are taken from the saved configuration.
func Resume(ctx context.Context, st store.Store, sessionID string, opts Options) (*Agent, error) {
	snap, err := st.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}
	conv, err := conversation.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}
	cfg := conv.Config()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if opts.Store == nil {
		opts.Store = st
	}
	opts.Conversation = conv
	return New(opts)
}

// SessionID returns the conversation's session identifier.
func (a *Agent) SessionID() string { return a.conv.ID() }

// Conversation exposes the message store.
func (a *Agent) Conversation() *conversation.Conversation { return a.conv }

// Tools returns the specs of the registered tools in registration order.
func (a *Agent) Tools() []ToolSpec { return a.catalog.Specs() }

// MaxIterations reports the iteration bound.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// Instruct appends instruction as a user message and runs the loop. Nothing
// happens until the sequence is ranged over. A non-nil error is always the
// last element.
func (a *Agent) Instruct(ctx context.Context, instruction string) iter.Seq2[Event, error] {
	return a.start(ctx, func() { a.conv.Append(conversation.RoleUser, instruction) })
}

// Invoke runs the loop on the conversation as it is, for example after a
// resumed session whose last message is a user or tool message.
func (a *Agent) Invoke(ctx context.Context) iter.Seq2[Event, error] {
	return a.start(ctx, nil)
}

// Generate runs an instruction to completion and returns the text of the
// final assistant message.
func (a *Agent) Generate(ctx context.Context, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", errors.New("instruction is empty")
	}
	for _, err := range a.Instruct(ctx, instruction) {
		if err != nil {
			return "", err
		}
	}
	return a.lastAssistant(), nil
}

// Save writes the conversation to the configured store.
func (a *Agent) Save(ctx context.Context) (string, error) {
	if a.store == nil {
		return "", errors.New("agent has no store")
	}
	return a.store.Save(ctx, a.conv.Snapshot())
}

func (a *Agent) lastAssistant() string {
	msgs := a.conv.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == conversation.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

func (a *Agent) start(ctx context.Context, prepare func()) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if !a.running.CompareAndSwap(false, true) {
			yield(Event{}, ErrAgentBusy)
			return
		}
		defer a.running.Store(false)

		if prepare != nil {
			prepare()
		}
		r := &run{agent: a, yield: yield}
		r.loop(ctx)
		a.finish(ctx, r)
	}
}

// run tracks one pass over the event sequence. Once the consumer stops,
// yield must not be called again.
type run struct {
	agent   *Agent
	yield   func(Event, error) bool
	stopped bool
}

func (r *run) emit(ev Event) bool {
	if r.stopped {
		return false
	}
	if !r.yield(ev, nil) {
		r.stopped = true
	}
	return !r.stopped
}

func (r *run) fail(err error) {
	if r.stopped {
		return
	}
	r.yield(Event{}, err)
	r.stopped = true
}

func (a *Agent) finish(ctx context.Context, r *run) {
	if !a.autoSave || a.store == nil {
		return
	}
	loc, err := a.Save(context.WithoutCancel(ctx))
	if err != nil {
		a.logger.Error("auto-save failed", "error", err)
		r.fail(fmt.Errorf("auto-save: %w", err))
		return
	}
	a.logger.Debug("session saved", "location", loc)
}

func (r *run) loop(ctx context.Context) {
	a := r.agent
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			r.fail(err)
			return
		}

		res, ok := r.turn(ctx, iteration)
		if !ok {
			return
		}
		if len(res.Calls) == 0 {
			return
		}

		for _, call := range res.Calls {
			if err := ctx.Err(); err != nil {
				r.fail(err)
				return
			}
			a.logger.Debug("executing tool", "tool", call.Name, "iteration", iteration)
			result := Execute(ctx, a.catalog, a.conv.ID(), a.newCallID(), call)
			if result.Err != nil {
				a.logger.Debug("tool failed", "tool", call.Name, "kind", result.Err.Kind)
			}
			a.conv.AppendTool(result.Name, result.CallID, result.Text())
			if !r.emit(Event{Kind: EventTool, Text: result.Text(), Tool: &result, Iteration: iteration}) {
				return
			}
		}

		if iteration >= a.maxIterations {
			a.logger.Warn("iteration bound reached", "max_iterations", a.maxIterations)
			r.emit(Event{
				Kind:      EventWarning,
				Text:      fmt.Sprintf("maximum iterations (%d) reached; stopping without a final answer", a.maxIterations),
				Iteration: iteration,
			})
			return
		}
	}
}

// turn streams one model turn into a fresh assistant message and parses it.
// ok is false when the run has to end: inference failed or the consumer
// stopped pulling events.
func (r *run) turn(ctx context.Context, iteration int) (res toolcall.Result, ok bool) {
	a := r.agent
	a.logger.Debug("starting turn", "iteration", iteration)

	req := models.Request{Messages: a.conv.Messages(), OnUsage: a.onUsage}
	acc := a.conv.Accumulator()
	defer func() {
		if !ok && acc.Discard() {
			return
		}
		_, _ = acc.Finalize()
	}()

	for chunk, err := range models.NewTurn(ctx, a.model, req).Chunks() {
		if err != nil {
			a.logger.Error("inference failed", "iteration", iteration, "error", err)
			r.fail(&InferenceError{Iteration: iteration, Err: err})
			return res, false
		}
		kind := EventContent
		if chunk.Kind == models.ChunkReasoning {
			kind = EventReasoning
			_ = acc.WriteReasoning(chunk.Text)
		} else {
			_ = acc.WriteContent(chunk.Text)
		}
		if !r.emit(Event{Kind: kind, Text: chunk.Text, Iteration: iteration}) {
			return res, false
		}
	}

	res = a.parser.Parse(acc.Content())
	if res.Display != acc.Content() {
		_ = acc.Replace(res.Display)
	}
	return res, true
}
