package runtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"strings"

	agent "github.com/Protocol-Lattice/toolloop"
	"github.com/Protocol-Lattice/toolloop/pkg/definition"
	"github.com/Protocol-Lattice/toolloop/pkg/models"
	"github.com/Protocol-Lattice/toolloop/pkg/store"
	"github.com/Protocol-Lattice/toolloop/pkg/tools"
)

// ModelLoader constructs the language model shared by the runtime's agents.
type ModelLoader func(ctx context.Context) (models.Model, error)

// Option configures runtime construction.
type Option func(*config)

type config struct {
	name           string
	provider       string
	model          string
	behavior       string
	systemTemplate string
	promptData     map[string]any
	maxIterations  int
	autoSave       bool

	modelLoader ModelLoader
	retry       *models.RetryConfig
	tools       []agent.Tool
	toolNames   []string
	workspace   tools.Workspace
	utcpClient  agent.UTCPClient
	utcpQuery   string
	utcpLimit   int
	store       store.Store
	maxRuns     int
	logger      *slog.Logger
}

func defaultConfig() *config {
	return &config{
		name:      "assistant",
		provider:  definition.DefaultProvider,
		model:     definition.DefaultModel,
		autoSave:  true,
		utcpLimit: 50,
		logger:    slog.New(slog.DiscardHandler),
	}
}

func (c *config) loader() ModelLoader {
	if c.modelLoader != nil {
		return c.modelLoader
	}
	return func(ctx context.Context) (models.Model, error) {
		return models.NewLLMProvider(ctx, c.provider, c.model)
	}
}

// WithDefinition applies an agent definition: identity, behavior, iteration
// bound, auto-save, prompt data and built-in tools by name.
func WithDefinition(def definition.Definition) Option {
	return func(c *config) {
		c.name = def.Name
		c.provider = def.Provider
		c.model = def.Model
		c.behavior = def.Behavior
		c.maxIterations = def.MaxIterations
		c.autoSave = def.SaveEnabled()
		c.promptData = def.PromptData
		c.toolNames = append(c.toolNames, def.Tools...)
	}
}

// WithModel names the provider and model used by the default loader.
func WithModel(provider, model string) Option {
	return func(c *config) {
		if provider = strings.TrimSpace(provider); provider != "" {
			c.provider = provider
		}
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// WithModelLoader replaces the provider lookup.
func WithModelLoader(loader ModelLoader) Option {
	return func(c *config) {
		c.modelLoader = loader
	}
}

// WithRetry wraps the model with a retry policy.
func WithRetry(cfg models.RetryConfig) Option {
	return func(c *config) {
		c.retry = &cfg
	}
}

// WithBehavior replaces the behavior text.
func WithBehavior(behavior string) Option {
	return func(c *config) {
		c.behavior = behavior
	}
}

// WithSystemTemplate sets the system message template.
func WithSystemTemplate(tmpl string) Option {
	return func(c *config) {
		c.systemTemplate = tmpl
	}
}

// WithPromptData adds template data for the system message. Keys already set
// by a definition are overwritten.
func WithPromptData(data map[string]any) Option {
	return func(c *config) {
		if len(data) == 0 {
			return
		}
		merged := make(map[string]any, len(c.promptData)+len(data))
		maps.Copy(merged, c.promptData)
		maps.Copy(merged, data)
		c.promptData = merged
	}
}

// WithMaxIterations overrides the iteration bound.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		c.maxIterations = n
	}
}

// WithTools registers one or more tools with every session.
func WithTools(list ...agent.Tool) Option {
	return func(c *config) {
		for _, tool := range list {
			if tool == nil {
				continue
			}
			c.tools = append(c.tools, tool)
		}
	}
}

// WithBuiltinTools selects built-in tools by name.
func WithBuiltinTools(names ...string) Option {
	return func(c *config) {
		c.toolNames = append(c.toolNames, names...)
	}
}

// WithWorkspace sets the root directory of the file and shell tools.
func WithWorkspace(root string) Option {
	return func(c *config) {
		c.workspace = tools.Workspace{Root: root}
	}
}

// WithUTCPClient exposes the tools a UTCP client finds for query.
func WithUTCPClient(client agent.UTCPClient, query string) Option {
	return func(c *config) {
		c.utcpClient = client
		c.utcpQuery = query
	}
}

// WithStore persists sessions; without one sessions live in memory.
func WithStore(st store.Store) Option {
	return func(c *config) {
		c.store = st
	}
}

// WithAutoSave toggles saving after every run.
func WithAutoSave(enabled bool) Option {
	return func(c *config) {
		c.autoSave = enabled
	}
}

// WithMaxConcurrentRuns limits how many sessions may run at the same time.
// Zero means no limit.
func WithMaxConcurrentRuns(n int) Option {
	return func(c *config) {
		c.maxRuns = n
	}
}

// WithLogger sets the logger passed to every agent.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Runtime hosts one Agent per session. Sessions share the model and the tool
// set but nothing else, so they can run in parallel.
type Runtime struct {
	cfg   *config
	model models.Model
	tools []agent.Tool
	store store.Store

	limiter  *runLimiter
	sessions *sessionManager
}

// New builds a runtime based on the supplied configuration options.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	model, err := cfg.loader()(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if model == nil {
		return nil, errors.New("model loader returned nil")
	}
	if cfg.retry != nil {
		retry := *cfg.retry
		if retry.Logger == nil {
			retry.Logger = cfg.logger
		}
		model = models.WithRetry(model, retry)
	}

	toolset := append([]agent.Tool(nil), cfg.tools...)
	builtins, err := tools.Select(cfg.workspace, cfg.toolNames...)
	if err != nil {
		return nil, err
	}
	toolset = append(toolset, builtins...)
	if cfg.utcpClient != nil {
		remote, err := agent.UTCPTools(cfg.utcpClient, cfg.utcpQuery, cfg.utcpLimit)
		if err != nil {
			return nil, err
		}
		toolset = append(toolset, remote...)
	}
	// Fail early on duplicate or invalid names instead of on the first session.
	if _, err := agent.NewStaticToolCatalog(toolset...); err != nil {
		return nil, err
	}

	st := cfg.store
	if st == nil {
		st = store.NewMemoryStore()
	}

	rt := &Runtime{cfg: cfg, model: model, tools: toolset, store: st, limiter: newRunLimiter(cfg.maxRuns)}
	rt.sessions = newSessionManager(rt)
	return rt, nil
}

func (rt *Runtime) options(sessionID string) agent.Options {
	return agent.Options{
		Model:          rt.model,
		Name:           rt.cfg.name,
		Provider:       rt.cfg.provider,
		ModelName:      rt.cfg.model,
		Behavior:       rt.cfg.behavior,
		Tools:          rt.tools,
		MaxIterations:  rt.cfg.maxIterations,
		SystemTemplate: rt.cfg.systemTemplate,
		PromptData:     rt.cfg.promptData,
		SessionID:      sessionID,
		Store:          rt.store,
		AutoSave:       rt.cfg.autoSave,
		Logger:         rt.cfg.logger,
	}
}

// Tools returns the specs of the tools every session gets.
func (rt *Runtime) Tools() []agent.ToolSpec {
	specs := make([]agent.ToolSpec, 0, len(rt.tools))
	for _, tool := range rt.tools {
		specs = append(specs, tool.Spec())
	}
	return specs
}

// Store returns the session store.
func (rt *Runtime) Store() store.Store { return rt.store }

// Close releases the store.
func (rt *Runtime) Close(ctx context.Context) error {
	return store.Close(ctx, rt.store)
}

// NewSession starts a conversation. If id is empty a unique identifier is generated.
func (rt *Runtime) NewSession(id string) (*Session, error) {
	return rt.sessions.newSession(strings.TrimSpace(id))
}

// GetSession returns an active session or resumes it from the store.
func (rt *Runtime) GetSession(ctx context.Context, id string) (*Session, error) {
	return rt.sessions.getSession(ctx, strings.TrimSpace(id))
}

// RemoveSession removes a session from the active sessions map.
func (rt *Runtime) RemoveSession(id string) {
	rt.sessions.removeSession(strings.TrimSpace(id))
}

// ActiveSessions returns a copy of all active session IDs.
func (rt *Runtime) ActiveSessions() []string {
	return rt.sessions.activeIDs()
}

// Generate runs userInput in the session and returns the final answer.
func (rt *Runtime) Generate(ctx context.Context, sessionID string, userInput string) (string, error) {
	session, err := rt.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return session.Generate(ctx, userInput)
}

// Session encapsulates the conversation of a single user.
type Session struct {
	agent   *agent.Agent
	limiter *runLimiter
}

// ID returns the unique identifier associated with the session.
func (s *Session) ID() string { return s.agent.SessionID() }

// Agent exposes the session's agent.
func (s *Session) Agent() *agent.Agent { return s.agent }

// Instruct streams the events of one run.
func (s *Session) Instruct(ctx context.Context, input string) iter.Seq2[agent.Event, error] {
	return func(yield func(agent.Event, error) bool) {
		if err := s.limiter.acquire(ctx); err != nil {
			yield(agent.Event{}, err)
			return
		}
		defer s.limiter.release()
		for ev, err := range s.agent.Instruct(ctx, input) {
			if !yield(ev, err) {
				return
			}
		}
	}
}

// Generate runs input to completion.
func (s *Session) Generate(ctx context.Context, input string) (string, error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return "", err
	}
	defer s.limiter.release()
	return s.agent.Generate(ctx, input)
}

// Save persists the session.
func (s *Session) Save(ctx context.Context) (string, error) {
	return s.agent.Save(ctx)
}
