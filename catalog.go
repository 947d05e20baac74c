package agent

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrInvalidToolName is returned for names that cannot appear in call syntax.
	ErrInvalidToolName = errors.New("invalid tool name")
	// ErrNilTool is returned when registering a nil tool.
	ErrNilTool = errors.New("tool is nil")
)

// StaticToolCatalog is the default in-memory implementation of ToolCatalog.
// Names are matched exactly as the model writes them.
type StaticToolCatalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
	specs map[string]ToolSpec
	order []string
}

// NewStaticToolCatalog constructs a catalog seeded with the provided tools.
// The first registration error is returned.
func NewStaticToolCatalog(tools ...Tool) (*StaticToolCatalog, error) {
	catalog := &StaticToolCatalog{
		tools: make(map[string]Tool),
		specs: make(map[string]ToolSpec),
	}
	for _, tool := range tools {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Register adds a tool to the catalog. Duplicate names return ErrDuplicateTool.
func (c *StaticToolCatalog) Register(tool Tool) error {
	if tool == nil {
		return ErrNilTool
	}
	spec := tool.Spec()
	if !validToolName(spec.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidToolName, spec.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tools[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}
	c.tools[spec.Name] = tool
	c.specs[spec.Name] = spec
	c.order = append(c.order, spec.Name)
	return nil
}

// Lookup returns the tool and its specification if present.
func (c *StaticToolCatalog) Lookup(name string) (Tool, ToolSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tool, ok := c.tools[name]
	if !ok {
		return nil, ToolSpec{}, false
	}
	return tool, c.specs[name], true
}

// Specs returns a snapshot of the tool specifications in registration order.
func (c *StaticToolCatalog) Specs() []ToolSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	specs := make([]ToolSpec, 0, len(c.order))
	for _, key := range c.order {
		specs = append(specs, c.specs[key])
	}
	return specs
}

// Tools returns the registered tools in order.
func (c *StaticToolCatalog) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tools := make([]Tool, 0, len(c.order))
	for _, key := range c.order {
		tools = append(tools, c.tools[key])
	}
	return tools
}

// Names returns the registered tool names in order.
func (c *StaticToolCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}
