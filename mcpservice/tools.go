package mcpservice

import (
	"fmt"
	"sync"

	"github.com/ggoodman/canvas-mcp/mcp"
)

// ToolsContainer owns the tool catalog: descriptors in registration order and
// the handler for each name. Tools are registered at startup; afterwards the
// container is only read, from any number of goroutines.
type ToolsContainer struct {
	mu    sync.RWMutex
	tools []StaticTool
	index map[string]int // name -> position in tools
}

// NewToolsContainer constructs a container holding defs in the given order.
// It fails on the first invalid or duplicate definition.
func NewToolsContainer(defs ...StaticTool) (*ToolsContainer, error) {
	st := &ToolsContainer{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if err := st.Register(d); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Register adds a tool. Registering a name twice is an error.
func (st *ToolsContainer) Register(def StaticTool) error {
	name := def.Descriptor.Name
	if name == "" {
		return fmt.Errorf("tool registration: missing name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool registration %q: missing handler", name)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.index == nil {
		st.index = make(map[string]int)
	}
	if _, exists := st.index[name]; exists {
		return fmt.Errorf("tool registration %q: duplicate name", name)
	}
	st.index[name] = len(st.tools)
	st.tools = append(st.tools, def)
	return nil
}

// Lookup returns the tool registered under name.
func (st *ToolsContainer) Lookup(name string) (StaticTool, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	i, ok := st.index[name]
	if !ok {
		return StaticTool{}, false
	}
	return st.tools[i], true
}

// List returns a copy of the tool descriptors in registration order.
func (st *ToolsContainer) List() []mcp.Tool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]mcp.Tool, len(st.tools))
	for i, t := range st.tools {
		out[i] = t.Descriptor
	}
	return out
}

// Len reports the number of registered tools.
func (st *ToolsContainer) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.tools)
}
