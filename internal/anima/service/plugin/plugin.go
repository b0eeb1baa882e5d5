package plugin

import (
	"context"
	"sync"
)

// Result is what a plugin contributes to the conversation.
type Result struct {
	Context string `json:"context"`
}

// Plugin is a context provider the kernel may consult before replying.
type Plugin interface {
	ToolID() string
	Name() string
	Description() string
	Keywords() []string
	Enabled() bool
	Invoke(ctx context.Context) (*Result, error)
}

// Registry holds the known plugins. Registration order is preserved
// because LLM selection may answer with 1-based indices.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a plugin.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
}

// Enabled returns the enabled plugins in registration order.
func (r *Registry) Enabled() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Plugin
	for _, p := range r.plugins {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// FuncPlugin adapts a plain function into a Plugin.
type FuncPlugin struct {
	ID       string
	Title    string
	Desc     string
	Words    []string
	Disabled bool
	Fn       func(ctx context.Context) (*Result, error)
}

func (f *FuncPlugin) ToolID() string      { return f.ID }
func (f *FuncPlugin) Name() string        { return f.Title }
func (f *FuncPlugin) Description() string { return f.Desc }
func (f *FuncPlugin) Keywords() []string  { return f.Words }
func (f *FuncPlugin) Enabled() bool       { return !f.Disabled }

func (f *FuncPlugin) Invoke(ctx context.Context) (*Result, error) {
	return f.Fn(ctx)
}
