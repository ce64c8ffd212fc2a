package prompt

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps prompt and schema IDs to their current definitions. Loading a
// directory replaces entries by ID; Reset goes back to the built-ins.
type Registry struct {
	mu      sync.RWMutex
	prompts map[string]*PromptTemplate
	schemas map[string]*ResponseSchema
}

var (
	globalRegistry *Registry
	once           sync.Once
)

func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Get returns the process-wide registry.
func Get() *Registry {
	once.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

func (r *Registry) Register(pt *PromptTemplate) error {
	if pt.ID == "" {
		return fmt.Errorf("prompt ID cannot be empty")
	}
	r.mu.Lock()
	r.prompts[pt.ID] = pt
	r.mu.Unlock()
	return nil
}

func (r *Registry) RegisterSchema(schema *ResponseSchema) error {
	if schema.ID == "" {
		return fmt.Errorf("schema ID cannot be empty")
	}
	r.mu.Lock()
	r.schemas[schema.ID] = schema
	r.mu.Unlock()
	return nil
}

func (r *Registry) GetPrompt(id string) (*PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.prompts[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("prompt not found: %s", id)
}

func (r *Registry) GetSchema(id string) (*ResponseSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("schema not found: %s", id)
}

// ListPrompts returns the registered prompt IDs in sorted order.
func (r *Registry) ListPrompts() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.prompts))
	for id := range r.prompts {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts)
}

// Reset drops loaded overrides and schemas and restores the built-ins.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.prompts = make(map[string]*PromptTemplate)
	r.schemas = make(map[string]*ResponseSchema)
	r.mu.Unlock()
	registerBuiltins(r)
}
