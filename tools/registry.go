// Package tools provides tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Input schemas compiled once at registration
// - Registration happens during startup; lookups are read-only afterwards

package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	validator "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/richinex/weaver/model"
	"github.com/richinex/weaver/storage"
)

type registryEntry struct {
	tool   Tool
	schema *validator.Schema
}

// Registry maps tool names to tool instances. It is safe to share between
// concurrent conversation runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registryEntry
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registryEntry),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists or its input
// schema does not compile.
func (r *Registry) Register(tool Tool) error {
	meta := tool.Metadata()
	if meta.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	schema, err := compileSchema(meta.Name, meta.InputSchema)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[meta.Name]; exists {
		return fmt.Errorf("tool '%s' already registered", meta.Name)
	}
	r.tools[meta.Name] = registryEntry{tool: tool, schema: schema}
	return nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.tools[name]
	return entry.tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog returns the schemas of all registered tools, sorted by name.
func (r *Registry) Catalog() []model.ToolSchema {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog := make([]model.ToolSchema, 0, len(names))
	for _, name := range names {
		if entry, ok := r.tools[name]; ok {
			catalog = append(catalog, entry.tool.Metadata().Schema())
		}
	}
	return catalog
}

// Validate checks input against the named tool's schema and, when the tool
// implements Validator, its own checks.
func (r *Registry) Validate(name string, input json.RawMessage) error {
	r.mu.RLock()
	entry, exists := r.tools[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if err := validateInput(entry.schema, input); err != nil {
		return err
	}
	if v, ok := entry.tool.(Validator); ok {
		if err := v.Validate(input); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

// Description returns a formatted description of all tools for terminal output.
func (r *Registry) Description() string {
	var descriptions []string
	for _, schema := range r.Catalog() {
		descriptions = append(descriptions, fmt.Sprintf("Tool: %s\nDescription: %s", schema.Name, schema.Description))
	}
	return strings.Join(descriptions, "\n\n")
}

// Default timeout and size constants for tools.
const (
	DefaultToolTimeout  = 30         // seconds
	DefaultMaxBodyBytes = 256 * 1024 // http_request response cap
	DefaultSearchLimit  = 5          // search_notes results
)

// WithDefaults creates a registry with the note tools backed by notes and the
// HTTP tool. Returns error if any tool registration fails.
func WithDefaults(notes storage.NoteStore) (*Registry, error) {
	registry := NewRegistry()

	tools := []Tool{
		NewAddNoteTool(notes),
		NewSearchNotesTool(notes),
		NewListNotesTool(notes),
		NewHTTPTool(DefaultToolTimeout),
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register default tools: %w", err)
		}
	}

	return registry, nil
}
