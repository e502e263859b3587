package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Handler processes a JSON-RPC request and returns a result or error.
type Handler func(ctx context.Context, params json.RawMessage) (any, *Error)

// DiscoverMethod lists the registered methods and their summaries.
const DiscoverMethod = "rpc.discover"

// MethodInfo describes one registered method.
type MethodInfo struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

type method struct {
	summary string
	handler Handler
}

// MethodRegistry maps method names to handlers. Every registry answers
// rpc.discover with the methods registered on it.
type MethodRegistry struct {
	methods map[string]method
}

func NewMethodRegistry() *MethodRegistry {
	r := &MethodRegistry{methods: make(map[string]method)}
	r.methods[DiscoverMethod] = method{
		summary: "List the methods this server answers",
		handler: func(context.Context, json.RawMessage) (any, *Error) {
			return map[string]any{"methods": r.Describe()}, nil
		},
	}
	return r
}

// Register binds a handler to a method name. Registering the same name twice
// is a programming error and panics.
func (r *MethodRegistry) Register(name, summary string, handler Handler) {
	if handler == nil {
		panic(fmt.Sprintf("jsonrpc: nil handler for %q", name))
	}
	if _, dup := r.methods[name]; dup {
		panic(fmt.Sprintf("jsonrpc: method %q registered twice", name))
	}
	r.methods[name] = method{summary: summary, handler: handler}
}

// Lookup returns the handler for a method, or nil.
func (r *MethodRegistry) Lookup(name string) Handler {
	return r.methods[name].handler
}

// Methods returns the registered method names in sorted order.
func (r *MethodRegistry) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe returns name and summary for every method, sorted by name.
func (r *MethodRegistry) Describe() []MethodInfo {
	names := r.Methods()
	infos := make([]MethodInfo, len(names))
	for i, name := range names {
		infos[i] = MethodInfo{Name: name, Summary: r.methods[name].summary}
	}
	return infos
}
