// Package tools implements ToolRegistry and the built-in tool set:
// named, schema-described side-effecting operations the agent loop
// invokes on the LLM's behalf.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinyclaw-run/tinyclaw/internal/providers"
)

// Tool is the contract every built-in and custom tool satisfies.
type Tool interface {
	Name() string // stable, snake_case, unique
	Description() string
	ParametersSchema() map[string]interface{} // OpenAI-style tool schema
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolError is returned by Registry.Execute; it is data, never a panic.
type ToolError struct {
	Kind    string // "UnknownTool" | "Runtime"
	Message string
}

func (e *ToolError) Error() string { return e.Message }

// Registry owns every registered Tool. A single map guards concurrent
// reads and rare writes (registration); no tool holds the registry's
// lock while performing I/O.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	log   *slog.Logger

	callsTotal *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRegistry creates an empty Registry. reg is the Prometheus
// registerer to attach instrumentation to; pass nil to skip metrics
// (e.g. in tests) — Execute still works, just without counters.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
		log:   slog.Default().With("component", "tools"),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinyclaw_tool_calls_total",
			Help: "Total tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tinyclaw_tool_duration_seconds",
			Help:    "Tool execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(r.callsTotal, r.duration)
	}
	return r
}

// Register adds a tool, replacing any previous tool under the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Execute runs the named tool, recording its duration and a per-outcome
// call count, and logging the result size at debug level. Unknown tool
// names yield ToolError{Kind:
// "UnknownTool"}; a panic or error inside the tool is converted to
// ToolError{Kind: "Runtime"} — it never crashes the caller.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (output string, err error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		if r.callsTotal != nil {
			r.callsTotal.WithLabelValues(name, "unknown").Inc()
		}
		return "", &ToolError{Kind: "UnknownTool", Message: fmt.Sprintf("unknown tool: %s", name)}
	}

	start := time.Now()
	outcome := "ok"
	defer func() {
		if rec := recover(); rec != nil {
			outcome = "error"
			err = &ToolError{Kind: "Runtime", Message: fmt.Sprintf("tool %s panicked: %v", name, rec)}
			r.log.Error("tool panicked", "tool", name, "panic", rec)
		}
		if r.duration != nil {
			r.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
		if r.callsTotal != nil {
			r.callsTotal.WithLabelValues(name, outcome).Inc()
		}
		r.log.Debug("tool executed", "tool", name, "outcome", outcome, "duration", time.Since(start), "result_bytes", len(output))
	}()

	output, err = t.Execute(ctx, args)
	if err != nil {
		outcome = "error"
		return "", &ToolError{Kind: "Runtime", Message: err.Error()}
	}
	return output, nil
}

// Definitions returns every registered tool's schema, sorted stably by
// name so the LLM-facing tool list is deterministic byte-for-byte.
func (r *Registry) Definitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)

	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, n := range names {
		t := r.tools[n]
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.ParametersSchema(),
			},
		})
	}
	return defs
}

// Summaries returns short human-readable lines for inclusion in the
// system prompt, one per tool, in the same stable name order as
// Definitions.
func (r *Registry) Summaries() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)

	out := ""
	for _, n := range names {
		t := r.tools[n]
		out += fmt.Sprintf("- %s: %s\n", t.Name(), t.Description())
	}
	return out
}

// Has reports whether a tool with this name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}
