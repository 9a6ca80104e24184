// Package tools implements the named, parameterized handler registry the
// LLM's "execute" tagged action dispatches into.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/echoear/gateway/internal/session"
)

// abortPollInterval is how often ExecuteWithKeepalive checks tts_abort while
// a long-running tool handler is in flight.
const abortPollInterval = 200 * time.Millisecond

func pollTicker() *time.Ticker {
	return time.NewTicker(abortPollInterval)
}

// ToolParam describes one argument a tool handler accepts.
type ToolParam struct {
	Name     string
	Type     string
	Required bool
	Default  any
}

// Handler executes a tool call against the session's live state.
type Handler func(ctx context.Context, args map[string]any, sess *session.Session) ToolResult

// ToolDef is a registered tool: its LLM-facing description plus its handler.
type ToolDef struct {
	Name        string
	Description string
	Params      []ToolParam
	Handler     Handler
	LongRunning bool
}

// ToolResult is the outcome of one tool invocation, tagged by Type.
type ToolResult struct {
	Type string // tts, error, ask_user, music, silent
	Text string
	Data map[string]any
}

// Registry holds the process-wide set of tools available to "execute".
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolDef
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolDef)}
}

// Register adds or replaces a tool definition.
func (r *Registry) Register(def ToolDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (ToolDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// All returns a snapshot of every registered tool.
func (r *Registry) All() map[string]ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ToolDef, len(r.tools))
	for k, v := range r.tools {
		out[k] = v
	}
	return out
}

// DescriptionsForLLM renders a compact, prompt-injectable listing of every
// registered tool's name, params, and description, sorted for stable output.
func (r *Registry) DescriptionsForLLM() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		def := r.tools[name]
		b.WriteString("- ")
		b.WriteString(name)
		if len(def.Params) > 0 {
			b.WriteString("(")
			for i, p := range def.Params {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(p.Name)
				if p.Required {
					b.WriteString("*")
				}
			}
			b.WriteString(")")
		}
		b.WriteString(": ")
		b.WriteString(def.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// Execute runs a registered tool by name, recovering from any handler panic
// so a single misbehaving tool never brings down the pipeline goroutine
// calling it (matching original_source's broad except-Exception guard).
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, sess *session.Session) (result ToolResult) {
	def, ok := r.Get(name)
	if !ok {
		return ToolResult{Type: "error", Text: "Unknown tool: " + name}
	}

	for _, p := range def.Params {
		if !p.Required {
			continue
		}
		if _, present := args[p.Name]; !present {
			return ToolResult{Type: "ask_user", Data: map[string]any{"missing_param": p.Name}}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = ToolResult{Type: "error", Text: fmt.Sprintf("tool %s panicked: %v", name, rec)}
		}
	}()

	return def.Handler(ctx, args, sess)
}

// ExecuteWithKeepalive runs a LongRunning tool, but if the session's
// tts_abort flag flips mid-execution, cancels the handler's context and
// discards its (possibly stale) result in favor of a silent outcome — the
// caller is assumed to already be tearing down playback.
func (r *Registry) ExecuteWithKeepalive(ctx context.Context, name string, args map[string]any, sess *session.Session) ToolResult {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct{ result ToolResult }
	done := make(chan outcome, 1)

	go func() {
		done <- outcome{result: r.Execute(runCtx, name, args, sess)}
	}()

	ticker := pollTicker()
	defer ticker.Stop()

	for {
		select {
		case o := <-done:
			return o.result
		case <-ticker.C:
			if sess.TTSAbort.Load() {
				cancel()
				<-done
				return ToolResult{Type: "silent"}
			}
		}
	}
}
