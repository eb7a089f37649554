// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"sort"
	"strings"
	"sync"
)

// Filter post-processes the decoded, trimmed stdout of a tool.
type Filter func(raw string) string

// =============================================================================
// CODEX FILTER
// =============================================================================

const (
	// CodexAnswerMarker is the section label that precedes the answer.
	CodexAnswerMarker = "codex"

	// CodexUsageMarker starts the trailing usage statistics section.
	CodexUsageMarker = "tokens used"
)

// Codex extracts the answer section from a codex transcript.
//
// Lines after a line that is exactly "codex" (ignoring surrounding
// whitespace) are captured until a line starting with "tokens used". When no
// such section exists the raw text is searched for "\ncodex\n" instead, and
// if that fails too the input is returned trimmed.
func Codex(raw string) string {
	return Sections(CodexAnswerMarker, CodexUsageMarker)(raw)
}

// Sections builds a Filter that keeps the lines between a start marker line
// and a line beginning with the stop marker.
func Sections(start, stop string) Filter {
	return func(raw string) string {
		if answer, ok := scanSection(raw, start, stop); ok {
			return answer
		}
		if answer, ok := cutSection(raw, start, stop); ok {
			return answer
		}
		return strings.TrimSpace(raw)
	}
}

func scanSection(raw, start, stop string) (string, bool) {
	var captured []string
	capturing := false

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		// Repeated marker lines are section labels, never answer text.
		if trimmed == start {
			capturing = true
			continue
		}
		if !capturing {
			continue
		}
		if strings.HasPrefix(trimmed, stop) {
			break
		}
		captured = append(captured, line)
	}

	if len(captured) == 0 {
		return "", false
	}
	return strings.TrimSpace(strings.Join(captured, "\n")), true
}

func cutSection(raw, start, stop string) (string, bool) {
	_, after, found := strings.Cut(raw, "\n"+start+"\n")
	if !found {
		return "", false
	}
	answer, _, _ := strings.Cut(after, "\n"+stop)
	return strings.TrimSpace(answer), true
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps filter names to filters. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Filter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]Filter)}
}

// DefaultRegistry returns a registry with the built-in filters:
//   - codex: Codex
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CodexAnswerMarker, Codex)
	return r
}

// Register adds or replaces a filter. A nil filter removes the name.
func (r *Registry) Register(name string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f == nil {
		delete(r.filters, name)
		return
	}
	r.filters[name] = f
}

// Lookup returns the filter registered under name.
func (r *Registry) Lookup(name string) (Filter, bool) {
	if r == nil || name == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[name]
	return f, ok
}

// Names returns the registered filter names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
