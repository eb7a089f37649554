// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoker

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// MODEL SPECS
// =============================================================================

// ModelSpec describes how to launch one CLI.
type ModelSpec struct {
	// ID is the model identifier the spec is registered under.
	ID string

	// Command is the executable name or path.
	Command string

	// Args are the fixed arguments placed before the prompt.
	Args []string

	// Filter names the transcript filter to apply to stdout. Empty means
	// "the filter registered under ID, if any"; NoFilter disables filtering.
	Filter string

	// Timeout overrides the invoker default when positive.
	Timeout time.Duration
}

// Argv returns [Command, Args..., prompt] in a freshly allocated slice.
func (s ModelSpec) Argv(prompt string) []string {
	argv := make([]string, 0, len(s.Args)+2)
	argv = append(argv, s.Command)
	argv = append(argv, s.Args...)
	return append(argv, prompt)
}

// SpecSource supplies the current model specs. Specs is called once per
// invocation and may be called concurrently.
type SpecSource interface {
	Specs(ctx context.Context) (map[string]ModelSpec, error)
}

// SpecSourceFunc adapts a function to SpecSource.
type SpecSourceFunc func(ctx context.Context) (map[string]ModelSpec, error)

// Specs implements SpecSource.
func (f SpecSourceFunc) Specs(ctx context.Context) (map[string]ModelSpec, error) {
	return f(ctx)
}

// StaticSource is a fixed set of specs keyed by model id.
type StaticSource map[string]ModelSpec

// Specs implements SpecSource.
func (s StaticSource) Specs(context.Context) (map[string]ModelSpec, error) {
	return s, nil
}

// =============================================================================
// RESULTS
// =============================================================================

// Result is a successful, normalized model response.
type Result struct {
	Content string `json:"content"`

	// ReasoningDetails is reserved for structured reasoning output and is
	// always nil for CLI-backed models.
	ReasoningDetails any `json:"reasoning_details"`
}

// Outcome is the tagged result of one invocation.
type Outcome struct {
	Model  string  `json:"model"`
	Result *Result `json:"result"`
	Err    *Error  `json:"error,omitempty"`

	// Resolved is set once the id matched a configured spec.
	Resolved bool `json:"resolved"`

	// Duration covers resolution through filtering.
	Duration time.Duration `json:"duration_ns"`

	// ExitCode is -1 when the process never exited on its own.
	ExitCode int `json:"exit_code"`

	// PID of the spawned process, 0 if none was started.
	PID int `json:"pid,omitempty"`
}

// OK reports whether the invocation produced a result.
func (o Outcome) OK() bool {
	return o.Result != nil
}

// Kind returns the failure kind, or KindNone on success.
func (o Outcome) Kind() Kind {
	if o.Err == nil {
		return KindNone
	}
	return o.Err.Kind
}

// Results reduces tagged outcomes to the simple id -> *Result mapping.
func Results(outcomes map[string]Outcome) map[string]*Result {
	results := make(map[string]*Result, len(outcomes))
	for id, o := range outcomes {
		results[id] = o.Result
	}
	return results
}

// =============================================================================
// ERRORS
// =============================================================================

// Kind classifies invocation failures.
type Kind int

const (
	KindNone Kind = iota
	KindUnknownModel
	KindExecutableNotFound
	KindTimeout
	KindNonZeroExit
	KindCanceled
	KindUnexpectedFault
)

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnknownModel:
		return "unknown_model"
	case KindExecutableNotFound:
		return "executable_not_found"
	case KindTimeout:
		return "timeout"
	case KindNonZeroExit:
		return "non_zero_exit"
	case KindCanceled:
		return "canceled"
	case KindUnexpectedFault:
		return "unexpected_fault"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error describes why a model could not contribute.
type Error struct {
	Kind    Kind   `json:"kind"`
	Model   string `json:"model"`
	Message string `json:"message"`

	// ExitCode and Stderr are set for KindNonZeroExit.
	ExitCode int    `json:"exit_code,omitempty"`
	Stderr   string `json:"stderr,omitempty"`

	// Known lists the configured ids for KindUnknownModel.
	Known []string `json:"known,omitempty"`

	Cause error `json:"-"`
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrUnknownModel       = &Error{Kind: KindUnknownModel}
	ErrExecutableNotFound = &Error{Kind: KindExecutableNotFound}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrNonZeroExit        = &Error{Kind: KindNonZeroExit}
	ErrCanceled           = &Error{Kind: KindCanceled}
	ErrUnexpectedFault    = &Error{Kind: KindUnexpectedFault}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Model != "" {
		msg = e.Model + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Model == "" && t.Message == ""
}

func knownIDs(specs map[string]ModelSpec) []string {
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
