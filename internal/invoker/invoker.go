// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/jeranaias/llm-council/internal/model"
	"github.com/jeranaias/llm-council/internal/prompt"
	"github.com/jeranaias/llm-council/internal/transcript"
	"github.com/jeranaias/llm-council/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout applies when neither the call nor the spec sets one.
	DefaultTimeout = 120 * time.Second

	// DefaultWaitDelay bounds how long Wait blocks on output pipes after the
	// process has been killed.
	DefaultWaitDelay = 2 * time.Second

	// NoFilter as ModelSpec.Filter disables transcript filtering.
	NoFilter = "none"

	// maxLoggedStderr caps stderr in diagnostics.
	maxLoggedStderr = 500
)

// =============================================================================
// INVOKER
// =============================================================================

// Invoker runs model CLIs as subprocesses and normalizes their output.
// An Invoker is safe for concurrent use.
type Invoker struct {
	source         SpecSource
	filters        *transcript.Registry
	observers      []Observer
	defaultTimeout time.Duration
	waitDelay      time.Duration
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithDefaultTimeout sets the fallback timeout. Non-positive values are ignored.
func WithDefaultTimeout(d time.Duration) Option {
	return func(inv *Invoker) {
		if d > 0 {
			inv.defaultTimeout = d
		}
	}
}

// WithFilters replaces the transcript filter registry.
func WithFilters(r *transcript.Registry) Option {
	return func(inv *Invoker) {
		inv.filters = r
	}
}

// WithObserver adds observers notified around each invocation.
func WithObserver(obs ...Observer) Option {
	return func(inv *Invoker) {
		for _, o := range obs {
			if o != nil {
				inv.observers = append(inv.observers, o)
			}
		}
	}
}

// WithWaitDelay sets how long to wait for output pipes after a kill.
func WithWaitDelay(d time.Duration) Option {
	return func(inv *Invoker) {
		if d > 0 {
			inv.waitDelay = d
		}
	}
}

// New creates an Invoker that resolves specs from source on every call.
func New(source SpecSource, opts ...Option) *Invoker {
	inv := &Invoker{
		source:         source,
		filters:        transcript.DefaultRegistry(),
		defaultTimeout: DefaultTimeout,
		waitDelay:      DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// =============================================================================
// SINGLE INVOCATION
// =============================================================================

// Invoke sends the conversation to one model. It returns nil when the model
// could not produce a response for any reason; details are logged.
// A non-positive timeout selects the spec's timeout, then the default.
func (inv *Invoker) Invoke(ctx context.Context, modelID string, conv model.Conversation, timeout time.Duration) *Result {
	return inv.InvokeDetailed(ctx, modelID, conv, timeout).Result
}

// InvokeDetailed is Invoke with the failure classification preserved.
func (inv *Invoker) InvokeDetailed(ctx context.Context, modelID string, conv model.Conversation, timeout time.Duration) Outcome {
	return inv.invokePrompt(ctx, modelID, prompt.Compile(conv), timeout)
}

func (inv *Invoker) invokePrompt(ctx context.Context, modelID, promptText string, timeout time.Duration) (out Outcome) {
	start := time.Now()
	out = Outcome{Model: modelID, ExitCode: -1}
	ctx = log.With(ctx, log.KV{K: "model", V: modelID})

	inv.notifyStarted(modelID)
	defer func() {
		if r := recover(); r != nil {
			out.Result = nil
			out.Err = &Error{
				Kind:    KindUnexpectedFault,
				Model:   modelID,
				Message: fmt.Sprintf("panic: %v", r),
			}
		}
		out.Duration = time.Since(start)
		inv.report(ctx, out)
		inv.notifyFinished(out)
	}()

	specs, err := inv.source.Specs(ctx)
	if err != nil {
		out.Err = &Error{Kind: KindUnexpectedFault, Model: modelID, Message: "load model specs", Cause: err}
		return out
	}
	spec, ok := specs[modelID]
	if !ok {
		out.Err = &Error{Kind: KindUnknownModel, Model: modelID, Known: knownIDs(specs)}
		return out
	}
	out.Resolved = true
	if spec.ID == "" {
		spec.ID = modelID
	}
	if strings.TrimSpace(spec.Command) == "" {
		out.Err = &Error{Kind: KindExecutableNotFound, Model: modelID, Message: "no command configured"}
		return out
	}

	timeout = inv.effectiveTimeout(spec, timeout)
	proc, err := runProcess(ctx, spec.Argv(promptText), timeout, inv.waitDelay)
	out.PID = proc.pid
	out.ExitCode = proc.exitCode
	if err != nil {
		out.Err = classify(ctx, modelID, spec, timeout, proc, err)
		return out
	}

	content := strings.TrimSpace(decodeText(proc.stdout))
	if f := inv.filterFor(ctx, modelID, spec); f != nil {
		content = f(content)
	}
	out.Result = &Result{Content: content}
	return out
}

func (inv *Invoker) effectiveTimeout(spec ModelSpec, timeout time.Duration) time.Duration {
	switch {
	case timeout > 0:
		return timeout
	case spec.Timeout > 0:
		return spec.Timeout
	default:
		return inv.defaultTimeout
	}
}

// filterFor resolves the spec's filter: an explicit name wins, otherwise the
// filter registered under the requested model id applies. An unknown explicit
// name passes the text through.
func (inv *Invoker) filterFor(ctx context.Context, modelID string, spec ModelSpec) transcript.Filter {
	switch spec.Filter {
	case NoFilter:
		return nil
	case "":
		f, _ := inv.filters.Lookup(modelID)
		return f
	}
	f, ok := inv.filters.Lookup(spec.Filter)
	if !ok {
		log.Warn(ctx,
			log.KV{K: "msg", V: "unknown transcript filter, output unfiltered"},
			log.KV{K: "filter", V: spec.Filter},
		)
	}
	return f
}

func classify(ctx context.Context, modelID string, spec ModelSpec, timeout time.Duration, proc processResult, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return &Error{
			Kind:    KindTimeout,
			Model:   modelID,
			Message: fmt.Sprintf("no response within %s", timeout),
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindCanceled, Model: modelID, Cause: err}
	case isNotFound(err):
		return &Error{
			Kind:    KindExecutableNotFound,
			Model:   modelID,
			Message: fmt.Sprintf("cannot execute %q", spec.Command),
			Cause:   err,
		}
	case proc.exitCode > 0 || (proc.exitCode == -1 && proc.pid != 0):
		return &Error{
			Kind:     KindNonZeroExit,
			Model:    modelID,
			ExitCode: proc.exitCode,
			Stderr:   strings.TrimSpace(decodeText(proc.stderr)),
			Cause:    err,
		}
	default:
		return &Error{Kind: KindUnexpectedFault, Model: modelID, Cause: err}
	}
}

// report logs the invocation result. Failures are diagnostics only; they
// never propagate past the nil Result.
func (inv *Invoker) report(ctx context.Context, out Outcome) {
	fields := []log.Fielder{
		log.KV{K: "duration", V: out.Duration.String()},
		log.KV{K: "exit_code", V: out.ExitCode},
	}
	if out.Err == nil {
		log.Debug(ctx, append(fields,
			log.KV{K: "msg", V: "model responded"},
			log.KV{K: "chars", V: len(out.Result.Content)},
		)...)
		return
	}

	fields = append(fields, log.KV{K: "kind", V: out.Err.Kind.String()})
	switch out.Err.Kind {
	case KindUnknownModel:
		fields = append(fields, log.KV{K: "known", V: strings.Join(out.Err.Known, ",")})
	case KindNonZeroExit:
		fields = append(fields, log.KV{K: "stderr", V: util.TruncateRunes(out.Err.Stderr, maxLoggedStderr)})
	}
	if out.Err.Kind == KindCanceled {
		log.Debug(ctx, append(fields, log.KV{K: "msg", V: "invocation canceled"})...)
		return
	}
	log.Error(ctx, out.Err, fields...)
}

func (inv *Invoker) notifyStarted(modelID string) {
	for _, o := range inv.observers {
		safeNotify(func() { o.InvocationStarted(modelID) })
	}
}

func (inv *Invoker) notifyFinished(out Outcome) {
	for _, o := range inv.observers {
		safeNotify(func() { o.InvocationFinished(out) })
	}
}

// safeNotify keeps a faulty observer from breaking an invocation.
func safeNotify(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// =============================================================================
// FAN-OUT
// =============================================================================

// InvokeMany sends the same conversation to every listed model concurrently
// and waits for all of them. The returned map has exactly one entry per
// distinct id; failed models map to nil.
func (inv *Invoker) InvokeMany(ctx context.Context, ids []string, conv model.Conversation) map[string]*Result {
	return Results(inv.InvokeManyDetailed(ctx, ids, conv))
}

// InvokeManyDetailed is InvokeMany with per-model outcomes.
func (inv *Invoker) InvokeManyDetailed(ctx context.Context, ids []string, conv model.Conversation) map[string]Outcome {
	unique := dedupe(ids)
	outcomes := make(map[string]Outcome, len(unique))
	if len(unique) == 0 {
		return outcomes
	}

	ctx = log.With(ctx, log.KV{K: "batch", V: uuid.NewString()[:8]})
	log.Debug(ctx,
		log.KV{K: "msg", V: "fan-out"},
		log.KV{K: "models", V: strings.Join(unique, ",")},
	)

	promptText := prompt.Compile(conv)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range unique {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out := inv.invokePrompt(ctx, id, promptText, 0)
			mu.Lock()
			outcomes[id] = out
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return outcomes
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
