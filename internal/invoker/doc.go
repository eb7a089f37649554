// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package invoker runs command-line LLM tools and normalizes their output.
//
// Each invocation resolves a model id against a SpecSource (read fresh on
// every call), compiles the conversation into a prompt, runs
// "<command> <args...> <prompt>" without a shell, enforces a timeout,
// decodes stdout and applies the model's transcript filter.
//
// # Failure model
//
// Invoke and InvokeMany never return errors and never panic. Every failure
// (unknown model, missing executable, timeout, non-zero exit, cancellation or
// anything unexpected) is logged through goa.design/clue/log on the caller's
// context and collapses to a nil *Result. Callers that need to know why a
// model failed use InvokeDetailed / InvokeManyDetailed, whose Outcome carries
// a typed *Error with a Kind.
//
// # Usage
//
//	inv := invoker.New(config.NewFileSource(path))
//	results := inv.InvokeMany(ctx, []string{"claude", "codex"}, conv)
//	for id, res := range results {
//	    if res == nil {
//	        continue // this model could not contribute
//	    }
//	    fmt.Println(id, res.Content)
//	}
package invoker
