// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoker

// Observer is notified around every invocation. Methods may be called
// concurrently from the goroutines of a fan-out and must not block.
type Observer interface {
	InvocationStarted(model string)
	InvocationFinished(o Outcome)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Started  func(model string)
	Finished func(o Outcome)
}

// InvocationStarted implements Observer.
func (f ObserverFuncs) InvocationStarted(model string) {
	if f.Started != nil {
		f.Started(model)
	}
}

// InvocationFinished implements Observer.
func (f ObserverFuncs) InvocationFinished(o Outcome) {
	if f.Finished != nil {
		f.Finished(o)
	}
}
