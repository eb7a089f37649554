// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript strips tool-specific noise from captured CLI output.
//
// Some command-line tools print a full session transcript instead of just the
// answer: a version header, the echoed prompt, a reasoning section and a usage
// footer. A Filter extracts the answer from such a transcript. Filters are
// looked up by name through a Registry so new tools can be supported without
// touching the invoker.
//
// # Codex transcript shape
//
//	OpenAI Codex v0.77.0 (research preview)
//	--------
//	user
//	What is 2+2?
//	thinking
//	**Calculating the sum**
//	codex
//	Four
//	tokens used
//	1,288
//
// Codex returns "Four" for the transcript above.
package transcript
