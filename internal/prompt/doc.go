// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt flattens multi-turn conversations into a single text prompt
// for command-line tools that only accept one positional argument.
//
// # Rules
//
//   - A conversation made of exactly one user message is returned verbatim.
//   - Otherwise every system, user and assistant message becomes
//     "<Role>: <content>" and the lines are joined by a blank line.
//   - Messages with any other role are dropped silently.
package prompt
