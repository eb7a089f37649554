// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the council command line.
//
// # Commands
//
//   - ask: send one prompt to every council member and print each answer
//   - chat: multi-turn conversation with a single member
//   - models: list configured CLIs
//   - doctor: check that each CLI executable can be found
//   - config: path, show, init and validate the config file
//   - serve: run the HTTP API
//   - version: print build information
//
// Human output goes to stdout, logs and progress to stderr. Commands that
// accept --json print a JSONResponse envelope instead of styled text.
package cli
