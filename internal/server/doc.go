// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the council over HTTP.
//
// Endpoints:
//   - POST /v1/council - fan a conversation out to the council
//   - GET  /v1/models  - list configured CLIs
//   - GET  /health     - liveness and configured member count
//   - GET  /metrics    - Prometheus metrics
//
// # Request
//
//	{"messages": [{"role": "user", "content": "Hi"}], "models": ["claude", "codex"]}
//
// "prompt" and "system" may be sent instead of "messages". When "models" is
// omitted the active council from the config file is used.
//
// # Response
//
// "responses" holds exactly one key per distinct requested model; the value
// is null when that model failed, and "errors" says why.
//
// # Middleware
//
// Requests pass through recovery, request logging, security headers,
// optional per-IP rate limiting and optional bearer-token auth.
package server
