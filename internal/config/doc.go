// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and manages the council's CLI definitions.
//
// A config file lists the command-line tools that can answer prompts, which
// of them sit on the council, and which one chairs it. TOML, JSON and YAML
// are supported; the format is chosen by file extension.
//
// # Key Types
//
//   - Config: the whole file (CLI list, chairman, council order, timeout)
//   - CLIConfig: one tool (id, display name, command, fixed args)
//   - FileSource: re-reads the file on every invoker call
//
// # File Location
//
// The config path is resolved in order:
//   - COUNCIL_CONFIG environment variable
//   - ~/.council/config.toml
//
// A missing file is created from Default() on first load.
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    // cfg holds the defaults; err explains why the file was ignored
//	}
//	for _, cli := range cfg.ActiveCLIs() {
//	    fmt.Println(cli.ID, cli.Command)
//	}
package config
