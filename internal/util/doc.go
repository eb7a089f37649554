// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by council packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile, AtomicWriteFileWithDir: crash-safe writes with fsync
//
// String Utilities:
//   - TruncateRunes: rune-safe truncation with ellipsis, used for log fields
//   - TruncateWidth, StringWidth, PadRight: terminal column math via go-runewidth
//
// # Usage
//
//	// Config files are private to the user
//	err := util.AtomicWriteFileWithDir(path, data, 0600, 0700)
//
//	// Align a table cell
//	cell := util.PadRight(name, width)
package util
