// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"

	"goa.design/clue/log"

	"github.com/jeranaias/llm-council/internal/invoker"
)

// FileSource serves invoker specs straight from a config file. Every call
// re-reads the file, so edits apply to the next invocation without a
// restart.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Config loads the current config. A broken file is logged and replaced by
// the defaults.
func (s *FileSource) Config(ctx context.Context) *Config {
	cfg, err := Load(s.Path)
	if err != nil {
		log.Warn(ctx,
			log.KV{K: "msg", V: "config unusable, using defaults"},
			log.KV{K: "path", V: s.Path},
			log.KV{K: "err", V: err.Error()},
		)
	}
	return cfg
}

// Specs implements invoker.SpecSource.
func (s *FileSource) Specs(ctx context.Context) (map[string]invoker.ModelSpec, error) {
	return s.Config(ctx).Specs(), nil
}
