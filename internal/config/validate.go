// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/jeranaias/llm-council/internal/invoker"
	"github.com/jeranaias/llm-council/internal/transcript"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the config and returns ValidateErrors listing every
// problem found, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(c.CLIs) == 0 {
		add("clis", "at least one CLI is required")
		return errs
	}

	ids := make(map[string]CLIConfig, len(c.CLIs))
	enabled := 0
	knownFilters := validFilters()

	for i, cli := range c.CLIs {
		field := fmt.Sprintf("clis[%d]", i)
		if strings.TrimSpace(cli.ID) == "" {
			add(field+".id", "id is required")
		} else if _, dup := ids[cli.ID]; dup {
			add(field+".id", "duplicate id '%s'", cli.ID)
		} else {
			ids[cli.ID] = cli
		}
		if strings.TrimSpace(cli.Name) == "" {
			add(field+".name", "CLI '%s' is missing a name", cli.ID)
		}
		if strings.TrimSpace(cli.Command) == "" {
			add(field+".command", "CLI '%s' is missing a command", cli.DisplayName())
		}
		if cli.TimeoutSecs < 0 {
			add(field+".timeout_secs", "must be non-negative, got %d", cli.TimeoutSecs)
		}
		if cli.Filter != "" && !knownFilters[cli.Filter] {
			add(field+".filter", "unknown filter '%s'", cli.Filter)
		}
		if cli.IsEnabled() {
			enabled++
		}
	}

	if enabled == 0 {
		add("clis", "at least one CLI must be enabled")
	}

	chairman, ok := ids[c.ChairmanID]
	switch {
	case !ok:
		add("chairman_id", "chairman '%s' not found in CLIs", c.ChairmanID)
	case !chairman.IsEnabled():
		add("chairman_id", "chairman must be enabled")
	}

	for i, id := range c.CouncilIDs {
		if _, ok := ids[id]; !ok {
			add(fmt.Sprintf("council_ids[%d]", i), "council member '%s' not found in CLIs", id)
		}
	}

	if c.TimeoutSecs < 0 {
		add("timeout_secs", "must be non-negative, got %d", c.TimeoutSecs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validFilters() map[string]bool {
	known := map[string]bool{invoker.NoFilter: true}
	for _, name := range transcript.DefaultRegistry().Names() {
		known[name] = true
	}
	return known
}
