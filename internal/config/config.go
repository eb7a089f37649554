// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/llm-council/internal/invoker"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete council configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	// CLIs are every known tool, enabled or not.
	CLIs []CLIConfig `toml:"clis" json:"clis" yaml:"clis"`

	// ChairmanID names the CLI that synthesizes the final answer.
	ChairmanID string `toml:"chairman_id" json:"chairman_id" yaml:"chairman_id"`

	// CouncilIDs is the council membership in display order.
	CouncilIDs []string `toml:"council_ids" json:"council_ids" yaml:"council_ids"`

	// TimeoutSecs is the per-invocation timeout (0 = invoker default of 120s).
	TimeoutSecs int `toml:"timeout_secs,omitempty" json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty"`
}

// CLIConfig describes one command-line tool.
type CLIConfig struct {
	ID      string   `toml:"id" json:"id" yaml:"id"`
	Name    string   `toml:"name" json:"name" yaml:"name"`
	Command string   `toml:"command" json:"command" yaml:"command"`
	Args    []string `toml:"args" json:"args" yaml:"args"`

	// Enabled defaults to true when absent from the file.
	Enabled *bool `toml:"enabled" json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Filter overrides the transcript filter ("none" disables it).
	Filter string `toml:"filter,omitempty" json:"filter,omitempty" yaml:"filter,omitempty"`

	// TimeoutSecs overrides Config.TimeoutSecs for this tool.
	TimeoutSecs int `toml:"timeout_secs,omitempty" json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty"`
}

// IsEnabled reports whether the CLI may be invoked.
func (c CLIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SetEnabled sets the enabled flag explicitly.
func (c *CLIConfig) SetEnabled(v bool) {
	c.Enabled = &v
}

// DisplayName returns Name, or the ID when no name is set.
func (c CLIConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Spec converts the CLI into an invoker spec. defaultTimeout applies when
// the CLI sets no timeout of its own.
func (c CLIConfig) Spec(defaultTimeout time.Duration) invoker.ModelSpec {
	timeout := defaultTimeout
	if c.TimeoutSecs > 0 {
		timeout = time.Duration(c.TimeoutSecs) * time.Second
	}
	return invoker.ModelSpec{
		ID:      c.ID,
		Command: c.Command,
		Args:    append([]string(nil), c.Args...),
		Filter:  c.Filter,
		Timeout: timeout,
	}
}

// =============================================================================
// DEFAULTS
// =============================================================================

// CurrentVersion is written into newly created config files.
const CurrentVersion = "1"

// Default returns the built-in configuration: four CLIs, all on the council,
// gemini in the chair.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		CLIs: []CLIConfig{
			newCLI("gemini", "Gemini", "gemini"),
			newCLI("claude", "Claude", "claude", "-p"),
			newCLI("codex", "Codex", "codex", "exec"),
			newCLI("amp", "Amp", "amp", "-x"),
		},
		ChairmanID: "gemini",
		CouncilIDs: []string{"gemini", "claude", "codex", "amp"},
	}
}

func newCLI(id, name, command string, args ...string) CLIConfig {
	cli := CLIConfig{ID: id, Name: name, Command: command, Args: args}
	if cli.Args == nil {
		cli.Args = []string{}
	}
	cli.SetEnabled(true)
	return cli
}

// GenerateCLIID returns a short random id for a new CLI entry.
func GenerateCLIID() string {
	return uuid.NewString()[:8]
}

// =============================================================================
// PATHS
// =============================================================================

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "COUNCIL_CONFIG"

// ConfigDir returns the council configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".council"), nil
}

// DefaultPath returns ~/.council/config.toml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ResolvePath picks the config path: explicit, then COUNCIL_CONFIG, then
// the default location.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	return DefaultPath()
}

// =============================================================================
// QUERIES
// =============================================================================

// ActiveCLIs returns the enabled council members in council order. Ids that
// name no CLI are skipped.
func (c *Config) ActiveCLIs() []CLIConfig {
	byID := make(map[string]CLIConfig, len(c.CLIs))
	for _, cli := range c.CLIs {
		byID[cli.ID] = cli
	}

	active := make([]CLIConfig, 0, len(c.CouncilIDs))
	for _, id := range c.CouncilIDs {
		if cli, ok := byID[id]; ok && cli.IsEnabled() {
			active = append(active, cli)
		}
	}
	return active
}

// ActiveIDs returns the ids of ActiveCLIs.
func (c *Config) ActiveIDs() []string {
	active := c.ActiveCLIs()
	ids := make([]string, len(active))
	for i, cli := range active {
		ids[i] = cli.ID
	}
	return ids
}

// Chairman returns the chairman CLI; ok is false when it is missing or
// disabled.
func (c *Config) Chairman() (CLIConfig, bool) {
	for _, cli := range c.CLIs {
		if cli.ID == c.ChairmanID && cli.IsEnabled() {
			return cli, true
		}
	}
	return CLIConfig{}, false
}

// CLIByID looks up a CLI regardless of its enabled state.
func (c *Config) CLIByID(id string) (CLIConfig, bool) {
	for _, cli := range c.CLIs {
		if cli.ID == id {
			return cli, true
		}
	}
	return CLIConfig{}, false
}

// IsCouncilMember reports whether id is listed in CouncilIDs.
func (c *Config) IsCouncilMember(id string) bool {
	for _, m := range c.CouncilIDs {
		if m == id {
			return true
		}
	}
	return false
}

// Timeout returns the configured default timeout, or 0 if unset.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Specs converts every CLI (enabled or not) into invoker specs keyed by id.
func (c *Config) Specs() map[string]invoker.ModelSpec {
	specs := make(map[string]invoker.ModelSpec, len(c.CLIs))
	for _, cli := range c.CLIs {
		specs[cli.ID] = cli.Spec(c.Timeout())
	}
	return specs
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.CouncilIDs = append([]string(nil), c.CouncilIDs...)
	clone.CLIs = make([]CLIConfig, len(c.CLIs))
	for i, cli := range c.CLIs {
		cli.Args = append([]string(nil), cli.Args...)
		if cli.Enabled != nil {
			cli.SetEnabled(*cli.Enabled)
		}
		clone.CLIs[i] = cli
	}
	return &clone
}

// String returns the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
