// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/llm-council/internal/util"
)

// Format is a config file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from the file extension. Unknown
// extensions are treated as TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config at path, creating it from Default() when it does not
// exist. If the file cannot be read or decoded, Load returns the defaults
// together with the error so callers can warn and carry on. Environment
// overrides are applied in every case.
func Load(path string) (*Config, error) {
	cfg, err := readFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default()
		if saveErr := Save(cfg, path); saveErr != nil {
			err = fmt.Errorf("failed to create default config: %w", saveErr)
		} else {
			err = nil
		}
	case err != nil:
		cfg = Default()
	}

	cfg.ApplyEnvOverrides()
	return cfg, err
}

// LoadFromPath reads and validates the config at path. Unlike Load it never
// falls back to defaults and never creates the file.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(data, FormatForPath(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses config data in the given format and fills missing fields.
func Decode(data []byte, format Format) (*Config, error) {
	cfg := &Config{}

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s config: %w", format, err)
	}

	fillDefaults(cfg)
	return cfg, nil
}

// fillDefaults fills values the file left out.
func fillDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	for i := range cfg.CLIs {
		if cfg.CLIs[i].Args == nil {
			cfg.CLIs[i].Args = []string{}
		}
	}
	if cfg.CouncilIDs == nil {
		cfg.CouncilIDs = []string{}
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path in the format implied by its extension.
// Files are created with 0600 permissions and written atomically.
func Save(cfg *Config, path string) error {
	data, err := Encode(cfg, FormatForPath(path))
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode serializes cfg. TOML output carries a short header comment.
func Encode(cfg *Config, format Format) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		fmt.Fprintln(&buf, "# llm-council configuration file")
		fmt.Fprintln(&buf, "# Each [[clis]] entry is a command-line tool; the prompt is appended")
		fmt.Fprintln(&buf, "# as the final argument.")
		fmt.Fprintln(&buf, "")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
	}

	return buf.Bytes(), nil
}
