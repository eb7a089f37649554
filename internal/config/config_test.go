// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llm-council/internal/invoker"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"COUNCIL_CHAIRMAN", "COUNCIL_MEMBERS", "COUNCIL_TIMEOUT", EnvConfigPath} {
		t.Setenv(key, "")
	}
}

// =============================================================================
// DEFAULTS AND QUERIES
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Len(t, cfg.CLIs, 4)
	assert.Equal(t, "gemini", cfg.ChairmanID)
	assert.Equal(t, []string{"gemini", "claude", "codex", "amp"}, cfg.CouncilIDs)
	assert.NoError(t, cfg.Validate())

	args := map[string][]string{}
	for _, cli := range cfg.CLIs {
		assert.True(t, cli.IsEnabled(), cli.ID)
		args[cli.ID] = cli.Args
	}
	assert.Equal(t, map[string][]string{
		"gemini": {},
		"claude": {"-p"},
		"codex":  {"exec"},
		"amp":    {"-x"},
	}, args)
}

func TestActiveCLIs_CouncilOrderEnabledOnly(t *testing.T) {
	cfg := Default()
	cfg.CouncilIDs = []string{"amp", "ghost", "claude", "gemini"}
	cfg.CLIs[0].SetEnabled(false) // gemini

	ids := cfg.ActiveIDs()

	assert.Equal(t, []string{"amp", "claude"}, ids)
}

func TestChairman(t *testing.T) {
	cfg := Default()

	chair, ok := cfg.Chairman()
	require.True(t, ok)
	assert.Equal(t, "Gemini", chair.Name)

	cfg.CLIs[0].SetEnabled(false)
	_, ok = cfg.Chairman()
	assert.False(t, ok, "disabled chairman is not returned")

	cfg.ChairmanID = "nobody"
	_, ok = cfg.Chairman()
	assert.False(t, ok)
}

func TestCLIByID(t *testing.T) {
	cfg := Default()
	cfg.CLIs[1].SetEnabled(false)

	cli, ok := cfg.CLIByID("claude")
	require.True(t, ok, "disabled CLIs are still found")
	assert.Equal(t, "claude", cli.Command)

	_, ok = cfg.CLIByID("nope")
	assert.False(t, ok)
}

func TestIsEnabled_DefaultsToTrue(t *testing.T) {
	assert.True(t, CLIConfig{}.IsEnabled())
	var cli CLIConfig
	cli.SetEnabled(false)
	assert.False(t, cli.IsEnabled())
}

func TestGenerateCLIID(t *testing.T) {
	a, b := GenerateCLIID(), GenerateCLIID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}

func TestSpecs(t *testing.T) {
	cfg := Default()
	cfg.TimeoutSecs = 60
	cfg.CLIs[2].TimeoutSecs = 300
	cfg.CLIs[3].SetEnabled(false)

	specs := cfg.Specs()

	require.Len(t, specs, 4, "disabled CLIs stay addressable")
	assert.Equal(t, invoker.ModelSpec{
		ID: "claude", Command: "claude", Args: []string{"-p"}, Timeout: time.Minute,
	}, specs["claude"])
	assert.Equal(t, 5*time.Minute, specs["codex"].Timeout)
}

func TestSpecs_NoTimeoutLeavesZero(t *testing.T) {
	specs := Default().Specs()
	assert.Zero(t, specs["gemini"].Timeout)
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.CLIs[1].Args[0] = "--changed"
	clone.CLIs[0].SetEnabled(false)
	*clone.CLIs[2].Enabled = false
	clone.CouncilIDs[0] = "x"

	assert.Equal(t, "-p", cfg.CLIs[1].Args[0])
	assert.True(t, cfg.CLIs[0].IsEnabled())
	assert.True(t, cfg.CLIs[2].IsEnabled())
	assert.Equal(t, "gemini", cfg.CouncilIDs[0])
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, "", false},
		{"no clis", func(c *Config) { c.CLIs = nil }, "clis", true},
		{"all disabled", func(c *Config) {
			for i := range c.CLIs {
				c.CLIs[i].SetEnabled(false)
			}
		}, "clis", true},
		{"chairman missing", func(c *Config) { c.ChairmanID = "ghost" }, "chairman_id", true},
		{"chairman disabled", func(c *Config) { c.CLIs[0].SetEnabled(false) }, "chairman_id", true},
		{"missing name", func(c *Config) { c.CLIs[1].Name = "" }, "clis[1].name", true},
		{"missing command", func(c *Config) { c.CLIs[2].Command = " " }, "clis[2].command", true},
		{"missing id", func(c *Config) { c.CLIs[3].ID = "" }, "clis[3].id", true},
		{"duplicate id", func(c *Config) { c.CLIs[3].ID = "claude" }, "clis[3].id", true},
		{"unknown council member", func(c *Config) { c.CouncilIDs = append(c.CouncilIDs, "ghost") }, "council_ids[4]", true},
		{"negative timeout", func(c *Config) { c.TimeoutSecs = -1 }, "timeout_secs", true},
		{"negative cli timeout", func(c *Config) { c.CLIs[0].TimeoutSecs = -5 }, "clis[0].timeout_secs", true},
		{"unknown filter", func(c *Config) { c.CLIs[0].Filter = "mystery" }, "clis[0].filter", true},
		{"known filters", func(c *Config) {
			c.CLIs[0].Filter = "codex"
			c.CLIs[1].Filter = invoker.NoFilter
		}, "", false},
		{"empty council is allowed", func(c *Config) { c.CouncilIDs = nil }, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			fields := make([]string, len(verrs))
			for i, v := range verrs {
				fields[i] = v.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateErrors_Message(t *testing.T) {
	errs := ValidateErrors{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}
	assert.Equal(t, "a: bad; b: worse", errs.Error())
	assert.Equal(t, "no validation errors", ValidateErrors{}.Error())
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("COUNCIL_CHAIRMAN", "claude")
	t.Setenv("COUNCIL_MEMBERS", " claude, ,codex ")
	t.Setenv("COUNCIL_TIMEOUT", "90s")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "claude", cfg.ChairmanID)
	assert.Equal(t, []string{"claude", "codex"}, cfg.CouncilIDs)
	assert.Equal(t, 90, cfg.TimeoutSecs)
}

func TestApplyEnvOverrides_Timeout(t *testing.T) {
	cases := map[string]int{"45": 45, "2m": 120, "1.5s": 2, "junk": 0, "-3": 0}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("COUNCIL_TIMEOUT", in)
			cfg := Default()
			cfg.ApplyEnvOverrides()
			assert.Equal(t, want, cfg.TimeoutSecs)
		})
	}
}

func TestResolvePath(t *testing.T) {
	clearEnv(t)

	p, err := ResolvePath("/explicit.toml")
	require.NoError(t, err)
	assert.Equal(t, "/explicit.toml", p)

	t.Setenv(EnvConfigPath, "/from/env.yaml")
	p, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env.yaml", p)

	t.Setenv(EnvConfigPath, "")
	p, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "config.toml", filepath.Base(p))
	assert.Equal(t, ".council", filepath.Base(filepath.Dir(p)))
}

// =============================================================================
// LOAD AND SAVE
// =============================================================================

func TestLoad_BootstrapsMissingFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	info, err := os.Stat(path)
	require.NoError(t, err, "default config should be written")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoad_CorruptFileFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	cfg, err := Load(path)

	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default(), cfg)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "{not json", string(data), "corrupt file is left alone")
}

func TestLoad_AppliesEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("COUNCIL_MEMBERS", "codex")
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"codex"}, cfg.CouncilIDs)
}

func TestSaveLoad_AllFormats(t *testing.T) {
	clearEnv(t)
	for _, name := range []string{"config.toml", "config.json", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := Default()
			cfg.TimeoutSecs = 30
			cfg.CLIs[1].SetEnabled(false)
			cfg.CLIs[2].Filter = "codex"
			cfg.ChairmanID = "codex"

			require.NoError(t, Save(cfg, path))
			loaded, err := LoadFromPath(path)

			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestDecode_MissingEnabledMeansEnabled(t *testing.T) {
	data := []byte(`
chairman_id = "local"
council_ids = ["local"]

[[clis]]
id = "local"
name = "Local"
command = "llm"
`)
	cfg, err := Decode(data, FormatTOML)

	require.NoError(t, err)
	require.Len(t, cfg.CLIs, 1)
	assert.True(t, cfg.CLIs[0].IsEnabled())
	assert.Equal(t, []string{}, cfg.CLIs[0].Args)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.NoError(t, cfg.Validate())
}

func TestDecode_JSONWithOriginalLayout(t *testing.T) {
	data := []byte(`{
  "clis": [
    {"id": "gemini", "name": "Gemini", "command": "gemini", "args": [], "enabled": true},
    {"id": "amp", "name": "Amp", "command": "amp", "args": ["-x"], "enabled": false}
  ],
  "chairman_id": "gemini",
  "council_ids": ["gemini", "amp"]
}`)
	cfg, err := Decode(data, FormatJSON)

	require.NoError(t, err)
	assert.Equal(t, []string{"gemini"}, cfg.ActiveIDs())
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.ChairmanID = "ghost"
	require.NoError(t, Save(cfg, path))

	_, err := LoadFromPath(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chairman")
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("a/b.JSON"))
	assert.Equal(t, FormatYAML, FormatForPath("b.yml"))
	assert.Equal(t, FormatYAML, FormatForPath("b.yaml"))
	assert.Equal(t, FormatTOML, FormatForPath("b.toml"))
	assert.Equal(t, FormatTOML, FormatForPath("b.conf"))
}

func TestEncode_TOMLHeader(t *testing.T) {
	data, err := Encode(Default(), FormatTOML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# llm-council configuration file")
	assert.Contains(t, string(data), "[[clis]]")
}

// =============================================================================
// FILE SOURCE
// =============================================================================

func TestFileSource_ReadsFreshEachCall(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	src := NewFileSource(path)
	ctx := context.Background()

	specs, err := src.Specs(ctx)
	require.NoError(t, err)
	assert.Contains(t, specs, "gemini")
	assert.NotContains(t, specs, "local")

	cfg := Default()
	cfg.CLIs = append(cfg.CLIs, newCLI("local", "Local", "llm", "--quiet"))
	require.NoError(t, Save(cfg, path))

	specs, err = src.Specs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"--quiet"}, specs["local"].Args)
}

func TestFileSource_CorruptFileServesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("clis = ["), 0600))

	specs, err := NewFileSource(path).Specs(context.Background())

	require.NoError(t, err)
	assert.Len(t, specs, 4)
}

func TestFileSource_ConcurrentReads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(Default(), path))
	src := NewFileSource(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			specs, err := src.Specs(context.Background())
			assert.NoError(t, err)
			assert.Len(t, specs, 4)
		}()
	}
	wg.Wait()
}
