// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/jeranaias/llm-council/internal/config"
	"github.com/jeranaias/llm-council/internal/invoker"
)

// Version information, overridden at build time with -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Log formats accepted by --log-format.
const (
	LogFormatAuto     = "auto"
	LogFormatTerminal = "terminal"
	LogFormatText     = "text"
	LogFormatJSON     = "json"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
	logFormat  string
	envFile    string
}

// NewRootCmd builds the council command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "council",
		Short: "Ask several AI coding CLIs the same question",
		Long: `council sends one prompt to a group of locally installed AI coding
CLIs (gemini, claude, codex, amp, ...) in parallel and collects every answer.
Members that fail, hang or are missing never stop the others.`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := g.loadEnv(); err != nil {
				return err
			}
			ctx, err := g.logContext(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(ctx)
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "config file (default $"+config.EnvConfigPath+" or ~/.council/config.toml)")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")
	pf.StringVar(&g.logFormat, "log-format", LogFormatAuto, "log format: auto, terminal, text or json")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded at startup if present")

	root.AddCommand(
		newAskCmd(g),
		newChatCmd(g),
		newModelsCmd(g),
		newDoctorCmd(g),
		newConfigCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

// loadEnv loads the dotenv file without overriding variables already set.
func (g *globalOptions) loadEnv() error {
	if g.envFile == "" {
		return nil
	}
	err := godotenv.Load(g.envFile)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", g.envFile, err)
}

// logContext attaches a clue logger writing to w.
func (g *globalOptions) logContext(ctx context.Context, w io.Writer) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	format := log.FormatText
	switch g.logFormat {
	case "", LogFormatAuto:
		if isTerminalWriter(w) {
			format = log.FormatTerminal
		}
	case LogFormatTerminal:
		format = log.FormatTerminal
	case LogFormatText:
	case LogFormatJSON:
		format = log.FormatJSON
	default:
		return nil, fmt.Errorf("unknown log format %q", g.logFormat)
	}

	if g.debug {
		return log.Context(ctx, log.WithFormat(format), log.WithOutput(w), log.WithDebug()), nil
	}
	return log.Context(ctx, log.WithFormat(format), log.WithOutput(w)), nil
}

// resolveConfigPath returns the config path the command should use.
func (g *globalOptions) resolveConfigPath() (string, error) {
	path, err := config.ResolvePath(g.configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	return path, nil
}

// source returns a FileSource for the resolved config path.
func (g *globalOptions) source() (*config.FileSource, error) {
	path, err := g.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	return config.NewFileSource(path), nil
}

// withTimeout overrides every spec's timeout when timeout is positive.
func withTimeout(src invoker.SpecSource, timeout time.Duration) invoker.SpecSource {
	if timeout <= 0 {
		return src
	}
	return invoker.SpecSourceFunc(func(ctx context.Context) (map[string]invoker.ModelSpec, error) {
		specs, err := src.Specs(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]invoker.ModelSpec, len(specs))
		for id, spec := range specs {
			spec.Timeout = timeout
			out[id] = spec
		}
		return out, nil
	})
}
