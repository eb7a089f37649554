// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llm-council/internal/config"
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus is the result of a single check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// Symbol returns the ASCII marker for the status.
func (s CheckStatus) Symbol() string {
	switch s {
	case StatusPass:
		return "[OK]"
	case StatusWarn:
		return "[!!]"
	default:
		return "[FAIL]"
	}
}

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	default:
		return "fail"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HealthCheck is one doctor finding.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// Render formats the check for the terminal.
func (c HealthCheck) Render() string {
	var symbol string
	switch c.Status {
	case StatusPass:
		symbol = SuccessStyle.Render(c.Status.Symbol())
	case StatusWarn:
		symbol = WarningStyle.Render(c.Status.Symbol())
	default:
		symbol = ErrorStyle.Render(c.Status.Symbol())
	}
	line := fmt.Sprintf("%s %s: %s", symbol, c.Name, c.Message)
	if c.Fix != "" && c.Status != StatusPass {
		line += "\n       " + DimStyle.Render("fix: "+c.Fix)
	}
	return line
}

var errChecksFailed = errors.New("doctor found problems")

// =============================================================================
// COMMAND
// =============================================================================

func newDoctorCmd(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the config and that every CLI can be found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := g.resolveConfigPath()
			if err != nil {
				return err
			}
			checks := runChecks(path, exec.LookPath)

			failed := false
			for _, c := range checks {
				if c.Status == StatusFail {
					failed = true
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				resp := NewJSONResponse("doctor", checks)
				if failed {
					resp = NewJSONErrorResponse("doctor", errChecksFailed, checks)
				}
				if err := resp.Write(out); err != nil {
					return err
				}
			} else {
				printChecks(out, checks)
			}
			if failed {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON envelope")
	return cmd
}

// lookPathFunc resolves an executable name, like exec.LookPath.
type lookPathFunc func(file string) (string, error)

// runChecks inspects the config at path. It never creates the file.
func runChecks(path string, lookPath lookPathFunc) []HealthCheck {
	var checks []HealthCheck

	if _, err := os.Stat(path); err != nil {
		checks = append(checks, HealthCheck{
			Name:    "config",
			Status:  StatusWarn,
			Message: "no config at " + path + ", defaults apply",
			Fix:     "council config init",
		})
		return append(checks, cliChecks(config.Default(), lookPath)...)
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		checks = append(checks, HealthCheck{
			Name:    "config",
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "edit " + path + " or run council config validate",
		})
		return checks
	}
	checks = append(checks, HealthCheck{
		Name:    "config",
		Status:  StatusPass,
		Message: path,
	})
	return append(checks, cliChecks(cfg, lookPath)...)
}

// cliChecks tests that every CLI command resolves on PATH. Missing
// disabled CLIs only warn.
func cliChecks(cfg *config.Config, lookPath lookPathFunc) []HealthCheck {
	checks := make([]HealthCheck, 0, len(cfg.CLIs))
	for _, c := range cfg.CLIs {
		name := "cli " + c.ID
		resolved, err := lookPath(c.Command)
		switch {
		case err == nil:
			checks = append(checks, HealthCheck{Name: name, Status: StatusPass, Message: resolved})
		case !c.IsEnabled():
			checks = append(checks, HealthCheck{
				Name:    name,
				Status:  StatusWarn,
				Message: fmt.Sprintf("%q not found (disabled)", c.Command),
			})
		default:
			checks = append(checks, HealthCheck{
				Name:    name,
				Status:  StatusFail,
				Message: fmt.Sprintf("%q not found on PATH", c.Command),
				Fix:     "install " + c.DisplayName() + " or disable it in the config",
			})
		}
	}
	return checks
}

func printChecks(w io.Writer, checks []HealthCheck) {
	fmt.Fprintln(w, TitleStyle.Render("council doctor"))
	pass, warn, fail := 0, 0, 0
	for _, c := range checks {
		fmt.Fprintln(w, c.Render())
		switch c.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		default:
			fail++
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d warnings, %d failed\n", pass, warn, fail)
}
