// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llm-council/internal/config"
	"github.com/jeranaias/llm-council/internal/util"
)

// maxCommandColumn bounds the command column in the models table.
const maxCommandColumn = 40

func newModelsCmd(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"members", "ls"},
		Short:   "List the configured CLIs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := g.source()
			if err != nil {
				return err
			}
			cfg := src.Config(cmd.Context())
			if asJSON {
				return NewJSONResponse("models", modelRows(cfg)).Write(cmd.OutOrStdout())
			}
			printModels(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON envelope")
	return cmd
}

// ModelRow describes one configured CLI.
type ModelRow struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Enabled  bool     `json:"enabled"`
	Council  bool     `json:"council"`
	Chairman bool     `json:"chairman"`
	Filter   string   `json:"filter,omitempty"`
}

func modelRows(cfg *config.Config) []ModelRow {
	chairID := ""
	if chair, ok := cfg.Chairman(); ok {
		chairID = chair.ID
	}
	rows := make([]ModelRow, 0, len(cfg.CLIs))
	for _, c := range cfg.CLIs {
		args := c.Args
		if args == nil {
			args = []string{}
		}
		rows = append(rows, ModelRow{
			ID:       c.ID,
			Name:     c.DisplayName(),
			Command:  c.Command,
			Args:     args,
			Enabled:  c.IsEnabled(),
			Council:  cfg.IsCouncilMember(c.ID),
			Chairman: c.ID == chairID,
			Filter:   c.Filter,
		})
	}
	return rows
}

func printModels(w io.Writer, cfg *config.Config) {
	rows := modelRows(cfg)
	if len(rows) == 0 {
		fmt.Fprintln(w, WarningStyle.Render("no CLIs configured"))
		return
	}

	header := []string{"ID", "NAME", "COMMAND", "ENABLED", "ROLE"}
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		command := util.TruncateWidth(strings.TrimSpace(r.Command+" "+strings.Join(r.Args, " ")), maxCommandColumn)
		table = append(table, []string{r.ID, r.Name, command, yesNo(r.Enabled), role(r)})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = util.StringWidth(h)
	}
	for _, row := range table {
		for i, cell := range row {
			widths[i] = max(widths[i], util.StringWidth(cell))
		}
	}

	fmt.Fprintln(w, SectionStyle.Render(formatRow(header, widths)))
	for i, row := range table {
		line := formatRow(row, widths)
		switch {
		case rows[i].Chairman:
			line = ChairmanStyle.Render(line)
		case !rows[i].Enabled:
			line = DimStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func formatRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			padded[i] = cell
			continue
		}
		padded[i] = util.PadRight(cell, widths[i])
	}
	return strings.Join(padded, "  ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func role(r ModelRow) string {
	switch {
	case r.Chairman:
		return "chairman"
	case r.Council:
		return "council"
	default:
		return "-"
	}
}
