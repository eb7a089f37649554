// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/jeranaias/llm-council/internal/config"
	"github.com/jeranaias/llm-council/internal/invoker"
	"github.com/jeranaias/llm-council/internal/model"
)

// errAllFailed is returned when no council member produced an answer.
var errAllFailed = errors.New("every council member failed")

type askOptions struct {
	models  []string
	system  string
	timeout time.Duration
	json    bool
	raw     bool
}

func newAskCmd(g *globalOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt to the council and print every answer",
		Long: `Send a prompt to every active council member in parallel.

The prompt is taken from the arguments, or from stdin when no arguments are
given. Members that fail are reported but do not stop the others; the
command exits non-zero only when every member failed.`,
		Example: `  council ask "Explain the CAP theorem"
  council ask --models claude,codex "Review this diff" < change.patch
  git diff | council ask --system "You are a strict reviewer"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, g, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.models, "models", "m", nil, "member ids to ask (default: active council)")
	f.StringVarP(&opts.system, "system", "s", "", "system instruction prepended to the prompt")
	f.DurationVarP(&opts.timeout, "timeout", "t", 0, "per-member timeout, overrides the config")
	f.BoolVar(&opts.json, "json", false, "print a JSON envelope")
	f.BoolVar(&opts.raw, "raw", false, "print answers without markdown rendering")
	return cmd
}

// AskResult is the data of the ask JSON envelope.
type AskResult struct {
	Models     []string                  `json:"models"`
	Responses  map[string]*string        `json:"responses"`
	Errors     map[string]*invoker.Error `json:"errors,omitempty"`
	Succeeded  int                       `json:"succeeded"`
	DurationMS int64                     `json:"duration_ms"`
}

func runAsk(cmd *cobra.Command, g *globalOptions, opts *askOptions, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	text, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	src, err := g.source()
	if err != nil {
		return err
	}
	cfg := src.Config(ctx)

	ids := opts.models
	if len(ids) == 0 {
		ids = cfg.ActiveIDs()
	}
	if len(ids) == 0 {
		return errors.New("no council members: enable a CLI or pass --models")
	}

	conv := model.FromPrompt(opts.system, text)
	specs := withTimeout(src, opts.timeout)
	ctx = log.With(ctx, log.KV{K: "members", V: strings.Join(ids, ",")})

	start := time.Now()
	run := func(obs invoker.Observer) map[string]invoker.Outcome {
		inv := invoker.New(specs, invoker.WithObserver(obs))
		return inv.InvokeManyDetailed(ctx, ids, conv)
	}

	var outcomes map[string]invoker.Outcome
	if !opts.json && isTerminalWriter(cmd.ErrOrStderr()) {
		outcomes = runWithProgress(cmd.ErrOrStderr(), ids, run)
	} else {
		outcomes = run(nil)
	}

	result := buildAskResult(ids, outcomes, time.Since(start))
	log.Debug(ctx,
		log.KV{K: "msg", V: "council complete"},
		log.KV{K: "succeeded", V: result.Succeeded},
		log.KV{K: "duration_ms", V: result.DurationMS},
	)

	out := cmd.OutOrStdout()
	if opts.json {
		if result.Succeeded == 0 {
			if err := NewJSONErrorResponse("ask", errAllFailed, result).Write(out); err != nil {
				return err
			}
			return errAllFailed
		}
		return NewJSONResponse("ask", result).Write(out)
	}

	printAnswers(out, cfg, result, outcomes, !opts.raw && isTerminalWriter(out))
	if result.Succeeded == 0 {
		return errAllFailed
	}
	return nil
}

// readPrompt joins args, or reads stdin when there are none.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if isTerminalReader(stdin) {
		return "", errors.New("no prompt: pass it as an argument or pipe it on stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no prompt: stdin was empty")
	}
	return text, nil
}

func buildAskResult(ids []string, outcomes map[string]invoker.Outcome, elapsed time.Duration) AskResult {
	res := AskResult{
		Models:     orderedMembers(ids, outcomes),
		Responses:  make(map[string]*string, len(outcomes)),
		DurationMS: elapsed.Milliseconds(),
	}
	for id, o := range outcomes {
		if o.OK() {
			content := o.Result.Content
			res.Responses[id] = &content
			res.Succeeded++
			continue
		}
		res.Responses[id] = nil
		if res.Errors == nil {
			res.Errors = make(map[string]*invoker.Error)
		}
		res.Errors[id] = o.Err
	}
	return res
}

// orderedMembers returns the distinct requested ids that have an outcome,
// in request order.
func orderedMembers(ids []string, outcomes map[string]invoker.Outcome) []string {
	seen := make(map[string]bool, len(ids))
	ordered := make([]string, 0, len(outcomes))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := outcomes[id]; ok {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// =============================================================================
// RENDERING
// =============================================================================

func printAnswers(w io.Writer, cfg *config.Config, res AskResult, outcomes map[string]invoker.Outcome, render bool) {
	var renderer *glamour.TermRenderer
	if render {
		renderer = newMarkdownRenderer(GetTerminalWidth(w))
	}

	for i, id := range res.Models {
		o := outcomes[id]
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, memberHeader(cfg, o))

		if !o.OK() {
			fmt.Fprintln(w, ErrorStyle.Render("failed: ")+o.Err.Error())
			if o.Err.Stderr != "" {
				fmt.Fprintln(w, DimStyle.Render(o.Err.Stderr))
			}
			continue
		}
		fmt.Fprintln(w, renderMarkdown(renderer, o.Result.Content))
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("%d/%d members answered in %s", res.Succeeded, len(res.Models),
		formatDuration(time.Duration(res.DurationMS)*time.Millisecond))
	if res.Succeeded == len(res.Models) {
		fmt.Fprintln(w, SuccessStyle.Render(summary))
	} else {
		fmt.Fprintln(w, WarningStyle.Render(summary))
	}
}

func memberHeader(cfg *config.Config, o invoker.Outcome) string {
	name := o.Model
	if c, ok := cfg.CLIByID(o.Model); ok {
		name = c.DisplayName()
	}
	if chair, ok := cfg.Chairman(); ok && chair.ID == o.Model {
		name += " " + ChairmanStyle.Render("(chairman)")
	}

	meta := formatDuration(o.Duration)
	if o.OK() {
		meta += ", " + humanize.Bytes(uint64(len(o.Result.Content)))
	}
	return TitleStyle.Render("== "+name) + " " + DimStyle.Render("["+meta+"]")
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders content, falling back to the raw text.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil || content == "" {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}
