// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/jeranaias/llm-council/internal/config"
	"github.com/jeranaias/llm-council/internal/invoker"
	"github.com/jeranaias/llm-council/internal/model"
)

const (
	chatPrompt      = "council> "
	historyFileName = "history"
)

type chatOptions struct {
	model   string
	system  string
	timeout time.Duration
}

func newChatCmd(g *globalOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a multi-turn conversation with one member",
		Long: `Start an interactive conversation with a single council member (the
chairman by default). Each turn sends the whole conversation so far.

Commands:
  /model [id]     show or switch the member
  /system [text]  show or set the system instruction
  /reset          clear the conversation
  /history        print the conversation
  /help           show this help
  /exit           leave (Ctrl+D works too)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.model, "model", "m", "", "member id (default: chairman)")
	f.StringVarP(&opts.system, "system", "s", "", "system instruction")
	f.DurationVarP(&opts.timeout, "timeout", "t", 0, "per-turn timeout, overrides the config")
	return cmd
}

func runChat(cmd *cobra.Command, g *globalOptions, opts *chatOptions) error {
	ctx := cmd.Context()

	src, err := g.source()
	if err != nil {
		return err
	}
	cfg := src.Config(ctx)

	id := opts.model
	if id == "" {
		chair, ok := cfg.Chairman()
		if !ok {
			return errors.New("no chairman configured: pass --model")
		}
		id = chair.ID
	}

	session := newChatSession(invoker.New(src), id, cmd.OutOrStdout())
	session.system = opts.system
	session.timeout = opts.timeout
	session.names = cfg

	fmt.Fprintln(session.out, TitleStyle.Render("council chat")+" "+DimStyle.Render("with "+id+", /help for commands"))

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := chatHistoryPath(g)
	loadHistory(line, historyPath)
	defer saveHistory(ctx, line, historyPath)

	for {
		input, err := line.Prompt(chatPrompt)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(session.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		turnCtx, stop := signalContext(ctx)
		quit := session.Handle(turnCtx, input)
		stop()
		if quit {
			return nil
		}
	}
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession holds one conversation with one member.
type chatSession struct {
	inv     *invoker.Invoker
	modelID string
	system  string
	timeout time.Duration
	history model.Conversation
	out     io.Writer
	names   *config.Config
}

func newChatSession(inv *invoker.Invoker, modelID string, out io.Writer) *chatSession {
	return &chatSession{inv: inv, modelID: modelID, out: out}
}

// Handle processes one line of input and reports whether to quit.
func (s *chatSession) Handle(ctx context.Context, input string) bool {
	if strings.HasPrefix(input, "/") {
		return s.command(input)
	}
	s.send(ctx, input)
	return false
}

// conversation returns the messages sent on the next turn.
func (s *chatSession) conversation(next string) model.Conversation {
	var conv model.Conversation
	if s.system != "" {
		conv = append(conv, model.NewSystemMessage(s.system))
	}
	conv = append(conv, s.history...)
	return conv.With(model.NewUserMessage(next))
}

func (s *chatSession) send(ctx context.Context, text string) {
	conv := s.conversation(text)
	out := s.inv.InvokeDetailed(ctx, s.modelID, conv, s.timeout)
	if !out.OK() {
		// The failed turn is dropped so it can be retried.
		fmt.Fprintln(s.out, ErrorStyle.Render("failed: ")+out.Err.Error())
		log.Debug(ctx, log.KV{K: "msg", V: "chat turn failed"}, log.KV{K: "model", V: s.modelID})
		return
	}

	s.history = s.history.With(
		model.NewUserMessage(text),
		model.NewAssistantMessage(out.Result.Content),
	)
	fmt.Fprintln(s.out, TitleStyle.Render(s.displayName()+":")+" "+DimStyle.Render(formatDuration(out.Duration)))
	fmt.Fprintln(s.out, out.Result.Content)
}

func (s *chatSession) command(input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit", "/q":
		return true

	case "/reset", "/clear":
		s.history = nil
		fmt.Fprintln(s.out, DimStyle.Render("conversation cleared"))

	case "/model":
		if arg == "" {
			fmt.Fprintln(s.out, "model: "+s.modelID)
			break
		}
		s.modelID = arg
		fmt.Fprintln(s.out, DimStyle.Render("now talking to "+arg))

	case "/system":
		if arg == "" {
			fmt.Fprintln(s.out, "system: "+s.system)
			break
		}
		s.system = arg
		fmt.Fprintln(s.out, DimStyle.Render("system instruction set"))

	case "/history":
		if len(s.history) == 0 {
			fmt.Fprintln(s.out, DimStyle.Render("(empty)"))
		}
		for _, msg := range s.history {
			fmt.Fprintln(s.out, LabelStyle.Render(msg.Role.DisplayName()+":")+" "+msg.Preview(200))
		}

	case "/help", "/?":
		fmt.Fprintln(s.out, chatHelp)

	default:
		fmt.Fprintln(s.out, WarningStyle.Render("unknown command "+name+", try /help"))
	}
	return false
}

func (s *chatSession) displayName() string {
	if s.names != nil {
		if c, ok := s.names.CLIByID(s.modelID); ok {
			return c.DisplayName()
		}
	}
	return s.modelID
}

const chatHelp = `/model [id]     show or switch the member
/system [text]  show or set the system instruction
/reset          clear the conversation
/history        print the conversation
/exit           leave`

// =============================================================================
// HISTORY
// =============================================================================

func chatHistoryPath(g *globalOptions) string {
	path, err := g.resolveConfigPath()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(path), historyFileName)
}

func loadHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.ReadHistory(f)
}

func saveHistory(ctx context.Context, line *liner.State, path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		log.Debug(ctx, log.KV{K: "msg", V: "history not saved"}, log.KV{K: "err", V: err.Error()})
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
