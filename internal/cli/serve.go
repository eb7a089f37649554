// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/jeranaias/llm-council/internal/config"
	"github.com/jeranaias/llm-council/internal/invoker"
	"github.com/jeranaias/llm-council/internal/metrics"
	"github.com/jeranaias/llm-council/internal/server"
)

// EnvAPIToken supplies the bearer token when --token is not given.
const EnvAPIToken = "COUNCIL_API_TOKEN"

// shutdownTimeout bounds how long in-flight councils may finish.
const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	addr      string
	token     string
	rateLimit int
	metrics   bool
	watch     bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the council over HTTP:

  POST /v1/council   ask the council
  GET  /v1/models    list configured CLIs
  GET  /health       liveness
  GET  /metrics      Prometheus metrics

The config file is read on every request, so edits apply immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.addr, "addr", "a", server.DefaultAddr, "listen address")
	f.StringVar(&opts.token, "token", "", "require this bearer token (default $"+EnvAPIToken+")")
	f.IntVar(&opts.rateLimit, "rate-limit", 0, "requests per minute per client, 0 disables")
	f.BoolVar(&opts.metrics, "metrics", true, "expose /metrics")
	f.BoolVar(&opts.watch, "watch", true, "log config edits and validation errors")
	return cmd
}

func runServe(ctx context.Context, g *globalOptions, opts *serveOptions) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	path, err := g.resolveConfigPath()
	if err != nil {
		return err
	}
	src := config.NewFileSource(path)
	cfg := src.Config(ctx)
	if err := cfg.Validate(); err != nil {
		log.Warn(ctx, log.KV{K: "msg", V: "config has problems"}, log.KV{K: "err", V: err.Error()})
	}

	var observers []invoker.Observer
	rec := metrics.New()
	if opts.metrics {
		observers = append(observers, rec)
	}
	inv := invoker.New(src, invoker.WithObserver(observers...))

	srv := server.NewServer(opts.addr, inv, src).WithVersion(Version)
	if opts.metrics {
		srv.WithMetrics(rec.Handler())
	}

	token := opts.token
	if token == "" {
		token = os.Getenv(EnvAPIToken)
	}
	if token != "" {
		srv.WithAuth(server.TokenAuthConfig(token))
	}
	if opts.rateLimit > 0 {
		srv.WithRateLimiter(server.NewRateLimiter(opts.rateLimit))
	}

	if opts.watch {
		go watchConfig(ctx, path)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start(ctx)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errc
}

// watchConfig logs every config edit until ctx ends.
func watchConfig(ctx context.Context, path string) {
	err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "config edit rejected"}, log.KV{K: "path", V: path})
			return
		}
		log.Print(ctx,
			log.KV{K: "msg", V: "config reloaded"},
			log.KV{K: "path", V: path},
			log.KV{K: "members", V: len(cfg.ActiveIDs())},
		)
	})
	if err != nil && ctx.Err() == nil {
		log.Warn(ctx, log.KV{K: "msg", V: "config watch unavailable"}, log.KV{K: "err", V: err.Error()})
	}
}
