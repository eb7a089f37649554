// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/jeranaias/llm-council/internal/config"
	"github.com/jeranaias/llm-council/internal/invoker"
	"github.com/jeranaias/llm-council/internal/model"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 100

	// MaxModelCount is the maximum number of models in one request.
	MaxModelCount = 32
)

// ============================================================================
// DEPENDENCIES
// ============================================================================

// Council runs a fan-out. *invoker.Invoker satisfies it.
type Council interface {
	InvokeManyDetailed(ctx context.Context, ids []string, conv model.Conversation) map[string]invoker.Outcome
}

// ConfigSource yields the current config. *config.FileSource satisfies it.
type ConfigSource interface {
	Config(ctx context.Context) *config.Config
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the council HTTP API.
type Server struct {
	addr    string
	version string
	router  *http.ServeMux
	server  *http.Server

	council Council
	configs ConfigSource
	metrics http.Handler
	auth    *AuthConfig
	limiter *RateLimiter

	mu     sync.Mutex
	closed bool
}

// NewServer creates a Server. An empty addr selects DefaultAddr.
func NewServer(addr string, council Council, configs ConfigSource) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:    addr,
		version: "dev",
		router:  http.NewServeMux(),
		council: council,
		configs: configs,
		auth:    DefaultAuthConfig(),
	}
	s.setupRoutes()
	return s
}

// WithMetrics serves h on GET /metrics.
func (s *Server) WithMetrics(h http.Handler) *Server {
	s.metrics = h
	return s
}

// WithAuth sets the authentication configuration.
func (s *Server) WithAuth(config *AuthConfig) *Server {
	s.auth = config
	return s
}

// WithRateLimiter enables per-client rate limiting.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	s.limiter = rl
	return s
}

// WithVersion sets the version reported by /health.
func (s *Server) WithVersion(v string) *Server {
	s.version = v
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /v1/council", s.handleCouncil)
	s.router.HandleFunc("GET /v1/models", s.handleModels)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /metrics", s.handleMetrics)
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		LoggingMiddleware(),
		SecurityHeadersMiddleware(),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter))
	}
	if s.auth != nil && s.auth.Enabled {
		middlewares = append(middlewares, AuthMiddleware(s.auth))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// COUNCIL HANDLER
// ============================================================================

// CouncilRequest asks the council a question.
type CouncilRequest struct {
	Messages []model.Message `json:"messages,omitempty"`
	Prompt   string          `json:"prompt,omitempty"`
	System   string          `json:"system,omitempty"`
	Models   []string        `json:"models,omitempty"`
}

// CouncilResponse carries one entry per distinct requested model.
type CouncilResponse struct {
	ID         string                     `json:"id"`
	Created    int64                      `json:"created"`
	Models     []string                   `json:"models"`
	Responses  map[string]*invoker.Result `json:"responses"`
	Errors     map[string]*invoker.Error  `json:"errors,omitempty"`
	Succeeded  int                        `json:"succeeded"`
	DurationMS int64                      `json:"duration_ms"`
}

// conversation builds the conversation from either messages or prompt.
func (req CouncilRequest) conversation() (model.Conversation, error) {
	if len(req.Messages) > 0 {
		if req.Prompt != "" || req.System != "" {
			return nil, errors.New("send either messages or prompt/system, not both")
		}
		if len(req.Messages) > MaxMessageCount {
			return nil, fmt.Errorf("too many messages: %d (max %d)", len(req.Messages), MaxMessageCount)
		}
		for i, msg := range req.Messages {
			if !msg.Role.IsKnown() {
				return nil, fmt.Errorf("invalid role '%s' at message %d: must be one of system, user, assistant", msg.Role, i)
			}
		}
		return model.Conversation(req.Messages), nil
	}
	if req.Prompt == "" {
		return nil, errors.New("request must contain messages or a prompt")
	}
	return model.FromPrompt(req.System, req.Prompt), nil
}

// handleCouncil handles POST /v1/council.
func (s *Server) handleCouncil(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req CouncilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		log.Debug(ctx, log.KV{K: "msg", V: "invalid request body"}, log.KV{K: "err", V: err.Error()})
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	conv, err := req.conversation()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids := req.Models
	if len(ids) == 0 {
		ids = s.configs.Config(ctx).ActiveIDs()
	}
	if len(ids) == 0 {
		s.writeError(w, http.StatusBadRequest, "no council members configured")
		return
	}
	if len(ids) > MaxModelCount {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("too many models: %d (max %d)", len(ids), MaxModelCount))
		return
	}

	start := time.Now()
	outcomes := s.council.InvokeManyDetailed(ctx, ids, conv)

	resp := CouncilResponse{
		ID:         "council-" + uuid.NewString(),
		Created:    start.Unix(),
		Models:     orderedIDs(ids, outcomes),
		Responses:  invoker.Results(outcomes),
		DurationMS: time.Since(start).Milliseconds(),
	}
	for id, o := range outcomes {
		if o.OK() {
			resp.Succeeded++
			continue
		}
		if resp.Errors == nil {
			resp.Errors = make(map[string]*invoker.Error)
		}
		resp.Errors[id] = o.Err
	}

	status := http.StatusOK
	if resp.Succeeded == 0 {
		status = http.StatusBadGateway
	}
	log.Print(ctx,
		log.KV{K: "msg", V: "council complete"},
		log.KV{K: "models", V: len(resp.Models)},
		log.KV{K: "succeeded", V: resp.Succeeded},
		log.KV{K: "duration_ms", V: resp.DurationMS},
	)
	s.writeJSON(w, status, resp)
}

// orderedIDs returns the distinct requested ids in request order.
func orderedIDs(ids []string, outcomes map[string]invoker.Outcome) []string {
	seen := make(map[string]bool, len(ids))
	ordered := make([]string, 0, len(outcomes))
	for _, id := range ids {
		if _, ok := outcomes[id]; ok && !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// ============================================================================
// MODELS HANDLER
// ============================================================================

// ModelInfo describes one configured CLI.
type ModelInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Enabled  bool     `json:"enabled"`
	Council  bool     `json:"council"`
	Chairman bool     `json:"chairman"`
}

// ModelsResponse is the GET /v1/models payload.
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// handleModels handles GET /v1/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	cfg := s.configs.Config(r.Context())

	data := make([]ModelInfo, 0, len(cfg.CLIs))
	for _, cli := range cfg.CLIs {
		data = append(data, ModelInfo{
			ID:       cli.ID,
			Name:     cli.DisplayName(),
			Command:  cli.Command,
			Args:     cli.Args,
			Enabled:  cli.IsEnabled(),
			Council:  cfg.IsCouncilMember(cli.ID),
			Chairman: cli.ID == cfg.ChairmanID,
		})
	}
	s.writeJSON(w, http.StatusOK, ModelsResponse{Object: "list", Data: data})
}

// ============================================================================
// HEALTH AND METRICS
// ============================================================================

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Members int    `json:"members"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.configs.Config(r.Context())
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Members: len(cfg.ActiveIDs()),
	})
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.writeError(w, http.StatusNotFound, "metrics not enabled")
		return
	}
	s.metrics.ServeHTTP(w, r)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens and serves until Shutdown. Request contexts inherit the
// logger in ctx but not its cancellation, so in-flight invocations finish
// during a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	base := context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv := s.server
	s.mu.Unlock()

	log.Print(ctx,
		log.KV{K: "msg", V: "server start"},
		log.KV{K: "addr", V: ln.Addr().String()},
		log.KV{K: "version", V: s.version},
	)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server. A Serve call that has not
// started yet returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	log.Print(ctx, log.KV{K: "msg", V: "server shutdown"})
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
