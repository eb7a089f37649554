// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llm-council/internal/config"
	"github.com/jeranaias/llm-council/internal/invoker"
	"github.com/jeranaias/llm-council/internal/model"
	"github.com/jeranaias/llm-council/internal/prompt"
)

// ============================================================================
// FAKES
// ============================================================================

// fakeCouncil answers with the compiled prompt, failing the ids in fail.
type fakeCouncil struct {
	fail map[string]invoker.Kind

	mu       sync.Mutex
	lastIDs  []string
	lastConv model.Conversation
}

func (f *fakeCouncil) InvokeManyDetailed(_ context.Context, ids []string, conv model.Conversation) map[string]invoker.Outcome {
	f.mu.Lock()
	f.lastIDs = ids
	f.lastConv = conv
	f.mu.Unlock()

	out := make(map[string]invoker.Outcome)
	for _, id := range ids {
		if kind, ok := f.fail[id]; ok {
			out[id] = invoker.Outcome{Model: id, Err: &invoker.Error{Kind: kind, Model: id}}
			continue
		}
		out[id] = invoker.Outcome{Model: id, Result: &invoker.Result{Content: id + ": " + prompt.Compile(conv)}}
	}
	return out
}

type staticConfig struct{ cfg *config.Config }

func (s staticConfig) Config(context.Context) *config.Config { return s.cfg }

func newTestServer(fail map[string]invoker.Kind) (*Server, *fakeCouncil) {
	council := &fakeCouncil{fail: fail}
	return NewServer("", council, staticConfig{config.Default()}), council
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ============================================================================
// COUNCIL ENDPOINT
// ============================================================================

func TestCouncil_DefaultsToActiveMembers(t *testing.T) {
	s, council := newTestServer(nil)

	rec := do(t, s.Handler(), "POST", "/v1/council", `{"prompt": "Hello"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"gemini", "claude", "codex", "amp"}, council.lastIDs)
	resp := decode[CouncilResponse](t, rec)
	assert.Equal(t, []string{"gemini", "claude", "codex", "amp"}, resp.Models)
	assert.Equal(t, 4, resp.Succeeded)
	require.NotNil(t, resp.Responses["claude"])
	assert.Equal(t, "claude: Hello", resp.Responses["claude"].Content)
	assert.Empty(t, resp.Errors)
	assert.True(t, strings.HasPrefix(resp.ID, "council-"))
}

func TestCouncil_Messages(t *testing.T) {
	s, council := newTestServer(nil)
	body := `{"messages": [
		{"role": "system", "content": "Be brief."},
		{"role": "user", "content": "Hi"}
	], "models": ["codex"]}`

	rec := do(t, s.Handler(), "POST", "/v1/council", body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, council.lastConv, 2)
	assert.Equal(t, model.RoleSystem, council.lastConv[0].Role)
	resp := decode[CouncilResponse](t, rec)
	assert.Equal(t, "codex: System: Be brief.\n\nUser: Hi", resp.Responses["codex"].Content)
}

func TestCouncil_PromptWithSystem(t *testing.T) {
	s, council := newTestServer(nil)

	rec := do(t, s.Handler(), "POST", "/v1/council", `{"prompt": "Hi", "system": "Sys", "models": ["amp"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.FromPrompt("Sys", "Hi"), council.lastConv)
}

func TestCouncil_PartialFailure(t *testing.T) {
	s, _ := newTestServer(map[string]invoker.Kind{"codex": invoker.KindTimeout})

	rec := do(t, s.Handler(), "POST", "/v1/council", `{"prompt": "q", "models": ["claude", "codex", "claude"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, `null`, string(mustField(t, raw["responses"], "codex")))

	resp := decode[CouncilResponse](t, rec)
	assert.Equal(t, []string{"claude", "codex"}, resp.Models)
	assert.Len(t, resp.Responses, 2)
	assert.Equal(t, 1, resp.Succeeded)
	require.Contains(t, resp.Errors, "codex")
	assert.Equal(t, invoker.KindTimeout, resp.Errors["codex"].Kind)
	assert.Contains(t, rec.Body.String(), `"kind":"timeout"`)
}

func mustField(t *testing.T, obj json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(obj, &m))
	v, ok := m[key]
	require.True(t, ok, "missing key %q", key)
	return v
}

func TestCouncil_AllFailedIsBadGateway(t *testing.T) {
	s, _ := newTestServer(map[string]invoker.Kind{
		"claude": invoker.KindNonZeroExit,
		"ghost":  invoker.KindUnknownModel,
	})

	rec := do(t, s.Handler(), "POST", "/v1/council", `{"prompt": "q", "models": ["claude", "ghost"]}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[CouncilResponse](t, rec)
	assert.Zero(t, resp.Succeeded)
	assert.Len(t, resp.Errors, 2)
}

func TestCouncil_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"prompt":`, "invalid request format"},
		{"empty", `{}`, "messages or a prompt"},
		{"both forms", `{"prompt": "a", "messages": [{"role": "user", "content": "b"}]}`, "not both"},
		{"bad role", `{"messages": [{"role": "tool", "content": "x"}]}`, "invalid role 'tool'"},
		{"too many models", `{"prompt": "a", "models": [` + strings.Repeat(`"m",`, MaxModelCount) + `"m"]}`, "too many models"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(nil)

			rec := do(t, s.Handler(), "POST", "/v1/council", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestCouncil_NoMembers(t *testing.T) {
	cfg := config.Default()
	cfg.CouncilIDs = nil
	s := NewServer("", &fakeCouncil{}, staticConfig{cfg})

	rec := do(t, s.Handler(), "POST", "/v1/council", `{"prompt": "q"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no council members")
}

func TestCouncil_BodyTooLarge(t *testing.T) {
	s, _ := newTestServer(nil)
	big := `{"prompt": "` + strings.Repeat("a", MaxRequestBodySize) + `"}`

	rec := do(t, s.Handler(), "POST", "/v1/council", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCouncil_WrongMethod(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := do(t, s.Handler(), "GET", "/v1/council", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ============================================================================
// OTHER ENDPOINTS
// ============================================================================

func TestModels(t *testing.T) {
	cfg := config.Default()
	cfg.CLIs[3].SetEnabled(false)
	cfg.CouncilIDs = []string{"gemini", "claude"}
	s := NewServer("", &fakeCouncil{}, staticConfig{cfg})

	rec := do(t, s.Handler(), "GET", "/v1/models", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ModelsResponse](t, rec)
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 4)
	assert.Equal(t, ModelInfo{
		ID: "gemini", Name: "Gemini", Command: "gemini", Args: []string{},
		Enabled: true, Council: true, Chairman: true,
	}, resp.Data[0])
	assert.False(t, resp.Data[2].Council)
	assert.False(t, resp.Data[3].Enabled)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(nil)
	s.WithVersion("1.2.3")

	rec := do(t, s.Handler(), "GET", "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "ok", Version: "1.2.3", Members: 4}, decode[HealthResponse](t, rec))
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s.Handler(), "GET", "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("council_invocations_total 0\n"))
	}))
	rec = do(t, s.Handler(), "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "council_invocations_total")
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func TestServer_StartAndShutdown(t *testing.T) {
	s, _ := newTestServer(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(url+"/v1/council", "application/json", bytes.NewBufferString(`{"prompt":"hi","models":["amp"]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestServer_ShutdownBeforeServe(t *testing.T) {
	s, _ := newTestServer(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	require.NoError(t, s.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ln) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve kept running after Shutdown")
	}

	_, err = net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	assert.Error(t, err, "listener is closed")
}
