package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-hometour/internal/log"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"github.com/teslashibe/go-hometour/pkg/locations"
	"github.com/teslashibe/go-hometour/pkg/loop"
	"github.com/teslashibe/go-hometour/pkg/preference"
)

func newTestServer(t *testing.T, withCamera bool) *Server {
	t.Helper()
	opts := Options{
		Mode:   camera.ModeNone,
		Home:   preference.NewService(locations.DefaultLayout(), log.Discard()),
		Logger: log.Discard(),
	}
	if withCamera {
		opts.Mode = camera.ModeCamera
		opts.Camera = camera.NewManager(camera.DefaultConfig())
	}
	return NewServer(opts)
}

func do(t *testing.T, s *Server, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, false)

	code, body := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	st := decode[map[string]any](t, body)
	assert.Equal(t, "idle", st["state"])
	assert.Equal(t, "none", st["mode"])
	assert.Equal(t, float64(0), st["dropped_clients"])
	assert.NotContains(t, st, "run_id")

	run := loop.New(loop.Config{APIKey: "k"}, loop.Deps{Logger: log.Discard()})
	run.Stats().Turns.Add(3)
	s.Attach(run)

	_, body = do(t, s, http.MethodGet, "/api/status", "")
	st = decode[map[string]any](t, body)
	assert.Equal(t, run.ID(), st["run_id"])
	assert.Equal(t, float64(3), st["stats"].(map[string]any)["turns"])
}

func TestGraphsAndObjects(t *testing.T) {
	s := newTestServer(t, false)

	code, body := do(t, s, http.MethodGet, "/api/graphs", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))

	code, body = do(t, s, http.MethodGet, "/api/objects", "")
	require.Equal(t, http.StatusOK, code)
	objects := decode[map[string]any](t, body)
	assert.Contains(t, objects, "Kitchen")

	code, body = do(t, s, http.MethodGet, "/api/tools", "")
	require.Equal(t, http.StatusOK, code)
	tools := decode[[]ToolInfo](t, body)
	assert.Len(t, tools, 11)
}

func TestRunTool(t *testing.T) {
	s := newTestServer(t, false)

	code, body := do(t, s, http.MethodPost, "/api/tools/create_process_graph", `{"args":{"name":"laundry"}}`)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "success", decode[map[string]any](t, body)["status"])

	_, body = do(t, s, http.MethodGet, "/api/graphs", "")
	graphs := decode[[]preference.GraphSnapshot](t, body)
	require.Len(t, graphs, 1)
	assert.Equal(t, "laundry", graphs[0].Name)

	code, body = do(t, s, http.MethodPost, "/api/tools/create_process_graph", `{"args":{"name":"laundry"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "error", decode[map[string]any](t, body)["status"])

	code, _ = do(t, s, http.MethodPost, "/api/tools/launch_rocket", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodPost, "/api/tools/list_process_graphs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventTool, events[0].Type)
	assert.True(t, events[0].Manual)
	for _, e := range events {
		assert.Equal(t, "create_process_graph", e.Tool, "tool name survives later requests")
	}
}

func TestTranscript_ObserverEvents(t *testing.T) {
	s := newTestServer(t, false)

	s.OnState(loop.StateStreaming)
	s.OnText("This is the kitchen.")
	s.OnToolCall(loop.ToolCall{ID: "c1", Name: "add_object"}, map[string]any{"status": "success"})
	s.OnFrame([]byte{0xff, 0xd8})

	code, body := do(t, s, http.MethodGet, "/api/transcript", "")
	require.Equal(t, http.StatusOK, code)
	events := decode[[]Event](t, body)
	require.Len(t, events, 3)
	assert.Equal(t, "streaming", events[0].State)
	assert.Equal(t, "This is the kitchen.", events[1].Text)
	assert.Equal(t, "add_object", events[2].Tool)
	assert.False(t, events[2].Manual)
}

func TestTranscript_Bounded(t *testing.T) {
	s := newTestServer(t, false)
	for range maxEvents + 10 {
		s.OnText("x")
	}
	assert.Len(t, s.Events(), maxEvents)
}

func TestCamera(t *testing.T) {
	s := newTestServer(t, false)
	code, _ := do(t, s, http.MethodGet, "/api/camera", "")
	assert.Equal(t, http.StatusNotFound, code)

	s = newTestServer(t, true)
	code, body := do(t, s, http.MethodGet, "/api/camera", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(85), decode[map[string]any](t, body)["quality"])

	code, body = do(t, s, http.MethodPost, "/api/camera", `{"quality": 60}`)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, float64(60), decode[map[string]any](t, body)["quality"])
	assert.Equal(t, 60, s.opts.Camera.GetConfig().Quality)

	code, _ = do(t, s, http.MethodPost, "/api/camera", `{"quality": 0}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/api/camera", `{"mode": "screen"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWebsocketRoutesRequireUpgrade(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/ws/transcript", "/ws/frames"} {
		code, _ := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUpgradeRequired, code, path)
	}
}

func TestStartShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := newTestServer(t, false)
	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background(), addr) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, s.transcriptHub.IsRunning, 2*time.Second, 10*time.Millisecond)

	s.Shutdown()
	s.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server still serving after Shutdown")
	}
	assert.Eventually(t, func() bool { return !s.transcriptHub.IsRunning() }, 2*time.Second, 10*time.Millisecond)
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, false)
	code, body := do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "/ws/transcript")
}
