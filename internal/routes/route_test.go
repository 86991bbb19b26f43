package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper_streaming/internal/audio"
	"whisper_streaming/internal/config"
	"whisper_streaming/internal/engine/enginetest"
	"whisper_streaming/internal/metrics"
	"whisper_streaming/internal/services/ws"
	"whisper_streaming/internal/stream"
	"whisper_streaming/internal/types"
)

func newTestEngine(t *testing.T) (*httptest.Server, *stream.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	registry := stream.NewRegistry(&enginetest.Engine{}, stream.Options{CommitInterval: 1}, zerolog.Nop(), m)
	server := ws.NewASRServer(config.Default(), registry, m, zerolog.Nop())

	r := gin.New()
	RegisterRoutes(r, server, registry, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		server.Shutdown()
		srv.Close()
		registry.CloseAll()
	})
	return srv, registry
}

func TestRoutes_Health(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRoutes_RootPlainHTTP(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Running")
}

func TestRoutes_WebSocketPaths(t *testing.T) {
	srv, registry := newTestEngine(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, path := range []string{"/", "/ws"} {
		conn, _, err := websocket.DefaultDialer.Dial(base+path, nil)
		require.NoError(t, err, path)

		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, audio.EncodeFloat32LE([]float32{1, 2})))
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var resp types.Response
		require.NoError(t, json.Unmarshal(data, &resp))
		assert.Equal(t, []string{"n=2"}, resp.Result, path)
		conn.Close()
	}

	assert.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRoutes_StatsAndMetrics(t *testing.T) {
	srv, _ := newTestEngine(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, audio.EncodeFloat32LE([]float32{1})))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	var stats struct {
		ActiveSessions int                  `json:"active_sessions"`
		Sessions       []types.SessionStats `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 1, stats.ActiveSessions)
	require.Len(t, stats.Sessions, 1)
	assert.Equal(t, "active", stats.Sessions[0].State)
	assert.Equal(t, 1, stats.Sessions[0].Committed)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "whisper_stream_active_sessions 1")
	assert.Contains(t, string(body), "whisper_stream_commits_total 1")
}
