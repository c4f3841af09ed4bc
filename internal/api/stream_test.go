package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readArea(t *testing.T, conn *websocket.Conn) AreaResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var area AreaResponse
	require.NoError(t, json.Unmarshal(data, &area))
	return area
}

func TestStream_SendsInitialAreaAndUpdates(t *testing.T) {
	s, _ := setupTestServer(t, false)
	go s.Hub().Run(t.Context())
	ts := httptest.NewServer(LoggingMiddleware(s.ServeMux()))
	defer ts.Close()

	conn := dialStream(t, ts)

	initial := readArea(t, conn)
	assert.Equal(t, 5, initial.Width)
	assert.Equal(t, 3, initial.Height)
	assert.Equal(t, 0, initial.Occupied)

	resp, err := http.Post(ts.URL+"/api/clients/0/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	started := readArea(t, conn)
	assert.Equal(t, 1, started.Occupied)
	assert.Equal(t, 0, int(started.Grid[0][0][0]))

	resp, err = http.Post(ts.URL+"/api/clients/0/move", "application/json", strings.NewReader(`{"x":4,"y":0}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	moved := readArea(t, conn)
	assert.Equal(t, 0, int(moved.Grid[1][0][0]))

	resp, err = http.Post(ts.URL+"/api/area/clear", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	cleared := readArea(t, conn)
	assert.Equal(t, 0, cleared.Occupied)
}

func TestStream_RejectedMoveIsNotPublished(t *testing.T) {
	s, _ := setupTestServer(t, false)
	go s.Hub().Run(t.Context())
	ts := httptest.NewServer(s.ServeMux())
	defer ts.Close()

	conn := dialStream(t, ts)
	readArea(t, conn)

	resp, err := http.Post(ts.URL+"/api/clients/7/move", "application/json", strings.NewReader(`{"x":1,"y":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/clients/7/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	next := readArea(t, conn)
	assert.Equal(t, 1, next.Occupied, "the first update after the rejection is the start")
}

func TestStream_PostIsMethodNotAllowed(t *testing.T) {
	s, _ := setupTestServer(t, false)
	w := do(t, s.ServeMux(), http.MethodPost, "/api/stream", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHub_PublishWithoutRunDoesNotBlock(t *testing.T) {
	h := NewHub()
	for range sendBuffer * 2 {
		h.Publish([]byte("{}"))
	}
	assert.Equal(t, 0, h.Subscribers())
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	s, _ := setupTestServer(t, false)
	ctx, cancel := context.WithCancel(t.Context())
	go s.Hub().Run(ctx)
	ts := httptest.NewServer(s.ServeMux())
	defer ts.Close()

	conn := dialStream(t, ts)
	readArea(t, conn)
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
