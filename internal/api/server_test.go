package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/monitoring"
	"github.com/banshee-data/traffic-control/internal/store"
	"github.com/banshee-data/traffic-control/internal/traffic"
	"github.com/banshee-data/traffic-control/internal/version"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestController(capacity, width, height int) *traffic.Controller {
	return traffic.NewController(traffic.NewControlLogic(traffic.NewArea(capacity, width, height)))
}

func setupTestServer(t *testing.T, withStore bool) (*Server, *traffic.Controller) {
	t.Helper()
	ctrl := newTestController(1, 5, 3)
	var snaps *store.SnapshotStore
	if withStore {
		db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		snaps = store.NewSnapshotStore(db)
	}
	return NewServer(ctrl, snaps), ctrl
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestClientLifecycle(t *testing.T) {
	s, _ := setupTestServer(t, false)
	mux := s.ServeMux()

	w := do(t, mux, http.MethodPost, "/api/clients/7/start", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, traffic.NewCoordinate(0, 0), decode[traffic.Coordinate](t, w))

	w = do(t, mux, http.MethodPost, "/api/clients/7/move", `{"x":4,"y":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, traffic.NewCoordinate(1, 0), decode[traffic.Coordinate](t, w))

	w = do(t, mux, http.MethodGet, "/api/clients/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, traffic.NewCoordinate(1, 0), decode[traffic.Coordinate](t, w))
}

func TestClientErrors(t *testing.T) {
	s, _ := setupTestServer(t, false)
	mux := s.ServeMux()
	require.Equal(t, http.StatusCreated, do(t, mux, http.MethodPost, "/api/clients/1/start", "").Code)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		status  int
		message string
	}{
		{"already started", http.MethodPost, "/api/clients/1/start", "", http.StatusConflict, "client already available"},
		{"move unknown", http.MethodPost, "/api/clients/2/move", `{"x":1,"y":1}`, http.StatusConflict, "client not available"},
		{"target out of bounds", http.MethodPost, "/api/clients/1/move", `{"x":9,"y":9}`, http.StatusConflict, "target out of bounds"},
		{"bad body", http.MethodPost, "/api/clients/1/move", `{"x":`, http.StatusBadRequest, ""},
		{"bad id", http.MethodPost, "/api/clients/abc/start", "", http.StatusBadRequest, `invalid client id "abc"`},
		{"negative id", http.MethodPost, "/api/clients/-1/start", "", http.StatusBadRequest, "client id must be non-negative, got -1"},
		{"absent", http.MethodGet, "/api/clients/2", "", http.StatusNotFound, "client 2 not on the grid"},
		{"unknown action", http.MethodPost, "/api/clients/1/jump", "", http.StatusNotFound, ""},
		{"wrong method", http.MethodGet, "/api/clients/1/start", "", http.StatusMethodNotAllowed, "method not allowed"},
		{"no id", http.MethodGet, "/api/clients/", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, decode[httputil.ErrorBody](t, w).Error)
			}
		})
	}
}

func TestEntryColumnFull(t *testing.T) {
	s, _ := setupTestServer(t, false)
	mux := s.ServeMux()
	for id := 0; id < 3; id++ {
		require.Equal(t, http.StatusCreated, do(t, mux, http.MethodPost, "/api/clients/"+strconv.Itoa(id)+"/start", "").Code)
	}
	w := do(t, mux, http.MethodPost, "/api/clients/9/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no free position found", decode[httputil.ErrorBody](t, w).Error)
}

func TestArea(t *testing.T) {
	s, ctrl := setupTestServer(t, false)
	mux := s.ServeMux()
	_, err := ctrl.Start(3)
	require.NoError(t, err)

	w := do(t, mux, http.MethodGet, "/api/area", "")
	require.Equal(t, http.StatusOK, w.Code)
	area := decode[AreaResponse](t, w)
	assert.Equal(t, 1, area.Capacity)
	assert.Equal(t, 5, area.Width)
	assert.Equal(t, 3, area.Height)
	assert.Equal(t, 1, area.Occupied)
	assert.Equal(t, traffic.ClientID(3), area.Grid[0][0][0])

	w = do(t, mux, http.MethodGet, "/api/area/text", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ctrl.Dump(), w.Body.String())
	assert.True(t, strings.HasPrefix(w.Body.String(), "############## AREA ###############\n"))

	w = do(t, mux, http.MethodPost, "/api/area/clear", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok := ctrl.Position(3)
	assert.False(t, ok)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/area/clear", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodPost, "/api/area", "").Code)
}

func TestCellFree(t *testing.T) {
	s, ctrl := setupTestServer(t, false)
	mux := s.ServeMux()
	_, err := ctrl.Start(0)
	require.NoError(t, err)

	w := do(t, mux, http.MethodGet, "/api/cells/free?x=0&y=0", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"free": false}, decode[map[string]bool](t, w))

	w = do(t, mux, http.MethodGet, "/api/cells/free?x=0&y=1", "")
	assert.Equal(t, map[string]bool{"free": true}, decode[map[string]bool](t, w))

	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/cells/free?x=7&y=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/cells/free?x=a&y=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/cells/free?x=0", "").Code)
}

func TestSnapshots(t *testing.T) {
	s, ctrl := setupTestServer(t, true)
	mux := s.ServeMux()
	_, err := ctrl.Start(5)
	require.NoError(t, err)
	want := ctrl.Grid()

	w := do(t, mux, http.MethodPost, "/api/snapshots", `{"reason":"before-clear"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	snap := decode[store.Snapshot](t, w)
	assert.Equal(t, "before-clear", snap.Reason)
	assert.Equal(t, 1, snap.OccupiedSlots)

	w = do(t, mux, http.MethodPost, "/api/snapshots", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "api", decode[store.Snapshot](t, w).Reason)

	w = do(t, mux, http.MethodGet, "/api/snapshots?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]store.Snapshot](t, w), 2)

	ctrl.Clear()
	w = do(t, mux, http.MethodPost, "/api/snapshots/"+snap.SnapshotID+"/restore", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, want, ctrl.Grid())

	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodPost, "/api/snapshots/missing/restore", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodPost, "/api/snapshots/"+snap.SnapshotID, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/snapshots/"+snap.SnapshotID+"/restore", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodGet, "/api/snapshots?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, mux, http.MethodPost, "/api/snapshots", `{"reason":`).Code)
}

func TestSnapshots_DimensionMismatch(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	snaps := store.NewSnapshotStore(db)

	snap, err := store.Persist(traffic.NewArea(1, 2, 2), snaps, "small")
	require.NoError(t, err)

	s := NewServer(newTestController(1, 5, 3), snaps)
	w := do(t, s.ServeMux(), http.MethodPost, "/api/snapshots/"+snap.SnapshotID+"/restore", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSnapshots_NoStore(t *testing.T) {
	s, _ := setupTestServer(t, false)
	mux := s.ServeMux()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, mux, http.MethodGet, "/api/snapshots", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, mux, http.MethodPost, "/api/snapshots/x/restore", "").Code)
}

func TestOccupancyChart(t *testing.T) {
	s, ctrl := setupTestServer(t, false)
	_, err := ctrl.Start(0)
	require.NoError(t, err)

	w := do(t, s.ServeMux(), http.MethodGet, "/charts/occupancy", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Traffic Area Occupancy")
}

func TestVersion(t *testing.T) {
	s, _ := setupTestServer(t, false)
	w := do(t, s.ServeMux(), http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, version.Current(), decode[version.Info](t, w))
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := do(t, h, http.MethodGet, "/api/area?x=1", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Len(t, lines, 1)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"409"+colorReset, statusCodeColor(409))
	assert.Equal(t, "101", statusCodeColor(101))
}
