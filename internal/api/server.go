// Package api serves a traffic controller over HTTP and provides a client
// that drives a remote server through the same operations.
package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/monitoring"
	"github.com/banshee-data/traffic-control/internal/store"
	"github.com/banshee-data/traffic-control/internal/traffic"
	"github.com/banshee-data/traffic-control/internal/version"
)

const colorReset = "\033[0m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"
const colorCyan = "\033[36m"
const colorYellow = "\033[33m"

// Server exposes a Controller, and optionally a snapshot store, over HTTP.
type Server struct {
	ctrl  *traffic.Controller
	snaps *store.SnapshotStore
	hub   *Hub
}

// NewServer creates a server over ctrl. snaps may be nil, in which case the
// snapshot endpoints answer 503.
func NewServer(ctrl *traffic.Controller, snaps *store.SnapshotStore) *Server {
	return &Server{ctrl: ctrl, snaps: snaps, hub: NewHub()}
}

// Hub returns the stream hub. Its Run loop must be started for /api/stream
// subscribers to receive updates.
func (s *Server) Hub() *Hub {
	return s.hub
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets websocket upgrades pass through the middleware.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/clients/", s.handleClient)
	mux.HandleFunc("/api/area", s.handleArea)
	mux.HandleFunc("/api/area/text", s.handleAreaText)
	mux.HandleFunc("/api/area/clear", s.handleAreaClear)
	mux.HandleFunc("/api/cells/free", s.handleCellFree)
	mux.HandleFunc("/api/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/snapshots/", s.handleSnapshotByID)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/charts/occupancy", s.handleOccupancyChart)
	mux.HandleFunc("/api/version", s.handleVersion)
	return mux
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}
