package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/store"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// SnapshotRequest is the optional body of POST /api/snapshots.
type SnapshotRequest struct {
	Reason string `json:"reason"`
}

// handleSnapshots handles GET (list) and POST (take) on /api/snapshots.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snaps == nil {
		httputil.ServiceUnavailable(w, "snapshot store not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleListSnapshots(w, r)
	case http.MethodPost:
		s.handleTakeSnapshot(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			httputil.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	snaps, err := s.snaps.List(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if snaps == nil {
		snaps = []*store.Snapshot{}
	}
	httputil.WriteJSONOK(w, snaps)
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.BadRequest(w, "invalid snapshot request")
		return
	}
	if req.Reason == "" {
		req.Reason = "api"
	}

	var snap *store.Snapshot
	err := s.ctrl.Do(func(l *traffic.ControlLogic) error {
		var err error
		snap, err = store.Persist(l.TrafficArea(), s.snaps, req.Reason)
		return err
	})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap)
}

// handleSnapshotByID handles POST /api/snapshots/:id/restore
func (s *Server) handleSnapshotByID(w http.ResponseWriter, r *http.Request) {
	if s.snaps == nil {
		httputil.ServiceUnavailable(w, "snapshot store not configured")
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/snapshots/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "restore" {
		httputil.NotFound(w, "unknown snapshot route")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var snap *store.Snapshot
	err := s.ctrl.Do(func(l *traffic.ControlLogic) error {
		var err error
		snap, err = store.Restore(l.TrafficArea(), s.snaps, parts[0])
		return err
	})
	switch {
	case errors.Is(err, store.ErrSnapshotNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, store.ErrDimensionMismatch):
		httputil.Conflict(w, err.Error())
	case err != nil:
		httputil.InternalServerError(w, err.Error())
	default:
		s.publishArea()
		httputil.WriteJSONOK(w, snap)
	}
}
