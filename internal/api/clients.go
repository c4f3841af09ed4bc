package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// handleClient handles /api/clients/:id, /api/clients/:id/start and
// /api/clients/:id/move.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/clients/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		httputil.NotFound(w, "unknown client route")
		return
	}

	id, err := parseClientID(parts[0])
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.handleGetClient(w, id)
	case "start":
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s.handleStartClient(w, id)
	case "move":
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s.handleMoveClient(w, r, id)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown client action %q", action))
	}
}

func parseClientID(raw string) (traffic.ClientID, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid client id %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("client id must be non-negative, got %d", n)
	}
	return traffic.ClientID(n), nil
}

func (s *Server) handleGetClient(w http.ResponseWriter, id traffic.ClientID) {
	pos, ok := s.ctrl.Position(id)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("client %d not on the grid", id))
		return
	}
	httputil.WriteJSONOK(w, pos)
}

func (s *Server) handleStartClient(w http.ResponseWriter, id traffic.ClientID) {
	pos, err := s.ctrl.Start(id)
	if err != nil {
		writeMovementError(w, err)
		return
	}
	s.publishArea()
	httputil.WriteJSON(w, http.StatusCreated, pos)
}

func (s *Server) handleMoveClient(w http.ResponseWriter, r *http.Request, id traffic.ClientID) {
	var target traffic.Coordinate
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid target: %v", err))
		return
	}
	pos, err := s.ctrl.MoveTo(id, target)
	if err != nil {
		writeMovementError(w, err)
		return
	}
	s.publishArea()
	httputil.WriteJSONOK(w, pos)
}

// writeMovementError answers 409 with the rejection message for
// MovementNotPossible and 500 for anything else.
func writeMovementError(w http.ResponseWriter, err error) {
	var mnp *traffic.MovementNotPossible
	if errors.As(err, &mnp) {
		httputil.Conflict(w, mnp.Message)
		return
	}
	httputil.InternalServerError(w, err.Error())
}
