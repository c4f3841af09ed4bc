package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// AreaResponse is the JSON shape of GET /api/area.
type AreaResponse struct {
	Capacity int          `json:"capacity"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Occupied int          `json:"occupied"`
	Grid     traffic.Grid `json:"grid"`
}

func (s *Server) handleArea(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.area())
}

func (s *Server) area() AreaResponse {
	capacity, width, height := s.ctrl.Dimensions()
	g := s.ctrl.Grid()
	return AreaResponse{
		Capacity: capacity,
		Width:    width,
		Height:   height,
		Occupied: g.Occupied(),
		Grid:     g,
	}
}

func (s *Server) handleAreaText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.ctrl.Dump())
}

func (s *Server) handleAreaClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.ctrl.Clear()
	s.publishArea()
	w.WriteHeader(http.StatusNoContent)
}

// handleCellFree handles GET /api/cells/free?x=&y=
func (s *Server) handleCellFree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	at, err := parseCoordinate(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !s.ctrl.Contains(at) {
		httputil.BadRequest(w, fmt.Sprintf("cell %v is outside the area", at))
		return
	}
	httputil.WriteJSONOK(w, map[string]bool{"free": s.ctrl.IsFree(at)})
}

func parseCoordinate(r *http.Request) (traffic.Coordinate, error) {
	q := r.URL.Query()
	x, err := strconv.Atoi(q.Get("x"))
	if err != nil {
		return traffic.UnsetCoordinate, fmt.Errorf("invalid 'x' parameter %q", q.Get("x"))
	}
	y, err := strconv.Atoi(q.Get("y"))
	if err != nil {
		return traffic.UnsetCoordinate, fmt.Errorf("invalid 'y' parameter %q", q.Get("y"))
	}
	return traffic.NewCoordinate(x, y), nil
}
