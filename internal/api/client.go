package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/banshee-data/traffic-control/internal/httputil"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// Client drives a remote traffic server. It satisfies sim.Controller, so a
// simulation can run against a shared grid.
type Client struct {
	baseURL string
	http    httputil.HTTPClient

	mu   sync.Mutex
	area *AreaResponse
}

// NewClient creates a client for the server at baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

// Start admits id on the remote grid.
func (c *Client) Start(id traffic.ClientID) (traffic.Coordinate, error) {
	var pos traffic.Coordinate
	err := httputil.DoJSON(c.http, http.MethodPost, fmt.Sprintf("%s/api/clients/%d/start", c.baseURL, id), nil, &pos)
	if err != nil {
		return traffic.UnsetCoordinate, remoteError(err)
	}
	return pos, nil
}

// MoveTo advances id one step toward target on the remote grid.
func (c *Client) MoveTo(id traffic.ClientID, target traffic.Coordinate) (traffic.Coordinate, error) {
	var pos traffic.Coordinate
	err := httputil.DoJSON(c.http, http.MethodPost, fmt.Sprintf("%s/api/clients/%d/move", c.baseURL, id), target, &pos)
	if err != nil {
		return traffic.UnsetCoordinate, remoteError(err)
	}
	return pos, nil
}

// Area fetches the remote grid.
func (c *Client) Area() (*AreaResponse, error) {
	var area AreaResponse
	if err := httputil.DoJSON(c.http, http.MethodGet, c.baseURL+"/api/area", nil, &area); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.area = &area
	c.mu.Unlock()
	return &area, nil
}

// Contains reports whether at lies inside the remote grid. The dimensions are
// fetched once; if that fails nothing is contained.
func (c *Client) Contains(at traffic.Coordinate) bool {
	c.mu.Lock()
	area := c.area
	c.mu.Unlock()
	if area == nil {
		var err error
		if area, err = c.Area(); err != nil {
			return false
		}
	}
	return at.X >= 0 && at.X < area.Width && at.Y >= 0 && at.Y < area.Height
}

// remoteError turns a 409 back into the MovementNotPossible the server
// rejected the command with.
func remoteError(err error) error {
	var se *httputil.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
		return &traffic.MovementNotPossible{Message: se.Message}
	}
	return err
}
