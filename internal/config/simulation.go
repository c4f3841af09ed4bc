package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/traffic-control/internal/traffic"
)

// SimulationConfig is the JSON configuration for a simulation run or a server
// grid. Fields are pointers so a partial file only overrides what it names;
// the Get* methods supply defaults for the rest.
type SimulationConfig struct {
	// Grid shape
	Capacity *int `json:"capacity,omitempty"`
	Width    *int `json:"width,omitempty"`
	Height   *int `json:"height,omitempty"`

	// Driver params
	Clients      *int                 `json:"clients,omitempty"`
	MaxSteps     *int                 `json:"max_steps,omitempty"`
	StepInterval *string              `json:"step_interval,omitempty"` // duration string like "250ms"
	Targets      []traffic.Coordinate `json:"targets,omitempty"`

	// Outputs
	DBPath  *string `json:"db_path,omitempty"`
	PlotDir *string `json:"plot_dir,omitempty"`
}

const (
	defaultCapacity     = 1
	defaultWidth        = 10
	defaultHeight       = 5
	defaultClients      = 3
	defaultMaxSteps     = 100
	defaultStepInterval = "0s"
)

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptySimulationConfig returns a SimulationConfig with all fields unset.
func EmptySimulationConfig() *SimulationConfig {
	return &SimulationConfig{}
}

// DefaultSimulationConfig returns a SimulationConfig with every field filled
// with its default value.
func DefaultSimulationConfig() *SimulationConfig {
	cfg := &SimulationConfig{
		Capacity:     ptrInt(defaultCapacity),
		Width:        ptrInt(defaultWidth),
		Height:       ptrInt(defaultHeight),
		Clients:      ptrInt(defaultClients),
		MaxSteps:     ptrInt(defaultMaxSteps),
		StepInterval: ptrString(defaultStepInterval),
		DBPath:       ptrString(""),
		PlotDir:      ptrString(""),
	}
	cfg.Targets = cfg.GetTargets()
	return cfg
}

// LoadSimulationConfig loads a SimulationConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySimulationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SimulationConfig) Validate() error {
	if c.Capacity != nil && *c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", *c.Capacity)
	}
	if c.Width != nil && *c.Width < 1 {
		return fmt.Errorf("width must be at least 1, got %d", *c.Width)
	}
	if c.Height != nil && *c.Height < 1 {
		return fmt.Errorf("height must be at least 1, got %d", *c.Height)
	}
	if c.Clients != nil && *c.Clients < 0 {
		return fmt.Errorf("clients must be non-negative, got %d", *c.Clients)
	}
	if c.MaxSteps != nil && *c.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be at least 1, got %d", *c.MaxSteps)
	}
	if c.StepInterval != nil && *c.StepInterval != "" {
		d, err := time.ParseDuration(*c.StepInterval)
		if err != nil {
			return fmt.Errorf("invalid step_interval '%s': %w", *c.StepInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("step_interval must be non-negative, got %s", d)
		}
	}

	width, height := c.GetWidth(), c.GetHeight()
	for i, t := range c.Targets {
		if t.X < 0 || t.X >= width || t.Y < 0 || t.Y >= height {
			return fmt.Errorf("target %d %v lies outside the %dx%d grid", i, t, width, height)
		}
	}
	return nil
}

// GetCapacity returns the capacity value or the default.
func (c *SimulationConfig) GetCapacity() int {
	if c.Capacity == nil {
		return defaultCapacity
	}
	return *c.Capacity
}

// GetWidth returns the width value or the default.
func (c *SimulationConfig) GetWidth() int {
	if c.Width == nil {
		return defaultWidth
	}
	return *c.Width
}

// GetHeight returns the height value or the default.
func (c *SimulationConfig) GetHeight() int {
	if c.Height == nil {
		return defaultHeight
	}
	return *c.Height
}

// GetClients returns the clients value or the default.
func (c *SimulationConfig) GetClients() int {
	if c.Clients == nil {
		return defaultClients
	}
	return *c.Clients
}

// GetMaxSteps returns the max_steps value or the default.
func (c *SimulationConfig) GetMaxSteps() int {
	if c.MaxSteps == nil {
		return defaultMaxSteps
	}
	return *c.MaxSteps
}

// GetStepInterval parses and returns the StepInterval as a time.Duration.
func (c *SimulationConfig) GetStepInterval() time.Duration {
	if c.StepInterval == nil || *c.StepInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.StepInterval)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// GetTargets returns the configured targets, or the middle of the far column.
func (c *SimulationConfig) GetTargets() []traffic.Coordinate {
	if len(c.Targets) == 0 {
		return []traffic.Coordinate{traffic.NewCoordinate(c.GetWidth()-1, c.GetHeight()/2)}
	}
	return append([]traffic.Coordinate(nil), c.Targets...)
}

// GetDBPath returns the db_path value or "" (no persistence).
func (c *SimulationConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetPlotDir returns the plot_dir value or "" (no plots).
func (c *SimulationConfig) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// SetCapacity overrides capacity, e.g. from a command-line flag.
func (c *SimulationConfig) SetCapacity(v int) { c.Capacity = ptrInt(v) }

// SetWidth overrides width.
func (c *SimulationConfig) SetWidth(v int) { c.Width = ptrInt(v) }

// SetHeight overrides height.
func (c *SimulationConfig) SetHeight(v int) { c.Height = ptrInt(v) }

// SetClients overrides clients.
func (c *SimulationConfig) SetClients(v int) { c.Clients = ptrInt(v) }

// SetMaxSteps overrides max_steps.
func (c *SimulationConfig) SetMaxSteps(v int) { c.MaxSteps = ptrInt(v) }

// SetDBPath overrides db_path.
func (c *SimulationConfig) SetDBPath(v string) { c.DBPath = ptrString(v) }

// SetPlotDir overrides plot_dir.
func (c *SimulationConfig) SetPlotDir(v string) { c.PlotDir = ptrString(v) }

// SetStepInterval overrides step_interval.
func (c *SimulationConfig) SetStepInterval(d time.Duration) { c.StepInterval = ptrString(d.String()) }

// SetTargets overrides targets.
func (c *SimulationConfig) SetTargets(targets ...traffic.Coordinate) {
	c.Targets = append([]traffic.Coordinate(nil), targets...)
}
