// Package plot renders simulation trajectories to PNG with gonum/plot.
package plot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/traffic-control/internal/sim"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

const (
	trajectoriesFile = "trajectories.png"
	distanceFile     = "distance.png"
)

// Sample is one client position after a round. Round 0 is the entry cell.
type Sample struct {
	Round    int
	Position traffic.Coordinate
	Distance float64
}

// TrajectoryPlotter records where each client was after every round and
// draws the paths once the run is over.
type TrajectoryPlotter struct {
	mu        sync.Mutex
	outputDir string
	width     int
	height    int
	samples   map[traffic.ClientID][]Sample
}

// NewTrajectoryPlotter creates a plotter for a width x height area.
func NewTrajectoryPlotter(width, height int) *TrajectoryPlotter {
	return &TrajectoryPlotter{
		width:   width,
		height:  height,
		samples: make(map[traffic.ClientID][]Sample),
	}
}

// Start prepares outputDir and discards any earlier samples.
func (tp *TrajectoryPlotter) Start(outputDir string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tp.outputDir = outputDir
	tp.samples = make(map[traffic.ClientID][]Sample)
	return nil
}

// RecordMove implements sim.Recorder.
func (tp *TrajectoryPlotter) RecordMove(m sim.Move) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if _, seen := tp.samples[m.Client]; !seen {
		tp.samples[m.Client] = []Sample{{
			Round:    m.Round - 1,
			Position: m.From,
			Distance: traffic.Distance(m.From, m.Target),
		}}
	}
	tp.samples[m.Client] = append(tp.samples[m.Client], Sample{
		Round:    m.Round,
		Position: m.To,
		Distance: traffic.Distance(m.To, m.Target),
	})
	return nil
}

// SampleCount returns the total number of samples collected.
func (tp *TrajectoryPlotter) SampleCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	count := 0
	for _, s := range tp.samples {
		count += len(s)
	}
	return count
}

// Generate writes trajectories.png and distance.png into the output directory.
// Returns the number of plots written.
func (tp *TrajectoryPlotter) Generate() (int, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(tp.samples) == 0 {
		return 0, nil
	}

	ids := make([]traffic.ClientID, 0, len(tp.samples))
	for id := range tp.samples {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	colors := generateColors(len(ids))

	pPath := plot.New()
	pPath.Title.Text = "Client trajectories"
	pPath.X.Label.Text = "x"
	pPath.Y.Label.Text = "y"
	pPath.X.Min, pPath.X.Max = -0.5, float64(tp.width)-0.5
	pPath.Y.Min, pPath.Y.Max = -0.5, float64(tp.height)-0.5
	pPath.Add(plotter.NewGrid())

	pDist := plot.New()
	pDist.Title.Text = "Distance to target"
	pDist.X.Label.Text = "Round"
	pDist.Y.Label.Text = "Distance (cells)"

	for i, id := range ids {
		samples := tp.samples[id]
		pathPts := make(plotter.XYs, 0, len(samples))
		distPts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			pathPts = append(pathPts, plotter.XY{X: float64(s.Position.X), Y: float64(s.Position.Y)})
			distPts = append(distPts, plotter.XY{X: float64(s.Round), Y: s.Distance})
		}
		label := fmt.Sprintf("client %d", id)

		pathLine, pathPoints, err := plotter.NewLinePoints(pathPts)
		if err != nil {
			return 0, fmt.Errorf("client %d: %w", id, err)
		}
		pathLine.Color = colors[i]
		pathLine.Width = vg.Points(1.5)
		pathPoints.Color = colors[i]
		pPath.Add(pathLine, pathPoints)
		pPath.Legend.Add(label, pathLine)

		distLine, err := plotter.NewLine(distPts)
		if err != nil {
			return 0, fmt.Errorf("client %d: %w", id, err)
		}
		distLine.Color = colors[i]
		distLine.Width = vg.Points(1)
		pDist.Add(distLine)
		pDist.Legend.Add(label, distLine)
	}

	for _, p := range []*plot.Plot{pPath, pDist} {
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
	}

	if err := pPath.Save(10*vg.Inch, 6*vg.Inch, filepath.Join(tp.outputDir, trajectoriesFile)); err != nil {
		return 0, fmt.Errorf("save trajectory plot: %w", err)
	}
	if err := pDist.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(tp.outputDir, distanceFile)); err != nil {
		return 1, fmt.Errorf("save distance plot: %w", err)
	}
	return 2, nil
}

// generateColors creates a palette of distinct colors, one per client.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
