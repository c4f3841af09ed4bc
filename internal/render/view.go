// Package render draws a traffic grid onto a tcell screen.
package render

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/banshee-data/traffic-control/internal/sim"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// Screen layout: one header row, then one row per grid row. Each cell takes
// CellWidth columns with its glyph in the middle.
const (
	HeaderRows = 1
	CellWidth  = 3
)

const idGlyphs = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	styleEmpty    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleOccupied = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleFull     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleTarget   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleHeader   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
)

// Glyph returns the rune for one cell. Single-slot grids show the occupant id
// (base 36, '#' when it does not fit). Multi-slot grids show the occupied
// count, '+' above nine. Empty cells are '.', or 'X' on a target.
func Glyph(slots []traffic.ClientID, target bool) rune {
	n := 0
	var last traffic.ClientID
	for _, id := range slots {
		if id != traffic.EmptySlot {
			n++
			last = id
		}
	}
	switch {
	case n == 0 && target:
		return 'X'
	case n == 0:
		return '.'
	case len(slots) == 1:
		if int(last) < len(idGlyphs) {
			return rune(idGlyphs[last])
		}
		return '#'
	case n > 9:
		return '+'
	default:
		return rune('0' + n)
	}
}

func styleFor(slots []traffic.ClientID, target bool) tcell.Style {
	free := 0
	for _, id := range slots {
		if id == traffic.EmptySlot {
			free++
		}
	}
	switch {
	case free == 0:
		return styleFull
	case target:
		return styleTarget
	case free < len(slots):
		return styleOccupied
	default:
		return styleEmpty
	}
}

// Draw clears screen and paints g with header on the first row. Targets are
// highlighted. The caller calls Show.
func Draw(screen tcell.Screen, g traffic.Grid, targets []traffic.Coordinate, header string) {
	screen.Clear()
	drawText(screen, 0, 0, styleHeader, header)

	isTarget := make(map[traffic.Coordinate]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}

	for x := range g {
		for y := range g[x] {
			at := traffic.NewCoordinate(x, y)
			slots := g[x][y]
			screen.SetContent(x*CellWidth+CellWidth/2, HeaderRows+y,
				Glyph(slots, isTarget[at]), nil, styleFor(slots, isTarget[at]))
		}
	}
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

// Live redraws the grid on every recorded move, for use as a sim.Recorder.
type Live struct {
	mu      sync.Mutex
	screen  tcell.Screen
	grid    func() traffic.Grid
	targets []traffic.Coordinate
	moves   int
}

// NewLive creates a live view. grid is called for a fresh copy on each redraw.
func NewLive(screen tcell.Screen, grid func() traffic.Grid, targets []traffic.Coordinate) *Live {
	return &Live{screen: screen, grid: grid, targets: targets}
}

// Refresh redraws with the given header.
func (l *Live) Refresh(header string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	Draw(l.screen, l.grid(), l.targets, header)
	l.screen.Show()
}

// RecordMove implements sim.Recorder.
func (l *Live) RecordMove(m sim.Move) error {
	l.mu.Lock()
	l.moves++
	n := l.moves
	l.mu.Unlock()
	l.Refresh(fmt.Sprintf("round %d  moves %d  (q to quit)", m.Round, n))
	return nil
}
