package traffic

import (
	"fmt"
	"strings"
)

// ClientID identifies an occupant. Valid ids are non-negative.
type ClientID int

// EmptySlot marks a slot that holds no client.
const EmptySlot ClientID = -1

// Grid is the raw occupancy state indexed as [x][y][slot].
type Grid [][][]ClientID

// NewGrid allocates a width x height grid with capacity slots per cell, all empty.
func NewGrid(capacity, width, height int) Grid {
	g := make(Grid, width)
	for x := range g {
		g[x] = make([][]ClientID, height)
		for y := range g[x] {
			cell := make([]ClientID, capacity)
			for i := range cell {
				cell[i] = EmptySlot
			}
			g[x][y] = cell
		}
	}
	return g
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for x := range g {
		out[x] = make([][]ClientID, len(g[x]))
		for y := range g[x] {
			out[x][y] = append([]ClientID(nil), g[x][y]...)
		}
	}
	return out
}

// Occupied counts the slots holding a client.
func (g Grid) Occupied() int {
	n := 0
	for x := range g {
		for y := range g[x] {
			for _, id := range g[x][y] {
				if id != EmptySlot {
					n++
				}
			}
		}
	}
	return n
}

// Area owns the occupancy grid. It knows nothing about movement; it stores
// clients per cell and enforces the per-cell capacity.
//
// Coordinates passed to Remove, Place and IsFree must lie inside the grid.
type Area struct {
	capacity int
	width    int
	height   int
	grid     Grid
}

// NewArea returns an empty area. Dimensions are fixed for the lifetime of the area.
func NewArea(capacity, width, height int) *Area {
	return &Area{
		capacity: capacity,
		width:    width,
		height:   height,
		grid:     NewGrid(capacity, width, height),
	}
}

// Capacity returns the number of slots per cell.
func (a *Area) Capacity() int { return a.capacity }

// Width returns the number of columns.
func (a *Area) Width() int { return a.width }

// Height returns the number of rows.
func (a *Area) Height() int { return a.height }

// Contains reports whether c names a cell of the area.
func (a *Area) Contains(c Coordinate) bool {
	return c.X >= 0 && c.X < a.width && c.Y >= 0 && c.Y < a.height
}

// Remove clears the slot holding id at the given cell.
func (a *Area) Remove(id ClientID, from Coordinate) error {
	cell := a.grid[from.X][from.Y]
	for i, occupant := range cell {
		if occupant == id {
			cell[i] = EmptySlot
			return nil
		}
	}
	return ErrIDNotFoundAtStart
}

// Place writes id into the first empty slot of the given cell.
func (a *Area) Place(id ClientID, to Coordinate) error {
	cell := a.grid[to.X][to.Y]
	for i, occupant := range cell {
		if occupant != EmptySlot {
			continue
		}
		if occupant == id {
			return ErrIDAlreadyPlaced
		}
		cell[i] = id
		return nil
	}
	return ErrNoEmptySpaceLeft
}

// Position returns the first cell holding id, scanning x, then y, then slot
// in ascending order.
func (a *Area) Position(id ClientID) (Coordinate, bool) {
	for x := range a.grid {
		for y := range a.grid[x] {
			for _, occupant := range a.grid[x][y] {
				if occupant == id {
					return NewCoordinate(x, y), true
				}
			}
		}
	}
	return UnsetCoordinate, false
}

// IsFree reports whether the cell has at least one empty slot.
func (a *Area) IsFree(at Coordinate) bool {
	for _, occupant := range a.grid[at.X][at.Y] {
		if occupant == EmptySlot {
			return true
		}
	}
	return false
}

// Occupants returns a copy of the slots of one cell.
func (a *Area) Occupants(at Coordinate) []ClientID {
	return append([]ClientID(nil), a.grid[at.X][at.Y]...)
}

// Grid returns a copy of the whole grid, for snapshotting.
func (a *Area) Grid() Grid {
	return a.grid.Clone()
}

// SetGrid replaces the whole grid, e.g. to restore a snapshot. The new grid
// must have the area's dimensions; it is copied in.
func (a *Area) SetGrid(g Grid) error {
	if len(g) != a.width {
		return fmt.Errorf("grid width %d does not match area width %d", len(g), a.width)
	}
	for x := range g {
		if len(g[x]) != a.height {
			return fmt.Errorf("grid column %d has height %d, want %d", x, len(g[x]), a.height)
		}
		for y := range g[x] {
			if len(g[x][y]) != a.capacity {
				return fmt.Errorf("grid cell (%d, %d) has %d slots, want %d", x, y, len(g[x][y]), a.capacity)
			}
		}
	}
	a.grid = g.Clone()
	return nil
}

// Clear empties every slot.
func (a *Area) Clear() {
	for x := range a.grid {
		for y := range a.grid[x] {
			for i := range a.grid[x][y] {
				a.grid[x][y][i] = EmptySlot
			}
		}
	}
}

const (
	areaBanner    = "############## AREA ###############"
	areaEndBanner = "############## AREA END ###############"
	cellWidth     = 5
)

// String renders the grid one row per y. Log scrapers depend on this layout.
func (a *Area) String() string {
	var b strings.Builder
	b.WriteString(areaBanner)
	b.WriteByte('\n')
	for y := 0; y < a.height; y++ {
		for x := 0; x < a.width; x++ {
			var slots strings.Builder
			for _, id := range a.grid[x][y] {
				fmt.Fprintf(&slots, " %d", id)
			}
			b.WriteByte('|')
			b.WriteString(center(slots.String(), cellWidth))
			b.WriteByte('|')
		}
		b.WriteByte('\n')
	}
	b.WriteString(areaEndBanner)
	b.WriteByte('\n')
	return b.String()
}

// center pads s with spaces to width, extra space going to the right.
func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
