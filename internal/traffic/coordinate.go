package traffic

import "fmt"

// Coordinate is an (x, y) cell reference on the grid.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UnsetCoordinate is the default "no position" value. It never names a cell.
var UnsetCoordinate = Coordinate{X: -1, Y: -1}

// NewCoordinate returns the coordinate (x, y).
func NewCoordinate(x, y int) Coordinate {
	return Coordinate{X: x, Y: y}
}

// IsSet reports whether c is anything other than UnsetCoordinate.
func (c Coordinate) IsSet() bool {
	return c != UnsetCoordinate
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}
