package traffic

import "gonum.org/v1/gonum/floats"

// EntryColumn is the column on which Start admits new clients.
const EntryColumn = 0

// ControlLogic admits clients and moves them one cell per call. It is the only
// holder of its Area and pairs every Remove with a Place so a client occupies
// exactly one cell between calls.
type ControlLogic struct {
	area *Area
}

// NewControlLogic takes ownership of area.
func NewControlLogic(area *Area) *ControlLogic {
	return &ControlLogic{area: area}
}

// TrafficArea returns the owned grid for introspection.
func (l *ControlLogic) TrafficArea() *Area {
	return l.area
}

// Start places id on the first free cell of the entry column, scanning y upward.
func (l *ControlLogic) Start(id ClientID) (Coordinate, error) {
	if _, ok := l.area.Position(id); ok {
		return UnsetCoordinate, ErrClientAlreadyAvailable
	}
	for y := 0; y < l.area.Height(); y++ {
		pos := NewCoordinate(EntryColumn, y)
		if !l.area.IsFree(pos) {
			continue
		}
		if err := l.area.Place(id, pos); err != nil {
			return UnsetCoordinate, err
		}
		return pos, nil
	}
	return UnsetCoordinate, ErrNoFreePosition
}

// MoveTo advances id by at most one cell toward target and returns where it
// ended up.
//
// The 3x3 neighbourhood (centre included) is scanned with the x offset in the
// outer loop, each axis clamped to the grid so edge cells fold back onto
// in-bounds cells. A free candidate replaces the best so far only when it is
// strictly closer, so ties go to the earliest cell scanned. When nothing is
// closer the client stays put.
func (l *ControlLogic) MoveTo(id ClientID, target Coordinate) (Coordinate, error) {
	current, ok := l.area.Position(id)
	if !ok {
		return UnsetCoordinate, ErrClientNotAvailable
	}
	if !l.area.Contains(target) {
		return current, ErrTargetOutOfBounds
	}

	best := current
	bestDistance := Distance(current, target)
	maxX, maxY := l.area.Width()-1, l.area.Height()-1

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			candidate := NewCoordinate(clamp(current.X+dx, 0, maxX), clamp(current.Y+dy, 0, maxY))
			if !l.area.IsFree(candidate) {
				continue
			}
			if d := Distance(candidate, target); d < bestDistance {
				bestDistance = d
				best = candidate
			}
		}
	}

	if err := l.area.Remove(id, current); err != nil {
		return UnsetCoordinate, err
	}
	if err := l.area.Place(id, best); err != nil {
		return UnsetCoordinate, err
	}
	return best, nil
}

// Distance is the Euclidean distance between two cells. Identical cells are
// exactly 0.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	return floats.Distance(
		[]float64{float64(a.X), float64(a.Y)},
		[]float64{float64(b.X), float64(b.Y)},
		2,
	)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
