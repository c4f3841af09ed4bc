package traffic

import "sync"

// Controller serialises access to a ControlLogic for callers on more than one
// goroutine. Each method holds the lock for the whole command, so a move's
// remove and place happen in one critical section.
type Controller struct {
	mu    sync.Mutex
	logic *ControlLogic
}

// NewController wraps logic. The caller must not use logic directly afterwards.
func NewController(logic *ControlLogic) *Controller {
	return &Controller{logic: logic}
}

// Start admits id on the entry column.
func (c *Controller) Start(id ClientID) (Coordinate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logic.Start(id)
}

// MoveTo advances id one step toward target.
func (c *Controller) MoveTo(id ClientID, target Coordinate) (Coordinate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logic.MoveTo(id, target)
}

// Position reports where id is.
func (c *Controller) Position(id ClientID) (Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logic.TrafficArea().Position(id)
}

// IsFree reports whether the cell has room. Out-of-bounds cells are never free.
func (c *Controller) IsFree(at Coordinate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	area := c.logic.TrafficArea()
	return area.Contains(at) && area.IsFree(at)
}

// Contains reports whether at names a cell.
func (c *Controller) Contains(at Coordinate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logic.TrafficArea().Contains(at)
}

// Grid returns a copy of the grid.
func (c *Controller) Grid() Grid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logic.TrafficArea().Grid()
}

// SetGrid replaces the grid.
func (c *Controller) SetGrid(g Grid) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logic.TrafficArea().SetGrid(g)
}

// Clear empties the grid.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logic.TrafficArea().Clear()
}

// Dump returns the text rendering of the grid.
func (c *Controller) Dump() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logic.TrafficArea().String()
}

// Dimensions returns capacity, width and height.
func (c *Controller) Dimensions() (capacity, width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.logic.TrafficArea()
	return a.Capacity(), a.Width(), a.Height()
}

// Do runs fn with the lock held, for compound operations such as persisting
// or restoring a snapshot.
func (c *Controller) Do(fn func(*ControlLogic) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.logic)
}
