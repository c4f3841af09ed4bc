package traffic

// MovementNotPossible is the single failure kind of the grid and the planner.
// The message is part of the observable contract.
type MovementNotPossible struct {
	Message string
}

func (e *MovementNotPossible) Error() string {
	return e.Message
}

// Is matches any MovementNotPossible carrying the same message, so callers can
// use errors.Is against the package values below.
func (e *MovementNotPossible) Is(target error) bool {
	t, ok := target.(*MovementNotPossible)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func movementNotPossible(msg string) *MovementNotPossible {
	return &MovementNotPossible{Message: msg}
}

var (
	// ErrIDNotFoundAtStart is returned by Remove when the id is not in the cell.
	ErrIDNotFoundAtStart = movementNotPossible("id not found at start")
	// ErrNoEmptySpaceLeft is returned by Place when every slot of the cell is taken.
	ErrNoEmptySpaceLeft = movementNotPossible("no empty space left")
	// ErrIDAlreadyPlaced is returned by Place when the id is EmptySlot itself,
	// the only value an empty slot can already hold.
	ErrIDAlreadyPlaced = movementNotPossible("id already placed at target position")
	// ErrClientAlreadyAvailable is returned by Start for an id already on the grid.
	ErrClientAlreadyAvailable = movementNotPossible("client already available")
	// ErrNoFreePosition is returned by Start when the entry column is full.
	ErrNoFreePosition = movementNotPossible("no free position found")
	// ErrClientNotAvailable is returned by MoveTo for an id not on the grid.
	ErrClientNotAvailable = movementNotPossible("client not available")
	// ErrTargetOutOfBounds is returned by MoveTo when the target is not a cell.
	ErrTargetOutOfBounds = movementNotPossible("target out of bounds")
)
