package vm

// Direction selects which end of the data deque an instruction
// operates on. It is a closed two-variant enum rather than a bool so
// call sites stay self-documenting.
type Direction int

const (
	// Left operates on the front of the deque.
	Left Direction = iota + 1
	// Right operates on the back of the deque.
	Right
)

// Invert returns the opposite direction. Total: every valid Direction
// has exactly one inverse.
func (d Direction) Invert() Direction {
	if d == Left {
		return Right
	}
	return Left
}

// String returns the lowercase direction name used in logs and the
// journal.
func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "invalid"
	}
}
