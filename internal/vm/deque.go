package vm

// deque is the machine's data store: one double-ended queue of int64
// shared by both stack disciplines. Left maps to the front, Right to
// the back.
//
// Backed by a plain slice. Front pops reslice the head and back pops
// truncate the tail; front pushes shift, which is fine for the deque
// depths programs actually reach.
type deque struct {
	items []int64
}

// push adds a value to the end selected by dir.
func (d *deque) push(dir Direction, v int64) {
	if dir == Left {
		d.items = append(d.items, 0)
		copy(d.items[1:], d.items)
		d.items[0] = v
		return
	}
	d.items = append(d.items, v)
}

// pop removes and returns the value at the end selected by dir.
// Returns false if the deque is empty.
func (d *deque) pop(dir Direction) (int64, bool) {
	if len(d.items) == 0 {
		return 0, false
	}
	var v int64
	if dir == Left {
		v = d.items[0]
		d.items = d.items[1:]
	} else {
		v = d.items[len(d.items)-1]
		d.items = d.items[:len(d.items)-1]
	}
	return v, true
}

// len returns the number of stored values.
func (d *deque) len() int {
	return len(d.items)
}

// snapshot returns a copy of the contents, front to back. Used by the
// trace opcode and the step observer.
func (d *deque) snapshot() []int64 {
	out := make([]int64, len(d.items))
	copy(out, d.items)
	return out
}
