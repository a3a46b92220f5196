package crop

// DefaultHistoryDepth is how many snapshots a History keeps.
const DefaultHistoryDepth = 10

// History is a bounded linear undo/redo log of edit states. It is a value:
// every operation returns a new History and leaves the receiver untouched.
type History struct {
	states []EditState
	cursor int
	depth  int
}

// NewHistory returns an empty log holding at most depth snapshots.
// A non-positive depth means DefaultHistoryDepth.
func NewHistory(depth int) History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return History{cursor: -1, depth: depth}
}

func (h History) Len() int    { return len(h.states) }
func (h History) Cursor() int { return h.cursor }
func (h History) Depth() int  { return h.depth }

func (h History) CanUndo() bool { return h.cursor > 0 }
func (h History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.states)-1 }

// Current returns the state at the cursor.
func (h History) Current() (EditState, bool) {
	if h.cursor < 0 {
		return EditState{}, false
	}
	return h.states[h.cursor], true
}

// States returns a copy of the snapshots, oldest first.
func (h History) States() []EditState {
	return append([]EditState(nil), h.states...)
}

// Push drops every snapshot after the cursor, appends s and moves the cursor to it.
// When the log grows past its depth the oldest snapshot is evicted.
func (h History) Push(s EditState) History {
	if h.depth <= 0 {
		h.depth = DefaultHistoryDepth
	}
	next := make([]EditState, 0, min(h.cursor+2, h.depth+1))
	next = append(next, h.states[:h.cursor+1]...)
	next = append(next, s)
	if len(next) > h.depth {
		next = next[len(next)-h.depth:]
	}
	return History{states: next, cursor: len(next) - 1, depth: h.depth}
}

// Undo steps back one snapshot. At the first snapshot it is a no-op.
func (h History) Undo() (EditState, History) {
	if h.cursor <= 0 {
		s, _ := h.Current()
		return s, h
	}
	h.cursor--
	return h.states[h.cursor], h
}

// Redo steps forward one snapshot. At the last snapshot it is a no-op.
func (h History) Redo() (EditState, History) {
	if !h.CanRedo() {
		s, _ := h.Current()
		return s, h
	}
	h.cursor++
	return h.states[h.cursor], h
}
