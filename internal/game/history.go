package game

// History is the snapshot-based undo/redo store of a session.
//
// The undo stack holds the state as it was before each mutating step, oldest
// first, so an empty stack means the live state is the initial position. Every
// fresh step clears the redo stack; Undo and Redo never do.
type History struct {
	undo []*GameState
	redo []*GameState
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Record snapshots live onto the undo stack and discards the redo branch.
func (h *History) Record(live *GameState) {
	h.undo = append(h.undo, live.Clone())
	h.redo = nil
}

// Undo moves live back one step. It is a no-op at the initial position.
func (h *History) Undo(live *GameState) bool {
	if len(h.undo) == 0 {
		return false
	}
	h.redo = append(h.redo, live.Clone())
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	live.restore(prev)
	return true
}

// Redo re-applies the most recently undone step. It is a no-op when nothing
// has been undone since the last fresh step.
func (h *History) Redo(live *GameState) bool {
	if len(h.redo) == 0 {
		return false
	}
	h.undo = append(h.undo, live.Clone())
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	live.restore(next)
	return true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }

func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the depth of both stacks.
func (h *History) Len() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

// Snapshots returns copies of the undo stack, oldest first.
func (h *History) Snapshots() []*GameState {
	out := make([]*GameState, len(h.undo))
	for i, st := range h.undo {
		out[i] = st.Clone()
	}
	return out
}

// Clone deep-copies both stacks.
func (h *History) Clone() *History {
	out := &History{
		undo: make([]*GameState, len(h.undo)),
		redo: make([]*GameState, len(h.redo)),
	}
	for i, st := range h.undo {
		out.undo[i] = st.Clone()
	}
	for i, st := range h.redo {
		out.redo[i] = st.Clone()
	}
	return out
}

// Clear empties both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}
