package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tia-game/titans-server-go/internal/game/rules"
)

func checksum(t *testing.T, st *GameState) string {
	t.Helper()
	sum, err := st.ComputeChecksum()
	require.NoError(t, err)
	return sum.Hash
}

func TestUndoRestoresPreviousPosition(t *testing.T) {
	s, log := newTestSession(t, DefaultRules())
	placeAll(t, s, "outer-0", "outer-3")

	before := s.View()
	require.NoError(t, s.Place(node("outer-1")))
	after := s.View()
	assert.NotEqual(t, checksum(t, before), checksum(t, after))

	ok, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, before, s.View())
	assert.Equal(t, 1, log.count(rules.EventUndo))

	ok, err = s.Redo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, after, s.View())
	assert.Equal(t, checksum(t, after), checksum(t, s.View()))
}

func TestUndoAtInitialPositionIsNoop(t *testing.T) {
	s, log := newTestSession(t, DefaultRules())
	initial := s.View()

	ok, err := s.Undo()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, initial, s.View())
	assert.Zero(t, log.count(rules.EventUndo))

	ok, err = s.Redo()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUndoWalksBackToStart(t *testing.T) {
	s, _ := newTestSession(t, DefaultRules())
	initial := s.View()
	placeAll(t, s, "outer-0", "outer-3", "outer-1", "outer-4")

	for i := 0; i < 4; i++ {
		ok, err := s.Undo()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, initial, s.View())

	undo, redo := s.HistoryDepth()
	assert.Equal(t, 0, undo)
	assert.Equal(t, 4, redo)
}

func TestFreshActionClearsRedo(t *testing.T) {
	s, _ := newTestSession(t, DefaultRules())
	placeAll(t, s, "outer-0", "outer-3")

	_, err := s.Undo()
	require.NoError(t, err)
	_, redo := s.HistoryDepth()
	require.Equal(t, 1, redo)

	require.NoError(t, s.Place(node("outer-4")))
	_, redo = s.HistoryDepth()
	assert.Equal(t, 0, redo)

	ok, err := s.Redo()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Blue, s.View().Board[node("outer-4")])
}

func TestUndoSplitsEliminationFromPlacement(t *testing.T) {
	s, _ := newTestSession(t, DefaultRules())
	placeAll(t, s, "outer-1", "outer-0", "outer-3", "outer-2")
	require.Equal(t, None, s.View().Board[node("outer-1")])

	// first undo brings the eliminated titan back, second removes the placement
	_, err := s.Undo()
	require.NoError(t, err)
	st := s.View()
	assert.Equal(t, Red, st.Board[node("outer-1")])
	assert.Equal(t, Blue, st.Board[node("outer-2")])
	assert.Equal(t, 0, st.Players[Blue].Score)

	_, err = s.Undo()
	require.NoError(t, err)
	st = s.View()
	assert.Equal(t, None, st.Board[node("outer-2")])
	assert.Equal(t, Blue, st.CurrentPlayer)
}

func TestHistoryCloneIsIndependent(t *testing.T) {
	s, _ := newTestSession(t, DefaultRules())
	st := s.engine.NewState()

	h := NewHistory()
	h.Record(st)
	st.Board[node("outer-0")] = Red

	c := h.Clone()
	require.True(t, h.Undo(st))
	assert.Equal(t, None, st.Board[node("outer-0")])

	assert.True(t, c.CanUndo())
	assert.False(t, c.CanRedo())
	assert.True(t, h.CanRedo())

	c.Clear()
	undo, redo := c.Len()
	assert.Zero(t, undo)
	assert.Zero(t, redo)
	assert.True(t, h.CanRedo())
}

func TestSnapshotsAreCopies(t *testing.T) {
	s, _ := newTestSession(t, DefaultRules())
	placeAll(t, s, "outer-0")

	snaps := s.history.Snapshots()
	require.Len(t, snaps, 1)
	snaps[0].Board[node("outer-5")] = Blue

	assert.Equal(t, None, s.history.Snapshots()[0].Board[node("outer-5")])
}
