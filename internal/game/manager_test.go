package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T) (*Manager, *eventLog) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine, err := NewEngine(board.Standard(), DefaultRules(), logger)
	require.NoError(t, err)
	log := &eventLog{}
	return NewManager(engine, log, logger), log
}

func TestManagerLifecycle(t *testing.T) {
	m, _ := newTestManager(t)

	a := m.CreateGame()
	b := m.CreateGame()
	assert.NotEqual(t, a.ID, b.ID)

	got, err := m.GetGame(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	games := m.ListGames()
	require.Len(t, games, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{games[0].ID, games[1].ID})
	assert.False(t, games[1].CreatedAt.Before(games[0].CreatedAt))

	require.NoError(t, m.RemoveGame(a.ID))
	_, err = m.GetGame(a.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, m.RemoveGame(a.ID), ErrGameNotFound)
	assert.Len(t, m.ListGames(), 1)
}

func TestManagerSessionsAreIndependent(t *testing.T) {
	m, log := newTestManager(t)

	a := m.CreateGame()
	b := m.CreateGame()
	require.NoError(t, a.Place(node("outer-0")))

	assert.Equal(t, Red, a.View().Board[node("outer-0")])
	assert.Equal(t, None, b.View().Board[node("outer-0")])
	assert.Same(t, m.Engine(), a.engine)

	assert.Equal(t, 2, log.count(rules.EventGameStarted))
}

func TestRemoveGameStopsAutoplay(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.CreateGame()
	require.NoError(t, s.Place(node("outer-0")))

	r, err := s.StartReplay()
	require.NoError(t, err)
	r.StartAutoplay(SpeedSlow, nil)
	require.True(t, r.Playing())

	require.NoError(t, m.RemoveGame(s.ID))
	assert.False(t, r.Playing())
}
