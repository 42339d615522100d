package notation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"go.uber.org/zap/zaptest"
)

func newSession(t *testing.T, r game.Rules) *game.Session {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine, err := game.NewEngine(board.Standard(), r, logger)
	require.NoError(t, err)
	return game.NewSession("script", engine, nil, logger)
}

func TestParseEveryCommand(t *testing.T) {
	src := `
# opening
place outer-0; place outer-3
move outer-0 outer-1
click middle-2
undo
redo
expire turn
expire game
pause
resume
reset
`
	script, err := Parse("all.titans", src)
	require.NoError(t, err)
	require.Len(t, script.Commands, 11)

	assert.Equal(t, "place outer-0\nplace outer-3\nmove outer-0 outer-1\nclick middle-2\nundo\nredo\nexpire turn\nexpire game\npause\nresume\nreset", script.String())
	assert.Equal(t, 3, script.Commands[0].Pos.Line)
	assert.Equal(t, "outer-3", script.Commands[1].Place.ID)
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unknown verb":     "jump outer-0",
		"missing node":     "place",
		"bad expire":       "expire match",
		"half a move":      "move outer-0",
		"unknown circuit":  "place core-1",
		"not a node token": "click 7",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(name, src)
			assert.Error(t, err)
		})
	}
}

func TestRunScenario(t *testing.T) {
	s := newSession(t, game.DefaultRules())
	script, err := Parse("elimination", `
place outer-1
place outer-0
place outer-3
place outer-2   # blue traps red on outer-1
`)
	require.NoError(t, err)
	require.NoError(t, NewRunner(zaptest.NewLogger(t)).Run(s, script))

	st := s.View()
	assert.Equal(t, game.None, st.Board[board.MustParseNode("outer-1")])
	assert.Equal(t, 2, st.Players[game.Blue].Score)
}

func TestRunMovementByClicks(t *testing.T) {
	r := game.DefaultRules()
	r.TitansPerPlayer = 1
	s := newSession(t, r)

	script, err := Parse("clicks", "click outer-0; click outer-3; click outer-3; click outer-4")
	require.NoError(t, err)
	require.NoError(t, NewRunner(nil).Run(s, script))

	st := s.View()
	assert.Equal(t, rules.PhaseMovement, st.Phase)
	assert.Equal(t, game.Blue, st.Board[board.MustParseNode("outer-4")])
	assert.Equal(t, game.Red, st.CurrentPlayer)
}

func TestRunStopsAtFirstRejection(t *testing.T) {
	s := newSession(t, game.DefaultRules())
	script, err := Parse("bad", "place outer-0\nplace middle-0\nplace outer-3")
	require.NoError(t, err)

	err = NewRunner(nil).Run(s, script)
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrCircuitLocked)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, game.None, s.View().Board[board.MustParseNode("outer-3")])
}

func TestRunContinueOnError(t *testing.T) {
	s := newSession(t, game.DefaultRules())
	script, err := Parse("bad", "place outer-0\nplace middle-0\nplace outer-3\nexpire game\nundo")
	require.NoError(t, err)

	runner := NewRunner(nil)
	runner.ContinueOnError = true
	err = runner.Run(s, script)
	assert.ErrorIs(t, err, game.ErrCircuitLocked)
	assert.ErrorIs(t, err, game.ErrGameEnded)

	out := s.Outcome()
	require.NotNil(t, out)
	assert.True(t, out.Draw)
	assert.Equal(t, game.Blue, s.View().Board[board.MustParseNode("outer-3")])
}
