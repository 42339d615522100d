package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"go.uber.org/zap/zaptest"
)

// eventLog is a Notifier that keeps everything it is sent.
type eventLog struct {
	mu     sync.Mutex
	events []rules.Event
}

func (l *eventLog) Publish(evt rules.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

func (l *eventLog) types() []rules.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]rules.EventType, len(l.events))
	for i, evt := range l.events {
		out[i] = evt.Type
	}
	return out
}

func (l *eventLog) count(t rules.EventType) int {
	n := 0
	for _, got := range l.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func newTestSession(t *testing.T, r Rules) (*Session, *eventLog) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine, err := NewEngine(board.Standard(), r, logger)
	require.NoError(t, err)
	log := &eventLog{}
	return NewSession("test-game", engine, log, logger), log
}

func rulesWithTitans(n int) Rules {
	r := DefaultRules()
	r.TitansPerPlayer = n
	return r
}

func node(s string) board.Node {
	return board.MustParseNode(s)
}

// placeAll places titans alternately starting with the current player.
func placeAll(t *testing.T, s *Session, nodes ...string) {
	t.Helper()
	for _, n := range nodes {
		require.NoError(t, s.Place(node(n)), "placing at %s", n)
	}
}

// setBoard clears the board and puts titans on the given nodes, then brings the
// controlled edge sets in line without scoring them.
func setBoard(s *Session, red, blue []string) {
	st := s.state
	for n := range st.Board {
		st.Board[n] = None
	}
	for _, n := range red {
		st.Board[node(n)] = Red
	}
	for _, n := range blue {
		st.Board[node(n)] = Blue
	}
	for _, p := range Players {
		st.Controlled[p] = []board.Edge{}
	}
	for _, e := range s.engine.topo.Edges() {
		if a := st.Board[e.A]; a != None && a == st.Board[e.B] {
			st.Controlled[a] = append(st.Controlled[a], e)
		}
	}
}
