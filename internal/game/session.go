package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Notifier receives semantic game events. Publish must not block for long;
// it is called after the mutation that produced the events has committed.
type Notifier interface {
	Publish(rules.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(rules.Event) {}

// Session is one game: live state, undo/redo history and the collaborators that
// observe it. All methods are safe for concurrent use; each runs to completion,
// including elimination and win checks, before the next one starts.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine   *Engine
	notifier Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	state   *GameState
	history *History
	status  string
	paused  bool
	replay  *replayCapture
	pending []rules.Event
}

// replayCapture holds what ExitReplay restores.
type replayCapture struct {
	replay  *Replay
	state   *GameState
	history *History
}

// NewSession starts a game. A nil notifier discards events.
func NewSession(id string, engine *Engine, notifier Notifier, logger *zap.Logger) *Session {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		engine:    engine,
		notifier:  notifier,
		logger:    logger,
		state:     engine.NewState(),
		history:   NewHistory(),
	}
	s.status = startMessage(s.state)
	s.notifier.Publish(s.event(rules.EventGameStarted, s.state.CurrentPlayer))

	if logger != nil {
		logger.Info("game started",
			zap.String("game_id", id),
			zap.String("first_player", s.state.CurrentPlayer.String()),
		)
	}
	return s
}

func startMessage(st *GameState) string {
	return fmt.Sprintf("Game started! %s player, place your titan on the %s circuit.", title(st.CurrentPlayer), st.Unlocked[0])
}

// Click feeds a node selection from the presentation layer into the phase
// controller: placement during placement; select, deselect or move during movement.
func (s *Session) Click(n board.Node) error {
	return s.do(func() error {
		if err := s.guardPlay(); err != nil {
			return err
		}
		switch s.state.Phase {
		case rules.PhasePlacement:
			return s.place(n)
		case rules.PhaseMovement:
			return s.clickMovement(n)
		default:
			return ErrGameEnded
		}
	})
}

// Place puts a titan of the current player on n.
func (s *Session) Place(n board.Node) error {
	return s.do(func() error {
		if err := s.guardPlay(); err != nil {
			return err
		}
		if s.state.Phase != rules.PhasePlacement {
			return s.reject(invalid(ErrWrongPhase, "All titans are placed. Move a titan instead."))
		}
		return s.place(n)
	})
}

// Move moves a titan of the current player from one node to an adjacent empty one.
func (s *Session) Move(from, to board.Node) error {
	return s.do(func() error {
		if err := s.guardPlay(); err != nil {
			return err
		}
		if s.state.Phase != rules.PhaseMovement {
			return s.reject(invalid(ErrWrongPhase, "Titans cannot move until all titans are placed."))
		}
		if err := s.engine.ValidateMove(s.state, from, to); err != nil {
			return s.reject(err)
		}
		s.engine.applyMove(s, from, to)
		return nil
	})
}

func (s *Session) place(n board.Node) error {
	if err := s.engine.ValidatePlacement(s.state, n); err != nil {
		return s.reject(err)
	}
	s.engine.applyPlacement(s, n)
	return nil
}

func (s *Session) clickMovement(n board.Node) error {
	st := s.state
	if st.Selected == nil {
		if !s.engine.topo.Contains(n) || st.Board[n] != st.CurrentPlayer {
			return s.reject(invalid(ErrNotYourTitan, msgSelectOwnTitan))
		}
		sel := n
		st.Selected = &sel
		s.status = fmt.Sprintf("Select a destination for your titan from %s", n)

		evt := s.event(rules.EventTitanSelected, st.CurrentPlayer)
		evt.Node = n.String()
		s.emit(evt)
		return nil
	}

	from := *st.Selected
	if err := s.engine.ValidateMove(st, from, n); err == nil {
		s.engine.applyMove(s, from, n)
		return nil
	}
	if n == from {
		st.Selected = nil
		s.status = fmt.Sprintf("%s player, select a titan to move", title(st.CurrentPlayer))

		evt := s.event(rules.EventTitanDeselected, st.CurrentPlayer)
		evt.Node = n.String()
		s.emit(evt)
		return nil
	}
	return s.reject(invalid(ErrNotAdjacent, msgInvalidMove))
}

// reject records a refused action without touching the game state.
func (s *Session) reject(err error) error {
	s.status = err.Error()
	evt := s.event(rules.EventInvalidMove, s.state.CurrentPlayer)
	evt.Message = s.status
	s.emit(evt)
	return err
}

// Undo steps back one history entry. The bool is false at the initial position.
func (s *Session) Undo() (bool, error) {
	var ok bool
	err := s.do(func() error {
		if err := s.guardHistory(); err != nil {
			return err
		}
		ok = s.history.Undo(s.state)
		if ok {
			s.status = "Move undone."
			s.emit(s.event(rules.EventUndo, s.state.CurrentPlayer))
		}
		return nil
	})
	return ok, err
}

// Redo re-applies the last undone entry. The bool is false when there is nothing to redo.
func (s *Session) Redo() (bool, error) {
	var ok bool
	err := s.do(func() error {
		if err := s.guardHistory(); err != nil {
			return err
		}
		ok = s.history.Redo(s.state)
		if ok {
			s.status = "Move redone."
			s.emit(s.event(rules.EventRedo, s.state.CurrentPlayer))
		}
		return nil
	})
	return ok, err
}

// ExpireTurn passes the turn to the opponent without consuming a move.
func (s *Session) ExpireTurn() error {
	return s.do(func() error {
		if err := s.guardPlay(); err != nil {
			return err
		}
		s.emit(s.event(rules.EventTurnExpired, s.state.CurrentPlayer))
		s.engine.switchPlayer(s)
		return nil
	})
}

// ExpireGame ends the game on time: the higher score wins, equal scores draw.
func (s *Session) ExpireGame() error {
	return s.do(func() error {
		if err := s.guardPlay(); err != nil {
			return err
		}
		s.engine.expireGame(s)
		return nil
	})
}

// Pause suspends play until Resume.
func (s *Session) Pause() error {
	return s.do(func() error {
		if s.replay != nil {
			return ErrReplayActive
		}
		if s.state.Ended() {
			return ErrGameEnded
		}
		if s.paused {
			return nil
		}
		s.paused = true
		s.status = "Game paused."
		s.emit(s.event(rules.EventGamePaused, s.state.CurrentPlayer))
		return nil
	})
}

// Resume continues a paused game. A game paused before a replay stays paused
// until the replay is exited.
func (s *Session) Resume() error {
	return s.do(func() error {
		if s.replay != nil {
			return ErrReplayActive
		}
		if !s.paused {
			return nil
		}
		s.paused = false
		s.status = fmt.Sprintf("%s player, it is your turn.", title(s.state.CurrentPlayer))
		s.emit(s.event(rules.EventGameResumed, s.state.CurrentPlayer))
		return nil
	})
}

// Reset discards the game and starts a fresh one in place.
func (s *Session) Reset() {
	s.stopAutoplay()
	_ = s.do(func() error {
		s.replay = nil
		s.state.restore(s.engine.NewState())
		s.history.Clear()
		s.paused = false
		s.status = startMessage(s.state)
		s.emit(s.event(rules.EventGameReset, None))
		s.emit(s.event(rules.EventGameStarted, s.state.CurrentPlayer))

		if s.logger != nil {
			s.logger.Info("game reset", zap.String("game_id", s.ID))
		}
		return nil
	})
}

// View returns a deep copy of the live state.
func (s *Session) View() *GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Status returns the most recent user-facing message.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Paused reports whether play is suspended.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// HistoryDepth returns the sizes of the undo and redo stacks.
func (s *Session) HistoryDepth() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// Outcome returns the result of a finished game, nil while it is running.
func (s *Session) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Outcome == nil {
		return nil
	}
	res := *s.state.Outcome
	return &res
}

// Checksum hashes the live state.
func (s *Session) Checksum() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, err := s.state.ComputeChecksum()
	if err != nil {
		return "", err
	}
	return sum.Hash, nil
}

// ReplaySteps returns every recorded position followed by the live one.
func (s *Session) ReplaySteps() []*GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaySteps()
}

func (s *Session) replaySteps() []*GameState {
	return append(s.history.Snapshots(), s.state.Clone())
}

// StartReplay freezes the game and returns a replay over its history. Play is
// rejected until ExitReplay.
func (s *Session) StartReplay() (*Replay, error) {
	var r *Replay
	err := s.do(func() error {
		if s.replay != nil {
			return ErrReplayActive
		}
		r = NewReplay(s.ID, s.replaySteps())
		s.replay = &replayCapture{
			replay:  r,
			state:   s.state.Clone(),
			history: s.history.Clone(),
		}
		if s.logger != nil {
			s.logger.Info("replay started",
				zap.String("game_id", s.ID),
				zap.Int("steps", r.Size()),
			)
		}
		return nil
	})
	return r, err
}

// Replay returns the active replay.
func (s *Session) Replay() (*Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replay == nil {
		return nil, ErrNoReplay
	}
	return s.replay.replay, nil
}

// ExitReplay stops the replay and restores the state and history captured
// when it started.
func (s *Session) ExitReplay() error {
	s.stopAutoplay()
	return s.do(func() error {
		if s.replay == nil {
			return ErrNoReplay
		}
		s.state.restore(s.replay.state)
		s.history = s.replay.history
		s.replay = nil
		if s.logger != nil {
			s.logger.Info("replay exited", zap.String("game_id", s.ID))
		}
		return nil
	})
}

// stopAutoplay halts background replay playback without holding the session
// lock, so step callbacks may read the session.
func (s *Session) stopAutoplay() {
	if r, err := s.Replay(); err == nil {
		r.StopAutoplay()
	}
}

func (s *Session) guardPlay() error {
	switch {
	case s.replay != nil:
		return ErrReplayActive
	case s.state.Ended():
		return ErrGameEnded
	case s.paused:
		return ErrPaused
	}
	return nil
}

func (s *Session) guardHistory() error {
	switch {
	case s.replay != nil:
		return ErrReplayActive
	case s.state.Ended():
		return ErrGameEnded
	}
	return nil
}

// do runs fn under the session lock and publishes the events it produced
// once the lock is released.
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	err := fn()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, evt := range events {
		s.notifier.Publish(evt)
	}
	return err
}

func (s *Session) event(t rules.EventType, p Player) rules.Event {
	player := ""
	if p != None {
		player = p.String()
	}
	return rules.NewEvent(t, s.ID, player)
}

func (s *Session) emit(evt rules.Event) {
	s.pending = append(s.pending, evt)
}
