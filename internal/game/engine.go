package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"go.uber.org/zap"
)

const (
	msgInvalidPlacement = "Invalid placement. Select an empty node on an unlocked circuit."
	msgNoTitansLeft     = "Invalid placement. You have no titans left to place."
	msgSelectOwnTitan   = "Select one of your own titans to move."
	msgInvalidMove      = "Invalid move. Titans can only move to adjacent empty nodes."
)

// Engine applies the Titans rules to a session. It holds no per-game state and
// may be shared by any number of sessions.
type Engine struct {
	topo   *board.Topology
	rules  Rules
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine validates the rules against the board and returns an engine.
func NewEngine(topo *board.Topology, r Rules, logger *zap.Logger) (*Engine, error) {
	if topo == nil {
		topo = board.Standard()
	}
	if err := r.Validate(topo); err != nil {
		return nil, err
	}
	r.InitialUnlocked = append([]board.Circuit(nil), r.InitialUnlocked...)
	return &Engine{
		topo:   topo,
		rules:  r,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Topology returns the board the engine plays on.
func (e *Engine) Topology() *board.Topology { return e.topo }

// Rules returns a copy of the engine's rules.
func (e *Engine) Rules() Rules {
	r := e.rules
	r.InitialUnlocked = append([]board.Circuit(nil), e.rules.InitialUnlocked...)
	return r
}

// NewState returns the starting position.
func (e *Engine) NewState() *GameState {
	return NewGameState(e.topo, e.rules)
}

// ValidatePlacement checks whether the current player may place at n.
// It never mutates st.
func (e *Engine) ValidatePlacement(st *GameState, n board.Node) error {
	if !e.topo.Contains(n) {
		return invalid(ErrUnknownNode, msgInvalidPlacement)
	}
	if st.Players[st.CurrentPlayer].TitansRemaining <= 0 {
		return invalid(ErrNoTitansLeft, msgNoTitansLeft)
	}
	if st.Board[n] != None {
		return invalid(ErrOccupied, msgInvalidPlacement)
	}
	if !st.IsUnlocked(n.Circuit) {
		return invalid(ErrCircuitLocked, msgInvalidPlacement)
	}
	return nil
}

// ValidateMove checks whether the current player may move from one node to another.
func (e *Engine) ValidateMove(st *GameState, from, to board.Node) error {
	if !e.topo.Contains(from) || !e.topo.Contains(to) {
		return invalid(ErrUnknownNode, msgInvalidMove)
	}
	if st.Board[from] != st.CurrentPlayer {
		return invalid(ErrNotYourTitan, msgSelectOwnTitan)
	}
	if st.Board[to] != None {
		return invalid(ErrOccupied, msgInvalidMove)
	}
	if !e.topo.Adjacent(from, to) {
		return invalid(ErrNotAdjacent, msgInvalidMove)
	}
	return nil
}

// applyPlacement runs the full placement pipeline. The caller has validated it.
func (e *Engine) applyPlacement(s *Session, n board.Node) {
	st := s.state
	p := st.CurrentPlayer

	s.history.Record(st)
	st.Board[n] = p
	st.updatePlayer(p, func(r *PlayerRecord) {
		r.TitansRemaining--
		r.TitansPlaced++
	})
	e.appendMove(st, p, MovePlacement, fmt.Sprintf("Placed titan at %s", n))

	evt := s.event(rules.EventTitanPlaced, p)
	evt.Node = n.String()
	s.emit(evt)

	if e.logger != nil {
		e.logger.Debug("titan placed",
			zap.String("game_id", s.ID),
			zap.String("player", p.String()),
			zap.String("node", n.String()),
		)
	}

	e.recomputeControlledEdges(s)
	if st.Ended() {
		return
	}
	e.unlockCircuits(s)
	e.eliminationSweep(s)
	if st.Ended() {
		return
	}
	e.checkWinConditions(s)
	if st.Ended() {
		return
	}

	placed := st.Players
	res := rules.AfterPlacement(placed[Red].TitansPlaced, placed[Blue].TitansPlaced, e.rules.TitansPerPlayer)
	if res.Next != st.Phase {
		e.setPhase(s, res.Next)
		s.status = fmt.Sprintf("All titans placed. %s player, move a titan.", title(st.CurrentPlayer))
	}
	if res.SwitchPlayer {
		e.switchPlayer(s)
	}
}

// applyMove runs the full movement pipeline. The caller has validated it.
func (e *Engine) applyMove(s *Session, from, to board.Node) {
	st := s.state
	p := st.CurrentPlayer

	s.history.Record(st)
	st.Board[to] = st.Board[from]
	st.Board[from] = None
	st.Selected = nil
	e.appendMove(st, p, MoveMovement, fmt.Sprintf("Moved titan from %s to %s", from, to))

	evt := s.event(rules.EventTitanMoved, p)
	evt.Node = from.String()
	evt.Target = to.String()
	s.emit(evt)

	e.recomputeControlledEdges(s)
	if st.Ended() {
		return
	}
	e.eliminationSweep(s)
	if st.Ended() {
		return
	}
	e.checkWinConditions(s)
	if st.Ended() {
		return
	}

	if rules.AfterMove().SwitchPlayer {
		e.switchPlayer(s)
	}
}

// recomputeControlledEdges rebuilds both players' controlled edge sets from the
// board and converts the difference against the previous sets into score.
// Running it twice without a board change is a no-op.
func (e *Engine) recomputeControlledEdges(s *Session) {
	st := s.state
	next := make(map[Player][]board.Edge, len(Players))
	for _, p := range Players {
		next[p] = make([]board.Edge, 0)
	}
	for _, edge := range e.topo.Edges() {
		a := st.Board[edge.A]
		if a != None && a == st.Board[edge.B] {
			next[a] = append(next[a], edge)
		}
	}

	prev := st.Controlled
	st.Controlled = next

	for _, p := range Players {
		gained, lost := diffEdges(prev[p], next[p])
		if w := e.sumWeights(gained); w > 0 {
			e.updateScore(s, p, w, true)
		}
		if w := e.sumWeights(lost); w > 0 {
			e.updateScore(s, p, w, false)
		}
	}
}

// updateScore adds or removes points, flooring at zero, then re-checks for a winner.
func (e *Engine) updateScore(s *Session, p Player, points int, gain bool) {
	st := s.state
	delta := points
	if !gain {
		delta = -points
	}
	st.updatePlayer(p, func(r *PlayerRecord) {
		r.Score += delta
		if r.Score < 0 {
			r.Score = 0
		}
	})

	evt := s.event(rules.EventScoreChanged, p)
	evt.Amount = delta
	evt.Metadata["score"] = fmt.Sprint(st.Players[p].Score)
	s.emit(evt)

	e.checkWinConditions(s)
}

// unlockCircuits opens the next circuit behind every fully occupied one.
func (e *Engine) unlockCircuits(s *Session) {
	st := s.state
	for _, c := range board.Circuits {
		next, ok := c.Next()
		if !ok || st.IsUnlocked(next) || !st.CircuitFull(e.topo, c) {
			continue
		}
		st.Unlocked = append(st.Unlocked, next)

		evt := s.event(rules.EventCircuitUnlocked, None)
		evt.Metadata["circuit"] = next.String()
		evt.Amount = len(st.Unlocked)
		evt.Message = fmt.Sprintf("The %s circuit is now unlocked!", next)
		s.emit(evt)
		s.status = evt.Message

		if e.logger != nil {
			e.logger.Info("circuit unlocked",
				zap.String("game_id", s.ID),
				zap.String("circuit", next.String()),
			)
		}
	}
}

// surrounded lists, in canonical order, every titan whose neighbours are all
// held by the opponent.
func (e *Engine) surrounded(st *GameState) []board.Node {
	var out []board.Node
	for _, n := range e.topo.Nodes() {
		occupant := st.Board[n]
		if occupant == None {
			continue
		}
		neighbors := e.topo.Neighbors(n)
		if len(neighbors) == 0 {
			continue
		}
		enemy := occupant.Opponent()
		trapped := true
		for _, m := range neighbors {
			if st.Board[m] != enemy {
				trapped = false
				break
			}
		}
		if trapped {
			out = append(out, n)
		}
	}
	return out
}

// eliminationSweep removes surrounded titans until none remain.
//
// Each pass decides its victims from the board as it stood when the pass
// began, so two titans that surround each other are removed together and the
// result does not depend on visiting order. Every removal is its own undo step.
// Once a bonus ends the game the remaining victims stay on the board.
func (e *Engine) eliminationSweep(s *Session) {
	st := s.state
	for !st.Ended() {
		victims := e.surrounded(st)
		if len(victims) == 0 {
			return
		}
		for _, n := range victims {
			if st.Ended() {
				return
			}
			victim := st.Board[n]
			captor := victim.Opponent()

			s.history.Record(st)
			st.Board[n] = None
			if st.Selected != nil && *st.Selected == n {
				st.Selected = nil
			}
			e.appendMove(st, captor, MoveElimination, fmt.Sprintf("Eliminated %s titan at %s", victim, n))

			evt := s.event(rules.EventTitanEliminated, captor)
			evt.Node = n.String()
			evt.Amount = e.rules.EliminationBonus
			evt.Metadata["victim"] = victim.String()
			s.emit(evt)

			if e.logger != nil {
				e.logger.Info("titan eliminated",
					zap.String("game_id", s.ID),
					zap.String("node", n.String()),
					zap.String("victim", victim.String()),
					zap.String("captor", captor.String()),
				)
			}

			e.updateScore(s, captor, e.rules.EliminationBonus, true)
			e.recomputeControlledEdges(s)
		}
	}
}

// checkWinConditions ends the game when the inner circuit is full or a player
// has reached the winning score. The first result sticks.
func (e *Engine) checkWinConditions(s *Session) {
	st := s.state
	if st.Ended() {
		return
	}

	if st.CircuitFull(e.topo, board.Inner) {
		e.end(s, compareScores(st, ReasonInnerCircuitFull))
		return
	}

	for _, p := range Players {
		if st.Players[p].Score >= e.rules.WinningScore {
			e.end(s, Outcome{Winner: p, Reason: ReasonScoreThreshold})
			return
		}
	}
}

// expireGame ends the game on the game timer regardless of board position.
func (e *Engine) expireGame(s *Session) {
	e.end(s, compareScores(s.state, ReasonGameTimer))
}

func compareScores(st *GameState, reason EndReason) Outcome {
	red, blue := st.Players[Red].Score, st.Players[Blue].Score
	switch {
	case red > blue:
		return Outcome{Winner: Red, Reason: reason}
	case blue > red:
		return Outcome{Winner: Blue, Reason: reason}
	default:
		return Outcome{Draw: true, Reason: reason}
	}
}

func (e *Engine) end(s *Session, outcome Outcome) {
	st := s.state
	if err := rules.Transition(st.Phase, rules.PhaseEnded); err != nil {
		if e.logger != nil {
			e.logger.Error("refusing to end game", zap.String("game_id", s.ID), zap.Error(err))
		}
		return
	}
	st.Phase = rules.PhaseEnded
	st.Selected = nil
	res := outcome
	st.Outcome = &res

	if outcome.Draw {
		s.status = "Game Over! The game ended in a draw!"
	} else {
		s.status = fmt.Sprintf("Game Over! %s player wins!", title(outcome.Winner))
	}

	evt := s.event(rules.EventGameEnded, outcome.Winner)
	evt.Message = s.status
	evt.Metadata["reason"] = outcome.Reason.String()
	evt.Metadata["draw"] = fmt.Sprint(outcome.Draw)
	for _, p := range Players {
		evt.Metadata[p.String()+"_score"] = fmt.Sprint(st.Players[p].Score)
	}
	s.emit(evt)

	if e.logger != nil {
		e.logger.Info("game ended",
			zap.String("game_id", s.ID),
			zap.String("winner", outcome.Winner.String()),
			zap.Bool("draw", outcome.Draw),
			zap.String("reason", outcome.Reason.String()),
			zap.Int("red_score", st.Players[Red].Score),
			zap.Int("blue_score", st.Players[Blue].Score),
		)
	}
}

func (e *Engine) setPhase(s *Session, next rules.Phase) {
	st := s.state
	if err := rules.Transition(st.Phase, next); err != nil {
		if e.logger != nil {
			e.logger.Error("phase change rejected", zap.String("game_id", s.ID), zap.Error(err))
		}
		return
	}
	prev := st.Phase
	st.Phase = next

	evt := s.event(rules.EventPhaseChanged, st.CurrentPlayer)
	evt.Metadata["from"] = prev.String()
	evt.Metadata["to"] = next.String()
	s.emit(evt)
}

// switchPlayer passes the turn and clears any selection.
func (e *Engine) switchPlayer(s *Session) {
	st := s.state
	st.CurrentPlayer = st.CurrentPlayer.Opponent()
	st.Selected = nil

	switch st.Phase {
	case rules.PhasePlacement:
		s.status = fmt.Sprintf("%s player, place a titan. (%d remaining)",
			title(st.CurrentPlayer), st.Players[st.CurrentPlayer].TitansRemaining)
	case rules.PhaseMovement:
		s.status = fmt.Sprintf("%s player, move a titan.", title(st.CurrentPlayer))
	}

	s.emit(s.event(rules.EventPlayerSwitched, st.CurrentPlayer))
}

func (e *Engine) appendMove(st *GameState, p Player, kind MoveKind, description string) {
	st.Moves[p] = append(st.Moves[p], MoveRecord{
		Description: description,
		Kind:        kind,
		Turn:        st.turnNumber(),
		Player:      p,
		Timestamp:   e.now(),
	})
}

func (e *Engine) sumWeights(edges []board.Edge) int {
	total := 0
	for _, edge := range edges {
		total += e.topo.Weight(edge)
	}
	return total
}

// diffEdges returns edges only in next (gained) and only in prev (lost).
func diffEdges(prev, next []board.Edge) (gained, lost []board.Edge) {
	before := make(map[board.Edge]struct{}, len(prev))
	for _, edge := range prev {
		before[edge] = struct{}{}
	}
	after := make(map[board.Edge]struct{}, len(next))
	for _, edge := range next {
		after[edge] = struct{}{}
		if _, ok := before[edge]; !ok {
			gained = append(gained, edge)
		}
	}
	for _, edge := range prev {
		if _, ok := after[edge]; !ok {
			lost = append(lost, edge)
		}
	}
	return gained, lost
}

func title(p Player) string {
	name := p.String()
	return strings.ToUpper(name[:1]) + name[1:]
}
