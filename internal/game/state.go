package game

import (
	"fmt"
	"time"

	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/game/rules"
)

// Player identifies a side. None marks an empty node.
type Player int

const (
	None Player = iota
	Red
	Blue
)

// Players lists the two sides in turn order.
var Players = []Player{Red, Blue}

func (p Player) String() string {
	switch p {
	case Red:
		return "red"
	case Blue:
		return "blue"
	default:
		return "none"
	}
}

// Opponent returns the other side. None has no opponent.
func (p Player) Opponent() Player {
	switch p {
	case Red:
		return Blue
	case Blue:
		return Red
	default:
		return None
	}
}

// ParsePlayer accepts "red" or "blue".
func ParsePlayer(s string) (Player, error) {
	switch s {
	case "red":
		return Red, nil
	case "blue":
		return Blue, nil
	default:
		return None, fmt.Errorf("unknown player %q", s)
	}
}

// PlayerRecord holds per-player counters.
// TitansPlaced + TitansRemaining always equals the per-player quota.
type PlayerRecord struct {
	Score           int
	TitansPlaced    int
	TitansRemaining int
}

// MoveKind classifies entries of the move log.
type MoveKind int

const (
	MovePlacement MoveKind = iota
	MoveMovement
	MoveElimination
)

func (k MoveKind) String() string {
	switch k {
	case MovePlacement:
		return "placement"
	case MoveMovement:
		return "movement"
	case MoveElimination:
		return "elimination"
	default:
		return "unknown"
	}
}

// MoveRecord is one line of a player's move log.
type MoveRecord struct {
	Description string
	Kind        MoveKind
	Turn        int
	Player      Player
	Timestamp   time.Time
}

// EndReason tells why a game ended.
type EndReason int

const (
	ReasonNone EndReason = iota
	ReasonInnerCircuitFull
	ReasonScoreThreshold
	ReasonGameTimer
)

func (r EndReason) String() string {
	switch r {
	case ReasonInnerCircuitFull:
		return "inner_circuit_full"
	case ReasonScoreThreshold:
		return "score_threshold"
	case ReasonGameTimer:
		return "game_timer"
	default:
		return "none"
	}
}

// Outcome is the result of a finished game. Winner is None on a draw.
type Outcome struct {
	Winner Player
	Draw   bool
	Reason EndReason
}

// GameState is the complete live state of one game.
// All fields are exported so snapshots can be gob-encoded for replay files.
type GameState struct {
	Board         map[board.Node]Player
	Players       map[Player]PlayerRecord
	CurrentPlayer Player
	Phase         rules.Phase
	Selected      *board.Node
	Unlocked      []board.Circuit
	Controlled    map[Player][]board.Edge
	Moves         map[Player][]MoveRecord
	Outcome       *Outcome
}

// NewGameState builds the starting position for the given rules.
func NewGameState(topo *board.Topology, r Rules) *GameState {
	st := &GameState{
		Board:         make(map[board.Node]Player, len(topo.Nodes())),
		Players:       make(map[Player]PlayerRecord, len(Players)),
		CurrentPlayer: r.InitialPlayer,
		Phase:         rules.PhasePlacement,
		Unlocked:      append([]board.Circuit(nil), r.InitialUnlocked...),
		Controlled:    make(map[Player][]board.Edge, len(Players)),
		Moves:         make(map[Player][]MoveRecord, len(Players)),
	}
	for _, n := range topo.Nodes() {
		st.Board[n] = None
	}
	for _, p := range Players {
		st.Players[p] = PlayerRecord{TitansRemaining: r.TitansPerPlayer}
		st.Controlled[p] = []board.Edge{}
		st.Moves[p] = []MoveRecord{}
	}
	return st
}

// Clone returns a deep copy sharing no mutable memory with st.
func (st *GameState) Clone() *GameState {
	out := &GameState{
		Board:         make(map[board.Node]Player, len(st.Board)),
		Players:       make(map[Player]PlayerRecord, len(st.Players)),
		CurrentPlayer: st.CurrentPlayer,
		Phase:         st.Phase,
		Unlocked:      append([]board.Circuit{}, st.Unlocked...),
		Controlled:    make(map[Player][]board.Edge, len(st.Controlled)),
		Moves:         make(map[Player][]MoveRecord, len(st.Moves)),
	}
	for n, p := range st.Board {
		out.Board[n] = p
	}
	for p, rec := range st.Players {
		out.Players[p] = rec
	}
	for p, edges := range st.Controlled {
		out.Controlled[p] = append([]board.Edge{}, edges...)
	}
	for p, moves := range st.Moves {
		out.Moves[p] = append([]MoveRecord{}, moves...)
	}
	if st.Selected != nil {
		sel := *st.Selected
		out.Selected = &sel
	}
	if st.Outcome != nil {
		res := *st.Outcome
		out.Outcome = &res
	}
	return out
}

// restore overwrites st in place with a copy of snap, keeping st's identity.
func (st *GameState) restore(snap *GameState) {
	*st = *snap.Clone()
}

// Occupant returns who holds n.
func (st *GameState) Occupant(n board.Node) Player {
	return st.Board[n]
}

// Score returns the score of p.
func (st *GameState) Score(p Player) int {
	return st.Players[p].Score
}

// IsUnlocked reports whether titans may be placed on circuit c.
func (st *GameState) IsUnlocked(c board.Circuit) bool {
	for _, u := range st.Unlocked {
		if u == c {
			return true
		}
	}
	return false
}

// CircuitFull reports whether every node of c is occupied.
func (st *GameState) CircuitFull(topo *board.Topology, c board.Circuit) bool {
	for _, n := range topo.CircuitNodes(c) {
		if st.Board[n] == None {
			return false
		}
	}
	return true
}

// Ended reports whether the game has finished.
func (st *GameState) Ended() bool {
	return st.Phase == rules.PhaseEnded
}

// turnNumber is the value stamped on move records.
func (st *GameState) turnNumber() int {
	return st.Players[Red].TitansPlaced + st.Players[Blue].TitansPlaced
}

func (st *GameState) updatePlayer(p Player, fn func(*PlayerRecord)) {
	rec := st.Players[p]
	fn(&rec)
	st.Players[p] = rec
}
