package server

import (
	"time"

	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"github.com/tia-game/titans-server-go/internal/game/watchers"
)

// GameView is the JSON shape of a game sent to clients.
type GameView struct {
	ID            string                `json:"id"`
	Board         map[string]string     `json:"board"`
	Players       map[string]PlayerView `json:"players"`
	CurrentPlayer string                `json:"current_player"`
	Phase         string                `json:"phase"`
	Selected      string                `json:"selected,omitempty"`
	Unlocked      []string              `json:"unlocked"`
	Controlled    map[string][]string   `json:"controlled"`
	Outcome       *OutcomeView          `json:"outcome,omitempty"`
	Status        string                `json:"status,omitempty"`
	Paused        bool                  `json:"paused"`
	Replaying     bool                  `json:"replaying"`
	UndoDepth     int                   `json:"undo_depth"`
	RedoDepth     int                   `json:"redo_depth"`
	Timers        *TimerView            `json:"timers,omitempty"`
	Stats         *StatsView            `json:"stats,omitempty"`
}

// StatsView summarizes what happened in a game, including undone actions.
type StatsView struct {
	Activity map[string]watchers.PlayerActivity `json:"activity"`
	Undos    int                                `json:"undos"`
	Redos    int                                `json:"redos"`
}

type PlayerView struct {
	Name            string     `json:"name,omitempty"`
	Score           int        `json:"score"`
	TitansPlaced    int        `json:"titans_placed"`
	TitansRemaining int        `json:"titans_remaining"`
	Moves           []MoveView `json:"moves"`
}

type MoveView struct {
	Description string    `json:"description"`
	Kind        string    `json:"kind"`
	Turn        int       `json:"turn"`
	Timestamp   time.Time `json:"timestamp"`
}

type OutcomeView struct {
	Winner string `json:"winner,omitempty"`
	Draw   bool   `json:"draw"`
	Reason string `json:"reason"`
}

// TimerView holds countdowns formatted as MM:SS.
type TimerView struct {
	Turn string `json:"turn"`
	Game string `json:"game"`
}

// ReplayView is one replay position.
type ReplayView struct {
	Step    int       `json:"step"`
	Total   int       `json:"total"`
	Playing bool      `json:"playing"`
	State   *GameView `json:"state,omitempty"`
}

// EventView is the JSON shape of a game event.
type EventView struct {
	Type      string            `json:"type"`
	Player    string            `json:"player,omitempty"`
	Node      string            `json:"node,omitempty"`
	Target    string            `json:"target,omitempty"`
	Amount    int               `json:"amount,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func newGameView(id string, st *game.GameState) *GameView {
	v := &GameView{
		ID:            id,
		Board:         make(map[string]string, len(st.Board)),
		Players:       make(map[string]PlayerView, len(game.Players)),
		CurrentPlayer: st.CurrentPlayer.String(),
		Phase:         st.Phase.String(),
		Unlocked:      make([]string, 0, len(st.Unlocked)),
		Controlled:    make(map[string][]string, len(game.Players)),
	}
	for n, p := range st.Board {
		owner := ""
		if p != game.None {
			owner = p.String()
		}
		v.Board[n.String()] = owner
	}
	for _, p := range game.Players {
		rec := st.Players[p]
		pv := PlayerView{
			Score:           rec.Score,
			TitansPlaced:    rec.TitansPlaced,
			TitansRemaining: rec.TitansRemaining,
			Moves:           make([]MoveView, 0, len(st.Moves[p])),
		}
		for _, m := range st.Moves[p] {
			pv.Moves = append(pv.Moves, MoveView{
				Description: m.Description,
				Kind:        m.Kind.String(),
				Turn:        m.Turn,
				Timestamp:   m.Timestamp,
			})
		}
		v.Players[p.String()] = pv

		edges := make([]string, 0, len(st.Controlled[p]))
		for _, e := range st.Controlled[p] {
			edges = append(edges, e.String())
		}
		v.Controlled[p.String()] = edges
	}
	if st.Selected != nil {
		v.Selected = st.Selected.String()
	}
	for _, c := range st.Unlocked {
		v.Unlocked = append(v.Unlocked, c.String())
	}
	if st.Outcome != nil {
		v.Outcome = &OutcomeView{Draw: st.Outcome.Draw, Reason: st.Outcome.Reason.String()}
		if !st.Outcome.Draw {
			v.Outcome.Winner = st.Outcome.Winner.String()
		}
	}
	return v
}

func newReplayView(r *game.Replay, step int, st *game.GameState) *ReplayView {
	v := &ReplayView{Step: step, Total: r.TotalSteps(), Playing: r.Playing()}
	if st != nil {
		v.State = newGameView(r.GameID, st)
		v.State.Replaying = true
	}
	return v
}

func newEventView(evt rules.Event) *EventView {
	return &EventView{
		Type:      string(evt.Type),
		Player:    evt.Player,
		Node:      evt.Node,
		Target:    evt.Target,
		Amount:    evt.Amount,
		Message:   evt.Message,
		Timestamp: evt.Timestamp,
		Metadata:  evt.Metadata,
	}
}
