package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/tia-game/titans-server-go/internal/game/board"
)

// SerializationChecksum is a deterministic fingerprint of a game state.
type SerializationChecksum struct {
	Hash    string // SHA-256 of the canonical representation
	Version int
}

// ComputeChecksum hashes the state independently of map iteration order and
// of move timestamps, so equal positions always hash equally.
func (st *GameState) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write(st.canonical()); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: 1,
	}, nil
}

func (st *GameState) canonical() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s\n", st.CurrentPlayer, st.Phase)

	nodes := make([]board.Node, 0, len(st.Board))
	for n := range st.Board {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })
	for _, n := range nodes {
		fmt.Fprintf(&buf, "NODE:%s|%s\n", n, st.Board[n])
	}

	if st.Selected != nil {
		fmt.Fprintf(&buf, "SELECTED:%s\n", *st.Selected)
	}
	for _, c := range st.Unlocked {
		fmt.Fprintf(&buf, "UNLOCKED:%s\n", c)
	}

	for _, p := range Players {
		rec := st.Players[p]
		fmt.Fprintf(&buf, "PLAYER:%s|%d|%d|%d\n", p, rec.Score, rec.TitansPlaced, rec.TitansRemaining)

		edges := append([]board.Edge(nil), st.Controlled[p]...)
		sort.Slice(edges, func(i, j int) bool { return edges[i].Less(edges[j]) })
		for _, e := range edges {
			fmt.Fprintf(&buf, "  EDGE:%s\n", e)
		}
		for _, m := range st.Moves[p] {
			fmt.Fprintf(&buf, "  MOVE:%s|%s|%d\n", m.Kind, m.Description, m.Turn)
		}
	}

	if st.Outcome != nil {
		fmt.Fprintf(&buf, "OUTCOME:%s|%t|%s\n", st.Outcome.Winner, st.Outcome.Draw, st.Outcome.Reason)
	}
	return buf.Bytes()
}

// normalize replaces nil collections left by gob decoding with empty ones.
func (st *GameState) normalize() {
	if st.Board == nil {
		st.Board = make(map[board.Node]Player)
	}
	if st.Players == nil {
		st.Players = make(map[Player]PlayerRecord)
	}
	if st.Controlled == nil {
		st.Controlled = make(map[Player][]board.Edge)
	}
	if st.Moves == nil {
		st.Moves = make(map[Player][]MoveRecord)
	}
	if st.Unlocked == nil {
		st.Unlocked = []board.Circuit{}
	}
	for _, p := range Players {
		if _, ok := st.Players[p]; !ok {
			st.Players[p] = PlayerRecord{}
		}
		if st.Controlled[p] == nil {
			st.Controlled[p] = []board.Edge{}
		}
		if st.Moves[p] == nil {
			st.Moves[p] = []MoveRecord{}
		}
	}
}
