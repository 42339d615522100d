package config

import (
	"fmt"

	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/board"
)

// Rules converts the game section into engine rules.
func (g GameConfig) Rules() (game.Rules, error) {
	r := game.Rules{
		TitansPerPlayer:  g.TitansPerPlayer,
		WinningScore:     g.WinningScore,
		EliminationBonus: g.EliminationBonus,
	}
	for _, name := range g.InitialUnlocked {
		c, err := board.ParseCircuit(name)
		if err != nil {
			return game.Rules{}, &InvalidConfig{fmt.Sprintf("game.initial_unlocked: %v", err)}
		}
		r.InitialUnlocked = append(r.InitialUnlocked, c)
	}
	p, err := game.ParsePlayer(g.InitialPlayer)
	if err != nil {
		return game.Rules{}, &InvalidConfig{fmt.Sprintf("game.initial_player: %v", err)}
	}
	r.InitialPlayer = p

	if err := r.Validate(board.Standard()); err != nil {
		return game.Rules{}, &InvalidConfig{err.Error()}
	}
	return r, nil
}
