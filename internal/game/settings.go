package game

import (
	"errors"
	"fmt"

	"github.com/tia-game/titans-server-go/internal/game/board"
)

var ErrInvalidRules = errors.New("invalid rules")

// Rules are the per-game constants fixed at start-up.
type Rules struct {
	TitansPerPlayer  int
	WinningScore     int
	EliminationBonus int
	InitialUnlocked  []board.Circuit
	InitialPlayer    Player
}

// DefaultRules returns the standard Titans settings.
func DefaultRules() Rules {
	return Rules{
		TitansPerPlayer:  4,
		WinningScore:     20,
		EliminationBonus: 2,
		InitialUnlocked:  []board.Circuit{board.Outer},
		InitialPlayer:    Red,
	}
}

// Validate checks the rules against the board they will be played on.
func (r Rules) Validate(topo *board.Topology) error {
	switch {
	case r.TitansPerPlayer <= 0:
		return fmt.Errorf("%w: titans per player must be positive", ErrInvalidRules)
	case 2*r.TitansPerPlayer > len(topo.Nodes()):
		return fmt.Errorf("%w: %d titans per player do not fit on %d nodes", ErrInvalidRules, r.TitansPerPlayer, len(topo.Nodes()))
	case r.WinningScore <= 0:
		return fmt.Errorf("%w: winning score must be positive", ErrInvalidRules)
	case r.EliminationBonus < 0:
		return fmt.Errorf("%w: elimination bonus must not be negative", ErrInvalidRules)
	case len(r.InitialUnlocked) == 0:
		return fmt.Errorf("%w: at least one circuit must start unlocked", ErrInvalidRules)
	case r.InitialPlayer != Red && r.InitialPlayer != Blue:
		return fmt.Errorf("%w: initial player must be red or blue", ErrInvalidRules)
	}
	return nil
}
