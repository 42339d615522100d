package rules

import (
	"errors"
	"fmt"
)

// Phase is the coarse stage of a Titans game.
type Phase int

const (
	PhasePlacement Phase = iota
	PhaseMovement
	PhaseEnded
)

var phaseNames = map[Phase]string{
	PhasePlacement: "PLACEMENT",
	PhaseMovement:  "MOVEMENT",
	PhaseEnded:     "ENDED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// ErrIllegalTransition is returned for phase changes the state machine forbids.
var ErrIllegalTransition = errors.New("illegal phase transition")

// transitions lists the allowed forward edges. Reset and undo bypass it.
var transitions = map[Phase][]Phase{
	PhasePlacement: {PhasePlacement, PhaseMovement, PhaseEnded},
	PhaseMovement:  {PhaseMovement, PhaseEnded},
	PhaseEnded:     nil,
}

// Transition validates a forward phase change.
func Transition(from, to Phase) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// Accepting reports whether the phase still takes moves.
func (p Phase) Accepting() bool {
	return p == PhasePlacement || p == PhaseMovement
}

// TurnResult describes what follows a completed action.
type TurnResult struct {
	Next         Phase
	SwitchPlayer bool
}

// AfterPlacement decides the turn outcome once a titan has been placed.
// Movement starts when both players have placed their full quota, and the
// player who completed it keeps the move.
func AfterPlacement(placedA, placedB, quota int) TurnResult {
	if placedA >= quota && placedB >= quota {
		return TurnResult{Next: PhaseMovement}
	}
	return TurnResult{Next: PhasePlacement, SwitchPlayer: true}
}

// AfterMove decides the turn outcome of a completed movement.
func AfterMove() TurnResult {
	return TurnResult{Next: PhaseMovement, SwitchPlayer: true}
}
