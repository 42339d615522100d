package game

import "errors"

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameEnded    = errors.New("game has ended")
	ErrPaused       = errors.New("game is paused")
	ErrReplayActive = errors.New("replay in progress")
	ErrNoReplay     = errors.New("no replay in progress")

	ErrNoTitansLeft  = errors.New("no titans left to place")
	ErrOccupied      = errors.New("node is occupied")
	ErrCircuitLocked = errors.New("circuit is locked")
	ErrNotYourTitan  = errors.New("node does not hold a titan of the current player")
	ErrNotAdjacent   = errors.New("nodes are not adjacent")
	ErrWrongPhase    = errors.New("action not allowed in this phase")
	ErrUnknownNode   = errors.New("unknown node")
)

// InvalidActionError is a rejected user action. Message is suitable for display;
// Reason is one of the sentinel errors above.
type InvalidActionError struct {
	Reason  error
	Message string
}

func (e *InvalidActionError) Error() string {
	return e.Message
}

func (e *InvalidActionError) Unwrap() error {
	return e.Reason
}

func invalid(reason error, message string) *InvalidActionError {
	return &InvalidActionError{Reason: reason, Message: message}
}

// IsInvalidAction reports whether err is a rejected user action rather than a
// lifecycle or programming error.
func IsInvalidAction(err error) bool {
	var target *InvalidActionError
	return errors.As(err, &target)
}
