package notation

import (
	"errors"
	"fmt"

	"github.com/tia-game/titans-server-go/internal/game/board"
	"go.uber.org/zap"
)

// Target is what a script drives. *game.Session satisfies it.
type Target interface {
	Place(n board.Node) error
	Move(from, to board.Node) error
	Click(n board.Node) error
	Undo() (bool, error)
	Redo() (bool, error)
	ExpireTurn() error
	ExpireGame() error
	Pause() error
	Resume() error
	Reset()
}

// Runner executes scripts against a target.
type Runner struct {
	logger *zap.Logger

	// ContinueOnError keeps going after a rejected command; the errors are
	// joined and returned at the end.
	ContinueOnError bool
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run executes every command in order.
func (r *Runner) Run(target Target, script *Script) error {
	var errs []error
	for _, c := range script.Commands {
		err := apply(target, c)
		if err == nil {
			r.logger.Debug("command applied", zap.String("command", c.String()), zap.Int("line", c.Pos.Line))
			continue
		}
		err = fmt.Errorf("line %d: %s: %w", c.Pos.Line, c, err)
		if !r.ContinueOnError {
			return err
		}
		r.logger.Warn("command rejected", zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func apply(t Target, c *Command) error {
	switch {
	case c.Place != nil:
		n, err := c.Place.Node()
		if err != nil {
			return err
		}
		return t.Place(n)
	case c.Click != nil:
		n, err := c.Click.Node()
		if err != nil {
			return err
		}
		return t.Click(n)
	case c.Move != nil:
		from, err := c.Move.From.Node()
		if err != nil {
			return err
		}
		to, err := c.Move.To.Node()
		if err != nil {
			return err
		}
		return t.Move(from, to)
	case c.Undo:
		_, err := t.Undo()
		return err
	case c.Redo:
		_, err := t.Redo()
		return err
	case c.Expire == "turn":
		return t.ExpireTurn()
	case c.Expire == "game":
		return t.ExpireGame()
	case c.Pause:
		return t.Pause()
	case c.Resume:
		return t.Resume()
	case c.Reset:
		t.Reset()
		return nil
	}
	return fmt.Errorf("empty command")
}
