// Package timer drives the per-turn and per-game countdowns of a session.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTurn = 30 * time.Second
	DefaultGame = 600 * time.Second

	step = time.Second
)

// Sink receives expiry notifications. Session satisfies it.
type Sink interface {
	ExpireTurn() error
	ExpireGame() error
}

// Clock counts down a turn timer and a game timer in whole seconds. Tick
// advances it by one second; Run calls Tick once per second until ctx ends.
//
// When the turn timer reaches zero the sink's ExpireTurn is called and the
// turn timer restarts. When the game timer reaches zero ExpireGame is called
// and the clock stops until Restart.
type Clock struct {
	sink   Sink
	logger *zap.Logger
	turn   time.Duration
	game   time.Duration

	mu       sync.Mutex
	turnLeft time.Duration
	gameLeft time.Duration
	paused   bool
	stopped  bool
}

// New returns a running clock. Durations under one second fall back to the defaults.
func New(sink Sink, turn, game time.Duration, logger *zap.Logger) *Clock {
	if turn < step {
		turn = DefaultTurn
	}
	if game < step {
		game = DefaultGame
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clock{
		sink:     sink,
		logger:   logger,
		turn:     turn,
		game:     game,
		turnLeft: turn,
		gameLeft: game,
	}
}

// Tick advances both countdowns by one second and fires expiries.
func (c *Clock) Tick() {
	c.mu.Lock()
	if c.paused || c.stopped {
		c.mu.Unlock()
		return
	}
	c.turnLeft -= step
	c.gameLeft -= step

	gameOver := c.gameLeft <= 0
	turnOver := !gameOver && c.turnLeft <= 0
	if gameOver {
		c.gameLeft = 0
		c.stopped = true
	}
	if turnOver {
		c.turnLeft = c.turn
	}
	c.mu.Unlock()

	// the sink may call back into the clock
	switch {
	case gameOver:
		c.logger.Info("game timer expired")
		if err := c.sink.ExpireGame(); err != nil {
			// retry on the next tick
			c.logger.Debug("game expiry rejected", zap.Error(err))
			c.mu.Lock()
			if c.gameLeft <= 0 {
				c.stopped = false
			}
			c.mu.Unlock()
		}
	case turnOver:
		c.logger.Debug("turn timer expired")
		if err := c.sink.ExpireTurn(); err != nil {
			c.logger.Debug("turn expiry ignored", zap.Error(err))
		}
	}
}

// Run ticks once per second until ctx is done. A stopped clock keeps its
// goroutine so Restart can bring it back.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// ResetTurn restarts the turn countdown, typically on a player switch.
func (c *Clock) ResetTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnLeft = c.turn
}

// Restart rewinds both countdowns and clears pause and stop.
func (c *Clock) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnLeft = c.turn
	c.gameLeft = c.game
	c.paused = false
	c.stopped = false
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Stop freezes the clock until Restart, e.g. once the game has ended.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Clock) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Remaining returns what is left on the turn and game countdowns.
func (c *Clock) Remaining() (turn, game time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnLeft, c.gameLeft
}

// Format renders d as MM:SS.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
