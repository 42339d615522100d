// Package server exposes running Titans games over HTTP, websocket and gRPC.
// It owns the per-game timer clocks and reacts to game events by updating the
// clocks, feeding the leaderboard and archiving replays.
package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"github.com/tia-game/titans-server-go/internal/game/watchers"
	"github.com/tia-game/titans-server-go/internal/leaderboard"
	"github.com/tia-game/titans-server-go/internal/timer"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrTooManyGames = errors.New("too many active games")
	ErrUnauthorized = errors.New("unauthorized")
)

// Options tunes a Server.
type Options struct {
	TimersEnabled     bool
	TurnTimeout       time.Duration
	GameTimeout       time.Duration
	ReplaySpeed       time.Duration
	MaxGames          int
	AdminPasswordHash string
}

// Server coordinates games with their clocks and the outside world.
type Server struct {
	manager *game.Manager
	bus     *rules.EventBus
	board   *leaderboard.Leaderboard
	archive *game.ReplayArchive
	hub     *Hub
	opts    Options
	logger  *zap.Logger

	mu    sync.RWMutex
	games map[string]*gameEntry
}

// gameEntry is the server-side bookkeeping for one session.
type gameEntry struct {
	clock    *timer.Clock
	cancel   context.CancelFunc
	names    map[game.Player]string
	watchers *rules.WatcherRegistry
}

// New builds a server around engine. archive may be nil to skip saving replays.
func New(engine *game.Engine, board *leaderboard.Leaderboard, archive *game.ReplayArchive, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = timer.DefaultTurn
	}
	if opts.GameTimeout <= 0 {
		opts.GameTimeout = timer.DefaultGame
	}
	if opts.ReplaySpeed <= 0 {
		opts.ReplaySpeed = game.SpeedNormal
	}

	bus := rules.NewEventBus()
	s := &Server{
		manager: game.NewManager(engine, bus, logger),
		bus:     bus,
		board:   board,
		archive: archive,
		hub:     NewHub(logger),
		opts:    opts,
		logger:  logger,
		games:   make(map[string]*gameEntry),
	}

	bus.Subscribe(s.broadcastEvent)
	bus.Subscribe(s.notifyWatchers)
	bus.SubscribeTyped(rules.EventPlayerSwitched, s.withClock((*timer.Clock).ResetTurn))
	bus.SubscribeTyped(rules.EventGamePaused, s.withClock((*timer.Clock).Pause))
	bus.SubscribeTyped(rules.EventGameResumed, s.withClock((*timer.Clock).Resume))
	bus.SubscribeTyped(rules.EventGameReset, s.withClock((*timer.Clock).Restart))
	bus.SubscribeTyped(rules.EventGameEnded, s.onGameEnded)

	go s.hub.Run()
	return s
}

// Manager returns the game manager.
func (s *Server) Manager() *game.Manager {
	return s.manager
}

// Events returns the bus every game publishes to.
func (s *Server) Events() *rules.EventBus {
	return s.bus
}

// Leaderboard returns the high score table, nil when none is configured.
func (s *Server) Leaderboard() *leaderboard.Leaderboard {
	return s.board
}

// CreateGame starts a game. names maps a side to the display name recorded on
// the leaderboard; missing names fall back to the leaderboard default.
func (s *Server) CreateGame(names map[game.Player]string) (*game.Session, error) {
	if s.opts.MaxGames > 0 && len(s.manager.ListGames()) >= s.opts.MaxGames {
		return nil, ErrTooManyGames
	}

	session := s.manager.CreateGame()
	entry := &gameEntry{
		names:    make(map[game.Player]string, len(game.Players)),
		watchers: watchers.NewGameRegistry(),
	}
	for p, name := range names {
		entry.names[p] = name
	}
	entry.clock = timer.New(&clockSink{server: s, session: session}, s.opts.TurnTimeout, s.opts.GameTimeout,
		s.logger.With(zap.String("game_id", session.ID)))

	s.mu.Lock()
	s.games[session.ID] = entry
	s.mu.Unlock()

	if s.opts.TimersEnabled {
		ctx, cancel := context.WithCancel(context.Background())
		entry.cancel = cancel
		go entry.clock.Run(ctx)
	}
	return session, nil
}

// Game looks a session up by id.
func (s *Server) Game(id string) (*game.Session, error) {
	return s.manager.GetGame(id)
}

// RemoveGame stops a game's clock and forgets it.
func (s *Server) RemoveGame(id string) error {
	s.mu.Lock()
	entry := s.games[id]
	delete(s.games, id)
	s.mu.Unlock()

	if entry != nil && entry.cancel != nil {
		entry.cancel()
	}
	return s.manager.RemoveGame(id)
}

// Close stops every clock and disconnects websocket clients.
func (s *Server) Close() {
	s.mu.Lock()
	for _, entry := range s.games {
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	s.mu.Unlock()
	s.hub.Stop()
}

// Remaining reports the countdowns of a game.
func (s *Server) Remaining(id string) (turn, total time.Duration, ok bool) {
	entry := s.entry(id)
	if entry == nil {
		return 0, 0, false
	}
	turn, total = entry.clock.Remaining()
	return turn, total, true
}

// Names returns the display names registered for a game.
func (s *Server) Names(id string) map[game.Player]string {
	out := make(map[game.Player]string)
	if entry := s.entry(id); entry != nil {
		for p, n := range entry.names {
			out[p] = n
		}
	}
	return out
}

// StartReplay freezes a game for replay and holds its clock.
func (s *Server) StartReplay(id string) (*game.Replay, error) {
	session, err := s.manager.GetGame(id)
	if err != nil {
		return nil, err
	}
	r, err := session.StartReplay()
	if err != nil {
		return nil, err
	}
	if entry := s.entry(id); entry != nil {
		entry.clock.Pause()
	}
	return r, nil
}

// ExitReplay returns a game to live play.
func (s *Server) ExitReplay(id string) error {
	session, err := s.manager.GetGame(id)
	if err != nil {
		return err
	}
	if err := session.ExitReplay(); err != nil {
		return err
	}
	if entry := s.entry(id); entry != nil && !session.Paused() {
		entry.clock.Resume()
	}
	s.BroadcastState(id)
	return nil
}

// Autoplay steps the active replay of a game in the background, pushing each
// position to websocket clients.
func (s *Server) Autoplay(id string, speed time.Duration) error {
	session, err := s.manager.GetGame(id)
	if err != nil {
		return err
	}
	r, err := session.Replay()
	if err != nil {
		return err
	}
	if speed <= 0 {
		speed = s.opts.ReplaySpeed
	}
	r.StartAutoplay(speed, func(i int, st *game.GameState) {
		s.hub.Broadcast(id, newMessage(msgReplayStep, id, newReplayView(r, i, st)))
	})
	return nil
}

// CheckAdmin verifies password against the configured bcrypt hash. Admin
// actions are disabled when no hash is configured.
func (s *Server) CheckAdmin(password string) error {
	if s.opts.AdminPasswordHash == "" {
		return fmt.Errorf("%w: admin access disabled", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.opts.AdminPasswordHash), []byte(password)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// BroadcastState pushes the current view of a game to its websocket clients.
func (s *Server) BroadcastState(id string) {
	view, err := s.View(id)
	if err != nil {
		return
	}
	s.hub.Broadcast(id, newMessage(msgGameState, id, view))
}

// View renders the live state of a game.
func (s *Server) View(id string) (*GameView, error) {
	session, err := s.manager.GetGame(id)
	if err != nil {
		return nil, err
	}
	return s.view(session), nil
}

func (s *Server) view(session *game.Session) *GameView {
	v := newGameView(session.ID, session.View())
	v.Status = session.Status()
	v.Paused = session.Paused()
	v.UndoDepth, v.RedoDepth = session.HistoryDepth()
	if _, err := session.Replay(); err == nil {
		v.Replaying = true
	}
	names := s.Names(session.ID)
	for p, pv := range v.Players {
		player, err := game.ParsePlayer(p)
		if err != nil {
			continue
		}
		pv.Name = names[player]
		v.Players[p] = pv
	}
	if s.opts.TimersEnabled {
		if turn, total, ok := s.Remaining(session.ID); ok {
			v.Timers = &TimerView{Turn: timer.Format(turn), Game: timer.Format(total)}
		}
	}
	v.Stats = s.stats(session.ID)
	return v
}

// stats reads the watchers of a game, nil for games the server does not track.
func (s *Server) stats(id string) *StatsView {
	entry := s.entry(id)
	if entry == nil {
		return nil
	}
	out := &StatsView{Activity: map[string]watchers.PlayerActivity{}}
	if w, ok := entry.watchers.Get(watchers.ActivityKey).(*watchers.ActivityWatcher); ok {
		out.Activity = w.All()
	}
	if w, ok := entry.watchers.Get(watchers.HistoryKey).(*watchers.HistoryWatcher); ok {
		out.Undos, out.Redos = w.Counts()
	}
	return out
}

func (s *Server) entry(id string) *gameEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.games[id]
}

func (s *Server) withClock(fn func(*timer.Clock)) func(rules.Event) {
	return func(evt rules.Event) {
		if entry := s.entry(evt.GameID); entry != nil {
			fn(entry.clock)
		}
	}
}

func (s *Server) notifyWatchers(evt rules.Event) {
	if entry := s.entry(evt.GameID); entry != nil {
		entry.watchers.Notify(evt)
	}
}

func (s *Server) broadcastEvent(evt rules.Event) {
	s.hub.Broadcast(evt.GameID, newMessage(msgEvent, evt.GameID, newEventView(evt)))
}

// onGameEnded stops the clock, records a winning score and archives the game.
func (s *Server) onGameEnded(evt rules.Event) {
	entry := s.entry(evt.GameID)
	if entry == nil {
		return
	}
	entry.clock.Stop()

	session, err := s.manager.GetGame(evt.GameID)
	if err != nil {
		return
	}
	s.recordScore(session, entry, evt)

	if s.archive != nil {
		if err := s.archive.Save(session); err != nil {
			s.logger.Error("failed to archive replay", zap.String("game_id", session.ID), zap.Error(err))
		}
	}
}

func (s *Server) recordScore(session *game.Session, entry *gameEntry, evt rules.Event) {
	if s.board == nil {
		return
	}
	if draw, _ := strconv.ParseBool(evt.Metadata["draw"]); draw {
		return
	}
	winner, err := game.ParsePlayer(evt.Player)
	if err != nil {
		return
	}
	score := session.View().Score(winner)

	ctx := context.Background()
	if !s.board.IsHighScore(ctx, score) {
		return
	}
	kept, err := s.board.Add(ctx, entry.names[winner], winner.String(), score)
	if err != nil {
		s.logger.Error("failed to record high score", zap.String("game_id", session.ID), zap.Error(err))
		return
	}
	s.logger.Info("high score recorded",
		zap.String("game_id", session.ID),
		zap.String("player", winner.String()),
		zap.Int("score", score),
		zap.Bool("kept", kept),
	)
}

// clockSink forwards timer expiries to a session and pushes the resulting
// state to clients.
type clockSink struct {
	server  *Server
	session *game.Session
}

func (c *clockSink) ExpireTurn() error {
	if err := c.session.ExpireTurn(); err != nil {
		return err
	}
	c.server.BroadcastState(c.session.ID)
	return nil
}

func (c *clockSink) ExpireGame() error {
	if err := c.session.ExpireGame(); err != nil {
		return err
	}
	c.server.BroadcastState(c.session.ID)
	return nil
}
