// Package watchers holds the per-game statistics watchers fed from the event
// bus. Counts are of actions taken, so an undone placement still counts.
package watchers

import (
	"sync"

	"github.com/tia-game/titans-server-go/internal/game/rules"
)

const (
	ActivityKey = "activity"
	HistoryKey  = "history"
)

// PlayerActivity counts what one side did during a game.
type PlayerActivity struct {
	Placed       int `json:"placed"`
	Moved        int `json:"moved"`
	Eliminated   int `json:"eliminated"`
	Lost         int `json:"lost"`
	Rejected     int `json:"rejected"`
	TurnsExpired int `json:"turns_expired"`
}

// ActivityWatcher tracks board actions per player.
type ActivityWatcher struct {
	mu      sync.Mutex
	players map[string]*PlayerActivity
}

// NewActivityWatcher creates an empty activity watcher.
func NewActivityWatcher() *ActivityWatcher {
	return &ActivityWatcher{players: make(map[string]*PlayerActivity)}
}

func (w *ActivityWatcher) Key() string { return ActivityKey }

// Watch implements rules.Watcher.
func (w *ActivityWatcher) Watch(event rules.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch event.Type {
	case rules.EventTitanPlaced:
		w.player(event.Player).Placed++
	case rules.EventTitanMoved:
		w.player(event.Player).Moved++
	case rules.EventTitanEliminated:
		w.player(event.Player).Eliminated++
		if victim := event.Metadata["victim"]; victim != "" {
			w.player(victim).Lost++
		}
	case rules.EventInvalidMove:
		w.player(event.Player).Rejected++
	case rules.EventTurnExpired:
		w.player(event.Player).TurnsExpired++
	}
}

func (w *ActivityWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players = make(map[string]*PlayerActivity)
}

// Player returns a copy of the counts for player.
func (w *ActivityWatcher) Player(player string) PlayerActivity {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a, ok := w.players[player]; ok {
		return *a
	}
	return PlayerActivity{}
}

// All returns a copy of the counts of every player seen so far.
func (w *ActivityWatcher) All() map[string]PlayerActivity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]PlayerActivity, len(w.players))
	for p, a := range w.players {
		out[p] = *a
	}
	return out
}

func (w *ActivityWatcher) player(p string) *PlayerActivity {
	a, ok := w.players[p]
	if !ok {
		a = &PlayerActivity{}
		w.players[p] = a
	}
	return a
}

// HistoryWatcher counts undo and redo steps.
type HistoryWatcher struct {
	mu    sync.Mutex
	undos int
	redos int
}

func NewHistoryWatcher() *HistoryWatcher {
	return &HistoryWatcher{}
}

func (w *HistoryWatcher) Key() string { return HistoryKey }

func (w *HistoryWatcher) Watch(event rules.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch event.Type {
	case rules.EventUndo:
		w.undos++
	case rules.EventRedo:
		w.redos++
	}
}

func (w *HistoryWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.undos, w.redos = 0, 0
}

// Counts returns the number of undo and redo steps taken.
func (w *HistoryWatcher) Counts() (undos, redos int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.undos, w.redos
}

// NewGameRegistry returns a registry with the standard game watchers.
func NewGameRegistry() *rules.WatcherRegistry {
	return rules.NewWatcherRegistry(NewActivityWatcher(), NewHistoryWatcher())
}
