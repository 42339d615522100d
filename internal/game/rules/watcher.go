package rules

import (
	"sort"
	"sync"
)

// Watcher observes game events and accumulates what it cares about.
type Watcher interface {
	// Watch is called for every event of the game the watcher belongs to.
	Watch(event Event)

	// Reset clears everything the watcher has seen, e.g. when the game restarts.
	Reset()

	// Key identifies the watcher inside a registry.
	Key() string
}

// WatcherRegistry holds the watchers of one game.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry(watchers ...Watcher) *WatcherRegistry {
	wr := &WatcherRegistry{watchers: make(map[string]Watcher)}
	for _, w := range watchers {
		wr.Add(w)
	}
	return wr
}

// Add registers a watcher, replacing any with the same key.
func (wr *WatcherRegistry) Add(watcher Watcher) {
	if watcher == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	wr.watchers[watcher.Key()] = watcher
}

// Remove drops the watcher with key.
func (wr *WatcherRegistry) Remove(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	delete(wr.watchers, key)
}

// Get returns the watcher with key, or nil.
func (wr *WatcherRegistry) Get(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// All returns the registered watchers ordered by key.
func (wr *WatcherRegistry) All() []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	keys := make([]string, 0, len(wr.watchers))
	for k := range wr.watchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Watcher, 0, len(keys))
	for _, k := range keys {
		out = append(out, wr.watchers[k])
	}
	return out
}

// Reset clears every watcher.
func (wr *WatcherRegistry) Reset() {
	for _, w := range wr.All() {
		w.Reset()
	}
}

// Notify passes event to every watcher. A GAME_RESET event resets them
// instead.
func (wr *WatcherRegistry) Notify(event Event) {
	if event.Type == EventGameReset {
		wr.Reset()
		return
	}
	for _, w := range wr.All() {
		w.Watch(event)
	}
}
