package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingWatcher struct {
	key  string
	seen []EventType
}

func (w *countingWatcher) Watch(e Event) { w.seen = append(w.seen, e.Type) }
func (w *countingWatcher) Reset()        { w.seen = nil }
func (w *countingWatcher) Key() string   { return w.key }

func TestWatcherRegistryNotify(t *testing.T) {
	a := &countingWatcher{key: "a"}
	b := &countingWatcher{key: "b"}
	wr := NewWatcherRegistry(b, a, nil)

	all := wr.All()
	assert.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Key())

	wr.Notify(NewEvent(EventTitanPlaced, "g", "red"))
	wr.Notify(NewEvent(EventUndo, "g", "red"))
	assert.Equal(t, []EventType{EventTitanPlaced, EventUndo}, a.seen)
	assert.Equal(t, a.seen, b.seen)

	wr.Notify(NewEvent(EventGameReset, "g", ""))
	assert.Empty(t, a.seen)
	assert.Empty(t, b.seen)
}

func TestWatcherRegistryReplaceAndRemove(t *testing.T) {
	first := &countingWatcher{key: "k"}
	second := &countingWatcher{key: "k"}
	wr := NewWatcherRegistry(first)
	wr.Add(second)

	assert.Same(t, second, wr.Get("k"))
	wr.Remove("k")
	assert.Nil(t, wr.Get("k"))
	assert.Empty(t, wr.All())
}
