package rules

import (
	"sort"
	"sync"
	"time"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Lifecycle
	EventGameStarted EventType = "GAME_STARTED"
	EventGameReset   EventType = "GAME_RESET"
	EventGameEnded   EventType = "GAME_ENDED"
	EventGamePaused  EventType = "GAME_PAUSED"
	EventGameResumed EventType = "GAME_RESUMED"

	// Board
	EventTitanPlaced     EventType = "TITAN_PLACED"
	EventTitanMoved      EventType = "TITAN_MOVED"
	EventTitanSelected   EventType = "TITAN_SELECTED"
	EventTitanDeselected EventType = "TITAN_DESELECTED"
	EventTitanEliminated EventType = "TITAN_ELIMINATED"
	EventInvalidMove     EventType = "INVALID_MOVE"
	EventCircuitUnlocked EventType = "CIRCUIT_UNLOCKED"

	// Scoring and turns
	EventScoreChanged   EventType = "SCORE_CHANGED"
	EventPlayerSwitched EventType = "PLAYER_SWITCHED"
	EventPhaseChanged   EventType = "PHASE_CHANGED"
	EventTurnExpired    EventType = "TURN_EXPIRED"

	// History
	EventUndo EventType = "UNDO"
	EventRedo EventType = "REDO"
)

// Event is a notification about something that happened in a game.
type Event struct {
	Type      EventType
	GameID    string
	Player    string            // acting or affected player
	Node      string            // node involved, source node for moves
	Target    string            // destination node for moves
	Amount    int               // score delta, bonus, circuit count
	Message   string            // human-readable status
	Timestamp time.Time
	Metadata  map[string]string
}

// NewEvent creates an event with the common fields populated.
func NewEvent(eventType EventType, gameID, player string) Event {
	return Event{
		Type:      eventType,
		GameID:    gameID,
		Player:    player,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners run outside the bus lock so they may subscribe or unsubscribe.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	handles := make([]int, 0, len(bus.listeners))
	for h := range bus.listeners {
		handles = append(handles, h)
	}
	sort.Ints(handles)
	callbacks := make([]func(Event), 0, len(handles)+len(bus.typedListeners[event.Type]))
	for _, h := range handles {
		callbacks = append(callbacks, bus.listeners[h])
	}
	for _, typed := range bus.typedListeners[event.Type] {
		callbacks = append(callbacks, typed.Callback)
	}
	bus.mu.RUnlock()

	for _, cb := range callbacks {
		cb(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
