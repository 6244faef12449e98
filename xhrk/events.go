package xhrk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType of request related events
type EventType string

// revive:disable:var-naming
const (
	EvtReadyStateChange EventType = "readystatechange"
	EvtLoadStart        EventType = "loadstart"
	EvtProgress         EventType = "progress"
	EvtLoad             EventType = "load"
	EvtLoadEnd          EventType = "loadend"
	EvtError            EventType = "error"
	EvtAbort            EventType = "abort"
	EvtTimeout          EventType = "timeout"
)

// EventTypes in the order their on<type> handlers are usually declared
var EventTypes = []EventType{
	EvtReadyStateChange,
	EvtLoadStart,
	EvtProgress,
	EvtLoad,
	EvtLoadEnd,
	EvtError,
	EvtAbort,
	EvtTimeout,
}

// Event dispatched to listeners
type Event struct {
	Type             EventType
	Target           Request
	LengthComputable bool
	Loaded           int64
	Total            int64
	Observed         time.Time
}

// NewEvent of type for target
func NewEvent(eventType EventType, target Request) *Event {
	return &Event{Type: eventType, Target: target, Observed: time.Now()}
}

// NewProgressEvent with loaded/total byte counts
func NewProgressEvent(eventType EventType, target Request, loaded, total int64) *Event {
	evt := NewEvent(eventType, target)
	evt.Loaded = loaded
	evt.Total = total
	evt.LengthComputable = total > 0
	return evt
}

// Listener for events
type Listener func(evt *Event)

// ListenerID is returned from AddEventListener so the listener can be removed
type ListenerID int64

// EventTarget dispatches events synchronously to registered listeners
type EventTarget interface {
	AddEventListener(eventType EventType, listener Listener) ListenerID
	RemoveEventListener(eventType EventType, id ListenerID)
	// SetHandler sets the on<type> property, nil clears it
	SetHandler(eventType EventType, listener Listener)
	Handler(eventType EventType) Listener
	DispatchEvent(evt *Event) bool
}

type listenerEntry struct {
	id        ListenerID
	listener  Listener
	isHandler bool
}

// Listeners is an EventTarget implementation. An on<type> handler keeps the
// position at which it was first set.
type Listeners struct {
	lock    sync.Mutex
	nextID  ListenerID
	entries map[EventType][]*listenerEntry
}

// NewListeners creates an empty event target
func NewListeners() *Listeners {
	return &Listeners{entries: make(map[EventType][]*listenerEntry)}
}

// AddEventListener appends the listener for eventType
func (l *Listeners) AddEventListener(eventType EventType, listener Listener) ListenerID {
	if listener == nil {
		return 0
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.nextID++
	l.entries[eventType] = append(l.entries[eventType], &listenerEntry{id: l.nextID, listener: listener})
	return l.nextID
}

// RemoveEventListener by the id returned from AddEventListener
func (l *Listeners) RemoveEventListener(eventType EventType, id ListenerID) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.remove(eventType, func(e *listenerEntry) bool { return !e.isHandler && e.id == id })
}

// SetHandler sets (or clears with nil) the on<type> handler
func (l *Listeners) SetHandler(eventType EventType, listener Listener) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if listener == nil {
		l.remove(eventType, func(e *listenerEntry) bool { return e.isHandler })
		return
	}

	for _, e := range l.entries[eventType] {
		if e.isHandler {
			e.listener = listener
			return
		}
	}
	l.nextID++
	l.entries[eventType] = append(l.entries[eventType], &listenerEntry{id: l.nextID, listener: listener, isHandler: true})
}

// Handler returns the on<type> handler or nil
func (l *Listeners) Handler(eventType EventType) Listener {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, e := range l.entries[eventType] {
		if e.isHandler {
			return e.listener
		}
	}
	return nil
}

// DispatchEvent calls every listener registered for evt.Type in order. A
// panicking listener is logged and does not stop the remaining listeners.
func (l *Listeners) DispatchEvent(evt *Event) bool {
	if evt == nil {
		return false
	}

	l.lock.Lock()
	listeners := make([]Listener, 0, len(l.entries[evt.Type]))
	for _, e := range l.entries[evt.Type] {
		listeners = append(listeners, e.listener)
	}
	l.lock.Unlock()

	for _, listener := range listeners {
		callListener(listener, evt)
	}
	return true
}

func callListener(listener Listener, evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("event", string(evt.Type)).Interface("panic", r).Msg("event listener failed")
		}
	}()
	listener(evt)
}

// remove entries matching fn, caller must hold the lock
func (l *Listeners) remove(eventType EventType, fn func(e *listenerEntry) bool) {
	kept := l.entries[eventType][:0]
	for _, e := range l.entries[eventType] {
		if !fn(e) {
			kept = append(kept, e)
		}
	}
	l.entries[eventType] = kept
}
