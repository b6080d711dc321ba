package registry

import (
	"log/slog"
	"reflect"
	"sync"
)

// EventBusConfig configures an EventBus. The zero value is usable.
type EventBusConfig struct {
	Logger *slog.Logger
}

type namedHandler[E any] struct {
	key     any
	handler func(E)
}

// typedList holds every subscriber of one event type E. Subscribe/
// Unsubscribe mutate subs directly; Emit takes a snapshot before invoking
// any handler, so a handler that subscribes or unsubscribes during
// dispatch changes what the *next* Emit sees, never the one in flight —
// this is how "subscribers must not alter the list during dispatch; queue
// the change for after" (spec.md §4.6) falls out for free.
type typedList[E any] struct {
	mu   sync.Mutex
	subs []namedHandler[E]
}

// EventBus is a synchronous, type-indexed, subscription-ordered
// publish/subscribe facility. Emit dispatches on the calling goroutine.
type EventBus struct {
	log *slog.Logger
	mu  sync.Mutex
	// lists holds *typedList[E] values keyed by E's reflect.Type, boxed in
	// any since Go has no heterogeneous generic container.
	lists map[reflect.Type]any
}

// NewEventBus constructs an empty bus.
func NewEventBus(cfg EventBusConfig) *EventBus {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &EventBus{
		log:   log.With("subsystem", "registry.EventBus"),
		lists: make(map[reflect.Type]any),
	}
}

func listFor[E any](b *EventBus) *typedList[E] {
	t := reflect.TypeFor[E]()
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.lists[t]; ok {
		return v.(*typedList[E])
	}
	l := &typedList[E]{}
	b.lists[t] = l
	return l
}

// Subscribe registers handler under key for events of type E, appended
// after any existing subscriber of the same type. key is used only for
// Unsubscribe.
func Subscribe[E any](b *EventBus, key any, handler func(E)) {
	l := listFor[E](b)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, namedHandler[E]{key: key, handler: handler})
}

// Unsubscribe removes the subscriber registered under key for event type
// E, if any.
func Unsubscribe[E any](b *EventBus, key any) {
	l := listFor[E](b)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.subs[:0]
	for _, s := range l.subs {
		if s.key != key {
			out = append(out, s)
		}
	}
	l.subs = out
}

// Emit invokes every subscriber of type E, synchronously, in subscription
// order.
func Emit[E any](b *EventBus, event E) {
	l := listFor[E](b)
	l.mu.Lock()
	snapshot := make([]namedHandler[E], len(l.subs))
	copy(snapshot, l.subs)
	l.mu.Unlock()
	for _, s := range snapshot {
		s.handler(event)
	}
}
