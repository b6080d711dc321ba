// Package registry implements the subsystem registry and synchronous typed
// event bus of spec.md §4.6, grounded in dragonfly's
// server/plugin/manager.go (registration, scoped logging) and
// server/plugin/events.go (ordered, key-unsubscribable subscriber lists).
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/dfcore/lemon/internal/diagnostic"
	"github.com/google/uuid"
)

// Subsystem is the lifecycle contract every registered service implements.
type Subsystem interface {
	// Initialize prepares the subsystem. A false return aborts
	// registration; the host is expected to abort startup cleanly.
	Initialize() bool
	// Dispose releases the subsystem's resources.
	Dispose()
}

// ErrSubsystemExists names the duplicate-registration fault. Add does not
// return it: registering a second subsystem of the same static type is
// fatal (see Add).
var ErrSubsystemExists = errors.New("registry: subsystem already registered")

// ErrSubsystemInitFailed is returned by Add when s.Initialize() returns
// false.
var ErrSubsystemInitFailed = errors.New("registry: subsystem failed to initialize")

// SubsystemsConfig configures a Subsystems registry. The zero value is
// usable.
type SubsystemsConfig struct {
	Logger *slog.Logger
}

// Subsystems maps a subsystem's static type to its owning instance.
// Mutation (Add/Remove) is intended for single-threaded setup/teardown;
// Get is safe to call concurrently during steady state (spec.md §5).
type Subsystems struct {
	log   *slog.Logger
	mu    sync.RWMutex
	byTyp map[reflect.Type]any
	order []reflect.Type
}

// NewSubsystems constructs an empty registry.
func NewSubsystems(cfg SubsystemsConfig) *Subsystems {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Subsystems{
		log:   log.With("subsystem", "registry.Subsystems"),
		byTyp: make(map[reflect.Type]any),
	}
}

// Add registers s under its static type S, calling s.Initialize(). Fatal
// if a subsystem of type S is already registered (a configuration fault,
// per spec.md §7); returns ErrSubsystemInitFailed (not fatal) if
// Initialize returns false, leaving the registry unchanged so the caller
// can retry after satisfying whatever S needed.
func Add[S Subsystem](r *Subsystems, s S) (S, error) {
	t := reflect.TypeFor[S]()
	id := uuid.New()
	log := r.log.With("type", t.String(), "instance", id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byTyp[t]; exists {
		diagnostic.Fatalf(r.log, "registry: duplicate subsystem registration for %s", t)
	}
	if !s.Initialize() {
		log.Warn("subsystem failed to initialize")
		var zero S
		return zero, fmt.Errorf("%w: %s", ErrSubsystemInitFailed, t)
	}
	r.byTyp[t] = s
	r.order = append(r.order, t)
	log.Info("subsystem registered")
	return s, nil
}

// Get returns the registered instance of type S, or (zero, false) if none
// is registered.
func Get[S Subsystem](r *Subsystems) (S, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero S
	v, ok := r.byTyp[reflect.TypeFor[S]()]
	if !ok {
		return zero, false
	}
	return v.(S), true
}

// Remove disposes of and drops the registered instance of type S. Returns
// whether a subsystem was actually removed.
func Remove[S Subsystem](r *Subsystems) bool {
	t := reflect.TypeFor[S]()
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byTyp[t]
	if !ok {
		return false
	}
	v.(S).Dispose()
	delete(r.byTyp, t)
	r.order = slices.DeleteFunc(r.order, func(ty reflect.Type) bool { return ty == t })
	r.log.With("type", t.String()).Info("subsystem removed")
	return true
}

// Has1 reports whether a subsystem of type S1 is registered.
func Has1[S1 Subsystem](r *Subsystems) bool {
	_, ok := Get[S1](r)
	return ok
}

// Has2 reports whether subsystems of both S1 and S2 are registered.
func Has2[S1, S2 Subsystem](r *Subsystems) bool {
	return Has1[S1](r) && Has1[S2](r)
}

// Has3 reports whether subsystems of S1, S2, and S3 are all registered.
func Has3[S1, S2, S3 Subsystem](r *Subsystems) bool {
	return Has1[S1](r) && Has2[S2, S3](r)
}

// Types returns the registered subsystem types in registration order.
func (r *Subsystems) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
