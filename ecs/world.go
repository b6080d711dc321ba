// Package ecs implements the sparse-store, bitmask-indexed entity-component
// system of spec.md §3/§4.3/§4.4, built on the handle, slab, and typeid
// packages.
//
// Go disallows generic methods on non-generic receivers, so the
// per-component-type operations (RegisterComponent, AddComponent,
// GetComponent, RemoveComponent, Visit1/2/3) are free functions taking
// *World explicitly rather than methods of World.
package ecs

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/dfcore/lemon/handle"
	"github.com/dfcore/lemon/internal/diagnostic"
	"github.com/dfcore/lemon/typeid"
)

// Entity is a handle drawn from a World's own HandleSet.
type Entity = handle.Handle

// ErrComponentNotRegistered is returned by ComponentTypeOf when T was never
// passed to RegisterComponent on this World.
var ErrComponentNotRegistered = errors.New("ecs: component type not registered")

// WorldConfig configures a World. The zero value is usable.
type WorldConfig struct {
	Logger *slog.Logger
}

// World owns the entity handle set, the per-entity component masks, and
// the registered component stores.
type World struct {
	log      *slog.Logger
	entities *handle.HandleSet
	masks    []Mask
	stores   []store
	registry *typeid.Registry
}

// NewWorld constructs an empty World.
func NewWorld(cfg WorldConfig) *World {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("subsystem", "ecs.World")
	return &World{
		log:      log,
		entities: handle.NewHandleSet(handle.HandleSetConfig{Logger: log}),
		registry: typeid.NewRegistry(),
	}
}

// Spawn allocates a fresh entity with an empty component mask.
func (w *World) Spawn() Entity {
	h := w.entities.Create()
	idx := int(h.Index())
	for len(w.masks) <= idx {
		w.masks = append(w.masks, 0)
	}
	return h
}

// Recycle destroys every component attached to e, clears its mask, and
// frees its handle. Silent no-op if e is not alive (Invariant W2).
func (w *World) Recycle(e Entity) {
	if !w.entities.IsAlive(e) {
		return
	}
	idx := e.Index()
	mask := w.masks[idx]
	for id := uint16(0); id < MaxComponentTypes; id++ {
		if mask.Test(id) {
			w.stores[id].remove(uint32(idx))
		}
	}
	w.masks[idx] = 0
	w.entities.Free(e)
}

// IsAlive reports whether e is currently live.
func (w *World) IsAlive(e Entity) bool { return w.entities.IsAlive(e) }

// ComponentsMask returns e's component mask, or (0, false) if e is not
// alive.
func (w *World) ComponentsMask(e Entity) (Mask, bool) {
	if !w.entities.IsAlive(e) {
		return 0, false
	}
	return w.masks[e.Index()], true
}

// Entities returns every currently live entity, in ascending index order,
// regardless of component mask. Mirrors the original's no-argument
// find_entities() view.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, w.entities.Len())
	w.entities.Each(func(h handle.Handle) bool {
		out = append(out, h)
		return true
	})
	return out
}

// Count returns the number of live entities whose mask contains required.
// required == 0 counts every live entity.
func Count(w *World, required Mask) int {
	n := 0
	w.entities.Each(func(h handle.Handle) bool {
		if w.masks[h.Index()].Contains(required) {
			n++
		}
		return true
	})
	return n
}

// Reset destroys every entity and component and resets every registered
// store to empty, without discarding the World value itself. Useful for
// tests and level transitions; the store's underlying slab chunks are
// retained per Invariant A3.
func (w *World) Reset() {
	for _, s := range w.stores {
		if s != nil {
			s.reset()
		}
	}
	w.masks = w.masks[:0]
	w.entities.Clear()
}

// ComponentStats reports the live count and total capacity of the store
// for component id, or ok=false if no store has been registered for it.
func (w *World) ComponentStats(id uint16) (size, capacity int, ok bool) {
	if int(id) >= len(w.stores) || w.stores[id] == nil {
		return 0, 0, false
	}
	size, capacity = w.stores[id].stats()
	return size, capacity, true
}

func (w *World) ensureStoresLen(id uint16) {
	for len(w.stores) <= int(id) {
		w.stores = append(w.stores, nil)
	}
}

// ComponentConfig configures a component store at registration.
type ComponentConfig[T any] struct {
	// ChunkSize is the number of component slots per slab chunk. Defaults
	// to the slab package's default when <= 0.
	ChunkSize int
	// Destructor, if set, is invoked on a component's value immediately
	// before its block is returned to the allocator, by
	// RemoveComponent, Recycle, and Reset. Component types that hold an
	// external resource (a registered callback, an open handle into
	// another subsystem) should set this so that detaching the
	// component also tears down the resource; Go's own zeroing of the
	// block is not enough for that case.
	Destructor func(*T)
}

// ComponentType is the descriptor returned by RegisterComponent, carrying
// the assigned type id and a direct pointer to its store so repeated
// AddComponent/GetComponent/RemoveComponent calls avoid a map lookup.
type ComponentType[T any] struct {
	id    uint16
	store *componentStore[T]
}

// ID returns the dense type id assigned to T within this World's registry.
func (ct ComponentType[T]) ID() uint16 { return ct.id }

// RegisterComponent assigns T a stable type id (if not already assigned)
// and ensures a store exists for it. Calling it again for the same T on
// the same World returns the existing descriptor. Fatal if the number of
// distinct component types registered on this World would exceed
// MaxComponentTypes.
func RegisterComponent[T any](w *World, cfg ComponentConfig[T]) ComponentType[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	id := w.registry.ID(t)
	if id >= MaxComponentTypes {
		diagnostic.Fatalf(w.log, "ecs: component type id %d (%s) exceeds mask width %d", id, t, MaxComponentTypes)
	}
	w.ensureStoresLen(id)
	if existing := w.stores[id]; existing != nil {
		return ComponentType[T]{id: id, store: existing.(*componentStore[T])}
	}
	cs := newComponentStore[T](componentStoreConfig[T]{Logger: w.log, ChunkSize: cfg.ChunkSize, Destructor: cfg.Destructor})
	w.stores[id] = cs
	return ComponentType[T]{id: id, store: cs}
}

// ComponentTypeOf recovers the ComponentType for T if it was previously
// registered on w, without re-registering it.
func ComponentTypeOf[T any](w *World) (ComponentType[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	id, ok := w.registry.Lookup(t)
	if !ok {
		return ComponentType[T]{}, fmt.Errorf("%w: %s", ErrComponentNotRegistered, t)
	}
	cs, ok := w.stores[id].(*componentStore[T])
	if !ok {
		return ComponentType[T]{}, fmt.Errorf("%w: %s", ErrComponentNotRegistered, t)
	}
	return ComponentType[T]{id: id, store: cs}, nil
}

// AddComponent attaches v to e under component type ct. Fatal if e already
// carries this component type. Returns nil without effect if e is dead.
func AddComponent[T any](w *World, e Entity, ct ComponentType[T], v T) *T {
	if !w.entities.IsAlive(e) {
		return nil
	}
	idx := e.Index()
	bit := ct.id
	if w.masks[idx].Test(bit) {
		diagnostic.Fatalf(w.log, "ecs: component %T already attached to entity %v", v, e)
	}
	ptr := ct.store.insert(uint32(idx), v)
	w.masks[idx] = w.masks[idx].Set(bit)
	return ptr
}

// GetComponent returns a pointer to e's component of type ct, or nil if e
// is dead or does not carry it.
func GetComponent[T any](w *World, e Entity, ct ComponentType[T]) *T {
	if !w.entities.IsAlive(e) {
		return nil
	}
	idx := e.Index()
	if !w.masks[idx].Test(ct.id) {
		return nil
	}
	return ct.store.get(uint32(idx))
}

// RemoveComponent detaches e's component of type ct, running its
// destruction (returning the block to the store's allocator). No-op if e
// is dead or does not carry it.
func RemoveComponent[T any](w *World, e Entity, ct ComponentType[T]) {
	if !w.entities.IsAlive(e) {
		return
	}
	idx := e.Index()
	if !w.masks[idx].Test(ct.id) {
		return
	}
	ct.store.remove(uint32(idx))
	w.masks[idx] = w.masks[idx].Clear(ct.id)
}
