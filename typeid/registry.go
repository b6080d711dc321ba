// Package typeid implements the process-wide dense id facility described in
// spec.md §4.5: every distinct type seen by a Registry gets a stable,
// 0-based id, unique within that Registry, on first use. Two different Registry
// instances (e.g. one for component types, one for subsystem base classes)
// are independent sequences.
package typeid

import (
	"reflect"
	"sync"

	"github.com/brentp/intintmap"
	"github.com/cespare/xxhash/v2"
)

// Registry assigns dense uint16 ids to reflect.Types, lazily, on first use.
// Ids are not stable across processes and must never be serialized.
//
// The primary lookup path hashes t.String() with xxhash and probes fast, an
// open-addressed int64->int64 map, rather than using t itself (an interface
// value) as a Go map key: it avoids the runtime's per-call interface-hash
// dispatch in favor of one fixed integer hash. Because two distinct types
// can in principle share an xxhash digest, a fast hit is only trusted after
// confirming types[id] == t; the rare case where it doesn't (an actual
// collision) falls back to collisions, an ordinary map consulted only for
// types that have already been found to collide.
type Registry struct {
	mu         sync.Mutex
	fast       *intintmap.Map          // xxhash(type.String()) -> id, primary lookup
	types      []reflect.Type          // id -> type, for collision verification and Type(id)
	collisions map[reflect.Type]uint16 // populated only for types whose hash collided with another
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		fast:       intintmap.New(64, 0.6),
		collisions: make(map[reflect.Type]uint16),
	}
}

// ID returns t's dense id within this Registry, assigning one if t has not
// been seen before.
func (r *Registry) ID(t reflect.Type) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := int64(xxhash.Sum64String(t.String()))
	if v, ok := r.fast.Get(key); ok {
		id := uint16(v)
		if r.types[id] == t {
			return id
		}
		// key collided with a different type, which already owns this fast
		// slot. t has its own entry in collisions if seen before.
		if id, ok := r.collisions[t]; ok {
			return id
		}
		id = uint16(len(r.types))
		r.types = append(r.types, t)
		r.collisions[t] = id
		return id
	}

	if id, ok := r.collisions[t]; ok {
		return id
	}

	id := uint16(len(r.types))
	r.types = append(r.types, t)
	r.fast.Put(key, int64(id))
	return id
}

// Lookup reports the id already assigned to t, if any, without assigning a
// new one.
func (r *Registry) Lookup(t reflect.Type) (uint16, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := int64(xxhash.Sum64String(t.String()))
	if v, ok := r.fast.Get(key); ok {
		id := uint16(v)
		if r.types[id] == t {
			return id, true
		}
	}
	id, ok := r.collisions[t]
	return id, ok
}

// Type returns the type previously assigned id, or (nil, false) if no type
// has ever been assigned that id in this Registry.
func (r *Registry) Type(id uint16) (reflect.Type, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

// Len returns the number of distinct types this Registry has assigned ids
// to.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.types)
}
