package ecs

import (
	"log/slog"

	"github.com/dfcore/lemon/slab"
)

// store is the type-erased interface World holds one of per registered
// component type, so World.recycle and World.Reset don't need to know T.
type store interface {
	remove(index uint32)
	reset()
	stats() (size, capacity int)
}

type smallSlot[T any] struct {
	used  bool
	index uint32
	ptr   *T
}

type componentStoreConfig[T any] struct {
	Logger     *slog.Logger
	ChunkSize  int
	Destructor func(*T)
}

// componentStore is the SparseComponentStore of spec.md §4.3: a small-mode
// linear-scan table of up to SmallStoreCapacity entries that spills, once
// full, to a dense directly-indexed slice sized by the largest entity
// index ever seen.
type componentStore[T any] struct {
	alloc      *slab.Allocator[T]
	small      [SmallStoreCapacity]smallSlot[T]
	smallLen   int
	dense      []*T
	denseMode  bool
	top        uint32
	destructor func(*T)
}

func newComponentStore[T any](cfg componentStoreConfig[T]) *componentStore[T] {
	return &componentStore[T]{
		alloc: slab.NewAllocator[T](slab.AllocatorConfig{
			Logger:    cfg.Logger,
			ChunkSize: cfg.ChunkSize,
		}),
		destructor: cfg.Destructor,
	}
}

// insert acquires a block from the allocator, stores v, and registers the
// index->block mapping. Callers (AddComponent) must already have verified
// the entity does not already hold this component; the store itself does
// not deduplicate.
func (cs *componentStore[T]) insert(index uint32, v T) *T {
	if index+1 > cs.top {
		cs.top = index + 1
	}
	if cs.denseMode {
		cs.ensureDense(index)
		ptr := cs.alloc.Malloc()
		*ptr = v
		cs.dense[index] = ptr
		return ptr
	}
	for i := range cs.small {
		if !cs.small[i].used {
			ptr := cs.alloc.Malloc()
			*ptr = v
			cs.small[i] = smallSlot[T]{used: true, index: index, ptr: ptr}
			cs.smallLen++
			return ptr
		}
	}
	cs.spillToDense()
	return cs.insert(index, v)
}

func (cs *componentStore[T]) spillToDense() {
	cs.dense = make([]*T, cs.top)
	for i := range cs.small {
		if cs.small[i].used {
			cs.dense[cs.small[i].index] = cs.small[i].ptr
			cs.small[i] = smallSlot[T]{}
		}
	}
	cs.smallLen = 0
	cs.denseMode = true
}

func (cs *componentStore[T]) ensureDense(index uint32) {
	need := int(index) + 1
	if len(cs.dense) < need {
		grown := make([]*T, need)
		copy(grown, cs.dense)
		cs.dense = grown
	}
}

// get returns the stored value at index, or nil if absent.
func (cs *componentStore[T]) get(index uint32) *T {
	if cs.denseMode {
		if int(index) >= len(cs.dense) {
			return nil
		}
		return cs.dense[index]
	}
	for i := range cs.small {
		if cs.small[i].used && cs.small[i].index == index {
			return cs.small[i].ptr
		}
	}
	return nil
}

// remove runs the store's destructor (if any) on index's value, then
// returns its block to the allocator. No-op if index is not present.
func (cs *componentStore[T]) remove(index uint32) {
	if cs.denseMode {
		if int(index) >= len(cs.dense) || cs.dense[index] == nil {
			return
		}
		cs.destroy(cs.dense[index])
		cs.alloc.Free(cs.dense[index])
		cs.dense[index] = nil
		return
	}
	for i := range cs.small {
		if cs.small[i].used && cs.small[i].index == index {
			cs.destroy(cs.small[i].ptr)
			cs.alloc.Free(cs.small[i].ptr)
			cs.small[i] = smallSlot[T]{}
			cs.smallLen--
			return
		}
	}
}

// destroy runs the store's destructor on ptr, if one was configured.
func (cs *componentStore[T]) destroy(ptr *T) {
	if cs.destructor != nil {
		cs.destructor(ptr)
	}
}

// reset runs the store's destructor (if any) on every live value, then
// returns every block to the allocator in one pass.
func (cs *componentStore[T]) reset() {
	if cs.destructor != nil {
		if cs.denseMode {
			for _, ptr := range cs.dense {
				if ptr != nil {
					cs.destroy(ptr)
				}
			}
		} else {
			for i := range cs.small {
				if cs.small[i].used {
					cs.destroy(cs.small[i].ptr)
				}
			}
		}
	}
	cs.alloc.FreeAll()
	cs.small = [SmallStoreCapacity]smallSlot[T]{}
	cs.smallLen = 0
	cs.dense = nil
	cs.denseMode = false
	cs.top = 0
}

func (cs *componentStore[T]) stats() (size, capacity int) {
	return cs.alloc.Len(), cs.alloc.Cap()
}
