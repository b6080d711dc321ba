// Package slab implements a typed, chunked, free-list allocator — the
// FixedBlockAllocator of _examples/original_source/source/codebase/memory/memory_pool.hpp.
//
// Unlike the original, which threads its free list through the raw bytes of
// each unallocated block, this implementation keeps the free list in a
// parallel int32 slice. Overwriting a Go value's memory with an unrelated
// integer is unsafe once the value's type can hold pointers (the GC would
// see garbage), so the byte-overlap trick is not portable to a generic T
// here; a parallel array gets the same O(1) malloc/free behavior without
// that hazard.
package slab

import (
	"log/slog"
	"math"
	"unsafe"

	"github.com/dfcore/lemon/internal/diagnostic"
)

const defaultChunkSize = 64

// AllocatorConfig configures an Allocator. The zero value is usable.
type AllocatorConfig struct {
	Logger *slog.Logger
	// ChunkSize is the number of elements per chunk. Defaults to 64.
	ChunkSize int
}

// Allocator is a typed chunked slab allocator with O(1) allocate/free.
//
// Invariant A1: every block is in exactly one state: live (returned to a
// caller) or on the free list.
// Invariant A2: Malloc returns a pointer into some chunk; Free(p) requires
// p to lie inside one of this allocator's chunks and to currently be live;
// otherwise it warns and has no effect.
// Invariant A3: chunks are never released until the allocator is discarded.
type Allocator[T any] struct {
	log       *slog.Logger
	chunkSize int
	chunks    [][]T
	next      []int32 // free-list links, one per global slot index
	inUse     []bool
	freeHead  int32 // -1 means empty
	live      int
}

// NewAllocator constructs an empty Allocator.
func NewAllocator[T any](cfg AllocatorConfig) *Allocator[T] {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Allocator[T]{
		log:       log.With("subsystem", "slab.Allocator"),
		chunkSize: size,
		freeHead:  -1,
	}
}

// Malloc returns a pointer to a fresh, zero-valued T. Growing the
// underlying storage allocates a new chunk and threads a free list through
// it; total capacity is bounded by int32, exceeding it is fatal.
func (a *Allocator[T]) Malloc() *T {
	if a.freeHead == -1 {
		a.grow()
	}
	idx := a.freeHead
	a.freeHead = a.next[idx]
	a.inUse[idx] = true
	a.live++
	return a.at(idx)
}

// Free returns p to the allocator. If p does not lie inside any chunk this
// allocator owns, or is not currently live, Free warns and has no effect.
func (a *Allocator[T]) Free(p *T) {
	idx, ok := a.indexOf(p)
	if !ok {
		a.log.Warn("free of pointer not owned by this allocator")
		return
	}
	if !a.inUse[idx] {
		a.log.Warn("double free", "index", idx)
		return
	}
	var zero T
	*a.at(idx) = zero
	a.inUse[idx] = false
	a.next[idx] = a.freeHead
	a.freeHead = idx
	a.live--
}

// FreeAll returns every live block to the free list without releasing any
// chunk, mirroring memory_pool.hpp's free_all().
func (a *Allocator[T]) FreeAll() {
	total := len(a.chunks) * a.chunkSize
	var zero T
	for i := 0; i < total; i++ {
		if a.inUse[i] {
			*a.at(int32(i)) = zero
			a.inUse[i] = false
		}
	}
	for i := 0; i < total; i++ {
		if i == total-1 {
			a.next[i] = -1
		} else {
			a.next[i] = int32(i + 1)
		}
	}
	if total > 0 {
		a.freeHead = 0
	} else {
		a.freeHead = -1
	}
	a.live = 0
}

// Len returns the number of currently live (malloc'd, not yet freed)
// blocks.
func (a *Allocator[T]) Len() int { return a.live }

// Cap returns the total number of blocks across all allocated chunks.
func (a *Allocator[T]) Cap() int { return len(a.chunks) * a.chunkSize }

func (a *Allocator[T]) at(idx int32) *T {
	return &a.chunks[int(idx)/a.chunkSize][int(idx)%a.chunkSize]
}

func (a *Allocator[T]) grow() {
	next := int64(len(a.chunks)+1) * int64(a.chunkSize)
	if next > math.MaxInt32 {
		diagnostic.Fatalf(a.log, "slab: index space exhausted at %d elements", len(a.chunks)*a.chunkSize)
	}
	base := int32(len(a.chunks) * a.chunkSize)
	a.chunks = append(a.chunks, make([]T, a.chunkSize))
	a.inUse = append(a.inUse, make([]bool, a.chunkSize)...)
	newNext := make([]int32, a.chunkSize)
	for i := 0; i < a.chunkSize; i++ {
		if i == a.chunkSize-1 {
			newNext[i] = -1
		} else {
			newNext[i] = base + int32(i) + 1
		}
	}
	a.next = append(a.next, newNext...)
	a.freeHead = base
}

// indexOf finds the global slot index of p by scanning chunks for the one
// whose backing array contains p's address, using pointer arithmetic the
// way an arena allocator must to recover an index from a raw pointer.
func (a *Allocator[T]) indexOf(p *T) (int32, bool) {
	if p == nil {
		return 0, false
	}
	pu := uintptr(unsafe.Pointer(p))
	var sample T
	elemSize := unsafe.Sizeof(sample)
	for ci, chunk := range a.chunks {
		if len(chunk) == 0 {
			continue
		}
		base := uintptr(unsafe.Pointer(&chunk[0]))
		span := uintptr(len(chunk)) * elemSize
		if pu >= base && pu < base+span {
			offset := (pu - base) / elemSize
			return int32(ci)*int32(a.chunkSize) + int32(offset), true
		}
	}
	return 0, false
}
