package handle

import "log/slog"

// objectChunkSize is the number of elements per chunk of a pool's backing
// storage. Chosen so small pools (a handful of subsystems, say) cost one
// chunk, matching the teacher's preference for round power-of-two buffer
// sizes (e.g. redstone.SchedulerConfig's InboxSize default of 4096).
const objectChunkSize = 256

// ObjectPoolConfig configures an ObjectPool. The zero value is usable.
type ObjectPoolConfig struct {
	Logger *slog.Logger
}

// ObjectPool is a HandleSet paired with dense, handle-indexed storage of T.
// Storage is chunked ([][]T) rather than one flat growable slice: once a
// chunk is allocated its backing array is never reallocated, so a *T handed
// out by Create or Get remains valid for the lifetime of the pool (or until
// the same handle is freed and the slot reused) even while the pool as a
// whole keeps growing. A flat append-growable slice cannot make that
// promise, since growth may relocate the entire backing array out from
// under pointers callers are still holding.
type ObjectPool[T any] struct {
	handles *HandleSet
	chunks  [][]T
}

// NewObjectPool constructs an empty ObjectPool.
func NewObjectPool[T any](cfg ObjectPoolConfig) *ObjectPool[T] {
	return &ObjectPool[T]{
		handles: NewHandleSet(HandleSetConfig{Logger: cfg.Logger}),
	}
}

func (p *ObjectPool[T]) slot(idx uint16) *T {
	chunk := int(idx) / objectChunkSize
	for chunk >= len(p.chunks) {
		p.chunks = append(p.chunks, make([]T, objectChunkSize))
	}
	return &p.chunks[chunk][int(idx)%objectChunkSize]
}

// Create allocates a handle and stores v at its slot, returning both the
// handle and a stable pointer to the stored value.
func (p *ObjectPool[T]) Create(v T) (Handle, *T) {
	h := p.handles.Create()
	slot := p.slot(h.Index())
	*slot = v
	return h, slot
}

// Get returns a pointer to h's stored value and true if h is alive, or
// (nil, false) otherwise.
func (p *ObjectPool[T]) Get(h Handle) (*T, bool) {
	if !p.handles.IsAlive(h) {
		return nil, false
	}
	return p.slot(h.Index()), true
}

// IsAlive reports whether h is currently live.
func (p *ObjectPool[T]) IsAlive(h Handle) bool { return p.handles.IsAlive(h) }

// Free releases h, resetting its slot to T's zero value. Returns whether
// anything was freed.
func (p *ObjectPool[T]) Free(h Handle) bool {
	if !p.handles.Free(h) {
		return false
	}
	var zero T
	*p.slot(h.Index()) = zero
	return true
}

// Each calls f for every live handle and its stored value, in ascending
// index order, stopping early if f returns false.
func (p *ObjectPool[T]) Each(f func(Handle, *T) bool) {
	p.handles.Each(func(h Handle) bool {
		return f(h, p.slot(h.Index()))
	})
}

// Len returns the number of currently live entries.
func (p *ObjectPool[T]) Len() int { return p.handles.Len() }

// Cap returns the number of indices ever assigned.
func (p *ObjectPool[T]) Cap() int { return p.handles.Cap() }

// Clear resets the pool to empty. Chunks already allocated are retained
// (never released, per the slab allocator's A3 invariant) and overwritten
// as new handles are created.
func (p *ObjectPool[T]) Clear() { p.handles.Clear() }
