package scheduler

import (
	"context"
	"math"
	"sync"

	"github.com/dfcore/lemon/internal/diagnostic"
)

// taskChunkSize mirrors handle.ObjectPool's chunking: a naive growable
// []task would relocate its backing array on append, invalidating *task
// pointers a worker might be holding (or, worse, a pointer held by a
// concurrently-running finish() on a parent task) while another goroutine
// grows the table. Chunked storage keeps every already-allocated chunk's
// address fixed for the table's lifetime.
const taskChunkSize = 256

// taskTable is the scheduler's task pool: a mutex-protected ("allocator_mutex"
// in spec.md §5), grow-only chunked array of task records plus a LIFO free
// list of recyclable indices.
type taskTable struct {
	mu     sync.Mutex
	chunks [][]task
	count  int
	free   []uint16
}

func newTaskTable() *taskTable {
	return &taskTable{}
}

func (tb *taskTable) slot(idx uint16) *task {
	chunk := int(idx) / taskChunkSize
	for chunk >= len(tb.chunks) {
		tb.chunks = append(tb.chunks, make([]task, taskChunkSize))
	}
	return &tb.chunks[chunk][int(idx)%taskChunkSize]
}

// create acquires a task slot, sets jobs=1, and stores closure/name/parent.
// A reused slot's version was already bumped by finishRelease when it was
// last freed; a brand-new slot starts at version 1 here.
func (tb *taskTable) create(name string, closure func(context.Context), parent TaskHandle) TaskHandle {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	var idx uint16
	if n := len(tb.free); n > 0 {
		idx = tb.free[n-1]
		tb.free = tb.free[:n-1]
	} else {
		idx = uint16(tb.count)
		tb.count++
	}
	t := tb.slot(idx)
	if t.version == 0 {
		t.version = 1
	}
	t.name = name
	t.closure = closure
	t.parent = parent
	t.jobs.Store(1)
	return newTaskHandle(idx, t.version)
}

// get returns h's task record if h's version matches the slot's current
// version, or (nil, false) if h is stale (version mismatch) or out of
// range.
func (tb *taskTable) get(h TaskHandle) (*task, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	idx := h.index()
	if int(idx)/taskChunkSize >= len(tb.chunks) {
		return nil, false
	}
	t := tb.slot(idx)
	if t.version != h.version() {
		return nil, false
	}
	return t, true
}

// incrementJobs atomically adds delta to h's jobs counter and returns the
// new value and whether h was live. Used for the parent-increment race
// window in CreateTaskAsChild.
func (tb *taskTable) incrementJobs(h TaskHandle, delta int32) (int32, bool) {
	t, ok := tb.get(h)
	if !ok {
		return 0, false
	}
	return t.jobs.Add(delta), true
}

// finishRelease invalidates h's handle (bumps the slot's version) and
// returns its index to the free list. Called once a task's jobs counter
// has reached 0. Fatal if the slot's version would overflow.
func (tb *taskTable) finishRelease(h TaskHandle) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	idx := h.index()
	t := tb.slot(idx)
	if t.version != h.version() {
		return // already released by a racing caller; nothing to do
	}
	t.closure = nil
	t.parent = InvalidTask
	t.name = ""
	if t.version == math.MaxUint16 {
		diagnostic.Fatalf(nil, "scheduler: task version overflow at index %d", idx)
	}
	t.version++
	tb.free = append(tb.free, idx)
}
