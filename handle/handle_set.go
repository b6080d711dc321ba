package handle

import (
	"log/slog"
	"math"

	"github.com/dfcore/lemon/internal/diagnostic"
)

// maxIndex bounds the number of distinct indices a HandleSet will ever
// assign, leaving 0xffff unused so it never collides with Invalid's index
// field.
const maxIndex = 0xfffe

// HandleSetConfig configures a HandleSet. The zero value is usable; Logger
// defaults to slog.Default().
type HandleSetConfig struct {
	Logger *slog.Logger
}

// HandleSet is a pool of versioned handles with O(1) allocate/free and
// ascending-index iteration over live handles.
//
// Invariant V1: for every index i, versions[i] is odd iff a live handle
// with index i currently exists.
// Invariant V2: Create flips the low bit 0->1; Free flips 1->0; version
// overflow is a hard error.
// Invariant V3: free indices are reused LIFO.
type HandleSet struct {
	log      *slog.Logger
	versions []uint16
	free     []uint16 // LIFO stack of freed indices
}

// NewHandleSet constructs an empty HandleSet.
func NewHandleSet(cfg HandleSetConfig) *HandleSet {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &HandleSet{log: log.With("subsystem", "handle.HandleSet")}
}

// Create allocates a fresh handle: it pops a free index and bumps its
// version to the next odd value, or appends a new index with version 1.
// Fatal if the handle space is exhausted or a version would overflow.
func (s *HandleSet) Create() Handle {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		s.versions[idx]++ // even -> odd, cannot wrap (max even is 0xfffe)
		return New(idx, s.versions[idx])
	}
	idx := len(s.versions)
	if idx > maxIndex {
		diagnostic.Fatalf(s.log, "handle: index space exhausted at %d indices", len(s.versions))
	}
	s.versions = append(s.versions, 1)
	return New(uint16(idx), 1)
}

// Free releases h if it is alive, bumping its version to even and pushing
// its index onto the free list. Returns whether anything was freed; a
// stale or already-dead handle is a silent no-op, never fatal.
func (s *HandleSet) Free(h Handle) bool {
	if !s.IsAlive(h) {
		return false
	}
	idx := h.Index()
	if s.versions[idx] == math.MaxUint16 {
		diagnostic.Fatalf(s.log, "handle: version overflow at index %d", idx)
	}
	s.versions[idx]++ // odd -> even
	s.free = append(s.free, idx)
	return true
}

// IsAlive reports whether h refers to a currently live handle.
func (s *HandleSet) IsAlive(h Handle) bool {
	idx := h.Index()
	if int(idx) >= len(s.versions) {
		return false
	}
	v := s.versions[idx]
	return v == h.Version() && v&1 == 1
}

// Version returns the current version stored for h's index, or 0 if the
// index was never assigned.
func (s *HandleSet) Version(h Handle) uint16 {
	idx := h.Index()
	if int(idx) >= len(s.versions) {
		return 0
	}
	return s.versions[idx]
}

// Len returns the number of currently live handles.
func (s *HandleSet) Len() int {
	return len(s.versions) - len(s.free)
}

// Cap returns the number of indices ever assigned (live or freed).
func (s *HandleSet) Cap() int { return len(s.versions) }

// Clear resets the set to empty, as if newly constructed. Used by
// ecs.World.Reset.
func (s *HandleSet) Clear() {
	s.versions = s.versions[:0]
	s.free = s.free[:0]
}

// Each calls f for every live handle in ascending index order, stopping
// early if f returns false. Removing the current handle during iteration
// is permitted; inserting is not.
func (s *HandleSet) Each(f func(Handle) bool) {
	for idx, v := range s.versions {
		if v&1 == 1 {
			if !f(New(uint16(idx), v)) {
				return
			}
		}
	}
}
