// Package handle implements versioned (index, version) identifiers and the
// O(1) allocate/free pool that backs them, in the style of
// _examples/original_source/source/codebase/handle_set.hpp: a handle never
// aliases a freed-then-reallocated slot because its version is bumped on
// every free.
package handle

import "fmt"

// Handle is a 32-bit identifier split into a 16-bit index (low) and a
// 16-bit version (high). The invalid handle uses all-ones in both fields.
type Handle uint32

// Invalid is the sentinel "no handle" value. No HandleSet ever produces
// it, since a HandleSet never assigns index 0xffff (see maxIndex).
const Invalid Handle = 0xffffffff

const indexBits = 16

// New packs an index and version into a Handle.
func New(index, version uint16) Handle {
	return Handle(uint32(version)<<indexBits | uint32(index))
}

// Index returns the low 16 bits.
func (h Handle) Index() uint16 { return uint16(h & 0xffff) }

// Version returns the high 16 bits.
func (h Handle) Version() uint16 { return uint16(h >> indexBits) }

// IsValid reports whether h differs from Invalid. It does not consult any
// HandleSet; use HandleSet.IsAlive for liveness.
func (h Handle) IsValid() bool { return h != Invalid }

func (h Handle) String() string {
	if h == Invalid {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d,v%d)", h.Index(), h.Version())
}
