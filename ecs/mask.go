package ecs

// Mask is a per-entity bitset of attached component type ids.
//
// Invariant W1: mask.Test(t) iff the store for t holds a value at the
// entity's index.
type Mask uint64

// MaxComponentTypes bounds how many distinct component types a single
// World can register, since Mask is a 64-bit bitset.
const MaxComponentTypes = 64

// SmallStoreCapacity is the number of (entity, pointer) slots a
// componentStore scans linearly before spilling to dense, directly
// indexed storage. A magic number in the source this is grounded on
// (kFallbackComponentSize); kept as a named constant rather than inlined.
const SmallStoreCapacity = 8

// Test reports whether bit t is set.
func (m Mask) Test(t uint16) bool { return m&(Mask(1)<<t) != 0 }

// Set returns m with bit t set.
func (m Mask) Set(t uint16) Mask { return m | Mask(1)<<t }

// Clear returns m with bit t cleared.
func (m Mask) Clear(t uint16) Mask { return m &^ (Mask(1) << t) }

// Contains reports whether m has every bit set in required. required == 0
// matches every mask, giving "all entities" semantics with no special
// case.
func (m Mask) Contains(required Mask) bool { return m&required == required }

// None reports whether m has no bits set.
func (m Mask) None() bool { return m == 0 }
