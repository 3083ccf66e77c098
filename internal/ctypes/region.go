package ctypes

import (
	"fmt"

	"github.com/sunholo/savervm/internal/ident"
)

// Region is either a region variable (identified by an ID) or the
// distinguished Heap region. Region variables additionally carry a
// uniqueness bit: unique regions can be freed and must never be captured by
// a polymorphic value; non-unique regions (including Heap) can never be
// freed (spec §3, "Regions").
type Region struct {
	IsHeap bool
	ID     ident.ID
	Unique bool
}

// Heap is the single, shared, non-unique heap region.
var Heap = Region{IsHeap: true}

// NewVar constructs a fresh region variable with the given uniqueness.
func NewVar(id ident.ID, unique bool) Region {
	return Region{ID: id, Unique: unique}
}

// Equal is region structural equality: Heap == Heap, and two variables are
// equal iff their IDs match. Uniqueness is not part of identity — it is a
// property of the binder, recorded once at the point the region was
// introduced.
func (r Region) Equal(other Region) bool {
	if r.IsHeap || other.IsHeap {
		return r.IsHeap == other.IsHeap
	}
	return r.ID.Equal(other.ID)
}

func (r Region) String() string {
	if r.IsHeap {
		return "heap"
	}
	if r.Unique {
		return fmt.Sprintf("rgn!%s", r.ID)
	}
	return fmt.Sprintf("rgn%s", r.ID)
}
