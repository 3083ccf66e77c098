// Package ident provides the variable identifier scheme shared by every
// compile-time constructor: a pair of (owning function label, local
// counter). Fresh identifiers are minted by a per-function counter, so
// uniqueness across the whole program never requires a global allocator.
package ident

import "fmt"

// ID names a region, type, or capability variable. Two IDs are the same
// variable iff both fields are equal.
type ID struct {
	Owner   int32
	Counter int32
}

func (id ID) String() string {
	return fmt.Sprintf("%d.%d", id.Owner, id.Counter)
}

// Equal reports whether id and other name the same variable.
func (id ID) Equal(other ID) bool {
	return id.Owner == other.Owner && id.Counter == other.Counter
}

// Source tracks the fresh-ID counter for a single function being verified.
// It is reset at the start of every function, per spec: fresh-id generation
// is a per-function counter, never a cross-function source.
type Source struct {
	owner   int32
	counter int32
}

// NewSource starts a fresh-ID source scoped to the function labeled owner.
func NewSource(owner int32) *Source {
	return &Source{owner: owner}
}

// Fresh mints a new, function-local-unique ID.
func (s *Source) Fresh() ID {
	id := ID{Owner: s.owner, Counter: s.counter}
	s.counter++
	return id
}

// Counter returns the next counter value Fresh would mint, without minting
// it — used to hand a signature-phase source's progress to the body phase
// that continues numbering from where synthesis left off.
func (s *Source) Counter() int32 {
	return s.counter
}

// Resume creates a Source that continues numbering from counter rather than
// zero, for the body phase picking up after signature synthesis minted IDs
// 0..counter-1.
func Resume(owner, counter int32) *Source {
	return &Source{owner: owner, counter: counter}
}
