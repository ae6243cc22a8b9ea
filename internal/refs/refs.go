// Package refs provides generational reference registries for the lattice
// engine. Storage cursors move whenever the chunk tree rebalances, so user
// code never holds cursors directly. Instead it holds registry entries: a
// slot index plus a generation counter. The tree rewrites the slot contents
// on every reshape, and retiring a slot bumps its generation, which turns
// every outstanding entry for that slot into a stale handle.
package refs

import (
	"sync/atomic"

	"github.com/google/uuid"
)

var versionCounter atomic.Uint64

// NextVersion returns a process-unique monotonic stamp. Registries whose
// contents are wholesale-replaced (a reparsed cluster's node table) stamp
// each incarnation so that entries into a dead incarnation can never
// resolve against its replacement.
func NextVersion() uint64 {
	return versionCounter.Add(1)
}

// DocID identifies a single document instance. Handles embed the id of the
// document that issued them; dereferencing against any other document fails.
type DocID struct {
	id uuid.UUID
}

// NewDocID returns a fresh document identifier.
func NewDocID() DocID {
	return DocID{id: uuid.New()}
}

// IsNil returns true for the zero DocID.
func (d DocID) IsNil() bool {
	return d.id == uuid.Nil
}

// String returns a string representation of the document id.
func (d DocID) String() string {
	return d.id.String()
}

// Entry is a generational reference into a Registry. The zero Entry is nil
// and never resolves.
type Entry struct {
	index uint32
	gen   uint32
}

// Nil is the entry that never resolves.
var Nil = Entry{}

// IsNil returns true for the zero entry.
func (e Entry) IsNil() bool {
	return e.gen == 0
}

// slot generations start at 1 so that the zero Entry stays unresolvable,
// and stop one short of the maximum so generations remain strictly
// monotonic without wrapping.
const (
	firstGen = 1
	lastGen  = ^uint32(0) - 1
)

type slot[T any] struct {
	value    T
	gen      uint32
	occupied bool
}

// Registry is a generational slot table. Insert returns a stable Entry;
// Get and Remove check both occupancy and generation, so entries retired
// by Remove keep resolving to nothing even after the slot is reused.
type Registry[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Insert stores a value and returns its entry.
func (r *Registry[T]) Insert(value T) Entry {
	if n := len(r.free); n > 0 {
		index := r.free[n-1]
		r.free = r.free[:n-1]
		s := &r.slots[index]
		s.value = value
		s.occupied = true
		r.count++
		return Entry{index: index, gen: s.gen}
	}
	r.slots = append(r.slots, slot[T]{value: value, gen: firstGen, occupied: true})
	r.count++
	return Entry{index: uint32(len(r.slots) - 1), gen: firstGen}
}

// Get resolves an entry to its current value.
func (r *Registry[T]) Get(e Entry) (T, bool) {
	var zero T
	if s := r.resolve(e); s != nil {
		return s.value, true
	}
	return zero, false
}

// Set overwrites the value behind a live entry. It returns false when the
// entry is stale. The tree uses Set to keep chunk entries pointing at the
// right page slot across splices.
func (r *Registry[T]) Set(e Entry, value T) bool {
	if s := r.resolve(e); s != nil {
		s.value = value
		return true
	}
	return false
}

// Remove retires an entry, returning the value it held. The slot's
// generation advances, invalidating every copy of the entry.
func (r *Registry[T]) Remove(e Entry) (T, bool) {
	var zero T
	s := r.resolve(e)
	if s == nil {
		return zero, false
	}
	value := s.value
	s.value = zero
	s.occupied = false
	r.count--
	if s.gen < lastGen {
		s.gen++
		r.free = append(r.free, e.index)
	}
	return value, true
}

// Contains reports whether the entry is live.
func (r *Registry[T]) Contains(e Entry) bool {
	return r.resolve(e) != nil
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	return r.count
}

// ForEach visits every live entry in slot order.
func (r *Registry[T]) ForEach(visit func(e Entry, value T) bool) {
	for i := range r.slots {
		s := &r.slots[i]
		if !s.occupied {
			continue
		}
		if !visit(Entry{index: uint32(i), gen: s.gen}, s.value) {
			return
		}
	}
}

func (r *Registry[T]) resolve(e Entry) *slot[T] {
	if e.IsNil() || int(e.index) >= len(r.slots) {
		return nil
	}
	s := &r.slots[e.index]
	if !s.occupied || s.gen != e.gen {
		return nil
	}
	return s
}
