package store

import "fmt"

// ID is the untyped part of a handle: the issuing store, the slot index and
// the slot generation at allocation time. The zero ID is never valid.
type ID struct {
	Store uint64
	Index uint32
	Gen   uint32
}

func (id ID) String() string {
	return fmt.Sprintf("store %d slot %d gen %d", id.Store, id.Index, id.Gen)
}

// Handle is a typed reference to an object owned by a Store. It is only
// meaningful for the store that issued it, and only until the object is
// freed or the store is closed.
type Handle[T any] struct {
	id ID
}

// ID returns the untyped handle.
func (h Handle[T]) ID() ID { return h.id }

// StoreID returns the id of the issuing store.
func (h Handle[T]) StoreID() uint64 { return h.id.Store }

// IsZero reports whether h is the zero handle.
func (h Handle[T]) IsZero() bool { return h.id == ID{} }

func (h Handle[T]) String() string { return h.id.String() }
