// Package store owns runtime object state.
//
// A Store wraps one wazero runtime, so every memory, table and global of the
// instances created in it lives there and nowhere else. Host-side objects
// (function bindings, environments, instances) are kept in a generation
// checked arena and addressed by Handle:
//
//	s, err := store.New(ctx)
//	defer s.Close(ctx)
//
//	h, err := store.Allocate(s, counter{})
//	v, err := store.Resolve(s, h)
//	err = store.Free(s, h)
//	_, err = store.Resolve(s, h) // stale_handle
//
// A handle used with a store that did not issue it fails with cross_store.
// Borrow takes an exclusive borrow; a second borrow of the same object fails
// with borrow_conflict instead of blocking.
//
// FunctionEnv is the typed wrapper used by host bindings that carry state.
// The linker borrows it for exactly one host call and hands the binding an
// EnvMut, which panics if it is used after the call returns.
package store
