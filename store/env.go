package store

import (
	"sync/atomic"

	"github.com/wippyai/wasm-embed/errors"
)

// FunctionEnv is a store-owned value shared with host bindings. Bindings
// reach it through an EnvMut borrowed for the duration of one call.
type FunctionEnv[T any] struct {
	h Handle[*T]
}

// NewFunctionEnv moves v into the store.
func NewFunctionEnv[T any](s *Store, v T) (FunctionEnv[T], error) {
	p := new(T)
	*p = v
	h, err := Allocate(s, p)
	if err != nil {
		return FunctionEnv[T]{}, err
	}
	return FunctionEnv[T]{h: h}, nil
}

// Handle returns the underlying arena handle.
func (e FunctionEnv[T]) Handle() Handle[*T] { return e.h }

// StoreID returns the id of the owning store.
func (e FunctionEnv[T]) StoreID() uint64 { return e.h.StoreID() }

// Get returns a copy of the current value.
func (e FunctionEnv[T]) Get(s *Store) (T, error) {
	p, err := Resolve(s, e.h)
	if err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

// Set replaces the value. It fails while the environment is borrowed.
func (e FunctionEnv[T]) Set(s *Store, v T) error {
	m, err := e.Borrow(s)
	if err != nil {
		return err
	}
	defer m.Release()
	*m.Data() = v
	return nil
}

// Borrow takes the exclusive borrow. The caller must Release it before the
// environment can be borrowed or read again.
func (e FunctionEnv[T]) Borrow(s *Store) (*EnvMut[T], error) {
	p, release, err := Borrow(s, e.h)
	if err != nil {
		return nil, err
	}
	return &EnvMut[T]{data: p, release: release}, nil
}

// Free removes the environment from the store.
func (e FunctionEnv[T]) Free(s *Store) error {
	return Free(s, e.h)
}

// EnvMut is a call-scoped mutable view of a FunctionEnv. It must not be
// retained after the call that received it returns.
type EnvMut[T any] struct {
	data     *T
	release  func()
	released atomic.Bool
}

// Data returns the environment value. Panics after Release.
func (m *EnvMut[T]) Data() *T {
	if m.released.Load() {
		panic(errors.Invariant(errors.PhaseHost, "environment used after its call returned"))
	}
	return m.data
}

// Release ends the borrow. Subsequent calls are no-ops.
func (m *EnvMut[T]) Release() {
	if m.released.Swap(true) {
		return
	}
	m.release()
}

// Released reports whether the borrow has ended.
func (m *EnvMut[T]) Released() bool {
	return m.released.Load()
}
