package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-embed/engine"
	"github.com/wippyai/wasm-embed/errors"
)

var nextStoreID atomic.Uint64

// Store owns all runtime object state: the wazero runtime that holds guest
// memories, tables and globals, the shared host modules backing import
// bindings, and an arena of host-side objects addressed by Handle.
type Store struct {
	eng        *engine.Engine
	runtime    wazero.Runtime
	shared     map[string]*sharedModule
	compiled   map[string]wazero.CompiledModule
	observers  []Observer
	arena      arena
	id         uint64
	mu         sync.Mutex
	modMu      sync.Mutex
	obsMu      sync.RWMutex
	ownsEngine bool
	closed     bool
}

type sharedModule struct {
	mod  api.Module
	refs int
}

// Stats is a snapshot of store occupancy.
type Stats struct {
	Objects         int
	SharedModules   int
	CompiledModules int
}

// New creates a store with a private engine built from the default config.
// The engine is closed with the store.
func New(ctx context.Context) (*Store, error) {
	eng, err := engine.New(ctx, nil)
	if err != nil {
		return nil, err
	}
	s, err := NewWithEngine(ctx, eng)
	if err != nil {
		return nil, multierr.Append(err, eng.Close(ctx))
	}
	s.ownsEngine = true
	return s, nil
}

// NewWithEngine creates a store that shares eng's compilation cache. The
// caller keeps ownership of eng and must close it after the store.
func NewWithEngine(ctx context.Context, eng *engine.Engine) (*Store, error) {
	if eng == nil {
		return nil, errors.InvalidInput(errors.PhaseStore, "nil engine")
	}
	rt, err := eng.NewRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return &Store{
		id:       nextStoreID.Add(1),
		eng:      eng,
		runtime:  rt,
		arena:    newArena(),
		shared:   make(map[string]*sharedModule),
		compiled: make(map[string]wazero.CompiledModule),
	}, nil
}

// ID returns the process-unique store id recorded in every handle.
func (s *Store) ID() uint64 { return s.id }

// Engine returns the engine the store was created from.
func (s *Store) Engine() *engine.Engine { return s.eng }

// Runtime returns the wazero runtime owned by the store.
func (s *Store) Runtime() wazero.Runtime { return s.runtime }

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Allocate stores v and returns a handle to it.
func Allocate[T any](s *Store, v T) (Handle[T], error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Handle[T]{}, errors.Closed(errors.PhaseStore, "store")
	}
	index, gen := s.arena.insert(v)
	s.mu.Unlock()

	h := Handle[T]{id: ID{Store: s.id, Index: index, Gen: gen}}
	s.notify(Event{Type: EventAllocated, ID: h.id, Value: v})
	return h, nil
}

// Resolve returns the value behind h. An exclusively borrowed value cannot
// be resolved until the borrow is released.
func Resolve[T any](s *Store, h Handle[T]) (T, error) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slotLocked(h.id)
	if err != nil {
		return zero, err
	}
	if sl.borrowed {
		return zero, errors.BorrowConflict(errors.PhaseStore, typeName[T]())
	}
	v, ok := sl.value.(T)
	if !ok {
		return zero, typeMismatch[T](sl.value)
	}
	return v, nil
}

// Free removes the value behind h. Its slot may be reused, but h and every
// copy of it stay invalid.
func Free[T any](s *Store, h Handle[T]) error {
	s.mu.Lock()
	sl, err := s.slotLocked(h.id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := sl.value.(T); !ok {
		s.mu.Unlock()
		return typeMismatch[T](sl.value)
	}
	v, err := s.arena.remove(h.id.Index, h.id.Gen)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
	s.notify(Event{Type: EventFreed, ID: h.id, Value: v})
	return nil
}

// Borrow takes an exclusive borrow of the value behind h. The returned
// release func ends the borrow and is safe to call more than once.
func Borrow[T any](s *Store, h Handle[T]) (T, func(), error) {
	var zero T
	s.mu.Lock()
	sl, err := s.slotLocked(h.id)
	if err != nil {
		s.mu.Unlock()
		return zero, nil, err
	}
	v, ok := sl.value.(T)
	if !ok {
		s.mu.Unlock()
		return zero, nil, typeMismatch[T](sl.value)
	}
	if sl.borrowed {
		s.mu.Unlock()
		return zero, nil, errors.BorrowConflict(errors.PhaseStore, typeName[T]())
	}
	sl.borrowed = true
	s.mu.Unlock()

	s.notify(Event{Type: EventBorrowed, ID: h.id, Value: v})

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			if sl, err := s.arena.lookup(h.id.Index, h.id.Gen); err == nil {
				sl.borrowed = false
			}
			s.mu.Unlock()
			s.notify(Event{Type: EventReleased, ID: h.id, Value: v})
		})
	}
	return v, release, nil
}

// slotLocked checks ownership, liveness and generation. Caller holds s.mu.
func (s *Store) slotLocked(id ID) (*slot, error) {
	if s.closed {
		return nil, errors.Closed(errors.PhaseStore, "store")
	}
	if id.Store != s.id {
		if id.Store == 0 {
			return nil, errors.StaleHandle(errors.PhaseStore, "zero handle")
		}
		return nil, errors.CrossStore(errors.PhaseStore, "handle", id.Store, s.id)
	}
	return s.arena.lookup(id.Index, id.Gen)
}

// CheckOwner returns a cross-store error when storeID is not this store.
func (s *Store) CheckOwner(phase errors.Phase, what string, storeID uint64) error {
	if storeID != s.id {
		return errors.CrossStore(phase, what, storeID, s.id)
	}
	return nil
}

// Compile compiles bin in the store's runtime, caching by key so a repeat
// within one store is free. Entries live until DiscardCompiled or Close.
func (s *Store) Compile(ctx context.Context, key string, bin []byte) (wazero.CompiledModule, error) {
	s.modMu.Lock()
	defer s.modMu.Unlock()
	if s.IsClosed() {
		return nil, errors.Closed(errors.PhaseCompile, "store")
	}
	if c, ok := s.compiled[key]; ok {
		return c, nil
	}
	c, err := s.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.CompileFailed(err)
	}
	s.compiled[key] = c
	return c, nil
}

// DiscardCompiled closes and forgets the module compiled under key. Unknown
// keys are ignored. Instances already created from it keep running.
func (s *Store) DiscardCompiled(ctx context.Context, key string) error {
	s.modMu.Lock()
	defer s.modMu.Unlock()
	c, ok := s.compiled[key]
	if !ok {
		return nil
	}
	delete(s.compiled, key)
	if s.IsClosed() {
		return nil
	}
	return c.Close(ctx)
}

// AcquireModule returns the host module registered under name, building and
// instantiating it on first use. Each call must be paired with ReleaseModule.
func (s *Store) AcquireModule(ctx context.Context, name string, build func(wazero.HostModuleBuilder) error) (api.Module, bool, error) {
	s.modMu.Lock()
	defer s.modMu.Unlock()
	if s.IsClosed() {
		return nil, false, errors.Closed(errors.PhaseLinking, "store")
	}

	if sm, ok := s.shared[name]; ok {
		sm.refs++
		return sm.mod, true, nil
	}

	b := s.runtime.NewHostModuleBuilder(name)
	if err := build(b); err != nil {
		return nil, false, err
	}
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, false, errors.Wrap(errors.PhaseLinking, errors.KindInvalidData, err,
			fmt.Sprintf("instantiate host module %q", name))
	}
	s.shared[name] = &sharedModule{mod: mod, refs: 1}
	return mod, false, nil
}

// ReleaseModule drops one reference to a shared host module and closes it
// when the last reference goes.
func (s *Store) ReleaseModule(ctx context.Context, name string) error {
	s.modMu.Lock()
	defer s.modMu.Unlock()

	sm, ok := s.shared[name]
	if !ok {
		if s.IsClosed() {
			return nil
		}
		return errors.Invariant(errors.PhaseLinking, "release of unknown host module %q", name)
	}
	sm.refs--
	if sm.refs > 0 {
		return nil
	}
	delete(s.shared, name)
	return sm.mod.Close(ctx)
}

// Stats returns current occupancy.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	objects := s.arena.live
	s.mu.Unlock()

	s.modMu.Lock()
	defer s.modMu.Unlock()
	return Stats{
		Objects:         objects,
		SharedModules:   len(s.shared),
		CompiledModules: len(s.compiled),
	}
}

// Close closes the runtime, which closes every instance and host module,
// drops every stored value and invalidates all handles. Closing twice is a
// no-op.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	values := s.arena.drain()
	s.mu.Unlock()

	s.modMu.Lock()
	s.shared = make(map[string]*sharedModule)
	s.compiled = make(map[string]wazero.CompiledModule)
	s.modMu.Unlock()

	err := s.runtime.Close(ctx)
	for _, v := range values {
		if d, ok := v.(Dropper); ok {
			d.Drop()
		}
	}
	if s.ownsEngine {
		err = multierr.Append(err, s.eng.Close(ctx))
	}
	return err
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func typeMismatch[T any](got any) error {
	return errors.New(errors.PhaseStore, errors.KindTypeMismatch).
		GoType(typeName[T]()).
		Detail("slot holds %T", got).
		Build()
}
