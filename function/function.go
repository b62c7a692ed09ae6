package function

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
)

// rawFunc runs a binding over raw stack bits. Params are read from the
// front of stack and results written back over them. env is the borrowed
// *store.EnvMut[T] for bindings that carry one, nil otherwise.
type rawFunc func(ctx context.Context, env any, stack []uint64) error

// envBinder borrows a binding's environment for one call.
type envBinder func() (env any, release func(), err error)

// Function is a host function bound to a Store. It is immutable after
// creation and can satisfy any number of imports with a matching signature.
type Function struct {
	sig     types.Signature
	raw     rawFunc
	bindEnv envBinder
	s       *store.Store
	handle  store.Handle[*Function]
	name    string
	typed   bool
}

func register(s *store.Store, f *Function) (*Function, error) {
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "nil store")
	}
	if _, _, err := f.sig.APITypes(); err != nil {
		return nil, err
	}
	f.s = s
	h, err := store.Allocate(s, f)
	if err != nil {
		return nil, err
	}
	f.handle = h
	return f, nil
}

// Signature returns the binding's signature.
func (f *Function) Signature() types.Signature { return f.sig }

// ExternKind implements types.Extern.
func (f *Function) ExternKind() types.ExternKind { return types.ExternFunc }

// StoreID returns the id of the owning store.
func (f *Function) StoreID() uint64 { return f.handle.StoreID() }

// Handle returns the binding's handle in its store.
func (f *Function) Handle() store.Handle[*Function] { return f.handle }

// Name identifies the binding in errors and logs.
func (f *Function) Name() string { return f.name }

// IsTyped reports whether the binding was created from a native Go func.
func (f *Function) IsTyped() bool { return f.typed }

// Call invokes the binding from the host.
func (f *Function) Call(ctx context.Context, args ...types.Value) ([]types.Value, error) {
	params := f.sig.Params()
	if !types.CheckValues(params, args) {
		return nil, errors.SignatureMismatch(errors.PhaseCall, []string{f.name},
			types.FormatKinds(params), types.FormatKinds(types.KindsOf(args)))
	}

	stack := make([]uint64, max(len(params), f.sig.NumResults()))
	for i, a := range args {
		stack[i] = a.Encode()
	}
	if err := f.CallRaw(ctx, stack); err != nil {
		return nil, err
	}

	results := make([]types.Value, f.sig.NumResults())
	for i := range results {
		results[i] = types.DecodeValue(f.sig.Result(i), stack[i])
	}
	return results, nil
}

// CallRaw invokes the binding over raw stack bits. len(stack) must be at
// least max(NumParams, NumResults). A freed binding fails with a stale
// handle error on every path, including calls from already linked guests.
func (f *Function) CallRaw(ctx context.Context, stack []uint64) (err error) {
	if _, err := store.Resolve(f.s, f.handle); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var env any
	if f.bindEnv != nil {
		e, release, berr := f.bindEnv()
		if berr != nil {
			return berr
		}
		defer release()
		env = e
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.HostFailure(f.name, panicError(r))
		}
	}()
	return f.raw(ctx, env, stack)
}

// GoModuleFunction adapts the binding to wazero's guest-to-host calling
// convention. Failures are raised as panics carrying *errors.Error, which
// wazero reports as the error of the guest call.
func (f *Function) GoModuleFunction() api.GoModuleFunction {
	return api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		if err := f.CallRaw(ctx, stack); err != nil {
			panic(err)
		}
	})
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
