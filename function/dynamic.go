package function

import (
	"context"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
)

// DynamicFunc is a host closure over untyped values.
type DynamicFunc func(ctx context.Context, args []types.Value) ([]types.Value, error)

// DynamicEnvFunc is a DynamicFunc that also receives its environment,
// borrowed for the duration of the call.
type DynamicEnvFunc[T any] func(ctx context.Context, env *store.EnvMut[T], args []types.Value) ([]types.Value, error)

// NewDynamic binds fn under an explicit signature. Results returned by fn
// are checked against the signature on every call.
func NewDynamic(s *store.Store, sig types.Signature, fn DynamicFunc) (*Function, error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "nil dynamic function")
	}
	name := "dynamic" + sig.String()
	return register(s, &Function{
		sig:  sig,
		name: name,
		raw: dynamicRaw(name, sig, func(ctx context.Context, _ any, args []types.Value) ([]types.Value, error) {
			return fn(ctx, args)
		}),
	})
}

// NewDynamicWithEnv binds fn with access to env.
func NewDynamicWithEnv[T any](s *store.Store, env store.FunctionEnv[T], sig types.Signature, fn DynamicEnvFunc[T]) (*Function, error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "nil dynamic function")
	}
	if err := checkEnvOwner(s, env); err != nil {
		return nil, err
	}
	name := "dynamic" + sig.String()
	return register(s, &Function{
		sig:     sig,
		name:    name,
		bindEnv: envBinderFor(s, env),
		raw: dynamicRaw(name, sig, func(ctx context.Context, e any, args []types.Value) ([]types.Value, error) {
			return fn(ctx, e.(*store.EnvMut[T]), args)
		}),
	})
}

func dynamicRaw(name string, sig types.Signature, call func(context.Context, any, []types.Value) ([]types.Value, error)) rawFunc {
	params := sig.Params()
	results := sig.Results()
	return func(ctx context.Context, env any, stack []uint64) error {
		args := make([]types.Value, len(params))
		for i, k := range params {
			args[i] = types.DecodeValue(k, stack[i])
		}
		out, err := call(ctx, env, args)
		if err != nil {
			return errors.HostFailure(name, err)
		}
		if !types.CheckValues(results, out) {
			return errors.SignatureMismatch(errors.PhaseCall, []string{name},
				types.FormatKinds(results), types.FormatKinds(types.KindsOf(out)))
		}
		for i, v := range out {
			stack[i] = v.Encode()
		}
		return nil
	}
}

func checkEnvOwner[T any](s *store.Store, env store.FunctionEnv[T]) error {
	if s == nil {
		return errors.InvalidInput(errors.PhaseHost, "nil store")
	}
	return s.CheckOwner(errors.PhaseHost, "environment", env.StoreID())
}

func envBinderFor[T any](s *store.Store, env store.FunctionEnv[T]) envBinder {
	return func() (any, func(), error) {
		m, err := env.Borrow(s)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Release, nil
	}
}
