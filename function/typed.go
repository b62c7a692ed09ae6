package function

import (
	"context"
	"reflect"
	"runtime"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
)

// trampolines caches compiled call shapes per Go func type.
var trampolines sync.Map // trampolineKey -> *trampoline

type trampolineKey struct {
	fn  reflect.Type
	env reflect.Type
}

// trampoline is the compiled calling convention of one Go func type:
// optional context, optional environment, value params, value results and
// an optional trailing error.
type trampoline struct {
	shape   types.FuncShape
	sig     types.Signature
	params  []reflect.Type
	envType reflect.Type
	numIn   int
}

// NewTyped binds a native Go func. Its signature is derived from the func
// type: int32/uint32 map to i32, int64/uint64 to i64, float32 to f32,
// float64 to f64 and uintptr to externref. A leading context.Context and a
// trailing error are passed through and not part of the signature.
func NewTyped(s *store.Store, fn any) (*Function, error) {
	t, err := compileTrampoline(fn, nil)
	if err != nil {
		return nil, err
	}
	return register(s, &Function{
		sig:   t.sig,
		name:  funcName(fn),
		raw:   t.bind(fn),
		typed: true,
	})
}

// NewTypedWithEnv binds a native Go func whose first parameter after an
// optional context.Context is *store.EnvMut[T].
func NewTypedWithEnv[T any](s *store.Store, env store.FunctionEnv[T], fn any) (*Function, error) {
	t, err := compileTrampoline(fn, reflect.TypeFor[*store.EnvMut[T]]())
	if err != nil {
		return nil, err
	}
	if err := checkEnvOwner(s, env); err != nil {
		return nil, err
	}
	return register(s, &Function{
		sig:     t.sig,
		name:    funcName(fn),
		raw:     t.bind(fn),
		bindEnv: envBinderFor(s, env),
		typed:   true,
	})
}

func compileTrampoline(fn any, envType reflect.Type) (*trampoline, error) {
	fnType := reflect.TypeOf(fn)
	if fnType != nil && fnType.Kind() == reflect.Func && reflect.ValueOf(fn).IsNil() {
		return nil, errors.InvalidInput(errors.PhaseHost, "nil function")
	}
	key := trampolineKey{fn: fnType, env: envType}
	if cached, ok := trampolines.Load(key); ok {
		return cached.(*trampoline), nil
	}

	shape, err := types.ShapeOf(fnType)
	if err != nil {
		return nil, err
	}
	params := shape.Params
	if envType != nil {
		if len(params) == 0 || params[0] != envType {
			return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				GoType(fnType.String()).
				Detail("first parameter must be %s", envType).
				Build()
		}
		params = params[1:]
	}
	sig, err := types.SignatureOf(params, shape.Results)
	if err != nil {
		return nil, err
	}

	t := &trampoline{
		shape:   shape,
		sig:     sig,
		params:  params,
		envType: envType,
		numIn:   fnType.NumIn(),
	}
	actual, _ := trampolines.LoadOrStore(key, t)
	return actual.(*trampoline), nil
}

// bind returns the raw call for fn, using a reflection-free path for the
// most common shapes.
func (t *trampoline) bind(fn any) rawFunc {
	if t.envType == nil {
		if raw := fastPath(fn); raw != nil {
			return raw
		}
	}

	rv := reflect.ValueOf(fn)
	name := funcName(fn)
	return func(ctx context.Context, env any, stack []uint64) error {
		in := make([]reflect.Value, 0, t.numIn)
		if t.shape.HasContext {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		if t.envType != nil {
			in = append(in, reflect.ValueOf(env))
		}
		for i, pt := range t.params {
			in = append(in, types.DecodeReflect(stack[i], pt))
		}

		out := rv.Call(in)
		if t.shape.HasError {
			if e := out[len(out)-1]; !e.IsNil() {
				return errors.HostFailure(name, e.Interface().(error))
			}
		}
		for i := range t.shape.Results {
			stack[i] = types.EncodeReflect(out[i])
		}
		return nil
	}
}

func fastPath(fn any) rawFunc {
	switch f := fn.(type) {
	case func(int32) int32:
		return func(_ context.Context, _ any, stack []uint64) error {
			stack[0] = api.EncodeI32(f(api.DecodeI32(stack[0])))
			return nil
		}
	case func(int32, int32) int32:
		return func(_ context.Context, _ any, stack []uint64) error {
			stack[0] = api.EncodeI32(f(api.DecodeI32(stack[0]), api.DecodeI32(stack[1])))
			return nil
		}
	case func(int64) int64:
		return func(_ context.Context, _ any, stack []uint64) error {
			stack[0] = api.EncodeI64(f(int64(stack[0])))
			return nil
		}
	case func(float64) float64:
		return func(_ context.Context, _ any, stack []uint64) error {
			stack[0] = api.EncodeF64(f(api.DecodeF64(stack[0])))
			return nil
		}
	}
	return nil
}

func funcName(fn any) string {
	rv := reflect.ValueOf(fn)
	if rv.Kind() == reflect.Func && !rv.IsNil() {
		if rf := runtime.FuncForPC(rv.Pointer()); rf != nil {
			return rf.Name()
		}
	}
	return reflect.TypeOf(fn).String()
}
