package linker

import (
	"context"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
)

// Typed returns a native Go func calling fn. F must have the shape
// func(context.Context, A...) (R..., error) and its value types must match
// the export's signature exactly; the check happens once, here.
//
//	sum, err := linker.Typed[func(context.Context, int32, int32) (int32, error)](s, exp)
//	v, err := sum(ctx, 1, 2)
func Typed[F any](s *store.Store, fn *ExportedFunction) (F, error) {
	var zero F
	if s == nil || fn == nil {
		return zero, errors.InvalidInput(errors.PhaseLookup, "nil store or function")
	}
	if err := s.CheckOwner(errors.PhaseLookup, "export "+fn.name, fn.StoreID()); err != nil {
		return zero, err
	}

	ft := reflect.TypeFor[F]()
	shape, err := types.ShapeOf(ft)
	if err != nil {
		return zero, err
	}
	if !shape.HasContext || !shape.HasError {
		return zero, errors.New(errors.PhaseLookup, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("typed calls must take a context.Context and return an error").
			Build()
	}
	sig, err := types.SignatureOf(shape.Params, shape.Results)
	if err != nil {
		return zero, err
	}
	if !sig.Matches(fn.sig) {
		return zero, errors.SignatureMismatch(errors.PhaseLookup, []string{fn.name}, fn.sig.String(), sig.String())
	}

	if f, ok := typedFastPath[F](fn); ok {
		return f, nil
	}
	return reflect.MakeFunc(ft, typedCall(fn, shape)).Interface().(F), nil
}

func typedCall(fn *ExportedFunction, shape types.FuncShape) func([]reflect.Value) []reflect.Value {
	size := max(len(shape.Params), len(shape.Results))
	return func(in []reflect.Value) []reflect.Value {
		ctx, _ := in[0].Interface().(context.Context)
		stack := make([]uint64, size)
		for i := range shape.Params {
			stack[i] = types.EncodeReflect(in[i+1])
		}

		out := make([]reflect.Value, len(shape.Results)+1)
		if err := fn.callRaw(ctx, stack); err != nil {
			for i, rt := range shape.Results {
				out[i] = reflect.Zero(rt)
			}
			out[len(shape.Results)] = reflect.ValueOf(&err).Elem()
			return out
		}
		for i, rt := range shape.Results {
			out[i] = types.DecodeReflect(stack[i], rt)
		}
		out[len(shape.Results)] = reflect.Zero(types.ErrorType())
		return out
	}
}

// typedFastPath builds reflection-free callers for the most common shapes.
func typedFastPath[F any](fn *ExportedFunction) (F, bool) {
	var zero F
	var f any
	switch any(zero).(type) {
	case func(context.Context, int32) (int32, error):
		f = func(ctx context.Context, a int32) (int32, error) {
			stack := []uint64{api.EncodeI32(a)}
			if err := fn.callRaw(ctx, stack); err != nil {
				return 0, err
			}
			return api.DecodeI32(stack[0]), nil
		}
	case func(context.Context, int32, int32) (int32, error):
		f = func(ctx context.Context, a, b int32) (int32, error) {
			stack := []uint64{api.EncodeI32(a), api.EncodeI32(b)}
			if err := fn.callRaw(ctx, stack); err != nil {
				return 0, err
			}
			return api.DecodeI32(stack[0]), nil
		}
	case func(context.Context, int64) (int64, error):
		f = func(ctx context.Context, a int64) (int64, error) {
			stack := []uint64{api.EncodeI64(a)}
			if err := fn.callRaw(ctx, stack); err != nil {
				return 0, err
			}
			return int64(stack[0]), nil
		}
	case func(context.Context) error:
		f = func(ctx context.Context) error {
			return fn.callRaw(ctx, nil)
		}
	default:
		return zero, false
	}
	return f.(F), true
}
