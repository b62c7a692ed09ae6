package types

import (
	"context"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ContextType is the reflect type of context.Context.
func ContextType() reflect.Type { return contextType }

// ErrorType is the reflect type of error.
func ErrorType() reflect.Type { return errorType }

// KindOf maps a Go type to a value kind. Named types with one of the
// supported underlying kinds are accepted.
func KindOf(t reflect.Type) (ValueKind, bool) {
	switch t.Kind() {
	case reflect.Int32, reflect.Uint32:
		return I32, true
	case reflect.Int64, reflect.Uint64:
		return I64, true
	case reflect.Float32:
		return F32, true
	case reflect.Float64:
		return F64, true
	case reflect.Uintptr:
		return ExternRef, true
	default:
		return 0, false
	}
}

// SignatureOf derives a signature from Go parameter and result types.
func SignatureOf(params, results []reflect.Type) (Signature, error) {
	ps, err := kindsOf(params, "param")
	if err != nil {
		return Signature{}, err
	}
	rs, err := kindsOf(results, "result")
	if err != nil {
		return Signature{}, err
	}
	return Signature{params: ps, results: rs}, nil
}

func kindsOf(ts []reflect.Type, what string) ([]ValueKind, error) {
	out := make([]ValueKind, len(ts))
	for i, t := range ts {
		k, ok := KindOf(t)
		if !ok {
			return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				GoType(t.String()).
				Detail("%s %d has no wasm value type", what, i).
				Build()
		}
		out[i] = k
	}
	return out, nil
}

// FuncShape is a Go func type split into its calling-convention slots.
type FuncShape struct {
	Type       reflect.Type
	Params     []reflect.Type
	Results    []reflect.Type
	HasContext bool
	HasError   bool
}

// ShapeOf splits a func type into an optional leading context.Context,
// value params, value results and an optional trailing error.
func ShapeOf(t reflect.Type) (FuncShape, error) {
	if t == nil || t.Kind() != reflect.Func {
		name := "<nil>"
		if t != nil {
			name = t.String()
		}
		return FuncShape{}, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			GoType(name).
			Detail("expected a func").
			Build()
	}
	if t.IsVariadic() {
		return FuncShape{}, errors.New(errors.PhaseHost, errors.KindUnsupported).
			GoType(t.String()).
			Detail("variadic functions cannot be bound").
			Build()
	}

	shape := FuncShape{Type: t}
	start := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		shape.HasContext = true
		start = 1
	}
	for i := start; i < t.NumIn(); i++ {
		shape.Params = append(shape.Params, t.In(i))
	}
	end := t.NumOut()
	if end > 0 && t.Out(end-1) == errorType {
		shape.HasError = true
		end--
	}
	for i := 0; i < end; i++ {
		shape.Results = append(shape.Results, t.Out(i))
	}
	return shape, nil
}

// FuncSignature derives the signature of a Go func type, skipping the
// context and error slots.
func FuncSignature(t reflect.Type) (Signature, error) {
	shape, err := ShapeOf(t)
	if err != nil {
		return Signature{}, err
	}
	return SignatureOf(shape.Params, shape.Results)
}

// For derives the signature of the Go func type F.
func For[F any]() (Signature, error) {
	return FuncSignature(reflect.TypeOf((*F)(nil)).Elem())
}

// EncodeReflect encodes a Go value to raw stack bits.
func EncodeReflect(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Int32:
		return api.EncodeI32(int32(v.Int()))
	case reflect.Uint32:
		return api.EncodeU32(uint32(v.Uint()))
	case reflect.Int64:
		return api.EncodeI64(v.Int())
	case reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32:
		return api.EncodeF32(float32(v.Float()))
	case reflect.Float64:
		return api.EncodeF64(v.Float())
	default:
		panic(errors.Invariant(errors.PhaseCall, "cannot encode %s", v.Type()))
	}
}

// DecodeReflect decodes raw stack bits into a value of Go type t.
func DecodeReflect(raw uint64, t reflect.Type) reflect.Value {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int32:
		v.SetInt(int64(api.DecodeI32(raw)))
	case reflect.Uint32:
		v.SetUint(uint64(api.DecodeU32(raw)))
	case reflect.Int64:
		v.SetInt(int64(raw))
	case reflect.Uint64, reflect.Uintptr:
		v.SetUint(raw)
	case reflect.Float32:
		v.SetFloat(float64(api.DecodeF32(raw)))
	case reflect.Float64:
		v.SetFloat(api.DecodeF64(raw))
	default:
		panic(errors.Invariant(errors.PhaseCall, "cannot decode into %s", t))
	}
	return v
}
