package types

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

func TestSignature_Matches(t *testing.T) {
	a := NewSignature([]ValueKind{I32, I32}, []ValueKind{I32})

	assert.True(t, a.Matches(NewSignature([]ValueKind{I32, I32}, []ValueKind{I32})))
	assert.False(t, a.Matches(NewSignature([]ValueKind{I32, I64}, []ValueKind{I32})), "param kind differs")
	assert.False(t, a.Matches(NewSignature([]ValueKind{I32}, []ValueKind{I32})), "param arity differs")
	assert.False(t, a.Matches(NewSignature([]ValueKind{I32, I32}, nil)), "result arity differs")
	assert.False(t, a.Matches(NewSignature([]ValueKind{I32, I32}, []ValueKind{F32})), "result kind differs")
}

func TestSignature_Immutable(t *testing.T) {
	params := []ValueKind{I32}
	sig := NewSignature(params, nil)
	params[0] = F64
	assert.Equal(t, I32, sig.Param(0))

	got := sig.Params()
	got[0] = F64
	assert.Equal(t, I32, sig.Param(0))
}

func TestSignature_String(t *testing.T) {
	tests := []struct {
		sig  Signature
		want string
	}{
		{NewSignature([]ValueKind{I32, I32}, []ValueKind{I32}), "(i32, i32) -> i32"},
		{NewSignature(nil, nil), "() -> ()"},
		{NewSignature([]ValueKind{F64}, []ValueKind{I64, F32}), "(f64) -> (i64, f32)"},
		{NewSignature([]ValueKind{ExternRef}, nil), "(externref) -> ()"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.sig.String())
	}
}

func TestSignature_Valid(t *testing.T) {
	assert.True(t, NewSignature([]ValueKind{I32}, []ValueKind{FuncRef}).Valid())
	assert.False(t, NewSignature([]ValueKind{0}, nil).Valid())
	assert.False(t, NewSignature(nil, []ValueKind{99}).Valid())
}

func TestSignatureFromWasm(t *testing.T) {
	sig, err := SignatureFromWasm(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValF64},
		Results: []wasm.ValType{wasm.ValExtern},
	})
	require.NoError(t, err)
	assert.Equal(t, "(i32, f64) -> externref", sig.String())

	_, err = SignatureFromWasm(wasm.FuncType{Params: []wasm.ValType{wasm.ValV128}})
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))
}

func TestSignature_APITypes(t *testing.T) {
	params, results, err := NewSignature([]ValueKind{I32, I64, F32, F64, ExternRef}, []ValueKind{I32}).APITypes()
	require.NoError(t, err)
	assert.Equal(t, []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64, api.ValueTypeExternref,
	}, params)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32}, results)

	_, _, err = NewSignature([]ValueKind{FuncRef}, nil).APITypes()
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))
}

func TestValue_Accessors(t *testing.T) {
	assert.Equal(t, int32(-7), ValueI32(-7).I32())
	assert.Equal(t, uint64(0xFFFFFFF9), ValueI32(-7).Encode(), "i32 is zero-extended on the stack")
	assert.Equal(t, int64(math.MinInt64), ValueI64(math.MinInt64).I64())
	assert.Equal(t, float32(1.5), ValueF32(1.5).F32())
	assert.Equal(t, 2.25, ValueF64(2.25).F64())
	assert.Equal(t, uintptr(0xdead), ValueExternRef(0xdead).ExternRef())

	assert.Equal(t, int32(-1), DecodeValue(I32, 0xFFFFFFFFFFFFFFFF).I32())
	assert.Equal(t, uint64(0xFFFFFFFF), DecodeValue(I32, 0xFFFFFFFFFFFFFFFF).Encode())

	assert.Equal(t, "i32:6", ValueI32(6).String())
	assert.Equal(t, "f64:0.5", ValueF64(0.5).String())
	assert.Equal(t, any(int64(3)), ValueI64(3).Interface())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		kind ValueKind
		in   string
		want Value
	}{
		{I32, "42", ValueI32(42)},
		{I32, "-1", ValueI32(-1)},
		{I32, "0xffffffff", ValueI32(-1)},
		{I64, "9007199254740993", ValueI64(9007199254740993)},
		{F32, "1.5", ValueF32(1.5)},
		{F64, "-0.25", ValueF64(-0.25)},
		{ExternRef, "0x10", ValueExternRef(16)},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.kind, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseValue(I32, "nope")
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))

	_, err = ParseValue(FuncRef, "1")
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("f32")
	assert.True(t, ok)
	assert.Equal(t, F32, k)

	_, ok = ParseKind("v128")
	assert.False(t, ok)
}

type handle uint32

func TestFor(t *testing.T) {
	sig, err := For[func(context.Context, int32, int32) (int32, error)]()
	require.NoError(t, err)
	assert.Equal(t, "(i32, i32) -> i32", sig.String())

	sig, err = For[func(handle, uint64, float32, uintptr) float64]()
	require.NoError(t, err)
	assert.Equal(t, "(i32, i64, f32, externref) -> f64", sig.String())

	sig, err = For[func()]()
	require.NoError(t, err)
	assert.Equal(t, "() -> ()", sig.String())

	_, err = For[func(string) int32]()
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindTypeMismatch))

	_, err = For[int]()
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))

	_, err = For[func(...int32)]()
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))
}

func TestShapeOf(t *testing.T) {
	shape, err := ShapeOf(reflect.TypeOf(func(context.Context, int64) error { return nil }))
	require.NoError(t, err)
	assert.True(t, shape.HasContext)
	assert.True(t, shape.HasError)
	assert.Len(t, shape.Params, 1)
	assert.Empty(t, shape.Results)

	// context in a non-leading position is an ordinary (unsupported) param
	_, err = FuncSignature(reflect.TypeOf(func(int32, context.Context) {}))
	assert.Error(t, err)
}

func TestReflectRoundTrip(t *testing.T) {
	values := []any{int32(-5), uint32(math.MaxUint32), int64(-1 << 40), uint64(math.MaxUint64), float32(3.5), 6.25, uintptr(99), handle(7)}
	for _, in := range values {
		v := reflect.ValueOf(in)
		raw := EncodeReflect(v)
		out := DecodeReflect(raw, v.Type())
		assert.Equal(t, in, out.Interface())
	}
}

func TestExternKind(t *testing.T) {
	assert.Equal(t, "func", ExternFunc.String())
	assert.Equal(t, "memory", ExternMemory.String())
	assert.Equal(t, "global", ExternGlobal.String())
	assert.Equal(t, "table", ExternTable.String())
}
