package types

import (
	"fmt"
	"strconv"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

// ValueKind is the type of a single WebAssembly value.
type ValueKind uint8

// Value kinds. The zero value is invalid.
const (
	I32 ValueKind = iota + 1
	I64
	F32
	F64
	ExternRef
	FuncRef
)

// String returns the text format name of the kind.
func (k ValueKind) String() string {
	switch k {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case ExternRef:
		return "externref"
	case FuncRef:
		return "funcref"
	default:
		return "invalid"
	}
}

// Valid reports whether k is one of the defined kinds.
func (k ValueKind) Valid() bool {
	return k >= I32 && k <= FuncRef
}

// ParseKind parses a text format type name.
func ParseKind(s string) (ValueKind, bool) {
	for k := I32; k <= FuncRef; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// FromWasm converts a binary value type. V128 has no kind.
func FromWasm(vt wasm.ValType) (ValueKind, bool) {
	switch vt {
	case wasm.ValI32:
		return I32, true
	case wasm.ValI64:
		return I64, true
	case wasm.ValF32:
		return F32, true
	case wasm.ValF64:
		return F64, true
	case wasm.ValExtern:
		return ExternRef, true
	case wasm.ValFuncRef:
		return FuncRef, true
	default:
		return 0, false
	}
}

// Wasm returns the binary encoding of k.
func (k ValueKind) Wasm() wasm.ValType {
	switch k {
	case I32:
		return wasm.ValI32
	case I64:
		return wasm.ValI64
	case F32:
		return wasm.ValF32
	case F64:
		return wasm.ValF64
	case ExternRef:
		return wasm.ValExtern
	case FuncRef:
		return wasm.ValFuncRef
	default:
		return 0
	}
}

// API returns the engine value type for k. Funcref values cannot cross a
// host function boundary in the engine, so FuncRef reports false.
func (k ValueKind) API() (api.ValueType, bool) {
	switch k {
	case I32:
		return api.ValueTypeI32, true
	case I64:
		return api.ValueTypeI64, true
	case F32:
		return api.ValueTypeF32, true
	case F64:
		return api.ValueTypeF64, true
	case ExternRef:
		return api.ValueTypeExternref, true
	default:
		return 0, false
	}
}

// FromAPI converts an engine value type.
func FromAPI(vt api.ValueType) (ValueKind, bool) {
	return FromWasm(wasm.ValType(vt))
}

// Value is an untyped WebAssembly value: a kind plus 64 raw bits encoded
// the way the engine encodes call stacks.
type Value struct {
	bits uint64
	kind ValueKind
}

// ValueI32 creates an i32 value.
func ValueI32(v int32) Value { return Value{kind: I32, bits: api.EncodeI32(v)} }

// ValueI64 creates an i64 value.
func ValueI64(v int64) Value { return Value{kind: I64, bits: api.EncodeI64(v)} }

// ValueF32 creates an f32 value.
func ValueF32(v float32) Value { return Value{kind: F32, bits: api.EncodeF32(v)} }

// ValueF64 creates an f64 value.
func ValueF64(v float64) Value { return Value{kind: F64, bits: api.EncodeF64(v)} }

// ValueExternRef creates an externref value from an opaque host pointer.
func ValueExternRef(v uintptr) Value { return Value{kind: ExternRef, bits: api.EncodeExternref(v)} }

// DecodeValue wraps raw stack bits of the given kind.
func DecodeValue(kind ValueKind, raw uint64) Value {
	if kind == I32 {
		raw = uint64(uint32(raw))
	}
	return Value{kind: kind, bits: raw}
}

// Zero returns the zero value of kind.
func Zero(kind ValueKind) Value {
	return Value{kind: kind}
}

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// Encode returns the raw stack encoding.
func (v Value) Encode() uint64 { return v.bits }

// I32 returns the value as int32.
func (v Value) I32() int32 { return api.DecodeI32(v.bits) }

// I64 returns the value as int64.
func (v Value) I64() int64 { return int64(v.bits) }

// F32 returns the value as float32.
func (v Value) F32() float32 { return api.DecodeF32(v.bits) }

// F64 returns the value as float64.
func (v Value) F64() float64 { return api.DecodeF64(v.bits) }

// ExternRef returns the value as an opaque host pointer.
func (v Value) ExternRef() uintptr { return api.DecodeExternref(v.bits) }

// Interface returns the value as its natural Go type.
func (v Value) Interface() any {
	switch v.kind {
	case I32:
		return v.I32()
	case I64:
		return v.I64()
	case F32:
		return v.F32()
	case F64:
		return v.F64()
	case ExternRef, FuncRef:
		return v.ExternRef()
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case I32:
		return fmt.Sprintf("i32:%d", v.I32())
	case I64:
		return fmt.Sprintf("i64:%d", v.I64())
	case F32:
		return "f32:" + strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case F64:
		return "f64:" + strconv.FormatFloat(v.F64(), 'g', -1, 64)
	case ExternRef, FuncRef:
		return fmt.Sprintf("%s:0x%x", v.kind, v.bits)
	default:
		return "invalid"
	}
}

// ParseValue parses s as a value of kind, e.g. "42" as i32 or "1.5" as f64.
func ParseValue(kind ValueKind, s string) (Value, error) {
	var (
		v   Value
		err error
	)
	switch kind {
	case I32:
		var n int64
		n, err = strconv.ParseInt(s, 0, 32)
		if err != nil {
			// accept unsigned spellings such as 0xffffffff
			var u uint64
			if u, err = strconv.ParseUint(s, 0, 32); err == nil {
				n = int64(int32(uint32(u)))
			}
		}
		v = ValueI32(int32(n))
	case I64:
		var n int64
		n, err = strconv.ParseInt(s, 0, 64)
		v = ValueI64(n)
	case F32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v = ValueF32(float32(f))
	case F64:
		var f float64
		f, err = strconv.ParseFloat(s, 64)
		v = ValueF64(f)
	case ExternRef:
		var u uint64
		u, err = strconv.ParseUint(s, 0, strconv.IntSize)
		v = ValueExternRef(uintptr(u))
	default:
		return Value{}, errors.Unsupported(errors.PhaseCall, "parse "+kind.String()+" value")
	}
	if err != nil {
		return Value{}, errors.New(errors.PhaseCall, errors.KindInvalidInput).
			WasmType(kind.String()).
			Value(s).
			Cause(err).
			Detail("cannot parse %q", s).
			Build()
	}
	return v, nil
}
