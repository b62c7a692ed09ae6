package types

import (
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

// Signature is an immutable function type: ordered parameter kinds and
// ordered result kinds. Two signatures are compatible only when they match
// element-wise; there is no subtyping or coercion.
type Signature struct {
	params  []ValueKind
	results []ValueKind
}

// NewSignature creates a signature. The slices are copied.
func NewSignature(params, results []ValueKind) Signature {
	return Signature{
		params:  append([]ValueKind(nil), params...),
		results: append([]ValueKind(nil), results...),
	}
}

// SignatureFromWasm converts a decoded function type. It fails for value
// types that have no kind, such as v128.
func SignatureFromWasm(ft wasm.FuncType) (Signature, error) {
	params, err := kindsFromWasm(ft.Params)
	if err != nil {
		return Signature{}, err
	}
	results, err := kindsFromWasm(ft.Results)
	if err != nil {
		return Signature{}, err
	}
	return Signature{params: params, results: results}, nil
}

func kindsFromWasm(vs []wasm.ValType) ([]ValueKind, error) {
	out := make([]ValueKind, len(vs))
	for i, vt := range vs {
		k, ok := FromWasm(vt)
		if !ok {
			return nil, errors.Unsupported(errors.PhaseDecode, "value type "+vt.String())
		}
		out[i] = k
	}
	return out, nil
}

// Params returns a copy of the parameter kinds.
func (s Signature) Params() []ValueKind {
	return append([]ValueKind(nil), s.params...)
}

// Results returns a copy of the result kinds.
func (s Signature) Results() []ValueKind {
	return append([]ValueKind(nil), s.results...)
}

// NumParams returns the parameter count.
func (s Signature) NumParams() int { return len(s.params) }

// NumResults returns the result count.
func (s Signature) NumResults() int { return len(s.results) }

// Param returns the i-th parameter kind.
func (s Signature) Param(i int) ValueKind { return s.params[i] }

// Result returns the i-th result kind.
func (s Signature) Result(i int) ValueKind { return s.results[i] }

// Matches reports element-wise equality of params and results.
func (s Signature) Matches(other Signature) bool {
	return kindsEqual(s.params, other.params) && kindsEqual(s.results, other.results)
}

func kindsEqual(a, b []ValueKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Valid reports whether every kind in the signature is defined.
func (s Signature) Valid() bool {
	for _, k := range s.params {
		if !k.Valid() {
			return false
		}
	}
	for _, k := range s.results {
		if !k.Valid() {
			return false
		}
	}
	return true
}

// String renders the signature as "(i32, i32) -> i32". Multiple results
// are parenthesized, no results render as "()".
func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	writeKinds(&b, s.params)
	b.WriteString(") -> ")
	if len(s.results) == 1 {
		b.WriteString(s.results[0].String())
	} else {
		b.WriteByte('(')
		writeKinds(&b, s.results)
		b.WriteByte(')')
	}
	return b.String()
}

func writeKinds(b *strings.Builder, ks []ValueKind) {
	for i, k := range ks {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k.String())
	}
}

// APITypes returns the engine value types for params and results. It
// fails for kinds that cannot cross the host boundary.
func (s Signature) APITypes() (params, results []api.ValueType, err error) {
	if params, err = apiTypes(s.params); err != nil {
		return nil, nil, err
	}
	if results, err = apiTypes(s.results); err != nil {
		return nil, nil, err
	}
	return params, results, nil
}

func apiTypes(ks []ValueKind) ([]api.ValueType, error) {
	out := make([]api.ValueType, len(ks))
	for i, k := range ks {
		vt, ok := k.API()
		if !ok {
			return nil, errors.Unsupported(errors.PhaseHost, k.String()+" across the host boundary")
		}
		out[i] = vt
	}
	return out, nil
}

// CheckValues verifies vals have exactly the kinds in want.
func CheckValues(want []ValueKind, vals []Value) bool {
	if len(want) != len(vals) {
		return false
	}
	for i, v := range vals {
		if v.Kind() != want[i] {
			return false
		}
	}
	return true
}

// KindsOf returns the kinds of vals.
func KindsOf(vals []Value) []ValueKind {
	out := make([]ValueKind, len(vals))
	for i, v := range vals {
		out[i] = v.Kind()
	}
	return out
}

// FormatKinds renders kinds as "(i32, i64)".
func FormatKinds(ks []ValueKind) string {
	var b strings.Builder
	b.WriteByte('(')
	writeKinds(&b, ks)
	b.WriteByte(')')
	return b.String()
}
