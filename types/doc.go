// Package types defines WebAssembly value kinds, values and function
// signatures, and their mapping to Go types.
//
// A Signature is the sole admission gate for binding a host function to an
// import and for calling an export through a typed handle: Matches compares
// params and results element-wise with no coercion.
//
// Go types map to kinds as follows:
//
//	int32, uint32  -> i32
//	int64, uint64  -> i64
//	float32        -> f32
//	float64        -> f64
//	uintptr        -> externref
//
// A leading context.Context parameter and a trailing error result are
// calling-convention slots and never appear in a signature:
//
//	sig, _ := types.For[func(context.Context, int32, int32) (int32, error)]()
//	sig.String() // "(i32, i32) -> i32"
package types
