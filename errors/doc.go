// Package errors provides structured error types for the wasm-embed library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes context: a path (import namespace and name, export
// name), Go and wasm type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLinking, errors.KindSignatureMismatch).
//		Path("env", "multiply").
//		WasmType("(i32) -> i32").
//		Detail("binding has (i32, i32) -> i32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnresolvedImport("env", "multiply")
//	err := errors.ExportNotFound("sum")
//
// All errors implement the standard error interface and support errors.Is/As.
// HasKind checks a chain for a kind regardless of phase, which is how callers
// find a host failure underneath a guest trap.
package errors
