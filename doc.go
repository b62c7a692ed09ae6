// Package wasmembed binds native Go functions to core WebAssembly imports and
// calls guest exports with typed arguments.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmembed/          Root package (documentation only)
//	├── engine/          wazero runtime configuration and compilation cache
//	├── store/           Store: object arena, handles, host module sharing
//	├── types/           Value kinds, values and function signatures
//	├── function/        Dynamic and typed host function bindings
//	├── module/          Compiled modules and their import/export descriptors
//	├── linker/          Import maps, instantiation, exports and typed calls
//	├── wasm/            Core WASM binary decoding, rewriting and building
//	├── errors/          Structured error types for debugging
//	└── cmd/embed/       CLI for inspecting and calling modules
//
// # Quick Start
//
// Bind a host function and call an export that uses it:
//
//	s, _ := store.New(ctx)
//	defer s.Close(ctx)
//
//	mod, _ := module.Compile(ctx, s.Engine(), wasmBytes)
//
//	env, _ := store.NewFunctionEnv(s, state{Factor: 3})
//	mul, _ := function.NewTypedWithEnv(s, env, func(e *store.EnvMut[state], a int32) int32 {
//		return a * e.Data().Factor
//	})
//
//	imports := linker.NewImports()
//	imports.Namespace("env").Define("multiply_typed", mul)
//
//	inst, _ := linker.NewInstance(ctx, s, mod, imports)
//	exp, _ := inst.Exports().Function("sum")
//	sum, _ := linker.Typed[func(context.Context, int32, int32) (int32, error)](s, exp)
//	v, _ := sum(ctx, 1, 2)
//
// # Stores and Handles
//
// Every binding, environment and instance lives in exactly one Store and is
// addressed by a generation-checked handle. Using an object with another
// store, or after it was freed, fails with a cross_store or stale_handle
// error instead of touching the wrong object. Closing a store closes
// everything in it.
//
// # Linking
//
// Instantiation is all-or-nothing: every import must be defined, be of the
// right kind, belong to the same store and have exactly the imported
// signature before anything is registered with the runtime. A failed link
// leaves the store as it was.
//
// # Error Handling
//
// All errors are *errors.Error values carrying a phase and a kind:
//
//	if errors.HasKind(err, errors.KindSignatureMismatch) { ... }
package wasmembed
