// Package linker resolves a module's imports and instantiates it.
//
// # Import Resolution
//
// Imports maps (namespace, name) pairs to externs. Namespaces can carry
// versions, and with semver matching a definition in "pkg/api@1.4.0"
// satisfies an import from "pkg/api@1.2.0":
//
//	imports := linker.NewImports().WithSemverMatching(true)
//	imports.Namespace("env").
//		Define("multiply_typed", mul).
//		Define("log", logFn)
//
// # Instantiation
//
// NewInstance is all-or-nothing. It resolves every import and checks its
// kind, its owning store and its exact signature before registering
// anything. All missing imports are reported at once:
//
//	inst, err := linker.NewInstance(ctx, s, mod, imports)
//	if errors.Is(err, &errors.MissingImportsError{}) { ... }
//
// Bindings are grouped per namespace into host modules named after the bound
// handles, and the guest's import section is rewritten to point at them.
// Instances linking the same bindings share the host modules.
//
// # Calling Exports
//
// Exports are called dynamically with types.Value, or through Typed, which
// checks a Go func type against the export once and returns a native func:
//
//	exp, err := inst.Exports().Function("sum")
//	sum, err := linker.Typed[func(context.Context, int32, int32) (int32, error)](s, exp)
//	v, err := sum(ctx, 1, 2)
//
// An export that forwards an imported host binding unchanged is called
// without entering the guest.
package linker
