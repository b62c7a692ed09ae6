// Package function binds host Go code as functions a guest can import.
//
// Two flavours exist. Dynamic bindings take an explicit signature and a
// closure over []types.Value; typed bindings take a native Go func and derive
// the signature from its type:
//
//	add, err := function.NewDynamic(s,
//		types.NewSignature([]types.ValueKind{types.I32, types.I32}, []types.ValueKind{types.I32}),
//		func(ctx context.Context, args []types.Value) ([]types.Value, error) {
//			return []types.Value{types.ValueI32(args[0].I32() + args[1].I32())}, nil
//		})
//
//	double, err := function.NewTyped(s, func(x int32) int32 { return x * 2 })
//
// Either flavour can carry a store.FunctionEnv. The environment is borrowed
// for exactly one call and handed to the closure as *store.EnvMut[T]:
//
//	env, _ := store.NewFunctionEnv(s, state{Multiplier: 3})
//	mul, err := function.NewTypedWithEnv(s, env, func(e *store.EnvMut[state], x int32) int32 {
//		return x * e.Data().Multiplier
//	})
//
// Typed calls go through a trampoline compiled once per Go func type. The
// shapes func(int32) int32, func(int32, int32) int32, func(int64) int64 and
// func(float64) float64 skip reflection entirely.
package function
