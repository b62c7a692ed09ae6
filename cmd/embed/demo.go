package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-embed/function"
	"github.com/wippyai/wasm-embed/linker"
	"github.com/wippyai/wasm-embed/module"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/wasm"
)

var demoFlags struct {
	factor int32
	x, y   int32
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Call sum(x, y) = multiply_typed(y) with a native multiply_typed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, eng, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)
		defer s.Close(ctx)

		mod, err := module.Compile(ctx, eng, demoModule())
		if err != nil {
			return err
		}

		type state struct{ Factor int32 }
		env, err := store.NewFunctionEnv(s, state{Factor: demoFlags.factor})
		if err != nil {
			return err
		}
		mul, err := function.NewTypedWithEnv(s, env, func(e *store.EnvMut[state], a int32) int32 {
			return a * e.Data().Factor
		})
		if err != nil {
			return err
		}

		l := linker.New(s).Define("env", "multiply_typed", mul)
		inst, err := l.Instantiate(ctx, mod)
		if err != nil {
			return err
		}
		exp, err := inst.Exports().Function("sum")
		if err != nil {
			return err
		}
		sum, err := linker.Typed[func(context.Context, int32, int32) (int32, error)](s, exp)
		if err != nil {
			return err
		}
		v, err := sum(ctx, demoFlags.x, demoFlags.y)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sum(%d, %d) = %d\n", demoFlags.x, demoFlags.y, v)
		return nil
	},
}

func init() {
	demoCmd.Flags().Int32Var(&demoFlags.factor, "factor", 3, "multiplier held in the host environment")
	demoCmd.Flags().Int32Var(&demoFlags.x, "x", 1, "first argument")
	demoCmd.Flags().Int32Var(&demoFlags.y, "y", 2, "second argument")
}

func demoModule() []byte {
	i32 := []wasm.ValType{wasm.ValI32}
	b := wasm.NewBuilder().Name("demo")
	mul := b.ImportFunc("env", "multiply_typed", i32, i32)
	sum := b.Func([]wasm.ValType{wasm.ValI32, wasm.ValI32}, i32, nil,
		wasm.Code(wasm.LocalGet(1), wasm.Call(mul))...)
	b.Export("sum", wasm.KindFunc, sum)
	return b.Build()
}
