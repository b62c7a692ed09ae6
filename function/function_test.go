package function

import (
	"context"
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
	"github.com/wippyai/wasm-embed/wasm"
)

type counter struct {
	Multiplier int32
	Calls      int
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func i32sig(params, results int) types.Signature {
	ps := make([]types.ValueKind, params)
	rs := make([]types.ValueKind, results)
	for i := range ps {
		ps[i] = types.I32
	}
	for i := range rs {
		rs[i] = types.I32
	}
	return types.NewSignature(ps, rs)
}

func TestNewDynamic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	f, err := NewDynamic(s, i32sig(2, 1), func(_ context.Context, args []types.Value) ([]types.Value, error) {
		return []types.Value{types.ValueI32(args[0].I32() + args[1].I32())}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.ExternFunc, f.ExternKind())
	assert.Equal(t, "(i32, i32) -> i32", f.Signature().String())
	assert.Equal(t, s.ID(), f.StoreID())
	assert.False(t, f.IsTyped())

	res, err := f.Call(ctx, types.ValueI32(2), types.ValueI32(40))
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.ValueI32(42)}, res)
}

func TestNewDynamic_ResultMismatch(t *testing.T) {
	s := newStore(t)
	f, err := NewDynamic(s, i32sig(0, 1), func(context.Context, []types.Value) ([]types.Value, error) {
		return []types.Value{types.ValueI64(1)}, nil
	})
	require.NoError(t, err)

	_, err = f.Call(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindSignatureMismatch))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseCall, Kind: errors.KindSignatureMismatch})
}

func TestNewDynamic_HostError(t *testing.T) {
	boom := goerrors.New("boom")
	s := newStore(t)
	f, err := NewDynamic(s, i32sig(0, 0), func(context.Context, []types.Value) ([]types.Value, error) {
		return nil, boom
	})
	require.NoError(t, err)

	_, err = f.Call(context.Background())
	assert.True(t, errors.HasKind(err, errors.KindHost))
	assert.ErrorIs(t, err, boom)
}

func TestNewDynamic_Invalid(t *testing.T) {
	s := newStore(t)
	_, err := NewDynamic(s, i32sig(0, 0), nil)
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))

	funcref := types.NewSignature([]types.ValueKind{types.FuncRef}, nil)
	_, err = NewDynamic(s, funcref, func(context.Context, []types.Value) ([]types.Value, error) { return nil, nil })
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))
}

func TestCall_ArgumentMismatch(t *testing.T) {
	s := newStore(t)
	f, err := NewTyped(s, func(x int32) int32 { return x })
	require.NoError(t, err)

	_, err = f.Call(context.Background(), types.ValueI64(1))
	assert.True(t, errors.HasKind(err, errors.KindSignatureMismatch))
	_, err = f.Call(context.Background())
	assert.True(t, errors.HasKind(err, errors.KindSignatureMismatch))
}

func TestNewTyped_FastPaths(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cases := []struct {
		fn   any
		args []types.Value
		want types.Value
	}{
		{func(x int32) int32 { return -x }, []types.Value{types.ValueI32(5)}, types.ValueI32(-5)},
		{func(x, y int32) int32 { return x * y }, []types.Value{types.ValueI32(6), types.ValueI32(7)}, types.ValueI32(42)},
		{func(x int64) int64 { return x << 33 }, []types.Value{types.ValueI64(1)}, types.ValueI64(1 << 33)},
		{func(x float64) float64 { return x / 2 }, []types.Value{types.ValueF64(3)}, types.ValueF64(1.5)},
	}
	for _, tc := range cases {
		assert.NotNil(t, fastPath(tc.fn))
		f, err := NewTyped(s, tc.fn)
		require.NoError(t, err)
		assert.True(t, f.IsTyped())
		res, err := f.Call(ctx, tc.args...)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, tc.want, res[0])
	}
}

func TestNewTyped_Reflect(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	fn := func(ctx context.Context, a uint32, b float32, c uintptr) (int64, float32, error) {
		require.NotNil(t, ctx)
		return int64(a) + int64(c), b * 2, nil
	}
	assert.Nil(t, fastPath(fn))

	f, err := NewTyped(s, fn)
	require.NoError(t, err)
	assert.Equal(t, "(i32, f32, externref) -> (i64, f32)", f.Signature().String())

	res, err := f.Call(ctx, types.ValueI32(-1), types.ValueF32(1.25), types.ValueExternRef(1))
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.ValueI64(1 << 32), types.ValueF32(2.5)}, res)
}

func TestNewTyped_ErrorResult(t *testing.T) {
	s := newStore(t)
	boom := goerrors.New("boom")
	f, err := NewTyped(s, func(x int32) (int32, error) {
		if x < 0 {
			return 0, boom
		}
		return x, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "(i32) -> i32", f.Signature().String())

	_, err = f.Call(context.Background(), types.ValueI32(-1))
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindHost))
	assert.ErrorIs(t, err, boom)
}

func TestNewTyped_PanicBecomesHostError(t *testing.T) {
	s := newStore(t)
	f, err := NewTyped(s, func() { panic("nope") })
	require.NoError(t, err)

	_, err = f.Call(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindHost))
	assert.Contains(t, err.Error(), "nope")
}

func TestNewTyped_Invalid(t *testing.T) {
	s := newStore(t)

	_, err := NewTyped(s, 42)
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))

	_, err = NewTyped(s, func(string) {})
	assert.True(t, errors.HasKind(err, errors.KindTypeMismatch))

	_, err = NewTyped(s, func(...int32) {})
	assert.True(t, errors.HasKind(err, errors.KindUnsupported))

	var nilFn func(int32) int32
	_, err = NewTyped(s, nilFn)
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))

	_, err = NewTyped(nil, func() {})
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))
}

func TestTrampolineCache(t *testing.T) {
	t1, err := compileTrampoline(func(a, b int64) int64 { return a + b }, nil)
	require.NoError(t, err)
	t2, err := compileTrampoline(func(a, b int64) int64 { return a - b }, nil)
	require.NoError(t, err)
	assert.Same(t, t1, t2)
}

func TestNewTypedWithEnv(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	env, err := store.NewFunctionEnv(s, counter{Multiplier: 3})
	require.NoError(t, err)

	f, err := NewTypedWithEnv(s, env, func(e *store.EnvMut[counter], x int32) int32 {
		e.Data().Calls++
		return x * e.Data().Multiplier
	})
	require.NoError(t, err)
	assert.Equal(t, "(i32) -> i32", f.Signature().String())

	for range 2 {
		res, err := f.Call(ctx, types.ValueI32(2))
		require.NoError(t, err)
		assert.Equal(t, int32(6), res[0].I32())
	}

	v, err := env.Get(s)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Calls)
}

func TestNewTypedWithEnv_Invalid(t *testing.T) {
	s := newStore(t)
	env, err := store.NewFunctionEnv(s, counter{})
	require.NoError(t, err)

	_, err = NewTypedWithEnv(s, env, func(x int32) int32 { return x })
	assert.True(t, errors.HasKind(err, errors.KindTypeMismatch))

	other := newStore(t)
	_, err = NewTypedWithEnv(other, env, func(*store.EnvMut[counter]) {})
	assert.True(t, errors.HasKind(err, errors.KindCrossStore))
}

func TestNewDynamicWithEnv(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	env, err := store.NewFunctionEnv(s, counter{Multiplier: 10})
	require.NoError(t, err)

	var escaped *store.EnvMut[counter]
	f, err := NewDynamicWithEnv(s, env, i32sig(1, 1),
		func(_ context.Context, e *store.EnvMut[counter], args []types.Value) ([]types.Value, error) {
			escaped = e
			return []types.Value{types.ValueI32(args[0].I32() * e.Data().Multiplier)}, nil
		})
	require.NoError(t, err)

	res, err := f.Call(ctx, types.ValueI32(4))
	require.NoError(t, err)
	assert.Equal(t, int32(40), res[0].I32())

	require.NotNil(t, escaped)
	assert.True(t, escaped.Released())
	assert.Panics(t, func() { escaped.Data() })
}

func TestEnv_NestedBorrowFailsFast(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	env, err := store.NewFunctionEnv(s, counter{})
	require.NoError(t, err)

	var inner *Function
	outer, err := NewTypedWithEnv(s, env, func(ctx context.Context, _ *store.EnvMut[counter]) error {
		_, err := inner.Call(ctx)
		return err
	})
	require.NoError(t, err)
	inner, err = NewTypedWithEnv(s, env, func(*store.EnvMut[counter]) {})
	require.NoError(t, err)

	_, err = outer.Call(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindBorrowConflict))

	// the outer borrow was released
	_, err = inner.Call(ctx)
	assert.NoError(t, err)
}

func TestCall_AfterStoreClose(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx)
	require.NoError(t, err)
	f, err := NewTyped(s, func() {})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	_, err = f.Call(ctx)
	assert.True(t, errors.HasKind(err, errors.KindClosed))
}

func TestGoModuleFunction_FromGuest(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	double, err := NewTyped(s, func(x int32) int32 { return x * 2 })
	require.NoError(t, err)
	fail, err := NewTyped(s, func() (int32, error) { return 0, goerrors.New("host says no") })
	require.NoError(t, err)

	_, _, err = s.AcquireModule(ctx, "host", func(b wazero.HostModuleBuilder) error {
		for name, f := range map[string]*Function{"double": double, "fail": fail} {
			params, results, err := f.Signature().APITypes()
			if err != nil {
				return err
			}
			b.NewFunctionBuilder().WithGoModuleFunction(f.GoModuleFunction(), params, results).Export(name)
		}
		return nil
	})
	require.NoError(t, err)

	b := wasm.NewBuilder()
	d := b.ImportFunc("host", "double", []wasm.ValType{wasm.ValI32}, []wasm.ValType{wasm.ValI32})
	fl := b.ImportFunc("host", "fail", nil, []wasm.ValType{wasm.ValI32})
	run := b.Func([]wasm.ValType{wasm.ValI32}, []wasm.ValType{wasm.ValI32}, nil,
		wasm.Code(wasm.LocalGet(0), wasm.Call(d))...)
	boom := b.Func(nil, []wasm.ValType{wasm.ValI32}, nil, wasm.Call(fl)...)
	b.Export("run", wasm.KindFunc, run)
	b.Export("boom", wasm.KindFunc, boom)

	mod, err := s.Runtime().Instantiate(ctx, b.Build())
	require.NoError(t, err)

	res, err := mod.ExportedFunction("run").Call(ctx, api.EncodeI32(21))
	require.NoError(t, err)
	assert.Equal(t, int32(42), api.DecodeI32(res[0]))

	_, err = mod.ExportedFunction("boom").Call(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindHost))
	assert.Contains(t, err.Error(), "host says no")
}
