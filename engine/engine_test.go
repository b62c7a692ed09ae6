package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/wasm"
)

func addModule() []byte {
	b := wasm.NewBuilder()
	f := b.Func([]wasm.ValType{wasm.ValI32, wasm.ValI32}, []wasm.ValType{wasm.ValI32}, nil,
		wasm.Code(wasm.LocalGet(0), wasm.LocalGet(1), []byte{wasm.OpI32Add})...)
	b.Export("add", wasm.KindFunc, f)
	return b.Build()
}

func TestEngine_Validate(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, &Config{Interpreter: true})
	require.NoError(t, err)
	defer eng.Close(ctx)

	require.NoError(t, eng.Validate(ctx, addModule()))

	err = eng.Validate(ctx, []byte{0x00, 'a', 's', 'm', 0x01, 0, 0, 0, 0xff})
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindInvalidData))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseCompile, Kind: errors.KindInvalidData})
}

func TestEngine_NewRuntime(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, nil)
	require.NoError(t, err)

	rt, err := eng.NewRuntime(ctx)
	require.NoError(t, err)

	mod, err := rt.Instantiate(ctx, addModule())
	require.NoError(t, err)
	res, err := mod.ExportedFunction("add").Call(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, res)

	require.NoError(t, rt.Close(ctx))
	require.NoError(t, eng.Close(ctx))
	require.NoError(t, eng.Close(ctx), "second close is a no-op")

	_, err = eng.NewRuntime(ctx)
	assert.True(t, errors.HasKind(err, errors.KindClosed))
	err = eng.Validate(ctx, addModule())
	assert.True(t, errors.HasKind(err, errors.KindClosed))
}

func TestEngine_CacheDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	eng, err := New(ctx, &Config{CompilationCacheDir: dir})
	require.NoError(t, err)
	require.NoError(t, eng.Validate(ctx, addModule()))
	require.NoError(t, eng.Close(ctx))
	assert.Equal(t, dir, eng.Config().CompilationCacheDir)
}

func TestEngine_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	ctx := context.Background()
	eng, err := New(ctx, &Config{Interpreter: true, MemoryLimitPages: 16})
	require.NoError(t, err)
	require.NoError(t, eng.Close(ctx))

	created := logs.FilterMessage("engine created").All()
	require.Len(t, created, 1)
	assert.Equal(t, true, created[0].ContextMap()["interpreter"])
	assert.Equal(t, 1, logs.FilterMessage("engine closed").Len())
}

func TestConfig_Validate(t *testing.T) {
	_, err := New(context.Background(), &Config{MemoryLimitPages: maxMemoryPages + 1})
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
memory_limit_pages: 256
interpreter: true
close_on_context_done: false
compilation_cache_dir: /tmp/cache
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		MemoryLimitPages:    256,
		Interpreter:         true,
		CloseOnContextDone:  false,
		CompilationCacheDir: "/tmp/cache",
	}, *cfg)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.CloseOnContextDone)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory_limit_pages: 256\n"), 0o600))

	t.Setenv(EnvMemoryLimitPages, "1024")
	t.Setenv(EnvInterpreter, "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), cfg.MemoryLimitPages)
	assert.True(t, cfg.Interpreter)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory_limit_pages: [1"), 0o600))
	_, err = LoadConfig(path)
	assert.True(t, errors.HasKind(err, errors.KindInvalidData))

	t.Setenv(EnvMemoryLimitPages, "lots")
	_, err = LoadConfig("")
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{EnvMemoryLimitPages}, e.Path)
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvCloseOnContextDone:  "false",
		EnvCompilationCacheDir: "/cache",
	}
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.False(t, cfg.CloseOnContextDone)
	assert.Equal(t, "/cache", cfg.CompilationCacheDir)

	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == EnvInterpreter {
			return "maybe", true
		}
		return "", false
	})
	assert.True(t, errors.HasKind(err, errors.KindInvalidInput))
}
