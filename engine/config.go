package engine

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-embed/errors"
)

// maxMemoryPages is the 32-bit memory limit (4GiB in 64KiB pages).
const maxMemoryPages = 65536

// Environment variables that override file configuration.
const (
	EnvMemoryLimitPages    = "WASM_EMBED_MEMORY_LIMIT_PAGES"
	EnvInterpreter         = "WASM_EMBED_INTERPRETER"
	EnvCloseOnContextDone  = "WASM_EMBED_CLOSE_ON_CONTEXT_DONE"
	EnvCompilationCacheDir = "WASM_EMBED_COMPILATION_CACHE_DIR"
)

// Config holds configuration for engine creation
type Config struct {
	// CompilationCacheDir persists compiled modules across processes.
	// Empty keeps the cache in memory.
	CompilationCacheDir string `yaml:"compilation_cache_dir"`

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`

	// Interpreter selects the interpreter instead of the compiler. The
	// compiler is only available on amd64 and arm64.
	Interpreter bool `yaml:"interpreter"`

	// CloseOnContextDone makes guest calls observe context cancellation.
	CloseOnContextDone bool `yaml:"close_on_context_done"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{CloseOnContextDone: true}
}

// LoadConfig reads a YAML config file and applies environment overrides.
// An empty path yields the defaults plus environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config "+path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse config "+path)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from WASM_EMBED_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMemoryLimitPages); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return envError(EnvMemoryLimitPages, v, err)
		}
		c.MemoryLimitPages = uint32(n)
	}
	if v, ok := lookup(EnvInterpreter); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(EnvInterpreter, v, err)
		}
		c.Interpreter = b
	}
	if v, ok := lookup(EnvCloseOnContextDone); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(EnvCloseOnContextDone, v, err)
		}
		c.CloseOnContextDone = b
	}
	if v, ok := lookup(EnvCompilationCacheDir); ok {
		c.CompilationCacheDir = v
	}
	return nil
}

func envError(name, value string, cause error) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(name).
		Value(value).
		Cause(cause).
		Detail("invalid value %q", value).
		Build()
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.MemoryLimitPages > maxMemoryPages {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("memory_limit_pages").
			Value(c.MemoryLimitPages).
			Detail("exceeds %d pages", maxMemoryPages).
			Build()
	}
	return nil
}
