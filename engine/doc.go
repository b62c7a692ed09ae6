// Package engine configures the wazero runtime that executes guest code.
//
// An Engine carries a RuntimeConfig and a CompilationCache. Every Store
// gets its own runtime from NewRuntime, so objects never leak between
// stores, while compiled code is shared through the cache.
//
// # Configuration
//
// Config can be built in code, loaded from YAML, or overridden by
// environment variables:
//
//	# embed.yaml
//	memory_limit_pages: 256
//	interpreter: false
//	close_on_context_done: true
//	compilation_cache_dir: /var/cache/wasm-embed
//
//	cfg, err := engine.LoadConfig("embed.yaml")
//	eng, err := engine.New(ctx, cfg)
//	defer eng.Close(ctx)
//
// WASM_EMBED_MEMORY_LIMIT_PAGES, WASM_EMBED_INTERPRETER,
// WASM_EMBED_CLOSE_ON_CONTEXT_DONE and WASM_EMBED_COMPILATION_CACHE_DIR
// take precedence over the file.
package engine
