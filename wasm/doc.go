// Package wasm decodes the descriptors of WebAssembly binary modules.
//
// Only what linking needs is decoded: function types, imports, the
// function, table, memory and global sections, exports, the start function
// and the "name" custom section. Function bodies, element and data segments
// are skipped; the engine validates them at compile time.
//
// # Parsing
//
//	data, _ := os.ReadFile("module.wasm")
//	m, err := wasm.ParseModule(data)
//	for i := uint32(0); i < m.NumImportedFuncs(); i++ {
//	    ft, _ := m.FuncTypeAt(i)
//	    fmt.Println(ft) // (i32) -> i32
//	}
//
// Imported functions occupy the lowest function indices, so
// FuncTypeAt(i) for i < NumImportedFuncs() describes an import.
//
// # Import rewriting
//
// RewriteImportModules replaces the module name of each import while
// preserving order and descriptors byte for byte. The linker uses it to
// point a guest at per-instance host modules.
//
// # Building modules
//
// Builder assembles small modules directly in the binary format:
//
//	b := wasm.NewBuilder()
//	mul := b.ImportFunc("env", "multiply", []wasm.ValType{wasm.ValI32}, []wasm.ValType{wasm.ValI32})
//	sum := b.Func([]wasm.ValType{wasm.ValI32, wasm.ValI32}, []wasm.ValType{wasm.ValI32}, nil,
//	    wasm.Code(wasm.LocalGet(1), wasm.Call(mul))...)
//	b.Export("sum", wasm.KindFunc, sum)
//	bin := b.Build()
package wasm
