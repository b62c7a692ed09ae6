// Package module compiles guest modules and exposes their import and
// export descriptors.
//
// Compile decodes the import, export, type and name sections with package
// wasm and validates the whole binary with the engine, so a Module that
// exists is known to be instantiable:
//
//	m, err := module.Compile(ctx, eng, bin)
//	for _, imp := range m.Imports() {
//		fmt.Println(imp.Path(), imp.Type)
//	}
//
// CompileText accepts module text together with a Converter that produces
// the binary form. No converter is bundled.
package module
