package wasm

import "strings"

// Module holds the descriptors of a decoded WebAssembly binary. Function
// bodies, element and data segments are validated by the engine and are
// not decoded here.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type indices for locally defined functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32

	// CodeCount is the number of entries in the code section.
	CodeCount uint32

	// Names holds the decoded "name" custom section, if any.
	Names *NameSection

	CustomSections []CustomSection
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// String renders the type as "(i32, i32) -> (i32)".
func (f FuncType) String() string {
	var b strings.Builder
	writeValTypes(&b, f.Params)
	b.WriteString(" -> ")
	writeValTypes(&b, f.Results)
	return b.String()
}

func writeValTypes(b *strings.Builder, vs []ValType) {
	b.WriteByte('(')
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(')')
}

// Equal reports element-wise equality of params and results.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Limits bounds the size of a table or memory.
type Limits struct {
	Max    *uint32
	Min    uint32
	Shared bool
}

// TableType describes a table.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory in 64KiB pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a locally defined global with its raw init expression,
// including the trailing end opcode.
type Global struct {
	Init []byte
	Type GlobalType
}

// ImportDesc describes what an import brings in. Exactly one of the
// pointer fields is set for non-function kinds.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// Import is a single entry of the import section.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// Export is a single entry of the export section.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// CustomSection is an uninterpreted custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// NameSection holds the parts of the "name" custom section we use.
type NameSection struct {
	FuncNames  map[uint32]string
	ModuleName string
}

// NumImportedFuncs returns the number of function imports. Imported
// functions occupy the lowest function indices.
func (m *Module) NumImportedFuncs() uint32 {
	return m.numImported(KindFunc)
}

// NumImportedGlobals returns the number of global imports.
func (m *Module) NumImportedGlobals() uint32 {
	return m.numImported(KindGlobal)
}

func (m *Module) numImported(kind byte) uint32 {
	var n uint32
	for i := range m.Imports {
		if m.Imports[i].Desc.Kind == kind {
			n++
		}
	}
	return n
}

// FuncTypeAt returns the type of the function at funcIdx in the function
// index space (imports first, then local functions).
func (m *Module) FuncTypeAt(funcIdx uint32) (FuncType, bool) {
	var n uint32
	for i := range m.Imports {
		imp := &m.Imports[i]
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if n == funcIdx {
			return m.typeAt(imp.Desc.TypeIdx)
		}
		n++
	}
	local := funcIdx - n
	if funcIdx < n || int(local) >= len(m.Funcs) {
		return FuncType{}, false
	}
	return m.typeAt(m.Funcs[local])
}

func (m *Module) typeAt(idx uint32) (FuncType, bool) {
	if int(idx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[idx], true
}

// GlobalTypeAt returns the type of the global at globalIdx in the global
// index space.
func (m *Module) GlobalTypeAt(globalIdx uint32) (GlobalType, bool) {
	var n uint32
	for i := range m.Imports {
		imp := &m.Imports[i]
		if imp.Desc.Kind != KindGlobal {
			continue
		}
		if n == globalIdx {
			return *imp.Desc.Global, true
		}
		n++
	}
	local := globalIdx - n
	if globalIdx < n || int(local) >= len(m.Globals) {
		return GlobalType{}, false
	}
	return m.Globals[local].Type, true
}

// ImportedFunc returns the import entry backing funcIdx, if funcIdx refers
// to an imported function.
func (m *Module) ImportedFunc(funcIdx uint32) (*Import, bool) {
	var n uint32
	for i := range m.Imports {
		imp := &m.Imports[i]
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if n == funcIdx {
			return imp, true
		}
		n++
	}
	return nil, false
}

// ModuleName returns the module name from the name section, or "".
func (m *Module) ModuleName() string {
	if m.Names == nil {
		return ""
	}
	return m.Names.ModuleName
}
