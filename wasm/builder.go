package wasm

import (
	"github.com/wippyai/wasm-embed/wasm/internal/binary"
)

// Builder assembles a small module in the binary format. It covers what
// host-binding tests and demos need: function imports, functions, a memory,
// a table, globals, exports, a start function and a module name. Imports
// must be declared before functions so indices stay stable.
type Builder struct {
	start    *uint32
	types    []FuncType
	imports  []Import
	funcs    []builtFunc
	tables   []TableType
	memories []MemoryType
	globals  []Global
	exports  []Export
	name     string
}

type builtFunc struct {
	locals  []ValType
	body    []byte
	typeIdx uint32
}

// NewBuilder creates an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Name sets the module name recorded in the name section.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) typeIndex(params, results []ValType) uint32 {
	ft := FuncType{Params: params, Results: results}
	for i, t := range b.types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunc declares a function import and returns its function index.
func (b *Builder) ImportFunc(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasm: ImportFunc after Func")
	}
	idx := b.typeIndex(params, results)
	b.imports = append(b.imports, Import{
		Module: module,
		Name:   name,
		Desc:   ImportDesc{Kind: KindFunc, TypeIdx: idx},
	})
	return b.numImportedFuncs() - 1
}

// ImportMemory declares a memory import.
func (b *Builder) ImportMemory(module, name string, minPages uint32) {
	b.imports = append(b.imports, Import{
		Module: module,
		Name:   name,
		Desc:   ImportDesc{Kind: KindMemory, Memory: &MemoryType{Limits: Limits{Min: minPages}}},
	})
}

// ImportGlobal declares a global import and returns its global index.
func (b *Builder) ImportGlobal(module, name string, vt ValType, mutable bool) uint32 {
	if len(b.globals) > 0 {
		panic("wasm: ImportGlobal after Global")
	}
	b.imports = append(b.imports, Import{
		Module: module,
		Name:   name,
		Desc:   ImportDesc{Kind: KindGlobal, Global: &GlobalType{ValType: vt, Mutable: mutable}},
	})
	var n uint32
	for _, imp := range b.imports {
		if imp.Desc.Kind == KindGlobal {
			n++
		}
	}
	return n - 1
}

func (b *Builder) numImportedFuncs() uint32 {
	var n uint32
	for _, imp := range b.imports {
		if imp.Desc.Kind == KindFunc {
			n++
		}
	}
	return n
}

// Func defines a function and returns its function index. The end opcode
// is appended to body.
func (b *Builder) Func(params, results, locals []ValType, body ...byte) uint32 {
	b.funcs = append(b.funcs, builtFunc{
		typeIdx: b.typeIndex(params, results),
		locals:  locals,
		body:    body,
	})
	return b.numImportedFuncs() + uint32(len(b.funcs)-1)
}

// Memory defines a memory of minPages pages.
func (b *Builder) Memory(minPages uint32) uint32 {
	b.memories = append(b.memories, MemoryType{Limits: Limits{Min: minPages}})
	return uint32(len(b.memories) - 1)
}

// Table defines a funcref table.
func (b *Builder) Table(minSize uint32) uint32 {
	b.tables = append(b.tables, TableType{ElemType: ValFuncRef, Limits: Limits{Min: minSize}})
	return uint32(len(b.tables) - 1)
}

// Global defines a global with the given init expression (without end).
func (b *Builder) Global(vt ValType, mutable bool, initExpr ...byte) uint32 {
	expr := append(append([]byte{}, initExpr...), OpEnd)
	b.globals = append(b.globals, Global{Type: GlobalType{ValType: vt, Mutable: mutable}, Init: expr})
	var imported uint32
	for _, imp := range b.imports {
		if imp.Desc.Kind == KindGlobal {
			imported++
		}
	}
	return imported + uint32(len(b.globals)-1)
}

// Export exports the item of the given kind at idx.
func (b *Builder) Export(name string, kind byte, idx uint32) *Builder {
	b.exports = append(b.exports, Export{Name: name, Kind: kind, Idx: idx})
	return b
}

// Start sets the start function.
func (b *Builder) Start(funcIdx uint32) *Builder {
	b.start = &funcIdx
	return b
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(b.types) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.types)))
		for _, t := range b.types {
			s.Byte(FuncTypeByte)
			writeVec(s, t.Params)
			writeVec(s, t.Results)
		}
		w.WriteSection(SectionType, s.Bytes())
	}

	if len(b.imports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			s.WriteName(imp.Module)
			s.WriteName(imp.Name)
			s.Byte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				s.WriteU32(imp.Desc.TypeIdx)
			case KindMemory:
				writeLimits(s, imp.Desc.Memory.Limits)
			case KindGlobal:
				writeGlobalType(s, *imp.Desc.Global)
			}
		}
		w.WriteSection(SectionImport, s.Bytes())
	}

	if len(b.funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			s.WriteU32(f.typeIdx)
		}
		w.WriteSection(SectionFunction, s.Bytes())
	}

	if len(b.tables) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.tables)))
		for _, t := range b.tables {
			s.Byte(byte(t.ElemType))
			writeLimits(s, t.Limits)
		}
		w.WriteSection(SectionTable, s.Bytes())
	}

	if len(b.memories) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.memories)))
		for _, m := range b.memories {
			writeLimits(s, m.Limits)
		}
		w.WriteSection(SectionMemory, s.Bytes())
	}

	if len(b.globals) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.globals)))
		for _, g := range b.globals {
			writeGlobalType(s, g.Type)
			s.WriteBytes(g.Init)
		}
		w.WriteSection(SectionGlobal, s.Bytes())
	}

	if len(b.exports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.exports)))
		for _, e := range b.exports {
			s.WriteName(e.Name)
			s.Byte(e.Kind)
			s.WriteU32(e.Idx)
		}
		w.WriteSection(SectionExport, s.Bytes())
	}

	if b.start != nil {
		s := binary.NewWriter()
		s.WriteU32(*b.start)
		w.WriteSection(SectionStart, s.Bytes())
	}

	if len(b.funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			fb := binary.NewWriter()
			writeLocals(fb, f.locals)
			fb.WriteBytes(f.body)
			fb.Byte(OpEnd)
			s.WriteU32(uint32(fb.Len()))
			s.WriteBytes(fb.Bytes())
		}
		w.WriteSection(SectionCode, s.Bytes())
	}

	if b.name != "" {
		sub := binary.NewWriter()
		sub.WriteName(b.name)
		s := binary.NewWriter()
		s.WriteName("name")
		s.Byte(nameSubsectionModule)
		s.WriteU32(uint32(sub.Len()))
		s.WriteBytes(sub.Bytes())
		w.WriteSection(SectionCustom, s.Bytes())
	}

	return w.Bytes()
}

func writeVec(w *binary.Writer, vs []ValType) {
	w.WriteU32(uint32(len(vs)))
	for _, v := range vs {
		w.Byte(byte(v))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max == nil {
		w.Byte(limitsNoMax)
		w.WriteU32(l.Min)
		return
	}
	w.Byte(limitsHasMax)
	w.WriteU32(l.Min)
	w.WriteU32(*l.Max)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

// writeLocals run-length encodes local declarations.
func writeLocals(w *binary.Writer, locals []ValType) {
	type run struct {
		n  uint32
		vt ValType
	}
	var runs []run
	for _, vt := range locals {
		if len(runs) > 0 && runs[len(runs)-1].vt == vt {
			runs[len(runs)-1].n++
			continue
		}
		runs = append(runs, run{n: 1, vt: vt})
	}
	w.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		w.WriteU32(r.n)
		w.Byte(byte(r.vt))
	}
}

// Code helpers for function bodies and constant expressions.

// I32Const encodes i32.const v.
func I32Const(v int32) []byte {
	w := binary.NewWriter()
	w.Byte(OpI32Const)
	w.WriteS32(v)
	return w.Bytes()
}

// I64Const encodes i64.const v.
func I64Const(v int64) []byte {
	w := binary.NewWriter()
	w.Byte(OpI64Const)
	w.WriteS64(v)
	return w.Bytes()
}

// F64Const encodes f64.const v.
func F64Const(v float64) []byte {
	w := binary.NewWriter()
	w.Byte(OpF64Const)
	w.WriteF64(v)
	return w.Bytes()
}

// LocalGet encodes local.get idx.
func LocalGet(idx uint32) []byte {
	return withU32(OpLocalGet, idx)
}

// GlobalGet encodes global.get idx.
func GlobalGet(idx uint32) []byte {
	return withU32(OpGlobalGet, idx)
}

// GlobalSet encodes global.set idx.
func GlobalSet(idx uint32) []byte {
	return withU32(OpGlobalSet, idx)
}

// Call encodes call funcIdx.
func Call(funcIdx uint32) []byte {
	return withU32(OpCall, funcIdx)
}

func withU32(op byte, v uint32) []byte {
	w := binary.NewWriter()
	w.Byte(op)
	w.WriteU32(v)
	return w.Bytes()
}

// Code concatenates instruction sequences.
func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
