package module

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/wippyai/wasm-embed/engine"
	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/types"
	"github.com/wippyai/wasm-embed/wasm"
)

// Converter turns module text into module bytes.
type Converter func(src []byte) ([]byte, error)

// ImportDescriptor describes one entry of a module's import section.
type ImportDescriptor struct {
	// Signature is set for function imports.
	Signature types.Signature
	Namespace string
	Name      string
	// Type is a printable rendering of the imported type.
	Type string
	// Index is the position in the index space of Kind.
	Index uint32
	Kind  types.ExternKind
}

// Path returns "namespace#name".
func (d ImportDescriptor) Path() string { return d.Namespace + "#" + d.Name }

// ExportDescriptor describes one entry of a module's export section.
type ExportDescriptor struct {
	Signature types.Signature
	Name      string
	Type      string
	Index     uint32
	Kind      types.ExternKind
}

// Module is a validated, compiled module. It is immutable, safe for
// concurrent use and can be instantiated any number of times into any store.
type Module struct {
	decoded   *wasm.Module
	bin       []byte
	imports   []ImportDescriptor
	exports   []ExportDescriptor
	exportIdx map[string]int
	key       string
	name      string
}

// Compile decodes bin's descriptors and validates it with the engine.
func Compile(ctx context.Context, eng *engine.Engine, bin []byte) (*Module, error) {
	if eng == nil {
		return nil, errors.InvalidInput(errors.PhaseCompile, "nil engine")
	}
	decoded, err := wasm.ParseModule(bin)
	if err != nil {
		return nil, errors.CompileFailed(err)
	}

	m := &Module{
		decoded:   decoded,
		bin:       append([]byte(nil), bin...),
		exportIdx: make(map[string]int, len(decoded.Exports)),
		name:      decoded.ModuleName(),
	}
	sum := sha256.Sum256(bin)
	m.key = hex.EncodeToString(sum[:])

	if err := m.describe(); err != nil {
		return nil, errors.CompileFailed(err)
	}
	if err := eng.Validate(ctx, m.bin); err != nil {
		return nil, err
	}
	return m, nil
}

// CompileText converts src with conv and compiles the result.
func CompileText(ctx context.Context, eng *engine.Engine, src []byte, conv Converter) (*Module, error) {
	if conv == nil {
		return nil, errors.InvalidInput(errors.PhaseCompile, "nil converter")
	}
	bin, err := conv(src)
	if err != nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindInvalidData).
			Detail("convert module text").
			Cause(err).
			Build()
	}
	return Compile(ctx, eng, bin)
}

func (m *Module) describe() error {
	var counts [4]uint32
	for _, imp := range m.decoded.Imports {
		d := ImportDescriptor{
			Namespace: imp.Module,
			Name:      imp.Name,
			Kind:      types.ExternKind(imp.Desc.Kind),
			Index:     counts[imp.Desc.Kind],
		}
		counts[imp.Desc.Kind]++

		switch imp.Desc.Kind {
		case wasm.KindFunc:
			sig, err := m.funcSignature(d.Index)
			if err != nil {
				return err
			}
			d.Signature = sig
			d.Type = sig.String()
		case wasm.KindTable:
			d.Type = tableType(*imp.Desc.Table)
		case wasm.KindMemory:
			d.Type = memoryType(*imp.Desc.Memory)
		case wasm.KindGlobal:
			d.Type = globalType(*imp.Desc.Global)
		}
		m.imports = append(m.imports, d)
	}

	for _, exp := range m.decoded.Exports {
		d := ExportDescriptor{
			Name:  exp.Name,
			Kind:  types.ExternKind(exp.Kind),
			Index: exp.Idx,
		}
		switch exp.Kind {
		case wasm.KindFunc:
			sig, err := m.funcSignature(exp.Idx)
			if err != nil {
				return err
			}
			d.Signature = sig
			d.Type = sig.String()
		case wasm.KindTable:
			d.Type = "table"
		case wasm.KindMemory:
			d.Type = "memory"
		case wasm.KindGlobal:
			if gt, ok := m.decoded.GlobalTypeAt(exp.Idx); ok {
				d.Type = globalType(gt)
			}
		}
		m.exportIdx[exp.Name] = len(m.exports)
		m.exports = append(m.exports, d)
	}
	return nil
}

func (m *Module) funcSignature(funcIdx uint32) (types.Signature, error) {
	ft, ok := m.decoded.FuncTypeAt(funcIdx)
	if !ok {
		return types.Signature{}, errors.InvalidData(errors.PhaseDecode, nil,
			fmt.Sprintf("function %d has no type", funcIdx))
	}
	return types.SignatureFromWasm(ft)
}

// Imports returns the import descriptors in declaration order.
func (m *Module) Imports() []ImportDescriptor {
	return append([]ImportDescriptor(nil), m.imports...)
}

// Exports returns the export descriptors in declaration order.
func (m *Module) Exports() []ExportDescriptor {
	return append([]ExportDescriptor(nil), m.exports...)
}

// Export looks up an export descriptor by name.
func (m *Module) Export(name string) (ExportDescriptor, bool) {
	i, ok := m.exportIdx[name]
	if !ok {
		return ExportDescriptor{}, false
	}
	return m.exports[i], true
}

// ReexportedImport returns the function import an export forwards
// unchanged, if the export refers to an imported function.
func (m *Module) ReexportedImport(name string) (ImportDescriptor, bool) {
	exp, ok := m.Export(name)
	if !ok || exp.Kind != types.ExternFunc || exp.Index >= m.NumImportedFuncs() {
		return ImportDescriptor{}, false
	}
	for _, imp := range m.imports {
		if imp.Kind == types.ExternFunc && imp.Index == exp.Index {
			return imp, true
		}
	}
	return ImportDescriptor{}, false
}

// NumImportedFuncs returns the number of function imports. They occupy the
// lowest function indices, ahead of locally defined functions.
func (m *Module) NumImportedFuncs() uint32 {
	return m.decoded.NumImportedFuncs()
}

// Key returns the hex sha256 of the module bytes.
func (m *Module) Key() string { return m.key }

// Name returns the module name from the name section, or "".
func (m *Module) Name() string { return m.name }

// Binary returns a copy of the module bytes.
func (m *Module) Binary() []byte {
	return append([]byte(nil), m.bin...)
}

func tableType(t wasm.TableType) string {
	return fmt.Sprintf("table %s %s", t.ElemType, limits(t.Limits))
}

func memoryType(t wasm.MemoryType) string {
	return "memory " + limits(t.Limits)
}

func globalType(t wasm.GlobalType) string {
	if t.Mutable {
		return "global mut " + t.ValType.String()
	}
	return "global " + t.ValType.String()
}

func limits(l wasm.Limits) string {
	if l.Max != nil {
		return fmt.Sprintf("{min: %d, max: %d}", l.Min, *l.Max)
	}
	return fmt.Sprintf("{min: %d}", l.Min)
}
