package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-embed/wasm/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseModule decodes the descriptors of a WebAssembly binary module.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	var lastSectionOrder int

	for r.Len() > 0 {
		sectionID, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}

		// Custom sections can appear anywhere
		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", sectionID)
			}
			if order <= lastSectionOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSectionOrder = order
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}

		sectionData, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(sectionData)

		switch sectionID {
		case SectionCustom:
			err = parseCustomSection(sr, m)
		case SectionType:
			err = parseTypeSection(sr, m)
		case SectionImport:
			err = parseImportSection(sr, m)
		case SectionFunction:
			err = parseFunctionSection(sr, m)
		case SectionTable:
			err = parseTableSection(sr, m)
		case SectionMemory:
			err = parseMemorySection(sr, m)
		case SectionGlobal:
			err = parseGlobalSection(sr, m)
		case SectionExport:
			err = parseExportSection(sr, m)
		case SectionStart:
			err = parseStartSection(sr, m)
		case SectionCode:
			m.CodeCount, err = sr.ReadU32()
		case SectionElement, SectionData, SectionDataCount:
			// validated by the engine
		}
		if err != nil {
			return nil, fmt.Errorf("%s section: %w", sectionName(sectionID), err)
		}
	}

	if err := m.checkIndices(); err != nil {
		return nil, err
	}
	return m, nil
}

// sectionOrder returns the canonical ordering for a section ID, or 0 for an
// unknown ID. DataCount must precede Code, so order differs from IDs.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionGlobal:
		return 6
	case SectionExport:
		return 7
	case SectionStart:
		return 8
	case SectionElement:
		return 9
	case SectionDataCount:
		return 10
	case SectionCode:
		return 11
	case SectionData:
		return 12
	default:
		return 0
	}
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionType:
		return "type"
	case SectionImport:
		return "import"
	case SectionFunction:
		return "function"
	case SectionTable:
		return "table"
	case SectionMemory:
		return "memory"
	case SectionGlobal:
		return "global"
	case SectionExport:
		return "export"
	case SectionStart:
		return "start"
	case SectionElement:
		return "element"
	case SectionCode:
		return "code"
	case SectionData:
		return "data"
	case SectionDataCount:
		return "data count"
	default:
		return "unknown"
	}
}

// checkIndices verifies cross-section references the descriptor accessors rely on.
func (m *Module) checkIndices() error {
	for i := range m.Imports {
		imp := &m.Imports[i]
		if imp.Desc.Kind == KindFunc && int(imp.Desc.TypeIdx) >= len(m.Types) {
			return fmt.Errorf("import %s#%s: type index %d out of range", imp.Module, imp.Name, imp.Desc.TypeIdx)
		}
	}
	for i, idx := range m.Funcs {
		if int(idx) >= len(m.Types) {
			return fmt.Errorf("function %d: type index %d out of range", i, idx)
		}
	}
	if uint32(len(m.Funcs)) != m.CodeCount {
		return fmt.Errorf("function and code section counts differ: %d != %d", len(m.Funcs), m.CodeCount)
	}

	numFuncs := m.NumImportedFuncs() + uint32(len(m.Funcs))
	numGlobals := m.NumImportedGlobals() + uint32(len(m.Globals))
	numTables := m.numImported(KindTable) + uint32(len(m.Tables))
	numMems := m.numImported(KindMemory) + uint32(len(m.Memories))

	seen := make(map[string]struct{}, len(m.Exports))
	for _, e := range m.Exports {
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("duplicate export name %q", e.Name)
		}
		seen[e.Name] = struct{}{}

		var limit uint32
		switch e.Kind {
		case KindFunc:
			limit = numFuncs
		case KindTable:
			limit = numTables
		case KindMemory:
			limit = numMems
		case KindGlobal:
			limit = numGlobals
		}
		if e.Idx >= limit {
			return fmt.Errorf("export %q: %s index %d out of range", e.Name, KindName(e.Kind), e.Idx)
		}
	}

	if m.Start != nil && *m.Start >= numFuncs {
		return fmt.Errorf("start function index %d out of range", *m.Start)
	}
	return nil
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	data := r.ReadRemaining()
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data})
	if name == "name" {
		// A malformed name section must not fail decoding.
		if ns, err := parseNameSection(data); err == nil {
			m.Names = ns
		}
	}
	return nil
}

func parseNameSection(data []byte) (*NameSection, error) {
	r := binary.NewReader(data)
	ns := &NameSection{}
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		sr := binary.NewReader(body)
		switch id {
		case nameSubsectionModule:
			if ns.ModuleName, err = sr.ReadName(); err != nil {
				return nil, err
			}
		case nameSubsectionFunction:
			count, err := sr.ReadU32()
			if err != nil {
				return nil, err
			}
			ns.FuncNames = make(map[uint32]string)
			for i := uint32(0); i < count; i++ {
				idx, err := sr.ReadU32()
				if err != nil {
					return nil, err
				}
				name, err := sr.ReadName()
				if err != nil {
					return nil, err
				}
				ns.FuncNames[idx] = name
			}
		}
	}
	return ns, nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("read type form at index %d: %w", i, err)
		}
		if form != FuncTypeByte {
			return fmt.Errorf("expected functype (0x60), got 0x%02x", form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(count) > r.Len() {
		return nil, fmt.Errorf("value type count %d exceeds section", count)
	}
	vs := make([]ValType, count)
	for i := range vs {
		if vs[i], err = readValType(r); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	if !vt.Valid() {
		return 0, fmt.Errorf("invalid value type 0x%02x", b)
	}
	return vt, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		imp, err := readImport(r)
		if err != nil {
			return fmt.Errorf("import %d: %w", i, err)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func readImport(r *binary.Reader) (Import, error) {
	var imp Import
	var err error
	if imp.Module, err = r.ReadName(); err != nil {
		return imp, err
	}
	if imp.Name, err = r.ReadName(); err != nil {
		return imp, err
	}
	imp.Desc, err = readImportDesc(r)
	return imp, err
}

func readImportDesc(r *binary.Reader) (ImportDesc, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return ImportDesc{}, err
	}
	desc := ImportDesc{Kind: kind}
	switch kind {
	case KindFunc:
		desc.TypeIdx, err = r.ReadU32()
	case KindTable:
		var t TableType
		t, err = readTableType(r)
		desc.Table = &t
	case KindMemory:
		var mt MemoryType
		mt.Limits, err = readLimits(r)
		desc.Memory = &mt
	case KindGlobal:
		var g GlobalType
		g, err = readGlobalType(r)
		desc.Global = &g
	default:
		err = fmt.Errorf("unsupported import kind 0x%02x", kind)
	}
	return desc, err
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := readValType(r)
	if err != nil {
		return TableType{}, err
	}
	if elem != ValFuncRef && elem != ValExtern {
		return TableType{}, fmt.Errorf("invalid table element type %s", elem)
	}
	limits, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: limits}, nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	var l Limits
	switch flag {
	case limitsNoMax, limitsHasMax, limitsSharedMax:
	default:
		return l, fmt.Errorf("unsupported limits flag 0x%02x", flag)
	}
	if l.Min, err = r.ReadU32(); err != nil {
		return l, err
	}
	if flag&limitsHasMax != 0 {
		hi, err := r.ReadU32()
		if err != nil {
			return l, err
		}
		if hi < l.Min {
			return l, fmt.Errorf("limits max %d below min %d", hi, l.Min)
		}
		l.Max = &hi
	}
	l.Shared = flag == limitsSharedMax
	return l, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid global mutability 0x%02x", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if int(count) > r.Len() {
		return fmt.Errorf("function count %d exceeds section", count)
	}
	m.Funcs = make([]uint32, count)
	for i := range m.Funcs {
		if m.Funcs[i], err = r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		t, err := readTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, t)
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, MemoryType{Limits: l})
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		expr, err := readConstExpr(r)
		if err != nil {
			return fmt.Errorf("global %d init: %w", i, err)
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: expr})
	}
	return nil
}

// readConstExpr reads a constant expression up to and including its end
// opcode, walking immediates so an 0x0B inside a LEB128 is not mistaken
// for the terminator.
func readConstExpr(r *binary.Reader) ([]byte, error) {
	start := r.Position()
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch op {
		case OpEnd:
			return r.Slice(start, r.Position()), nil
		case OpI32Const:
			_, err = r.ReadS32()
		case OpI64Const:
			_, err = r.ReadS64()
		case OpF32Const:
			_, err = r.ReadBytes(4)
		case OpF64Const:
			_, err = r.ReadBytes(8)
		case OpGlobalGet, OpRefFunc:
			_, err = r.ReadU32()
		case OpRefNull:
			_, err = r.ReadByte()
		case OpI32Add, OpI32Sub, OpI32Mul, OpI64Add, OpI64Sub, OpI64Mul:
		default:
			return nil, fmt.Errorf("opcode 0x%02x not allowed in constant expression", op)
		}
		if err != nil {
			return nil, err
		}
	}
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind > KindGlobal {
			return fmt.Errorf("export %q: unsupported kind 0x%02x", name, kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
	}
	return nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}
