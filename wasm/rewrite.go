package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-embed/wasm/internal/binary"
)

// RewriteImportModules returns a copy of data with the module name of each
// import replaced by rename(imp). Import order, names and descriptors are
// preserved byte for byte, so function indices do not move. When rename
// leaves every name unchanged the input is returned as is.
func RewriteImportModules(data []byte, rename func(imp Import) string) ([]byte, error) {
	r := binary.NewReader(data)
	if _, err := r.ReadBytes(8); err != nil {
		return nil, r.WrapError("header", err)
	}

	w := binary.NewWriter()
	w.WriteBytes(data[:8])
	changed := false

	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		if id != SectionImport {
			w.WriteSection(id, body)
			continue
		}

		rewritten, modified, err := rewriteImportSection(body, rename)
		if err != nil {
			return nil, fmt.Errorf("import section: %w", err)
		}
		changed = changed || modified
		w.WriteSection(id, rewritten)
	}

	if !changed {
		return data, nil
	}
	return w.Bytes(), nil
}

func rewriteImportSection(body []byte, rename func(imp Import) string) ([]byte, bool, error) {
	r := binary.NewReader(body)
	count, err := r.ReadU32()
	if err != nil {
		return nil, false, err
	}

	w := binary.NewWriter()
	w.WriteU32(count)
	changed := false

	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return nil, false, err
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, false, err
		}
		descStart := r.Position()
		desc, err := readImportDesc(r)
		if err != nil {
			return nil, false, fmt.Errorf("import %d: %w", i, err)
		}

		newModule := rename(Import{Module: module, Name: name, Desc: desc})
		if newModule != module {
			changed = true
		}
		w.WriteName(newModule)
		w.WriteName(name)
		w.WriteBytes(r.Slice(descStart, r.Position()))
	}
	if r.Len() != 0 {
		return nil, false, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return w.Bytes(), changed, nil
}
