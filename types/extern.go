package types

import "github.com/wippyai/wasm-embed/wasm"

// ExternKind is the kind of an importable or exportable object.
type ExternKind uint8

// Extern kinds, numbered as in the binary format.
const (
	ExternFunc   ExternKind = ExternKind(wasm.KindFunc)
	ExternTable  ExternKind = ExternKind(wasm.KindTable)
	ExternMemory ExternKind = ExternKind(wasm.KindMemory)
	ExternGlobal ExternKind = ExternKind(wasm.KindGlobal)
)

func (k ExternKind) String() string {
	return wasm.KindName(byte(k))
}

// Extern is implemented by objects that can satisfy an import.
type Extern interface {
	ExternKind() ExternKind
}
