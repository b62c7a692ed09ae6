package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode  Phase = "decode"  // binary descriptor decoding
	PhaseCompile Phase = "compile" // validation and compilation
	PhaseStore   Phase = "store"   // handle allocation and resolution
	PhaseHost    Phase = "host"    // host function registration
	PhaseLinking Phase = "linking" // import resolution and instantiation
	PhaseLookup  Phase = "lookup"  // export lookup and typed handles
	PhaseCall    Phase = "call"    // calls across the host/guest boundary
	PhaseConfig  Phase = "config"  // engine configuration
)

// Kind categorizes the error
type Kind string

const (
	KindSignatureMismatch  Kind = "signature_mismatch"
	KindUnresolvedImport   Kind = "unresolved_import"
	KindCrossStore         Kind = "cross_store"
	KindStaleHandle        Kind = "stale_handle"
	KindClosed             Kind = "closed"
	KindExportNotFound     Kind = "export_not_found"
	KindExportKindMismatch Kind = "export_kind_mismatch"
	KindTrap               Kind = "trap"
	KindHost               Kind = "host"
	KindInvariant          Kind = "invariant"
	KindBorrowConflict     Kind = "borrow_conflict"
	KindInvalidData        Kind = "invalid_data"
	KindInvalidInput       Kind = "invalid_input"
	KindTypeMismatch       Kind = "type_mismatch"
	KindUnsupported        Kind = "unsupported"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	GoType   string
	WasmType string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WasmType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.WasmType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", wasm type ")
			b.WriteString(e.WasmType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("wasm type ")
			b.WriteString(e.WasmType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WasmType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// HasKind reports whether any *Error in err's chain has the given kind.
// Unlike errors.Is it ignores the phase, so a host failure wrapped by a
// guest trap is still found.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path, e.g. namespace and name of an import
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WasmType sets the wasm type, usually a signature
func (b *Builder) WasmType(t string) *Builder {
	b.err.WasmType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// SignatureMismatch creates a signature mismatch error. Value holds the
// found signature, WasmType the expected one.
func SignatureMismatch(phase Phase, path []string, expected, found string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindSignatureMismatch,
		Path:     path,
		WasmType: expected,
		Value:    found,
		Detail:   fmt.Sprintf("expected %s, found %s", expected, found),
	}
}

// UnresolvedImport creates an error for an import missing from the import map.
func UnresolvedImport(namespace, name string) *Error {
	return &Error{
		Phase:  PhaseLinking,
		Kind:   KindUnresolvedImport,
		Path:   []string{namespace, name},
		Detail: fmt.Sprintf("no definition for %s#%s", namespace, name),
	}
}

// CrossStore creates an error for a handle used against a store that did not issue it.
func CrossStore(phase Phase, what string, owner, used uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCrossStore,
		Detail: fmt.Sprintf("%s belongs to store %d, used with store %d", what, owner, used),
	}
}

// StaleHandle creates an error for a handle whose slot was freed or reused.
func StaleHandle(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStaleHandle,
		Detail: fmt.Sprintf("%s is no longer valid", what),
	}
}

// Closed creates an error for an operation on a closed store or instance.
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what + " is closed",
	}
}

// ExportNotFound creates an error for a missing export name.
func ExportNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseLookup,
		Kind:   KindExportNotFound,
		Path:   []string{name},
		Detail: fmt.Sprintf("export %q not found", name),
	}
}

// ExportKindMismatch creates an error for an extern of the wrong kind.
func ExportKindMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExportKindMismatch,
		Path:   path,
		Value:  got,
		Detail: fmt.Sprintf("expected %s, found %s", want, got),
	}
}

// Trap creates a call error for a guest-side trap or abort.
func Trap(function string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindTrap,
		Path:   []string{function},
		Detail: "guest trapped",
		Cause:  cause,
	}
}

// HostFailure creates a call error for an error returned by a host binding.
func HostFailure(function string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindHost,
		Path:   []string{function},
		Detail: "host function failed",
		Cause:  cause,
	}
}

// Invariant creates an error for a condition a prior check should have made unreachable.
func Invariant(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// BorrowConflict creates an error for a second borrow of an exclusively borrowed object.
func BorrowConflict(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBorrowConflict,
		Detail: what + " is already borrowed",
	}
}

// CompileFailed creates a compile error wrapping the validator's cause.
func CompileFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidData,
		Detail: "compile module",
		Cause:  cause,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch creates a Go/wasm type mismatch error
func TypeMismatch(phase Phase, path []string, goType, wasmType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		GoType:   goType,
		WasmType: wasmType,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingImportsError is returned when linking fails because more than one
// import has no definition. Each entry is an UnresolvedImport error.
type MissingImportsError struct {
	Imports []*Error
}

// NewMissingImportsError creates an error from (namespace, name) pairs.
func NewMissingImportsError(pairs [][2]string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]*Error, 0, len(pairs)),
	}
	for _, p := range pairs {
		result.Imports = append(result.Imports, UnresolvedImport(p[0], p[1]))
	}
	return result
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[linking] unresolved_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d import(s):\n", len(e.Imports))

	// Group by namespace for cleaner output
	byNS := make(map[string][]string)
	var nsOrder []string
	for _, imp := range e.Imports {
		ns, name := imp.Path[0], imp.Path[1]
		if _, exists := byNS[ns]; !exists {
			nsOrder = append(nsOrder, ns)
		}
		byNS[ns] = append(byNS[ns], name)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, name := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is matches any MissingImportsError.
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}

// Unwrap exposes each unresolved import to errors.Is and errors.As.
func (e *MissingImportsError) Unwrap() []error {
	errs := make([]error, len(e.Imports))
	for i, imp := range e.Imports {
		errs[i] = imp
	}
	return errs
}
