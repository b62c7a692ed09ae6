package linker

import (
	"context"
	goerrors "errors"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/function"
	"github.com/wippyai/wasm-embed/module"
	"github.com/wippyai/wasm-embed/types"
)

// Exports is the export map of a linked instance.
type Exports struct {
	inst *Instance
}

func newExports(inst *Instance) *Exports {
	return &Exports{inst: inst}
}

// Names returns the export names in declaration order.
func (e *Exports) Names() []string {
	descs := e.inst.module.Exports()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

// Descriptor returns the descriptor of the named export.
func (e *Exports) Descriptor(name string) (module.ExportDescriptor, error) {
	d, ok := e.inst.module.Export(name)
	if !ok {
		return module.ExportDescriptor{}, errors.ExportNotFound(name)
	}
	return d, nil
}

func (e *Exports) lookup(name string, want types.ExternKind) (module.ExportDescriptor, error) {
	if err := e.inst.checkOpen(errors.PhaseLookup); err != nil {
		return module.ExportDescriptor{}, err
	}
	d, err := e.Descriptor(name)
	if err != nil {
		return d, err
	}
	if d.Kind != want {
		return d, errors.ExportKindMismatch(errors.PhaseLookup, []string{name}, want.String(), d.Kind.String())
	}
	return d, nil
}

// Function returns the named function export.
func (e *Exports) Function(name string) (*ExportedFunction, error) {
	d, err := e.lookup(name, types.ExternFunc)
	if err != nil {
		return nil, err
	}

	f := &ExportedFunction{inst: e.inst, name: name, sig: d.Signature}
	if imp, ok := e.inst.module.ReexportedImport(name); ok {
		if host, ok := e.inst.bindings[imp.Path()]; ok {
			f.host = host
			return f, nil
		}
	}

	fn := e.inst.guest.ExportedFunction(name)
	if fn == nil {
		return nil, errors.Invariant(errors.PhaseLookup, "export %q described but missing from the runtime", name)
	}
	if !definitionMatches(d.Signature, fn.Definition()) {
		panic(errors.Invariant(errors.PhaseLookup, "export %q: runtime signature differs from %s", name, d.Signature))
	}
	f.fn = fn
	return f, nil
}

// Memory returns the named memory export.
func (e *Exports) Memory(name string) (api.Memory, error) {
	if _, err := e.lookup(name, types.ExternMemory); err != nil {
		return nil, err
	}
	mem := e.inst.guest.ExportedMemory(name)
	if mem == nil {
		return nil, errors.Invariant(errors.PhaseLookup, "memory %q described but missing from the runtime", name)
	}
	return mem, nil
}

// Global returns the named global export.
func (e *Exports) Global(name string) (api.Global, error) {
	if _, err := e.lookup(name, types.ExternGlobal); err != nil {
		return nil, err
	}
	g := e.inst.guest.ExportedGlobal(name)
	if g == nil {
		return nil, errors.Invariant(errors.PhaseLookup, "global %q described but missing from the runtime", name)
	}
	return g, nil
}

func definitionMatches(sig types.Signature, def api.FunctionDefinition) bool {
	params, results, err := sig.APITypes()
	if err != nil {
		return false
	}
	return sameValueTypes(params, def.ParamTypes()) && sameValueTypes(results, def.ResultTypes())
}

func sameValueTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ExportedFunction is a callable function export. When the export forwards
// an imported host binding unchanged, calls go straight to the binding.
type ExportedFunction struct {
	inst *Instance
	fn   api.Function
	host *function.Function
	sig  types.Signature
	name string
}

// Name returns the export name.
func (f *ExportedFunction) Name() string { return f.name }

// Signature returns the export's signature.
func (f *ExportedFunction) Signature() types.Signature { return f.sig }

// IsHostReexport reports whether calls bypass the guest.
func (f *ExportedFunction) IsHostReexport() bool { return f.host != nil }

// StoreID returns the id of the store the instance lives in.
func (f *ExportedFunction) StoreID() uint64 { return f.inst.store.ID() }

// Call invokes the export with dynamically typed arguments.
func (f *ExportedFunction) Call(ctx context.Context, args ...types.Value) ([]types.Value, error) {
	if len(args) != f.sig.NumParams() {
		return nil, errors.New(errors.PhaseCall, errors.KindInvariant).
			Path(f.name).
			Detail("expected %d arguments, got %d", f.sig.NumParams(), len(args)).
			Build()
	}
	params := f.sig.Params()
	if !types.CheckValues(params, args) {
		return nil, errors.SignatureMismatch(errors.PhaseCall, []string{f.name},
			types.FormatKinds(params), types.FormatKinds(types.KindsOf(args)))
	}

	stack := make([]uint64, max(f.sig.NumParams(), f.sig.NumResults()))
	for i, a := range args {
		stack[i] = a.Encode()
	}
	if err := f.callRaw(ctx, stack); err != nil {
		return nil, err
	}

	results := make([]types.Value, f.sig.NumResults())
	for i := range results {
		results[i] = types.DecodeValue(f.sig.Result(i), stack[i])
	}
	return results, nil
}

// callRaw runs the export over raw stack bits. len(stack) must be at least
// max(NumParams, NumResults).
func (f *ExportedFunction) callRaw(ctx context.Context, stack []uint64) error {
	if err := f.inst.checkOpen(errors.PhaseCall); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if f.host != nil {
		return f.host.CallRaw(ctx, stack)
	}
	if err := f.fn.CallWithStack(ctx, stack); err != nil {
		return classifyCallError(errors.PhaseCall, f.name, err)
	}
	return nil
}

// classifyCallError maps a runtime call failure to a call error. Failures
// raised by host bindings keep their kind; anything else is a guest trap.
func classifyCallError(phase errors.Phase, name string, err error) error {
	var e *errors.Error
	if goerrors.As(err, &e) {
		return errors.New(phase, e.Kind).
			Path(name).
			Detail("call failed in host binding").
			Cause(err).
			Build()
	}
	t := errors.Trap(name, err)
	t.Phase = phase
	return t
}
