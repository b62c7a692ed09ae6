package linker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/function"
	"github.com/wippyai/wasm-embed/module"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
	"github.com/wippyai/wasm-embed/wasm"
)

// State is the linking state of an Instance.
type State uint32

const (
	StateUnlinked State = iota
	StateLinking
	StateLinked
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnlinked:
		return "unlinked"
	case StateLinking:
		return "linking"
	case StateLinked:
		return "linked"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var instanceSeq atomic.Uint64

// Instance is a module linked against its imports and instantiated in a
// Store. Only fully linked instances are ever returned.
type Instance struct {
	store       *store.Store
	module      *module.Module
	guest       api.Module
	bindings    map[string]*function.Function
	exports     *Exports
	handle      store.Handle[*Instance]
	hostModules []string
	name        string
	state       atomic.Uint32
	closeMu     sync.Mutex
}

// binding is one resolved function import.
type binding struct {
	fn        *function.Function
	namespace string
	name      string
}

// NewInstance links mod against imports and instantiates it in s.
//
// Every import is resolved and checked (kind, owning store, exact signature)
// before anything is registered in the runtime. Missing imports are all
// reported together. If instantiation fails afterwards, every host module
// acquired for it is released again, so a failed link leaves no trace.
func NewInstance(ctx context.Context, s *store.Store, mod *module.Module, imports *Imports) (*Instance, error) {
	if s == nil || mod == nil {
		return nil, errors.InvalidInput(errors.PhaseLinking, "nil store or module")
	}
	if imports == nil {
		imports = NewImports()
	}
	if s.IsClosed() {
		return nil, errors.Closed(errors.PhaseLinking, "store")
	}

	inst := &Instance{
		store:    s,
		module:   mod,
		bindings: make(map[string]*function.Function),
		name:     instanceName(mod),
	}
	inst.setState(StateLinking)
	log := Logger().With(zap.String("instance", inst.name), zap.Uint64("store", s.ID()))

	resolved, err := resolveImports(s, mod, imports)
	if err != nil {
		inst.setState(StateFailed)
		log.Warn("import resolution failed", zap.Error(err))
		return nil, err
	}

	if err := inst.instantiate(ctx, resolved, log); err != nil {
		inst.setState(StateFailed)
		log.Warn("instantiation failed", zap.Error(err))
		return nil, err
	}

	inst.exports = newExports(inst)
	inst.setState(StateLinked)
	log.Debug("instance linked",
		zap.Int("imports", len(resolved)),
		zap.Strings("host_modules", inst.hostModules),
	)
	return inst, nil
}

// resolveImports looks up and checks every import. It never touches the
// runtime.
func resolveImports(s *store.Store, mod *module.Module, imports *Imports) ([]binding, error) {
	descs := mod.Imports()
	exts := make([]types.Extern, len(descs))

	var missing [][2]string
	for i, d := range descs {
		ext, ok := imports.Resolve(d.Namespace, d.Name)
		if !ok {
			missing = append(missing, [2]string{d.Namespace, d.Name})
			continue
		}
		exts[i] = ext
	}
	switch len(missing) {
	case 0:
	case 1:
		return nil, errors.UnresolvedImport(missing[0][0], missing[0][1])
	default:
		return nil, errors.NewMissingImportsError(missing)
	}

	resolved := make([]binding, 0, len(descs))
	for i, d := range descs {
		path := []string{d.Namespace, d.Name}
		ext := exts[i]

		if ext.ExternKind() != d.Kind {
			return nil, errors.ExportKindMismatch(errors.PhaseLinking, path, d.Kind.String(), ext.ExternKind().String())
		}
		fn, ok := ext.(*function.Function)
		if !ok {
			return nil, errors.Unsupported(errors.PhaseLinking,
				fmt.Sprintf("%s import %s is not a host function", d.Kind, d.Path()))
		}
		if err := s.CheckOwner(errors.PhaseLinking, "binding for "+d.Path(), fn.StoreID()); err != nil {
			return nil, err
		}
		if _, err := store.Resolve(s, fn.Handle()); err != nil {
			return nil, err
		}
		if !d.Signature.Matches(fn.Signature()) {
			return nil, errors.SignatureMismatch(errors.PhaseLinking, path, d.Signature.String(), fn.Signature().String())
		}

		Logger().Debug("import resolved",
			zap.String("import", d.Path()),
			zap.String("binding", fn.Name()),
			zap.Stringer("signature", fn.Signature()),
		)
		resolved = append(resolved, binding{fn: fn, namespace: d.Namespace, name: d.Name})
	}
	return resolved, nil
}

func (inst *Instance) instantiate(ctx context.Context, resolved []binding, log *zap.Logger) (err error) {
	s := inst.store
	defer func() {
		if err != nil {
			err = multierr.Append(err, inst.releaseHostModules(ctx))
		}
	}()

	groups, order := groupByNamespace(resolved)
	hostNames := make(map[string]string, len(order))
	for _, ns := range order {
		group := groups[ns]
		name := hostModuleName(ns, group)
		_, reused, err := s.AcquireModule(ctx, name, func(b wazero.HostModuleBuilder) error {
			return defineHostFuncs(b, group)
		})
		if err != nil {
			return err
		}
		inst.hostModules = append(inst.hostModules, name)
		hostNames[ns] = name
		for _, bd := range group {
			inst.bindings[ns+"#"+bd.name] = bd.fn
		}
		log.Debug("host module acquired", zap.String("module", name), zap.Bool("reused", reused))
	}

	bin, err := wasm.RewriteImportModules(inst.module.Binary(), func(imp wasm.Import) string {
		if name, ok := hostNames[imp.Module]; ok {
			return name
		}
		return imp.Module
	})
	if err != nil {
		return errors.Wrap(errors.PhaseLinking, errors.KindInvalidData, err, "rewrite imports")
	}

	key := inst.module.Key()
	if len(inst.hostModules) > 0 {
		key += "@" + strconv.FormatUint(xxhash.Sum64String(fmt.Sprint(inst.hostModules)), 16)
	}
	compiled, err := s.Compile(ctx, key, bin)
	if err != nil {
		return err
	}

	guest, err := s.Runtime().InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(inst.name))
	if err != nil {
		return multierr.Append(
			classifyCallError(errors.PhaseLinking, inst.name, err),
			s.DiscardCompiled(ctx, key),
		)
	}
	inst.guest = guest

	h, err := store.Allocate(s, inst)
	if err != nil {
		return multierr.Append(err, guest.Close(ctx))
	}
	inst.handle = h
	return nil
}

func groupByNamespace(resolved []binding) (map[string][]binding, []string) {
	groups := make(map[string][]binding)
	var order []string
	seen := make(map[string]bool)
	for _, bd := range resolved {
		key := bd.namespace + "#" + bd.name
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := groups[bd.namespace]; !ok {
			order = append(order, bd.namespace)
		}
		groups[bd.namespace] = append(groups[bd.namespace], bd)
	}
	return groups, order
}

// hostModuleName derives a runtime module name from the bound handles, so
// instances linking the same bindings share one host module.
func hostModuleName(namespace string, group []binding) string {
	parts := make([]string, len(group))
	for i, bd := range group {
		parts[i] = bd.name + "=" + bd.fn.Handle().String()
	}
	sort.Strings(parts)

	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.WriteString(";")
	}
	return namespace + "#" + strconv.FormatUint(d.Sum64(), 16)
}

func defineHostFuncs(b wazero.HostModuleBuilder, group []binding) error {
	for _, bd := range group {
		params, results, err := bd.fn.Signature().APITypes()
		if err != nil {
			return err
		}
		b.NewFunctionBuilder().
			WithName(bd.name).
			WithGoModuleFunction(bd.fn.GoModuleFunction(), params, results).
			Export(bd.name)
	}
	return nil
}

func instanceName(mod *module.Module) string {
	base := mod.Name()
	if base == "" {
		base = "instance"
	}
	return base + "#" + strconv.FormatUint(instanceSeq.Add(1), 10)
}

func (inst *Instance) setState(s State) { inst.state.Store(uint32(s)) }

// State returns the current linking state.
func (inst *Instance) State() State {
	st := State(inst.state.Load())
	if st == StateLinked && inst.store.IsClosed() {
		return StateClosed
	}
	return st
}

// Name returns the runtime name of the instance.
func (inst *Instance) Name() string { return inst.name }

// Module returns the module the instance was created from.
func (inst *Instance) Module() *module.Module { return inst.module }

// Store returns the owning store.
func (inst *Instance) Store() *store.Store { return inst.store }

// Handle returns the instance handle in its store.
func (inst *Instance) Handle() store.Handle[*Instance] { return inst.handle }

// HostModules returns the names of the host modules backing the imports.
func (inst *Instance) HostModules() []string {
	return append([]string(nil), inst.hostModules...)
}

// Exports returns the export map.
func (inst *Instance) Exports() *Exports { return inst.exports }

func (inst *Instance) checkOpen(phase errors.Phase) error {
	if inst.State() != StateLinked {
		return errors.Closed(phase, "instance "+inst.name)
	}
	return nil
}

// Close closes the guest, releases its host modules and frees its handle.
// Closing twice is a no-op.
func (inst *Instance) Close(ctx context.Context) error {
	inst.closeMu.Lock()
	defer inst.closeMu.Unlock()

	if inst.State() != StateLinked {
		return nil
	}
	inst.setState(StateClosed)

	err := inst.guest.Close(ctx)
	err = multierr.Append(err, inst.releaseHostModules(ctx))
	err = multierr.Append(err, store.Free(inst.store, inst.handle))
	Logger().Debug("instance closed", zap.String("instance", inst.name), zap.Error(err))
	return err
}

// Drop is called by the store when it is closed. The runtime has already
// closed the guest and host modules by then.
func (inst *Instance) Drop() {
	inst.setState(StateClosed)
}

func (inst *Instance) releaseHostModules(ctx context.Context) error {
	var err error
	for _, name := range inst.hostModules {
		err = multierr.Append(err, inst.store.ReleaseModule(ctx, name))
	}
	inst.hostModules = nil
	return err
}
