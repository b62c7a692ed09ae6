package linker

import (
	"context"

	"github.com/wippyai/wasm-embed/function"
	"github.com/wippyai/wasm-embed/module"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
)

// Linker pairs a Store with an import map for the common case of
// instantiating several modules against one set of host bindings.
type Linker struct {
	store   *store.Store
	imports *Imports
}

// New creates a linker over s with semver namespace matching enabled.
func New(s *store.Store) *Linker {
	return &Linker{
		store:   s,
		imports: NewImports().WithSemverMatching(true),
	}
}

// Store returns the linker's store.
func (l *Linker) Store() *store.Store { return l.store }

// Imports returns the linker's import map.
func (l *Linker) Imports() *Imports { return l.imports }

// Define binds ext to namespace#name.
func (l *Linker) Define(namespace, name string, ext types.Extern) *Linker {
	l.imports.Define(namespace, name, ext)
	return l
}

// DefineFunc binds fn at a "namespace#name" path. fn is either a
// *function.Function or a native Go func, which is bound with
// function.NewTyped.
func (l *Linker) DefineFunc(path string, fn any) (*function.Function, error) {
	ns, name, err := splitFuncPath(path)
	if err != nil {
		return nil, err
	}
	f, ok := fn.(*function.Function)
	if !ok {
		f, err = function.NewTyped(l.store, fn)
		if err != nil {
			return nil, err
		}
	}
	l.imports.Define(ns, name, f)
	return f, nil
}

// Instantiate links and instantiates mod in the linker's store.
func (l *Linker) Instantiate(ctx context.Context, mod *module.Module) (*Instance, error) {
	return NewInstance(ctx, l.store, mod, l.imports)
}
