package linker

import (
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/types"
)

// Imports is the import resolution map: (namespace, name) to the extern
// that satisfies it. Namespaces may carry a version suffix, as in
// "wasi:io/streams@0.2.1".
type Imports struct {
	namespaces map[string]*Namespace
	order      []string
	semver     bool
	mu         sync.RWMutex
}

// NewImports creates an empty map with semver matching disabled.
func NewImports() *Imports {
	return &Imports{namespaces: make(map[string]*Namespace)}
}

// WithSemverMatching enables or disables semver-compatible namespace
// matching. When enabled, an import of "pkg/api@1.2.0" is satisfied by a
// definition in "pkg/api@1.4.3" if no exact "pkg/api@1.2.0" namespace
// exists. Compatibility follows caret ranges.
func (im *Imports) WithSemverMatching(on bool) *Imports {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.semver = on
	return im
}

// Namespace returns the namespace with the given name, creating it.
func (im *Imports) Namespace(name string) *Namespace {
	im.mu.Lock()
	defer im.mu.Unlock()

	if ns, ok := im.namespaces[name]; ok {
		return ns
	}
	base, version := parseNameVersion(name)
	ns := &Namespace{
		name:    name,
		base:    base,
		version: version,
		externs: make(map[string]types.Extern),
	}
	im.namespaces[name] = ns
	im.order = append(im.order, name)
	return ns
}

// Define binds ext to namespace#name, replacing any previous definition.
func (im *Imports) Define(namespace, name string, ext types.Extern) *Imports {
	im.Namespace(namespace).Define(name, ext)
	return im
}

// Resolve looks up the extern for namespace#name.
func (im *Imports) Resolve(namespace, name string) (types.Extern, bool) {
	ns := im.lookupNamespace(namespace)
	if ns == nil {
		return nil, false
	}
	return ns.Get(name)
}

func (im *Imports) lookupNamespace(name string) *Namespace {
	im.mu.RLock()
	defer im.mu.RUnlock()

	if ns, ok := im.namespaces[name]; ok {
		return ns
	}
	if !im.semver {
		return nil
	}

	base, want := parseNameVersion(name)
	if want == nil {
		return nil
	}
	constraint, err := semver.NewConstraint("^" + want.String())
	if err != nil {
		return nil
	}

	var best *Namespace
	for _, key := range im.order {
		ns := im.namespaces[key]
		if ns.base != base || ns.version == nil || !constraint.Check(ns.version) {
			continue
		}
		if best == nil || ns.version.GreaterThan(best.version) {
			best = ns
		}
	}
	return best
}

// Namespaces returns the defined namespace names in definition order.
func (im *Imports) Namespaces() []string {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return append([]string(nil), im.order...)
}

// Len returns the number of definitions across all namespaces.
func (im *Imports) Len() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	n := 0
	for _, ns := range im.namespaces {
		n += ns.Len()
	}
	return n
}

// Namespace holds the definitions of one import module name.
type Namespace struct {
	version *semver.Version
	externs map[string]types.Extern
	name    string
	base    string
	order   []string
	mu      sync.RWMutex
}

// Name returns the full namespace name, including any version.
func (ns *Namespace) Name() string { return ns.name }

// Version returns the namespace version, or nil if unversioned.
func (ns *Namespace) Version() *semver.Version { return ns.version }

// Define binds ext to name in this namespace.
func (ns *Namespace) Define(name string, ext types.Extern) *Namespace {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if _, ok := ns.externs[name]; !ok {
		ns.order = append(ns.order, name)
	}
	ns.externs[name] = ext
	return ns
}

// Get returns the extern bound to name. A nil definition counts as absent.
func (ns *Namespace) Get(name string) (types.Extern, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	ext, ok := ns.externs[name]
	return ext, ok && ext != nil
}

// Names returns the defined names in definition order.
func (ns *Namespace) Names() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return append([]string(nil), ns.order...)
}

// Len returns the number of definitions.
func (ns *Namespace) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.externs)
}

// parseNameVersion splits "name@version" into name and parsed version.
// A suffix that is not a valid version stays part of the name.
func parseNameVersion(s string) (string, *semver.Version) {
	idx := strings.LastIndex(s, "@")
	if idx < 0 {
		return s, nil
	}
	v, err := semver.NewVersion(s[idx+1:])
	if err != nil {
		return s, nil
	}
	return s[:idx], v
}

// splitFuncPath splits "namespace#name" into its parts.
func splitFuncPath(path string) (namespace, name string, err error) {
	idx := strings.LastIndex(path, "#")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", errors.New(errors.PhaseLinking, errors.KindInvalidInput).
			Detail("invalid function path %q: want namespace#name", path).
			Build()
	}
	return path[:idx], path[idx+1:], nil
}
