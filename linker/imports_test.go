package linker

import (
	"slices"
	"testing"

	"github.com/wippyai/wasm-embed/errors"
	"github.com/wippyai/wasm-embed/types"
)

type fakeExtern struct {
	kind types.ExternKind
	id   int
}

func (f *fakeExtern) ExternKind() types.ExternKind { return f.kind }

func TestImports_DefineResolve(t *testing.T) {
	a := &fakeExtern{kind: types.ExternFunc, id: 1}
	b := &fakeExtern{kind: types.ExternFunc, id: 2}

	im := NewImports()
	im.Namespace("env").Define("a", a).Define("b", b)
	im.Define("other", "a", b)

	if ext, ok := im.Resolve("env", "a"); !ok || ext != a {
		t.Fatalf("Resolve(env, a) = %v, %v; want a", ext, ok)
	}
	if ext, ok := im.Resolve("other", "a"); !ok || ext != b {
		t.Fatalf("Resolve(other, a) = %v, %v; want b", ext, ok)
	}
	if _, ok := im.Resolve("env", "c"); ok {
		t.Error("Resolve(env, c) should fail")
	}
	if _, ok := im.Resolve("missing", "a"); ok {
		t.Error("Resolve(missing, a) should fail")
	}

	if got := im.Namespaces(); !slices.Equal(got, []string{"env", "other"}) {
		t.Errorf("Namespaces() = %v", got)
	}
	if got := im.Namespace("env").Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
	if im.Len() != 3 {
		t.Errorf("Len() = %d, want 3", im.Len())
	}

	im.Define("env", "a", b)
	if ext, _ := im.Resolve("env", "a"); ext != b {
		t.Error("redefinition should replace")
	}
	if got := im.Namespace("env").Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Names() after redefinition = %v", got)
	}

	im.Define("env", "nil", nil)
	if _, ok := im.Resolve("env", "nil"); ok {
		t.Error("nil definitions should count as missing")
	}
}

func TestImports_Semver(t *testing.T) {
	v023 := &fakeExtern{kind: types.ExternFunc, id: 23}
	v025 := &fakeExtern{kind: types.ExternFunc, id: 25}
	v100 := &fakeExtern{kind: types.ExternFunc, id: 100}

	im := NewImports()
	im.Define("wasi:io/streams@0.2.3", "read", v023)
	im.Define("wasi:io/streams@0.2.5", "read", v025)
	im.Define("wasi:io/streams@1.0.0", "read", v100)

	if _, ok := im.Resolve("wasi:io/streams@0.2.1", "read"); ok {
		t.Fatal("exact match only by default")
	}
	im.WithSemverMatching(true)

	tests := []struct {
		namespace string
		want      types.Extern
	}{
		{"wasi:io/streams@0.2.1", v025}, // highest compatible
		{"wasi:io/streams@0.2.3", v023}, // exact preferred
		{"wasi:io/streams@1.0.0", v100},
		{"wasi:io/streams@0.3.0", nil},
		{"wasi:io/streams@0.2.6", nil}, // older definitions do not satisfy newer imports
		{"wasi:io/streams", nil},       // unversioned needs exact namespace
	}
	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			ext, ok := im.Resolve(tt.namespace, "read")
			if tt.want == nil {
				if ok {
					t.Errorf("Resolve(%q) = %v, want none", tt.namespace, ext)
				}
				return
			}
			if !ok || ext != tt.want {
				t.Errorf("Resolve(%q) = %v, %v; want %v", tt.namespace, ext, ok, tt.want)
			}
		})
	}
}

func TestParseNameVersion(t *testing.T) {
	tests := []struct {
		input       string
		wantName    string
		wantVersion string
	}{
		{"wasi:io/streams@0.2.1", "wasi:io/streams", "0.2.1"},
		{"env", "env", ""},
		{"user@example", "user@example", ""},
	}
	for _, tt := range tests {
		name, v := parseNameVersion(tt.input)
		if name != tt.wantName {
			t.Errorf("parseNameVersion(%q) name = %q, want %q", tt.input, name, tt.wantName)
		}
		got := ""
		if v != nil {
			got = v.String()
		}
		if got != tt.wantVersion {
			t.Errorf("parseNameVersion(%q) version = %q, want %q", tt.input, got, tt.wantVersion)
		}
	}

	ns := NewImports().Namespace("wasi:io/streams@0.2.1")
	if ns.Version() == nil {
		t.Error("versioned namespace has no version")
	}
	if ns.Name() != "wasi:io/streams@0.2.1" {
		t.Errorf("Name() = %q", ns.Name())
	}
}

func TestSplitFuncPath(t *testing.T) {
	ns, name, err := splitFuncPath("wasi:random/random@0.2.0#get-random-bytes")
	if err != nil {
		t.Fatal(err)
	}
	if ns != "wasi:random/random@0.2.0" || name != "get-random-bytes" {
		t.Errorf("splitFuncPath = %q, %q", ns, name)
	}

	for _, bad := range []string{"", "env", "#name", "env#"} {
		if _, _, err := splitFuncPath(bad); !errors.HasKind(err, errors.KindInvalidInput) {
			t.Errorf("splitFuncPath(%q) error = %v, want invalid_input", bad, err)
		}
	}
}
