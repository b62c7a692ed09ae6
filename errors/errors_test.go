package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseLinking,
				Kind:     KindTypeMismatch,
				Path:     []string{"env", "multiply"},
				GoType:   "func(string) int32",
				WasmType: "(i32) -> i32",
				Detail:   "cannot bind",
			},
			contains: []string{"[linking]", "type_mismatch", "env.multiply", "func(string) int32", "(i32) -> i32", "cannot bind"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseStore,
				Kind:  KindStaleHandle,
			},
			contains: []string{"[store]", "stale_handle"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseCall,
				Kind:   KindTrap,
				Detail: "unreachable",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[call]", "trap", "unreachable", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseCompile,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseLinking,
		Kind:  KindSignatureMismatch,
		Path:  []string{"env", "f"},
	}

	if !err.Is(&Error{Phase: PhaseLinking, Kind: KindSignatureMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseLookup, Kind: KindSignatureMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseLinking, Kind: KindUnresolvedImport}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("instantiate: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseLinking, Kind: KindSignatureMismatch}) {
		t.Error("errors.Is should match through fmt wrapping")
	}
}

func TestHasKind(t *testing.T) {
	host := HostFailure("multiply", errors.New("boom"))
	trap := Trap("sum", host)

	if !HasKind(trap, KindTrap) {
		t.Error("outer kind not found")
	}
	if !HasKind(trap, KindHost) {
		t.Error("nested host kind not found")
	}
	if HasKind(trap, KindBorrowConflict) {
		t.Error("unexpected kind found")
	}
	if HasKind(errors.New("plain"), KindTrap) {
		t.Error("plain error should have no kind")
	}
	if HasKind(nil, KindTrap) {
		t.Error("nil error should have no kind")
	}
	if !HasKind(fmt.Errorf("call: %w", trap), KindHost) {
		t.Error("kind not found through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLinking, KindSignatureMismatch).
		Path("env", "multiply").
		GoType("func(int32) int32").
		WasmType("(i32) -> i32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "(i32) -> i32", "(i64) -> i64").
		Build()

	if err.Phase != PhaseLinking {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLinking)
	}
	if err.Kind != KindSignatureMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindSignatureMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "env" || err.Path[1] != "multiply" {
		t.Errorf("Path = %v, want [env multiply]", err.Path)
	}
	if err.GoType != "func(int32) int32" {
		t.Errorf("GoType = %v", err.GoType)
	}
	if err.WasmType != "(i32) -> i32" {
		t.Errorf("WasmType = %v", err.WasmType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected (i32) -> i32, got (i64) -> i64" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("SignatureMismatch", func(t *testing.T) {
		err := SignatureMismatch(PhaseLinking, []string{"env", "f"}, "(i32) -> i32", "(i64) -> i64")
		if err.Kind != KindSignatureMismatch {
			t.Errorf("Kind = %v", err.Kind)
		}
		if err.WasmType != "(i32) -> i32" || err.Value != "(i64) -> i64" {
			t.Errorf("expected/found = %v/%v", err.WasmType, err.Value)
		}
	})

	t.Run("UnresolvedImport", func(t *testing.T) {
		err := UnresolvedImport("env", "multiply")
		if err.Kind != KindUnresolvedImport || err.Phase != PhaseLinking {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Error(), "env#multiply") {
			t.Errorf("message %q should name the import", err.Error())
		}
	})

	t.Run("CrossStore", func(t *testing.T) {
		err := CrossStore(PhaseStore, "function", 1, 2)
		if err.Kind != KindCrossStore {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "store 1") || !strings.Contains(err.Detail, "store 2") {
			t.Errorf("Detail = %v", err.Detail)
		}
	})

	t.Run("ExportNotFound", func(t *testing.T) {
		err := ExportNotFound("sum")
		if err.Kind != KindExportNotFound || err.Phase != PhaseLookup {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("ExportKindMismatch", func(t *testing.T) {
		err := ExportKindMismatch(PhaseLookup, []string{"memory"}, "func", "memory")
		if err.Kind != KindExportKindMismatch || err.Value != "memory" {
			t.Errorf("got %v/%v", err.Kind, err.Value)
		}
	})

	t.Run("Invariant", func(t *testing.T) {
		err := Invariant(PhaseCall, "want %d results, got %d", 1, 2)
		if err.Kind != KindInvariant || err.Detail != "want 1 results, got 2" {
			t.Errorf("got %v %q", err.Kind, err.Detail)
		}
	})

	t.Run("BorrowConflict", func(t *testing.T) {
		err := BorrowConflict(PhaseStore, "environment")
		if err.Kind != KindBorrowConflict {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("CompileFailed", func(t *testing.T) {
		cause := errors.New("bad magic")
		err := CompileFailed(cause)
		if err.Phase != PhaseCompile || err.Kind != KindInvalidData || !errors.Is(err, cause) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseLinking, "table imports")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v", err.Kind)
		}
	})
}

func TestMissingImportsError(t *testing.T) {
	t.Run("multiple imports same namespace", func(t *testing.T) {
		err := NewMissingImportsError([][2]string{
			{"env", "multiply"},
			{"env", "divide"},
		})
		if len(err.Imports) != 2 {
			t.Fatalf("expected 2 imports, got %d", len(err.Imports))
		}

		msg := err.Error()
		for _, s := range []string{"missing 2", "env:", "multiply", "divide"} {
			if !strings.Contains(msg, s) {
				t.Errorf("error %q should contain %q", msg, s)
			}
		}
	})

	t.Run("multiple namespaces grouped", func(t *testing.T) {
		err := NewMissingImportsError([][2]string{
			{"wasi:io/streams@0.2.0", "read"},
			{"env", "log"},
			{"wasi:io/streams@0.2.0", "write"},
		})
		msg := err.Error()
		if strings.Count(msg, "wasi:io/streams@0.2.0:") != 1 {
			t.Errorf("namespace should appear once: %s", msg)
		}
		if !strings.Contains(msg, "env:") {
			t.Errorf("error should contain second namespace")
		}
	})

	t.Run("empty imports", func(t *testing.T) {
		err := NewMissingImportsError(nil)
		if !strings.Contains(err.Error(), "no imports specified") {
			t.Errorf("empty error should have specific message, got: %s", err.Error())
		}
	})

	t.Run("errors.Is and As", func(t *testing.T) {
		var err error = NewMissingImportsError([][2]string{{"env", "a"}, {"env", "b"}})
		if !errors.Is(err, &MissingImportsError{}) {
			t.Error("errors.Is should match MissingImportsError")
		}
		if !errors.Is(err, &Error{Phase: PhaseLinking, Kind: KindUnresolvedImport}) {
			t.Error("errors.Is should reach each unresolved import")
		}
		var e *Error
		if !errors.As(err, &e) || e.Path[1] != "a" {
			t.Errorf("errors.As = %v", e)
		}
		if !HasKind(err, KindUnresolvedImport) {
			t.Error("HasKind should reach each unresolved import")
		}
	})
}
