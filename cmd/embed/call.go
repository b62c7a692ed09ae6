package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasm-embed/engine"
	"github.com/wippyai/wasm-embed/function"
	"github.com/wippyai/wasm-embed/linker"
	"github.com/wippyai/wasm-embed/module"
	"github.com/wippyai/wasm-embed/store"
	"github.com/wippyai/wasm-embed/types"
)

var callFlags struct {
	trapImports bool
	interactive bool
}

var callCmd = &cobra.Command{
	Use:   "call <file.wasm> [export] [args...]",
	Short: "Instantiate a module and call an export",
	Long: `call instantiates a module with stub bindings for its function imports
and calls one export. Stubs return zero values, or fail when --trap-imports
is set. Arguments are parsed according to the export's parameter types.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if callFlags.interactive {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("interactive mode needs a terminal")
			}
			return runInteractive(args[0])
		}
		if len(args) < 2 {
			return fmt.Errorf("missing export name")
		}

		ctx := context.Background()
		sess, err := openSession(ctx, args[0], callFlags.trapImports)
		if err != nil {
			return err
		}
		defer sess.Close(ctx)

		exp, err := sess.inst.Exports().Function(args[1])
		if err != nil {
			return err
		}
		vals, err := parseArgs(exp.Signature(), args[2:])
		if err != nil {
			return err
		}
		results, err := exp.Call(ctx, vals...)
		if err != nil {
			return fmt.Errorf("call %s: %w", args[1], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatResults(results))
		return nil
	},
}

func init() {
	callCmd.Flags().BoolVar(&callFlags.trapImports, "trap-imports", false, "make stub imports fail when called")
	callCmd.Flags().BoolVarP(&callFlags.interactive, "interactive", "i", false, "pick exports and arguments in a TUI")
}

// session is a module instantiated against stub imports in its own store.
type session struct {
	eng   *engine.Engine
	store *store.Store
	mod   *module.Module
	inst  *linker.Instance
}

func openSession(ctx context.Context, path string, trapImports bool) (_ *session, err error) {
	s, eng, err := newStore(ctx)
	if err != nil {
		return nil, err
	}
	sess := &session{eng: eng, store: s}
	defer func() {
		if err != nil {
			sess.Close(ctx)
		}
	}()

	sess.mod, err = loadModule(ctx, eng, path)
	if err != nil {
		return nil, err
	}
	imports, err := stubImports(s, sess.mod, trapImports)
	if err != nil {
		return nil, err
	}
	sess.inst, err = linker.NewInstance(ctx, s, sess.mod, imports)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *session) Close(ctx context.Context) {
	_ = s.store.Close(ctx)
	_ = s.eng.Close(ctx)
}

// stubImports binds every function import to a dynamic function returning
// zero values. Other import kinds are left unresolved.
func stubImports(s *store.Store, mod *module.Module, trap bool) (*linker.Imports, error) {
	imports := linker.NewImports()
	for _, d := range mod.Imports() {
		if d.Kind != types.ExternFunc {
			continue
		}
		path, sig := d.Path(), d.Signature
		fn, err := function.NewDynamic(s, sig, func(_ context.Context, _ []types.Value) ([]types.Value, error) {
			if trap {
				return nil, fmt.Errorf("stub import %s called", path)
			}
			out := make([]types.Value, sig.NumResults())
			for i := range out {
				out[i] = types.Zero(sig.Result(i))
			}
			return out, nil
		})
		if err != nil {
			return nil, fmt.Errorf("stub %s: %w", path, err)
		}
		imports.Define(d.Namespace, d.Name, fn)
	}
	return imports, nil
}

func parseArgs(sig types.Signature, args []string) ([]types.Value, error) {
	if len(args) != sig.NumParams() {
		return nil, fmt.Errorf("export takes %d argument(s) %s, got %d", sig.NumParams(), sig, len(args))
	}
	vals := make([]types.Value, len(args))
	for i, a := range args {
		v, err := types.ParseValue(sig.Param(i), a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func formatResults(results []types.Value) string {
	if len(results) == 0 {
		return "()"
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}
