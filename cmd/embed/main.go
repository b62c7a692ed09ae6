package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-embed/engine"
	"github.com/wippyai/wasm-embed/linker"
	"github.com/wippyai/wasm-embed/store"
)

type globalFlags struct {
	config  string
	verbose bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "embed",
	Short: "Inspect and call core WebAssembly modules",
	Long: `embed loads core WebAssembly modules, links their imports against host
bindings and calls their exports.

  embed inspect module.wasm
  embed call module.wasm add 1 2
  embed call -i module.wasm
  embed demo`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !flags.verbose {
			return nil
		}
		log, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		engine.SetLogger(log)
		linker.SetLogger(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "engine config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log linking and engine events")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(demoCmd)
}

// newStore creates a store on an engine built from --config.
func newStore(ctx context.Context) (*store.Store, *engine.Engine, error) {
	cfg, err := engine.LoadConfig(flags.config)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewWithEngine(ctx, eng)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, nil, err
	}
	return s, eng, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
