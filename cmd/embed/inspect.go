package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-embed/engine"
	"github.com/wippyai/wasm-embed/module"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wasm>",
	Short: "Print a module's imports and exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := engine.LoadConfig(flags.config)
		if err != nil {
			return err
		}
		eng, err := engine.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		mod, err := loadModule(ctx, eng, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		name := mod.Name()
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(out, "Module: %s %s\n", args[0], name)
		fmt.Fprintf(out, "Key: %s\n", mod.Key())

		fmt.Fprintf(out, "\nImports (%d):\n", len(mod.Imports()))
		for _, d := range mod.Imports() {
			fmt.Fprintf(out, "  %-6s %s %s\n", d.Kind, d.Path(), d.Type)
		}
		fmt.Fprintf(out, "\nExports (%d):\n", len(mod.Exports()))
		for _, d := range mod.Exports() {
			fmt.Fprintf(out, "  %-6s %s %s\n", d.Kind, d.Name, d.Type)
		}
		return nil
	},
}

func loadModule(ctx context.Context, eng *engine.Engine, path string) (*module.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	mod, err := module.Compile(ctx, eng, data)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return mod, nil
}
