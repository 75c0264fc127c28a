package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildExportCmd creates the "export" command: a one-shot dump of a
// project's catalog to stdout (spec.md §6.1 cortex_export, §6.3), useful
// for scripting outside the stdio RPC surface.
func buildExportCmd() *cobra.Command {
	var (
		projectPath string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump a project's catalog to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				projectPath = wd
			}
			return runExport(cmd.Context(), projectPath, format)
		},
	}

	cmd.Flags().StringVar(&projectPath, "project", "", "Project directory to export (default: current directory)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or jsonl")
	return cmd
}
