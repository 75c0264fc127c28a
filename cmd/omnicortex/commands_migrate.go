package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildMigrateCmd creates the "migrate" command: applies any pending schema
// migrations to a project's catalog and exits, without serving the RPC
// surface (spec.md §4.1's append-only migration model). Useful for scripted
// upgrades ahead of a "serve" that must not pay migration latency on its
// first request.
func buildMigrateCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to a project's catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				projectPath = wd
			}
			return runMigrate(cmd.Context(), projectPath)
		},
	}

	cmd.Flags().StringVar(&projectPath, "project", "", "Project directory whose catalog to migrate (default: current directory)")
	return cmd
}
