package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command: the primary long-running mode
// that speaks the 15-tool stdio RPC surface against one project's catalog
// (spec.md §6.1). Grounded on the teacher's cmd/nexus buildServeCmd.
func buildServeCmd() *cobra.Command {
	var (
		projectPath string
		configPath  string
		withGlobal  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Speak the cortex_* tool surface over stdio for one project",
		Long: `Start the Omni-Cortex core, opening (creating if necessary) the project's
catalog at <project>/.omni-cortex/cortex.db, and serve the 15 cortex_* tools
framed as newline-delimited JSON over stdin/stdout.

Graceful shutdown on SIGINT/SIGTERM: in-flight writes finish, then the
process exits 0.`,
		Example: `  # Serve the current directory's project catalog
  omnicortex serve

  # Serve a specific project, also opening the global aggregate catalog
  omnicortex serve --project /path/to/repo --with-global`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				projectPath = wd
			}
			return runServe(cmd.Context(), serveOptions{
				ProjectPath: projectPath,
				ConfigPath:  configPath,
				WithGlobal:  withGlobal,
			})
		},
	}

	cmd.Flags().StringVar(&projectPath, "project", "", "Project directory to serve (default: current directory)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&withGlobal, "with-global", false, "Also open the global aggregate catalog (spec.md §9)")

	return cmd
}
