package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildImportCmd creates the "import" command: the other half of the
// export/import round trip named in spec.md §8. It is a CLI-only operation,
// deliberately not one of the 15 cortex_* RPC tools (§6.1 fixes that surface
// at 15): seeding or restoring a catalog is an operator action taken between
// serve sessions, not something the host assistant calls mid-conversation.
func buildImportCmd() *cobra.Command {
	var (
		projectPath string
		mode        string
	)

	cmd := &cobra.Command{
		Use:   "import <export-file>",
		Short: "Load a cortex_export JSON snapshot into an empty project catalog",
		Long: `Reads a JSON snapshot produced by "omnicortex export" (or cortex_export)
from the given file, or from stdin if the path is "-", and inserts it into
an empty project catalog.

Mode "restore" (default) preserves access_count and last_accessed exactly,
reproducing the original catalog state (the round-trip law in spec.md §8).
Mode "fresh" resets access bookkeeping, as if every memory were newly
created in this catalog.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				projectPath = wd
			}
			if mode != "restore" && mode != "fresh" {
				return fmt.Errorf("unknown import mode %q (want \"restore\" or \"fresh\")", mode)
			}
			return runImport(cmd.Context(), projectPath, args[0], mode)
		},
	}

	cmd.Flags().StringVar(&projectPath, "project", "", "Project directory to import into (default: current directory)")
	cmd.Flags().StringVar(&mode, "mode", "restore", "Import mode: restore or fresh")
	return cmd
}
