package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so tests can exercise it without os.Exit (the
// teacher's cmd/nexus does the same split).
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "omnicortex",
		Short: "Omni-Cortex - persistent per-project knowledge store for AI coding assistants",
		Long: `Omni-Cortex ingests memories, activities, and sessions from a host AI
coding assistant and exposes a typed tool surface (cortex_remember,
cortex_recall, cortex_log_activity, ...) over a stdio-framed RPC protocol.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	root.AddCommand(
		buildServeCmd(),
		buildExportCmd(),
		buildImportCmd(),
		buildMigrateCmd(),
	)
	return root
}
