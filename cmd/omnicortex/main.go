// Command omnicortex runs the Omni-Cortex core: the per-project knowledge
// catalog plus the 15-tool stdio RPC surface an AI coding assistant speaks
// to it over (spec.md §6.1). Grounded on the teacher's cmd/nexus entry
// point (slog JSON logging to stderr, a cobra root command with a "serve"
// subcommand as the primary long-running mode).
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/omnicortex/omnicortex/internal/observability"
)

// Build information, populated by ldflags during release builds the way
// the teacher's cmd/nexus does.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logLevel := os.Getenv("OMNI_CORTEX_LOG_LEVEL")
	logger := observability.NewLogger(observability.LogConfig{Level: logLevel})
	slog.SetDefault(logger.Slog())

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		logger.Error(context.Background(), "command execution failed", "error", err)
		os.Exit(1)
	}
}
