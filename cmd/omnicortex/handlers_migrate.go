package main

import (
	"context"
	"fmt"

	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/config"
)

// runMigrate opens projectPath's catalog, which applies every pending
// migration as a side effect of catalog.Open, then closes it. Dimension 0
// skips the embedder-mismatch check: migrate never reads or writes vectors.
func runMigrate(ctx context.Context, projectPath string) error {
	cat, err := catalog.Open(ctx, catalog.Options{Path: config.ProjectCatalogPath(projectPath), Dimension: 0})
	if err != nil {
		return fmt.Errorf("migrate project catalog: %w", err)
	}
	return cat.Close()
}
