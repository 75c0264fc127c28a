package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/config"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/internal/storage"
)

// runImport decodes an Export snapshot from path ("-" for stdin) and loads
// it into projectPath's catalog via storage.Engine.Import.
func runImport(ctx context.Context, projectPath, path, mode string) error {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open export file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var snapshot storage.Export
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode export snapshot: %w", err)
	}

	dimension := 0
	for _, m := range snapshot.Memories {
		if len(m.Embedding) > 0 {
			dimension = len(m.Embedding)
			break
		}
	}

	cat, err := catalog.Open(ctx, catalog.Options{Path: config.ProjectCatalogPath(projectPath), Dimension: dimension})
	if err != nil {
		return fmt.Errorf("open project catalog: %w", err)
	}
	defer cat.Close()

	store := storage.New(cat, embedding.NewNull(dimension), broadcast.New(0, nil), nil)
	n, err := store.Import(ctx, snapshot, storage.ImportMode(mode))
	if err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	fmt.Fprintf(os.Stdout, "imported %d memories into %s\n", n, projectPath)
	return nil
}
