package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/config"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/internal/storage"
)

// runExport opens projectPath's catalog read-through and writes its full
// snapshot to stdout in the requested format (spec.md §6.3).
func runExport(ctx context.Context, projectPath, format string) error {
	if format != "json" && format != "jsonl" {
		return fmt.Errorf("unknown export format %q", format)
	}

	// Dimension 0 skips the embedder-mismatch check (catalog.Options docs):
	// export is read-only and never derives a vector, so it has no opinion
	// on which Embedder the catalog was initialized with.
	cat, err := catalog.Open(ctx, catalog.Options{Path: config.ProjectCatalogPath(projectPath), Dimension: 0})
	if err != nil {
		return fmt.Errorf("open project catalog: %w", err)
	}
	defer cat.Close()

	store := storage.New(cat, embedding.NewNull(0), broadcast.New(0, nil), nil)
	snapshot, err := store.BuildExport(ctx)
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	if format == "json" {
		return enc.Encode(snapshot)
	}

	type record struct {
		Kind string `json:"kind"`
		Data any    `json:"data"`
	}
	records := []record{{Kind: "version", Data: snapshot.Version}}
	for _, m := range snapshot.Memories {
		records = append(records, record{Kind: "memory", Data: m})
	}
	for _, a := range snapshot.Activities {
		records = append(records, record{Kind: "activity", Data: a})
	}
	for _, s := range snapshot.Sessions {
		records = append(records, record{Kind: "session", Data: s})
	}
	for _, l := range snapshot.Links {
		records = append(records, record{Kind: "link", Data: l})
	}
	for _, t := range snapshot.Tags {
		records = append(records, record{Kind: "tag", Data: t})
	}
	for _, u := range snapshot.UserMessages {
		records = append(records, record{Kind: "user_message", Data: u})
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
