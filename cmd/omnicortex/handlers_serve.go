package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/config"
	"github.com/omnicortex/omnicortex/internal/dispatch"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/internal/metrics"
	"github.com/omnicortex/omnicortex/internal/retrieval"
	"github.com/omnicortex/omnicortex/internal/rpc"
	"github.com/omnicortex/omnicortex/internal/server"
	"github.com/omnicortex/omnicortex/internal/session"
	"github.com/omnicortex/omnicortex/internal/storage"
)

// serveOptions configures one core process's serve invocation.
type serveOptions struct {
	ProjectPath string
	ConfigPath  string
	WithGlobal  bool
}

// runServe wires the catalog, embedder, broadcaster, storage and retrieval
// engines, session manager, and tool dispatcher together and serves them
// over stdin/stdout until EOF or a termination signal (spec.md §2's data
// flow diagram, realized as one process).
func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	m := metrics.New()

	logger := slog.Default().With("project", opts.ProjectPath)

	catPath := config.ProjectCatalogPath(opts.ProjectPath)
	if err := os.MkdirAll(config.ProjectStateDir(opts.ProjectPath), 0o755); err != nil {
		return fmt.Errorf("create project state dir: %w", err)
	}
	cat, err := catalog.Open(ctx, catalog.Options{Path: catPath, Dimension: emb.Dimension(), Logger: logger})
	if err != nil {
		return fmt.Errorf("open project catalog: %w", err)
	}
	defer cat.Close()
	m.ActiveCatalogs.Inc()
	defer m.ActiveCatalogs.Dec()

	bus := broadcast.New(cfg.BroadcastQueueDepth, logger)
	bus.OnDropped(m.BroadcastDropped.Inc)

	store := storage.New(cat, emb, bus, logger)
	retrieve := retrieval.New(cat, emb, logger)
	sessions := session.New(store, config.ProjectStateDir(opts.ProjectPath), opts.ProjectPath)

	if opts.WithGlobal {
		globalCat, err := catalog.Open(ctx, catalog.Options{Path: cfg.GlobalCatalogPath(), Dimension: emb.Dimension(), Logger: logger})
		if err != nil {
			return fmt.Errorf("open global catalog: %w", err)
		}
		defer globalCat.Close()
		// The global catalog is an additional independent handle the caller
		// opts into (spec.md §9's open question, resolved here): this process
		// keeps it open for the lifetime of the serve invocation so a future
		// handler extension can dual-write or query it, but the 15-tool
		// surface below dispatches only against the project catalog.
	}

	d := dispatch.New(store, retrieve, sessions, logger).WithMetrics(m)
	srv := server.New(d, logger)
	conn := rpc.NewConn(os.Stdin, os.Stdout)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, conn) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down on signal")
		return nil
	case err := <-errCh:
		return err
	}
}

func buildEmbedder(cfg config.Config) (embedding.Embedder, error) {
	switch cfg.Embedder {
	case config.EmbedderOff:
		return embedding.NewNull(embedding.DefaultDimension), nil
	case config.EmbedderOpenAI:
		emb, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: cfg.EmbedderBaseURL,
			Model:   cfg.EmbedderModel,
		})
		if err != nil {
			return nil, err
		}
		return embedding.NewCoalescing(emb), nil
	case config.EmbedderOllama:
		return embedding.NewCoalescing(embedding.NewOllama(embedding.OllamaConfig{
			BaseURL: cfg.EmbedderBaseURL,
			Model:   cfg.EmbedderModel,
		})), nil
	case config.EmbedderLocal, "":
		return embedding.NewLocal(embedding.DefaultDimension), nil
	default:
		return nil, fmt.Errorf("unknown embedder kind %q", cfg.Embedder)
	}
}
