// Package app implements the application layer for lpkg.
package app

import (
	"context"
	"io"
	"maps"
	"os"
	"slices"

	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/adapters/manifest"
	"go.trai.ch/lpkg/internal/adapters/shell"
	"go.trai.ch/lpkg/internal/adapters/sources"
	"go.trai.ch/lpkg/internal/adapters/state"
	"go.trai.ch/lpkg/internal/adapters/store"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/lpkg/internal/engine/generator"
	"go.trai.ch/lpkg/internal/engine/harvester"
	"go.trai.ch/lpkg/internal/engine/indexer"
	"go.trai.ch/lpkg/internal/engine/resolver"
	"go.trai.ch/lpkg/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	fetcher      ports.Fetcher
	hasher       ports.Hasher
	telemetry    ports.Telemetry
	walker       *fs.Walker

	cwd        string
	configPath string
	stdout     io.Writer
	progress   io.Writer
	newStore   func(ctx context.Context, cfg *domain.Config) (ports.RecordStore, error)
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	fetcher ports.Fetcher,
	hasher ports.Hasher,
	telemetry ports.Telemetry,
	walker *fs.Walker,
) *App {
	a := &App{
		configLoader: loader,
		logger:       log,
		fetcher:      fetcher,
		hasher:       hasher,
		telemetry:    telemetry,
		walker:       walker,
		cwd:          ".",
		stdout:       os.Stdout,
		progress:     io.Discard,
	}
	a.newStore = a.openStore
	return a
}

// WithConfigPath sets the configuration file. An empty path discovers lpkg.yaml.
func (a *App) WithConfigPath(path string) *App {
	a.configPath = path
	return a
}

// WithWorkingDir sets the directory configuration discovery starts from.
func (a *App) WithWorkingDir(dir string) *App {
	a.cwd = dir
	return a
}

// WithOutput sets where diffs and other command output are written.
func (a *App) WithOutput(w io.Writer) *App {
	a.stdout = w
	return a
}

// WithProgress renders download progress bars to w.
func (a *App) WithProgress(w io.Writer) *App {
	a.progress = w
	return a
}

// WithRecordStore replaces the configured record store.
// This is primarily used for testing with a mock store.
func (a *App) WithRecordStore(s ports.RecordStore) *App {
	a.newStore = func(context.Context, *domain.Config) (ports.RecordStore, error) {
		return s, nil
	}
	return a
}

// pipeline owns the collaborators of one command, built from the loaded configuration.
type pipeline struct {
	cfg       *domain.Config
	manifests ports.ManifestCache
	store     ports.RecordStore
	resolver  *resolver.Resolver
	harvester *harvester.Harvester
	generator *generator.Generator
	indexer   *indexer.Indexer
}

func (a *App) pipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := a.configLoader.Load(a.cwd, a.configPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	records, err := a.newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		cfg:       cfg,
		manifests: manifest.New(cfg.Paths.Cache, a.fetcher, a.logger),
		store:     records,
		resolver:  resolver.New(),
		harvester: harvester.New(a.fetcher),
		generator: generator.New(cfg.Paths.Artifacts, a.walker),
		indexer:   indexer.New(records, cfg.Paths.Metadata, a.logger),
	}, nil
}

func (a *App) openStore(ctx context.Context, cfg *domain.Config) (ports.RecordStore, error) {
	if cfg.Store.Backend == domain.StoreS3 {
		return store.NewS3Store(ctx, cfg.Store)
	}
	return store.NewFileStore(cfg.Paths.Metadata, a.walker), nil
}

func (a *App) sources(cfg *domain.Config) *sources.Fetcher {
	return sources.New(cfg.Paths.Sources, cfg.Mirrors.GNU, a.logger, sources.WithProgress(a.progress))
}

func (a *App) scheduler(cfg *domain.Config) *scheduler.Scheduler {
	return scheduler.NewScheduler(
		shell.NewExecutor(a.logger, cfg.Build),
		state.NewStore(cfg.Paths.State),
		a.hasher,
		a.telemetry,
		a.logger,
		a.sources(cfg),
		scheduler.Config{
			WorkDir:    cfg.Paths.Work,
			LogsDir:    cfg.Paths.Logs,
			SourcesDir: cfg.Paths.Sources,
			Env:        cfg.Build.Env,
		},
	)
}

// books returns the configured books by name, or all of them sorted by name when names is empty.
func (p *pipeline) books(names []string) ([]domain.Book, error) {
	if len(names) == 0 {
		names = slices.Sorted(maps.Keys(p.cfg.Books))
	}
	books := make([]domain.Book, 0, len(names))
	for _, name := range names {
		book, ok := p.cfg.Books[name]
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownBook, "book is not configured"), "book", name)
		}
		books = append(books, book)
	}
	return books, nil
}

func (p *pipeline) manifestOptions() ports.ManifestOptions {
	return ports.ManifestOptions{
		MaxAge:          p.cfg.Manifests.MaxAge,
		FallbackToCache: p.cfg.Manifests.FallbackToCache,
	}
}
