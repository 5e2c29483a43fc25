package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.trai.ch/lpkg/internal/adapters/store"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/lpkg/internal/engine/indexer"
	"go.trai.ch/lpkg/internal/engine/validator"
	"golang.org/x/sync/errgroup"
)

// harvestWorkers bounds the number of pages fetched at once.
const harvestWorkers = 4

// RefreshOptions configuration for the Refresh method.
type RefreshOptions struct {
	// Force fetches the manifests even when the cache is fresh.
	Force bool
}

// Refresh updates the manifest cache of the named books, or of every configured book, and
// re-resolves the stored records of each refreshed book. A failing book never stops the others.
// Ready records are left untouched.
func (a *App) Refresh(ctx context.Context, bookNames []string, opts RefreshOptions) (*domain.Report, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	books, err := p.books(bookNames)
	if err != nil {
		return nil, err
	}

	mopts := p.manifestOptions()
	mopts.ForceRefresh = opts.Force
	report := p.manifests.RefreshBatch(ctx, books, mopts)

	for _, book := range books {
		if item, ok := report.Item(book.Name); !ok || item.Outcome == domain.OutcomeFailed {
			continue
		}
		m, err := p.manifests.Get(ctx, book, ports.ManifestOptions{ForceCache: true})
		if err != nil {
			report.Failed(book.Name+" records", err)
			continue
		}
		a.reresolve(ctx, p, book, m.Entries, report)
	}

	return report, report.Err()
}

func (a *App) reresolve(
	ctx context.Context,
	p *pipeline,
	book domain.Book,
	entries []domain.ManifestEntry,
	report *domain.Report,
) {
	ids, err := p.store.List(ctx, book.Name)
	if err != nil {
		report.Failed(book.Name+" records", err)
		return
	}

	for _, id := range ids {
		record, err := p.store.Get(ctx, id)
		if err != nil {
			report.Failed(id, err)
			continue
		}
		if record.Ready() {
			continue
		}

		updated, issues := p.resolver.Resolve(record, entries)
		if err := putIfChanged(ctx, p.store, record, updated); err != nil {
			report.Failed(id, err)
			continue
		}
		if len(issues) > 0 {
			report.SoftIssue(id, issues[0].Message)
			continue
		}
		report.Succeeded(id, "resolved")
	}
}

func putIfChanged(ctx context.Context, s ports.RecordStore, before, after *domain.PackageRecord) error {
	if sameSources(before, after) && slices.Equal(before.Status.Issues, after.Status.Issues) &&
		before.Package.Version == after.Package.Version && before.Source.Archive == after.Source.Archive {
		return nil
	}
	return s.Put(ctx, after.ID(), after)
}

func sameSources(a, b *domain.PackageRecord) bool {
	return slices.Equal(a.Source.URLs, b.Source.URLs) && slices.Equal(a.Source.Checksums, b.Source.Checksums)
}

// HarvestOptions configuration for the Harvest method.
type HarvestOptions struct {
	// DryRun prints the draft records as JSON instead of storing them.
	DryRun bool
}

// Harvest parses the given pages of a book into records, resolves them against the book's
// manifest and stores them. Each page is isolated from the failures of the others.
func (a *App) Harvest(ctx context.Context, bookName string, pages []string, opts HarvestOptions) (*domain.Report, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	books, err := p.books([]string{bookName})
	if err != nil {
		return nil, err
	}
	book := books[0]

	var entries []domain.ManifestEntry
	if m, err := p.manifests.Get(ctx, book, p.manifestOptions()); err != nil {
		a.logger.Warn("manifest for " + book.Name + " unavailable, sources are taken from the pages only")
		a.logger.Error(err)
	} else {
		entries = m.Entries
	}

	type result struct {
		record *domain.PackageRecord
		note   string
		err    error
	}
	results := make([]result, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(harvestWorkers)
	for i, page := range pages {
		g.Go(func() error {
			record, note, err := a.harvestPage(gctx, p, book, page, entries, opts.DryRun)
			results[i] = result{record: record, note: note, err: err}
			// Failures stay per page so that the group never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewReport("harvest")
	for i, page := range pages {
		res := results[i]
		switch {
		case res.err != nil:
			report.Failed(page, res.err)
		case len(res.record.Status.Issues) > 0:
			report.SoftIssue(res.record.ID(), issueSummary(res.record.Status.Issues))
		default:
			report.Succeeded(res.record.ID(), res.note)
		}
		if opts.DryRun && res.err == nil {
			data, err := store.Marshal(res.record)
			if err != nil {
				return nil, err
			}
			_, _ = a.stdout.Write(data)
		}
	}
	return report, report.Err()
}

func (a *App) harvestPage(
	ctx context.Context,
	p *pipeline,
	book domain.Book,
	page string,
	entries []domain.ManifestEntry,
	dryRun bool,
) (*domain.PackageRecord, string, error) {
	harvested, err := p.harvester.Harvest(ctx, book, page)
	if err != nil {
		return nil, "", err
	}
	record, _ := p.resolver.Resolve(harvested, entries)

	existing, err := p.store.Get(ctx, record.ID())
	switch {
	case err == nil && existing.Ready():
		return existing, "ready record kept", nil
	case err == nil:
		if len(record.Dependencies.All()) == 0 {
			record.Dependencies = existing.Dependencies
		}
	case !errors.Is(err, domain.ErrRecordNotFound):
		return nil, "", err
	}

	note := "harvested " + record.Package.Name + " " + record.Package.Version
	if dryRun {
		return record, note + " (dry run)", nil
	}
	if err := p.store.Put(ctx, record.ID(), record); err != nil {
		return nil, "", err
	}
	return record, note, nil
}

func issueSummary(issues []domain.Issue) string {
	kinds := make([]string, 0, len(issues))
	for _, issue := range issues {
		kinds = append(kinds, string(issue.Kind))
	}
	return fmt.Sprintf("%d open issues: %s", len(issues), strings.Join(kinds, ", "))
}

// ValidateOptions configuration for the Validate method.
type ValidateOptions struct {
	// Promote moves eligible records to ready and records with issues to issues-open.
	Promote bool
}

// Validate checks every stored record of a book, or of all books when bookName is empty.
// Ready records whose sources no longer match the cached manifest are reported as warnings.
func (a *App) Validate(ctx context.Context, bookName string, opts ValidateOptions) (*domain.Report, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	if bookName != "" {
		if _, err := p.books([]string{bookName}); err != nil {
			return nil, err
		}
	}

	ids, err := p.store.List(ctx, bookName)
	if err != nil {
		return nil, err
	}

	entries := make(map[string][]domain.ManifestEntry)
	report := domain.NewReport("validate")
	for _, id := range ids {
		record, err := p.store.Get(ctx, id)
		if err != nil {
			report.Failed(id, err)
			continue
		}
		if res := validator.Validate(record); !res.OK {
			report.Failed(id, res.Err(id))
			continue
		}

		if opts.Promote {
			if next, changed := validator.Promote(record); changed {
				record.Status.State = next
				if err := p.store.Put(ctx, id, record); err != nil {
					report.Failed(id, err)
					continue
				}
				a.logger.Info(id + " is now " + string(next))
			}
		}

		if record.Ready() {
			a.checkDrift(ctx, p, record, entries)
		}

		if len(record.Status.Issues) > 0 {
			report.SoftIssue(id, string(record.Status.State)+", "+issueSummary(record.Status.Issues))
			continue
		}
		report.Succeeded(id, string(record.Status.State))
	}
	return report, report.Err()
}

// checkDrift warns when resolving a ready record against the cached manifest of its book
// would change its sources. Books without a cached manifest are not checked.
func (a *App) checkDrift(ctx context.Context, p *pipeline, record *domain.PackageRecord, cache map[string][]domain.ManifestEntry) {
	bookName := record.Package.Book
	entries, ok := cache[bookName]
	if !ok {
		if book, known := p.cfg.Books[bookName]; known {
			if m, err := p.manifests.Get(ctx, book, ports.ManifestOptions{ForceCache: true}); err == nil {
				entries = m.Entries
			}
		}
		cache[bookName] = entries
	}
	if len(entries) == 0 {
		return
	}

	resolved, _ := p.resolver.Resolve(record, entries)
	if !sameSources(record, resolved) {
		a.logger.Warn(record.ID() + " is ready but its sources differ from the " + bookName + " manifest")
	}
}

// IndexOptions configuration for the Index method.
type IndexOptions struct {
	Compact bool
}

// Index rebuilds the package index from the record store.
func (a *App) Index(ctx context.Context, opts IndexOptions) (*domain.IndexSummary, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	return p.indexer.Rebuild(ctx, indexer.Options{Compact: opts.Compact})
}
