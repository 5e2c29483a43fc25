// Package manifest implements the on-disk cache of per-book canonical source lists.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.ManifestCache = (*Cache)(nil)

// Cache implements ports.ManifestCache with one JSON file per (book, release).
type Cache struct {
	root    string
	fetcher ports.Fetcher
	logger  ports.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Cache that keeps its files below <cacheDir>/manifests.
func New(cacheDir string, fetcher ports.Fetcher, logger ports.Logger) *Cache {
	return &Cache{
		root:    filepath.Join(filepath.Clean(cacheDir), "manifests"),
		fetcher: fetcher,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Path returns the cache file of the book's configured release.
func (c *Cache) Path(book domain.Book) string {
	return filepath.Join(c.root, book.Name, domain.Slugify(book.Release)+".json")
}

// Get returns the cached manifest when it is fresh, and fetches a new one otherwise.
// The refresh holds the in-process lock of the (book, release) pair and its file lock.
func (c *Cache) Get(ctx context.Context, book domain.Book, opts ports.ManifestOptions) (*domain.Manifest, error) {
	res, err := c.get(ctx, book, opts)
	return res.manifest, err
}

// lookup is a manifest together with the fetch error it fell back from, if any.
type lookup struct {
	manifest *domain.Manifest
	fallback error
}

func (c *Cache) get(ctx context.Context, book domain.Book, opts ports.ManifestOptions) (lookup, error) {
	path := c.Path(book)

	unlock, err := c.lock(path)
	if err != nil {
		return lookup{}, zerr.With(err, "book", book.Name)
	}
	defer unlock()

	var cached *domain.Manifest
	if !opts.ForceRefresh || opts.FallbackToCache {
		var readErr error
		cached, readErr = c.read(path)
		switch {
		case opts.ForceCache && !opts.ForceRefresh && readErr != nil:
			return lookup{}, zerr.With(zerr.With(readErr, "book", book.Name), "release", book.Release)
		case opts.ForceCache && !opts.ForceRefresh:
			return lookup{manifest: cached}, nil
		case errors.Is(readErr, domain.ErrManifestCacheCorrupt):
			c.logger.Warn("discarding corrupt manifest cache " + path)
		case readErr == nil && !opts.ForceRefresh && !cached.Stale(time.Now(), opts.MaxAge):
			return lookup{manifest: cached}, nil
		}
	}

	manifest, err := c.fetch(ctx, book)
	if err != nil {
		if opts.FallbackToCache && cached != nil {
			c.logger.Warn("failed to refresh " + book.Name + " " + book.Release + " manifest, using cache from " +
				cached.FetchedAt.Format(time.RFC3339))
			return lookup{manifest: cached, fallback: err}, nil
		}
		return lookup{}, zerr.With(zerr.With(err, "book", book.Name), "release", book.Release)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return lookup{}, zerr.Wrap(err, "failed to marshal manifest")
	}
	if err := fs.WriteFileAtomic(path, data); err != nil {
		return lookup{}, zerr.With(zerr.Wrap(err, "failed to write manifest cache"), "book", book.Name)
	}
	return lookup{manifest: manifest}, nil
}

// RefreshBatch refreshes every book concurrently and reports one item per book. A book
// served from its cache after a failed fetch is reported as a soft issue.
func (c *Cache) RefreshBatch(ctx context.Context, books []domain.Book, opts ports.ManifestOptions) *domain.Report {
	type result struct {
		lookup
		err error
	}
	results := make([]result, len(books))

	g, gctx := errgroup.WithContext(ctx)
	for i, book := range books {
		g.Go(func() error {
			res, err := c.get(gctx, book, opts)
			results[i] = result{lookup: res, err: err}
			// Failures stay per book so that the group never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewReport("refresh")
	for i, book := range books {
		res := results[i]
		switch {
		case res.err != nil:
			report.Failed(book.Name, res.err)
		case res.fallback != nil:
			report.SoftIssue(book.Name, "using cache from "+res.manifest.FetchedAt.Format(time.RFC3339)+
				", refresh failed: "+res.fallback.Error())
		default:
			report.Succeeded(book.Name, strconv.Itoa(len(res.manifest.Entries))+" entries, release "+res.manifest.Release)
		}
	}
	return report
}

func (c *Cache) fetch(ctx context.Context, book domain.Book) (*domain.Manifest, error) {
	list, err := c.fetcher.Fetch(ctx, book.ManifestURL())
	if err != nil {
		return nil, err
	}
	entries, err := ParseWgetList(list)
	if err != nil {
		return nil, zerr.With(err, "url", book.ManifestURL())
	}

	if sumsURL := book.ChecksumURL(); sumsURL != "" {
		data, err := c.fetcher.Fetch(ctx, sumsURL)
		if err != nil {
			return nil, err
		}
		sums, err := ParseMD5Sums(data)
		if err != nil {
			return nil, zerr.With(err, "url", sumsURL)
		}
		attachChecksums(entries, sums)
	}

	return &domain.Manifest{
		Book:      book.Name,
		Release:   book.Release,
		FetchedAt: time.Now().UTC(),
		Entries:   entries,
	}, nil
}

func (c *Cache) read(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from configuration
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, zerr.With(zerr.Wrap(domain.ErrManifestCacheMissing, "no cached manifest"), "path", path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read manifest cache"), "path", path)
	}

	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrManifestCacheCorrupt, err), "path", path)
	}
	return &m, nil
}

// lock acquires the in-process mutex of path, then its file lock.
func (c *Cache) lock(path string) (func(), error) {
	c.mu.Lock()
	mu, ok := c.locks[path]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[path] = mu
	}
	c.mu.Unlock()

	mu.Lock()
	fileLock, err := fs.Lock(path)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	return func() {
		_ = fileLock.Unlock()
		mu.Unlock()
	}, nil
}
