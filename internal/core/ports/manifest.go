package ports

import (
	"context"
	"time"

	"go.trai.ch/lpkg/internal/core/domain"
)

// ManifestOptions controls how the manifest cache treats cached entries.
type ManifestOptions struct {
	// MaxAge is the staleness window. Zero never expires.
	MaxAge time.Duration
	// ForceRefresh always fetches, ignoring the cache.
	ForceRefresh bool
	// ForceCache returns the cached manifest regardless of its age.
	ForceCache bool
	// FallbackToCache returns the last good cache when a fetch fails.
	FallbackToCache bool
}

// ManifestCache stores the canonical source lists of books per release.
//
//go:generate mockgen -source=manifest.go -destination=mocks/mock_manifest.go -package=mocks
type ManifestCache interface {
	// Get returns the manifest of the book's configured release, refreshing it when needed.
	Get(ctx context.Context, book domain.Book, opts ManifestOptions) (*domain.Manifest, error)

	// RefreshBatch refreshes several books concurrently. One book's failure never
	// aborts the others; the outcome of every book is recorded in the report.
	RefreshBatch(ctx context.Context, books []domain.Book, opts ManifestOptions) *domain.Report
}
