// Package indexer rebuilds the flat package index from the record store.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/lpkg/internal/engine/validator"
	"go.trai.ch/zerr"
)

// Options controls an index rebuild.
type Options struct {
	// Compact writes the index without indentation.
	Compact bool
}

// Indexer writes <metadata>/index.json.
type Indexer struct {
	store  ports.RecordStore
	path   string
	logger ports.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New creates an Indexer writing the index below the metadata directory.
func New(store ports.RecordStore, metadataDir string, logger ports.Logger) *Indexer {
	return &Indexer{
		store:  store,
		path:   filepath.Join(metadataDir, domain.IndexFileName),
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the location of the index file.
func (i *Indexer) Path() string {
	return i.path
}

// Rebuild validates every record and replaces the index. When any record fails
// validation nothing is written and domain.ErrIndexValidationFailed is returned.
// Rebuilds are serialised within the process and across processes.
func (i *Indexer) Rebuild(ctx context.Context, opts Options) (*domain.IndexSummary, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	lock, err := fs.Lock(i.path)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck // Best effort unlock in defer

	ids, err := i.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	now := i.now().UTC()
	index := domain.Index{
		GeneratedAt:   now,
		SchemaVersion: domain.SchemaVersion,
		Packages:      make([]domain.IndexEntry, 0, len(ids)),
	}
	summary := &domain.IndexSummary{Path: i.path, ByStatus: make(map[domain.RecordState]int)}

	var invalid []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := i.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if res := validator.Validate(record); !res.OK {
			i.logger.Error(res.Err(id))
			invalid = append(invalid, id)
			continue
		}
		index.Packages = append(index.Packages, domain.IndexEntry{
			ID:            record.Package.ID,
			Name:          record.Package.Name,
			Version:       record.Package.Version,
			Variant:       record.Package.Variant,
			Book:          record.Package.Book,
			Stage:         record.Package.Stage,
			Status:        record.Status.State,
			Path:          i.store.Location(id),
			LastValidated: now,
		})
		summary.ByStatus[record.Status.State]++
	}

	if len(invalid) > 0 {
		err := zerr.With(zerr.Wrap(domain.ErrIndexValidationFailed, "records failed validation"), "count", len(invalid))
		return nil, zerr.With(err, "ids", strings.Join(invalid, ", "))
	}

	slices.SortFunc(index.Packages, func(a, b domain.IndexEntry) int {
		return strings.Compare(a.ID, b.ID)
	})

	data, err := encode(&index, opts.Compact)
	if err != nil {
		return nil, err
	}
	if err := fs.WriteFileAtomic(i.path, data); err != nil {
		return nil, errors.Join(domain.ErrStoreWriteFailed, err)
	}

	summary.Packages = len(index.Packages)
	return summary, nil
}

func encode(index *domain.Index, compact bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(index); err != nil {
		return nil, zerr.Wrap(errors.Join(domain.ErrStoreMarshalFailed, err), "failed to encode index")
	}
	return buf.Bytes(), nil
}
