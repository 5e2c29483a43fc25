package store

import (
	"context"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.RecordStore = (*FileStore)(nil)

// FileStore implements ports.RecordStore with one JSON file per record below
// <root>/packages/<book>/<slug>.json.
type FileStore struct {
	root   string
	walker *fs.Walker
}

// NewFileStore creates a FileStore rooted at the metadata directory.
func NewFileStore(root string, walker *fs.Walker) *FileStore {
	return &FileStore{root: filepath.Clean(root), walker: walker}
}

// Location returns the file path of the record stored under id.
func (s *FileStore) Location(id string) string {
	key, err := recordKey(id)
	if err != nil {
		return ""
	}
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Get reads the record stored under id.
func (s *FileStore) Get(_ context.Context, id string) (*domain.PackageRecord, error) {
	if _, _, err := domain.ParseID(id); err != nil {
		return nil, err
	}
	path := s.Location(id)

	data, err := os.ReadFile(path) //nolint:gosec // Path is built from a validated id
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, zerr.With(zerr.Wrap(domain.ErrRecordNotFound, "failed to get record"), "id", id)
		}
		return nil, zerr.With(errors.Join(domain.ErrStoreReadFailed, err), "path", path)
	}
	return decode(id, data)
}

// Put atomically replaces the record stored under id.
func (s *FileStore) Put(_ context.Context, id string, record *domain.PackageRecord) error {
	if _, _, err := domain.ParseID(id); err != nil {
		return err
	}
	data, err := encode(id, record)
	if err != nil {
		return err
	}

	path := s.Location(id)
	if err := fs.WriteFileAtomic(path, data); err != nil {
		return zerr.With(errors.Join(domain.ErrStoreWriteFailed, err), "path", path)
	}
	return nil
}

// List returns the sorted ids of the records of book, or of every book when book is empty.
func (s *FileStore) List(_ context.Context, book string) ([]string, error) {
	root := filepath.Join(s.root, domain.PackagesDirName)
	if book != "" {
		if !domain.ValidBook(book) {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownBook, "failed to list records"), "book", book)
		}
		root = filepath.Join(root, book)
	}

	var ids []string
	for path := range s.walker.WalkFiles(root, []string{"*" + domain.LockSuffix}) {
		rel, err := filepath.Rel(filepath.Join(s.root, domain.PackagesDirName), path)
		if err != nil {
			continue
		}
		if id, ok := idFromKey(filepath.ToSlash(rel)); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
