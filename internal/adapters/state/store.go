// Package state persists the executor's per-node resume state.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	fsadapter "go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.StateStore = (*Store)(nil)

// Store implements ports.StateStore using a file-per-node strategy.
type Store struct {
	root string
}

// NewStore creates a new StateStore backed by the directory at the given path.
func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Get retrieves the resume state of a node.
func (s *Store) Get(node string) (*domain.BuildState, error) {
	filename := s.getFilename(node)
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(errors.Join(domain.ErrStateReadFailed, err), "node", node)
	}

	var state domain.BuildState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrStateReadFailed, err), "node", node)
	}

	return &state, nil
}

// Put stores the resume state of a node.
func (s *Store) Put(state domain.BuildState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "node", state.Node)
	}

	if err := fsadapter.WriteFileAtomic(s.getFilename(state.Node), data); err != nil {
		return zerr.With(errors.Join(domain.ErrStateWriteFailed, err), "node", state.Node)
	}

	return nil
}

func (s *Store) getFilename(node string) string {
	hash := sha256.Sum256([]byte(node))
	return filepath.Join(s.root, hex.EncodeToString(hash[:])+".json")
}
