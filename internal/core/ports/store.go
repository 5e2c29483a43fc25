package ports

import (
	"context"

	"go.trai.ch/lpkg/internal/core/domain"
)

// RecordStore is the key-addressed persistent store of package records.
// Writes are last-writer-wins per id.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type RecordStore interface {
	// Get returns the record stored under id, or domain.ErrRecordNotFound.
	Get(ctx context.Context, id string) (*domain.PackageRecord, error)

	// Put stores the record under id, replacing any previous record.
	Put(ctx context.Context, id string, record *domain.PackageRecord) error

	// List returns the sorted ids of the records of a book. An empty book lists every record.
	List(ctx context.Context, book string) ([]string, error)

	// Location returns a human-readable location of the record stored under id.
	Location(id string) string
}

// StateStore persists executor resume state per build node.
type StateStore interface {
	// Get retrieves the state of a node.
	// Returns nil, nil if not found.
	Get(node string) (*domain.BuildState, error)

	// Put stores the state of a node.
	Put(state domain.BuildState) error
}
