// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/lpkg/internal/core/domain"
)

// Executor defines the interface for executing build phases.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the commands of a phase in dir with the given environment.
	//
	// The env parameter contains environment variables in "KEY=VALUE" format.
	// Output is streamed to stdout and stderr as it is produced.
	//
	// It returns domain.ErrPhaseExecution if a command exits non-zero or times out.
	Execute(ctx context.Context, phase *domain.Phase, dir string, env []string, stdout, stderr io.Writer) error
}

// SourceFetcher downloads and verifies the sources of a build definition.
type SourceFetcher interface {
	// Fetch downloads every source of def that is not present yet and returns the local paths.
	Fetch(ctx context.Context, def *domain.BuildDefinition) ([]string, error)
}
