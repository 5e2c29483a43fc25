package ports

import "go.trai.ch/lpkg/internal/core/domain"

// Hasher fingerprints build definitions for resume decisions.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// DefinitionHash returns a stable fingerprint of a definition and the environment it runs with.
	DefinitionHash(def *domain.BuildDefinition, env map[string]string) string
}
