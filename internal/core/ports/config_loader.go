package ports

import "go.trai.ch/lpkg/internal/core/domain"

// ConfigLoader defines the interface for loading the pipeline configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration. An empty path discovers lpkg.yaml by walking up from cwd.
	// When no file is found the built-in defaults rooted at cwd are returned.
	Load(cwd, path string) (*domain.Config, error)
}
