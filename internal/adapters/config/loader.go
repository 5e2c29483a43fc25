// Package config provides the configuration loader for lpkg.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the configuration. An empty path discovers lpkg.yaml by walking up from cwd.
func (l *Loader) Load(cwd, path string) (*domain.Config, error) {
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve working directory")
	}

	if path == "" {
		path = findConfiguration(absCwd)
		if path == "" {
			l.Logger.Info("no " + domain.ConfigFileName + " found, using defaults")
			return resolve(absCwd, &Lpkgfile{})
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(absCwd, path)
	}

	var file Lpkgfile
	if err := readAndUnmarshalYAML(path, &file); err != nil {
		return nil, err
	}
	return resolve(filepath.Dir(path), &file)
}

func findConfiguration(cwd string) string {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

func readAndUnmarshalYAML(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return zerr.With(errors.Join(domain.ErrConfigReadFailed, err), "path", path)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return zerr.With(errors.Join(domain.ErrConfigParseFailed, err), "path", path)
	}
	return nil
}

func resolve(root string, file *Lpkgfile) (*domain.Config, error) {
	cfg := &domain.Config{
		Root: root,
		Paths: domain.Paths{
			Metadata:  resolvePath(root, file.Paths.Metadata, domain.DefaultMetadataPath()),
			Artifacts: resolvePath(root, file.Paths.Artifacts, domain.DefaultArtifactsPath()),
			Cache:     resolvePath(root, file.Paths.Cache, domain.DefaultCachePath()),
			State:     resolvePath(root, file.Paths.State, domain.DefaultStatePath()),
			Work:      resolvePath(root, file.Paths.Work, domain.DefaultWorkPath()),
			Logs:      resolvePath(root, file.Paths.Logs, domain.DefaultLogsPath()),
			Sources:   resolvePath(root, file.Paths.Sources, domain.DefaultSourcesPath()),
		},
		Manifests: domain.ManifestSettings{
			MaxAge:          defaultMaxAge,
			FallbackToCache: true,
		},
		Books: DefaultBooks(),
		Build: domain.BuildSettings{
			Workers:   file.Build.Workers,
			Shell:     file.Build.Shell,
			KillGrace: defaultKillGrace,
			Env:       file.Build.Env,
		},
		Mirrors: domain.Mirrors{GNU: file.Mirrors.GNU},
		Store: domain.StoreSettings{
			Backend:  domain.StoreBackend(file.Store.Backend),
			Bucket:   file.Store.Bucket,
			Prefix:   file.Store.Prefix,
			Region:   file.Store.Region,
			Endpoint: file.Store.Endpoint,
		},
	}

	var err error
	if cfg.Manifests.MaxAge, err = parseDuration("manifests.max_age", file.Manifests.MaxAge, defaultMaxAge); err != nil {
		return nil, err
	}
	if file.Manifests.FallbackToCache != nil {
		cfg.Manifests.FallbackToCache = *file.Manifests.FallbackToCache
	}
	if cfg.Build.PhaseTimeout, err = parseDuration("build.phase_timeout", file.Build.PhaseTimeout, 0); err != nil {
		return nil, err
	}
	if cfg.Build.KillGrace, err = parseDuration("build.kill_grace", file.Build.KillGrace, defaultKillGrace); err != nil {
		return nil, err
	}

	if cfg.Build.Workers < 0 {
		return nil, invalid("build.workers", "must not be negative")
	}
	if cfg.Build.Workers == 0 {
		cfg.Build.Workers = runtime.NumCPU()
	}
	if cfg.Build.Shell == "" {
		cfg.Build.Shell = defaultShell
	}

	if err := mergeBooks(cfg.Books, file.Books); err != nil {
		return nil, err
	}
	if err := validateStore(&cfg.Store); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(root, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, invalid(field, "must be a non-negative duration such as 90s or 24h")
	}
	return d, nil
}

func mergeBooks(books map[string]domain.Book, overrides map[string]BookDTO) error {
	for name, dto := range overrides {
		if !domain.ValidBook(name) {
			return invalid("books."+name, "book names must be lower-case alphanumeric")
		}
		book := books[name]
		book.Name = name
		book.Release = pick(dto.Release, book.Release)
		book.BaseURL = pick(dto.BaseURL, book.BaseURL)
		book.PageBase = pick(dto.PageBase, book.PageBase)
		book.WgetList = pick(dto.WgetList, book.WgetList)
		book.MD5Sums = pick(dto.MD5Sums, book.MD5Sums)

		switch {
		case book.Release == "":
			return invalid("books."+name+".release", "is required")
		case book.BaseURL == "":
			return invalid("books."+name+".base_url", "is required")
		case book.WgetList == "":
			return invalid("books."+name+".wget_list", "is required")
		}
		books[name] = book
	}
	return nil
}

func validateStore(store *domain.StoreSettings) error {
	switch store.Backend {
	case "":
		store.Backend = domain.StoreFS
	case domain.StoreFS:
	case domain.StoreS3:
		if store.Bucket == "" {
			return invalid("store.bucket", "is required for the s3 backend")
		}
	default:
		return invalid("store.backend", "must be fs or s3")
	}
	return nil
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func invalid(field, reason string) error {
	return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, field+" "+reason), "field", field)
}
