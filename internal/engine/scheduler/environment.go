package scheduler

import (
	"errors"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

// Environment variables exported to every phase in addition to the configured build environment.
const (
	EnvSources = "LPKG_SOURCES"
	EnvWorkDir = "LPKG_WORKDIR"
	EnvPackage = "LPKG_PACKAGE"
	EnvVersion = "LPKG_VERSION"
	EnvVariant = "LPKG_VARIANT"
)

// nodeDir returns the per-node directory below root. Passes of one package get distinct directories.
func nodeDir(root string, key domain.NodeKey) string {
	dir := filepath.Join(root, filepath.FromSlash(key.ID.String()))
	if !key.Variant.IsZero() {
		dir += "@" + key.Variant.String()
	}
	return dir
}

// nodeEnvironment merges the configured environment, the derived compiler flags and the
// package variables. Later sources win.
func (s *Scheduler) nodeEnvironment(def *domain.BuildDefinition, workDir string) map[string]string {
	env := make(map[string]string, len(s.config.Env)+8)
	maps.Copy(env, s.config.Env)
	maps.Copy(env, def.Flags.Env())

	env[EnvPackage] = def.Name
	env[EnvVersion] = def.Version
	if def.Variant != "" {
		env[EnvVariant] = def.Variant
	}
	if s.config.SourcesDir != "" {
		env[EnvSources] = s.config.SourcesDir
	}
	env[EnvWorkDir] = workDir
	return env
}

// stageSources links the downloaded source files of a definition into its work directory.
// Phases unpack archives and apply patches by bare or "../" relative names, as they would
// inside a shared sources directory. Files that were never downloaded are left out.
func (s *Scheduler) stageSources(def *domain.BuildDefinition, workDir string) error {
	if s.config.SourcesDir == "" {
		return nil
	}
	for _, src := range def.Sources {
		name := sourceFileName(src.URL)
		if name == "" {
			continue
		}
		target := filepath.Join(s.config.SourcesDir, name)
		if _, err := os.Stat(target); err != nil {
			continue
		}
		link := filepath.Join(workDir, name)
		if _, err := os.Lstat(link); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, "failed to stage source"), "path", link)
		}
		if err := os.Symlink(target, link); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to stage source"), "path", link)
		}
	}
	return nil
}

func sourceFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// environList renders env as sorted KEY=VALUE pairs.
func environList(env map[string]string) []string {
	keys := slices.Sorted(maps.Keys(env))
	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}
