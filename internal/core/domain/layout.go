package domain

import "path/filepath"

const (
	// ConfigFileName is the name of the pipeline configuration file.
	ConfigFileName = "lpkg.yaml"

	// StateDirName is the name of the internal workspace directory.
	StateDirName = ".lpkg"

	// PackagesDirName is the directory below the metadata root that holds records.
	PackagesDirName = "packages"

	// IndexFileName is the name of the flat package index.
	IndexFileName = "index.json"

	// ArtifactFileName is the file name of every generated build definition.
	ArtifactFileName = "build.hcl"

	// LockSuffix is appended to a path to form its lock file.
	LockSuffix = ".lock"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultMetadataPath returns the default root for package records and the index.
func DefaultMetadataPath() string {
	return "metadata"
}

// DefaultArtifactsPath returns the default output directory for build definitions.
func DefaultArtifactsPath() string {
	return filepath.Join("build", "definitions")
}

// DefaultCachePath returns the default path for the manifest cache.
// It joins .lpkg and cache.
func DefaultCachePath() string {
	return filepath.Join(StateDirName, "cache")
}

// DefaultStatePath returns the default path for executor resume state.
// It joins .lpkg and state.
func DefaultStatePath() string {
	return filepath.Join(StateDirName, "state")
}

// DefaultWorkPath returns the default root of per-package working directories.
func DefaultWorkPath() string {
	return filepath.Join("build", "work")
}

// DefaultLogsPath returns the default root of phase logs.
func DefaultLogsPath() string {
	return filepath.Join("build", "logs")
}

// DefaultSourcesPath returns the default download directory for source archives.
func DefaultSourcesPath() string {
	return filepath.Join("build", "sources")
}
