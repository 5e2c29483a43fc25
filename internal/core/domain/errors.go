package domain

import "go.trai.ch/zerr"

var (
	// ErrFetch is returned when a network or transport failure prevents retrieving a document or manifest.
	ErrFetch = zerr.New("fetch failed")

	// ErrParse is returned when an external manifest or document is malformed.
	ErrParse = zerr.New("failed to parse external data")

	// ErrSchemaViolation is returned when a package record has a structural defect.
	ErrSchemaViolation = zerr.New("schema violation")

	// ErrUnresolvedSource marks a record whose sources could not be matched against a manifest.
	// It is recorded as an issue on the record and never aborts an operation.
	ErrUnresolvedSource = zerr.New("unresolved source")

	// ErrCycleDetected is returned when a cycle is detected in the package dependency graph.
	ErrCycleDetected = zerr.New("dependency cycle detected")

	// ErrMissingDependency is returned when a definition references a dependency that is not in the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrDuplicateNode is returned when two definitions share the same id and variant.
	ErrDuplicateNode = zerr.New("duplicate build node")

	// ErrNodeNotFound is returned when a selected package is not part of the graph.
	ErrNodeNotFound = zerr.New("package not found in build graph")

	// ErrNotReady is returned when generation is attempted on a record that is not ready.
	ErrNotReady = zerr.New("record is not ready")

	// ErrPhaseExecution is returned when a build phase exits non-zero or times out.
	ErrPhaseExecution = zerr.New("phase execution failed")

	// ErrBuildExecutionFailed is returned when at least one node of a build failed.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrBatchFailed is returned when at least one item of a batch command failed.
	ErrBatchFailed = zerr.New("batch completed with failures")

	// ErrInvalidID is returned when a package id is not of the form book/slug.
	ErrInvalidID = zerr.New("invalid package id")

	// ErrUnknownBook is returned when a book has no configuration.
	ErrUnknownBook = zerr.New("unknown book")

	// ErrRecordNotFound is returned by a record store when no record exists for an id.
	ErrRecordNotFound = zerr.New("record not found")

	// ErrStoreReadFailed is returned when a record cannot be read from the store.
	ErrStoreReadFailed = zerr.New("failed to read record")

	// ErrStoreWriteFailed is returned when a record cannot be written to the store.
	ErrStoreWriteFailed = zerr.New("failed to write record")

	// ErrStoreUnmarshalFailed is returned when a stored record cannot be decoded.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal record")

	// ErrStoreMarshalFailed is returned when a record cannot be encoded.
	ErrStoreMarshalFailed = zerr.New("failed to marshal record")

	// ErrManifestCacheMissing is returned when the cache is forced but holds no manifest.
	ErrManifestCacheMissing = zerr.New("manifest cache is empty")

	// ErrManifestCacheCorrupt is returned when a cached manifest cannot be decoded.
	ErrManifestCacheCorrupt = zerr.New("manifest cache is corrupt")

	// ErrLockFailed is returned when an exclusive lock cannot be acquired.
	ErrLockFailed = zerr.New("failed to acquire lock")

	// ErrArtifactConflict is returned when an existing artifact differs in a way that is not provably safe to replace.
	ErrArtifactConflict = zerr.New("artifact has manual changes, use overwrite to replace it")

	// ErrArtifactWriteFailed is returned when an artifact cannot be written.
	ErrArtifactWriteFailed = zerr.New("failed to write artifact")

	// ErrArtifactDecodeFailed is returned when a build definition artifact cannot be decoded.
	ErrArtifactDecodeFailed = zerr.New("failed to decode build definition")

	// ErrIndexValidationFailed is returned when the index is not rebuilt because records failed validation.
	ErrIndexValidationFailed = zerr.New("index not written, records failed validation")

	// ErrChecksumMismatch is returned when a downloaded source does not match its checksum.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidConfig is returned when the configuration contains invalid values.
	ErrInvalidConfig = zerr.New("invalid configuration")

	// ErrStateReadFailed is returned when executor resume state cannot be read.
	ErrStateReadFailed = zerr.New("failed to read build state")

	// ErrStateWriteFailed is returned when executor resume state cannot be written.
	ErrStateWriteFailed = zerr.New("failed to write build state")
)
