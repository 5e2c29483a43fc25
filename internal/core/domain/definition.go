package domain

import "strings"

// BuildDefinition is the execution-ready description of one package build.
type BuildDefinition struct {
	ID           string
	Name         string
	Version      string
	Variant      string
	Stage        string
	Sources      []SourceURL
	Checksums    []Checksum
	Dependencies []string
	Flags        BuildFlags
	Phases       []Phase
	Header       ArtifactHeader
}

// BuildFlags is the derived compiler flag set of a definition.
type BuildFlags struct {
	LTO      bool
	PGO      bool
	Level    string
	CFlags   []string
	LDFlags  []string
	Profdata string
}

// ArtifactHeader is the provenance block embedded at the top of a generated artifact.
type ArtifactHeader struct {
	// RecordHash is the digest of the canonical JSON of the source record.
	RecordHash string
	// SchemaVersion is the record schema version the artifact was generated from.
	SchemaVersion string
	// BodyDigest is the digest of the artifact content following the header.
	BodyDigest string
}

// Key returns the graph key of the definition.
func (d *BuildDefinition) Key() NodeKey {
	return NewNodeKey(d.ID, d.Variant)
}

// Env returns the compiler environment derived from the flag set.
func (f BuildFlags) Env() map[string]string {
	env := make(map[string]string, 3)
	if len(f.CFlags) > 0 {
		cflags := strings.Join(f.CFlags, " ")
		env["CFLAGS"] = cflags
		env["CXXFLAGS"] = cflags
	}
	if len(f.LDFlags) > 0 {
		env["LDFLAGS"] = strings.Join(f.LDFlags, " ")
	}
	return env
}
