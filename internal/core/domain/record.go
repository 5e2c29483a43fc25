// Package domain contains the core domain models of the package build pipeline.
package domain

import (
	"slices"
	"time"
)

// SchemaVersion is the only package record schema version this build understands.
const SchemaVersion = "v0.1.0"

// PhaseKind tags a build phase.
type PhaseKind string

const (
	// PhaseSetup unpacks sources and prepares the tree.
	PhaseSetup PhaseKind = "setup"
	// PhaseConfigure runs the configure step.
	PhaseConfigure PhaseKind = "configure"
	// PhaseBuild compiles the package.
	PhaseBuild PhaseKind = "build"
	// PhaseTest runs the test suite.
	PhaseTest PhaseKind = "test"
	// PhaseInstall installs the package.
	PhaseInstall PhaseKind = "install"
)

// PhaseKinds lists the closed set of phase kinds in canonical order.
var PhaseKinds = []PhaseKind{PhaseSetup, PhaseConfigure, PhaseBuild, PhaseTest, PhaseInstall}

// Valid reports whether k belongs to the closed set of phase kinds.
func (k PhaseKind) Valid() bool {
	return slices.Contains(PhaseKinds, k)
}

// RecordState is the lifecycle state of a package record.
type RecordState string

const (
	// StateDraft is the state of freshly harvested records.
	StateDraft RecordState = "draft"
	// StateIssuesOpen marks records with unresolved issues.
	StateIssuesOpen RecordState = "issues-open"
	// StateReady marks records that are fully resolved and schema-valid.
	StateReady RecordState = "ready"
)

// Valid reports whether s is a known record state.
func (s RecordState) Valid() bool {
	switch s {
	case StateDraft, StateIssuesOpen, StateReady:
		return true
	default:
		return false
	}
}

// IssueKind classifies an unresolved-field diagnostic.
type IssueKind string

const (
	// IssueUnresolvedSource is recorded when no source could be matched.
	IssueUnresolvedSource IssueKind = "unresolved-source"
	// IssueMissingAnchor is recorded when the page section anchor was not found.
	IssueMissingAnchor IssueKind = "missing-anchor"
	// IssueMissingBuildSteps is recorded when a page has no build commands.
	IssueMissingBuildSteps IssueKind = "missing-build-steps"
	// IssueMissingField is recorded when an optional field could not be determined.
	IssueMissingField IssueKind = "missing-field"
)

// Valid reports whether k is a known issue kind.
func (k IssueKind) Valid() bool {
	switch k {
	case IssueUnresolvedSource, IssueMissingAnchor, IssueMissingBuildSteps, IssueMissingField:
		return true
	default:
		return false
	}
}

// URLKind classifies a source URL.
type URLKind string

const (
	// URLPrimary is a source archive.
	URLPrimary URLKind = "primary"
	// URLPatch is a patch applied on top of the archive.
	URLPatch URLKind = "patch"
	// URLSignature is a detached signature.
	URLSignature URLKind = "signature"
)

// PackageRecord is the canonical, persisted description of one package build.
type PackageRecord struct {
	SchemaVersion string        `json:"schema_version"`
	Package       PackageInfo   `json:"package"`
	Source        Source        `json:"source"`
	Artifacts     Artifacts     `json:"artifacts,omitzero"`
	Dependencies  Dependencies  `json:"dependencies"`
	Build         []Phase       `json:"build"`
	Optimizations Optimizations `json:"optimizations"`
	Provenance    Provenance    `json:"provenance,omitzero"`
	Status        Status        `json:"status"`
}

// PackageInfo identifies a package.
type PackageInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Variant string `json:"variant,omitempty"`
	Book    string `json:"book"`
	Chapter int    `json:"chapter,omitempty"`
	Section string `json:"section,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Anchor  string `json:"anchor,omitempty"`
}

// Source lists where a package's sources come from.
type Source struct {
	URLs      []SourceURL `json:"urls"`
	Archive   string      `json:"archive,omitempty"`
	Checksums []Checksum  `json:"checksums"`
}

// SourceURL is a single download location.
type SourceURL struct {
	URL  string  `json:"url"`
	Kind URLKind `json:"kind"`
}

// Checksum is a digest of one source file, keyed by algorithm and filename.
type Checksum struct {
	Alg   string `json:"alg"`
	File  string `json:"file"`
	Value string `json:"value"`
}

// Artifacts holds informational size and time estimates.
type Artifacts struct {
	SBU           float64 `json:"sbu,omitempty"`
	Disk          string  `json:"disk,omitempty"`
	InstallPrefix string  `json:"install_prefix,omitempty"`
}

// Dependencies lists the ids a package needs, split by when they are needed.
type Dependencies struct {
	Build   []string `json:"build"`
	Runtime []string `json:"runtime"`
}

// All returns the sorted union of build and runtime dependencies.
func (d Dependencies) All() []string {
	all := make([]string, 0, len(d.Build)+len(d.Runtime))
	all = append(all, d.Build...)
	all = append(all, d.Runtime...)
	slices.Sort(all)
	return slices.Compact(all)
}

// Phase is one step of a package build.
type Phase struct {
	Kind         PhaseKind `json:"phase"`
	Commands     []string  `json:"commands"`
	Cwd          string    `json:"cwd,omitempty"`
	RequiresRoot bool      `json:"requires_root,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

// Optimizations is the compiler flag set of a package.
type Optimizations struct {
	EnableLTO bool     `json:"enable_lto"`
	EnablePGO bool     `json:"enable_pgo"`
	Level     string   `json:"level,omitempty"`
	CFlags    []string `json:"cflags"`
	LDFlags   []string `json:"ldflags"`
	Profdata  string   `json:"profdata,omitempty"`
}

// Provenance records where and when a record was harvested.
type Provenance struct {
	BookRelease string    `json:"book_release,omitempty"`
	PageURL     string    `json:"page_url,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at,omitzero"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// Status is the lifecycle state plus open issues of a record.
type Status struct {
	State  RecordState `json:"state"`
	Issues []Issue     `json:"issues"`
}

// Issue is an unresolved-field diagnostic carried as data on the record.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// ID returns the record's package id.
func (r *PackageRecord) ID() string {
	return r.Package.ID
}

// Ready reports whether the record has been promoted.
func (r *PackageRecord) Ready() bool {
	return r.Status.State == StateReady
}

// HasIssue reports whether an issue of the given kind is open.
func (r *PackageRecord) HasIssue(kind IssueKind) bool {
	return slices.ContainsFunc(r.Status.Issues, func(i Issue) bool { return i.Kind == kind })
}

// AddIssue appends an issue to the record.
func (r *PackageRecord) AddIssue(kind IssueKind, field, message string) {
	r.Status.Issues = append(r.Status.Issues, Issue{Kind: kind, Field: field, Message: message})
}

// ClearIssues removes every issue of the given kind.
func (r *PackageRecord) ClearIssues(kind IssueKind) {
	r.Status.Issues = slices.DeleteFunc(r.Status.Issues, func(i Issue) bool { return i.Kind == kind })
}

// Promotable reports whether the record satisfies the non-structural part of the ready invariant.
func (r *PackageRecord) Promotable() bool {
	return len(r.Status.Issues) == 0 && len(r.Source.URLs) > 0
}

// Clone returns a deep copy of the record.
func (r *PackageRecord) Clone() PackageRecord {
	c := *r
	c.Source.URLs = slices.Clone(r.Source.URLs)
	c.Source.Checksums = slices.Clone(r.Source.Checksums)
	c.Dependencies.Build = slices.Clone(r.Dependencies.Build)
	c.Dependencies.Runtime = slices.Clone(r.Dependencies.Runtime)
	c.Optimizations.CFlags = slices.Clone(r.Optimizations.CFlags)
	c.Optimizations.LDFlags = slices.Clone(r.Optimizations.LDFlags)
	c.Status.Issues = slices.Clone(r.Status.Issues)
	c.Build = make([]Phase, len(r.Build))
	for i, p := range r.Build {
		p.Commands = slices.Clone(p.Commands)
		c.Build[i] = p
	}
	return c
}

// Normalize replaces nil slices with empty ones so that encoded records are stable.
func (r *PackageRecord) Normalize() {
	if r.Source.URLs == nil {
		r.Source.URLs = []SourceURL{}
	}
	if r.Source.Checksums == nil {
		r.Source.Checksums = []Checksum{}
	}
	if r.Dependencies.Build == nil {
		r.Dependencies.Build = []string{}
	}
	if r.Dependencies.Runtime == nil {
		r.Dependencies.Runtime = []string{}
	}
	if r.Build == nil {
		r.Build = []Phase{}
	}
	if r.Optimizations.CFlags == nil {
		r.Optimizations.CFlags = []string{}
	}
	if r.Optimizations.LDFlags == nil {
		r.Optimizations.LDFlags = []string{}
	}
	if r.Status.Issues == nil {
		r.Status.Issues = []Issue{}
	}
	if r.Status.State == "" {
		r.Status.State = StateDraft
	}
}
