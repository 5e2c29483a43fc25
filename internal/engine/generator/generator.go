// Package generator compiles ready package records into build definition artifacts.
//
// Every artifact lives at <out>/<book>/<prefix>/<module>/build.hcl and starts with a
// provenance header carrying the source record hash, the schema version and the digest
// of the body. Emission never rewrites an unchanged artifact and refuses to replace one
// that was edited by hand unless asked to.
package generator

import (
	"bytes"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/opencontainers/go-digest"
	"github.com/pmezard/go-difflib/difflib"
	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

// Artifact is a generated build definition together with its encoded content.
type Artifact struct {
	Path       string
	Definition *domain.BuildDefinition
	Content    []byte
}

// EmitOptions controls how an artifact is written.
type EmitOptions struct {
	// DryRun computes the diff without touching the target.
	DryRun bool
	// Overwrite replaces artifacts that were modified outside the generator.
	Overwrite bool
}

// Action is what Emit did, or would do in a dry run, with an artifact.
type Action string

const (
	// ActionUnchanged means the target already has the generated content.
	ActionUnchanged Action = "unchanged"
	// ActionCreated means the target did not exist.
	ActionCreated Action = "created"
	// ActionUpdated means the target was replaced.
	ActionUpdated Action = "updated"
	// ActionConflict means the target was modified by hand and was left alone.
	ActionConflict Action = "conflict"
)

// EmitResult describes the outcome of emitting one artifact.
type EmitResult struct {
	Path   string
	Action Action
	DryRun bool
	// Diff is a unified diff from the current target to the generated content.
	Diff string
}

// Generator writes artifacts below an output directory.
type Generator struct {
	outDir string
	walker *fs.Walker
}

// New creates a Generator writing below outDir.
func New(outDir string, walker *fs.Walker) *Generator {
	return &Generator{outDir: filepath.Clean(outDir), walker: walker}
}

// Path returns the artifact path of a package id.
func (g *Generator) Path(id string) (string, error) {
	book, _, err := domain.ParseID(id)
	if err != nil {
		return "", err
	}
	module := domain.ModuleName(id)
	return filepath.Join(g.outDir, book, domain.ModulePrefix(module), module, domain.ArtifactFileName), nil
}

// Generate translates a ready record into an artifact. It fails with domain.ErrNotReady
// for records in any other state.
func (g *Generator) Generate(record *domain.PackageRecord) (*Artifact, error) {
	def, err := Translate(record)
	if err != nil {
		return nil, err
	}
	path, err := g.Path(def.ID)
	if err != nil {
		return nil, err
	}
	return &Artifact{Path: path, Definition: def, Content: Encode(def)}, nil
}

// Emit writes an artifact to its target path. Identical content is never rewritten.
// A target without a generated header, or whose body no longer matches its recorded
// digest, is only replaced with Overwrite and otherwise yields domain.ErrArtifactConflict.
func (g *Generator) Emit(artifact *Artifact, opts EmitOptions) (*EmitResult, error) {
	result := &EmitResult{Path: artifact.Path, DryRun: opts.DryRun}

	current, err := os.ReadFile(artifact.Path)
	exists := err == nil
	if err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return nil, zerr.With(errors.Join(domain.ErrArtifactWriteFailed, err), "path", artifact.Path)
	}

	if exists && bytes.Equal(current, artifact.Content) {
		result.Action = ActionUnchanged
		return result, nil
	}

	result.Diff, err = unifiedDiff(artifact.Path, current, artifact.Content)
	if err != nil {
		return nil, err
	}

	switch {
	case !exists:
		result.Action = ActionCreated
	case !opts.Overwrite && modified(current):
		result.Action = ActionConflict
		err := zerr.With(zerr.Wrap(domain.ErrArtifactConflict, "artifact was modified outside the generator"), "path", artifact.Path)
		return result, zerr.With(err, "hint", "rerun with --overwrite to replace it")
	default:
		result.Action = ActionUpdated
	}

	if opts.DryRun {
		return result, nil
	}
	if err := fs.WriteFileAtomic(artifact.Path, artifact.Content); err != nil {
		return nil, errors.Join(domain.ErrArtifactWriteFailed, err)
	}
	return result, nil
}

// modified reports whether an existing artifact lacks the generated header or has a body
// that differs from the digest recorded in its header.
func modified(content []byte) bool {
	header, body, ok := splitHeader(content)
	if !ok {
		return true
	}
	return digest.FromBytes(body).String() != header.BodyDigest
}

func unifiedDiff(path string, from, to []byte) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: "a/" + filepath.ToSlash(path),
		ToFile:   "b/" + filepath.ToSlash(path),
		Context:  3,
	})
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to compute diff"), "path", path)
	}
	return diff, nil
}

// Load decodes every artifact below the output directory, ordered by path.
func (g *Generator) Load() ([]*domain.BuildDefinition, error) {
	var paths []string
	for path := range g.walker.WalkFiles(g.outDir, nil) {
		if filepath.Base(path) == domain.ArtifactFileName {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)

	defs := make([]*domain.BuildDefinition, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path) //nolint:gosec // Path comes from walking the output directory
		if err != nil {
			return nil, zerr.With(errors.Join(domain.ErrArtifactDecodeFailed, err), "path", path)
		}
		def, err := Decode(path, content)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
