package generator_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/engine/generator"
)

func readyRecord() *domain.PackageRecord {
	return &domain.PackageRecord{
		SchemaVersion: domain.SchemaVersion,
		Package: domain.PackageInfo{
			ID:      "lfs/binutils-pass-2",
			Name:    "Binutils",
			Version: "2.41",
			Variant: "pass-2",
			Book:    "lfs",
			Chapter: 6,
			Stage:   "temporary-tools",
		},
		Source: domain.Source{
			URLs: []domain.SourceURL{
				{URL: "https://sourceware.org/pub/binutils/releases/binutils-2.41.tar.xz", Kind: domain.URLPrimary},
			},
			Archive: "binutils-2.41.tar.xz",
			Checksums: []domain.Checksum{
				{Alg: "md5", File: "binutils-2.41.tar.xz", Value: "256d7e0ad998e423030c84483a7c1e30"},
			},
		},
		Dependencies: domain.Dependencies{
			Build:   []string{"lfs/gcc-pass-1", "lfs/binutils-pass-1"},
			Runtime: []string{"lfs/binutils-pass-1"},
		},
		Build: []domain.Phase{
			{Kind: domain.PhaseSetup, Commands: []string{"mkdir -v build", "cd build"}},
			{Kind: domain.PhaseConfigure, Cwd: "build", Commands: []string{"../configure --prefix=/usr --host=$LFS_TGT"}},
			{Kind: domain.PhaseBuild, Cwd: "build", Commands: []string{"make", "make DESTDIR=$LFS install"}, Notes: "slow"},
		},
		Optimizations: domain.Optimizations{EnableLTO: true, Level: "O2", LDFlags: []string{"-Wl,-O1"}},
		Status:        domain.Status{State: domain.StateReady},
	}
}

func newGenerator(t *testing.T) (*generator.Generator, string) {
	t.Helper()
	out := t.TempDir()
	return generator.New(out, fs.NewWalker()), out
}

func TestGenerate_RequiresReady(t *testing.T) {
	g, _ := newGenerator(t)

	for _, state := range []domain.RecordState{domain.StateDraft, domain.StateIssuesOpen} {
		rec := readyRecord()
		rec.Status.State = state

		artifact, err := g.Generate(rec)
		require.ErrorIs(t, err, domain.ErrNotReady, string(state))
		assert.Nil(t, artifact)
	}
}

func TestGenerate_IsDeterministic(t *testing.T) {
	g, _ := newGenerator(t)

	first, err := g.Generate(readyRecord())
	require.NoError(t, err)

	reordered := readyRecord()
	reordered.Dependencies.Build = []string{"lfs/binutils-pass-1", "lfs/gcc-pass-1"}
	second, err := g.Generate(readyRecord())
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Path, second.Path)

	third, err := g.Generate(reordered)
	require.NoError(t, err)
	assert.NotEqual(t, first.Definition.Header.RecordHash, third.Definition.Header.RecordHash)
	assert.Equal(t, first.Definition.Dependencies, third.Definition.Dependencies)
}

func TestGenerate_Layout(t *testing.T) {
	g, out := newGenerator(t)

	path, err := g.Path("lfs/binutils")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "lfs", "bi", "binutils", "build.hcl"), path)

	path, err = g.Path("blfs/7zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "blfs", "7z", "7zip", "build.hcl"), path)

	dashed, err := g.Path("lfs/xml-parser")
	require.NoError(t, err)
	dotted, err := g.Path("lfs/xml.parser")
	require.NoError(t, err)
	assert.NotEqual(t, dashed, dotted)

	_, err = g.Path("nope")
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestGenerate_Content(t *testing.T) {
	g, _ := newGenerator(t)

	artifact, err := g.Generate(readyRecord())
	require.NoError(t, err)

	content := string(artifact.Content)
	lines := strings.SplitN(content, "\n", 6)
	assert.Equal(t, "# Code generated by lpkg. DO NOT EDIT.", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "# record-hash: sha256:"))
	assert.Equal(t, "# schema-version: v0.1.0", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "# body-digest: sha256:"))
	assert.Empty(t, lines[4])

	def := artifact.Definition
	assert.Equal(t, []string{"lfs/binutils-pass-1", "lfs/gcc-pass-1"}, def.Dependencies)
	assert.Equal(t, []string{"-O2", "-flto"}, def.Flags.CFlags)
	assert.Equal(t, []string{"-Wl,-O1", "-flto"}, def.Flags.LDFlags)
	require.Len(t, def.Phases, 4)
	assert.Equal(t, []string{"make"}, def.Phases[2].Commands)
	assert.Equal(t, domain.Phase{Kind: domain.PhaseInstall, Cwd: "build", Commands: []string{"make DESTDIR=$LFS install"}}, def.Phases[3])
	assert.Contains(t, content, `phase "install" {`)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g, _ := newGenerator(t)

	artifact, err := g.Generate(readyRecord())
	require.NoError(t, err)

	decoded, err := generator.Decode(artifact.Path, artifact.Content)
	require.NoError(t, err)
	assert.Equal(t, artifact.Definition, decoded)
}

func TestDecode_RejectsForeignFiles(t *testing.T) {
	_, err := generator.Decode("build.hcl", []byte("package {\n  id = \"lfs/x\"\n}\n"))
	require.ErrorIs(t, err, domain.ErrArtifactDecodeFailed)
}

func TestEmit_CreateThenUnchanged(t *testing.T) {
	g, _ := newGenerator(t)
	artifact, err := g.Generate(readyRecord())
	require.NoError(t, err)

	res, err := g.Emit(artifact, generator.EmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, generator.ActionCreated, res.Action)
	assert.Contains(t, res.Diff, "+++ b/")

	written, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, artifact.Content, written)

	before, err := os.Stat(artifact.Path)
	require.NoError(t, err)

	res, err = g.Emit(artifact, generator.EmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, generator.ActionUnchanged, res.Action)
	assert.Empty(t, res.Diff)

	after, err := os.Stat(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "unchanged artifacts are not rewritten")

	entries, err := os.ReadDir(filepath.Dir(artifact.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging files are left behind")
}

func TestEmit_DryRunNeverWrites(t *testing.T) {
	g, _ := newGenerator(t)
	artifact, err := g.Generate(readyRecord())
	require.NoError(t, err)

	res, err := g.Emit(artifact, generator.EmitOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, generator.ActionCreated, res.Action)
	assert.True(t, res.DryRun)
	assert.NotEmpty(t, res.Diff)
	assert.NoFileExists(t, artifact.Path)
}

func TestEmit_UpdatesGeneratedContent(t *testing.T) {
	g, _ := newGenerator(t)
	old, err := g.Generate(readyRecord())
	require.NoError(t, err)
	_, err = g.Emit(old, generator.EmitOptions{})
	require.NoError(t, err)

	rec := readyRecord()
	rec.Package.Version = "2.42"
	updated, err := g.Generate(rec)
	require.NoError(t, err)

	res, err := g.Emit(updated, generator.EmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, generator.ActionUpdated, res.Action)
	assert.Contains(t, res.Diff, `-  version = "2.41"`)
	assert.Contains(t, res.Diff, `+  version = "2.42"`)

	written, err := os.ReadFile(updated.Path)
	require.NoError(t, err)
	assert.Equal(t, updated.Content, written)
}

func TestEmit_ManualEditsNeedOverwrite(t *testing.T) {
	tests := []struct {
		name string
		edit func([]byte) []byte
	}{
		{"edited body", func(b []byte) []byte { return append(b, []byte("# local tweak\n")...) }},
		{"missing header", func([]byte) []byte { return []byte("package {\n  id = \"lfs/binutils-pass-2\"\n}\n") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGenerator(t)
			artifact, err := g.Generate(readyRecord())
			require.NoError(t, err)

			edited := tt.edit(artifact.Content)
			require.NoError(t, os.MkdirAll(filepath.Dir(artifact.Path), 0o750))
			require.NoError(t, os.WriteFile(artifact.Path, edited, 0o600))

			res, err := g.Emit(artifact, generator.EmitOptions{})
			require.ErrorIs(t, err, domain.ErrArtifactConflict)
			assert.Equal(t, generator.ActionConflict, res.Action)
			assert.NotEmpty(t, res.Diff)

			onDisk, err := os.ReadFile(artifact.Path)
			require.NoError(t, err)
			assert.Equal(t, edited, onDisk, "conflicting artifacts are left alone")

			res, err = g.Emit(artifact, generator.EmitOptions{Overwrite: true, DryRun: true})
			require.NoError(t, err)
			assert.Equal(t, generator.ActionUpdated, res.Action)
			onDisk, err = os.ReadFile(artifact.Path)
			require.NoError(t, err)
			assert.Equal(t, edited, onDisk, "dry runs never touch the target")

			res, err = g.Emit(artifact, generator.EmitOptions{Overwrite: true})
			require.NoError(t, err)
			assert.Equal(t, generator.ActionUpdated, res.Action)
			onDisk, err = os.ReadFile(artifact.Path)
			require.NoError(t, err)
			assert.Equal(t, artifact.Content, onDisk)
		})
	}
}

func TestLoad(t *testing.T) {
	g, _ := newGenerator(t)

	first := readyRecord()
	second := readyRecord()
	second.Package.ID = "lfs/binutils-pass-1"
	second.Package.Variant = "pass-1"
	second.Dependencies = domain.Dependencies{}

	for _, rec := range []*domain.PackageRecord{first, second} {
		artifact, err := g.Generate(rec)
		require.NoError(t, err)
		_, err = g.Emit(artifact, generator.EmitOptions{})
		require.NoError(t, err)
	}

	defs, err := g.Load()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "lfs/binutils-pass-1", defs[0].ID)
	assert.Empty(t, defs[0].Dependencies)
	assert.Equal(t, "lfs/binutils-pass-2", defs[1].ID)
	assert.Equal(t, "pass-2", defs[1].Variant)
}

func TestLoad_EmptyOutput(t *testing.T) {
	g := generator.New(filepath.Join(t.TempDir(), "missing"), fs.NewWalker())
	defs, err := g.Load()
	require.NoError(t, err)
	assert.Empty(t, defs)
}
