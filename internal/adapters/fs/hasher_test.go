package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/core/domain"
)

func definition() *domain.BuildDefinition {
	return &domain.BuildDefinition{
		ID:           "lfs/binutils-pass-1",
		Name:         "binutils",
		Version:      "2.45",
		Variant:      "pass-1",
		Stage:        "cross-toolchain",
		Sources:      []domain.SourceURL{{URL: "https://example.org/binutils-2.45.tar.xz", Kind: domain.URLPrimary}},
		Checksums:    []domain.Checksum{{Alg: "md5", File: "binutils-2.45.tar.xz", Value: "0123456789abcdef0123456789abcdef"}},
		Dependencies: []string{"lfs/gcc"},
		Flags:        domain.BuildFlags{LTO: true, Level: "O3", CFlags: []string{"-O3", "-flto"}},
		Phases: []domain.Phase{
			{Kind: domain.PhaseConfigure, Commands: []string{"../configure --prefix=$LFS/tools"}},
			{Kind: domain.PhaseBuild, Commands: []string{"make"}},
		},
		Header: domain.ArtifactHeader{RecordHash: "sha256:aaa"},
	}
}

func TestHasher_DefinitionHash(t *testing.T) {
	h := fs.NewHasher()
	env := map[string]string{"MAKEFLAGS": "-j4"}

	base := h.DefinitionHash(definition(), env)
	assert.Len(t, base, 16)
	assert.Equal(t, base, h.DefinitionHash(definition(), env), "hash must be stable")

	headerOnly := definition()
	headerOnly.Header = domain.ArtifactHeader{RecordHash: "sha256:bbb", BodyDigest: "sha256:ccc"}
	assert.Equal(t, base, h.DefinitionHash(headerOnly, env), "provenance must not influence the hash")

	tests := []struct {
		name   string
		mutate func(d *domain.BuildDefinition, env map[string]string)
	}{
		{"command", func(d *domain.BuildDefinition, _ map[string]string) { d.Phases[1].Commands[0] = "make -j1" }},
		{"phase kind", func(d *domain.BuildDefinition, _ map[string]string) { d.Phases[1].Kind = domain.PhaseInstall }},
		{"variant", func(d *domain.BuildDefinition, _ map[string]string) { d.Variant = "pass-2" }},
		{"source", func(d *domain.BuildDefinition, _ map[string]string) { d.Sources[0].URL += ".sig" }},
		{"checksum", func(d *domain.BuildDefinition, _ map[string]string) { d.Checksums[0].Value = "ff" }},
		{"flags", func(d *domain.BuildDefinition, _ map[string]string) { d.Flags.PGO = true }},
		{"dependency", func(d *domain.BuildDefinition, _ map[string]string) { d.Dependencies = nil }},
		{"env", func(_ *domain.BuildDefinition, env map[string]string) { env["MAKEFLAGS"] = "-j8" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := definition()
			e := map[string]string{"MAKEFLAGS": "-j4"}
			tt.mutate(d, e)
			assert.NotEqual(t, base, h.DefinitionHash(d, e))
		})
	}
}

func TestHasher_FieldBoundaries(t *testing.T) {
	h := fs.NewHasher()
	a := &domain.BuildDefinition{Phases: []domain.Phase{{Kind: domain.PhaseBuild, Commands: []string{"ab", "c"}}}}
	b := &domain.BuildDefinition{Phases: []domain.Phase{{Kind: domain.PhaseBuild, Commands: []string{"a", "bc"}}}}
	assert.NotEqual(t, h.DefinitionHash(a, nil), h.DefinitionHash(b, nil))
}

func TestHasher_ComputeFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zlib-1.3.1.tar.xz")
	content := []byte("archive bytes")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	sum, err := fs.NewHasher().ComputeFileHash(path)
	require.NoError(t, err)
	assert.Equal(t, xxhash.Sum64(content), sum)

	_, err = fs.NewHasher().ComputeFileHash(path + ".missing")
	assert.Error(t, err)
}
