package resolver_test

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/engine/resolver"
)

const binutilsURL = "https://sourceware.org/pub/binutils/releases/binutils-2.41.tar.xz"

func entry(url, sum string) domain.ManifestEntry {
	filename := path.Base(url)
	e := domain.ManifestEntry{Key: domain.ArchiveKey(filename), URL: url, Filename: filename}
	if sum != "" {
		e.Checksum = &domain.Checksum{Alg: "md5", File: filename, Value: sum}
	}
	return e
}

func draft(name, version, variant string) *domain.PackageRecord {
	return &domain.PackageRecord{
		SchemaVersion: domain.SchemaVersion,
		Package: domain.PackageInfo{
			ID:      "lfs/" + domain.PackageSlug(name, variant),
			Name:    name,
			Version: version,
			Variant: variant,
			Book:    "lfs",
		},
		Status: domain.Status{State: domain.StateDraft},
	}
}

func TestResolve_Binutils(t *testing.T) {
	entries := []domain.ManifestEntry{
		entry(binutilsURL, "00d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b"),
		entry("https://ftp.gnu.org/gnu/bash/bash-5.2.21.tar.gz", "ad5b38410e3bf0e9bcc20e2765f5e3f9"),
	}

	got, issues := resolver.New().Resolve(draft("binutils", "2.41", ""), entries)

	assert.Empty(t, issues)
	assert.Empty(t, got.Status.Issues)
	assert.Equal(t, []domain.SourceURL{{URL: binutilsURL, Kind: domain.URLPrimary}}, got.Source.URLs)
	assert.Equal(t, []domain.Checksum{
		{Alg: "md5", File: "binutils-2.41.tar.xz", Value: "00d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b"},
	}, got.Source.Checksums)
	assert.Equal(t, "binutils-2.41.tar.xz", got.Source.Archive)
	assert.Equal(t, domain.StateDraft, got.Status.State, "resolution never promotes")
}

func TestResolve_VariantIsNotPartOfTheKey(t *testing.T) {
	entries := []domain.ManifestEntry{entry(binutilsURL, "00d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b")}

	for _, variant := range []string{"pass-1", "pass-2"} {
		got, issues := resolver.New().Resolve(draft("Binutils", "2.41", variant), entries)
		assert.Empty(t, issues, variant)
		assert.Len(t, got.Source.URLs, 1, variant)
		assert.Equal(t, "lfs/binutils-"+variant, got.Package.ID, "the id keeps the variant")
	}
}

func TestResolve_NoMatch(t *testing.T) {
	entries := []domain.ManifestEntry{entry("https://ftp.gnu.org/gnu/bash/bash-5.2.21.tar.gz", "")}
	record := draft("binutils", "2.41", "")

	got, issues := resolver.New().Resolve(record, entries)

	require.Len(t, issues, 1)
	assert.Equal(t, domain.IssueUnresolvedSource, issues[0].Kind)
	assert.Equal(t, "source.urls", issues[0].Field)
	assert.Empty(t, got.Source.URLs)
	assert.Equal(t, issues, got.Status.Issues)
	assert.Equal(t, domain.StateDraft, got.Status.State)
	assert.Empty(t, record.Status.Issues, "the input record is not mutated")
}

func TestResolve_ReplacesEarlierUnresolvedIssues(t *testing.T) {
	record := draft("binutils", "2.41", "")
	record.AddIssue(domain.IssueUnresolvedSource, "source.urls", "no manifest entry matches binutils-2.41")
	record.AddIssue(domain.IssueMissingAnchor, "package.anchor", "heading has no anchor")

	t.Run("resolved", func(t *testing.T) {
		got, issues := resolver.New().Resolve(record, []domain.ManifestEntry{entry(binutilsURL, "")})
		assert.Empty(t, issues)
		assert.Equal(t, []domain.Issue{{Kind: domain.IssueMissingAnchor, Field: "package.anchor", Message: "heading has no anchor"}},
			got.Status.Issues)
	})

	t.Run("still unresolved", func(t *testing.T) {
		got, issues := resolver.New().Resolve(record, nil)
		require.Len(t, issues, 1)
		assert.Len(t, got.Status.Issues, 2, "exactly one unresolved-source issue remains")
	})
}

func TestResolve_InlineLinksTakePrecedence(t *testing.T) {
	record := draft("binutils", "2.41", "")
	inline := "https://mirror.example.org/binutils/binutils-2.41.tar.xz"
	record.Source.URLs = []domain.SourceURL{{URL: inline, Kind: domain.URLPrimary}}

	entries := []domain.ManifestEntry{
		entry(binutilsURL, "00d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b"),
		entry("https://www.linuxfromscratch.org/patches/lfs/12.1/binutils-2.41-upstream_fix-1.patch", ""),
	}
	got, issues := resolver.New().Resolve(record, entries)

	assert.Empty(t, issues)
	assert.Equal(t, []domain.SourceURL{{URL: inline, Kind: domain.URLPrimary}}, got.Source.URLs)
	assert.Equal(t, []domain.Checksum{
		{Alg: "md5", File: "binutils-2.41.tar.xz", Value: "00d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b"},
	}, got.Source.Checksums, "the manifest fills the checksum of the inline archive")
}

func TestResolve_PatchesMatchBySuffix(t *testing.T) {
	patch := "https://www.linuxfromscratch.org/patches/lfs/12.1/binutils-2.41-upstream_fix-1.patch"
	entries := []domain.ManifestEntry{
		entry(binutilsURL, "00d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b"),
		entry(patch, "11d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b"),
		entry("https://example.org/binutils-2.410.tar.xz", ""),
	}

	got, _ := resolver.New().Resolve(draft("binutils", "2.41", ""), entries)

	assert.Equal(t, []domain.SourceURL{
		{URL: binutilsURL, Kind: domain.URLPrimary},
		{URL: patch, Kind: domain.URLPatch},
	}, got.Source.URLs)
	assert.Len(t, got.Source.Checksums, 2)
	assert.Equal(t, "binutils-2.41.tar.xz", got.Source.Archive)
}

func TestResolve_IsIdempotent(t *testing.T) {
	entries := []domain.ManifestEntry{entry(binutilsURL, "00d4ba7ea5a8a3f4bb1ab9bcd2a6ea0b")}
	r := resolver.New()

	once, _ := r.Resolve(draft("binutils", "2.41", ""), entries)
	twice, issues := r.Resolve(once, entries)

	assert.Empty(t, issues)
	assert.Equal(t, once, twice)
}

func TestResolve_UnknownVersionPicksLatest(t *testing.T) {
	entries := []domain.ManifestEntry{
		entry("https://www.kernel.org/pub/linux/kernel/v6.x/linux-6.7.4.tar.xz", ""),
		entry("https://www.kernel.org/pub/linux/kernel/v6.x/linux-6.10.1.tar.xz", ""),
		entry("https://www.kernel.org/pub/linux/kernel/v6.x/linux-firmware-20240101.tar.xz", ""),
	}

	got, issues := resolver.New().Resolve(draft("linux", resolver.UnknownVersion, ""), entries)

	assert.Empty(t, issues)
	assert.Equal(t, "6.10.1", got.Package.Version)
	assert.Equal(t, []domain.SourceURL{
		{URL: "https://www.kernel.org/pub/linux/kernel/v6.x/linux-6.10.1.tar.xz", Kind: domain.URLPrimary},
	}, got.Source.URLs)
}

func TestMatch(t *testing.T) {
	entries := []domain.ManifestEntry{
		{Key: "gcc-13.2.0"},
		{Key: "gcc-13.2.0-fix-1"},
		{Key: "gcc-13.2"},
		{Key: "gcc-13.2.00"},
	}
	got := resolver.Match("GCC", "13.2.0", entries)
	assert.Equal(t, []domain.ManifestEntry{{Key: "gcc-13.2.0"}, {Key: "gcc-13.2.0-fix-1"}}, got)
}
