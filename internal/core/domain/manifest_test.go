package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/lpkg/internal/core/domain"
)

func TestArchiveKey(t *testing.T) {
	tests := map[string]string{
		"gcc-13.2.0.tar.xz":                "gcc-13.2.0",
		"zlib-1.3.1.tar.gz":                "zlib-1.3.1",
		"bzip2-1.0.8-install_docs-1.patch": "bzip2-1.0.8-install_docs-1",
		"Python-3.12.2.tar.xz":             "python-3.12.2",
		"tzdata2024a.tar.gz":               "tzdata2024a",
		"expect5.45.4.tar.gz.sig":          "expect5.45.4",
		"README":                           "readme",
	}
	for in, want := range tests {
		assert.Equal(t, want, domain.ArchiveKey(in), in)
	}
}

func TestIsArchive(t *testing.T) {
	assert.True(t, domain.IsArchive("gcc-13.2.0.tar.xz"))
	assert.True(t, domain.IsArchive("coreutils-9.4-i18n-1.patch"))
	assert.False(t, domain.IsArchive("index.html"))
	assert.False(t, domain.IsArchive("chapter05.html"))
}

func TestClassifyURL(t *testing.T) {
	assert.Equal(t, domain.URLPrimary, domain.ClassifyURL("https://example.org/gcc-13.2.0.tar.xz"))
	assert.Equal(t, domain.URLPatch, domain.ClassifyURL("https://example.org/glibc-2.39-fhs-1.patch"))
	assert.Equal(t, domain.URLSignature, domain.ClassifyURL("https://example.org/gcc-13.2.0.tar.xz.sig"))
}

func TestManifestStale(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &domain.Manifest{FetchedAt: now.Add(-2 * time.Hour)}

	assert.True(t, m.Stale(now, time.Hour))
	assert.False(t, m.Stale(now, 3*time.Hour))
	assert.False(t, m.Stale(now, 0), "a zero max age never expires")
}
