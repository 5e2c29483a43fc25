package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/manifest"
	"go.trai.ch/lpkg/internal/core/domain"
)

const wgetList = `https://sourceware.org/pub/binutils/releases/binutils-2.45.tar.xz

# patches
https://www.linuxfromscratch.org/patches/lfs/12.1/bzip2-1.0.8-install_docs-1.patch
https://ftp.gnu.org/gnu/gcc/gcc-14.2.0/gcc-14.2.0.tar.xz
`

const md5sums = `0123456789ABCDEF0123456789abcdef  binutils-2.45.tar.xz
fedcba9876543210fedcba9876543210  gcc-14.2.0.tar.xz
`

func TestParseWgetList(t *testing.T) {
	entries, err := manifest.ParseWgetList([]byte(wgetList))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, domain.ManifestEntry{
		Key:      "binutils-2.45",
		URL:      "https://sourceware.org/pub/binutils/releases/binutils-2.45.tar.xz",
		Filename: "binutils-2.45.tar.xz",
	}, entries[0])
	assert.Equal(t, "bzip2-1.0.8-install_docs-1", entries[1].Key)
	assert.Equal(t, "gcc-14.2.0", entries[2].Key)
}

func TestParseWgetList_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "\n\n# only comments\n"},
		{"relative url", "binutils-2.45.tar.xz\n"},
		{"html page", "<html><body>Not Found</body></html>\n"},
		{"unknown scheme", "file:///tmp/binutils-2.45.tar.xz\n"},
		{"no filename", "https://example.org/\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.ParseWgetList([]byte(tt.data))
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestParseMD5Sums(t *testing.T) {
	sums, err := manifest.ParseMD5Sums([]byte(md5sums))
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, domain.Checksum{
		Alg:   "md5",
		File:  "binutils-2.45.tar.xz",
		Value: "0123456789abcdef0123456789abcdef",
	}, sums["binutils-2.45.tar.xz"])
}

func TestParseMD5Sums_Errors(t *testing.T) {
	for _, data := range []string{
		"not-a-digest  binutils-2.45.tar.xz\n",
		"0123456789abcdef0123456789abcdef\n",
		"0123456789abcdef0123456789abcdef  a  b\n",
	} {
		_, err := manifest.ParseMD5Sums([]byte(data))
		assert.ErrorIs(t, err, domain.ErrParse, data)
	}
}
