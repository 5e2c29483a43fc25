package sources

import (
	"crypto/md5"  //nolint:gosec // md5 is the digest the books publish
	"crypto/sha1" //nolint:gosec // sha1 digests are verified, not produced
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
	"lukechampine.com/blake3"
)

// newHash returns the hash of a checksum algorithm, or nil when it is not supported.
func newHash(alg string) hash.Hash {
	switch strings.ToLower(alg) {
	case "md5":
		return md5.New() //nolint:gosec // See import
	case "sha1":
		return sha1.New() //nolint:gosec // See import
	case "sha256":
		return sha256.New()
	case "sha512":
		return sha512.New()
	case "blake3":
		return blake3.New(32, nil)
	default:
		return nil
	}
}

// verify checks a file against every checksum recorded for it. A file without checksums verifies.
func verify(path string, sums []domain.Checksum) error {
	if len(sums) == 0 {
		return nil
	}

	hashes := make([]hash.Hash, len(sums))
	writers := make([]io.Writer, len(sums))
	for i, sum := range sums {
		h := newHash(sum.Alg)
		if h == nil {
			return zerr.With(zerr.Wrap(domain.ErrChecksumMismatch, "unsupported checksum algorithm"), "alg", sum.Alg)
		}
		hashes[i] = h
		writers[i] = h
	}

	f, err := os.Open(path) //nolint:gosec // Path is below the sources directory
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open source"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Read only

	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to hash source"), "path", path)
	}

	for i, sum := range sums {
		got := hex.EncodeToString(hashes[i].Sum(nil))
		if !strings.EqualFold(got, sum.Value) {
			err := zerr.With(zerr.Wrap(domain.ErrChecksumMismatch, "source does not match its checksum"), "file", sum.File)
			return zerr.With(zerr.With(zerr.With(err, "alg", sum.Alg), "expected", sum.Value), "actual", got)
		}
	}
	return nil
}

// checksumsFor returns the checksums recorded for one file name.
func checksumsFor(sums []domain.Checksum, file string) []domain.Checksum {
	var out []domain.Checksum
	for _, sum := range sums {
		if sum.File == file {
			out = append(out, sum)
		}
	}
	return out
}
