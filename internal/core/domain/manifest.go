package domain

import (
	"path"
	"strings"
	"time"
)

// ManifestEntry is one line of an external canonical source list, optionally paired with a checksum.
type ManifestEntry struct {
	Key      string    `json:"key"`
	URL      string    `json:"url"`
	Filename string    `json:"filename"`
	Checksum *Checksum `json:"checksum,omitempty"`
}

// Manifest is the cached source list of one book release.
type Manifest struct {
	Book      string          `json:"book"`
	Release   string          `json:"release"`
	FetchedAt time.Time       `json:"fetched_at"`
	Entries   []ManifestEntry `json:"entries"`
}

// Stale reports whether the manifest is older than maxAge. A zero maxAge never expires.
func (m *Manifest) Stale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(m.FetchedAt) > maxAge
}

// archiveSuffixes are stripped from filenames to derive manifest keys, longest first.
var archiveSuffixes = []string{
	".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst", ".tar.lz", ".tar.lzma",
	".tgz", ".tbz2", ".txz", ".tar", ".zip",
	".patch", ".diff", ".sig", ".asc",
	".gz", ".bz2", ".xz",
}

// ArchiveKey derives the lower-cased name-version key of a source filename.
func ArchiveKey(filename string) string {
	base := strings.ToLower(path.Base(filename))
	for {
		trimmed := false
		for _, suffix := range archiveSuffixes {
			if strings.HasSuffix(base, suffix) {
				base = strings.TrimSuffix(base, suffix)
				trimmed = true
				break
			}
		}
		if !trimmed {
			return base
		}
	}
}

// IsArchive reports whether a filename looks like a source archive, patch or signature.
func IsArchive(filename string) bool {
	return ArchiveKey(filename) != strings.ToLower(path.Base(filename))
}

// ClassifyURL returns the kind of a source URL based on its filename.
func ClassifyURL(rawURL string) URLKind {
	name := strings.ToLower(path.Base(rawURL))
	switch {
	case strings.HasSuffix(name, ".patch"), strings.HasSuffix(name, ".diff"):
		return URLPatch
	case strings.HasSuffix(name, ".sig"), strings.HasSuffix(name, ".asc"):
		return URLSignature
	default:
		return URLPrimary
	}
}
