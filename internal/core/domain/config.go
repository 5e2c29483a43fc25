package domain

import (
	"net/url"
	"strings"
	"time"
)

// Config is the resolved pipeline configuration. All paths are absolute.
type Config struct {
	Root      string
	Paths     Paths
	Manifests ManifestSettings
	Books     map[string]Book
	Build     BuildSettings
	Mirrors   Mirrors
	Store     StoreSettings
}

// Paths lists the directories the pipeline reads and writes.
type Paths struct {
	Metadata  string
	Artifacts string
	Cache     string
	State     string
	Work      string
	Logs      string
	Sources   string
}

// ManifestSettings controls manifest cache staleness.
type ManifestSettings struct {
	MaxAge          time.Duration
	FallbackToCache bool
}

// BuildSettings controls the build executor.
type BuildSettings struct {
	Workers      int
	Shell        string
	PhaseTimeout time.Duration
	KillGrace    time.Duration
	Env          map[string]string
}

// Mirrors holds optional download mirror substitutions.
type Mirrors struct {
	// GNU replaces the ftp.gnu.org host of source URLs when set.
	GNU string
}

// StoreBackend names a record store implementation.
type StoreBackend string

const (
	// StoreFS keeps records as JSON files below the metadata path.
	StoreFS StoreBackend = "fs"
	// StoreS3 keeps records as objects in an S3 bucket.
	StoreS3 StoreBackend = "s3"
)

// StoreSettings selects and configures the record store.
type StoreSettings struct {
	Backend  StoreBackend
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// Book describes one documentation book and where its manifests live.
// The {release} placeholder in BaseURL and PageBase is replaced by Release.
type Book struct {
	Name     string
	Release  string
	BaseURL  string
	PageBase string
	WgetList string
	MD5Sums  string
}

// ManifestURL returns the URL of the book's canonical source list.
func (b Book) ManifestURL() string {
	return b.join(b.BaseURL, b.WgetList)
}

// ChecksumURL returns the URL of the book's checksum list.
func (b Book) ChecksumURL() string {
	if b.MD5Sums == "" {
		return ""
	}
	return b.join(b.BaseURL, b.MD5Sums)
}

// PageURL returns the absolute URL of a page of the book. Absolute page URLs are returned unchanged.
func (b Book) PageURL(page string) string {
	if u, err := url.Parse(page); err == nil && u.IsAbs() {
		return page
	}
	base := b.PageBase
	if base == "" {
		base = b.BaseURL
	}
	return b.join(base, page)
}

func (b Book) join(base, rel string) string {
	if u, err := url.Parse(rel); err == nil && u.IsAbs() {
		return rel
	}
	base = strings.ReplaceAll(base, "{release}", b.Release)
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}
