// Package resolver reconciles package records with the canonical source manifests of their book.
package resolver

import (
	"path"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/lpkg/internal/core/domain"
)

// UnknownVersion is the version harvested from a heading without a version number.
const UnknownVersion = "unknown"

// Resolver fills in source urls and checksums of records from manifest entries.
type Resolver struct{}

// New creates a new Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve returns an updated copy of record together with the issues raised by this pass.
//
// Entries match when their key equals the lower-cased name-version of the record or extends it
// with a dash suffix, such as a patch. The variant never takes part in matching. Source links
// already present on the record take precedence; the manifest then only contributes checksums.
// A record without links and without a match gets an unresolved-source issue. Earlier
// unresolved-source issues are always replaced, and the record state is never changed.
func (r *Resolver) Resolve(record *domain.PackageRecord, entries []domain.ManifestEntry) (*domain.PackageRecord, []domain.Issue) {
	updated := record.Clone()
	updated.ClearIssues(domain.IssueUnresolvedSource)

	if v := strings.TrimSpace(updated.Package.Version); v == "" || v == UnknownVersion {
		if latest, ok := latestVersion(updated.Package.Name, entries); ok {
			updated.Package.Version = latest
		}
	}

	matches := Match(updated.Package.Name, updated.Package.Version, entries)

	if len(updated.Source.URLs) == 0 {
		for _, entry := range matches {
			updated.Source.URLs = append(updated.Source.URLs, domain.SourceURL{URL: entry.URL, Kind: domain.ClassifyURL(entry.URL)})
		}
	}

	if len(updated.Source.URLs) == 0 {
		issue := domain.Issue{
			Kind:    domain.IssueUnresolvedSource,
			Field:   "source.urls",
			Message: "no manifest entry matches " + domain.MatchKey(updated.Package.Name, updated.Package.Version),
		}
		updated.Status.Issues = append(updated.Status.Issues, issue)
		return &updated, []domain.Issue{issue}
	}

	attachChecksums(&updated, entries)
	if updated.Source.Archive == "" {
		updated.Source.Archive = primaryArchive(updated.Source.URLs)
	}
	return &updated, nil
}

// Match returns the manifest entries of a package in manifest order.
func Match(name, version string, entries []domain.ManifestEntry) []domain.ManifestEntry {
	key := domain.MatchKey(name, version)
	var out []domain.ManifestEntry
	for _, entry := range entries {
		if entry.Key == key || strings.HasPrefix(entry.Key, key+"-") {
			out = append(out, entry)
		}
	}
	return out
}

// attachChecksums pairs every source url with the manifest checksum of its filename.
func attachChecksums(record *domain.PackageRecord, entries []domain.ManifestEntry) {
	byFile := make(map[string]*domain.Checksum, len(entries))
	for _, entry := range entries {
		if entry.Checksum != nil {
			byFile[entry.Filename] = entry.Checksum
		}
	}

	for _, src := range record.Source.URLs {
		file := path.Base(src.URL)
		sum, ok := byFile[file]
		if !ok {
			continue
		}
		exists := slices.ContainsFunc(record.Source.Checksums, func(c domain.Checksum) bool {
			return c.File == file && strings.EqualFold(c.Alg, sum.Alg)
		})
		if !exists {
			record.Source.Checksums = append(record.Source.Checksums, domain.Checksum{Alg: sum.Alg, File: file, Value: sum.Value})
		}
	}
}

func primaryArchive(urls []domain.SourceURL) string {
	for _, u := range urls {
		if u.Kind == domain.URLPrimary {
			return path.Base(u.URL)
		}
	}
	return ""
}

// latestVersion picks the highest version among the manifest entries named after the package.
// Keys whose remainder does not parse as a version are ignored.
func latestVersion(name string, entries []domain.ManifestEntry) (string, bool) {
	prefix := domain.MatchKey(name, "")
	var best *semver.Version
	var bestRaw string
	for _, entry := range entries {
		rest, ok := strings.CutPrefix(entry.Key, prefix)
		if !ok || rest == "" || rest[0] < '0' || rest[0] > '9' {
			continue
		}
		v, err := semver.NewVersion(rest)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, rest
		}
	}
	return bestRaw, best != nil
}
