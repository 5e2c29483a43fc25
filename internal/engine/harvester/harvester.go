// Package harvester extracts draft package records from book pages.
package harvester

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/lpkg/internal/engine/resolver"
	"go.trai.ch/zerr"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	headingPattern = regexp.MustCompile(`^(\d+\.\d+)\.\s+(.+)$`)
	numberPattern  = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

// Stages by book chapter.
var chapterStages = map[int]string{
	5:  "cross-toolchain",
	6:  "temporary-tools",
	7:  "temporary-tools",
	8:  "system",
	9:  "system-configuration",
	10: "system-finalization",
}

// Harvester turns book pages into draft records.
type Harvester struct {
	fetcher ports.Fetcher
	now     func() time.Time
}

// New creates a Harvester fetching pages through fetcher.
func New(fetcher ports.Fetcher) *Harvester {
	return &Harvester{fetcher: fetcher, now: time.Now}
}

// Harvest fetches a page of the book and parses it into a draft record.
func (h *Harvester) Harvest(ctx context.Context, book domain.Book, page string) (*domain.PackageRecord, error) {
	pageURL := book.PageURL(page)
	content, err := h.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return Parse(book, pageURL, content, h.now().UTC())
}

// Parse extracts a draft record from the HTML of a book page. Fields that cannot be
// determined are recorded as issues on the record; only a page without a recognisable
// section heading is an error.
func Parse(book domain.Book, pageURL string, content []byte, retrievedAt time.Time) (*domain.PackageRecord, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrParse, err), "url", pageURL)
	}

	heading := findFirst(doc, element(atom.H1, "sect1"))
	if heading == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrParse, "page has no section heading"), "url", pageURL)
	}
	title := normalizeSpace(text(heading))
	m := headingPattern.FindStringSubmatch(title)
	if m == nil {
		err := zerr.With(zerr.Wrap(domain.ErrParse, "unrecognised section heading"), "url", pageURL)
		return nil, zerr.With(err, "heading", title)
	}
	section := m[1]
	name, version, variant := SplitNameVariant(m[2])
	chapter, _ := strconv.Atoi(strings.SplitN(section, ".", 2)[0])

	record := &domain.PackageRecord{
		SchemaVersion: domain.SchemaVersion,
		Package: domain.PackageInfo{
			ID:      domain.FormatID(book.Name, domain.PackageSlug(name, variant)),
			Name:    name,
			Version: version,
			Variant: domain.Slugify(variant),
			Book:    book.Name,
			Chapter: chapter,
			Section: section,
			Stage:   chapterStages[chapter],
		},
		Optimizations: domain.Optimizations{
			EnableLTO: true,
			EnablePGO: true,
			Level:     "O3",
			CFlags:    []string{"-O3", "-flto"},
			LDFlags:   []string{"-flto"},
		},
		Provenance: domain.Provenance{
			BookRelease: bookRelease(doc, book),
			PageURL:     pageURL,
			RetrievedAt: retrievedAt,
			ContentHash: contentHash(content),
		},
		Status: domain.Status{State: domain.StateDraft},
	}

	if id, ok := anchor(doc, heading, domain.Slugify(name)); ok {
		record.Package.Anchor = pageURL + "#" + id
	} else {
		record.AddIssue(domain.IssueMissingAnchor, "package.anchor", "no anchor id found for the section heading")
	}

	record.Source.URLs = sourceLinks(doc, pageURL)
	if len(record.Source.URLs) == 0 {
		record.AddIssue(domain.IssueUnresolvedSource, "source.urls", "no source archive links found on the page")
	}
	unpacked := archiveName(doc)
	record.Source.Archive = unpacked
	if record.Source.Archive == "" {
		record.Source.Archive = firstPrimary(record.Source.URLs)
	}

	record.Artifacts = artifacts(doc)

	record.Build = buildPhases(doc, record.Source.Archive, unpacked != "")
	if len(record.Build) == 0 {
		record.AddIssue(domain.IssueMissingBuildSteps, "build", "no build commands found on the page")
	}

	record.Normalize()
	return record, nil
}

// SplitNameVariant splits a heading title such as "Binutils-2.45 - Pass 1" into its
// name, version and variant. A title without a version yields resolver.UnknownVersion.
func SplitNameVariant(title string) (name, version, variant string) {
	base := strings.TrimSpace(title)
	if idx := strings.LastIndex(base, " - "); idx >= 0 {
		variant = strings.TrimSpace(base[idx+3:])
		base = strings.TrimSpace(base[:idx])
	}

	for idx := len(base) - 2; idx >= 0; idx-- {
		if base[idx] != '-' || base[idx+1] < '0' || base[idx+1] > '9' {
			continue
		}
		n, v := strings.TrimSpace(base[:idx]), strings.TrimSpace(base[idx+1:])
		if n != "" && v != "" {
			return n, v, variant
		}
	}
	return base, resolver.UnknownVersion, variant
}

// anchor finds the id identifying the section: the heading's own id, the id or name of
// one of its children, or else the first anchor whose id mentions the package slug.
func anchor(doc, heading *html.Node, slug string) (string, bool) {
	if id, ok := attr(heading, "id"); ok && id != "" {
		return id, true
	}
	for c := heading.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if id, ok := attr(c, "id"); ok && id != "" {
			return id, true
		}
		if id, ok := attr(c, "name"); ok && id != "" {
			return id, true
		}
	}
	if slug == "" {
		return "", false
	}
	for _, a := range findAll(doc, element(atom.A, "")) {
		if id, ok := attr(a, "id"); ok && strings.Contains(id, slug) {
			return id, true
		}
	}
	return "", false
}

// classifyLink returns the kind of an archive, patch or signature link.
func classifyLink(href string) (domain.URLKind, bool) {
	lower := strings.ToLower(href)
	for _, suffix := range []string{".tar", ".tar.gz", ".tar.bz2", ".tar.xz", ".tgz", ".zip"} {
		if strings.HasSuffix(lower, suffix) {
			return domain.URLPrimary, true
		}
	}
	switch {
	case strings.HasSuffix(lower, ".patch"):
		return domain.URLPatch, true
	case strings.HasSuffix(lower, ".sig"), strings.HasSuffix(lower, ".asc"):
		return domain.URLSignature, true
	default:
		return "", false
	}
}

// sourceLinks collects the archive, patch and signature links of the page, resolved
// against the page URL and deduplicated in document order.
func sourceLinks(doc *html.Node, pageURL string) []domain.SourceURL {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var out []domain.SourceURL

	for _, a := range findAll(doc, element(atom.A, "")) {
		href, ok := attr(a, "href")
		if !ok {
			continue
		}
		kind, ok := classifyLink(href)
		if !ok {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		if !ref.IsAbs() {
			if base == nil {
				continue
			}
			ref = base.ResolveReference(ref)
		}
		resolved := ref.String()
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, domain.SourceURL{URL: resolved, Kind: kind})
	}
	return out
}

// archiveName returns the archive unpacked by the first "tar -xf" command of the page.
func archiveName(doc *html.Node) string {
	for _, pre := range findAll(doc, element(atom.Pre, "userinput")) {
		for line := range strings.SplitSeq(text(pre), "\n") {
			_, args, found := strings.Cut(line, "tar -xf")
			if !found {
				continue
			}
			fields := strings.Fields(args)
			if len(fields) == 0 {
				continue
			}
			archive := strings.Trim(fields[0], `"',`)
			if isArchive(archive) {
				return path.Base(strings.TrimPrefix(archive, "../"))
			}
		}
	}
	return ""
}

func firstPrimary(urls []domain.SourceURL) string {
	for _, u := range urls {
		if u.Kind == domain.URLPrimary {
			return path.Base(u.URL)
		}
	}
	return ""
}

// artifacts reads the build time and disk space estimates of the segmented list.
func artifacts(doc *html.Node) domain.Artifacts {
	var out domain.Artifacts
	for _, list := range findAll(doc, element(atom.Div, "segmentedlist")) {
		for _, seg := range findAll(list, element(atom.Div, "seg")) {
			titleNode := findFirst(seg, element(atom.Strong, "segtitle"))
			bodyNode := findFirst(seg, element(atom.Span, "segbody"))
			if titleNode == nil || bodyNode == nil {
				continue
			}
			title, body := normalizeSpace(text(titleNode)), normalizeSpace(text(bodyNode))
			switch {
			case strings.Contains(title, "Approximate build time"):
				if n := numberPattern.FindString(body); n != "" {
					out.SBU, _ = strconv.ParseFloat(n, 64)
				}
			case strings.Contains(title, "Required disk space"):
				out.Disk = body
			}
		}
	}
	return out
}

var archiveSuffixes = []string{".tar.xz", ".tar.gz", ".tar.bz2", ".tar.zst", ".tar.lz", ".tgz", ".tar", ".zip"}

func isArchive(name string) bool {
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// sourceDir is the directory an archive unpacks into by convention.
func sourceDir(archive string) string {
	for _, suffix := range archiveSuffixes {
		if dir, ok := strings.CutSuffix(archive, suffix); ok {
			return dir
		}
	}
	return archive
}

// buildPhases turns every pre.userinput block into a phase. Backslash continuations are
// kept together as one command. Each block runs in a fresh shell, so the directory left by
// the "cd" commands of earlier blocks becomes the working directory of later ones. Pages
// that assume the archive is already unpacked get a leading setup phase doing so.
func buildPhases(doc *html.Node, archive string, unpacked bool) []domain.Phase {
	var blocks [][]string
	for _, pre := range findAll(doc, element(atom.Pre, "userinput")) {
		if commands := splitCommands(text(pre)); len(commands) > 0 {
			blocks = append(blocks, commands)
		}
	}
	if len(blocks) == 0 {
		return nil
	}

	phases := make([]domain.Phase, 0, len(blocks)+1)
	dir := ""
	if !unpacked && isArchive(archive) {
		phases = append(phases, domain.Phase{Kind: domain.PhaseSetup, Commands: []string{"tar -xf " + archive}})
		dir = sourceDir(archive)
	}
	for _, commands := range blocks {
		phases = append(phases, domain.Phase{Kind: ClassifyPhase(commands), Cwd: dir, Commands: commands})
		dir = FollowDirectory(dir, commands)
	}
	return phases
}

// FollowDirectory returns the directory, relative to the work directory, that the
// top-level "cd" commands leave behind when run from dir. Targets built from variables
// cannot be followed and leave dir unchanged; subshells never change it.
func FollowDirectory(dir string, commands []string) string {
	for _, cmd := range commands {
		for _, segment := range strings.FieldsFunc(cmd, func(r rune) bool { return r == ';' || r == '&' || r == '\n' }) {
			fields := strings.Fields(segment)
			if len(fields) < 2 || fields[0] != "cd" {
				continue
			}
			target := strings.Trim(fields[1], `"'`)
			switch {
			case target == "" || target == "-" || strings.ContainsAny(target, "$~`"):
				continue
			case path.IsAbs(target):
				dir = path.Clean(target)
			default:
				dir = path.Join(dir, target)
			}
			if dir == "." {
				dir = ""
			}
		}
	}
	return dir
}

func splitCommands(block string) []string {
	var commands []string
	var pending []string
	for line := range strings.SplitSeq(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" && len(pending) == 0 {
			continue
		}
		pending = append(pending, line)
		if strings.HasSuffix(line, `\`) {
			continue
		}
		commands = append(commands, strings.Join(pending, "\n"))
		pending = nil
	}
	if len(pending) > 0 {
		commands = append(commands, strings.TrimSuffix(strings.Join(pending, "\n"), `\`))
	}
	return commands
}

// ClassifyPhase tags a block of commands with a phase kind.
func ClassifyPhase(commands []string) domain.PhaseKind {
	joined := strings.ToLower(strings.Join(commands, "\n"))
	switch {
	case strings.Contains(joined, "make install"):
		return domain.PhaseInstall
	case strings.Contains(joined, "make check"), strings.Contains(joined, "make -k check"):
		return domain.PhaseTest
	case strings.Contains(joined, "configure"):
		return domain.PhaseConfigure
	case strings.Contains(joined, "tar -xf"), strings.Contains(joined, "mkdir "):
		return domain.PhaseSetup
	default:
		return domain.PhaseBuild
	}
}

func bookRelease(doc *html.Node, book domain.Book) string {
	if body := findFirst(doc, element(atom.Body, "")); body != nil {
		if id, ok := attr(body, "id"); ok && id != "" {
			return id
		}
	}
	return book.Release
}

// contentHash is the hex sha256 of the raw page.
func contentHash(content []byte) string {
	return digest.SHA256.FromBytes(content).Encoded()
}
