// Package validator enforces the package record schema and its cross-field invariants.
//
// Validation is pure: it never mutates the record and returns every violation it finds
// rather than stopping at the first one.
package validator

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

// digestLengths maps the allowed checksum algorithms to the hex length of their digests.
var digestLengths = map[string]int{
	"md5":    32,
	"sha1":   40,
	"sha256": 64,
	"sha512": 128,
	"blake3": 64,
}

// levels is the closed set of optimisation levels.
var levels = []string{"O0", "O1", "O2", "O3", "Os", "Oz", "Ofast"}

var urlSchemes = []string{"http", "https", "ftp"}

// Violation is one failed schema rule.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Result is the outcome of validating a record.
type Result struct {
	OK         bool
	Violations []Violation
}

// Err returns nil for a valid record and a domain.ErrSchemaViolation carrying the
// violations otherwise.
func (r Result) Err(id string) error {
	if r.OK {
		return nil
	}
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.String()
	}
	err := zerr.With(zerr.Wrap(domain.ErrSchemaViolation, "record failed validation"), "id", id)
	return zerr.With(err, "violations", strings.Join(msgs, "; "))
}

type checker struct {
	violations []Violation
}

func (c *checker) addf(field, format string, args ...any) {
	c.violations = append(c.violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		c.addf(field, "is required")
		return false
	}
	return true
}

// Validate checks a record against the schema. A record without phases is valid.
func Validate(record *domain.PackageRecord) Result {
	c := &checker{}

	if record.SchemaVersion != domain.SchemaVersion {
		c.addf("schema_version", "unsupported schema version %q, expected %q", record.SchemaVersion, domain.SchemaVersion)
	}

	c.checkPackage(&record.Package)
	c.checkSource(&record.Source)
	c.checkDependencies(&record.Dependencies)
	c.checkPhases(record.Build)
	c.checkOptimizations(&record.Optimizations)
	c.checkStatus(record)

	return Result{OK: len(c.violations) == 0, Violations: c.violations}
}

func (c *checker) checkPackage(pkg *domain.PackageInfo) {
	if c.required("package.id", pkg.ID) {
		book, _, err := domain.ParseID(pkg.ID)
		switch {
		case err != nil:
			c.addf("package.id", "%q is not of the form <book>/<slug>", pkg.ID)
		case pkg.Book != "" && book != pkg.Book:
			c.addf("package.book", "%q does not match the book of id %q", pkg.Book, pkg.ID)
		}
	}
	if c.required("package.book", pkg.Book) && !domain.ValidBook(pkg.Book) {
		c.addf("package.book", "%q is not a valid book name", pkg.Book)
	}
	c.required("package.name", pkg.Name)
	c.required("package.version", pkg.Version)
	if pkg.Variant != "" && domain.Slugify(pkg.Variant) != pkg.Variant {
		c.addf("package.variant", "%q must be lower-case words joined by dashes", pkg.Variant)
	}
	if pkg.Chapter < 0 {
		c.addf("package.chapter", "must not be negative")
	}
}

func (c *checker) checkSource(src *domain.Source) {
	for i, u := range src.URLs {
		field := fmt.Sprintf("source.urls[%d]", i)
		if msg := checkURL(u.URL); msg != "" {
			c.addf(field+".url", "%s", msg)
		}
		switch u.Kind {
		case domain.URLPrimary, domain.URLPatch, domain.URLSignature:
		default:
			c.addf(field+".kind", "unknown url kind %q", u.Kind)
		}
	}

	seen := make(map[string]bool, len(src.Checksums))
	for i, sum := range src.Checksums {
		field := fmt.Sprintf("source.checksums[%d]", i)
		want, ok := digestLengths[sum.Alg]
		if !ok {
			c.addf(field+".alg", "unsupported algorithm %q", sum.Alg)
		} else if len(sum.Value) != want {
			c.addf(field+".value", "%s digest must be %d hex characters, got %d", sum.Alg, want, len(sum.Value))
		} else if _, err := hex.DecodeString(sum.Value); err != nil {
			c.addf(field+".value", "%q is not hexadecimal", sum.Value)
		}
		if c.required(field+".file", sum.File) {
			key := sum.Alg + "\x00" + sum.File
			if seen[key] {
				c.addf(field, "duplicate %s checksum for %q", sum.Alg, sum.File)
			}
			seen[key] = true
		}
	}
}

func checkURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "is required"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("%q is not a valid url", raw)
	}
	if !slices.Contains(urlSchemes, u.Scheme) {
		return fmt.Sprintf("%q must use http, https or ftp", raw)
	}
	if u.Host == "" {
		return fmt.Sprintf("%q has no host", raw)
	}
	return ""
}

func (c *checker) checkDependencies(deps *domain.Dependencies) {
	c.checkRefs("dependencies.build", deps.Build)
	c.checkRefs("dependencies.runtime", deps.Runtime)
}

func (c *checker) checkRefs(field string, refs []string) {
	for i, ref := range refs {
		if !domain.ValidDependencyRef(ref) {
			c.addf(fmt.Sprintf("%s[%d]", field, i), "%q is not a valid package id", ref)
		}
	}
}

func (c *checker) checkPhases(phases []domain.Phase) {
	for i, phase := range phases {
		field := fmt.Sprintf("build[%d]", i)
		if !phase.Kind.Valid() {
			c.addf(field+".phase", "unknown phase %q", phase.Kind)
		}
		for j, cmd := range phase.Commands {
			if strings.TrimSpace(cmd) == "" {
				c.addf(fmt.Sprintf("%s.commands[%d]", field, j), "must not be empty")
			}
		}
	}
}

func (c *checker) checkOptimizations(opt *domain.Optimizations) {
	if opt.Level != "" && !slices.Contains(levels, opt.Level) {
		c.addf("optimizations.level", "unknown level %q", opt.Level)
	}
	if opt.Profdata != "" && !opt.EnablePGO {
		c.addf("optimizations.profdata", "requires enable_pgo")
	}
}

func (c *checker) checkStatus(record *domain.PackageRecord) {
	if !record.Status.State.Valid() {
		c.addf("status.state", "unknown state %q", record.Status.State)
	}
	for i, issue := range record.Status.Issues {
		field := fmt.Sprintf("status.issues[%d]", i)
		if !issue.Kind.Valid() {
			c.addf(field+".kind", "unknown issue kind %q", issue.Kind)
		}
		c.required(field+".message", issue.Message)
	}

	if !record.Ready() {
		return
	}
	if len(record.Status.Issues) > 0 {
		c.addf("status.state", "ready record has %d open issues", len(record.Status.Issues))
	}
	if len(record.Source.URLs) == 0 {
		c.addf("status.state", "ready record has no source urls")
	}
}

// Promote computes the state a record should move to. Records with open issues
// become issues-open; records that are valid as ready become ready. Otherwise the
// state is kept. The second result reports whether the state changes.
func Promote(record *domain.PackageRecord) (domain.RecordState, bool) {
	current := record.Status.State
	next := current

	switch {
	case len(record.Status.Issues) > 0:
		next = domain.StateIssuesOpen
	case record.Promotable():
		candidate := record.Clone()
		candidate.Status.State = domain.StateReady
		if Validate(&candidate).OK {
			next = domain.StateReady
		}
	}
	return next, next != current
}
