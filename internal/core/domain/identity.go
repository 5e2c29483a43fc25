package domain

import (
	"regexp"
	"strings"
	"unicode"

	"go.trai.ch/zerr"
)

var (
	idPattern   = regexp.MustCompile(`^[a-z][a-z0-9]*/[a-z0-9]+(?:[._+-][a-z0-9]+)*$`)
	bookPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
)

// ValidID reports whether id has the form book/slug.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidBook reports whether book is a well-formed book name.
func ValidBook(book string) bool {
	return bookPattern.MatchString(book)
}

// ParseID splits a package id into its book and slug.
func ParseID(id string) (book, slug string, err error) {
	if !ValidID(id) {
		return "", "", zerr.With(zerr.Wrap(ErrInvalidID, "failed to parse id"), "id", id)
	}
	book, slug, _ = strings.Cut(id, "/")
	return book, slug, nil
}

// FormatID joins a book and a slug into a package id.
func FormatID(book, slug string) string {
	return book + "/" + slug
}

// Slugify lower-cases s and collapses every run of non-alphanumeric characters into a single dash.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// PackageSlug builds the slug of a package from its name and optional variant.
func PackageSlug(name, variant string) string {
	slug := Slugify(name)
	if v := Slugify(variant); v != "" {
		slug += "-" + v
	}
	return slug
}

// MatchKey derives the manifest lookup key of a package. The variant never takes part in it.
func MatchKey(name, version string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-")) + "-" + strings.TrimSpace(version)
}

// ModuleName derives the artifact directory name from a package id. The slug of a valid id
// is kept as is, so distinct ids never share an artifact. Characters outside the slug
// alphabet are replaced with an underscore.
func ModuleName(id string) string {
	_, slug, found := strings.Cut(id, "/")
	if !found {
		slug = id
	}

	var b strings.Builder
	for _, r := range strings.ToLower(slug) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '+' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	if b.Len() == 0 {
		return "pkg"
	}
	return b.String()
}

// ModulePrefix returns the two-character directory prefix of a module name. Short names
// are padded with underscores.
func ModulePrefix(module string) string {
	prefix := []byte{'_', '_'}
	for i := 0; i < len(module) && i < 2; i++ {
		prefix[i] = module[i]
	}
	return string(prefix)
}

// ParseDependencyRef splits a dependency reference of the form id or id@variant.
func ParseDependencyRef(ref string) (id, variant string, err error) {
	id, variant, _ = strings.Cut(strings.TrimSpace(ref), "@")
	if !ValidID(id) {
		return "", "", zerr.With(zerr.Wrap(ErrInvalidID, "failed to parse dependency"), "dependency", ref)
	}
	if strings.Contains(ref, "@") && (variant == "" || Slugify(variant) != variant) {
		return "", "", zerr.With(zerr.Wrap(ErrInvalidID, "failed to parse dependency"), "dependency", ref)
	}
	return id, variant, nil
}

// ValidDependencyRef reports whether ref is a well-formed dependency reference.
func ValidDependencyRef(ref string) bool {
	_, _, err := ParseDependencyRef(ref)
	return err == nil
}
