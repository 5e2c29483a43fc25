package generator

import (
	"slices"

	"go.trai.ch/lpkg/internal/core/domain"
)

// DefaultLevel is used when a record does not name an optimisation level.
const DefaultLevel = "O2"

// DeriveFlags computes the compiler flag set of a record. Explicit cflags replace the
// level default; LTO and PGO flags are appended and duplicates removed.
func DeriveFlags(opt domain.Optimizations) domain.BuildFlags {
	level := opt.Level
	if level == "" {
		level = DefaultLevel
	}

	cflags := slices.Clone(opt.CFlags)
	if len(cflags) == 0 {
		cflags = []string{"-" + level}
	}
	ldflags := slices.Clone(opt.LDFlags)

	if opt.EnableLTO {
		cflags = append(cflags, "-flto")
		ldflags = append(ldflags, "-flto")
	}
	if opt.EnablePGO {
		if opt.Profdata != "" {
			cflags = append(cflags, "-fprofile-use="+opt.Profdata)
		} else {
			cflags = append(cflags, "-fprofile-generate")
		}
	}

	return domain.BuildFlags{
		LTO:      opt.EnableLTO,
		PGO:      opt.EnablePGO,
		Level:    level,
		CFlags:   dedupe(cflags),
		LDFlags:  dedupe(ldflags),
		Profdata: opt.Profdata,
	}
}

// dedupe removes repeated flags, keeping the first occurrence.
func dedupe(flags []string) []string {
	seen := make(map[string]bool, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
