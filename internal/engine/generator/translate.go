package generator

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

// Translate derives the build definition of a ready record. The result depends only on
// the record content.
func Translate(record *domain.PackageRecord) (*domain.BuildDefinition, error) {
	if !record.Ready() {
		err := zerr.With(zerr.Wrap(domain.ErrNotReady, "cannot generate definition"), "id", record.ID())
		return nil, zerr.With(err, "state", string(record.Status.State))
	}

	hash, err := RecordHash(record)
	if err != nil {
		return nil, err
	}

	def := &domain.BuildDefinition{
		ID:           record.Package.ID,
		Name:         record.Package.Name,
		Version:      record.Package.Version,
		Variant:      record.Package.Variant,
		Stage:        record.Package.Stage,
		Sources:      slices.Clone(record.Source.URLs),
		Checksums:    sortedChecksums(record.Source.Checksums),
		Dependencies: record.Dependencies.All(),
		Flags:        DeriveFlags(record.Optimizations),
		Phases:       stripNotes(SplitInstall(record.Build)),
		Header: domain.ArtifactHeader{
			RecordHash:    hash,
			SchemaVersion: record.SchemaVersion,
		},
	}
	return def, nil
}

// RecordHash returns the digest of the canonical JSON encoding of a record.
func RecordHash(record *domain.PackageRecord) (string, error) {
	normalized := record.Clone()
	normalized.Normalize()

	data, err := json.Marshal(&normalized)
	if err != nil {
		return "", zerr.With(errors.Join(domain.ErrStoreMarshalFailed, err), "id", record.ID())
	}
	return digest.FromBytes(data).String(), nil
}

func stripNotes(phases []domain.Phase) []domain.Phase {
	for i := range phases {
		phases[i].Notes = ""
	}
	return phases
}

func sortedChecksums(sums []domain.Checksum) []domain.Checksum {
	out := slices.Clone(sums)
	slices.SortStableFunc(out, func(a, b domain.Checksum) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return strings.Compare(a.Alg, b.Alg)
	})
	return out
}

// SplitInstall moves "make install" commands out of the other phases into the install
// phase, keeping their relative order. Phases left without commands are dropped. When the
// record has no install phase one is appended, running in the directory of the first
// moved command.
func SplitInstall(phases []domain.Phase) []domain.Phase {
	var moved []string
	movedCwd := ""
	out := make([]domain.Phase, 0, len(phases)+1)
	install := -1

	for _, phase := range phases {
		phase.Commands = slices.Clone(phase.Commands)
		if phase.Kind == domain.PhaseInstall {
			if install < 0 {
				install = len(out)
			}
			out = append(out, phase)
			continue
		}

		kept := phase.Commands[:0]
		for _, cmd := range phase.Commands {
			if !isInstallCommand(cmd) {
				kept = append(kept, cmd)
				continue
			}
			if len(moved) == 0 {
				movedCwd = phase.Cwd
			}
			moved = append(moved, cmd)
		}
		if len(kept) == 0 && len(phase.Commands) > 0 {
			continue
		}
		phase.Commands = kept
		out = append(out, phase)
	}

	if len(moved) == 0 {
		return out
	}
	if install < 0 {
		return append(out, domain.Phase{Kind: domain.PhaseInstall, Cwd: movedCwd, Commands: moved})
	}
	out[install].Commands = append(moved, out[install].Commands...)
	return out
}

// isInstallCommand matches "make install" as well as "make DESTDIR=$LFS install".
func isInstallCommand(cmd string) bool {
	if strings.Contains(cmd, "make install") {
		return true
	}
	return strings.Contains(cmd, "make DESTDIR=") && strings.HasSuffix(strings.TrimSpace(cmd), " install")
}
