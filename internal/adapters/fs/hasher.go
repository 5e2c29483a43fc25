package fs

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher provides hashing functionality for build definitions and files.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// DefinitionHash computes a single hash representing everything that influences the
// execution of a definition: its identity, sources, flags, phases and environment.
// Header provenance is excluded, so regenerating an unchanged record keeps the hash.
func (h *Hasher) DefinitionHash(def *domain.BuildDefinition, env map[string]string) string {
	hasher := xxhash.New()

	h.hashIdentity(def, hasher)
	h.hashSources(def, hasher)
	h.hashFlags(def.Flags, hasher)
	h.hashPhases(def.Phases, hasher)
	h.hashEnvironment(env, hasher)

	return fmt.Sprintf("%016x", hasher.Sum64())
}

func (h *Hasher) hashIdentity(def *domain.BuildDefinition, hasher *xxhash.Digest) {
	for _, s := range []string{def.ID, def.Name, def.Version, def.Variant, def.Stage} {
		writeField(hasher, s)
	}
	_, _ = hasher.Write([]byte{0}) // Section separator

	for _, dep := range def.Dependencies {
		writeField(hasher, dep)
	}
	_, _ = hasher.Write([]byte{0})
}

func (h *Hasher) hashSources(def *domain.BuildDefinition, hasher *xxhash.Digest) {
	for _, src := range def.Sources {
		writeField(hasher, src.URL)
		writeField(hasher, string(src.Kind))
	}
	_, _ = hasher.Write([]byte{0})

	for _, sum := range def.Checksums {
		writeField(hasher, sum.Alg)
		writeField(hasher, sum.File)
		writeField(hasher, sum.Value)
	}
	_, _ = hasher.Write([]byte{0})
}

func (h *Hasher) hashFlags(flags domain.BuildFlags, hasher *xxhash.Digest) {
	writeField(hasher, strconv.FormatBool(flags.LTO))
	writeField(hasher, strconv.FormatBool(flags.PGO))
	writeField(hasher, flags.Level)
	writeField(hasher, flags.Profdata)
	for _, f := range flags.CFlags {
		writeField(hasher, f)
	}
	_, _ = hasher.Write([]byte{0})
	for _, f := range flags.LDFlags {
		writeField(hasher, f)
	}
	_, _ = hasher.Write([]byte{0})
}

func (h *Hasher) hashPhases(phases []domain.Phase, hasher *xxhash.Digest) {
	for _, phase := range phases {
		writeField(hasher, string(phase.Kind))
		writeField(hasher, phase.Cwd)
		writeField(hasher, strconv.FormatBool(phase.RequiresRoot))
		for _, cmd := range phase.Commands {
			writeField(hasher, cmd)
		}
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write([]byte{0})
}

// hashEnvironment hashes environment variables in a deterministic order.
func (h *Hasher) hashEnvironment(env map[string]string, hasher *xxhash.Digest) {
	// Sort keys for determinism
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		_, _ = hasher.WriteString(k)
		_, _ = hasher.Write([]byte{'='})
		writeField(hasher, env[k])
	}
	_, _ = hasher.Write([]byte{0})
}

func writeField(hasher *xxhash.Digest, s string) {
	_, _ = hasher.WriteString(s)
	_, _ = hasher.Write([]byte{0}) // Separator
}
