package manifest

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"strings"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

// ParseWgetList parses a source list with one absolute download URL per line.
// Blank lines and lines starting with # are ignored.
func ParseWgetList(data []byte) ([]domain.ManifestEntry, error) {
	var entries []domain.ManifestEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		u, err := url.Parse(line)
		if err != nil || !u.IsAbs() || u.Host == "" || !knownScheme(u.Scheme) {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrParse, "malformed source list line"), "line", lineNo), "content", line)
		}
		filename := path.Base(u.Path)
		if filename == "/" || filename == "." {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrParse, "source url has no filename"), "line", lineNo), "content", line)
		}

		entries = append(entries, domain.ManifestEntry{
			Key:      domain.ArchiveKey(filename),
			URL:      line,
			Filename: filename,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.Wrap(errors.Join(domain.ErrParse, err), "failed to read source list")
	}
	if len(entries) == 0 {
		return nil, zerr.Wrap(domain.ErrParse, "source list has no entries")
	}
	return entries, nil
}

// ParseMD5Sums parses a checksum list of "<digest>  <filename>" lines into checksums keyed by filename.
func ParseMD5Sums(data []byte) (map[string]domain.Checksum, error) {
	sums := make(map[string]domain.Checksum)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 || !isMD5(fields[0]) {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrParse, "malformed checksum line"), "line", lineNo), "content", line)
		}
		file := path.Base(strings.TrimPrefix(fields[1], "*"))
		sums[file] = domain.Checksum{Alg: "md5", File: file, Value: strings.ToLower(fields[0])}
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.Wrap(errors.Join(domain.ErrParse, err), "failed to read checksum list")
	}
	return sums, nil
}

// attachChecksums pairs every entry with the checksum of its filename, when one exists.
func attachChecksums(entries []domain.ManifestEntry, sums map[string]domain.Checksum) {
	for i := range entries {
		if sum, ok := sums[entries[i].Filename]; ok {
			entries[i].Checksum = &sum
		}
	}
}

func knownScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https", "ftp":
		return true
	default:
		return false
	}
}

func isMD5(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
