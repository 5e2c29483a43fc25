// Package store implements the package record stores.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

const recordExt = ".json"

// recordKey returns the slash-separated location of a record relative to the store root.
func recordKey(id string) (string, error) {
	book, slug, err := domain.ParseID(id)
	if err != nil {
		return "", err
	}
	return path.Join(domain.PackagesDirName, book, slug+recordExt), nil
}

// idFromKey maps a "<book>/<slug>.json" path relative to the packages directory back to an id.
// It reports false for paths that do not name a record.
func idFromKey(rel string) (string, bool) {
	book, file, ok := strings.Cut(rel, "/")
	if !ok || strings.Contains(file, "/") {
		return "", false
	}
	slug, ok := strings.CutSuffix(file, recordExt)
	if !ok || slug == "" {
		return "", false
	}
	id := domain.FormatID(book, slug)
	return id, domain.ValidID(id)
}

// encode renders a normalized record as indented JSON with a trailing newline.
func encode(id string, record *domain.PackageRecord) ([]byte, error) {
	if record.Package.ID != id {
		err := zerr.With(zerr.Wrap(domain.ErrStoreWriteFailed, "record id does not match its key"), "id", id)
		return nil, zerr.With(err, "record_id", record.Package.ID)
	}

	normalized := record.Clone()
	normalized.Normalize()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&normalized); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrStoreMarshalFailed, err), "id", id)
	}
	return buf.Bytes(), nil
}

// Marshal renders a record the way the stores persist it.
func Marshal(record *domain.PackageRecord) ([]byte, error) {
	return encode(record.ID(), record)
}

// decode parses a stored record strictly: unknown fields, trailing data and a record whose
// id differs from its key are rejected.
func decode(id string, data []byte) (*domain.PackageRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var record domain.PackageRecord
	if err := dec.Decode(&record); err != nil {
		return nil, zerr.With(errors.Join(domain.ErrStoreUnmarshalFailed, err), "id", id)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, zerr.With(zerr.Wrap(domain.ErrStoreUnmarshalFailed, "unexpected data after record"), "id", id)
	}
	if record.Package.ID != id {
		err := zerr.With(zerr.Wrap(domain.ErrStoreUnmarshalFailed, "record id does not match its key"), "id", id)
		return nil, zerr.With(err, "record_id", record.Package.ID)
	}
	return &record, nil
}
