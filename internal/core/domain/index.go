package domain

import "time"

// IndexEntry summarises one package record.
type IndexEntry struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Version       string      `json:"version"`
	Variant       string      `json:"variant,omitempty"`
	Book          string      `json:"book"`
	Stage         string      `json:"stage,omitempty"`
	Status        RecordState `json:"status"`
	Path          string      `json:"path"`
	LastValidated time.Time   `json:"last_validated"`
}

// Index is the flat summary of every package record. It is always rebuilt in full.
type Index struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	SchemaVersion string       `json:"schema_version"`
	Packages      []IndexEntry `json:"packages"`
}

// IndexSummary describes the outcome of an indexing pass.
type IndexSummary struct {
	Path     string
	Packages int
	ByStatus map[RecordState]int
}
