// Package models defines core data structures for ingested documents, their
// image artifacts, and processing audit logs.
package models

import "time"

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document represents one ingested source file and its converted content.
type Document struct {
	ID          string         `json:"id" db:"id"`
	SourcePath  string         `json:"source_path" db:"source_path"`
	Filename    string         `json:"filename" db:"filename"`
	ContentHash string         `json:"content_hash" db:"content_hash"`
	FileSize    int64          `json:"file_size" db:"file_size"`
	MimeType    string         `json:"mime_type,omitempty" db:"mime_type"`
	Markdown    string         `json:"markdown,omitempty" db:"markdown"`
	Status      DocumentStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
}

// MetadataEntry is one key/value pair describing a document's current content.
type MetadataEntry struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Key        string    `json:"key" db:"key"`
	Value      string    `json:"value" db:"value"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
