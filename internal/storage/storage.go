// Package storage defines the persistence interface for ingested documents,
// their metadata, image records, and processing logs.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/docsink/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations used by the ingestion pipeline
// and the admin surfaces. Implementations must make CompleteDocument,
// MarkFailed, and ResetToPending atomic: a reader never observes a document
// row whose status disagrees with its content, metadata, or audit trail.
type Store interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentByPath(ctx context.Context, sourcePath string) (*models.Document, error)
	GetDocumentByHash(ctx context.Context, contentHash string) (*models.Document, error)
	ListDocuments(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error)
	CountDocuments(ctx context.Context, status models.DocumentStatus) (int64, error)
	CountByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error)
	DeleteDocument(ctx context.Context, id string) error

	// Lifecycle transitions
	BeginProcessing(ctx context.Context, id, contentHash string, fileSize int64, mimeType string) error
	CompleteDocument(ctx context.Context, id, markdown string, metadata map[string]string, images []models.DocumentImage, entry *models.ProcessingLogEntry) error
	MarkFailed(ctx context.Context, id string, entry *models.ProcessingLogEntry) error
	ResetToPending(ctx context.Context, id string, entry *models.ProcessingLogEntry) error
	RequeueStuck(ctx context.Context) (int, error)

	// Audit trail
	AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error
	ListLogs(ctx context.Context, documentID string, level models.LogLevel, limit, offset int) ([]*models.ProcessingLogEntry, error)

	// Metadata and images
	GetMetadata(ctx context.Context, documentID string) (map[string]string, error)
	ListImages(ctx context.Context, documentID string) ([]*models.DocumentImage, error)
	ListImagesByKind(ctx context.Context, kind models.ImageKind, limit, offset int) ([]*models.DocumentImage, error)
	ImageStats(ctx context.Context) (*ImageStats, error)

	Close() error
}

// ImageStats summarizes stored image records.
type ImageStats struct {
	Count      int64                      `json:"count"`
	TotalBytes int64                      `json:"total_bytes"`
	ByKind     map[models.ImageKind]int64 `json:"by_kind"`
}
