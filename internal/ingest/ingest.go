// Package ingest orchestrates the document pipeline: validate, fingerprint,
// convert, store image artifacts, and persist the result with its audit
// trail.
package ingest

import (
	"fmt"

	"github.com/hyperjump/docsink/internal/models"
)

// ValidationError reports a file that was rejected before any document row
// was created or touched.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Outcome describes what the pipeline did with one candidate file.
type Outcome struct {
	DocumentID string
	Status     models.DocumentStatus
	// Skipped is true when the file was already ingested with identical
	// content and nothing was written.
	Skipped bool
	// Warnings counts the warning log entries recorded for this run.
	Warnings int
}
