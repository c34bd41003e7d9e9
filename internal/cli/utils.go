// Package cli provides output helpers for the docsink command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/docsink/internal/models"
	"github.com/hyperjump/docsink/internal/storage"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteDocumentList writes a document listing to w in the given format.
func WriteDocumentList(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-10s  %9s  %-19s  %s\n", "ID", "STATUS", "SIZE", "CREATED", "FILE")
	for _, doc := range docs {
		fmt.Fprintf(w, "%-36s  %-10s  %9s  %-19s  %s\n",
			doc.ID, doc.Status, FormatBytes(doc.FileSize), doc.CreatedAt.Format(timeLayout), doc.Filename)
	}
	fmt.Fprintf(w, "\n%d document(s)\n", len(docs))
	return nil
}

// WriteDocumentDetail writes one document with its metadata and a content
// preview.
func WriteDocumentDetail(w io.Writer, doc *models.Document, meta map[string]string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"document": doc, "metadata": meta})
	}
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "ID:        %s\n", doc.ID)
	fmt.Fprintf(w, "File:      %s\n", doc.Filename)
	fmt.Fprintf(w, "Path:      %s\n", doc.SourcePath)
	fmt.Fprintf(w, "Status:    %s\n", doc.Status)
	if doc.MimeType != "" {
		fmt.Fprintf(w, "MIME:      %s\n", doc.MimeType)
	}
	fmt.Fprintf(w, "Size:      %s\n", FormatBytes(doc.FileSize))
	fmt.Fprintf(w, "Hash:      %s\n", doc.ContentHash)
	fmt.Fprintf(w, "Created:   %s\n", doc.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Updated:   %s\n", doc.UpdatedAt.Format(timeLayout))
	if doc.ProcessedAt != nil {
		fmt.Fprintf(w, "Processed: %s\n", doc.ProcessedAt.Format(timeLayout))
	}
	if len(meta) > 0 {
		fmt.Fprintf(w, "\nMetadata:\n")
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, meta[k])
		}
	}
	if doc.Markdown != "" {
		fmt.Fprintf(w, "\n%s\n", Truncate(doc.Markdown, 400))
	}
	return nil
}

// WriteLogs writes a document's processing log entries.
func WriteLogs(w io.Writer, entries []*models.ProcessingLogEntry, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No log entries.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "[%s] %-7s  %s", e.CreatedAt.Format(timeLayout), strings.ToUpper(string(e.Level)), e.Message)
		if e.Details != "" {
			fmt.Fprintf(w, "  %s", e.Details)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteImages writes a document's image artifact records.
func WriteImages(w io.Writer, images []*models.DocumentImage, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, images)
	}
	if len(images) == 0 {
		fmt.Fprintln(w, "No images.")
		return nil
	}
	fmt.Fprintf(w, "%-4s  %-8s  %9s  %-9s  %s\n", "POS", "KIND", "SIZE", "DIMS", "PATH")
	for _, img := range images {
		dims := "-"
		if img.Width > 0 && img.Height > 0 {
			dims = fmt.Sprintf("%dx%d", img.Width, img.Height)
		}
		fmt.Fprintf(w, "%-4d  %-8s  %9s  %-9s  %s\n",
			img.Position, img.Kind, FormatBytes(img.FileSize), dims, img.ImagePath)
	}
	return nil
}

// StatusReport summarizes the service state for the status command.
type StatusReport struct {
	Total            int64                           `json:"total"`
	ByStatus         map[models.DocumentStatus]int64 `json:"by_status"`
	Images           *storage.ImageStats             `json:"images,omitempty"`
	QueuePending     *int                            `json:"queue_pending,omitempty"`
	DiskUsageBytes   int64                           `json:"disk_usage_bytes"`
	DatabasePath     string                          `json:"database_path"`
	ImagesPath       string                          `json:"images_path"`
	WatchDirectories []string                        `json:"watch_directories,omitempty"`
}

// WriteStatus writes a status report.
func WriteStatus(w io.Writer, report *StatusReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Documents: %d\n", report.Total)
	for _, status := range []models.DocumentStatus{
		models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed,
	} {
		if n, ok := report.ByStatus[status]; ok && n > 0 {
			fmt.Fprintf(w, "  %-11s %d\n", status+":", n)
		}
	}
	if report.Images != nil {
		fmt.Fprintf(w, "Images:    %d (%s)\n", report.Images.Count, FormatBytes(report.Images.TotalBytes))
	}
	if report.QueuePending != nil {
		fmt.Fprintf(w, "Queue:     %d pending\n", *report.QueuePending)
	}
	fmt.Fprintf(w, "Disk:      %s\n", FormatBytes(report.DiskUsageBytes))
	fmt.Fprintf(w, "Database:  %s\n", report.DatabasePath)
	fmt.Fprintf(w, "Artifacts: %s\n", report.ImagesPath)
	for _, dir := range report.WatchDirectories {
		fmt.Fprintf(w, "Watching:  %s\n", dir)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders a duration rounded for display.
func FormatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
