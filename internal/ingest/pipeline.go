package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/docsink/internal/config"
	"github.com/hyperjump/docsink/internal/convert"
	"github.com/hyperjump/docsink/internal/fileinfo"
	"github.com/hyperjump/docsink/internal/fingerprint"
	"github.com/hyperjump/docsink/internal/imagestore"
	"github.com/hyperjump/docsink/internal/models"
	"github.com/hyperjump/docsink/internal/storage"
)

// failureCacheSize bounds the paths tracked by the failure breaker.
const failureCacheSize = 4096

// failureStreak counts consecutive failures for one content hash of a path.
type failureStreak struct {
	hash  string
	count int
}

// Pipeline turns candidate files into completed documents. Safe for
// concurrent use; ingestions of the same path are serialized.
type Pipeline struct {
	cfg       *config.Config
	store     storage.Store
	converter convert.Converter
	images    *imagestore.Store
	locks     *pathLocks
	failures  *lru.Cache[string, failureStreak]
	now       func() time.Time
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the time source, which dates image artifact
// directories.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline with the given dependencies. images may be
// nil when artifact storage is disabled.
func NewPipeline(cfg *config.Config, store storage.Store, converter convert.Converter, images *imagestore.Store, opts ...PipelineOption) *Pipeline {
	failures, _ := lru.New[string, failureStreak](failureCacheSize)
	p := &Pipeline{
		cfg:       cfg,
		store:     store,
		converter: converter,
		images:    images,
		locks:     newPathLocks(),
		failures:  failures,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestFile runs the pipeline for one file. Unchanged completed documents
// are skipped without writing anything. A file that keeps failing with the
// same content is refused once its streak reaches the configured threshold.
// Conversion failures are recorded on the document and reported through the
// Outcome, not as an error; the returned error means the pipeline itself
// could not run (validation, I/O, persistence, cancellation).
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Outcome, error) {
	return p.ingest(ctx, path, false)
}

// IngestFileForced is IngestFile without the unchanged-content skip and the
// failure breaker; it also resets the path's failure streak.
func (p *Pipeline) IngestFileForced(ctx context.Context, path string) (*Outcome, error) {
	return p.ingest(ctx, path, true)
}

func (p *Pipeline) ingest(ctx context.Context, path string, forced bool) (*Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	release := p.locks.acquire(abs)
	defer release()

	info, err := p.validate(abs)
	if err != nil {
		return nil, err
	}

	hash, err := fingerprint.File(abs)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", abs, err)
	}
	if forced {
		p.failures.Remove(abs)
	} else if err := p.checkBreaker(abs, hash); err != nil {
		return nil, err
	}

	doc, err := p.store.GetDocumentByPath(ctx, abs)
	switch {
	case err == nil:
		if !forced && doc.Status == models.StatusCompleted && doc.ContentHash == hash {
			p.logger.Debug("skipping unchanged document",
				zap.String("path", abs), zap.String("document_id", doc.ID))
			return &Outcome{DocumentID: doc.ID, Status: doc.Status, Skipped: true}, nil
		}
	case errors.Is(err, storage.ErrNotFound):
		doc = &models.Document{
			SourcePath:  abs,
			Filename:    filepath.Base(abs),
			ContentHash: hash,
			FileSize:    info.Size,
			MimeType:    info.MimeType,
			Status:      models.StatusPending,
		}
		if err := p.store.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
	default:
		return nil, fmt.Errorf("look up document by path: %w", err)
	}

	if err := p.store.BeginProcessing(ctx, doc.ID, hash, info.Size, info.MimeType); err != nil {
		return nil, fmt.Errorf("begin processing: %w", err)
	}
	return p.process(ctx, doc.ID, abs, hash, info)
}

// process converts the file and persists the result. The document is in
// status processing on entry and leaves in completed, failed, or pending
// (on cancellation).
func (p *Pipeline) process(ctx context.Context, docID, abs, hash string, info fileinfo.Info) (*Outcome, error) {
	startedAt := p.now()

	cctx := ctx
	if timeout := p.cfg.Ingest.ConversionTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	opts := convert.Options{
		FormulaEnrichment: p.cfg.Ingest.FormulaEnrichmentOrDefault(),
		ExtractImages:     p.imagesEnabled(),
		ImageScale:        p.cfg.Images.Scale,
	}
	res, err := p.converter.Convert(cctx, abs, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, p.resetInterrupted(ctx, docID, abs)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			msg := fmt.Sprintf("conversion timed out after %s", p.cfg.Ingest.ConversionTimeout.Std())
			return p.failDocument(ctx, docID, abs, hash, msg, err)
		}
		return p.failDocument(ctx, docID, abs, hash, "conversion failed", err)
	}
	defer res.Cleanup()

	var (
		records     []models.DocumentImage
		imgWarnings []string
	)
	if p.imagesEnabled() && len(res.Images) > 0 {
		// Artifacts from a previous run are superseded by this one.
		if _, err := p.images.RemoveAll(docID); err != nil {
			p.logger.Warn("removing superseded image artifacts", zap.String("document_id", docID), zap.Error(err))
		}
		records, imgWarnings, err = p.images.Store(ctx, docID, startedAt, res.Images)
		if err != nil {
			if ctx.Err() != nil {
				return nil, p.resetInterrupted(ctx, docID, abs)
			}
			imgWarnings = append(imgWarnings, fmt.Sprintf("image storage unavailable: %v", err))
			records = nil
		}
	}

	for _, w := range res.Warnings {
		p.appendWarning(ctx, docID, w.String(), nil)
	}
	for _, w := range imgWarnings {
		p.appendWarning(ctx, docID, "image artifact skipped", map[string]string{"cause": w})
	}

	warnings := len(res.Warnings) + len(imgWarnings)
	meta := map[string]string{
		"file_extension":      info.Extension,
		"file_size_bytes":     strconv.FormatInt(info.Size, 10),
		"modified_time":       info.ModTime.UTC().Format(time.RFC3339),
		"mime_type":           info.MimeType,
		"conversion_warnings": strconv.Itoa(warnings),
		"image_count":         strconv.Itoa(len(records)),
		"content_length":      strconv.Itoa(len(res.Markdown)),
		"converter":           p.converter.Name(),
	}
	if res.PageCount > 0 {
		meta["page_count"] = strconv.Itoa(res.PageCount)
	}

	entry := &models.ProcessingLogEntry{
		DocumentID: docID,
		Level:      models.LogInfo,
		Message:    "processing completed",
		Details: detailsJSON(map[string]string{
			"content_length": strconv.Itoa(len(res.Markdown)),
			"image_count":    strconv.Itoa(len(records)),
			"warnings":       strconv.Itoa(warnings),
		}),
	}
	if err := p.store.CompleteDocument(ctx, docID, res.Markdown, meta, records, entry); err != nil {
		if p.images != nil {
			_ = p.images.Remove(docID, startedAt)
		}
		failEntry := &models.ProcessingLogEntry{
			DocumentID: docID,
			Level:      models.LogError,
			Message:    "failed to persist results",
			Details:    detailsJSON(map[string]string{"error": err.Error()}),
		}
		if ferr := p.store.MarkFailed(context.WithoutCancel(ctx), docID, failEntry); ferr != nil {
			p.logger.Error("marking document failed", zap.String("document_id", docID), zap.Error(ferr))
		}
		p.recordFailure(abs, hash)
		return nil, fmt.Errorf("persist document %s: %w", docID, err)
	}

	p.failures.Remove(abs)
	p.logger.Info("document ingested",
		zap.String("document_id", docID),
		zap.String("path", abs),
		zap.Int("content_length", len(res.Markdown)),
		zap.Int("images", len(records)),
		zap.Int("warnings", warnings))
	return &Outcome{DocumentID: docID, Status: models.StatusCompleted, Warnings: warnings}, nil
}

// DeleteDocument removes a document's rows (cascading metadata, logs, and
// image records) and its stored image artifacts. This is an administrative
// operation; the pipeline itself never deletes documents.
func (p *Pipeline) DeleteDocument(ctx context.Context, id string) error {
	if err := p.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if p.images != nil {
		if n, err := p.images.RemoveAll(id); err != nil {
			p.logger.Warn("removing image artifacts", zap.String("document_id", id), zap.Error(err))
		} else if n > 0 {
			p.logger.Debug("removed image artifact directories", zap.String("document_id", id), zap.Int("count", n))
		}
	}
	p.logger.Info("document deleted", zap.String("document_id", id))
	return nil
}

// Recover requeues documents left in status processing by an interrupted
// run. Call it before accepting new work.
func (p *Pipeline) Recover(ctx context.Context) (int, error) {
	n, err := p.store.RequeueStuck(ctx)
	if err != nil {
		return 0, fmt.Errorf("requeue stuck documents: %w", err)
	}
	if n > 0 {
		p.logger.Warn("requeued documents interrupted mid-processing", zap.Int("count", n))
	}
	return n, nil
}

// IngestDirectory walks dir and ingests every supported, non-excluded
// regular file. Per-file validation and conversion failures do not stop the
// walk. Returns the number of files handled (completed, skipped, or
// recorded as failed).
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	n := 0
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && p.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.excluded(d.Name()) || !p.converter.Supports(filepath.Ext(path)) {
			return nil
		}
		if _, err := p.IngestFile(ctx, path); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				p.logger.Debug("skipping file", zap.String("path", path), zap.String("reason", verr.Reason))
				return nil
			}
			return err
		}
		n++
		return nil
	})
	return n, err
}

// validate applies the pre-ingestion checks that reject a file before any
// document row exists.
func (p *Pipeline) validate(abs string) (fileinfo.Info, error) {
	base := filepath.Base(abs)
	if p.excluded(base) {
		return fileinfo.Info{}, &ValidationError{Path: abs, Reason: "name matches an exclude pattern"}
	}
	info, err := fileinfo.Probe(abs)
	if err != nil {
		return fileinfo.Info{}, fmt.Errorf("probe %s: %w", abs, err)
	}
	if !p.converter.Supports(info.Extension) {
		return fileinfo.Info{}, &ValidationError{Path: abs, Reason: fmt.Sprintf("unsupported extension %q", info.Extension)}
	}
	if max := p.cfg.Ingest.MaxFileSizeBytes(); max > 0 && info.Size > max {
		return fileinfo.Info{}, &ValidationError{Path: abs, Reason: fmt.Sprintf("file size %d exceeds limit of %d bytes", info.Size, max)}
	}
	return info, nil
}

func (p *Pipeline) excluded(name string) bool {
	for _, pattern := range p.cfg.Watch.ExcludePatterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (p *Pipeline) imagesEnabled() bool {
	return p.images != nil && p.cfg.Images.EnabledOrDefault()
}

// checkBreaker refuses a path whose current content has already failed
// enough times in a row. A changed fingerprint clears the streak.
func (p *Pipeline) checkBreaker(abs, hash string) error {
	threshold := p.cfg.Watch.FailureThreshold
	if threshold <= 0 {
		return nil
	}
	s, ok := p.failures.Get(abs)
	if !ok {
		return nil
	}
	if s.hash != hash {
		p.failures.Remove(abs)
		return nil
	}
	if s.count >= threshold {
		return &ValidationError{
			Path:   abs,
			Reason: fmt.Sprintf("refused after %d consecutive failures; modify the file or ingest it manually", s.count),
		}
	}
	return nil
}

func (p *Pipeline) recordFailure(abs, hash string) {
	s, ok := p.failures.Get(abs)
	if !ok || s.hash != hash {
		s = failureStreak{hash: hash}
	}
	s.count++
	p.failures.Add(abs, s)
}

// failDocument records a conversion failure on the document. The failure is
// part of the document's history, not a pipeline error, so the returned
// error is nil unless the failure itself could not be persisted.
func (p *Pipeline) failDocument(ctx context.Context, docID, abs, hash, message string, cause error) (*Outcome, error) {
	entry := &models.ProcessingLogEntry{
		DocumentID: docID,
		Level:      models.LogError,
		Message:    message,
		Details:    detailsJSON(map[string]string{"error": cause.Error()}),
	}
	if err := p.store.MarkFailed(ctx, docID, entry); err != nil {
		return nil, fmt.Errorf("mark document %s failed: %w", docID, err)
	}
	p.recordFailure(abs, hash)
	p.logger.Warn("document processing failed",
		zap.String("document_id", docID),
		zap.String("path", abs),
		zap.String("reason", message),
		zap.Error(cause))
	return &Outcome{DocumentID: docID, Status: models.StatusFailed}, nil
}

// resetInterrupted puts a document back to pending after a shutdown
// interrupted its conversion, and reports the cancellation to the caller.
func (p *Pipeline) resetInterrupted(ctx context.Context, docID, abs string) error {
	entry := &models.ProcessingLogEntry{
		DocumentID: docID,
		Level:      models.LogWarning,
		Message:    "processing interrupted by shutdown",
	}
	if err := p.store.ResetToPending(context.WithoutCancel(ctx), docID, entry); err != nil {
		p.logger.Error("resetting interrupted document", zap.String("document_id", docID), zap.Error(err))
	}
	p.logger.Info("processing interrupted", zap.String("document_id", docID), zap.String("path", abs))
	return ctx.Err()
}

func (p *Pipeline) appendWarning(ctx context.Context, docID, message string, details map[string]string) {
	entry := &models.ProcessingLogEntry{
		DocumentID: docID,
		Level:      models.LogWarning,
		Message:    message,
		Details:    detailsJSON(details),
	}
	if err := p.store.AppendLog(ctx, entry); err != nil {
		p.logger.Warn("appending warning log", zap.String("document_id", docID), zap.Error(err))
	}
}

// detailsJSON renders log details as a JSON object, or "" for none.
func detailsJSON(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// Supported reports whether the pipeline's converter handles the extension.
func (p *Pipeline) Supported(ext string) bool {
	return p.converter.Supports(strings.ToLower(ext))
}
