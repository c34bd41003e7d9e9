package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/docsink/internal/config"
	"github.com/hyperjump/docsink/internal/convert"
	"github.com/hyperjump/docsink/internal/imagestore"
	"github.com/hyperjump/docsink/internal/models"
	"github.com/hyperjump/docsink/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Ingest.MaxFileSizeMB = 1
	cfg.Images.BasePath = t.TempDir()
	return cfg
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestPipeline wires a pipeline against a real store, a real image store,
// and the real conversion engine.
func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, storage.Store) {
	t.Helper()
	store := newTestStore(t)
	images := imagestore.New(cfg.Images.BasePath)
	p := NewPipeline(cfg, store, convert.NewEngine(), images, WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	}))
	return p, store
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

// stubConverter lets tests drive failure and cancellation paths.
type stubConverter struct {
	res   *convert.Result
	err   error
	block bool
}

func (s *stubConverter) Convert(ctx context.Context, path string, opts convert.Options) (*convert.Result, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	res := *s.res
	return &res, nil
}

func (s *stubConverter) Supports(string) bool { return true }
func (s *stubConverter) Name() string         { return "stub-converter/1" }

func TestIngestFile_CompletesDocument(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(t, cfg)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "notes.txt", "hello world")

	out, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if out.Status != models.StatusCompleted || out.Skipped {
		t.Fatalf("outcome = %+v, want completed and not skipped", out)
	}

	doc, err := store.GetDocument(ctx, out.DocumentID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Markdown != "hello world" {
		t.Errorf("markdown = %q", doc.Markdown)
	}
	if len(doc.ContentHash) != 64 {
		t.Errorf("content hash = %q, want sha256 hex", doc.ContentHash)
	}
	if doc.ProcessedAt == nil {
		t.Error("processed_at not set")
	}

	meta, err := store.GetMetadata(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta["file_extension"] != ".txt" {
		t.Errorf("file_extension = %q", meta["file_extension"])
	}
	if meta["content_length"] != "11" {
		t.Errorf("content_length = %q, want 11", meta["content_length"])
	}
	if meta["converter"] == "" {
		t.Error("converter metadata missing")
	}

	logs, err := store.ListLogs(ctx, doc.ID, "", 0, 0)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Level != models.LogInfo || logs[0].Message != "processing completed" {
		t.Errorf("logs = %+v, want a single completion entry", logs)
	}
}

func TestIngestFile_SkipsUnchanged(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(t, cfg)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "notes.txt", "stable content")

	first, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("first IngestFile: %v", err)
	}
	second, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("second IngestFile: %v", err)
	}
	if !second.Skipped {
		t.Fatal("second ingestion not skipped")
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("document IDs differ: %s vs %s", first.DocumentID, second.DocumentID)
	}

	logs, err := store.ListLogs(ctx, first.DocumentID, "", 0, 0)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("got %d log entries after skip, want 1 (skips write nothing)", len(logs))
	}
}

func TestIngestFile_ReprocessesChangedContent(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(t, cfg)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "version one")

	first, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("first IngestFile: %v", err)
	}

	writeFile(t, dir, "notes.txt", "version two")
	second, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("second IngestFile: %v", err)
	}
	if second.Skipped {
		t.Fatal("changed file was skipped")
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("reprocessing created a new document: %s vs %s", first.DocumentID, second.DocumentID)
	}

	doc, err := store.GetDocument(ctx, first.DocumentID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Markdown != "version two" {
		t.Errorf("markdown = %q, want updated content", doc.Markdown)
	}

	logs, _ := store.ListLogs(ctx, first.DocumentID, "", 0, 0)
	if len(logs) != 2 {
		t.Errorf("got %d log entries, want 2 completion entries", len(logs))
	}
}

func TestIngestFileForced_ReprocessesUnchanged(t *testing.T) {
	cfg := testConfig(t)
	p, _ := newTestPipeline(t, cfg)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "notes.txt", "same bytes")

	if _, err := p.IngestFile(ctx, path); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	out, err := p.IngestFileForced(ctx, path)
	if err != nil {
		t.Fatalf("IngestFileForced: %v", err)
	}
	if out.Skipped {
		t.Error("forced ingestion was skipped")
	}
	if out.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", out.Status)
	}
}

func TestIngestFile_ValidationWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(t, cfg)
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"unsupported extension", writeFile(t, dir, "binary.exe", "MZ")},
		{"hidden file", writeFile(t, dir, ".draft.txt", "hidden")},
		{"editor backup", writeFile(t, dir, "~notes.txt", "backup")},
		{"temp file", writeFile(t, dir, "upload.tmp", "partial")},
		{"oversized", writeFile(t, dir, "big.txt", strings.Repeat("x", 1<<20+1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.IngestFile(ctx, tt.path)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
		})
	}

	n, err := store.CountDocuments(ctx, "")
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 0 {
		t.Errorf("%d documents created by rejected files, want 0", n)
	}
}

func TestIngestFile_MissingFile(t *testing.T) {
	cfg := testConfig(t)
	p, _ := newTestPipeline(t, cfg)

	_, err := p.IngestFile(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want wrapped fs.ErrNotExist", err)
	}
}

func TestIngestFile_ConversionFailureRecorded(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t)
	conv := &stubConverter{err: &convert.Error{Path: "x", Reason: "extract text", Err: errors.New("boom")}}
	p := NewPipeline(cfg, store, conv, imagestore.New(cfg.Images.BasePath))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "broken.pdf", "not a pdf")

	out, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile returned error for recorded failure: %v", err)
	}
	if out.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", out.Status)
	}

	doc, err := store.GetDocument(ctx, out.DocumentID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Status != models.StatusFailed {
		t.Errorf("stored status = %q, want failed", doc.Status)
	}

	logs, err := store.ListLogs(ctx, out.DocumentID, models.LogError, 0, 0)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d error logs, want 1", len(logs))
	}
	if logs[0].Message != "conversion failed" {
		t.Errorf("message = %q", logs[0].Message)
	}
	if !strings.Contains(logs[0].Details, "boom") {
		t.Errorf("details = %q, want cause included", logs[0].Details)
	}
}

func TestIngestFile_FailureBreaker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.FailureThreshold = 2
	store := newTestStore(t)
	conv := &stubConverter{err: &convert.Error{Path: "x", Reason: "extract text", Err: errors.New("boom")}}
	p := NewPipeline(cfg, store, conv, imagestore.New(cfg.Images.BasePath))
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "cursed.pdf", "v1")

	for i := 0; i < 2; i++ {
		out, err := p.IngestFile(ctx, path)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if out.Status != models.StatusFailed {
			t.Fatalf("attempt %d status = %q", i+1, out.Status)
		}
	}

	_, err := p.IngestFile(ctx, path)
	var verr *ValidationError
	if !errors.As(err, &verr) || !strings.Contains(verr.Reason, "consecutive failures") {
		t.Fatalf("err = %v, want breaker refusal", err)
	}

	// Changed content clears the streak.
	writeFile(t, dir, "cursed.pdf", "v2")
	if out, err := p.IngestFile(ctx, path); err != nil || out.Status != models.StatusFailed {
		t.Fatalf("after change: out=%+v err=%v, want a fresh failed attempt", out, err)
	}

	// A forced ingest bypasses the breaker even at the threshold.
	if _, err := p.IngestFile(ctx, path); err != nil {
		t.Fatalf("second attempt on v2: %v", err)
	}
	if _, err := p.IngestFile(ctx, path); !errors.As(err, &verr) {
		t.Fatalf("err = %v, want breaker refusal at threshold", err)
	}
	if out, err := p.IngestFileForced(ctx, path); err != nil || out.Status != models.StatusFailed {
		t.Fatalf("forced: out=%+v err=%v, want bypassed attempt", out, err)
	}
}

func TestIngestFile_TimeoutRecordedAsFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.ConversionTimeout = config.Duration(30 * time.Millisecond)
	store := newTestStore(t)
	p := NewPipeline(cfg, store, &stubConverter{block: true}, imagestore.New(cfg.Images.BasePath))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "slow.pdf", "content")

	out, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if out.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", out.Status)
	}

	logs, _ := store.ListLogs(ctx, out.DocumentID, models.LogError, 0, 0)
	if len(logs) != 1 || !strings.Contains(logs[0].Message, "timed out") {
		t.Errorf("logs = %+v, want timeout entry", logs)
	}
}

func TestIngestFile_CancellationResetsToPending(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t)
	p := NewPipeline(cfg, store, &stubConverter{block: true}, imagestore.New(cfg.Images.BasePath))
	path := writeFile(t, t.TempDir(), "doc.pdf", "content")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := p.IngestFile(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	doc, err := store.GetDocumentByPath(context.Background(), mustAbs(t, path))
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.Status != models.StatusPending {
		t.Errorf("status = %q, want pending after interruption", doc.Status)
	}

	logs, _ := store.ListLogs(context.Background(), doc.ID, models.LogWarning, 0, 0)
	if len(logs) != 1 || !strings.Contains(logs[0].Message, "interrupted") {
		t.Errorf("logs = %+v, want interruption warning", logs)
	}
}

func TestIngestFile_StoresImages(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t)
	artifacts := t.TempDir()
	imgPath := writeFile(t, artifacts, "table-1.png", "fake png bytes")
	conv := &stubConverter{res: &convert.Result{
		Markdown: "# Report",
		Images:   []convert.ExtractedImage{{Path: imgPath, Filename: "table-1.png", Method: "pdfcpu"}},
	}}
	images := imagestore.New(cfg.Images.BasePath)
	p := NewPipeline(cfg, store, conv, images)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "report.pdf", "content")

	out, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if out.Status != models.StatusCompleted {
		t.Fatalf("status = %q", out.Status)
	}

	rows, err := store.ListImages(ctx, out.DocumentID)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d image rows, want 1", len(rows))
	}
	if rows[0].Kind != models.ImageTable {
		t.Errorf("kind = %q, want table", rows[0].Kind)
	}
	if _, err := os.Stat(images.Resolve(rows[0].ImagePath)); err != nil {
		t.Errorf("backing file missing: %v", err)
	}

	meta, _ := store.GetMetadata(ctx, out.DocumentID)
	if meta["image_count"] != "1" {
		t.Errorf("image_count = %q, want 1", meta["image_count"])
	}
}

func TestIngestFile_ImagesDisabled(t *testing.T) {
	cfg := testConfig(t)
	disabled := false
	cfg.Images.Enabled = &disabled
	store := newTestStore(t)
	artifacts := t.TempDir()
	imgPath := writeFile(t, artifacts, "pic.png", "bytes")
	conv := &stubConverter{res: &convert.Result{
		Markdown: "text",
		Images:   []convert.ExtractedImage{{Path: imgPath, Filename: "pic.png", Method: "pdfcpu"}},
	}}
	p := NewPipeline(cfg, store, conv, imagestore.New(cfg.Images.BasePath))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "doc.pdf", "content")

	out, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	rows, _ := store.ListImages(ctx, out.DocumentID)
	if len(rows) != 0 {
		t.Errorf("got %d image rows with images disabled, want 0", len(rows))
	}
}

func TestIngestFile_ImageWarningIsolated(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t)
	conv := &stubConverter{res: &convert.Result{
		Markdown: "body",
		Images:   []convert.ExtractedImage{{Path: "/nonexistent/gone.png", Filename: "gone.png", Method: "pdfcpu"}},
	}}
	p := NewPipeline(cfg, store, conv, imagestore.New(cfg.Images.BasePath))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "doc.pdf", "content")

	out, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if out.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed despite image failure", out.Status)
	}
	if out.Warnings != 1 {
		t.Errorf("warnings = %d, want 1", out.Warnings)
	}

	logs, _ := store.ListLogs(ctx, out.DocumentID, models.LogWarning, 0, 0)
	if len(logs) != 1 || logs[0].Message != "image artifact skipped" {
		t.Errorf("logs = %+v, want one skip warning", logs)
	}
	meta, _ := store.GetMetadata(ctx, out.DocumentID)
	if meta["conversion_warnings"] != "1" {
		t.Errorf("conversion_warnings = %q, want 1", meta["conversion_warnings"])
	}
}

// failingStore makes the final persistence step fail.
type failingStore struct {
	storage.Store
	completeErr error
}

func (s *failingStore) CompleteDocument(ctx context.Context, id, markdown string, metadata map[string]string, images []models.DocumentImage, entry *models.ProcessingLogEntry) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	return s.Store.CompleteDocument(ctx, id, markdown, metadata, images, entry)
}

func TestIngestFile_PersistenceFailureCleansImages(t *testing.T) {
	cfg := testConfig(t)
	inner := newTestStore(t)
	store := &failingStore{Store: inner, completeErr: errors.New("disk full")}
	artifacts := t.TempDir()
	imgPath := writeFile(t, artifacts, "pic.png", "bytes")
	conv := &stubConverter{res: &convert.Result{
		Markdown: "body",
		Images:   []convert.ExtractedImage{{Path: imgPath, Filename: "pic.png", Method: "pdfcpu"}},
	}}
	images := imagestore.New(cfg.Images.BasePath)
	when := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p := NewPipeline(cfg, store, conv, images, WithClock(func() time.Time { return when }))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "doc.pdf", "content")

	_, err := p.IngestFile(ctx, path)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want surfaced persistence failure", err)
	}

	doc, err := inner.GetDocumentByPath(ctx, mustAbs(t, path))
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", doc.Status)
	}
	if _, err := os.Stat(images.DocumentDir(doc.ID, when)); !os.IsNotExist(err) {
		t.Errorf("image artifacts left behind after persistence failure")
	}
}

func TestDeleteDocument_RemovesRowsAndArtifacts(t *testing.T) {
	cfg := testConfig(t)
	store := newTestStore(t)
	artifacts := t.TempDir()
	imgPath := writeFile(t, artifacts, "pic.png", "bytes")
	conv := &stubConverter{res: &convert.Result{
		Markdown: "body",
		Images:   []convert.ExtractedImage{{Path: imgPath, Filename: "pic.png", Method: "pdfcpu"}},
	}}
	images := imagestore.New(cfg.Images.BasePath)
	when := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p := NewPipeline(cfg, store, conv, images, WithClock(func() time.Time { return when }))
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "doc.pdf", "content")

	out, err := p.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	if err := p.DeleteDocument(ctx, out.DocumentID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := store.GetDocument(ctx, out.DocumentID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetDocument after delete = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(images.DocumentDir(out.DocumentID, when)); !os.IsNotExist(err) {
		t.Error("artifact directory still present after delete")
	}

	if err := p.DeleteDocument(ctx, out.DocumentID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestIngestDirectory(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(t, cfg)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.md", "# beta")
	writeFile(t, dir, "c.exe", "MZ")
	writeFile(t, dir, ".hidden.txt", "nope")
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "d.txt", "delta")

	n, err := p.IngestDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if n != 3 {
		t.Errorf("handled %d files, want 3", n)
	}

	count, err := store.CountDocuments(ctx, models.StatusCompleted)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if count != 3 {
		t.Errorf("completed documents = %d, want 3", count)
	}
}

func TestRecover(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(t, cfg)
	ctx := context.Background()

	doc := &models.Document{
		SourcePath:  "/tmp/stuck.pdf",
		Filename:    "stuck.pdf",
		ContentHash: strings.Repeat("a", 64),
		FileSize:    10,
		Status:      models.StatusPending,
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := store.BeginProcessing(ctx, doc.ID, doc.ContentHash, doc.FileSize, ""); err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}

	n, err := p.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Errorf("requeued %d, want 1", n)
	}

	got, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestIngestFile_SamePathSerializes(t *testing.T) {
	cfg := testConfig(t)
	p, store := newTestPipeline(t, cfg)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "contended.txt", "shared content")

	var wg sync.WaitGroup
	outcomes := make([]*Outcome, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = p.IngestFile(ctx, path)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}
	skipped := 0
	for _, out := range outcomes {
		if out.Skipped {
			skipped++
		}
		if out.DocumentID != outcomes[0].DocumentID {
			t.Error("goroutines produced different documents")
		}
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want exactly 1 (second run queues behind and skips)", skipped)
	}

	logs, err := store.ListLogs(ctx, outcomes[0].DocumentID, "", 0, 0)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("got %d log entries, want exactly 1 completion", len(logs))
	}
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}
