package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docsink/internal/config"
	"github.com/hyperjump/docsink/internal/convert"
	"github.com/hyperjump/docsink/internal/imagestore"
	"github.com/hyperjump/docsink/internal/ingest"
	"github.com/hyperjump/docsink/internal/models"
	"github.com/hyperjump/docsink/internal/server"
	"github.com/hyperjump/docsink/internal/storage"
	"github.com/hyperjump/docsink/internal/watcher"
)

const e2eWaitTimeout = 15 * time.Second

func newTestConfig(dir string) *config.Config {
	return &config.Config{
		DatabasePath: filepath.Join(dir, "docsink.db"),
		Server:       config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Watch: config.WatchConfig{
			Directories:      []string{filepath.Join(dir, "inbox")},
			ExcludePatterns:  []string{".*", "*.tmp"},
			Debounce:         config.Duration(100 * time.Millisecond),
			MaxConcurrent:    4,
			QueueSize:        64,
			FailureThreshold: 3,
		},
		Ingest: config.IngestConfig{
			MaxFileSizeMB:     100,
			ConversionTimeout: config.Duration(time.Minute),
		},
		Images: config.ImagesConfig{
			BasePath:  filepath.Join(dir, "images"),
			MaxSizeMB: 20,
		},
	}
}

func newTestComponents(t *testing.T, cfg *config.Config) (*ingest.Pipeline, *storage.SQLiteStore, *imagestore.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	images := imagestore.New(cfg.Images.BasePath,
		imagestore.WithMaxFileSize(cfg.Images.MaxSizeBytes()))
	pipeline := ingest.NewPipeline(cfg, store, convert.NewEngine(), images)
	return pipeline, store, images
}

func TestE2E_IngestDirectoryCorpus(t *testing.T) {
	dir := t.TempDir()
	docDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docDir, 0755); err != nil {
		t.Fatal(err)
	}

	corpus := BuildCorpus()
	if corpus.TotalFiles == 0 {
		t.Fatal("corpus has no files")
	}
	paths, err := corpus.WriteTo(docDir)
	if err != nil {
		t.Fatal(err)
	}

	cfg := newTestConfig(dir)
	pipeline, store, _ := newTestComponents(t, cfg)
	ctx := context.Background()

	n, err := pipeline.IngestDirectory(ctx, docDir)
	if err != nil {
		t.Fatalf("ingest directory: %v", err)
	}
	if n != corpus.TotalFiles {
		t.Fatalf("expected %d files handled, got %d", corpus.TotalFiles, n)
	}

	t.Logf("ingested %d files from %s", n, docDir)

	for _, f := range corpus.Files {
		f := f
		t.Run(f.Name, func(t *testing.T) {
			doc, err := store.GetDocumentByPath(ctx, paths[f.Name])
			if err != nil {
				t.Fatalf("document for %s: %v", f.Name, err)
			}
			if doc.Status != models.StatusCompleted {
				t.Fatalf("status = %q, want %q", doc.Status, models.StatusCompleted)
			}
			if !strings.Contains(doc.Markdown, f.Phrase) {
				t.Errorf("markdown does not contain signature %q:\n%s", f.Phrase, doc.Markdown)
			}
			meta, err := store.GetMetadata(ctx, doc.ID)
			if err != nil {
				t.Fatal(err)
			}
			if meta["file_extension"] != f.Ext {
				t.Errorf("file_extension = %q, want %q", meta["file_extension"], f.Ext)
			}
		})
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.StatusCompleted] != int64(corpus.TotalFiles) {
		t.Errorf("completed = %d, want %d", counts[models.StatusCompleted], corpus.TotalFiles)
	}

	// A second pass over unchanged files skips everything and creates no rows.
	n2, err := pipeline.IngestDirectory(ctx, docDir)
	if err != nil {
		t.Fatalf("second ingest directory: %v", err)
	}
	if n2 != corpus.TotalFiles {
		t.Errorf("second pass handled %d files, want %d", n2, corpus.TotalFiles)
	}
	total, err := store.CountDocuments(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if total != int64(corpus.TotalFiles) {
		t.Errorf("document count after second pass = %d, want %d", total, corpus.TotalFiles)
	}
}

// TestE2E_WatchIngestsDroppedFiles runs the daemon wiring end to end: files
// dropped into a watched directory settle through the debounce, pass through
// the queue, and come out as completed documents.
func TestE2E_WatchIngestsDroppedFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir)
	inbox := cfg.Watch.Directories[0]
	pipeline, store, _ := newTestComponents(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	queue := watcher.NewQueue(pipeline, cfg.Watch.QueueSize, cfg.Watch.MaxConcurrent, nil)
	queue.Start(ctx)
	w := watcher.NewWatcher(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.ExcludePatterns,
		cfg.Watch.RecursiveOrDefault(), queue.Enqueue,
		watcher.WithDebounce(cfg.Watch.Debounce.Std()))
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer queue.Stop()
	defer cancel()
	defer w.Stop()

	// One file per generated extension, all dropped after the watch began.
	corpus := BuildCorpus()
	subset := corpus.Files[:len(SupportedFileExtensions)]
	written := make(map[string]string, len(subset))
	for _, f := range subset {
		data, err := WriteMinimalFile(f.Ext, f.Text)
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(inbox, f.Name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		written[f.Name] = path
	}

	waitForCompleted(t, store, len(subset))

	for _, f := range subset {
		doc, err := store.GetDocumentByPath(context.Background(), written[f.Name])
		if err != nil {
			t.Fatalf("document for %s: %v", f.Name, err)
		}
		if doc.Status != models.StatusCompleted {
			t.Errorf("%s: status = %q, want %q", f.Name, doc.Status, models.StatusCompleted)
		}
		if !strings.Contains(doc.Markdown, f.Phrase) {
			t.Errorf("%s: markdown does not contain signature %q", f.Name, f.Phrase)
		}
	}

	// Overwriting a completed file re-ingests it with the new content.
	updated := subset[0]
	revised := "Revised Report\n\nThe revised quarterly summary replaces the original."
	if err := os.WriteFile(written[updated.Name], []byte(revised), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(e2eWaitTimeout)
	for {
		doc, err := store.GetDocumentByPath(context.Background(), written[updated.Name])
		if err == nil && strings.Contains(doc.Markdown, "revised quarterly summary") {
			if doc.Status != models.StatusCompleted {
				t.Errorf("re-ingested status = %q, want %q", doc.Status, models.StatusCompleted)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s to be re-ingested", updated.Name)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func waitForCompleted(t *testing.T, store storage.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(e2eWaitTimeout)
	for {
		counts, err := store.CountByStatus(context.Background())
		if err == nil && counts[models.StatusCompleted] >= int64(want) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d completed documents, have %v", want, counts)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// TestE2E_HTTPIngestAndQuery exercises the API against the real pipeline and
// storage: ingest over HTTP, then read the document back through every
// endpoint and delete it.
func TestE2E_HTTPIngestAndQuery(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir)
	pipeline, store, _ := newTestComponents(t, cfg)

	srv := server.NewServer(store, pipeline, cfg, zap.NewNop(), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var source CorpusFile
	for _, f := range BuildCorpus().Files {
		if f.Ext == ".docx" {
			source = f
			break
		}
	}
	if source.Name == "" {
		t.Fatal("corpus has no .docx file")
	}
	data, err := WriteMinimalFile(source.Ext, source.Text)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, source.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]string{"path": path})
	resp, err := http.Post(ts.URL+"/api/v1/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}
	var ingestResp struct {
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
		Skipped    bool   `json:"skipped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ingestResp); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if ingestResp.Status != string(models.StatusCompleted) {
		t.Fatalf("ingest outcome = %+v", ingestResp)
	}

	resp, err = http.Get(ts.URL + "/api/v1/documents/" + ingestResp.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get document status = %d", resp.StatusCode)
	}
	var docResp struct {
		Document models.Document   `json:"document"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&docResp); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !strings.Contains(docResp.Document.Markdown, source.Phrase) {
		t.Errorf("markdown does not contain signature %q", source.Phrase)
	}
	if docResp.Metadata["file_extension"] != ".docx" {
		t.Errorf("file_extension = %q", docResp.Metadata["file_extension"])
	}

	resp, err = http.Get(ts.URL + "/api/v1/documents")
	if err != nil {
		t.Fatal(err)
	}
	var listResp struct {
		Documents []*models.Document `json:"documents"`
		Count     int                `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if listResp.Count != 1 || len(listResp.Documents) != 1 {
		t.Fatalf("list = %+v", listResp)
	}
	if listResp.Documents[0].ID != ingestResp.DocumentID {
		t.Errorf("listed id = %q, want %q", listResp.Documents[0].ID, ingestResp.DocumentID)
	}

	resp, err = http.Get(ts.URL + "/api/v1/documents/" + ingestResp.DocumentID + "/logs")
	if err != nil {
		t.Fatal(err)
	}
	var logsResp struct {
		Logs []*models.ProcessingLogEntry `json:"logs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&logsResp); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(logsResp.Logs) == 0 {
		t.Error("expected at least one processing log entry")
	}

	resp, err = http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var statusResp struct {
		Documents struct {
			Total    int64            `json:"total"`
			ByStatus map[string]int64 `json:"by_status"`
		} `json:"documents"`
		Config struct {
			DatabasePath string `json:"database_path"`
		} `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if statusResp.Documents.Total != 1 || statusResp.Documents.ByStatus["completed"] != 1 {
		t.Errorf("status documents = %+v", statusResp.Documents)
	}
	if statusResp.Config.DatabasePath != cfg.DatabasePath {
		t.Errorf("status database_path = %q", statusResp.Config.DatabasePath)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/documents/"+ingestResp.DocumentID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, err = http.Get(ts.URL + "/api/v1/documents/" + ingestResp.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

// TestE2E_DocxMediaArtifacts ingests a document with embedded media and
// verifies the artifact lands on disk with a matching database record.
func TestE2E_DocxMediaArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir)
	pipeline, store, images := newTestComponents(t, cfg)
	ctx := context.Background()

	png := []byte("\x89PNG\r\n\x1a\nnot a real image")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, _ := zw.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Field survey with one photograph.</w:t></w:r></w:p></w:body></w:document>`))
	mw, _ := zw.Create("word/media/photo.png")
	_, _ = mw.Write(png)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "survey.docx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := pipeline.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != models.StatusCompleted {
		t.Fatalf("outcome = %+v", out)
	}

	records, err := store.ListImages(ctx, out.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 image record, got %d", len(records))
	}
	img := records[0]
	if img.Filename != "photo.png" || img.Kind != models.ImagePicture {
		t.Errorf("image record = %+v", img)
	}
	stored, err := os.ReadFile(images.Resolve(img.ImagePath))
	if err != nil {
		t.Fatalf("read stored artifact: %v", err)
	}
	if !bytes.Equal(stored, png) {
		t.Error("stored artifact differs from embedded media")
	}

	meta, err := store.GetMetadata(ctx, out.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if meta["image_count"] != "1" {
		t.Errorf("image_count = %q, want \"1\"", meta["image_count"])
	}
}
