package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docsink/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist. WAL mode
// and foreign key enforcement are enabled on every connection.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT,
		markdown TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS document_metadata (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_metadata_document_id ON document_metadata(document_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_metadata_document_key ON document_metadata(document_id, key);

	CREATE TABLE IF NOT EXISTS processing_logs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_logs_document_id ON processing_logs(document_id);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON processing_logs(level);

	CREATE TABLE IF NOT EXISTS document_images (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		image_path TEXT NOT NULL,
		filename TEXT NOT NULL,
		kind TEXT NOT NULL,
		position INTEGER NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		width INTEGER,
		height INTEGER,
		format TEXT,
		extraction_method TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_images_document_id ON document_images(document_id);
	CREATE INDEX IF NOT EXISTS idx_images_kind ON document_images(kind);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, source_path, filename, content_hash, file_size, mime_type, markdown, status, created_at, updated_at, processed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var mimeType, markdown sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.SourcePath, &doc.Filename, &doc.ContentHash,
		&doc.FileSize, &mimeType, &markdown, &doc.Status,
		&doc.CreatedAt, &doc.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	doc.MimeType = mimeType.String
	doc.Markdown = markdown.String
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

// CreateDocument inserts a document. A missing ID is generated and a missing
// status defaults to pending.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	if !doc.Status.Valid() {
		return fmt.Errorf("invalid status %q", doc.Status)
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, source_path, filename, content_hash, file_size, mime_type, markdown, status, created_at, updated_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SourcePath, doc.Filename, doc.ContentHash, doc.FileSize,
		nullString(doc.MimeType), nullString(doc.Markdown), string(doc.Status),
		doc.CreatedAt, doc.UpdatedAt, nullTime(doc.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentByPath returns the document with the given source path.
func (s *SQLiteStore) GetDocumentByPath(ctx context.Context, sourcePath string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE source_path = ?`, sourcePath)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document at %s: %w", sourcePath, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentByHash returns the most recently created document with the given
// content hash.
func (s *SQLiteStore) GetDocumentByHash(ctx context.Context, contentHash string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1`,
		contentHash)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document with hash %s: %w", contentHash, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents newest first, optionally filtered by
// status. A non-positive limit returns all rows.
func (s *SQLiteStore) ListDocuments(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(limit), offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of documents, optionally filtered by status.
func (s *SQLiteStore) CountDocuments(ctx context.Context, status models.DocumentStatus) (int64, error) {
	var count int64
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE status = ?`, string(status)).Scan(&count)
	}
	return count, err
}

// CountByStatus returns document counts grouped by status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.DocumentStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.DocumentStatus(status)] = n
	}
	return counts, rows.Err()
}

// DeleteDocument removes a document; metadata, logs, and image rows cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// BeginProcessing marks the document as processing and refreshes the hash,
// size, and MIME type observed at pickup time. Persisted before conversion
// starts so a crash leaves a discoverable in-flight state.
func (s *SQLiteStore) BeginProcessing(ctx context.Context, id, contentHash string, fileSize int64, mimeType string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, content_hash = ?, file_size = ?, mime_type = ?, updated_at = ?
		 WHERE id = ?`,
		string(models.StatusProcessing), contentHash, fileSize, nullString(mimeType), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark processing: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// CompleteDocument finalizes a successful ingestion in one transaction:
// content and status on the document row, wholesale metadata replacement,
// wholesale image row replacement, and the completion log entry.
func (s *SQLiteStore) CompleteDocument(ctx context.Context, id, markdown string, metadata map[string]string, images []models.DocumentImage, entry *models.ProcessingLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE documents SET markdown = ?, status = ?, processed_at = ?, updated_at = ? WHERE id = ?`,
		markdown, string(models.StatusCompleted), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_metadata WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_metadata (id, document_id, key, value, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), id, k, metadata[k], now,
		); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", k, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_images WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear image records: %w", err)
	}
	for i := range images {
		img := &images[i]
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.DocumentID = id
		img.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_images (id, document_id, image_path, filename, kind, position, file_size, width, height, format, extraction_method, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			img.ID, img.DocumentID, img.ImagePath, img.Filename, string(img.Kind), img.Position,
			img.FileSize, nullInt(img.Width), nullInt(img.Height),
			nullString(img.Format), nullString(img.ExtractionMethod), img.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert image record %s: %w", img.Filename, err)
		}
	}

	if entry != nil {
		if err := insertLog(ctx, tx, id, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MarkFailed sets the document to failed and appends the error log entry in
// one transaction.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id string, entry *models.ProcessingLogEntry) error {
	return s.transition(ctx, id, models.StatusFailed, entry)
}

// ResetToPending returns the document to pending, recording why. Used when
// in-flight work is abandoned on shutdown.
func (s *SQLiteStore) ResetToPending(ctx context.Context, id string, entry *models.ProcessingLogEntry) error {
	return s.transition(ctx, id, models.StatusPending, entry)
}

func (s *SQLiteStore) transition(ctx context.Context, id string, status models.DocumentStatus, entry *models.ProcessingLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set status %s: %w", status, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if entry != nil {
		if err := insertLog(ctx, tx, id, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RequeueStuck returns every document stuck in processing to pending,
// logging each one. Called at startup before watching begins.
func (s *SQLiteStore) RequeueStuck(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM documents WHERE status = ?`, string(models.StatusProcessing))
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
			string(models.StatusPending), now, id,
		); err != nil {
			return 0, fmt.Errorf("failed to requeue %s: %w", id, err)
		}
		if err := insertLog(ctx, tx, id, &models.ProcessingLogEntry{
			Level:   models.LogWarning,
			Message: "requeued after interrupted processing",
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLog(ctx context.Context, e execer, documentID string, entry *models.ProcessingLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.DocumentID = documentID
	if entry.Level == "" {
		entry.Level = models.LogInfo
	}
	if !entry.Level.Valid() {
		return fmt.Errorf("invalid log level %q", entry.Level)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := e.ExecContext(ctx,
		`INSERT INTO processing_logs (id, document_id, level, message, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DocumentID, string(entry.Level), entry.Message,
		nullString(entry.Details), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// AppendLog records one audit entry for a document.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error {
	if entry.DocumentID == "" {
		return fmt.Errorf("log entry requires a document id")
	}
	return insertLog(ctx, s.db, entry.DocumentID, entry)
}

// ListLogs returns a document's audit entries oldest first, optionally
// filtered by level.
func (s *SQLiteStore) ListLogs(ctx context.Context, documentID string, level models.LogLevel, limit, offset int) ([]*models.ProcessingLogEntry, error) {
	query := `SELECT id, document_id, level, message, details, created_at FROM processing_logs WHERE document_id = ?`
	args := []any{documentID}
	if level != "" {
		query += ` AND level = ?`
		args = append(args, string(level))
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(limit), offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ProcessingLogEntry
	for rows.Next() {
		var e models.ProcessingLogEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Level, &e.Message, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Details = details.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetMetadata returns a document's metadata as a key/value map.
func (s *SQLiteStore) GetMetadata(ctx context.Context, documentID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM document_metadata WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

const imageColumns = `id, document_id, image_path, filename, kind, position, file_size, width, height, format, extraction_method, created_at`

func scanImage(row rowScanner) (*models.DocumentImage, error) {
	var img models.DocumentImage
	var width, height sql.NullInt64
	var format, method sql.NullString
	err := row.Scan(&img.ID, &img.DocumentID, &img.ImagePath, &img.Filename, &img.Kind,
		&img.Position, &img.FileSize, &width, &height, &format, &method, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	img.Width = int(width.Int64)
	img.Height = int(height.Int64)
	img.Format = format.String
	img.ExtractionMethod = method.String
	return &img, nil
}

// ListImages returns a document's image records in position order.
func (s *SQLiteStore) ListImages(ctx context.Context, documentID string) ([]*models.DocumentImage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM document_images WHERE document_id = ? ORDER BY position ASC`,
		documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.DocumentImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ListImagesByKind returns image records of one kind across all documents,
// newest first.
func (s *SQLiteStore) ListImagesByKind(ctx context.Context, kind models.ImageKind, limit, offset int) ([]*models.DocumentImage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM document_images WHERE kind = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		string(kind), normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*models.DocumentImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ImageStats returns aggregate counts and sizes for stored image records.
func (s *SQLiteStore) ImageStats(ctx context.Context) (*ImageStats, error) {
	stats := &ImageStats{ByKind: make(map[models.ImageKind]int64)}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM document_images`,
	).Scan(&stats.Count, &stats.TotalBytes)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM document_images GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		stats.ByKind[models.ImageKind(kind)] = n
	}
	return stats, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// normalizeLimit maps non-positive limits to SQLite's "no limit".
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
