// Package imagestore persists extracted image artifacts on disk in a
// date-partitioned layout addressable by document ID.
package imagestore

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docsink/internal/convert"
	"github.com/hyperjump/docsink/internal/models"
)

// Store writes image artifacts under a base directory using the layout
// <base>/<year>/<month>/<day>/<document-id>/<kind>-<index>.<ext>, so a
// document's artifacts are re-derivable from its ID and ingestion date.
type Store struct {
	basePath       string
	maxFileSize    int64
	allowedFormats map[string]bool
	cleanupFailed  bool
	logger         *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFileSize caps the size of an individual artifact; larger files are
// skipped with a warning. Zero means no cap.
func WithMaxFileSize(n int64) Option {
	return func(s *Store) { s.maxFileSize = n }
}

// WithAllowedFormats restricts stored artifacts to the given extensions
// (without dot, case-insensitive). Empty means all formats.
func WithAllowedFormats(formats []string) Option {
	return func(s *Store) {
		s.allowedFormats = make(map[string]bool, len(formats))
		for _, f := range formats {
			s.allowedFormats[strings.ToLower(f)] = true
		}
	}
}

// WithCleanupFailed controls whether partial files are removed after a
// failed write.
func WithCleanupFailed(v bool) Option {
	return func(s *Store) { s.cleanupFailed = v }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store rooted at basePath.
func New(basePath string, opts ...Option) *Store {
	s := &Store{
		basePath:      basePath,
		cleanupFailed: true,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BasePath returns the root directory artifacts are stored under.
func (s *Store) BasePath() string { return s.basePath }

// DocumentDir returns the directory for a document's artifacts on the given
// date.
func (s *Store) DocumentDir(documentID string, when time.Time) string {
	return filepath.Join(s.basePath,
		fmt.Sprintf("%04d", when.Year()),
		fmt.Sprintf("%02d", when.Month()),
		fmt.Sprintf("%02d", when.Day()),
		documentID)
}

// Store writes the extracted artifacts for a document. Each artifact is
// written next to its final name and renamed into place so readers never see
// a partial file. Oversized or disallowed artifacts are skipped; the second
// return value carries one message per skipped artifact. Returned records
// have Position, ImagePath (relative to the base), dimensions, and sizes
// filled in.
func (s *Store) Store(ctx context.Context, documentID string, when time.Time, images []convert.ExtractedImage) ([]models.DocumentImage, []string, error) {
	if len(images) == 0 {
		return nil, nil, nil
	}
	dir := s.DocumentDir(documentID, when)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create image dir: %w", err)
	}

	var (
		records  []models.DocumentImage
		warnings []string
		position int
	)
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return records, warnings, err
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(img.Filename), "."))
		if len(s.allowedFormats) > 0 && !s.allowedFormats[ext] {
			warnings = append(warnings, fmt.Sprintf("%s: format %q not allowed", img.Filename, ext))
			continue
		}
		info, err := os.Stat(img.Path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", img.Filename, err))
			continue
		}
		if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
			warnings = append(warnings, fmt.Sprintf("%s: %d bytes exceeds limit of %d", img.Filename, info.Size(), s.maxFileSize))
			continue
		}

		kind := Classify(img.Filename)
		position++
		name := fmt.Sprintf("%s-%03d.%s", kind, position, ext)
		final := filepath.Join(dir, name)
		if err := s.writeAtomic(img.Path, final); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", img.Filename, err))
			position--
			continue
		}

		record := models.DocumentImage{
			DocumentID:       documentID,
			ImagePath:        filepath.Join(relativeDateDir(when), documentID, name),
			Filename:         img.Filename,
			Kind:             kind,
			Position:         position,
			FileSize:         info.Size(),
			ExtractionMethod: img.Method,
		}
		record.Width, record.Height, record.Format = probeImage(final)
		if record.Format == "" {
			record.Format = ext
		}
		records = append(records, record)
	}

	s.logger.Debug("stored image artifacts",
		zap.String("document_id", documentID),
		zap.Int("stored", len(records)),
		zap.Int("skipped", len(warnings)))
	return records, warnings, nil
}

// Remove deletes a document's artifact directory for the given date.
func (s *Store) Remove(documentID string, when time.Time) error {
	dir := s.DocumentDir(documentID, when)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove image dir: %w", err)
	}
	return nil
}

// RemoveAll deletes every artifact directory for the document across all
// dates, returning how many directories were removed.
func (s *Store) RemoveAll(documentID string) (int, error) {
	pattern := filepath.Join(s.basePath, "*", "*", "*", documentID)
	dirs, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("remove %s: %w", dir, err)
		}
		removed++
	}
	return removed, nil
}

// Resolve returns the absolute path for a stored record's relative path.
func (s *Store) Resolve(imagePath string) string {
	return filepath.Join(s.basePath, imagePath)
}

// writeAtomic copies src next to dst and renames it into place.
func (s *Store) writeAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		if s.cleanupFailed {
			_ = os.Remove(tmp)
		}
		return err
	}
	if err := out.Close(); err != nil {
		if s.cleanupFailed {
			_ = os.Remove(tmp)
		}
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		if s.cleanupFailed {
			_ = os.Remove(tmp)
		}
		return err
	}
	return nil
}

func relativeDateDir(when time.Time) string {
	return filepath.Join(
		fmt.Sprintf("%04d", when.Year()),
		fmt.Sprintf("%02d", when.Month()),
		fmt.Sprintf("%02d", when.Day()))
}

// Classify derives the image kind from an artifact's filename. Extraction
// tools encode the source element in the name; anything unrecognized is a
// picture.
func Classify(filename string) models.ImageKind {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "table"):
		return models.ImageTable
	case strings.Contains(name, "formula"), strings.Contains(name, "equation"):
		return models.ImageFormula
	case strings.Contains(name, "chart"):
		return models.ImageChart
	case strings.Contains(name, "diagram"):
		return models.ImageDiagram
	case strings.Contains(name, "page"):
		return models.ImagePage
	}
	return models.ImagePicture
}

// probeImage reads the header for dimensions and format. Unknown formats
// report zero dimensions and an empty format.
func probeImage(path string) (width, height int, format string) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, ""
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, ""
	}
	return cfg.Width, cfg.Height, format
}
