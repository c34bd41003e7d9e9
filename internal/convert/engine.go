package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// engineName identifies the built-in converter in metadata and logs.
const engineName = "docsink-engine/1"

// Engine is the built-in Converter. It handles PDF, the OOXML and
// OpenDocument office formats, RTF, CSV, and plain text.
type Engine struct {
	logger *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for conversion diagnostics.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine returns the built-in converter.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine identifier recorded in document metadata.
func (e *Engine) Name() string { return engineName }

// Supports reports whether the engine can convert files with the given
// extension (leading dot, any case).
func (e *Engine) Supports(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".ods", ".odp", ".rtf", ".csv", ".md", ".txt":
		return true
	}
	return false
}

// Convert reads the file at path and produces Markdown plus image artifacts.
// Option validation failures and unsupported formats fail before any work.
// An empty-text outcome is a hard failure even when parts of the document
// converted; per-part problems otherwise surface as result warnings.
func (e *Engine) Convert(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, &Error{Path: path, Reason: "invalid options", Err: err}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !e.Supports(ext) {
		return nil, &Error{Path: path, Reason: fmt.Sprintf("unsupported format %q", ext)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		result *Result
		err    error
	)
	switch ext {
	case ".pdf":
		result, err = e.convertPDF(ctx, path, opts)
	case ".docx":
		result, err = e.convertDOCX(ctx, path, opts)
	case ".xlsx":
		result, err = e.convertXLSX(ctx, path)
	case ".pptx":
		result, err = e.convertPPTX(ctx, path, opts)
	case ".odt", ".rtf":
		result, err = e.convertWithCat(path)
	case ".ods", ".odp":
		result, err = e.convertOpenDocument(path)
	case ".csv":
		result, err = e.convertCSV(path)
	default:
		result, err = e.convertPlain(path)
	}
	if err != nil {
		return nil, err
	}

	result.Markdown = strings.TrimSpace(result.Markdown)
	if result.Markdown == "" {
		reason := "produced no text"
		if n := len(result.Warnings); n > 0 {
			reason = fmt.Sprintf("produced no text (%d extraction warnings)", n)
		}
		result.Cleanup()
		return nil, &Error{Path: path, Reason: reason}
	}

	e.logger.Debug("converted document",
		zap.String("path", path),
		zap.Int("markdown_bytes", len(result.Markdown)),
		zap.Int("images", len(result.Images)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// tempDir creates the per-conversion scratch directory for image artifacts.
func (e *Engine) tempDir() (string, error) {
	dir, err := os.MkdirTemp("", "docsink-convert-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}
