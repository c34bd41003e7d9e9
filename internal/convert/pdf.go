package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// convertPDF extracts text page by page and, when requested, the embedded
// image artifacts. A page that fails to extract becomes a warning and the
// remaining pages still convert.
func (e *Engine) convertPDF(ctx context.Context, path string, opts Options) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "read file", Err: err}
	}

	result := &Result{}
	if n, err := api.PageCountFile(path); err == nil {
		result.PageCount = n
	} else {
		result.Warnings = append(result.Warnings, Warning{Stage: "page count", Message: err.Error()})
	}

	markdown, warnings, err := pdfText(ctx, content)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &Error{Path: path, Reason: "extract text", Err: err}
	}
	result.Markdown = markdown
	result.Warnings = append(result.Warnings, warnings...)

	if opts.ExtractImages {
		if err := e.extractPDFImages(path, result); err != nil {
			result.Warnings = append(result.Warnings, Warning{Stage: "images", Message: err.Error()})
		}
	}
	return result, nil
}

// pdfText walks the pages collecting plain text. The reader panics on some
// malformed files, which is reported as an error rather than crashing the
// worker.
func pdfText(ctx context.Context, content []byte) (markdown string, warnings []Warning, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			warnings = append(warnings, Warning{Stage: fmt.Sprintf("page %d", i), Message: err.Error()})
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
	}
	return buf.String(), warnings, nil
}

// pageText isolates per-page panics so one bad page degrades to a warning.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}

// extractPDFImages pulls embedded images into the result temp directory.
func (e *Engine) extractPDFImages(path string, result *Result) error {
	dir, err := e.tempDir()
	if err != nil {
		return err
	}
	if err := api.ExtractImagesFile(path, dir, nil, nil); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("extract images: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("list extracted images: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		_ = os.RemoveAll(dir)
		return nil
	}
	sort.Strings(names)

	result.TempDir = dir
	for _, name := range names {
		result.Images = append(result.Images, ExtractedImage{
			Path:     filepath.Join(dir, name),
			Filename: name,
			Method:   "pdfcpu",
		})
	}
	e.logger.Debug("extracted pdf images", zap.String("path", path), zap.Int("count", len(names)))
	return nil
}
