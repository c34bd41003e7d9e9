package e2e

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/docsink/internal/convert"
)

func TestWriteMinimalFile_AllExtensionsConvertible(t *testing.T) {
	e := convert.NewEngine()
	sample := "E2E ingestion sample content"
	for _, ext := range SupportedFileExtensions {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			content, err := WriteMinimalFile(ext, sample)
			if err != nil {
				t.Fatalf("WriteMinimalFile: %v", err)
			}
			if len(content) == 0 {
				t.Fatal("empty content")
			}
			path := filepath.Join(t.TempDir(), "sample"+ext)
			if err := os.WriteFile(path, content, 0o644); err != nil {
				t.Fatal(err)
			}
			res, err := e.Convert(context.Background(), path, convert.Options{})
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !strings.Contains(res.Markdown, sample) {
				t.Errorf("markdown %q does not contain %q", res.Markdown, sample)
			}
		})
	}
}

func TestWriteMinimalFile_MultiLineTextSurvives(t *testing.T) {
	e := convert.NewEngine()
	text := "Report Title\n\nBody sentence with the signature inside."
	for _, ext := range SupportedFileExtensions {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			content, err := WriteMinimalFile(ext, text)
			if err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(t.TempDir(), "multi"+ext)
			if err := os.WriteFile(path, content, 0o644); err != nil {
				t.Fatal(err)
			}
			res, err := e.Convert(context.Background(), path, convert.Options{})
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if !strings.Contains(res.Markdown, "signature inside") {
				t.Errorf("markdown %q lost the body text", res.Markdown)
			}
		})
	}
}
