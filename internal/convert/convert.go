// Package convert turns source documents into Markdown plus extracted image
// artifacts. Conversion is partial-success: recoverable per-part problems
// become warnings on the result, and only an unusable document fails hard.
package convert

import (
	"context"
	"fmt"
	"os"
)

// Options control a single conversion run.
type Options struct {
	// FormulaEnrichment renders embedded math as inline TeX-style markers
	// where the format exposes it.
	FormulaEnrichment bool
	// ExtractImages extracts embedded image artifacts into the result's
	// temp directory.
	ExtractImages bool
	// ImageScale is the requested render scale for image artifacts.
	// Zero means the default of 1.0. Valid range is 0.5 to 4.0.
	ImageScale float64
}

// Validate rejects option combinations before any conversion work starts.
func (o Options) Validate() error {
	if o.ImageScale != 0 && (o.ImageScale < 0.5 || o.ImageScale > 4.0) {
		return fmt.Errorf("image scale %.2f out of range (0.5-4.0)", o.ImageScale)
	}
	if !o.ExtractImages && o.ImageScale != 0 && o.ImageScale != 1.0 {
		return fmt.Errorf("image scale %.2f requires image extraction to be enabled", o.ImageScale)
	}
	return nil
}

// Scale returns the effective image scale.
func (o Options) Scale() float64 {
	if o.ImageScale == 0 {
		return 1.0
	}
	return o.ImageScale
}

// Warning records a recoverable problem in one part of a document.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Stage == "" {
		return w.Message
	}
	return w.Stage + ": " + w.Message
}

// Error is a hard conversion failure: the document produced no usable text.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("convert %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("convert %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ExtractedImage is one image artifact written under the result's temp
// directory. Path is absolute; Filename is the artifact's original name
// inside the source document where one exists.
type ExtractedImage struct {
	Path     string
	Filename string
	Method   string
}

// Result is the outcome of a successful (possibly partial) conversion.
type Result struct {
	Markdown  string
	Images    []ExtractedImage
	Warnings  []Warning
	PageCount int
	TempDir   string
}

// Cleanup removes the temp directory holding extracted image artifacts.
// Safe to call when no temp directory was created.
func (r *Result) Cleanup() {
	if r.TempDir != "" {
		_ = os.RemoveAll(r.TempDir)
		r.TempDir = ""
	}
}

// Converter converts source files to Markdown.
type Converter interface {
	Convert(ctx context.Context, path string, opts Options) (*Result, error)
	Supports(ext string) bool
	Name() string
}
