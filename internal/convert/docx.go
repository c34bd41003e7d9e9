package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	docxMediaPrefix     = "word/media/"
)

// wtTag matches <w:t>text</w:t> with any attributes on the opening tag.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// mtTag matches OMML math text runs, <m:t>...</m:t>.
var mtTag = regexp.MustCompile(`<m:t[^>]*>([^<]*)</m:t>`)

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

var xmlEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

// convertDOCX converts a .docx file. The body XML is scanned paragraph by
// paragraph for text runs; with FormulaEnrichment on, OMML math runs are kept
// as inline $...$ markers. Embedded media files become image artifacts.
func (e *Engine) convertDOCX(ctx context.Context, path string, opts Options) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "read file", Err: err}
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &Error{Path: path, Reason: "not a zip archive", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, &Error{Path: path, Reason: fmt.Sprintf("%s not found", docPath), Err: err}
	}

	result := &Result{Markdown: docxMarkdown(string(docXML), opts.FormulaEnrichment)}

	if opts.ExtractImages {
		if err := e.extractZipMedia(zr, docxMediaPrefix, "docx-media", result); err != nil {
			result.Warnings = append(result.Warnings, Warning{Stage: "images", Message: err.Error()})
		}
	}
	return result, nil
}

// docxMarkdown renders the document body as paragraphs separated by blank
// lines. Runs inside a paragraph concatenate directly because the format
// splits runs mid-word at formatting boundaries.
func docxMarkdown(docXML string, formulas bool) string {
	var paragraphs []string
	for _, block := range strings.Split(docXML, "</w:p>") {
		var b strings.Builder
		for _, m := range wtTag.FindAllStringSubmatch(block, -1) {
			b.WriteString(m[1])
		}
		if formulas {
			for _, m := range mtTag.FindAllStringSubmatch(block, -1) {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString("$" + strings.TrimSpace(m[1]) + "$")
			}
		}
		text := strings.TrimSpace(xmlEntities.Replace(b.String()))
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// findDocxMainDocumentPath finds the main document path from
// [Content_Types].xml. Returns the path without leading slash, or empty
// string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil {
		return ""
	}
	content := string(data)
	if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	return ""
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not in archive", name)
}

// extractZipMedia copies media entries under prefix into the result temp
// directory as image artifacts.
func (e *Engine) extractZipMedia(zr *zip.Reader, prefix, method string, result *Result) error {
	var media []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && !strings.HasSuffix(f.Name, "/") {
			media = append(media, f)
		}
	}
	if len(media) == 0 {
		return nil
	}

	dir := result.TempDir
	if dir == "" {
		var err error
		dir, err = e.tempDir()
		if err != nil {
			return err
		}
		result.TempDir = dir
	}

	for _, f := range media {
		name := path.Base(f.Name)
		dst := filepath.Join(dir, name)
		if err := copyZipEntry(f, dst); err != nil {
			result.Warnings = append(result.Warnings, Warning{Stage: "images", Message: fmt.Sprintf("%s: %v", name, err)})
			continue
		}
		result.Images = append(result.Images, ExtractedImage{Path: dst, Filename: name, Method: method})
	}
	return nil
}

func copyZipEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
