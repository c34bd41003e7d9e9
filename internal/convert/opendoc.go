package convert

import (
	"archive/zip"
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/lu4p/cat"
)

const odContentPath = "content.xml"

// odTextTag matches OpenDocument text elements in document order. Nested
// markup inside an element is not descended into; the inner elements match
// on their own.
var odTextTag = regexp.MustCompile(`<text:(p|h|span)\b[^>]*>([^<]+)</text:`)

// convertWithCat handles .odt and .rtf through the cat text extractor.
func (e *Engine) convertWithCat(path string) (*Result, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "extract text", Err: err}
	}
	return &Result{Markdown: sanitizeUTF8(text)}, nil
}

// convertOpenDocument handles .ods and .odp by scanning content.xml for text
// elements. Headings become Markdown sections; paragraphs and spans become
// body text.
func (e *Engine) convertOpenDocument(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "read file", Err: err}
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &Error{Path: path, Reason: "not a zip archive", Err: err}
	}
	contentXML, err := readZipFile(zr, odContentPath)
	if err != nil {
		return nil, &Error{Path: path, Reason: odContentPath + " not found", Err: err}
	}

	var blocks []string
	for _, m := range odTextTag.FindAllStringSubmatch(string(contentXML), -1) {
		text := strings.TrimSpace(xmlEntities.Replace(m[2]))
		if text == "" {
			continue
		}
		if m[1] == "h" {
			blocks = append(blocks, "## "+text)
		} else {
			blocks = append(blocks, text)
		}
	}
	return &Result{Markdown: strings.Join(blocks, "\n\n")}, nil
}
