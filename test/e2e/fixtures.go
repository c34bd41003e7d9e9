// Package e2e provides end-to-end tests; this file builds minimal source files
// for the generated formats.
package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of file extensions used in E2E
// file-based tests. Covers plain text (.txt, .md, .csv), OOXML (.docx, .xlsx,
// .pptx), and OpenDocument (.odp, .ods). The engine also handles .pdf, .odt,
// and .rtf; those need real source files rather than minimal fixtures and are
// not generated here.
var SupportedFileExtensions = []string{
	".txt", ".md", ".csv",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// WriteMinimalFile returns the bytes of a minimal file of the given extension
// carrying the given text. For plain types the text is the file content; for
// binary types it is embedded so that conversion recovers it.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".txt", ".md":
		return []byte(text), nil
	case ".csv":
		return minimalCSV(text)
	case ".docx":
		return minimalDocx(text), nil
	case ".pptx":
		return minimalPptx(text), nil
	case ".odp":
		return minimalOdp(text), nil
	case ".ods":
		return minimalOds(text), nil
	case ".xlsx":
		return minimalXlsx(text), nil
	default:
		return []byte(text), nil
	}
}

// minimalCSV writes each non-empty line as a one-field record, quoted as
// needed, so the full text survives the table rendering.
func minimalCSV(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := w.Write([]string{line}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + xmlEscaper.Replace(text) + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalPptx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("ppt/slides/slide1.xml")
	_, _ = fw.Write([]byte(`<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + xmlEscaper.Replace(text) + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalOdp(text string) []byte {
	contentXML := `<office:document><office:body><draw:page><draw:text-box><text:p>` + xmlEscaper.Replace(text) + `</text:p></draw:text-box></draw:page></office:body></office:document>`
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(contentXML))
	_ = w.Close()
	return buf.Bytes()
}

func minimalOds(text string) []byte {
	contentXML := `<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>` + xmlEscaper.Replace(text) + `</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(contentXML))
	_ = w.Close()
	return buf.Bytes()
}

func minimalXlsx(text string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", text)
	var buf bytes.Buffer
	_, _ = f.WriteTo(&buf)
	return buf.Bytes()
}
