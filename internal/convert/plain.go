package convert

import (
	"encoding/csv"
	"os"
	"strings"
	"unicode/utf8"
)

// convertPlain passes .txt and .md content through, validated as UTF-8.
func (e *Engine) convertPlain(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "read file", Err: err}
	}
	return &Result{Markdown: sanitizeUTF8(string(content))}, nil
}

// convertCSV renders the file as one Markdown table, first record as header.
func (e *Engine) convertCSV(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "read file", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &Error{Path: path, Reason: "parse csv", Err: err}
	}
	return &Result{Markdown: markdownTable(rows)}, nil
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement
// character.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s
}
