package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// convertXLSX renders each sheet as a section with a Markdown table. The
// first row of a sheet becomes the table header. A sheet that cannot be read
// becomes a warning; only a workbook with no readable content fails.
func (e *Engine) convertXLSX(ctx context.Context, path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "open workbook", Err: err}
	}
	defer f.Close()

	result := &Result{}
	var sections []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			result.Warnings = append(result.Warnings, Warning{Stage: fmt.Sprintf("sheet %q", sheet), Message: err.Error()})
			continue
		}
		table := markdownTable(rows)
		if table == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", sheet, table))
	}
	result.Markdown = strings.Join(sections, "\n\n")
	return result, nil
}

// markdownTable renders rows as a pipe table, first row as header. Ragged
// rows are padded to the widest row. Returns empty for no rows.
func markdownTable(rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return ""
	}

	var b strings.Builder
	for i, row := range rows {
		b.WriteString("|")
		for c := 0; c < width; c++ {
			cell := ""
			if c < len(row) {
				cell = escapeTableCell(row[c])
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
		if i == 0 {
			b.WriteString("|")
			for c := 0; c < width; c++ {
				b.WriteString(" --- |")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
