package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const pptxMediaPrefix = "ppt/media/"

// slideNameRe captures the slide number from ppt/slides/slideN.xml.
var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes on the opening tag.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// convertPPTX converts a .pptx file, one section per slide in deck order.
// A slide that fails to read becomes a warning. Embedded media files become
// image artifacts.
func (e *Engine) convertPPTX(ctx context.Context, path string, opts Options) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "read file", Err: err}
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &Error{Path: path, Reason: "not a zip archive", Err: err}
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	result := &Result{PageCount: len(slides)}
	var sections []string
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readZipFile(zr, s.file.Name)
		if err != nil {
			result.Warnings = append(result.Warnings, Warning{Stage: fmt.Sprintf("slide %d", s.num), Message: err.Error()})
			continue
		}
		var b strings.Builder
		for _, m := range atTag.FindAllStringSubmatch(string(data), -1) {
			text := strings.TrimSpace(m[1])
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(xmlEntities.Replace(text))
		}
		if b.Len() == 0 {
			continue
		}
		sections = append(sections, fmt.Sprintf("## Slide %d\n\n%s", s.num, b.String()))
	}
	result.Markdown = strings.Join(sections, "\n\n")

	if opts.ExtractImages {
		if err := e.extractZipMedia(zr, pptxMediaPrefix, "pptx-media", result); err != nil {
			result.Warnings = append(result.Warnings, Warning{Stage: "images", Message: err.Error()})
		}
	}
	return result, nil
}
