// Package fileinfo probes filesystem metadata for ingestion candidates.
package fileinfo

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Info holds the metadata recorded for a source file at ingestion time.
type Info struct {
	Size      int64
	MimeType  string
	ModTime   time.Time
	Extension string
}

// Office formats the stdlib mime table does not always know.
var extraMimeTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".odp":  "application/vnd.oasis.opendocument.presentation",
	".md":   "text/markdown",
	".rtf":  "application/rtf",
	".csv":  "text/csv",
}

// Probe stats path and determines its size, modification time, and MIME type.
// MIME resolution tries the extension tables first and falls back to sniffing
// the first 512 bytes; an empty MimeType means the type is unknown.
func Probe(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !st.Mode().IsRegular() {
		return Info{}, fmt.Errorf("%s: not a regular file", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	info := Info{
		Size:      st.Size(),
		ModTime:   st.ModTime(),
		Extension: ext,
	}

	if mt, ok := extraMimeTypes[ext]; ok {
		info.MimeType = mt
		return info, nil
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		// Strip parameters like "; charset=utf-8" so stored values stay stable.
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		info.MimeType = mt
		return info, nil
	}

	info.MimeType = sniff(path)
	return info, nil
}

func sniff(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return ""
	}
	if n == 0 {
		return ""
	}
	ct := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}
