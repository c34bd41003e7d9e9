package models

import "time"

// ImageKind classifies an extracted image artifact.
type ImageKind string

const (
	ImagePicture ImageKind = "picture"
	ImageTable   ImageKind = "table"
	ImageFormula ImageKind = "formula"
	ImageChart   ImageKind = "chart"
	ImageDiagram ImageKind = "diagram"
	ImagePage    ImageKind = "page"
)

// Valid reports whether k is a known image classification.
func (k ImageKind) Valid() bool {
	switch k {
	case ImagePicture, ImageTable, ImageFormula, ImageChart, ImageDiagram, ImagePage:
		return true
	}
	return false
}

// DocumentImage records one stored image artifact extracted from a document.
// ImagePath is relative to the image store base so the tree can be relocated.
type DocumentImage struct {
	ID               string    `json:"id" db:"id"`
	DocumentID       string    `json:"document_id" db:"document_id"`
	ImagePath        string    `json:"image_path" db:"image_path"`
	Filename         string    `json:"filename" db:"filename"`
	Kind             ImageKind `json:"kind" db:"kind"`
	Position         int       `json:"position" db:"position"`
	FileSize         int64     `json:"file_size" db:"file_size"`
	Width            int       `json:"width,omitempty" db:"width"`
	Height           int       `json:"height,omitempty" db:"height"`
	Format           string    `json:"format,omitempty" db:"format"`
	ExtractionMethod string    `json:"extraction_method,omitempty" db:"extraction_method"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
