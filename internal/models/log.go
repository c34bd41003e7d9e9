package models

import "time"

// LogLevel is the severity of a processing log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Valid reports whether l is a known log level.
func (l LogLevel) Valid() bool {
	switch l {
	case LogInfo, LogWarning, LogError:
		return true
	}
	return false
}

// ProcessingLogEntry is one append-only audit record for a document.
// Details, when present, holds a JSON object with structured context.
type ProcessingLogEntry struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Level      LogLevel  `json:"level" db:"level"`
	Message    string    `json:"message" db:"message"`
	Details    string    `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
