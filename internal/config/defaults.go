package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "/usr/local/var/docsink/data/documents.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".ods", ".rtf", ".csv", ".md", ".txt"}
	}
	if cfg.Watch.ExcludePatterns == nil {
		cfg.Watch.ExcludePatterns = []string{".*", "~*", "*.tmp", "*.temp"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(750 * time.Millisecond)
	}
	if cfg.Watch.MaxConcurrent == 0 {
		cfg.Watch.MaxConcurrent = 3
	}
	if cfg.Watch.QueueSize == 0 {
		cfg.Watch.QueueSize = 256
	}
	if cfg.Watch.FailureThreshold == 0 {
		cfg.Watch.FailureThreshold = 3
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Ingest.MaxFileSizeMB == 0 {
		cfg.Ingest.MaxFileSizeMB = 100
	}
	if cfg.Ingest.ConversionTimeout == 0 {
		cfg.Ingest.ConversionTimeout = Duration(5 * time.Minute)
	}
	if cfg.Images.BasePath == "" {
		cfg.Images.BasePath = "/usr/local/var/docsink/data/images"
	}
	if cfg.Images.MaxSizeMB == 0 {
		cfg.Images.MaxSizeMB = 20
	}
	if cfg.Images.AllowedFormats == nil {
		cfg.Images.AllowedFormats = []string{"png", "jpeg", "jpg", "gif", "bmp", "tiff", "webp"}
	}
	if cfg.Images.Scale == 0 {
		cfg.Images.Scale = 1.0
	}
}
