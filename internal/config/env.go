package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// applyEnv overlays DOCSINK_* environment variables onto cfg. A .env file in
// the working directory is loaded first; real environment variables win over
// .env entries, and both win over the YAML file.
func applyEnv(cfg *Config) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	if v := os.Getenv("DOCSINK_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("DOCSINK_WATCH_FOLDER"); v != "" {
		cfg.Watch.Directories = []string{v}
	}
	if v := os.Getenv("DOCSINK_IMAGES_PATH"); v != "" {
		cfg.Images.BasePath = v
	}
	if v := os.Getenv("DOCSINK_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DOCSINK_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("DOCSINK_MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("DOCSINK_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Watch.MaxConcurrent = n
		}
	}
	if v := os.Getenv("DOCSINK_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}
