// Package main is the docsink CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/hyperjump/docsink/internal/cli"
	"github.com/hyperjump/docsink/internal/config"
	"github.com/hyperjump/docsink/internal/convert"
	"github.com/hyperjump/docsink/internal/imagestore"
	"github.com/hyperjump/docsink/internal/ingest"
	"github.com/hyperjump/docsink/internal/models"
	"github.com/hyperjump/docsink/internal/server"
	"github.com/hyperjump/docsink/internal/storage"
	"github.com/hyperjump/docsink/internal/watcher"
	"github.com/hyperjump/docsink/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

// loadConfig loads config from path. When path is the conventional default, a
// config.yaml in the current directory is preferred (for development), and a
// missing default file falls back to built-in defaults so commands work
// without any setup. Explicit paths must exist. Returns the config and the
// path that was actually loaded ("" when running on built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == config.DefaultPath() {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "init":
		runInit()
	case "watch":
		runWatch()
	case "serve":
		runServe()
	case "ingest":
		runIngest()
	case "list":
		runList()
	case "show":
		runShow()
	case "logs":
		runLogs()
	case "images":
		runImages()
	case "status":
		runStatus()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("docsink version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the initialized service graph.
type Components struct {
	Store    *storage.SQLiteStore
	Images   *imagestore.Store
	Pipeline *ingest.Pipeline
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	images := imagestore.New(
		cfg.Images.BasePath,
		imagestore.WithMaxFileSize(cfg.Images.MaxSizeBytes()),
		imagestore.WithAllowedFormats(cfg.Images.AllowedFormats),
		imagestore.WithCleanupFailed(cfg.Images.CleanupFailedOrDefault()),
		imagestore.WithLogger(logger),
	)
	engine := convert.NewEngine(convert.WithLogger(logger))
	pipe := ingest.NewPipeline(cfg, store, engine, images, ingest.WithLogger(logger))
	return &Components{Store: store, Images: images, Pipeline: pipe}, nil
}

// setup loads config and builds the component graph for one-shot commands,
// exiting with a message on failure.
func setup(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

func parseFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text", "":
		return cli.OutputText
	}
	fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", s)
	os.Exit(1)
	return cli.OutputText
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	force := fs.Bool("force", false, "recreate the database, dropping existing data")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		var defaults config.Config
		config.ApplyDefaults(&defaults)
		if err := config.Save(*configPath, &defaults); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config: %s\n", *configPath)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *force {
		for _, p := range []string{cfg.DatabasePath, cfg.DatabasePath + "-wal", cfg.DatabasePath + "-shm"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "Failed to remove %s: %v\n", p, err)
				os.Exit(1)
			}
		}
	}

	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	_ = store.Close()

	if err := os.MkdirAll(cfg.Images.BasePath, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create image store: %v\n", err)
		os.Exit(1)
	}
	for _, dir := range cfg.Watch.Directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create watch directory %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Initialized database: %s\n", cfg.DatabasePath)
	fmt.Printf("Image store: %s\n", cfg.Images.BasePath)
	for _, dir := range cfg.Watch.Directories {
		fmt.Printf("Watch directory: %s\n", dir)
	}
}

// daemon bundles the running queue and watcher shared by watch and serve.
type daemon struct {
	queue   *watcher.Queue
	watcher *watcher.Watcher
}

func startDaemon(ctx context.Context, cfg *config.Config, logger *zap.Logger, c *Components) (*daemon, error) {
	if n, err := c.Pipeline.Recover(ctx); err != nil {
		logger.Warn("requeue of interrupted documents failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("requeued interrupted documents", zap.Int("count", n))
	}

	queue := watcher.NewQueue(c.Pipeline, cfg.Watch.QueueSize, cfg.Watch.MaxConcurrent, logger)
	queue.Start(ctx)

	w := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.ExcludePatterns,
		cfg.Watch.RecursiveOrDefault(),
		queue.Enqueue,
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce.Std()),
	)
	if err := w.Start(ctx); err != nil {
		queue.Stop()
		return nil, err
	}
	logger.Info("watching directories",
		zap.Strings("directories", cfg.Watch.Directories),
		zap.Int("workers", cfg.Watch.MaxConcurrent),
	)
	return &daemon{queue: queue, watcher: w}, nil
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (events, debounce, queue decisions)")
	scan := fs.Bool("scan", false, "ingest files already present in the watch directories before watching")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if resolvedConfigPath == "" {
		resolvedConfigPath = "built-in defaults"
	}
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	if len(cfg.Watch.Directories) == 0 {
		logger.Fatal("no watch directories configured; set watch.directories in the config")
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, err := startDaemon(ctx, cfg, logger, components)
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	if *scan {
		if err := d.watcher.ScanExisting(ctx); err != nil {
			logger.Warn("startup scan failed", zap.Error(err))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	d.watcher.Stop()
	cancel()
	d.queue.Stop()
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (events, debounce, queue decisions)")
	scan := fs.Bool("scan", false, "ingest files already present in the watch directories before watching")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if resolvedConfigPath == "" {
		resolvedConfigPath = "built-in defaults"
	}
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var d *daemon
	if len(cfg.Watch.Directories) > 0 {
		d, err = startDaemon(ctx, cfg, logger, components)
		if err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		if *scan {
			if err := d.watcher.ScanExisting(ctx); err != nil {
				logger.Warn("startup scan failed", zap.Error(err))
			}
		}
	} else {
		logger.Warn("no watch directories configured; running API only")
	}

	var watchSvc server.WatchService
	var queueStats server.QueueStats
	if d != nil {
		watchSvc = d.watcher
		queueStats = d.queue
	}
	srv := server.NewServer(components.Store, components.Pipeline, cfg, logger, watchSvc, queueStats)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if d != nil {
		d.watcher.Stop()
		cancel()
		d.queue.Stop()
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsink ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	start := time.Now()
	if info.IsDir() {
		n, err := components.Pipeline.IngestDirectory(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s in %s\n", n, path, cli.FormatDuration(time.Since(start)))
		return
	}

	outcome, err := components.Pipeline.IngestFileForced(ctx, path)
	if err != nil {
		var verr *ingest.ValidationError
		switch {
		case errors.As(err, &verr):
			fmt.Fprintf(os.Stderr, "Rejected: %s\n", verr.Reason)
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(os.Stderr, "Interrupted; document reset to pending")
		default:
			fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		}
		os.Exit(1)
	}
	if outcome.Status == models.StatusFailed {
		fmt.Fprintf(os.Stderr, "Conversion failed for %s (see: docsink logs %s)\n", path, outcome.DocumentID)
		os.Exit(1)
	}
	fmt.Printf("Document ingested: %s (%s, %d warning(s), %s)\n",
		outcome.DocumentID, outcome.Status, outcome.Warnings, cli.FormatDuration(time.Since(start)))
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	status := fs.String("status", "", "filter by status (pending|processing|completed|failed)")
	limit := fs.Int("limit", 50, "maximum number of documents (0 = all)")
	offset := fs.Int("offset", 0, "number of documents to skip")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*output)
	st := models.DocumentStatus(*status)
	if *status != "" && !st.Valid() {
		fmt.Fprintf(os.Stderr, "Invalid status %q; use pending, processing, completed, or failed\n", *status)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	docs, err := components.Store.ListDocuments(context.Background(), st, *limit, *offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteDocumentList(os.Stdout, docs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runShow() {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsink show [flags] <document-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	format := parseFormat(*output)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	doc, err := components.Store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Document not found: %s\n", id)
		} else {
			fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		}
		os.Exit(1)
	}
	meta, err := components.Store.GetMetadata(ctx, id)
	if err != nil {
		meta = nil
	}
	if err := cli.WriteDocumentDetail(os.Stdout, doc, meta, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runLogs() {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	level := fs.String("level", "", "filter by level (info|warning|error)")
	limit := fs.Int("limit", 100, "maximum number of entries (0 = all)")
	offset := fs.Int("offset", 0, "number of entries to skip")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsink logs [flags] <document-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	format := parseFormat(*output)
	lv := models.LogLevel(*level)
	if *level != "" && !lv.Valid() {
		fmt.Fprintf(os.Stderr, "Invalid level %q; use info, warning, or error\n", *level)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if _, err := components.Store.GetDocument(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Document not found: %s\n", id)
		} else {
			fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		}
		os.Exit(1)
	}
	entries, err := components.Store.ListLogs(ctx, id, lv, *limit, *offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing logs failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteLogs(os.Stdout, entries, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runImages() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: docsink images <list|stats|export> [args]")
		fmt.Println("  docsink images list <document-id>          List a document's image artifacts")
		fmt.Println("  docsink images stats                       Show image store statistics")
		fmt.Println("  docsink images export <document-id> <dir>  Copy a document's images to a directory")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("images", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[3:])
	format := parseFormat(*output)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	switch sub {
	case "list":
		if fs.NArg() < 1 {
			fmt.Println("Usage: docsink images list <document-id>")
			os.Exit(1)
		}
		images, err := components.Store.ListImages(ctx, fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Listing images failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteImages(os.Stdout, images, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		stats, err := components.Store.ImageStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Image stats failed: %v\n", err)
			os.Exit(1)
		}
		if format == cli.OutputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
		fmt.Printf("Images: %d\n", stats.Count)
		fmt.Printf("Total:  %s\n", cli.FormatBytes(stats.TotalBytes))
		kinds := make([]string, 0, len(stats.ByKind))
		for kind := range stats.ByKind {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Printf("  %-8s %d\n", kind, stats.ByKind[models.ImageKind(kind)])
		}
	case "export":
		if fs.NArg() < 2 {
			fmt.Println("Usage: docsink images export <document-id> <directory>")
			os.Exit(1)
		}
		id, dest := fs.Arg(0), fs.Arg(1)
		images, err := components.Store.ListImages(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Listing images failed: %v\n", err)
			os.Exit(1)
		}
		if len(images) == 0 {
			fmt.Printf("No images recorded for %s\n", id)
			return
		}
		if err := os.MkdirAll(dest, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dest, err)
			os.Exit(1)
		}
		exported := 0
		for _, img := range images {
			src := components.Images.Resolve(img.ImagePath)
			dst := filepath.Join(dest, filepath.Base(img.ImagePath))
			if err := copyFile(src, dst); err != nil {
				fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", img.ImagePath, err)
				continue
			}
			exported++
		}
		fmt.Printf("Exported %d image(s) to %s\n", exported, dest)
	default:
		fmt.Printf("Unknown images subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "daemon URL (empty = read storage directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*output)

	var report *cli.StatusReport
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status request failed: %v\n", err)
			fmt.Fprintln(os.Stderr, `Is the daemon running? Use --server "" to read storage directly.`)
			os.Exit(1)
		}
		report = res
	} else {
		cfg, logger, components := setup(*configPath)
		defer logger.Sync()
		defer components.Close()

		ctx := context.Background()
		byStatus, err := components.Store.CountByStatus(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Counting documents failed: %v\n", err)
			os.Exit(1)
		}
		var total int64
		for _, n := range byStatus {
			total += n
		}
		report = &cli.StatusReport{
			Total:            total,
			ByStatus:         byStatus,
			DatabasePath:     cfg.DatabasePath,
			ImagesPath:       cfg.Images.BasePath,
			WatchDirectories: cfg.Watch.Directories,
		}
		if stats, err := components.Store.ImageStats(ctx); err == nil {
			report.Images = stats
		}
		if diskBytes, err := storage.DiskUsageBytes(cfg.DatabasePath, cfg.Images.BasePath); err == nil {
			report.DiskUsageBytes = diskBytes
		}
	}

	if err := cli.WriteStatus(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusViaHTTP fetches /api/v1/status from a running daemon and maps it to
// the CLI report shape.
func statusViaHTTP(serverURL string) (*cli.StatusReport, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Documents struct {
			Total    int64            `json:"total"`
			ByStatus map[string]int64 `json:"by_status"`
		} `json:"documents"`
		Images           *storage.ImageStats `json:"images"`
		QueuePending     *int                `json:"queue_pending"`
		WatchDirectories []string            `json:"watch_directories"`
		DiskUsageBytes   int64               `json:"disk_usage_bytes"`
		Config           struct {
			DatabasePath string `json:"database_path"`
			ImagesPath   string `json:"images_path"`
		} `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	byStatus := make(map[models.DocumentStatus]int64, len(out.Documents.ByStatus))
	for status, n := range out.Documents.ByStatus {
		byStatus[models.DocumentStatus(status)] = n
	}
	return &cli.StatusReport{
		Total:            out.Documents.Total,
		ByStatus:         byStatus,
		Images:           out.Images,
		QueuePending:     out.QueuePending,
		DiskUsageBytes:   out.DiskUsageBytes,
		DatabasePath:     out.Config.DatabasePath,
		ImagesPath:       out.Config.ImagesPath,
		WatchDirectories: out.WatchDirectories,
	}, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docsink delete [flags] <document-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	if err := components.Pipeline.DeleteDocument(context.Background(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Document not found: %s\n", id)
		} else {
			fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", id)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func printUsage() {
	fmt.Println(`docsink - Watched-folder document ingestion daemon

Usage:
  docsink init [flags]                 Initialize config, database, and directories
  docsink watch [flags]                Watch configured directories and ingest changes
  docsink serve [flags]                Run the HTTP API together with the watcher
  docsink ingest [flags] <path>        Ingest a file (forced) or a directory
  docsink list [flags]                 List documents
  docsink show [flags] <id>            Show one document with metadata and preview
  docsink logs [flags] <id>            Show a document's processing log
  docsink images <list|stats|export>   Inspect or export stored image artifacts
  docsink status [flags]               Show document counts and disk usage
  docsink delete [flags] <id>          Delete a document and its artifacts
  docsink version                      Show version
  docsink help                         Show this help

Common Flags:
  --config string    Config file path (default: ~/.config/docsink/config.yaml;
                     a config.yaml in the current directory takes precedence)

Init Flags:
  --force            Recreate the database, dropping existing data

Watch / Serve Flags:
  --debug            Enable debug logging (events, debounce, queue decisions)
  --scan             Ingest files already present in the watch directories first

List Flags:
  --status string    Filter by status (pending|processing|completed|failed)
  --limit int        Maximum number of documents (default: 50, 0 = all)
  --offset int       Number of documents to skip
  --output string    Output format: text or json (default: text)

Logs Flags:
  --level string     Filter by level (info|warning|error)
  --limit int        Maximum number of entries (default: 100, 0 = all)
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Daemon URL (default: http://localhost:8080). Use --server "" to read storage directly.
  --output string    Output format: text or json (default: text)

Examples:
  docsink init
  docsink watch --scan
  docsink serve
  docsink ingest ~/Documents/inbox/report.pdf
  docsink list --status failed
  docsink show 6e98b23a-6a54-4f21-9c0e-33e1c1b6c881
  docsink logs 6e98b23a-6a54-4f21-9c0e-33e1c1b6c881 --level warning
  docsink images export 6e98b23a-6a54-4f21-9c0e-33e1c1b6c881 ./out
  docsink status
  docsink delete 6e98b23a-6a54-4f21-9c0e-33e1c1b6c881`)
}
