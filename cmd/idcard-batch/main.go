package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dangbaokhoa/identity-card/internal/async"
	"github.com/dangbaokhoa/identity-card/internal/common"
	"github.com/dangbaokhoa/identity-card/internal/export"
	"github.com/dangbaokhoa/identity-card/internal/extract"
	"github.com/dangbaokhoa/identity-card/internal/ingest"
	"github.com/dangbaokhoa/identity-card/internal/pipeline"
	"github.com/dangbaokhoa/identity-card/internal/qr"
	"github.com/dangbaokhoa/identity-card/internal/recognize"
	"github.com/dangbaokhoa/identity-card/internal/store"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		dir     = flag.String("dir", "", "directory to process card images from (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers = flag.Int("workers", 0, "concurrent workers (default from BATCH_WORKERS)")
		useQR   = flag.Bool("qr", false, "decode the QR payload instead of running the visual pipeline")
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite even when DB_URL is set")
		watch   = flag.Bool("watch", false, "keep watching the directory and process images as they appear (stop with Ctrl-C)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		parentDir := filepath.Dir(*dir)
		*out = filepath.Join(parentDir, "records.xlsx")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *workers <= 0 {
		*workers = cfg.Batch.Workers
	}

	dsn := cfg.Database.DSN
	if *inmem {
		dsn = ""
	}
	st, err := store.Open(ctx, dsn, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(ctx); err != nil {
		logger.Error("failed to migrate store", "error", err)
		os.Exit(1)
	}

	// Wire the pipeline
	pre := recognize.NewPreprocessor(cfg.Recognize.Magick, logger)
	engine := recognize.NewEngine(recognize.Config{
		Tesseract:   cfg.Recognize.Tesseract,
		Lang:        cfg.Recognize.Lang,
		TessdataDir: cfg.Recognize.TessdataDir,
		PSM:         cfg.Recognize.PSM,
		OEM:         cfg.Recognize.OEM,
	}, logger)
	parser := extract.NewParser(extract.DefaultPolicy(), logger)
	decoder := qr.NewDecoder(qr.DecoderConfig{Zbarimg: cfg.Recognize.Zbarimg}, logger)
	proc := pipeline.NewProcessor(logger, pre, engine, parser, decoder)

	// Process on the worker pool; per-item failures never abort the batch.
	var mu sync.Mutex
	processed := 0
	failures := 0
	onResult := func(res async.Result) {
		rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mu.Lock()
		defer mu.Unlock()
		if res.Err != nil {
			failures++
			if err := st.FinishFailure(rctx, res.Job.ID, res.Err.Error()); err != nil {
				logger.Error("failed to record failure", "path", res.Job.Path, "error", err)
			}
			return
		}
		processed++
		if err := st.FinishSuccess(rctx, res.Job.ID, res.Record); err != nil {
			logger.Error("failed to store record", "path", res.Job.Path, "error", err)
		}
	}

	queue := async.NewProcessorQueue(proc, logger, onResult,
		async.WithWorkers(*workers),
		async.WithProcessTimeout(cfg.Batch.Timeout),
	)
	mode := store.ModeVisual
	if *useQR {
		mode = store.ModeQR
	}

	submitted := 0
	submit := func(path string) {
		job := async.Job{ID: uuid.New(), Path: path, UseQR: *useQR, SubmittedAt: time.Now()}
		if err := st.StartJob(ctx, job.ID, path, mode); err != nil {
			logger.Error("failed to start job", "path", path, "error", err)
			return
		}
		_ = queue.Enqueue(ctx, job)
		submitted++
	}

	if *watch {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, watchErrs, err := ingest.Watch(sigCtx, ingest.WatchConfig{
			Root:        *dir,
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
		}, logger)
		if err != nil {
			logger.Error("failed to watch directory", "error", err)
			os.Exit(1)
		}
		go func() {
			for range watchErrs {
			}
		}()

		seen := make(map[string]struct{})
		for path := range events {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			submit(path)
		}
		logger.Info("watch stopped", "dir", *dir, "submitted", submitted)
	} else {
		paths, stats, err := ingest.ScanDirectory(*dir, nil)
		if err != nil {
			logger.Error("failed to scan directory", "error", err)
			os.Exit(1)
		}
		logger.Info("scan complete",
			"dir", *dir,
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"skipped", stats.Skipped)
		if len(paths) == 0 {
			printError("No card images found under %s\n", *dir)
			os.Exit(1)
		}
		for _, path := range paths {
			submit(path)
		}
	}

	drain := time.Duration(submitted+1) * cfg.Batch.Timeout
	drainCtx, cancel := context.WithTimeout(ctx, drain)
	queue.Shutdown(drainCtx)
	cancel()

	// Export to XLSX
	logger.Info("exporting to XLSX", "output", *out)
	rows, err := st.ListRecords(ctx)
	if err != nil {
		logger.Error("failed to list records", "error", err)
		os.Exit(1)
	}
	xlsxBytes, err := export.NewService(logger).RecordsXLSX(rows)
	if err != nil {
		logger.Error("failed to export records", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"images", submitted,
		"processed", processed,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Images found: %d\n", submitted)
	fmt.Printf("- Processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}
