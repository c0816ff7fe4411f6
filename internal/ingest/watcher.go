package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures directory watching for continuous intake: drop a
// card photo into a watched folder and it gets queued for extraction.
type WatchConfig struct {
	Root        string
	AllowedExts map[string]struct{} // lowercase sans '.'; nil -> DefaultExtensions
	InitialScan bool                // emit files already present under Root
	Debounce    time.Duration       // coalesce write bursts while a file is copied in
}

// Watch emits paths of card images appearing under the root until ctx is
// cancelled. New subdirectories are picked up as they are created.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, nil, errors.New("root path is required")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = DefaultExtensions
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if isHidden(path) && path != cfg.Root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && hasAllowedExt(path, cfg.AllowedExts) {
			select {
			case evCh <- path:
			default:
			}
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		// pending and the debounce timer are touched only from this
		// goroutine; the timer channel is drained in the select below
		var timer *time.Timer
		var timerC <-chan time.Time
		pending := map[string]struct{}{}

		flush := func() {
			for p := range pending {
				select {
				case evCh <- p:
				default:
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-timerC:
				timerC = nil
				flush()
			case e := <-w.Events:
				if e.Op.Has(fsnotify.Create) {
					// a new directory needs its own watch; Add on a plain
					// file fails harmlessly
					_ = w.Add(e.Name)
				}
				if !hasAllowedExt(e.Name, cfg.AllowedExts) || isHidden(e.Name) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				pending[e.Name] = struct{}{}
				if cfg.Debounce > 0 {
					if timer == nil {
						timer = time.NewTimer(cfg.Debounce)
					} else {
						if !timer.Stop() && timerC != nil {
							<-timer.C
						}
						timer.Reset(cfg.Debounce)
					}
					timerC = timer.C
				} else {
					flush()
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "err", werr)
				select {
				case errCh <- werr:
				default:
				}
			}
		}
	}()

	logger.Info("ingest.watch.started", "root", cfg.Root)
	return evCh, errCh, nil
}

func hasAllowedExt(path string, exts map[string]struct{}) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}
