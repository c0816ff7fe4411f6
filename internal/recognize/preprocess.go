package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Preprocessor produces contrast/threshold variants of a card photo using
// an external ImageMagick binary. Recognition runs on every variant and the
// extraction engine deduplicates the union, so a variant that degrades a
// given photo costs nothing but time.
type Preprocessor struct {
	magick string
	runner Runner
	logger *slog.Logger
}

func NewPreprocessor(magick string, logger *slog.Logger) *Preprocessor {
	if magick == "" {
		magick = "magick"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{magick: magick, runner: execRunner{}, logger: logger}
}

// variant name -> magick arguments between input and output path.
var variantOps = []struct {
	name string
	args []string
}{
	{"gray", []string{"-colorspace", "Gray"}},
	{"contrast", []string{"-colorspace", "Gray", "-contrast-stretch", "2%x1%"}},
	// local adaptive threshold, window and offset tuned for card stock
	{"thresh", []string{"-colorspace", "Gray", "-lat", "31x31-7%"}},
}

// Variants returns the original path plus every variant that converted
// cleanly, and a cleanup func for the temp files. A missing source image is
// the only hard failure; a variant that fails to convert is logged and
// skipped.
func (p *Preprocessor) Variants(ctx context.Context, path string) ([]string, func(), error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("source image unavailable: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "idcard-pre-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	paths := []string{path}
	for _, op := range variantOps {
		out := filepath.Join(tmpDir, op.name+".png")
		args := append([]string{path}, append(op.args, out)...)
		if _, errb, err := p.runner.Run(ctx, p.magick, args...); err != nil {
			p.logger.Warn("preprocess.variant.failed", "variant", op.name, "error", err, "stderr", truncate(string(errb), 2<<10))
			continue
		}
		if _, err := os.Stat(out); err != nil {
			p.logger.Warn("preprocess.variant.missing_output", "variant", op.name)
			continue
		}
		paths = append(paths, out)
	}

	p.logger.Debug("preprocess.done", "path", path, "variants", len(paths))
	return paths, cleanup, nil
}
