package qr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/dangbaokhoa/identity-card/internal/extract"
)

// Runner lets tests stub the external decoder binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// DecoderConfig configures the external QR decoder.
type DecoderConfig struct {
	Zbarimg string // binary name or absolute path; if empty -> "zbarimg"
}

// Decoder reads the QR payload off a card image by shelling out to zbarimg.
// The decoder itself is a black box; this adapter only sequences decoding
// attempts over the image variants it is given.
type Decoder struct {
	cfg    DecoderConfig
	runner Runner
	logger *slog.Logger
}

func NewDecoder(cfg DecoderConfig, logger *slog.Logger) *Decoder {
	if cfg.Zbarimg == "" {
		cfg.Zbarimg = "zbarimg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Decode tries each image path in order and returns the first payload found.
// All attempts failing yields ErrNoQRCode.
func (d *Decoder) Decode(ctx context.Context, paths ...string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoQRCode
	}
	if _, err := os.Stat(paths[0]); err != nil {
		return "", fmt.Errorf("source image unavailable: %w", err)
	}
	for _, path := range paths {
		out, errb, err := d.runner.Run(ctx, d.cfg.Zbarimg, "--quiet", "--raw", path)
		if err != nil {
			// zbarimg exits non-zero when nothing decodes; try the next variant
			d.logger.Debug("qr.decode.miss", "path", path, "stderr", strings.TrimSpace(string(errb)))
			continue
		}
		for _, line := range strings.Split(string(out), "\n") {
			if payload := strings.TrimSpace(line); payload != "" {
				d.logger.Debug("qr.decode.hit", "path", path)
				return payload, nil
			}
		}
	}
	return "", ErrNoQRCode
}

// DecodeRecord decodes and parses in one step.
func (d *Decoder) DecodeRecord(ctx context.Context, paths ...string) (extract.Record, error) {
	payload, err := d.Decode(ctx, paths...)
	if err != nil {
		return extract.Record{}, err
	}
	return ParsePayload(payload)
}
