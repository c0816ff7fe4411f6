// Package pipeline coordinates the collaborators around the extraction
// engine: preprocessing variants, recognition, parsing and the QR path.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/dangbaokhoa/identity-card/internal/extract"
	"github.com/dangbaokhoa/identity-card/internal/recognize"
)

// Preprocessor yields the image variants recognition should run on, plus a
// cleanup for any temp files.
type Preprocessor interface {
	Variants(ctx context.Context, path string) ([]string, func(), error)
}

// QRDecoder reads and parses the QR payload from the first variant that
// decodes.
type QRDecoder interface {
	DecodeRecord(ctx context.Context, paths ...string) (extract.Record, error)
}

// Processor runs preprocess -> recognize (per variant) -> parse for one
// image, or the QR path when asked. Stateless between items; a single
// Processor serves concurrent batch workers.
type Processor struct {
	Logger *slog.Logger
	Pre    Preprocessor
	Engine recognize.Recognizer
	Parser *extract.Parser
	QR     QRDecoder
}

func NewProcessor(logger *slog.Logger, pre Preprocessor, engine recognize.Recognizer, parser *extract.Parser, decoder QRDecoder) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Pre: pre, Engine: engine, Parser: parser, QR: decoder}
}

// ProcessImage runs the visual pipeline on one card photo. Recognition runs
// on every preprocessing variant; the union of observations feeds the
// parser, which deduplicates across variants. A variant that fails to
// recognize is logged and skipped; the only hard failure is an unavailable
// source image.
func (p *Processor) ProcessImage(ctx context.Context, path string) (extract.Record, error) {
	variants, cleanup, err := p.Pre.Variants(ctx, path)
	if err != nil {
		p.Logger.Error("processor.preprocess.failed", "path", path, "err", err)
		return extract.Record{}, err
	}
	defer cleanup()

	var union []extract.Observation
	for _, variant := range variants {
		obs, err := p.Engine.Recognize(ctx, variant)
		if err != nil {
			p.Logger.Warn("processor.recognize.variant_failed", "path", path, "variant", variant, "err", err)
			continue
		}
		union = append(union, obs...)
	}
	p.Logger.Info("processor.recognize.ok",
		"path", path,
		"variants", len(variants),
		"observations", len(union),
	)

	rec := p.Parser.Parse(union)
	if err := extract.ValidateAliased(rec.Aliased()); err != nil {
		// contract violations are a bug signal, not an item failure
		p.Logger.Warn("processor.parse.contract_violation", "path", path, "err", err)
	}
	p.Logger.Info("processor.parse.ok", "path", path, "recovered_id", rec.Number != "")
	return rec, nil
}

// ProcessQR decodes the QR payload off the card image, trying the original
// and every preprocessing variant, and maps it to a record. Decode and
// format failures are per-item errors for the caller to attach to the item.
func (p *Processor) ProcessQR(ctx context.Context, path string) (extract.Record, error) {
	variants, cleanup, err := p.Pre.Variants(ctx, path)
	if err != nil {
		p.Logger.Error("processor.preprocess.failed", "path", path, "err", err)
		return extract.Record{}, err
	}
	defer cleanup()

	rec, err := p.QR.DecodeRecord(ctx, variants...)
	if err != nil {
		p.Logger.Error("processor.qr.failed", "path", path, "err", err)
		return extract.Record{}, err
	}
	p.Logger.Info("processor.qr.ok", "path", path)
	return rec, nil
}
