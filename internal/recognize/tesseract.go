package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dangbaokhoa/identity-card/internal/extract"
)

// Recognizer is the black-box text recognition collaborator: one image in,
// an unordered set of positioned text observations out. Injected into the
// pipeline so tests can substitute a fake engine.
type Recognizer interface {
	Recognize(ctx context.Context, path string) ([]extract.Observation, error)
}

// Config configures the external tesseract engine.
type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "vie+eng" for the bilingual card face
	TessdataDir string

	PSM int // e.g., 6 for a uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// Engine adapts the tesseract binary to the Recognizer interface. TSV
// output carries per-word boxes and confidences; words are regrouped into
// the engine's line segmentation before they reach the parser.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "vie+eng"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (e *Engine) Recognize(ctx context.Context, path string) ([]extract.Observation, error) {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 2<<10))
	}

	obs := parseTSV(string(out))
	e.logger.Debug("recognize.done", "path", path, "observations", len(obs))
	return obs, nil
}

// tsvWord is one level-5 row of tesseract TSV output.
type tsvWord struct {
	block, par, line         int
	left, top, width, height float64
	conf                     float64
	text                     string
}

// parseTSV regroups word rows into line observations: text joined in word
// order, box as the union of the word boxes, confidence as the mean word
// confidence scaled to 0..1.
func parseTSV(tsv string) []extract.Observation {
	type lineKey struct{ block, par, line int }

	var order []lineKey
	words := make(map[lineKey][]tsvWord)

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 || row == "" { // skip header
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		level, _ := strconv.Atoi(cols[0])
		if level != 5 { // word rows only
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		w := tsvWord{conf: conf / 100.0, text: text}
		w.block, _ = strconv.Atoi(cols[2])
		w.par, _ = strconv.Atoi(cols[3])
		w.line, _ = strconv.Atoi(cols[4])
		w.left, _ = strconv.ParseFloat(cols[6], 64)
		w.top, _ = strconv.ParseFloat(cols[7], 64)
		w.width, _ = strconv.ParseFloat(cols[8], 64)
		w.height, _ = strconv.ParseFloat(cols[9], 64)

		key := lineKey{w.block, w.par, w.line}
		if _, ok := words[key]; !ok {
			order = append(order, key)
		}
		words[key] = append(words[key], w)
	}

	obs := make([]extract.Observation, 0, len(order))
	for _, key := range order {
		group := words[key]
		minX, minY := group[0].left, group[0].top
		maxX, maxY := group[0].left+group[0].width, group[0].top+group[0].height
		var confSum float64
		texts := make([]string, 0, len(group))
		for _, w := range group {
			if w.left < minX {
				minX = w.left
			}
			if w.top < minY {
				minY = w.top
			}
			if w.left+w.width > maxX {
				maxX = w.left + w.width
			}
			if w.top+w.height > maxY {
				maxY = w.top + w.height
			}
			confSum += w.conf
			texts = append(texts, w.text)
		}
		obs = append(obs, extract.Observation{
			Box: [4]extract.Point{
				{X: minX, Y: minY},
				{X: maxX, Y: minY},
				{X: maxX, Y: maxY},
				{X: minX, Y: maxY},
			},
			Text:       strings.Join(texts, " "),
			Confidence: confSum / float64(len(group)),
		})
	}
	return obs
}
