package extract

import (
	"sort"
	"strings"
)

// MinConfidence is the floor below which a recognition hit is discarded
// before deduplication.
const MinConfidence = 0.2

// Point is one corner of a recognition bounding box, in pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Observation is a single detection from the recognition engine: a quad
// bounding box, the recognized text and the engine's confidence in 0..1.
// The engine runs on several preprocessing variants of the same image, so
// the same logical text commonly arrives more than once.
type Observation struct {
	Box        [4]Point
	Text       string
	Confidence float64
}

func (o Observation) readingOrderKey() (minY, minX float64) {
	minX, minY = o.Box[0].X, o.Box[0].Y
	for _, p := range o.Box[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
	}
	return minY, minX
}

// AssembleLines deduplicates the union of observations across all
// preprocessing variants and returns the surviving texts in reading order
// (top-to-bottom, then left-to-right).
//
// Observations that normalize to the same key are considered the same
// logical text; the highest-confidence instance wins. Empty text and
// low-confidence hits are dropped up front. The result is deterministic
// regardless of input order.
func AssembleLines(obs []Observation) []string {
	best := make(map[string]Observation, len(obs))
	for _, o := range obs {
		if o.Text == "" || o.Confidence < MinConfidence {
			continue
		}
		key := Normalize(o.Text)
		if key == "" {
			continue
		}
		if cur, ok := best[key]; !ok || o.Confidence > cur.Confidence {
			best[key] = o
		}
	}

	merged := make([]Observation, 0, len(best))
	for _, o := range best {
		merged = append(merged, o)
	}
	sort.Slice(merged, func(i, j int) bool {
		yi, xi := merged[i].readingOrderKey()
		yj, xj := merged[j].readingOrderKey()
		if yi != yj {
			return yi < yj
		}
		if xi != xj {
			return xi < xj
		}
		// equal positions should not happen for distinct texts; keep a
		// stable total order anyway so output never depends on map order
		return merged[i].Text < merged[j].Text
	})

	lines := make([]string, 0, len(merged))
	for _, o := range merged {
		lines = append(lines, strings.TrimSpace(o.Text))
	}
	return lines
}
