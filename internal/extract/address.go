package extract

import (
	"regexp"
	"strings"
)

// Part caps for multi-line accumulation. When the stop labels are all lost
// to recognition noise, these bound how far a value can run away down the
// card face.
const (
	originMaxParts    = 5
	residenceMaxParts = 6
)

// Administrative filler that recognition splits off as lone tokens; they add
// nothing to an address and get dropped during dedupe.
var fillerTokens = map[string]struct{}{
	"que": {}, "quan": {}, "pho": {}, "thi": {},
}

var (
	reResidencePrefix = regexp.MustCompile(`(?i)^\s*\d*\s*(place\s*of\s*residence|permanent\s*residence|residence)\s*[:;,-]*\s*`)
	rePartSplit       = regexp.MustCompile(`[;,]+`)
)

// accumulateSegments collects the multi-line value that starts at the first
// line matching one of labels: the in-line remainder, then following lines
// until a stop label, a date line, or maxParts. Returns nil when no label
// line exists.
func accumulateSegments(lines, normalizedLines []string, labels, stopLabels []string, maxParts int) []string {
	for i, nline := range normalizedLines {
		if !lineHasAnyLabel(nline, labels) {
			continue
		}
		var parts []string
		if inline := cleanValue(extractAfterLabel(lines[i], labels)); inline != "" && !isNoiseOrLabel(inline) {
			parts = append(parts, inline)
		}
		for j := i + 1; j < len(lines); j++ {
			if lineHasAnyLabel(normalizedLines[j], stopLabels) {
				break
			}
			if lineHasDateToken(lines[j]) {
				break
			}
			part := cleanValue(strings.Trim(lines[j], " ,.-"))
			if part != "" && !isNoiseOrLabel(part) {
				parts = append(parts, part)
			}
			if len(parts) >= maxParts {
				break
			}
		}
		return parts
	}
	return nil
}

// dedupePlaceText collapses the locality list of an address: duplicate
// parts (case- and diacritic-insensitive) and filler tokens go, order of
// first appearance stays.
func dedupePlaceText(value string) string {
	if value == "" {
		return ""
	}
	seen := make(map[string]struct{})
	var clean []string
	for _, part := range rePartSplit.Split(value, -1) {
		part = strings.Trim(part, " .,-")
		if part == "" {
			continue
		}
		normalized := Normalize(part)
		if _, dup := seen[normalized]; dup {
			continue
		}
		if _, filler := fillerTokens[normalized]; filler {
			continue
		}
		seen[normalized] = struct{}{}
		clean = append(clean, part)
	}
	return strings.Join(clean, ", ")
}

// stripResidencePrefix removes a repeated residence label that recognition
// glued onto the front of an already-extracted residence value.
func stripResidencePrefix(value string) string {
	return strings.Trim(reResidencePrefix.ReplaceAllString(value, ""), valueTrimCutset)
}
