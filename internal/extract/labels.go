package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Label variants per field, in normalized (lowercase, diacritic-free) form.
// The bilingual card layout prints Vietnamese and English labels back to
// back, and recognition frequently drops one of the pair, so both belong in
// every set.
var (
	numberLabels      = []string{"so", "so dinh danh", "id no", "no.", "no"}
	dobLabels         = []string{"ngay sinh", "date of birth"}
	sexLabels         = []string{"gioi tinh", "sex"}
	nameLabels        = []string{"ho va ten", "ho ten", "full name"}
	nationalityLabels = []string{"quoc tich", "nationality"}
	originLabels      = []string{"que quan", "place of origin"}
	residenceLabels   = []string{"noi thuong tru", "thuong tru", "permanent residence", "residence"}
	expiryLabels      = []string{"co gia tri den", "valid until", "expiry"}
)

// Stop-label sets bound multi-line accumulation: hitting a label that
// belongs to a different field means the current value has ended.
var (
	originStopLabels = []string{
		"co gia tri den", "quoc tich", "gioi tinh", "ngay sinh", "ho va ten",
		"noi thuong tru", "thuong tru", "id no", "so dinh danh", "can cuoc",
	}
	residenceStopLabels = []string{
		"co gia tri den", "co gia tri", "quoc tich", "gioi tinh", "ngay sinh",
		"ho va ten", "que quan", "id no", "so dinh danh", "can cuoc",
	}
	nationalityStopLabels = []string{
		"que quan", "place of origin", "noi thuong tru", "residence",
		"gioi tinh", "sex", "ngay sinh", "date of birth", "ho va ten", "full name",
	}
)

const valueTrimCutset = " ;,:.-"

var (
	// Any known label as a prefix of a normalized value. Labels stack on
	// noisy lines ("Ho ten: Full name: JOHN"), hence the stripping loop.
	reLabelPrefix = regexp.MustCompile(
		`^(?:ho\s*va\s*ten|ho\s*ten|full\s*name|` +
			`ngay\s*sinh|date\s*of\s*birth|` +
			`gioi\s*tinh|sex|` +
			`quoc\s*tich|nationality|` +
			`que\s*quan|place\s*of\s*origin|` +
			`noi\s*thuong\s*tru|thuong\s*tru|permanent\s*residence|residence|` +
			`id\s*no|no\.?|so\s*dinh\s*danh|so)\s*(?:/\s*)?`)

	// Leading runs of anything that is not a letter (digits, punctuation,
	// stray separators left over from the label).
	reLeadingNonLetter = regexp.MustCompile(`^[^\p{L}]+`)

	// Everything up to and including the first separator on a raw line.
	reRawLabelHead = regexp.MustCompile(`^\s*[^:;\-]*[:;\-]?\s*`)
)

// Phrases that identify a line as a label or card boilerplate rather than a
// value. Checked against the normalized form.
var noisePhrases = []string{
	"ho va ten", "full name", "ngay sinh", "date of birth", "gioi tinh", "sex",
	"quoc tich", "nationality", "que quan", "place of origin",
	"noi thuong tru", "permanent residence", "residence",
	"co gia tri", "valid until", "can cuoc", "cong hoa",
	"citizen identity card", "identity card", "can cuoc cong dan",
}

var noiseTokens = map[string]struct{}{
	"quan": {}, "pho": {}, "of": {}, "origin": {}, "residence": {},
}

// stripKnownLabels peels recognized label prefixes off a value, repeatedly,
// until the remainder no longer starts with a label. The raw value and its
// normalized shadow advance together so the returned text keeps original
// casing and diacritics.
func stripKnownLabels(value string) string {
	if value == "" {
		return ""
	}
	value = strings.Trim(reSpaces.ReplaceAllString(value, " "), valueTrimCutset)
	value = reLeadingNonLetter.ReplaceAllString(value, "")

	normalized := Normalize(value)
	for reLabelPrefix.MatchString(normalized) {
		value = strings.Trim(reRawLabelHead.ReplaceAllString(value, ""), valueTrimCutset)
		if value == "" {
			break
		}
		normalized = Normalize(value)
	}
	return value
}

// cleanValue is the standard post-processing for any extracted value.
func cleanValue(value string) string {
	value = stripKnownLabels(value)
	return strings.Trim(reSpaces.ReplaceAllString(value, " "), valueTrimCutset)
}

// isNoiseOrLabel reports whether a candidate value is really a label
// fragment or card boilerplate that must not be emitted as a field value.
func isNoiseOrLabel(value string) bool {
	if value == "" {
		return true
	}
	normalized := Normalize(value)
	if utf8.RuneCountInString(normalized) < 3 {
		return true
	}
	for _, phrase := range noisePhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	_, ok := noiseTokens[normalized]
	return ok
}

func lineHasAnyLabel(normalizedLine string, labels []string) bool {
	for _, label := range labels {
		if strings.Contains(normalizedLine, label) {
			return true
		}
	}
	return false
}

// extractAfterLabel pulls the value that follows a label on the same raw
// line. Separator first (":" then "-"), then the label-stripping path for
// lines where recognition lost the separator.
func extractAfterLabel(rawLine string, labels []string) string {
	if rawLine == "" {
		return ""
	}
	for _, sep := range []string{":", "-"} {
		if _, right, ok := strings.Cut(rawLine, sep); ok {
			if cleaned := stripKnownLabels(strings.Trim(right, " ;,.-")); cleaned != "" {
				return cleaned
			}
		}
	}
	normalizedLine := Normalize(rawLine)
	for _, label := range labels {
		if strings.Contains(normalizedLine, label) {
			candidate := stripKnownLabels(rawLine)
			if candidate != "" && Normalize(candidate) != normalizedLine {
				return candidate
			}
		}
	}
	return ""
}

// extractSegmentByLabels cuts the normalized span between the earliest label
// hit and the earliest stop label on the same line. Returns normalized text;
// callers that need original casing use extractAfterLabel instead.
func extractSegmentByLabels(rawLine string, labels, stopLabels []string) string {
	normalizedLine := Normalize(rawLine)
	start := -1
	startLabel := ""
	for _, label := range labels {
		if idx := strings.Index(normalizedLine, label); idx != -1 && (start == -1 || idx < start) {
			start = idx
			startLabel = label
		}
	}
	if start == -1 {
		return ""
	}

	segment := strings.Trim(normalizedLine[start+len(startLabel):], valueTrimCutset+"/")
	stopAt := len(segment)
	for _, stop := range stopLabels {
		if idx := strings.Index(segment, stop); idx != -1 && idx < stopAt {
			stopAt = idx
		}
	}
	segment = strings.Trim(segment[:stopAt], valueTrimCutset+"/")
	return reLeadingNonLetter.ReplaceAllString(segment, "")
}

// extractValueFromLines finds the first line carrying one of the labels and
// returns the in-line value, or the cleaned next line when the label sits on
// a line of its own. A next line that is itself a label or boilerplate is
// skipped rather than mistaken for a value.
func extractValueFromLines(lines, normalizedLines []string, labels []string) string {
	for i, nline := range normalizedLines {
		if !lineHasAnyLabel(nline, labels) {
			continue
		}
		if inline := extractAfterLabel(lines[i], labels); inline != "" {
			return cleanValue(inline)
		}
		if i+1 < len(lines) {
			if next := cleanValue(lines[i+1]); next != "" && !isNoiseOrLabel(next) {
				return next
			}
		}
	}
	return ""
}
