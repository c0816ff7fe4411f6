package extract

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	// Slash/dot/dash-delimited D/M/YYYY, tolerant of spacing around the
	// separators the way recognition tends to smear them.
	reDelimitedDate = regexp.MustCompile(`(\d{1,2})\s*[./-]\s*(\d{1,2})\s*[./-]\s*(\d{4})`)

	// The stricter slash/dash form used to detect "this line is a date"
	// while accumulating multi-line values.
	reDateToken = regexp.MustCompile(`\d{1,2}\s*[/-]\s*\d{1,2}\s*[/-]\s*\d{4}`)

	// Compact DDMMYYYY with no separators.
	reCompactDate = regexp.MustCompile(`\b(\d{8})\b`)
)

// normalizeDateText finds the first delimited date in raw and returns it
// zero-padded as DD/MM/YYYY, or "" when no delimited date is present.
func normalizeDateText(raw string) string {
	m := reDelimitedDate.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%02d/%02d/%s", day, month, m[3])
}

// normalizeCompactDate finds the first 8-digit run in raw and returns it as
// DD/MM/YYYY, but only when day, month and year are individually plausible.
// An 8-digit run that fails the range check is far more likely to be an ID
// fragment than a date.
func normalizeCompactDate(raw string) string {
	m := reCompactDate.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	compact := m[1]
	day, _ := strconv.Atoi(compact[0:2])
	month, _ := strconv.Atoi(compact[2:4])
	year, _ := strconv.Atoi(compact[4:8])
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year)
}

func lineHasDateToken(raw string) bool {
	return reDateToken.MatchString(raw)
}

// allDelimitedDates returns every delimited date in the text, normalized and
// in order of appearance.
func allDelimitedDates(text string) []string {
	var out []string
	for _, m := range reDateToken.FindAllString(text, -1) {
		if d := normalizeDateText(m); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// dateAtLabel tries the delimited then the compact form on the label line,
// then on the line after it. First hit wins.
func dateAtLabel(lines []string, idx int) string {
	if d := normalizeDateText(lines[idx]); d != "" {
		return d
	}
	if d := normalizeCompactDate(lines[idx]); d != "" {
		return d
	}
	if idx+1 < len(lines) {
		if d := normalizeDateText(lines[idx+1]); d != "" {
			return d
		}
		if d := normalizeCompactDate(lines[idx+1]); d != "" {
			return d
		}
	}
	return ""
}
