package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	reSexMale   = regexp.MustCompile(`\bnam\b|\bmale\b`)
	reSexFemale = regexp.MustCompile(`\bnu\b|\bfemale\b`)

	reDigit         = regexp.MustCompile(`\d`)
	reUppercaseName = regexp.MustCompile(`^[A-ZÀ-Ỹ\s]+$`)

	// Trailing "quoc tich: <value>" capture on an already-normalized line,
	// and the other-field labels that may ride along after the value.
	reNationalityTrail     = regexp.MustCompile(`(?:quoc\s*tich|nationality)\s*[:/\-]*\s*([a-z\s]{2,30})`)
	reNationalityTrailStop = regexp.MustCompile(`\b(?:gioi\s*tinh|sex|que\s*quan|place\s*of\s*origin|noi\s*thuong\s*tru|residence|ngay\s*sinh|date\s*of\s*birth)\b.*$`)
)

var titleCaser = cases.Title(language.Und)

// Policy carries the tunable heuristics of the parser. The defaults reflect
// the card layouts observed so far, not hard invariants; keep them
// adjustable until validated against a larger sample.
type Policy struct {
	// PreferNonZeroLeadingID breaks ID-vote ties in favor of candidates
	// that do not start with "0".
	PreferNonZeroLeadingID bool
	// ExpiryFromLastDate falls back to the last date in the document that
	// differs from the date of birth when no expiry label was found.
	ExpiryFromLastDate bool
}

func DefaultPolicy() Policy {
	return Policy{PreferNonZeroLeadingID: true, ExpiryFromLastDate: true}
}

// Parser recovers the canonical field record from recognized card text.
// Stateless across calls; one instance serves concurrent parses.
type Parser struct {
	policy Policy
	logger *slog.Logger
}

func NewParser(policy Policy, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{policy: policy, logger: logger}
}

// document bundles the per-parse views of the input lines so the field
// parsers don't recompute them.
type document struct {
	lines          []string
	normalized     []string
	fullText       string
	normalizedFull string
}

func newDocument(lines []string) *document {
	normalized := make([]string, len(lines))
	for i, line := range lines {
		normalized[i] = Normalize(line)
	}
	fullText := strings.Join(lines, " ")
	return &document{
		lines:          lines,
		normalized:     normalized,
		fullText:       fullText,
		normalizedFull: Normalize(fullText),
	}
}

// strategy is one attempt at recovering a field value; "" means no result.
// Each field runs an ordered strategy list and keeps the first hit, which
// replaces the nested fallback conditionals this kind of parsing tends to
// grow.
type strategy func() string

func firstOf(strategies ...strategy) string {
	for _, s := range strategies {
		if v := s(); v != "" {
			return v
		}
	}
	return ""
}

// Parse runs the full visual pipeline on raw recognition output:
// deduplicate, order, then recover each field. Missing fields stay empty;
// the visual path never fails.
func (p *Parser) Parse(obs []Observation) Record {
	return p.ParseLines(AssembleLines(obs))
}

// ParseLines recovers the field record from already-assembled lines.
func (p *Parser) ParseLines(lines []string) Record {
	doc := newDocument(lines)

	var rec Record
	rec.Number = p.parseNumber(doc)
	rec.DateOfBirth = p.parseDateOfBirth(doc)
	rec.Sex = p.parseSex(doc)
	rec.FullName = p.parseFullName(doc)
	rec.Nationality = p.parseNationality(doc)
	rec.PlaceOfOrigin = p.parseOrigin(doc)
	rec.Residence = p.parseResidence(doc)
	rec.ExpiryDate = p.parseExpiry(doc, rec.DateOfBirth)

	// Cards without a printed residence block still need a usable address
	// for downstream templates.
	if rec.Residence == "" {
		rec.Residence = rec.PlaceOfOrigin
	}

	p.logger.Debug("extract.parse.done",
		"lines", len(lines),
		"recovered", countRecovered(rec),
	)
	return rec
}

func countRecovered(rec Record) int {
	n := 0
	for _, v := range rec.Canonical() {
		if v != "" {
			n++
		}
	}
	return n
}

// parseNumber votes across every 12-digit run in the document, falling back
// to the label-anchored value and finally to a 12-digit window of the fully
// digit-stripped text.
func (p *Parser) parseNumber(doc *document) string {
	labelValue := extractValueFromLines(doc.lines, doc.normalized, numberLabels)

	candidates := reTwelveDigits.FindAllString(doc.fullText, -1)
	for _, line := range doc.lines {
		if compact := digitsOnly(line); len(compact) == 12 {
			candidates = append(candidates, compact)
		}
	}
	if best := chooseBestID(candidates, p.policy.PreferNonZeroLeadingID); best != "" {
		return best
	}

	// No confident 12-digit vote: a window of the concatenated digits is
	// still better than a truncated label value.
	if window := reTwelveDigits.FindString(digitsOnly(doc.fullText)); window != "" {
		if labelValue == "" || len(digitsOnly(labelValue)) < 9 {
			return window
		}
	}
	return labelValue
}

func (p *Parser) parseDateOfBirth(doc *document) string {
	return firstOf(
		func() string {
			for i, nline := range doc.normalized {
				if lineHasAnyLabel(nline, dobLabels) {
					if d := dateAtLabel(doc.lines, i); d != "" {
						return d
					}
				}
			}
			return ""
		},
		func() string { return normalizeDateText(doc.fullText) },
		func() string { return normalizeCompactDate(doc.fullText) },
	)
}

func (p *Parser) parseSex(doc *document) string {
	return firstOf(
		func() string {
			lineValue := extractValueFromLines(doc.lines, doc.normalized, sexLabels)
			return sexFromTokens(Normalize(lineValue))
		},
		func() string { return sexFromTokens(doc.normalizedFull) },
	)
}

func sexFromTokens(normalized string) string {
	switch {
	case reSexMale.MatchString(normalized):
		return "Nam"
	case reSexFemale.MatchString(normalized):
		return "Nữ"
	default:
		return ""
	}
}

func (p *Parser) parseFullName(doc *document) string {
	return firstOf(
		func() string {
			for i, nline := range doc.normalized {
				if !lineHasAnyLabel(nline, nameLabels) {
					continue
				}
				if inline := extractAfterLabel(doc.lines[i], nameLabels); inline != "" {
					if candidate := cleanValue(inline); !isNoiseOrLabel(candidate) {
						return candidate
					}
				}
				if i+1 < len(doc.lines) {
					candidate := cleanValue(strings.Trim(doc.lines[i+1], " :-"))
					if candidate != "" && !reDigit.MatchString(candidate) && !isNoiseOrLabel(candidate) {
						return candidate
					}
				}
			}
			return ""
		},
		// Layout convention: the holder's name is the one line printed in
		// full uppercase.
		func() string {
			for _, line := range doc.lines {
				if utf8.RuneCountInString(line) > 4 && reUppercaseName.MatchString(line) && !isNoiseOrLabel(line) {
					return line
				}
			}
			return ""
		},
	)
}

func (p *Parser) parseNationality(doc *document) string {
	value := firstOf(
		func() string {
			return cleanValue(extractValueFromLines(doc.lines, doc.normalized, nationalityLabels))
		},
		func() string {
			for _, line := range doc.lines {
				if candidate := extractSegmentByLabels(line, nationalityLabels, nationalityStopLabels); candidate != "" {
					return cleanValue(candidate)
				}
			}
			return ""
		},
	)

	// The value often drags the label itself (or the next field's label)
	// along; re-cut it from the normalized form when that happens.
	if value != "" {
		if m := reNationalityTrail.FindStringSubmatch(Normalize(value)); m != nil {
			candidate := strings.TrimSpace(reNationalityTrailStop.ReplaceAllString(strings.TrimSpace(m[1]), ""))
			if candidate != "" {
				value = titleCaser.String(candidate)
			}
		}
	}

	if value != "" {
		normalized := Normalize(value)
		switch {
		case strings.Contains(normalized, "viet nam") || strings.Contains(normalized, "vietnam"):
			value = "Việt Nam"
		case strings.Contains(normalized, "quoc tich") || strings.Contains(normalized, "nationality") ||
			normalized == "nam" || normalized == "male":
			// A stray label or gender token means recognition skipped the
			// real value; on this card stock that value is "Việt Nam".
			value = "Việt Nam"
		}
	}

	if value == "" && strings.Contains(doc.normalizedFull, "viet nam") {
		value = "Việt Nam"
	}
	return value
}

func (p *Parser) parseOrigin(doc *document) string {
	parts := accumulateSegments(doc.lines, doc.normalized, originLabels, originStopLabels, originMaxParts)
	if len(parts) == 0 {
		return ""
	}
	combined := cleanValue(strings.Join(parts, ", "))
	// A real place name has locality separators, some length, or at least
	// two words ("Hà Nội"); a lone short token is recognition debris.
	hasLocationShape := strings.ContainsAny(combined, ",; ") || utf8.RuneCountInString(combined) >= 10
	if !hasLocationShape || strings.Contains(Normalize(combined), "citizen identity card") {
		return ""
	}
	return dedupePlaceText(combined)
}

func (p *Parser) parseResidence(doc *document) string {
	parts := accumulateSegments(doc.lines, doc.normalized, residenceLabels, residenceStopLabels, residenceMaxParts)
	if len(parts) == 0 {
		return ""
	}
	value := cleanValue(strings.Join(parts, ", "))
	if value != "" {
		value = stripResidencePrefix(value)
	}
	return value
}

func (p *Parser) parseExpiry(doc *document, dateOfBirth string) string {
	for i, nline := range doc.normalized {
		if lineHasAnyLabel(nline, expiryLabels) {
			if d := dateAtLabel(doc.lines, i); d != "" {
				return d
			}
		}
	}
	if !p.policy.ExpiryFromLastDate {
		return ""
	}
	dates := allDelimitedDates(doc.fullText)
	if len(dates) < 2 {
		return ""
	}
	for i := len(dates) - 1; i >= 0; i-- {
		if dates[i] != dateOfBirth {
			return dates[i]
		}
	}
	return ""
}
