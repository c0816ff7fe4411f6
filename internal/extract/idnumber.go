package extract

import "regexp"

var (
	reTwelveDigits = regexp.MustCompile(`\d{12}`)
	reNonDigit     = regexp.MustCompile(`\D`)
)

// chooseBestID votes across every 12-digit candidate seen anywhere in the
// document. Highest frequency wins; on a tie a candidate that does not start
// with "0" is preferred when the policy says so (recognition likes to glue a
// stray leading zero onto real numbers). Remaining ties resolve to the
// candidate seen first, keeping the vote deterministic.
func chooseBestID(candidates []string, preferNonZeroLeading bool) string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, c := range candidates {
		c = reNonDigit.ReplaceAllString(c, "")
		if len(c) != 12 {
			continue
		}
		counts[c]++
		if _, ok := firstSeen[c]; !ok {
			firstSeen[c] = i
		}
	}

	best := ""
	for c := range counts {
		if best == "" {
			best = c
			continue
		}
		if better(c, best, counts, firstSeen, preferNonZeroLeading) {
			best = c
		}
	}
	return best
}

func better(a, b string, counts map[string]int, firstSeen map[string]int, preferNonZeroLeading bool) bool {
	if counts[a] != counts[b] {
		return counts[a] > counts[b]
	}
	if preferNonZeroLeading {
		aZero := a[0] == '0'
		bZero := b[0] == '0'
		if aZero != bZero {
			return !aZero
		}
	}
	return firstSeen[a] < firstSeen[b]
}

// digitsOnly strips everything but digits.
func digitsOnly(s string) string {
	return reNonDigit.ReplaceAllString(s, "")
}
