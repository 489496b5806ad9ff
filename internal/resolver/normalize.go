package resolver

import "strings"

// legalSuffixes are trailing company designators ignored when comparing
// names. Matched case-insensitively against the lower-cased name, longest
// first so " inc." wins over " inc".
var legalSuffixes = []string{
	" company",
	" corp.",
	" corp",
	" inc.",
	" inc",
	" llc.",
	" llc",
	" ltd.",
	" ltd",
	" co.",
	" co",
}

// NormalizeName reduces a customer name to its comparable core: lower-cased,
// trailing legal suffixes stripped, punctuation turned into spaces, runs of
// whitespace collapsed.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
				stripped = true
				break
			}
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 0x80 {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
