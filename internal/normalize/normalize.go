// Package normalize provides text and currency cleanup helpers shared by the
// state-detection layer. It has no dependencies on the rest of the engine.
package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Text strips non-breaking and narrow no-break spaces, applies NFKC
// normalization, and trims surrounding whitespace. The strip runs
// first because NFKC folds those spaces into plain U+0020, which
// would leave a stray gap inside amounts like "$500\u00a0.00".
func Text(s string) string {
	s = strings.NewReplacer("\u00a0", "", "\u202f", "").Replace(s)
	s = norm.NFKC.String(s)
	return strings.TrimSpace(s)
}

// Currency parses currency-like text ("$1,234.56" -> 1234.56) into a float.
// The second return value is false when the text cannot be interpreted as a
// number; callers report that as "unknown" rather than an error.
//
// Separator disambiguation: when the text carries more than one comma and
// also a dot, the commas are thousands separators and are dropped. In every
// other case commas are dropped as well, so "1,234" parses as 1234.
func Currency(s string) (float64, bool) {
	t := Text(s)
	if t == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range t {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	t = b.String()

	if strings.Count(t, ",") > 1 && strings.Contains(t, ".") {
		t = strings.ReplaceAll(t, ",", "")
	}
	t = strings.ReplaceAll(t, ",", "")

	if t == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
