package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reDecimal = regexp.MustCompile(`-?\d+\.\d+`)
	reInteger = regexp.MustCompile(`-?\d+`)
)

// Unit patterns in priority order. The first pattern that matches anywhere in
// the text wins, regardless of where later patterns would have matched.
// Exponent units fold to a canonical spelling since NFKC turns "10⁹" into
// "109".
var unitPatterns = []struct {
	re        *regexp.Regexp
	canonical string
}{
	{re: regexp.MustCompile(`(?i)mg/dl`)},
	{re: regexp.MustCompile(`(?i)mmol/l`)},
	{re: regexp.MustCompile(`(?i)g/dl`)},
	{re: regexp.MustCompile(`(?i)iu/l`)},
	{re: regexp.MustCompile(`(?i)u/l`)},
	{re: regexp.MustCompile(`(?i)[µμ]iu/ml`)},
	{re: regexp.MustCompile(`(?i)(?:[x×]\s*)?10\^?9/l`), canonical: "×10^9/l"},
	{re: regexp.MustCompile(`(?i)(?:[x×]\s*)?10\^?3/[µμu]l`), canonical: "×10^3/µl"},
	{re: regexp.MustCompile(`(?i)%|ng/ml|pg|fl|[µμ]g/l`)},
}

// Value is a parsed number plus an optional unit.
type Value struct {
	Number   float64
	HasValue bool
	Unit     string
}

// prepare folds compatibility forms (superscripts, full-width digits, the
// micro sign) so the patterns see plain text.
func prepare(s string) string {
	s = norm.NFKC.String(s)
	return strings.ReplaceAll(s, "\u03bc", "\u00b5")
}

// ExtractValue returns the first number in s and, independently, the first
// unit token by pattern priority. Units are returned lowercased.
func ExtractValue(s string) Value {
	s = prepare(s)
	var v Value
	if n, ok := firstNumber(s, reDecimal); ok {
		v.Number, v.HasValue = n, true
	} else if n, ok := firstNumber(s, reInteger); ok {
		v.Number, v.HasValue = n, true
	}
	v.Unit = ExtractUnit(s)
	return v
}

// ExtractUnit returns the highest-priority unit token found in s, lowercased,
// or "" when none is present.
func ExtractUnit(s string) string {
	s = prepare(s)
	for _, p := range unitPatterns {
		m := p.re.FindString(s)
		if m == "" {
			continue
		}
		if p.canonical != "" {
			return p.canonical
		}
		return strings.ToLower(m)
	}
	return ""
}

func firstNumber(s string, re *regexp.Regexp) (float64, bool) {
	for _, loc := range re.FindAllStringIndex(s, -1) {
		tok := s[loc[0]:loc[1]]
		// A hyphen glued to a word ("Glucose-130") is a separator, not a sign.
		if tok[0] == '-' && loc[0] > 0 {
			r, _ := utf8.DecodeLastRuneInString(s[:loc[0]])
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				tok = tok[1:]
			}
		}
		n, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// FirstNumberToken implements the token scan used by the keyword strategy:
// commas become spaces, each whitespace token has trailing punctuation
// stripped and is reduced to digits, one decimal point and a leading minus.
// The first token that parses wins.
func FirstNumberToken(line string) (float64, bool) {
	line = strings.ReplaceAll(prepare(line), ",", " ")
	for _, tok := range strings.Fields(line) {
		tok = strings.TrimRight(tok, ":;.)")
		var b strings.Builder
		dot, digit := false, false
		for i, r := range tok {
			switch {
			case r >= '0' && r <= '9':
				b.WriteRune(r)
				digit = true
			case r == '.' && !dot:
				b.WriteRune(r)
				dot = true
			case r == '-' && i == 0:
				b.WriteRune(r)
			}
		}
		if !digit {
			continue
		}
		n, err := strconv.ParseFloat(b.String(), 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}
