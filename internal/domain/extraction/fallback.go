package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

type fallbackRule struct {
	key string
	re  *regexp.Regexp
}

// fallbackRules is a deliberately narrow per-test pattern table, applied to
// the whole text only when the structured scan finds nothing.
var fallbackRules = []fallbackRule{
	{"hemoglobin", regexp.MustCompile(`hemoglobin[^0-9]*([\d.]+)`)},
	{"wbc", regexp.MustCompile(`(?:wbc count|total leucocyte count|wbc)[^0-9]*([\d.]+)`)},
	{"platelets", regexp.MustCompile(`(?:platelet count|platelets)[^0-9]*([\d.]+)`)},
	{"fasting_glucose", regexp.MustCompile(`(?:fasting glucose|fasting blood sugar|fbs)[^0-9]*([\d.]+)`)},
	{"pp_glucose", regexp.MustCompile(`(?:post[- ]prandial glucose|pp glucose)[^0-9]*([\d.]+)`)},
	{"hba1c", regexp.MustCompile(`hba1c[^0-9]*([\d.]+)`)},
	{"creatinine", regexp.MustCompile(`(?:serum creatinine|creatinine)[^0-9]*([\d.]+)`)},
	{"urea", regexp.MustCompile(`(?:blood urea|urea)[^0-9]*([\d.]+)`)},
	{"total_cholesterol", regexp.MustCompile(`total cholesterol[^0-9]*([\d.]+)`)},
	{"triglycerides", regexp.MustCompile(`triglycerides[^0-9]*([\d.]+)`)},
	{"hdl", regexp.MustCompile(`\bhdl\b[^0-9]*([\d.]+)`)},
	{"ldl", regexp.MustCompile(`\bldl\b[^0-9]*([\d.]+)`)},
	{"total_bilirubin", regexp.MustCompile(`total bilirubin[^0-9]*([\d.]+)`)},
	{"direct_bilirubin", regexp.MustCompile(`direct bilirubin[^0-9]*([\d.]+)`)},
	{"sgpt", regexp.MustCompile(`(?:\balt\s*\(sgpt\)|sgpt|\balt\b)[^0-9]*([\d.]+)`)},
	{"sgot", regexp.MustCompile(`(?:\bast\s*\(sgot\)|sgot|\bast\b)[^0-9]*([\d.]+)`)},
	{"alp", regexp.MustCompile(`(?:alkaline phosphatase|\balp\b)[^0-9]*([\d.]+)`)},
	{"tsh", regexp.MustCompile(`\btsh\b[^0-9]*([\d.]+)`)},
	{"vitamin_d", regexp.MustCompile(`vitamin\s*d3?\b[^0-9]*([\d.]+)`)},
	{"vitamin_b12", regexp.MustCompile(`vitamin\s*b12[^0-9]*([\d.]+)`)},
	{"crp", regexp.MustCompile(`\bcrp\b[^0-9]*([\d.]+)`)},
	{"esr", regexp.MustCompile(`\besr\b[^0-9]*([\d.]+)`)},
}

// fallbackScan applies fallbackRules to the lowercased text. Each rule takes
// its first match; a capture that does not parse ("..") is skipped.
func fallbackScan(lines []string) map[string]Observation {
	folded := make([]string, len(lines))
	for i, l := range lines {
		folded[i] = strings.ToLower(prepare(l))
	}
	text := strings.Join(folded, "\n")

	out := make(map[string]Observation)
	for _, r := range fallbackRules {
		m := r.re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		num, err := strconv.ParseFloat(strings.TrimRight(text[m[2]:m[3]], "."), 64)
		if err != nil {
			continue
		}
		idx := strings.Count(text[:m[2]], "\n")
		line := ""
		if idx < len(lines) {
			line = lines[idx]
		}
		out[r.key] = Observation{
			Key:       r.key,
			Value:     num,
			Unit:      ExtractUnit(text[m[3]:lineEnd(text, m[3])]),
			Line:      line,
			LineIndex: idx,
		}
	}
	return out
}

func lineEnd(s string, from int) int {
	if i := strings.IndexByte(s[from:], '\n'); i >= 0 {
		return from + i
	}
	return len(s)
}
