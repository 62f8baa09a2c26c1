// Package extraction turns OCR page text into canonical test observations.
package extraction

import (
	"fmt"
	"strings"
)

// Strategy selects how lines are scanned for test names and values.
type Strategy string

const (
	// StrategyLine resolves names per line with alias and fuzzy matching and
	// reads the value that follows the name. First occurrence wins.
	StrategyLine Strategy = "line"
	// StrategyKeyword finds every alias on a line and takes the first
	// numeric token of the whole line. First occurrence wins.
	StrategyKeyword Strategy = "keyword"
	// StrategyDelimiter matches "name : value" patterns over the whole text.
	// Last occurrence wins.
	StrategyDelimiter Strategy = "delimiter"
)

// ParseStrategy validates a strategy name. The empty string selects
// StrategyLine.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyLine:
		return StrategyLine, nil
	case StrategyKeyword:
		return StrategyKeyword, nil
	case StrategyDelimiter:
		return StrategyDelimiter, nil
	}
	return "", fmt.Errorf("unknown extraction strategy %q", s)
}

// Page is one page of OCR output. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Observation is the winning value for one test.
type Observation struct {
	Key           string  `json:"key"`
	Value         float64 `json:"value"`
	Unit          string  `json:"unit"`
	UnitDefaulted bool    `json:"unit_defaulted,omitempty"`
	Line          string  `json:"line"`
	LineIndex     int     `json:"line_index"`
}

// Match records any line naming a test, whether or not it won.
type Match struct {
	Key       string   `json:"key"`
	LineIndex int      `json:"line_index"`
	Line      string   `json:"line"`
	Value     *float64 `json:"value,omitempty"`
}

// Result is the outcome of one extraction run. Observations are keyed by
// canonical key; Matches are in discovery order.
type Result struct {
	Strategy     Strategy               `json:"strategy"`
	Observations map[string]Observation `json:"observations"`
	Matches      []Match                `json:"matches"`
	FallbackUsed bool                   `json:"fallback_used"`
}

// Values returns the bare key to value mapping.
func (r Result) Values() map[string]float64 {
	out := make(map[string]float64, len(r.Observations))
	for k, o := range r.Observations {
		out[k] = o.Value
	}
	return out
}

// Lines flattens pages into trimmed, non-empty lines numbered continuously
// across page boundaries.
func Lines(pages []Page) []string {
	var out []string
	for _, p := range pages {
		for _, l := range strings.Split(strings.ReplaceAll(p.Text, "\r\n", "\n"), "\n") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}

// FullText joins page text the way the OCR collaborator does.
func FullText(pages []Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

func floatPtr(v float64) *float64 { return &v }
