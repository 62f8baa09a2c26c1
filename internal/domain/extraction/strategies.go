package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

// collector accumulates observations under a winner policy.
type collector struct {
	obs      map[string]Observation
	matches  []Match
	lastWins bool
}

func newCollector(lastWins bool) *collector {
	return &collector{obs: make(map[string]Observation), lastWins: lastWins}
}

func (c *collector) match(key string, idx int, line string, v *float64) {
	c.matches = append(c.matches, Match{Key: key, LineIndex: idx, Line: line, Value: v})
}

func (c *collector) observe(o Observation) {
	if _, exists := c.obs[o.Key]; exists && !c.lastWins {
		return
	}
	c.obs[o.Key] = o
}

// scanLines is the primary strategy. Each line is scanned for every alias;
// the value for a name is read from the text between it and the next name.
// A line without any alias falls back to fuzzy token matching. A name whose
// value is missing takes the first number of the following line when that
// line names no test itself.
func (n *Normalizer) scanLines(lines []string) *collector {
	c := newCollector(false)
	lowered := make([]string, len(lines))
	for i, l := range lines {
		lowered[i] = strings.ToLower(prepare(l))
	}
	hitsAt := func(i int) []Hit { return n.Scan(lowered[i]) }

	for i, lower := range lowered {
		hits := hitsAt(i)
		if len(hits) == 0 {
			key, end, ok := n.Fuzzy(lower)
			if !ok {
				continue
			}
			hits = []Hit{{Key: key, Start: end, End: end}}
		}
		for j, h := range hits {
			stop := len(lower)
			if j+1 < len(hits) {
				stop = hits[j+1].Start
			}
			v := ExtractValue(valueSegment(lower[h.End:stop]))
			if !v.HasValue && j == len(hits)-1 && i+1 < len(lowered) && len(hitsAt(i+1)) == 0 {
				v = ExtractValue(lowered[i+1])
			}
			if !v.HasValue {
				c.match(h.Key, i, lines[i], nil)
				continue
			}
			if v.Unit == "" {
				v.Unit = ExtractUnit(lower[h.End:])
			}
			c.match(h.Key, i, lines[i], floatPtr(v.Number))
			c.observe(Observation{Key: h.Key, Value: v.Number, Unit: v.Unit, Line: lines[i], LineIndex: i})
		}
	}
	return c
}

// valueSegment drops one separator between a name and its value, so the
// hyphen in "glucose-130" is not read as a sign. A minus after the separator,
// as in "delta: -5", is kept.
func valueSegment(s string) string {
	s = strings.TrimLeft(s, " \t")
	if s != "" && strings.ContainsRune(":=-", rune(s[0])) {
		s = s[1:]
	}
	return s
}

// scanKeywords finds every alias on each line and assigns the line's first
// numeric token to each of them. A name glued to its value, as in
// "hba1c6.8", reads the number after the name instead.
func (n *Normalizer) scanKeywords(lines []string) *collector {
	c := newCollector(false)
	for i, l := range lines {
		lower := strings.ToLower(prepare(l))
		hits := n.Scan(lower)
		if len(hits) == 0 {
			continue
		}
		lineNum, lineOK := FirstNumberToken(lower)
		unit := ExtractUnit(lower)
		for _, h := range hits {
			num, ok := lineNum, lineOK
			if gluedValue(lower, h.Alias, h.End) {
				num, ok = FirstNumberToken(lower[h.End:])
			}
			if !ok {
				c.match(h.Key, i, l, nil)
				continue
			}
			c.match(h.Key, i, l, floatPtr(num))
			c.observe(Observation{Key: h.Key, Value: num, Unit: unit, Line: l, LineIndex: i})
		}
	}
	return c
}

// The integer pass must not split a decimal, so its number has to end at a
// character that is neither a digit nor a decimal point.
var delimiterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([a-z \-/()%.]+)\s*[:=\-]\s*([0-9]+\.[0-9]+)`),
	regexp.MustCompile(`([a-z \-/()%.]+)\s*[:=\-]\s*([0-9]+)(?:[^0-9.]|\.[^0-9]|$)`),
}

// scanDelimited matches "name <:|=|-> number" over the case-folded text.
// Both passes run in order over the whole blob and later matches overwrite
// earlier ones.
func (n *Normalizer) scanDelimited(lines []string) *collector {
	c := newCollector(true)
	folded := make([]string, len(lines))
	for i, l := range lines {
		folded[i] = strings.ToLower(prepare(l))
	}
	blob := strings.Join(folded, "\n")
	starts := make([]int, len(folded))
	off := 0
	for i, l := range folded {
		starts[i] = off
		off += len(l) + 1
	}
	lineOf := func(pos int) int {
		idx := 0
		for i, s := range starts {
			if s > pos {
				break
			}
			idx = i
		}
		return idx
	}

	for _, re := range delimiterPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(blob, -1) {
			name := blob[m[2]:m[3]]
			key, ok := n.Exact(name)
			if !ok {
				continue
			}
			num, err := strconv.ParseFloat(blob[m[4]:m[5]], 64)
			if err != nil {
				continue
			}
			idx := lineOf(m[4])
			unit := ExtractUnit(folded[idx][m[5]-starts[idx]:])
			c.match(key, idx, lines[idx], floatPtr(num))
			c.observe(Observation{Key: key, Value: num, Unit: unit, Line: lines[idx], LineIndex: idx})
		}
	}
	return c
}
