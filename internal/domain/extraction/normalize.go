package extraction

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/labread/labread/internal/domain/catalog"
)

// DefaultThreshold is the minimum similarity for a fuzzy alias match.
const DefaultThreshold = 0.75

// minFuzzyToken is the shortest token considered for fuzzy matching. One and
// two letter fragments clear almost any threshold against short aliases.
const minFuzzyToken = 3

// Similarity scores two strings on a 0..1 scale, 1 meaning identical.
type Similarity func(a, b string) float64

// EditSimilarity is the default Similarity: normalized Levenshtein distance.
func EditSimilarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
}

// Hit is one alias occurrence inside a line.
type Hit struct {
	Key   string
	Alias string
	Start int
	End   int
}

// Normalizer resolves free text to canonical test keys.
type Normalizer struct {
	cat        *catalog.Catalog
	aliases    []catalog.Alias
	threshold  float64
	similarity Similarity
}

// NewNormalizer builds a Normalizer over cat. A zero threshold or nil
// similarity selects the defaults.
func NewNormalizer(cat *catalog.Catalog, threshold float64, sim Similarity) *Normalizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if sim == nil {
		sim = EditSimilarity
	}
	return &Normalizer{
		cat:        cat,
		aliases:    cat.Aliases(),
		threshold:  threshold,
		similarity: sim,
	}
}

// Catalog returns the catalog the normalizer reads from.
func (n *Normalizer) Catalog() *catalog.Catalog { return n.cat }

// Exact returns the key of the first alias, in catalog priority order, that
// occurs inside phrase as a whole word sequence.
func (n *Normalizer) Exact(phrase string) (string, bool) {
	phrase = strings.ToLower(prepare(phrase))
	for _, a := range n.aliases {
		if indexWord(phrase, a.Phrase, 0) >= 0 {
			return a.Key, true
		}
	}
	return "", false
}

// Fuzzy splits line into alphanumeric tokens and returns the key of the first
// token, in line order, whose best alias similarity reaches the threshold.
// The returned end offset points just past the accepted token. A token with a
// numeric tail, as in "hemoglobln13.5", is first compared without the tail and
// the offset then points at the first digit.
func (n *Normalizer) Fuzzy(line string) (key string, end int, ok bool) {
	line = strings.ToLower(prepare(line))
	for _, tok := range tokens(line) {
		word := line[tok[0]:tok[1]]
		if isNumeric(word) {
			continue
		}
		if stem := strings.TrimRightFunc(word, unicode.IsDigit); stem != word {
			if key, ok := n.bestAlias(stem); ok {
				return key, tok[0] + len(stem), true
			}
		}
		if key, ok := n.bestAlias(word); ok {
			return key, tok[1], true
		}
	}
	return "", 0, false
}

func (n *Normalizer) bestAlias(word string) (string, bool) {
	if utf8.RuneCountInString(word) < minFuzzyToken {
		return "", false
	}
	best, bestKey := 0.0, ""
	for _, a := range n.aliases {
		if s := n.similarity(word, a.Phrase); s > best {
			best, bestKey = s, a.Key
		}
	}
	return bestKey, best >= n.threshold
}

// Resolve tries the exact tier, then the fuzzy tier.
func (n *Normalizer) Resolve(phrase string) (string, bool) {
	if key, ok := n.Exact(phrase); ok {
		return key, true
	}
	key, _, ok := n.Fuzzy(phrase)
	return key, ok
}

// Scan returns every test named in line, one hit per key, ordered by
// position. Aliases are tried in catalog priority order and an occurrence
// that overlaps an already claimed span is ignored, so "hdl cholesterol"
// does not also count as total cholesterol. line must already be prepared
// and lowercased.
func (n *Normalizer) Scan(line string) []Hit {
	var hits []Hit
	seen := make(map[string]bool)
	for _, a := range n.aliases {
		if seen[a.Key] {
			continue
		}
		from := 0
		for {
			i := indexWord(line, a.Phrase, from)
			if i < 0 {
				break
			}
			end := i + len(a.Phrase)
			if !overlaps(hits, i, end) {
				hits = append(hits, Hit{Key: a.Key, Alias: a.Phrase, Start: i, End: end})
				seen[a.Key] = true
				break
			}
			from = i + 1
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Start < hits[j].Start })
	return hits
}

func overlaps(hits []Hit, start, end int) bool {
	for _, h := range hits {
		if start < h.End && h.Start < end {
			return true
		}
	}
	return false
}

// indexWord finds sub in s at or after from such that it is not glued to a
// letter or digit on either side. A digit directly after an alias that ends
// in a letter still counts as a boundary, so "hba1c6.8" names hba1c while
// "b1" never matches inside "b12".
func indexWord(s, sub string, from int) int {
	for from <= len(s) {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(sub)
		if boundaryBefore(s, i) && (boundaryAfter(s, end) || gluedValue(s, sub, end)) {
			return i
		}
		from = i + 1
	}
	return -1
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isAlnum(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isAlnum(r)
}

func gluedValue(s, sub string, i int) bool {
	if i >= len(s) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(sub)
	next, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(last) && unicode.IsDigit(next)
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// tokens returns byte spans of maximal alphanumeric runs.
func tokens(s string) [][2]int {
	var out [][2]int
	start := -1
	for i, r := range s {
		if isAlnum(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, len(s)})
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
