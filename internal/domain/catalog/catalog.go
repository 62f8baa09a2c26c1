// Package catalog holds the reference table of known lab tests: canonical
// keys, aliases, default units, reference ranges and advisory notes.
//
// A Catalog is built once at process start and never mutated afterwards.
// Every accessor returns copies, so callers cannot alter shared state.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

var (
	ErrDuplicateKey = errors.New("duplicate canonical key")
	ErrInvalidRange = errors.New("reference range low exceeds high")
	ErrMissingField = errors.New("required field missing")
)

// Range is an inclusive reference interval. A nil bound means unbounded.
type Range struct {
	Low  *float64 `yaml:"low" json:"low,omitempty"`
	High *float64 `yaml:"high" json:"high,omitempty"`
}

// NewRange builds a Range with both bounds present.
func NewRange(low, high float64) Range {
	return Range{Low: &low, High: &high}
}

// HasLow reports whether the lower bound is present.
func (r Range) HasLow() bool { return r.Low != nil }

// HasHigh reports whether the upper bound is present.
func (r Range) HasHigh() bool { return r.High != nil }

// Below reports whether v falls under the lower bound.
func (r Range) Below(v float64) bool { return r.Low != nil && v < *r.Low }

// Above reports whether v exceeds the upper bound.
func (r Range) Above(v float64) bool { return r.High != nil && v > *r.High }

// Contains reports whether v lies inside the range, bounds included.
func (r Range) Contains(v float64) bool { return !r.Below(v) && !r.Above(v) }

func (r Range) clone() Range {
	var out Range
	if r.Low != nil {
		low := *r.Low
		out.Low = &low
	}
	if r.High != nil {
		high := *r.High
		out.High = &high
	}
	return out
}

// Format renders the range for display, e.g. "12–16 g/dL", "≤ 200 mg/dL".
func (r Range) Format(unit string) string {
	var s string
	switch {
	case r.Low != nil && r.High != nil:
		s = formatBound(*r.Low) + "–" + formatBound(*r.High)
	case r.Low != nil:
		s = "≥ " + formatBound(*r.Low)
	case r.High != nil:
		s = "≤ " + formatBound(*r.High)
	default:
		return ""
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TestDefinition describes one clinical test.
type TestDefinition struct {
	Key      string   `yaml:"key" json:"key"`
	Label    string   `yaml:"label" json:"label"`
	Group    string   `yaml:"group" json:"group"`
	Unit     string   `yaml:"unit" json:"unit"`
	Aliases  []string `yaml:"aliases" json:"aliases"`
	Range    Range    `yaml:"range" json:"range"`
	LowNote  string   `yaml:"low_note" json:"low_note,omitempty"`
	HighNote string   `yaml:"high_note" json:"high_note,omitempty"`
}

func (d TestDefinition) clone() TestDefinition {
	d.Aliases = append([]string(nil), d.Aliases...)
	d.Range = d.Range.clone()
	return d
}

// Catalog is the immutable set of test definitions in priority order.
type Catalog struct {
	tests []TestDefinition
	index map[string]int
}

type document struct {
	Tests []TestDefinition `yaml:"tests"`
}

// New validates defs and builds a Catalog. Declaration order is preserved
// and defines alias matching priority.
func New(defs []TestDefinition) (*Catalog, error) {
	c := &Catalog{
		tests: make([]TestDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		d = d.clone()
		d.Key = strings.TrimSpace(d.Key)
		if d.Key == "" {
			return nil, fmt.Errorf("entry %d: key: %w", i, ErrMissingField)
		}
		if _, dup := c.index[d.Key]; dup {
			return nil, fmt.Errorf("%s: %w", d.Key, ErrDuplicateKey)
		}
		if d.Label == "" {
			d.Label = d.Key
		}
		if d.Group == "" {
			return nil, fmt.Errorf("%s: group: %w", d.Key, ErrMissingField)
		}
		if d.Range.Low != nil && d.Range.High != nil && *d.Range.Low > *d.Range.High {
			return nil, fmt.Errorf("%s: %w (%v > %v)", d.Key, ErrInvalidRange, *d.Range.Low, *d.Range.High)
		}
		aliases := make([]string, 0, len(d.Aliases))
		for _, a := range d.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				aliases = append(aliases, a)
			}
		}
		if len(aliases) == 0 {
			return nil, fmt.Errorf("%s: aliases: %w", d.Key, ErrMissingField)
		}
		d.Aliases = aliases
		c.index[d.Key] = len(c.tests)
		c.tests = append(c.tests, d)
	}
	return c, nil
}

// Load parses a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Tests)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded document
// is invalid, which the package tests guard against.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(strings.NewReader(string(embeddedCatalog)))
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Lookup returns the definition for a canonical key.
func (c *Catalog) Lookup(key string) (TestDefinition, bool) {
	i, ok := c.index[key]
	if !ok {
		return TestDefinition{}, false
	}
	return c.tests[i].clone(), true
}

// Has reports whether key is a known canonical key.
func (c *Catalog) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Order returns the declaration position of key, or -1 when unknown.
func (c *Catalog) Order(key string) int {
	if i, ok := c.index[key]; ok {
		return i
	}
	return -1
}

// Len returns the number of tests.
func (c *Catalog) Len() int { return len(c.tests) }

// Tests returns all definitions in priority order.
func (c *Catalog) Tests() []TestDefinition {
	out := make([]TestDefinition, len(c.tests))
	for i, d := range c.tests {
		out[i] = d.clone()
	}
	return out
}

// Keys returns canonical keys in priority order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.tests))
	for i, d := range c.tests {
		out[i] = d.Key
	}
	return out
}

// Alias pairs an alias phrase with the canonical key it names.
type Alias struct {
	Phrase string
	Key    string
}

// Aliases returns every alias in priority order: tests in declaration
// order, each test's aliases in their listed order.
func (c *Catalog) Aliases() []Alias {
	var out []Alias
	for _, d := range c.tests {
		for _, a := range d.Aliases {
			out = append(out, Alias{Phrase: a, Key: d.Key})
		}
	}
	return out
}

// Groups returns panel names in order of first appearance.
func (c *Catalog) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range c.tests {
		if !seen[d.Group] {
			seen[d.Group] = true
			out = append(out, d.Group)
		}
	}
	return out
}

// Label returns the human label for key, or the key itself when unknown.
func (c *Catalog) Label(key string) string {
	if i, ok := c.index[key]; ok {
		return c.tests[i].Label
	}
	return key
}
