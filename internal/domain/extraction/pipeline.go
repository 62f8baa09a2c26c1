package extraction

import (
	"github.com/labread/labread/internal/domain/catalog"
)

// Options configures a Pipeline. Zero values select the defaults.
type Options struct {
	Strategy   Strategy
	Threshold  float64
	Similarity Similarity
}

// Pipeline extracts observations from OCR pages. It holds no per-run state
// and is safe for concurrent use.
type Pipeline struct {
	norm     *Normalizer
	strategy Strategy
}

// NewPipeline builds a Pipeline over cat.
func NewPipeline(cat *catalog.Catalog, opts Options) *Pipeline {
	s := opts.Strategy
	if s == "" {
		s = StrategyLine
	}
	return &Pipeline{
		norm:     NewNormalizer(cat, opts.Threshold, opts.Similarity),
		strategy: s,
	}
}

// Strategy returns the active strategy.
func (p *Pipeline) Strategy() Strategy { return p.strategy }

// Normalizer returns the underlying name resolver.
func (p *Pipeline) Normalizer() *Normalizer { return p.norm }

// WithStrategy returns a copy of p using s.
func (p *Pipeline) WithStrategy(s Strategy) *Pipeline {
	cp := *p
	if s != "" {
		cp.strategy = s
	}
	return &cp
}

// Extract scans pages and returns one observation per recognised test.
// Empty input yields an empty result. When the active strategy finds
// nothing, a narrow per-test pattern pass runs over the full text.
func (p *Pipeline) Extract(pages []Page) Result {
	lines := Lines(pages)

	var c *collector
	switch p.strategy {
	case StrategyKeyword:
		c = p.norm.scanKeywords(lines)
	case StrategyDelimiter:
		c = p.norm.scanDelimited(lines)
	default:
		c = p.norm.scanLines(lines)
	}

	res := Result{
		Strategy:     p.strategy,
		Observations: c.obs,
		Matches:      c.matches,
	}
	if res.Matches == nil {
		res.Matches = []Match{}
	}

	if len(res.Observations) == 0 && len(lines) > 0 {
		for key, o := range fallbackScan(lines) {
			if _, ok := res.Observations[key]; ok {
				continue
			}
			res.Observations[key] = o
			res.FallbackUsed = true
		}
	}

	cat := p.norm.Catalog()
	for key, o := range res.Observations {
		if o.Unit != "" {
			continue
		}
		if def, ok := cat.Lookup(key); ok {
			o.Unit = def.Unit
			o.UnitDefaulted = true
			res.Observations[key] = o
		}
	}
	return res
}

// ExtractText is Extract over a single page of text.
func (p *Pipeline) ExtractText(text string) Result {
	return p.Extract([]Page{{Number: 1, Text: text}})
}
