package interpretation

import (
	"math"
	"sort"

	"github.com/labread/labread/internal/domain/catalog"
)

// Deviation tiers. A deviation below mildLimit is Mild, below moderateLimit
// Moderate, anything further Severe.
const (
	mildLimit     = 0.10
	moderateLimit = 0.30
)

// Engine classifies readings against a catalog. It is stateless and safe
// for concurrent use.
type Engine struct {
	cat *catalog.Catalog
}

// NewEngine creates an Engine over cat.
func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{cat: cat}
}

// Catalog returns the catalog used for classification.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Classify places value within r and grades the deviation.
func Classify(value float64, r catalog.Range) (Status, Severity, float64) {
	var bound float64
	var status Status
	switch {
	case r.Below(value):
		status, bound = StatusLow, *r.Low
	case r.Above(value):
		status, bound = StatusHigh, *r.High
	default:
		return StatusNormal, SeverityNormal, 0
	}
	// Any departure from a zero bound is treated as maximal.
	if bound == 0 {
		return status, SeveritySevere, 1
	}
	dev := math.Abs(value-bound) / math.Abs(bound)
	switch {
	case dev < mildLimit:
		return status, SeverityMild, dev
	case dev < moderateLimit:
		return status, SeverityModerate, dev
	}
	return status, SeveritySevere, dev
}

// Interpret classifies every reading. Tests come out in catalog order and
// unknown keys are listed separately in key order.
func (e *Engine) Interpret(readings map[string]Reading) Interpretation {
	in := Interpretation{
		Tests:        []TestResult{},
		Unconfigured: []Unconfigured{},
		Groups:       []GroupSeverity{},
		Overall:      SeverityUnknown,
	}

	for _, def := range e.cat.Tests() {
		rd, ok := readings[def.Key]
		if !ok {
			continue
		}
		status, sev, dev := Classify(rd.Value, def.Range)
		unit := rd.Unit
		if unit == "" {
			unit = def.Unit
		}
		tr := TestResult{
			Key:       def.Key,
			Label:     def.Label,
			Group:     def.Group,
			Value:     rd.Value,
			Unit:      unit,
			Range:     def.Range,
			RangeText: def.Range.Format(def.Unit),
			Status:    status,
			Severity:  sev,
			Rank:      sev.Rank(),
			Deviation: roundTo(dev, 3),
		}
		switch status {
		case StatusLow:
			tr.Note = def.LowNote
		case StatusHigh:
			tr.Note = def.HighNote
		}
		in.Tests = append(in.Tests, tr)
	}

	for key, rd := range readings {
		if !e.cat.Has(key) {
			in.Unconfigured = append(in.Unconfigured, Unconfigured{Key: key, Value: rd.Value, Unit: rd.Unit})
		}
	}
	sort.Slice(in.Unconfigured, func(i, j int) bool { return in.Unconfigured[i].Key < in.Unconfigured[j].Key })

	worst := make(map[string]Severity)
	for _, tr := range in.Tests {
		cur, seen := worst[tr.Group]
		if !seen {
			in.Groups = append(in.Groups, GroupSeverity{Group: tr.Group})
		}
		if !seen || tr.Severity.Rank() > cur.Rank() {
			worst[tr.Group] = tr.Severity
		}
		if tr.Severity.Rank() > in.Overall.Rank() {
			in.Overall = tr.Severity
		}
	}
	for i := range in.Groups {
		in.Groups[i].Severity = worst[in.Groups[i].Group]
	}

	if len(in.Tests) > 0 {
		in.SeverityScore = roundTo(float64(in.Overall.Rank())/float64(SeveritySevere.Rank()), 2)
	}
	return in
}

// Assess runs classification, risk scoring and condition tagging.
func (e *Engine) Assess(readings map[string]Reading) Assessment {
	return Assessment{
		Interpretation: e.Interpret(readings),
		Risk:           e.AssessRisk(readings),
		Conditions:     e.DetectConditions(readings),
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
