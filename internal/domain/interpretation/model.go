// Package interpretation classifies extracted lab values against reference
// ranges and derives severities, a risk score and rule-based condition tags.
// Its output is a heuristic signal, not a diagnosis.
package interpretation

import "github.com/labread/labread/internal/domain/catalog"

// Status places a value relative to its reference range.
type Status string

const (
	StatusNormal Status = "Normal"
	StatusLow    Status = "Low"
	StatusHigh   Status = "High"
)

// Severity is an ordinal tier of deviation from the reference range.
type Severity string

const (
	SeverityUnknown  Severity = "Unknown"
	SeverityNormal   Severity = "Normal"
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// Rank orders severities: Normal 0 < Mild 1 < Moderate 2 < Severe 3.
// Unknown ranks below Normal.
func (s Severity) Rank() int {
	switch s {
	case SeverityNormal:
		return 0
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	}
	return -1
}

// Reading is one measured value handed to the engine.
type Reading struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Readings builds plain readings from a key to value mapping.
func Readings(values map[string]float64) map[string]Reading {
	out := make(map[string]Reading, len(values))
	for k, v := range values {
		out[k] = Reading{Value: v}
	}
	return out
}

// TestResult is the classification of one configured test.
type TestResult struct {
	Key       string        `json:"key"`
	Label     string        `json:"label"`
	Group     string        `json:"group"`
	Value     float64       `json:"value"`
	Unit      string        `json:"unit"`
	Range     catalog.Range `json:"range"`
	RangeText string        `json:"range_text"`
	Status    Status        `json:"status"`
	Severity  Severity      `json:"severity"`
	Rank      int           `json:"rank"`
	Deviation float64       `json:"deviation"`
	Note      string        `json:"note,omitempty"`
}

// Unconfigured is a value whose key the catalog does not know.
type Unconfigured struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// GroupSeverity is the worst severity within one panel.
type GroupSeverity struct {
	Group    string   `json:"group"`
	Severity Severity `json:"severity"`
}

// Interpretation is the per-test and aggregate classification.
type Interpretation struct {
	Tests         []TestResult    `json:"tests"`
	Unconfigured  []Unconfigured  `json:"unconfigured"`
	Groups        []GroupSeverity `json:"groups"`
	Overall       Severity        `json:"overall"`
	SeverityScore float64         `json:"severity_score"`
}

// Risk labels.
const (
	RiskUnknown  = "Unknown"
	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"
)

// Risk is the coarse out-of-range fraction heuristic.
type Risk struct {
	Score        float64 `json:"risk_score"`
	Label        string  `json:"risk_label"`
	Anomalous    bool    `json:"is_anomalous"`
	AnomalyScore float64 `json:"anomaly_score"`
	OutOfRange   int     `json:"out_of_range"`
	Classified   int     `json:"classified"`
}

// Assessment bundles everything the engine derives from one set of readings.
type Assessment struct {
	Interpretation Interpretation `json:"interpretation"`
	Risk           Risk           `json:"risk"`
	Conditions     []string       `json:"conditions"`
}
