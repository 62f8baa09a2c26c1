// Package analysis wires OCR, extraction, interpretation and narrative into
// one request-scoped pipeline and exposes it over HTTP.
package analysis

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/labread/labread/internal/domain/extraction"
	"github.com/labread/labread/internal/domain/interpretation"
	"github.com/labread/labread/internal/domain/narrative"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyInput          = errors.New("empty input")
	ErrOCRFailed           = errors.New("ocr failed")
	ErrNotFound            = errors.New("analysis not found")
	ErrStoreDisabled       = errors.New("analysis storage is not configured")
)

// KindValues marks a report built from submitted values rather than a file.
const KindValues = "values"

// Report is the complete output record for one analysis.
type Report struct {
	ID             uuid.UUID                     `json:"id"`
	Filename       string                        `json:"filename,omitempty"`
	Kind           string                        `json:"kind"`
	Strategy       extraction.Strategy           `json:"strategy,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
	Pages          []extraction.Page             `json:"pages"`
	Observations   []extraction.Observation      `json:"observations"`
	MatchedLines   []extraction.Match            `json:"matched_lines"`
	FallbackUsed   bool                          `json:"fallback_used"`
	Interpretation interpretation.Interpretation `json:"interpretation"`
	Risk           interpretation.Risk           `json:"risk"`
	Conditions     []string                      `json:"conditions"`
	Narrative      narrative.Document            `json:"narrative"`
}

// Summary is the listing view of a stored report.
type Summary struct {
	ID         uuid.UUID               `json:"id"`
	Filename   string                  `json:"filename,omitempty"`
	Kind       string                  `json:"kind"`
	Overall    interpretation.Severity `json:"overall_severity"`
	RiskLabel  string                  `json:"risk_label"`
	RiskScore  float64                 `json:"risk_score"`
	Conditions []string                `json:"conditions"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Summary returns the listing view of r.
func (r *Report) Summary() Summary {
	return Summary{
		ID:         r.ID,
		Filename:   r.Filename,
		Kind:       r.Kind,
		Overall:    r.Interpretation.Overall,
		RiskLabel:  r.Risk.Label,
		RiskScore:  r.Risk.Score,
		Conditions: r.Conditions,
		CreatedAt:  r.CreatedAt,
	}
}

// Values returns the observed value per key.
func (r *Report) Values() map[string]float64 {
	out := make(map[string]float64, len(r.Observations))
	for _, o := range r.Observations {
		out[o.Key] = o.Value
	}
	return out
}

func severityOf(s string) interpretation.Severity {
	switch sev := interpretation.Severity(s); sev {
	case interpretation.SeverityNormal, interpretation.SeverityMild,
		interpretation.SeverityModerate, interpretation.SeveritySevere:
		return sev
	}
	return interpretation.SeverityUnknown
}
