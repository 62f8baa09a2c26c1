// Package render turns an analysis into downloadable documents.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labread/labread/internal/domain/extraction"
	"github.com/labread/labread/internal/domain/interpretation"
	"github.com/labread/labread/internal/domain/narrative"
)

// Format is an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat accepts a format name or common file extension. The empty
// string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Input is everything a renderer may draw from. Record is the full
// structured record used for the JSON format.
type Input struct {
	ID             string
	Filename       string
	CreatedAt      time.Time
	Observations   []extraction.Observation
	MatchedLines   []extraction.Match
	Interpretation interpretation.Interpretation
	Risk           interpretation.Risk
	Conditions     []string
	Narrative      narrative.Document
	Record         any
}

// Render produces the document for f.
func Render(f Format, in Input) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(in.Record)
	case FormatMarkdown:
		return []byte(Markdown(in)), nil
	case FormatPDF:
		return PDF(in)
	case FormatXLSX:
		return XLSX(in)
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func valueWithUnit(v float64, unit string) string {
	if unit == "" {
		return formatValue(v)
	}
	return formatValue(v) + " " + unit
}

func title(in Input) string {
	if in.Filename != "" {
		return "Lab Report Analysis: " + in.Filename
	}
	return "Lab Report Analysis"
}
