package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/labread/labread/internal/domain/narrative"
)

const (
	pdfLine   = 5.0
	pdfMargin = 15.0
)

// Core PDF fonts are cp1252; these glyphs are outside it.
var pdfReplacer = strings.NewReplacer("≤", "<=", "≥", ">=", "μ", "µ")

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	w   float64
}

// PDF renders a printable report: title, overall severity, panel table,
// test table, guidance and the disclaimer.
func PDF(in Input) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(title(in), true)
	pdf.SetCreator("labread", true)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	w := &pdfWriter{
		pdf: pdf,
		tr:  func(s string) string { return tr(pdfReplacer.Replace(s)) },
		w:   pageW - 2*pdfMargin,
	}

	w.heading(title(in), 16)
	if !in.CreatedAt.IsZero() {
		w.text("Generated "+in.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), 9)
	}
	w.text(fmt.Sprintf("Overall severity: %s    Risk: %s (%s)",
		in.Interpretation.Overall, in.Risk.Label, formatValue(in.Risk.Score)), 11)
	pdf.Ln(2)

	if len(in.Interpretation.Groups) > 0 {
		w.heading("Panels", 13)
		rows := make([][]string, 0, len(in.Interpretation.Groups))
		for _, g := range in.Interpretation.Groups {
			rows = append(rows, []string{g.Group, string(g.Severity)})
		}
		w.table([]string{"Panel", "Severity"}, []float64{0.6, 0.4}, rows)
	}

	if len(in.Interpretation.Tests) > 0 || len(in.Interpretation.Unconfigured) > 0 {
		w.heading("Tests", 13)
		var rows [][]string
		for _, t := range in.Interpretation.Tests {
			rows = append(rows, []string{t.Label, formatValue(t.Value), t.Unit, t.RangeText, string(t.Status), string(t.Severity)})
		}
		for _, u := range in.Interpretation.Unconfigured {
			rows = append(rows, []string{u.Key, formatValue(u.Value), u.Unit, "", narrative.StatusNotConfigured, ""})
		}
		w.table([]string{"Test", "Value", "Unit", "Reference", "Status", "Severity"},
			[]float64{0.26, 0.12, 0.12, 0.2, 0.15, 0.15}, rows)
	}

	for _, s := range in.Narrative.Sections {
		if s.Kind == narrative.KindTests {
			continue
		}
		w.section(s)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) heading(s string, size float64) {
	w.pdf.SetFont("Helvetica", "B", size)
	w.pdf.MultiCell(w.w, size*0.5, w.tr(s), "", "L", false)
	w.pdf.Ln(1)
}

func (w *pdfWriter) text(s string, size float64) {
	w.pdf.SetFont("Helvetica", "", size)
	w.pdf.MultiCell(w.w, pdfLine, w.tr(s), "", "L", false)
}

func (w *pdfWriter) bullets(items []string) {
	w.pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		w.pdf.MultiCell(w.w, pdfLine, w.tr("- "+it), "", "L", false)
	}
}

func (w *pdfWriter) table(header []string, widths []float64, rows [][]string) {
	w.pdf.SetFont("Helvetica", "B", 9)
	w.pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		w.pdf.CellFormat(widths[i]*w.w, 6, w.tr(h), "1", 0, "L", true, 0, "")
	}
	w.pdf.Ln(-1)
	w.pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		for i, c := range r {
			w.pdf.CellFormat(widths[i]*w.w, 6, w.tr(c), "1", 0, "L", false, 0, "")
		}
		w.pdf.Ln(-1)
	}
	w.pdf.Ln(3)
}

func (w *pdfWriter) section(s narrative.Section) {
	w.heading(s.Title, 12)
	for _, p := range s.Paragraphs {
		w.text(p, 10)
		w.pdf.Ln(1)
	}
	for _, b := range s.Blocks {
		w.heading(b.Title, 10)
		w.bullets(b.Bullets)
		w.pdf.Ln(1)
	}
	w.bullets(s.Bullets)
	if s.Subtitle != "" {
		w.heading(s.Subtitle, 10)
	}
	w.bullets(s.SubBullets)
	w.pdf.Ln(3)
}
