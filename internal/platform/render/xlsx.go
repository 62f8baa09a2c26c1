package render

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/labread/labread/internal/domain/narrative"
)

// Workbook sheet names.
const (
	SheetTests        = "Tests"
	SheetPanels       = "Panels"
	SheetConditions   = "Conditions"
	SheetMatchedLines = "Matched Lines"
)

// XLSX renders the analysis as a workbook with one sheet per table.
func XLSX(in Input) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTests); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetPanels, SheetConditions, SheetMatchedLines} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	tests := [][]any{}
	for _, t := range in.Interpretation.Tests {
		tests = append(tests, []any{t.Key, t.Label, t.Group, t.Value, t.Unit, t.RangeText, string(t.Status), string(t.Severity), t.Deviation, t.Note})
	}
	for _, u := range in.Interpretation.Unconfigured {
		tests = append(tests, []any{u.Key, u.Key, "", u.Value, u.Unit, "", narrative.StatusNotConfigured, "", "", ""})
	}

	panels := [][]any{}
	for _, g := range in.Interpretation.Groups {
		panels = append(panels, []any{g.Group, string(g.Severity)})
	}
	panels = append(panels, []any{"Overall", string(in.Interpretation.Overall)})

	conditions := [][]any{}
	for _, c := range in.Conditions {
		conditions = append(conditions, []any{c})
	}

	matched := [][]any{}
	for _, m := range in.MatchedLines {
		var v any
		if m.Value != nil {
			v = *m.Value
		}
		matched = append(matched, []any{m.Key, m.LineIndex, m.Line, v})
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
		widths []float64
	}{
		{SheetTests, []any{"Key", "Test", "Panel", "Value", "Unit", "Reference", "Status", "Severity", "Deviation", "Note"}, tests,
			[]float64{18, 24, 14, 10, 10, 18, 10, 10, 10, 50}},
		{SheetPanels, []any{"Panel", "Severity"}, panels, []float64{18, 12}},
		{SheetConditions, []any{"Condition"}, conditions, []float64{28}},
		{SheetMatchedLines, []any{"Key", "Line #", "Line", "Value"}, matched, []float64{18, 8, 60, 10}},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows, bold); err != nil {
			return nil, err
		}
		for i, w := range s.widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(s.name, col, col, w)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := r
		for j, v := range row {
			if s, ok := v.(string); ok {
				row[j] = strings.TrimSpace(s)
			}
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
