package analysis

import (
	"path/filepath"
	"strings"

	"github.com/labread/labread/internal/platform/render"
)

// RenderInput adapts r for the renderers.
func (r *Report) RenderInput() render.Input {
	return render.Input{
		ID:             r.ID.String(),
		Filename:       r.Filename,
		CreatedAt:      r.CreatedAt,
		Observations:   r.Observations,
		MatchedLines:   r.MatchedLines,
		Interpretation: r.Interpretation,
		Risk:           r.Risk,
		Conditions:     r.Conditions,
		Narrative:      r.Narrative,
		Record:         r,
	}
}

// Export renders r in format f.
func Export(r *Report, f render.Format) ([]byte, error) {
	return render.Render(f, r.RenderInput())
}

// ExportFilename names the download for r, based on the uploaded file when
// there is one.
func ExportFilename(r *Report, f render.Format) string {
	base := strings.TrimSuffix(filepath.Base(r.Filename), filepath.Ext(r.Filename))
	if r.Filename == "" || base == "" || base == "." {
		base = "analysis-" + r.ID.String()
	}
	return base + "-analysis." + f.Ext()
}
