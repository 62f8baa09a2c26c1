package render

import (
	"fmt"
	"strings"

	"github.com/labread/labread/internal/domain/narrative"
)

// Markdown renders the summary header followed by the narrative sections in
// order.
func Markdown(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title(in))
	if !in.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated %s_\n\n", in.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "**Overall severity:** %s  \n", in.Interpretation.Overall)
	fmt.Fprintf(&b, "**Risk:** %s (%s)\n\n", in.Risk.Label, formatValue(in.Risk.Score))

	if len(in.Interpretation.Groups) > 0 {
		b.WriteString("| Panel | Severity |\n|---|---|\n")
		for _, g := range in.Interpretation.Groups {
			fmt.Fprintf(&b, "| %s | %s |\n", g.Group, g.Severity)
		}
		b.WriteString("\n")
	}

	for _, s := range in.Narrative.Sections {
		writeSection(&b, s)
	}
	return b.String()
}

func writeSection(b *strings.Builder, s narrative.Section) {
	fmt.Fprintf(b, "## %s\n\n", s.Title)
	for _, p := range s.Paragraphs {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	for _, t := range s.Tests {
		fmt.Fprintf(b, "- **%s**: %s", t.Label, valueWithUnit(t.Value, t.Unit))
		if t.RangeText != "" {
			fmt.Fprintf(b, " (reference %s)", t.RangeText)
		}
		fmt.Fprintf(b, ", %s.", t.Status)
		if t.Severity != "" {
			fmt.Fprintf(b, " Severity: %s.", t.Severity)
		}
		if t.Note != "" {
			b.WriteString(" " + t.Note)
		}
		b.WriteString("\n")
	}
	if len(s.Tests) > 0 {
		b.WriteString("\n")
	}
	for _, blk := range s.Blocks {
		fmt.Fprintf(b, "### %s\n\n", blk.Title)
		writeBullets(b, blk.Bullets)
	}
	writeBullets(b, s.Bullets)
	if s.Subtitle != "" {
		fmt.Fprintf(b, "**%s**\n\n", s.Subtitle)
	}
	writeBullets(b, s.SubBullets)
}

func writeBullets(b *strings.Builder, items []string) {
	if len(items) == 0 {
		return
	}
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n")
}
