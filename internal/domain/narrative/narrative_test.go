package narrative

import (
	"reflect"
	"strings"
	"testing"

	"github.com/labread/labread/internal/domain/catalog"
	"github.com/labread/labread/internal/domain/interpretation"
)

func compose(values map[string]float64) Document {
	cat := catalog.Default()
	a := interpretation.NewEngine(cat).Assess(interpretation.Readings(values))
	return NewComposer(cat).Compose(a)
}

func TestCompose_SectionOrder(t *testing.T) {
	doc := compose(map[string]float64{"hemoglobin": 10.5})
	want := []SectionKind{KindIntro, KindOverall, KindTests, KindHomeCare, KindSeekCare, KindDisclaimer}
	var got []SectionKind
	for _, s := range doc.Sections {
		got = append(got, s.Kind)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCompose_Overall(t *testing.T) {
	doc := compose(map[string]float64{"hemoglobin": 10.5, "creatinine": 0.9, "urea": 30, "wbc": 7})
	s, _ := doc.Section(KindOverall)
	if len(s.Paragraphs) != 2 {
		t.Fatalf("expected risk paragraph plus anomaly flag, got %v", s.Paragraphs)
	}
	if !strings.Contains(s.Paragraphs[0], "Moderate") || !strings.Contains(s.Paragraphs[0], "0.25") {
		t.Errorf("unexpected overall text %q", s.Paragraphs[0])
	}

	empty := compose(nil)
	s, _ = empty.Section(KindOverall)
	if len(s.Paragraphs) != 1 || !strings.Contains(s.Paragraphs[0], "could not be computed") {
		t.Errorf("unexpected unknown-risk text %v", s.Paragraphs)
	}
}

func TestCompose_Tests(t *testing.T) {
	doc := compose(map[string]float64{"hemoglobin": 10.5, "wbc": 7, "mystery": 4})
	s, _ := doc.Section(KindTests)
	if len(s.Tests) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(s.Tests))
	}
	hb := s.Tests[0]
	if hb.Key != "hemoglobin" || hb.Status != StatusBelow || hb.Note == "" || hb.RangeText != "12–16 g/dL" {
		t.Errorf("unexpected hemoglobin entry %+v", hb)
	}
	if s.Tests[1].Status != StatusWithin || s.Tests[1].Note != "" {
		t.Errorf("unexpected wbc entry %+v", s.Tests[1])
	}
	m := s.Tests[2]
	if m.Configured || m.Status != StatusNotConfigured || !strings.Contains(m.Note, "not configured") {
		t.Errorf("unexpected unknown entry %+v", m)
	}
}

func TestCompose_NoValues(t *testing.T) {
	doc := compose(nil)
	s, _ := doc.Section(KindTests)
	if len(s.Tests) != 0 || len(s.Paragraphs) != 1 {
		t.Errorf("expected a single notice, got %+v", s)
	}
	hc, _ := doc.Section(KindHomeCare)
	if len(hc.Blocks) != 0 || len(hc.Paragraphs) != 1 {
		t.Errorf("expected no-pattern notice, got %+v", hc)
	}
}

func TestCompose_HomeCareBlocks(t *testing.T) {
	doc := compose(map[string]float64{
		"hemoglobin":      10.5,
		"mcv":             70,
		"fasting_glucose": 130,
		"hba1c":           7.1,
		"tsh":             6,
	})
	s, _ := doc.Section(KindHomeCare)
	if len(s.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(s.Blocks))
	}
	anemia := s.Blocks[0]
	if !reflect.DeepEqual(anemia.Tests, []string{"Hemoglobin", "MCV"}) {
		t.Errorf("unexpected anemia tests %v", anemia.Tests)
	}
	if !strings.HasSuffix(anemia.Title, "(Hemoglobin and MCV)") {
		t.Errorf("unexpected title %q", anemia.Title)
	}
	sugar := s.Blocks[1]
	if !reflect.DeepEqual(sugar.Conditions, []string{interpretation.ConditionDiabetesPoorControl}) {
		t.Errorf("unexpected conditions %v", sugar.Conditions)
	}
	if s.Blocks[2].Title != "Thyroid pattern (TSH)" {
		t.Errorf("unexpected thyroid title %q", s.Blocks[2].Title)
	}
	if len(s.Paragraphs) != 1 {
		t.Error("expected closing lifestyle note")
	}
}

func TestCompose_SeekCareIsFixed(t *testing.T) {
	a, _ := compose(nil).Section(KindSeekCare)
	b, _ := compose(map[string]float64{"tsh": 9}).Section(KindSeekCare)
	if !reflect.DeepEqual(a, b) || len(a.SubBullets) == 0 {
		t.Error("expected identical escalation block")
	}
}

func TestJoinNames(t *testing.T) {
	tests := map[string][]string{
		"":           nil,
		"A":          {"A"},
		"A and B":    {"A", "B"},
		"A, B and C": {"A", "B", "C"},
	}
	for want, in := range tests {
		if got := joinNames(in); got != want {
			t.Errorf("joinNames(%v) = %q, expected %q", in, got, want)
		}
	}
}
