// Package narrative turns an assessment into an ordered, typed document of
// explanation sections. Rendering to Markdown, PDF or other formats happens
// elsewhere.
package narrative

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labread/labread/internal/domain/catalog"
	"github.com/labread/labread/internal/domain/interpretation"
)

// SectionKind identifies the payload carried by a Section.
type SectionKind string

const (
	KindIntro      SectionKind = "intro"
	KindOverall    SectionKind = "overall"
	KindTests      SectionKind = "tests"
	KindHomeCare   SectionKind = "home_care"
	KindSeekCare   SectionKind = "seek_care"
	KindDisclaimer SectionKind = "disclaimer"
)

// TestEntry explains one value.
type TestEntry struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	RangeText  string  `json:"range_text,omitempty"`
	Status     string  `json:"status"`
	Severity   string  `json:"severity,omitempty"`
	Note       string  `json:"note,omitempty"`
	Configured bool    `json:"configured"`
}

// GuidanceBlock is the home-care advice for one detected pattern.
type GuidanceBlock struct {
	Title      string   `json:"title"`
	Conditions []string `json:"conditions"`
	Tests      []string `json:"tests"`
	Bullets    []string `json:"bullets"`
}

// Section is one typed part of the document. Only the fields relevant to
// Kind are populated.
type Section struct {
	Kind       SectionKind     `json:"kind"`
	Title      string          `json:"title"`
	Paragraphs []string        `json:"paragraphs,omitempty"`
	Bullets    []string        `json:"bullets,omitempty"`
	Tests      []TestEntry     `json:"tests,omitempty"`
	Blocks     []GuidanceBlock `json:"blocks,omitempty"`
	Subtitle   string          `json:"subtitle,omitempty"`
	SubBullets []string        `json:"sub_bullets,omitempty"`
}

// Document is the ordered narrative.
type Document struct {
	Sections []Section `json:"sections"`
}

// Section returns the first section of kind k.
func (d Document) Section(k SectionKind) (Section, bool) {
	for _, s := range d.Sections {
		if s.Kind == k {
			return s, true
		}
	}
	return Section{}, false
}

// Status phrases used in test entries.
const (
	StatusWithin        = "within commonly used reference range"
	StatusBelow         = "below commonly used reference range"
	StatusAbove         = "above commonly used reference range"
	StatusNotConfigured = "not configured"
)

// Composer builds documents. The catalog supplies labels for guidance
// blocks.
type Composer struct {
	cat *catalog.Catalog
}

// NewComposer creates a Composer over cat.
func NewComposer(cat *catalog.Catalog) *Composer {
	return &Composer{cat: cat}
}

// Compose renders the assessment into a document. It never fails: unknown
// keys and empty input produce notices instead.
func (c *Composer) Compose(a interpretation.Assessment) Document {
	present := make(map[string]bool)
	for _, t := range a.Interpretation.Tests {
		present[t.Key] = true
	}
	for _, u := range a.Interpretation.Unconfigured {
		present[u.Key] = true
	}

	return Document{Sections: []Section{
		introSection(),
		overallSection(a.Risk),
		testsSection(a.Interpretation),
		c.homeCareSection(a.Conditions, present),
		seekCareSection(),
		disclaimerSection(),
	}}
}

func introSection() Section {
	return Section{
		Kind:  KindIntro,
		Title: "Detailed Summary of Your Lab Report",
		Paragraphs: []string{
			"This explanation is generated automatically to help you read the numbers on your lab report. " +
				"It is not a diagnosis and does not replace a consultation with a qualified doctor.",
		},
	}
}

func overallSection(r interpretation.Risk) Section {
	s := Section{Kind: KindOverall, Title: "Overall Assessment"}
	score := strconv.FormatFloat(r.Score, 'f', 2, 64)
	switch r.Label {
	case interpretation.RiskLow:
		s.Paragraphs = append(s.Paragraphs, fmt.Sprintf("Estimated overall risk: Low (score %s). "+
			"Most values are near commonly used reference ranges, but they still need to be read by a doctor "+
			"alongside your symptoms and history.", score))
	case interpretation.RiskModerate:
		s.Paragraphs = append(s.Paragraphs, fmt.Sprintf("Estimated overall risk: Moderate (score %s). "+
			"Several results are outside typical ranges. This does not prove any disease, "+
			"but a doctor should review the report and decide on follow-up.", score))
	case interpretation.RiskHigh:
		s.Paragraphs = append(s.Paragraphs, fmt.Sprintf("Estimated overall risk: High (score %s). "+
			"Many values appear outside common reference ranges. A timely review by a doctor "+
			"is recommended to understand what this means for you.", score))
	default:
		s.Paragraphs = append(s.Paragraphs, "A clear overall risk could not be computed. "+
			"The report may contain limited or incomplete numeric data.")
	}
	if r.Anomalous {
		s.Paragraphs = append(s.Paragraphs, "At least one value falls outside its reference range. "+
			"This is only a statistical flag and not a diagnosis.")
	}
	return s
}

func testsSection(in interpretation.Interpretation) Section {
	s := Section{Kind: KindTests, Title: "Test-by-Test Explanation"}
	if len(in.Tests) == 0 && len(in.Unconfigured) == 0 {
		s.Paragraphs = []string{"No lab values could be confidently extracted from the uploaded report. " +
			"Check that the file is clear and show the original report to your doctor."}
		return s
	}
	for _, t := range in.Tests {
		e := TestEntry{
			Key:        t.Key,
			Label:      t.Label,
			Value:      t.Value,
			Unit:       t.Unit,
			RangeText:  t.RangeText,
			Severity:   string(t.Severity),
			Configured: true,
		}
		switch t.Status {
		case interpretation.StatusLow:
			e.Status = StatusBelow
			e.Note = strings.TrimSpace(t.Note)
		case interpretation.StatusHigh:
			e.Status = StatusAbove
			e.Note = strings.TrimSpace(t.Note)
		default:
			e.Status = StatusWithin
		}
		s.Tests = append(s.Tests, e)
	}
	for _, u := range in.Unconfigured {
		s.Tests = append(s.Tests, TestEntry{
			Key:    u.Key,
			Label:  u.Key,
			Value:  u.Value,
			Unit:   u.Unit,
			Status: StatusNotConfigured,
			Note:   "This test is not configured, so no automated interpretation is provided.",
		})
	}
	return s
}

type guidance struct {
	conditions []string
	title      string
	tests      []string
	bullets    []string
}

var guidanceTable = []guidance{
	{
		conditions: []string{interpretation.ConditionAnemia},
		title:      "Pattern related to lower red cell indices",
		tests:      []string{"hemoglobin", "mcv", "mch", "rdw"},
		bullets: []string{
			"Include iron-rich foods in your regular diet, such as green leafy vegetables, pulses, dates or eggs, as suits your culture and medical conditions.",
			"Pair meals with vitamin C sources like lemon or oranges rather than strong tea or coffee, which can reduce iron absorption.",
			"If you notice increasing breathlessness, chest pain, black or tarry stools or very heavy bleeding, seek urgent care instead of relying on diet changes.",
		},
	},
	{
		conditions: []string{interpretation.ConditionDiabetesPoorControl, interpretation.ConditionDiabetesBorderline},
		title:      "Blood sugar pattern",
		tests:      []string{"fasting_glucose", "pp_glucose", "hba1c"},
		bullets: []string{
			"Keep meal timings regular and avoid long fasting gaps followed by very large meals.",
			"Cut down on sugary drinks, sweets and refined flour snacks; prefer whole grains, pulses, vegetables and nuts.",
			"If your doctor allows it, aim for daily light to moderate activity such as 20 to 30 minutes of walking.",
			"Do not change diabetes medicines or insulin doses on your own; any change should be guided by your doctor.",
		},
	},
	{
		conditions: []string{interpretation.ConditionLipidIssue},
		title:      "Cholesterol and triglyceride pattern",
		tests:      []string{"total_cholesterol", "triglycerides", "hdl", "ldl"},
		bullets: []string{
			"Limit deep-fried foods, fast food and repeatedly reused cooking oils.",
			"Prefer home-cooked meals with vegetables, fruits, whole grains and moderate amounts of nuts and seeds.",
			"Ask your doctor whether long-term lifestyle changes or medicines are needed for your level of risk.",
		},
	},
	{
		conditions: []string{interpretation.ConditionLiverIssue},
		title:      "Liver-related pattern",
		tests:      []string{"total_bilirubin", "direct_bilirubin", "sgpt", "sgot", "alp", "gamma_gt"},
		bullets: []string{
			"Avoid alcohol completely unless your doctor has explicitly advised otherwise.",
			"Avoid unnecessary over-the-counter painkillers and herbal products; some can stress the liver.",
			"Prefer simple, less oily meals over heavy, greasy food.",
			"If you notice yellow eyes or skin, very dark urine, very pale stools or growing abdominal swelling, seek medical attention quickly.",
		},
	},
	{
		conditions: []string{interpretation.ConditionKidneyIssue},
		title:      "Kidney-related pattern",
		tests:      []string{"creatinine", "urea", "uric_acid"},
		bullets: []string{
			"Do not start or continue painkillers, especially NSAIDs, on your own; they can affect kidney function.",
			"Avoid very salty processed foods such as packaged snacks, instant soups and pickles unless your doctor says otherwise.",
			"How much water you drink should follow your doctor's advice, especially with heart or kidney disease.",
			"If you notice swelling of the feet or face, much less urine or breathlessness, seek prompt medical help.",
		},
	},
	{
		conditions: []string{interpretation.ConditionThyroidHypoPattern, interpretation.ConditionThyroidHyperPattern},
		title:      "Thyroid pattern",
		tests:      []string{"tsh", "t3", "t4"},
		bullets: []string{
			"If you already take thyroid medicine, take it exactly as prescribed unless your doctor changes the plan.",
			"Keep a short log of symptoms such as weight change, heat or cold intolerance, palpitations or unusual tiredness to discuss with your doctor.",
		},
	},
	{
		conditions: []string{interpretation.ConditionInflammationRaised},
		title:      "Inflammation marker pattern",
		tests:      []string{"crp", "esr"},
		bullets: []string{
			"Raised CRP or ESR is non-specific and appears in many infections and inflammatory conditions.",
			"Rest, stay hydrated and follow your doctor's advice on further tests or treatment.",
		},
	},
	{
		conditions: []string{interpretation.ConditionVitaminDLow, interpretation.ConditionVitaminB12Low},
		title:      "Vitamin level pattern",
		tests:      []string{"vitamin_d", "vitamin_b12"},
		bullets: []string{
			"Ask your doctor whether supplements are needed and at what dose; do not start large doses without guidance.",
			"A varied diet and safe outdoor activity may support vitamin levels, but exact requirements differ from person to person.",
		},
	},
}

func (c *Composer) homeCareSection(conditions []string, present map[string]bool) Section {
	s := Section{Kind: KindHomeCare, Title: "Home and Lifestyle Guidance"}
	if len(conditions) == 0 {
		s.Paragraphs = []string{"No clear pattern such as anemia, diabetes or kidney strain was detected from the available values. " +
			"Follow your doctor's general advice and routine healthy habits such as a balanced diet, regular sleep and physical activity as allowed."}
		return s
	}

	tagged := make(map[string]bool, len(conditions))
	for _, t := range conditions {
		tagged[t] = true
	}
	for _, g := range guidanceTable {
		var fired []string
		for _, cond := range g.conditions {
			if tagged[cond] {
				fired = append(fired, cond)
			}
		}
		if len(fired) == 0 {
			continue
		}
		var tests []string
		for _, k := range g.tests {
			if present[k] {
				tests = append(tests, c.cat.Label(k))
			}
		}
		title := g.title
		if len(tests) > 0 {
			title += " (" + joinNames(tests) + ")"
		}
		s.Blocks = append(s.Blocks, GuidanceBlock{
			Title:      title,
			Conditions: fired,
			Tests:      tests,
			Bullets:    append([]string(nil), g.bullets...),
		})
	}
	s.Paragraphs = []string{"These are supportive lifestyle suggestions based on the patterns detected in this report. " +
		"They are not a treatment plan. Never start, stop or change medicines based only on this summary."}
	return s
}

func seekCareSection() Section {
	return Section{
		Kind:  KindSeekCare,
		Title: "When to See a Doctor or Visit a Hospital",
		Bullets: []string{
			"Share this report with a qualified doctor, especially if any values are flagged high or low or if you feel unwell.",
			"Plan a follow-up visit to discuss how these results fit with your symptoms, examination and other tests.",
		},
		Subtitle: "Seek urgent or emergency care if you experience",
		SubBullets: []string{
			"Severe or sudden chest pain",
			"Severe breathlessness or difficulty breathing",
			"Sudden weakness of the face, arm or leg, slurred speech or confusion",
			"Very low urine output or no urine for many hours",
			"Very heavy or uncontrolled bleeding",
			"Seizures, loss of consciousness or any feeling that something is seriously wrong",
		},
	}
}

func disclaimerSection() Section {
	return Section{
		Kind:  KindDisclaimer,
		Title: "Important",
		Paragraphs: []string{"This tool does not know your full medical history, current medicines or examination findings. " +
			"Never change treatment based only on this report or summary. Always follow the advice of your doctor."},
	}
}

// joinNames renders "A", "A and B" or "A, B and C".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
