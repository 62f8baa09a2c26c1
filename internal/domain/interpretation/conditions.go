package interpretation

// Condition tags.
const (
	ConditionAnemia              = "anemia"
	ConditionDiabetesPoorControl = "diabetes_poor_control"
	ConditionDiabetesBorderline  = "diabetes_borderline"
	ConditionKidneyIssue         = "kidney_issue"
	ConditionLiverIssue          = "liver_issue"
	ConditionLipidIssue          = "lipid_issue"
	ConditionThyroidHypoPattern  = "thyroid_hypo_pattern"
	ConditionThyroidHyperPattern = "thyroid_hyper_pattern"
	ConditionInflammationRaised  = "inflammation_marker_raised"
	ConditionVitaminDLow         = "vitamin_d_low"
	ConditionVitaminB12Low       = "vitamin_b12_low"
)

// Reference highs used by the liver rule when the catalog has no upper
// bound for the test.
const (
	defaultALTHigh = 40
	defaultASTHigh = 40
	defaultALPHigh = 147
)

type values map[string]Reading

func (v values) get(key string) (float64, bool) {
	r, ok := v[key]
	return r.Value, ok
}

func (v values) below(key string, limit float64) bool {
	x, ok := v.get(key)
	return ok && x < limit
}

func (v values) above(key string, limit float64) bool {
	x, ok := v.get(key)
	return ok && x > limit
}

func (v values) atLeast(key string, limit float64) bool {
	x, ok := v.get(key)
	return ok && x >= limit
}

func (v values) within(key string, low, high float64) bool {
	x, ok := v.get(key)
	return ok && x >= low && x < high
}

// DetectConditions evaluates the fixed rule list in order. Rules are
// independent except the diabetes and thyroid pairs, where the second tag is
// only considered when the first did not fire. Duplicates are removed.
func (e *Engine) DetectConditions(readings map[string]Reading) []string {
	v := values(readings)
	var tags []string
	add := func(tag string) { tags = append(tags, tag) }

	if v.below("hemoglobin", 12.0) {
		add(ConditionAnemia)
	}

	if v.atLeast("fasting_glucose", 126) || v.atLeast("pp_glucose", 200) || v.atLeast("hba1c", 6.5) {
		add(ConditionDiabetesPoorControl)
	} else if v.within("fasting_glucose", 100, 126) || v.within("hba1c", 5.7, 6.5) {
		add(ConditionDiabetesBorderline)
	}

	if v.above("creatinine", 1.5) || v.above("urea", 40) {
		add(ConditionKidneyIssue)
	}

	if v.above("total_bilirubin", 1.2) ||
		v.above("direct_bilirubin", 0.3) ||
		v.above("sgpt", 2*e.high("sgpt", defaultALTHigh)) ||
		v.above("sgot", 2*e.high("sgot", defaultASTHigh)) ||
		v.above("alp", 1.5*e.high("alp", defaultALPHigh)) {
		add(ConditionLiverIssue)
	}

	if v.above("total_cholesterol", 200) ||
		v.above("triglycerides", 150) ||
		v.above("ldl", 130) ||
		v.below("hdl", 40) {
		add(ConditionLipidIssue)
	}

	if v.above("tsh", 4.0) {
		add(ConditionThyroidHypoPattern)
	} else if v.below("tsh", 0.4) {
		add(ConditionThyroidHyperPattern)
	}

	if v.above("crp", 5) || v.above("esr", 20) {
		add(ConditionInflammationRaised)
	}

	if v.below("vitamin_d", 20) {
		add(ConditionVitaminDLow)
	}

	if v.below("vitamin_b12", 200) {
		add(ConditionVitaminB12Low)
	}

	return dedupe(tags)
}

func (e *Engine) high(key string, fallback float64) float64 {
	if def, ok := e.cat.Lookup(key); ok && def.Range.High != nil {
		return *def.Range.High
	}
	return fallback
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
