package interpretation

const (
	riskLowLimit      = 0.25
	riskModerateLimit = 0.6
)

// RiskLabel maps an out-of-range fraction to its label. Limits are
// exclusive: exactly 0.25 is Moderate and exactly 0.6 is High.
func RiskLabel(score float64) string {
	switch {
	case score < riskLowLimit:
		return RiskLow
	case score < riskModerateLimit:
		return RiskModerate
	}
	return RiskHigh
}

// AssessRisk computes the fraction of configured readings outside their
// reference range. Unknown keys are ignored. With nothing classifiable the
// score is 0 and the label Unknown.
func (e *Engine) AssessRisk(readings map[string]Reading) Risk {
	r := Risk{Label: RiskUnknown}
	for key, rd := range readings {
		def, ok := e.cat.Lookup(key)
		if !ok {
			continue
		}
		r.Classified++
		if !def.Range.Contains(rd.Value) {
			r.OutOfRange++
		}
	}
	if r.Classified == 0 {
		return r
	}
	score := float64(r.OutOfRange) / float64(r.Classified)
	if score > 1 {
		score = 1
	}
	r.Label = RiskLabel(score)
	r.Score = roundTo(score, 3)
	r.Anomalous = r.OutOfRange > 0
	r.AnomalyScore = r.Score
	return r
}
