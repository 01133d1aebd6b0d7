package analysis

import "strings"

var tailRiskScores = map[string]float64{
	"low":      25,
	"medium":   50,
	"high":     75,
	"critical": 100,
}

// RiskScore prefers the engine's explicit risk_score and otherwise maps the
// qualitative tail risk onto the 0-100 scale. ok is false when neither is usable.
func RiskScore(m MarketAnalysis) (score float64, ok bool) {
	if m.RiskScore != nil {
		return *m.RiskScore, true
	}
	score, ok = tailRiskScores[strings.ToLower(strings.TrimSpace(m.TailRisk))]
	return score, ok
}
