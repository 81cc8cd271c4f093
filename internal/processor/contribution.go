package processor

import (
	"math"

	"secureflow/internal/domain"
)

// AnnotateContributions fills each reason's share of the final score as
// round(|delta| / max(score,1) * 100, 2). A zero score leaves shares unset.
// With the trusted-contact reduction applied the shares need not sum to 100,
// and a single share may exceed it.
func AnnotateContributions(result domain.ScoreResult) domain.ScoreResult {
	out := result.Clone()
	if out.Score <= 0 {
		return out
	}

	denominator := float64(max(out.Score, 1))
	for i := range out.Reasons {
		pct := roundTo(math.Abs(float64(out.Reasons[i].ScoreAdded))/denominator*100, 2)
		out.Reasons[i].ContributionPercent = &pct
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
