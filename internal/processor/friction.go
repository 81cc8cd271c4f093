package processor

import "secureflow/internal/domain"

// frictionTier maps an inclusive upper score bound onto a UI treatment.
type frictionTier struct {
	maxScore int
	level    domain.RiskLevel
	action   domain.Action
	friction domain.FrictionDirective
}

// frictionTiers is the three-tier scheme, ordered by maxScore.
var frictionTiers = []frictionTier{
	{
		maxScore: 30,
		level:    domain.RiskLow,
		action:   domain.ActionAllow,
		friction: domain.FrictionDirective{Type: domain.FrictionToast, DelaySeconds: 0, CanOverride: true, Color: "green"},
	},
	{
		maxScore: 60,
		level:    domain.RiskMedium,
		action:   domain.ActionWarn,
		friction: domain.FrictionDirective{Type: domain.FrictionModal, DelaySeconds: 5, CanOverride: true, Color: "yellow"},
	},
	{
		maxScore: MaxScore,
		level:    domain.RiskHigh,
		action:   domain.ActionBlock,
		friction: domain.FrictionDirective{Type: domain.FrictionBlock, DelaySeconds: 10, CanOverride: false, Color: "red"},
	},
}

// MapFriction derives the risk level, recommended action and friction from a
// score. Scores outside [0,100] are clamped first.
func MapFriction(score int) (domain.RiskLevel, domain.Action, domain.FrictionDirective) {
	score = clampScore(score)
	for _, tier := range frictionTiers {
		if score <= tier.maxScore {
			return tier.level, tier.action, tier.friction
		}
	}
	last := frictionTiers[len(frictionTiers)-1]
	return last.level, last.action, last.friction
}
