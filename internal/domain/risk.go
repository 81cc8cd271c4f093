package domain

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionWarn  Action = "WARN"
	ActionBlock Action = "BLOCK"
)

type FrictionType string

const (
	FrictionNone  FrictionType = "NONE"
	FrictionToast FrictionType = "TOAST"
	FrictionDelay FrictionType = "DELAY"
	FrictionModal FrictionType = "MODAL"
	FrictionBlock FrictionType = "BLOCK"
)

// Reason explains one rule's contribution to a score.
// ContributionPercent is nil until the final score is known.
type Reason struct {
	RuleID              RuleID   `json:"ruleId"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Severity            Severity `json:"severity"`
	ScoreAdded          int      `json:"scoreAdded"`
	ContributionPercent *float64 `json:"contributionPercent,omitempty"`
}

type FrictionDirective struct {
	Type         FrictionType `json:"type"`
	DelaySeconds int          `json:"delaySeconds"`
	CanOverride  bool         `json:"canOverride"`
	Color        string       `json:"color"`
}

type ScoreResult struct {
	Score             int               `json:"score"`
	Level             RiskLevel         `json:"level"`
	Reasons           []Reason          `json:"reasons"`
	RecommendedAction Action            `json:"recommendedAction"`
	Friction          FrictionDirective `json:"friction"`
	AnalysisTimeMs    float64           `json:"analysisTimeMs,omitempty"`
	RulesEvaluated    int               `json:"rulesEvaluated,omitempty"`
}

// Clone returns a deep copy so callers can annotate without sharing reason slices.
func (r ScoreResult) Clone() ScoreResult {
	out := r
	out.Reasons = make([]Reason, len(r.Reasons))
	for i, reason := range r.Reasons {
		if reason.ContributionPercent != nil {
			pct := *reason.ContributionPercent
			reason.ContributionPercent = &pct
		}
		out.Reasons[i] = reason
	}
	return out
}

func (r ScoreResult) HasRule(id RuleID) bool {
	for _, reason := range r.Reasons {
		if reason.RuleID == id {
			return true
		}
	}
	return false
}
