package domain

type RuleID string

const (
	RuleNewRecipient     RuleID = "NEW_RECIPIENT"
	RuleUnusualAmount    RuleID = "UNUSUAL_AMOUNT"
	RuleHighFrequency    RuleID = "HIGH_FREQUENCY"
	RuleLargeRoundNumber RuleID = "LARGE_ROUND_NUMBER"
	RuleScamKeyword      RuleID = "SCAM_KEYWORD"
	RuleBehavioralShift  RuleID = "BEHAVIORAL_SHIFT"
	RuleNightOwl         RuleID = "NIGHT_OWL"
	RuleSuspiciousUPI    RuleID = "SUSPICIOUS_UPI"
	RuleTrustedContact   RuleID = "TRUSTED_CONTACT"
)

// RuleDefinition describes a rule of the battery. Weight is the score delta when
// the rule fires; for the trusted-contact rule it is the maximum reduction.
type RuleDefinition struct {
	ID       RuleID   `json:"ruleId"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Weight   int      `json:"weight"`
	Order    int      `json:"order"`
}

// RuleCatalog lists the battery in evaluation order.
var RuleCatalog = []RuleDefinition{
	{ID: RuleNewRecipient, Title: "New Recipient Detected", Severity: SeverityMedium, Weight: 20, Order: 1},
	{ID: RuleUnusualAmount, Title: "Unusual Transaction Amount", Severity: SeverityMedium, Weight: 15, Order: 2},
	{ID: RuleHighFrequency, Title: "High Transaction Frequency", Severity: SeverityMedium, Weight: 15, Order: 3},
	{ID: RuleLargeRoundNumber, Title: "Large Round Number", Severity: SeverityLow, Weight: 10, Order: 4},
	{ID: RuleScamKeyword, Title: "Suspicious Keyword Detected", Severity: SeverityHigh, Weight: 25, Order: 5},
	{ID: RuleBehavioralShift, Title: "Behavioral Spending Shift", Severity: SeverityHigh, Weight: 20, Order: 6},
	{ID: RuleNightOwl, Title: "Late-Night Transaction", Severity: SeverityLow, Weight: 10, Order: 7},
	{ID: RuleSuspiciousUPI, Title: "Suspicious UPI Handle", Severity: SeverityHigh, Weight: 20, Order: 8},
	{ID: RuleTrustedContact, Title: "Trusted Contact", Severity: SeverityLow, Weight: 15, Order: 9},
}

func LookupRule(id RuleID) (RuleDefinition, bool) {
	for _, def := range RuleCatalog {
		if def.ID == id {
			return def, true
		}
	}
	return RuleDefinition{}, false
}
