package processor

import (
	"time"

	"secureflow/internal/domain"
)

type seedEntry struct {
	id        string
	recipient string
	amount    float64
	remarks   string
	age       time.Duration
	status    domain.TransactionStatus
	fired     []seedReason
}

type seedReason struct {
	rule        domain.RuleID
	description string
}

// seedEntries are listed oldest first, matching store insertion order.
var seedEntries = []seedEntry{
	{
		id: "TXN-SEED0001", recipient: "claim.prize@upi", amount: 50000, remarks: "Claim your lottery prize",
		age: 24 * time.Hour, status: domain.StatusBlocked,
		fired: []seedReason{
			{domain.RuleNewRecipient, "You have never paid claim.prize@upi before."},
			{domain.RuleLargeRoundNumber, "₹50,000 is a large round amount, a pattern common in scams."},
			{domain.RuleScamKeyword, `Remarks contain scam-related keywords: "lottery", "prize", "claim".`},
			{domain.RuleSuspiciousUPI, "Recipient claim.prize@upi matches a red-flag pattern (lure words)."},
		},
	},
	{
		id: "TXN-SEED0002", recipient: "newperson@upi", amount: 8000, remarks: "Rent share",
		age: time.Hour, status: domain.StatusCompleted,
		fired: []seedReason{
			{domain.RuleNewRecipient, "You have never paid newperson@upi before."},
			{domain.RuleUnusualAmount, "₹8,000 is well above your average transaction."},
			{domain.RuleBehavioralShift, "₹8,000 is well above your median transaction."},
		},
	},
	{
		id: "TXN-SEED0003", recipient: "rahul@upi", amount: 500, remarks: "Dinner split",
		age: 30 * time.Minute, status: domain.StatusCompleted,
		fired: []seedReason{
			{domain.RuleNewRecipient, "You have never paid rahul@upi before."},
		},
	},
}

// SeedHistory returns the demo history a fresh store starts with, timestamped
// relative to now.
func SeedHistory(now time.Time) []domain.HistoricalTransaction {
	history := make([]domain.HistoricalTransaction, 0, len(seedEntries))
	for _, e := range seedEntries {
		history = append(history, domain.HistoricalTransaction{
			ID:            e.id,
			RecipientUPI:  e.recipient,
			RecipientName: domain.DisplayName(e.recipient),
			Amount:        e.amount,
			Remarks:       e.remarks,
			Timestamp:     domain.FormatTimestamp(now.Add(-e.age)),
			Status:        e.status,
			RiskResult:    seedResult(e.fired),
		})
	}
	return history
}

func seedResult(fired []seedReason) *domain.ScoreResult {
	result := domain.ScoreResult{
		Reasons:        make([]domain.Reason, 0, len(fired)),
		RulesEvaluated: len(domain.RuleCatalog),
	}
	for _, f := range fired {
		def := mustRule(f.rule)
		result.Score += def.Weight
		result.Reasons = append(result.Reasons, newReason(def, def.Weight, f.description))
	}
	result.Score = clampScore(result.Score)

	result = AnnotateContributions(result)
	result.Level, result.RecommendedAction, result.Friction = MapFriction(result.Score)
	return &result
}
