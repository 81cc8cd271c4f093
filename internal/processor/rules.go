package processor

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"secureflow/internal/domain"
)

const (
	unusualAmountMultiplier   = 3.0
	behavioralShiftMultiplier = 4.0
	highFrequencyWindow       = 10 * time.Minute
	highFrequencyMinCount     = 3
	roundNumberUnit           = 10000.0
	nightStartHour            = 23
	nightEndHour              = 5
	maxListedKeywords         = 3
)

// historyEntry is a historical transaction with its timestamp already parsed.
type historyEntry struct {
	RecipientUPI string
	Amount       float64
	At           time.Time
}

// evaluation is the read-only input every rule sees during one scoring pass.
type evaluation struct {
	candidate domain.Transaction
	history   []historyEntry
	trusted   domain.TrustedContactSet
	now       time.Time
	location  *time.Location
}

// RiskRule is one independent heuristic of the battery. Detect reports whether
// the rule fires and, if so, the reason description.
type RiskRule struct {
	Definition domain.RuleDefinition
	Detect     func(ev *evaluation) (bool, string)
}

func mustRule(id domain.RuleID) domain.RuleDefinition {
	def, ok := domain.LookupRule(id)
	if !ok {
		panic(fmt.Sprintf("rule %s missing from catalog", id))
	}
	return def
}

// defaultRules returns the additive rules in evaluation order. The trusted
// contact rule depends on the running total and is applied separately.
func defaultRules() []RiskRule {
	return []RiskRule{
		{Definition: mustRule(domain.RuleNewRecipient), Detect: detectNewRecipient},
		{Definition: mustRule(domain.RuleUnusualAmount), Detect: detectUnusualAmount},
		{Definition: mustRule(domain.RuleHighFrequency), Detect: detectHighFrequency},
		{Definition: mustRule(domain.RuleLargeRoundNumber), Detect: detectLargeRoundNumber},
		{Definition: mustRule(domain.RuleScamKeyword), Detect: detectScamKeyword},
		{Definition: mustRule(domain.RuleBehavioralShift), Detect: detectBehavioralShift},
		{Definition: mustRule(domain.RuleNightOwl), Detect: detectNightOwl},
		{Definition: mustRule(domain.RuleSuspiciousUPI), Detect: detectSuspiciousUPI},
	}
}

func detectNewRecipient(ev *evaluation) (bool, string) {
	for _, h := range ev.history {
		if h.RecipientUPI == ev.candidate.RecipientUPI {
			return false, ""
		}
	}
	return true, fmt.Sprintf("You have never paid %s before.", ev.candidate.RecipientUPI)
}

func detectUnusualAmount(ev *evaluation) (bool, string) {
	if len(ev.history) == 0 {
		return false, ""
	}
	avg := mean(ev.history)
	if ev.candidate.Amount <= avg*unusualAmountMultiplier {
		return false, ""
	}
	return true, fmt.Sprintf("₹%s is %s your average transaction of ₹%s.",
		formatAmount(ev.candidate.Amount), formatRatio(ev.candidate.Amount, avg), formatAmount(avg))
}

func detectHighFrequency(ev *evaluation) (bool, string) {
	count := 0
	for _, h := range ev.history {
		if ev.now.Sub(h.At) <= highFrequencyWindow {
			count++
		}
	}
	if count < highFrequencyMinCount {
		return false, ""
	}
	return true, fmt.Sprintf("%d transactions in the last %d minutes.", count, int(highFrequencyWindow.Minutes()))
}

func detectLargeRoundNumber(ev *evaluation) (bool, string) {
	amount := ev.candidate.Amount
	if amount < roundNumberUnit || math.Mod(amount, roundNumberUnit) != 0 {
		return false, ""
	}
	return true, fmt.Sprintf("₹%s is a large round amount, a pattern common in scams.", formatAmount(amount))
}

func detectScamKeyword(ev *evaluation) (bool, string) {
	matches := matchScamKeywords(ev.candidate.Remarks)
	if len(matches) == 0 {
		return false, ""
	}

	listed := matches
	if len(listed) > maxListedKeywords {
		listed = listed[:maxListedKeywords]
	}
	quoted := make([]string, len(listed))
	for i, term := range listed {
		quoted[i] = fmt.Sprintf("%q", term)
	}

	desc := "Remarks contain scam-related keywords: " + strings.Join(quoted, ", ")
	if extra := len(matches) - len(listed); extra > 0 {
		desc += fmt.Sprintf(" (+%d more)", extra)
	}
	return true, desc + "."
}

func detectBehavioralShift(ev *evaluation) (bool, string) {
	if len(ev.history) == 0 {
		return false, ""
	}
	med := median(ev.history)
	if med <= 0 || ev.candidate.Amount <= med*behavioralShiftMultiplier {
		return false, ""
	}
	return true, fmt.Sprintf("₹%s is %s your median transaction of ₹%s.",
		formatAmount(ev.candidate.Amount), formatRatio(ev.candidate.Amount, med), formatAmount(med))
}

func detectNightOwl(ev *evaluation) (bool, string) {
	local := ev.now.In(ev.location)
	hour := local.Hour()
	if hour < nightStartHour && hour >= nightEndHour {
		return false, ""
	}
	return true, fmt.Sprintf("Initiated at %s local time, when scams peak and people are less alert.", local.Format("15:04"))
}

func detectSuspiciousUPI(ev *evaluation) (bool, string) {
	upi := strings.ToLower(ev.candidate.RecipientUPI)
	for _, p := range suspiciousUPIPatterns {
		if p.pattern.MatchString(upi) {
			return true, fmt.Sprintf("Recipient %s matches a red-flag pattern (%s).", ev.candidate.RecipientUPI, p.name)
		}
	}
	return false, ""
}

// trustedContactReduction returns how much the anti-rule removes from the
// running total: at most the rule weight and never more than the total itself.
func trustedContactReduction(ev *evaluation, maxReduction, runningTotal int) int {
	if !ev.trusted.Contains(ev.candidate.RecipientUPI) || runningTotal <= 0 {
		return 0
	}
	return min(maxReduction, runningTotal)
}

var scamLexicon = []string{
	// bait
	"lottery", "prize", "winner", "jackpot", "lucky draw", "gift", "free", "reward", "cashback",
	// pressure and urgency
	"urgent", "immediately", "asap", "act now", "last chance", "hurry", "limited time", "expire",
	// impersonation
	"kyc", "customer care", "bank official", "police", "income tax", "rbi", "account blocked", "suspended",
	// money lures
	"claim", "refund", "double your money", "guaranteed return", "loan approved", "investment",
	// social engineering
	"otp", "upi pin", "password", "screen share", "anydesk", "teamviewer", "remote access", "verify your account",
	// crypto and job scams
	"bitcoin", "crypto", "usdt", "forex", "trading profit", "work from home", "part time job", "registration fee", "job offer",
}

// matchScamKeywords returns the lexicon terms contained anywhere in remarks,
// in lexicon order. Matching is by substring, so "urgently" and "freebie" count.
func matchScamKeywords(remarks string) []string {
	text := strings.ToLower(remarks)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var matches []string
	for _, term := range scamLexicon {
		if strings.Contains(text, term) {
			matches = append(matches, term)
		}
	}
	return matches
}

type namedPattern struct {
	name    string
	pattern *regexp.Regexp
}

var suspiciousUPIPatterns = []namedPattern{
	{"lure words", regexp.MustCompile(`lottery|prize|winner|reward|cashback|lucky|jackpot|bonus|gift|free`)},
	{"fake support naming", regexp.MustCompile(`support|help\.?desk|customer\.?care|care\.?team|refund|kyc|verify|official`)},
	{"pressure words", regexp.MustCompile(`urgent|alert|immediate|blocked|suspend`)},
	{"long numeric handle", regexp.MustCompile(`\d{10,}@`)},
	{"fraud terms", regexp.MustCompile(`scam|fraud|hack|fake|phish`)},
}

func mean(history []historyEntry) float64 {
	var sum float64
	for _, h := range history {
		sum += h.Amount
	}
	return sum / float64(len(history))
}

func median(history []historyEntry) float64 {
	amounts := make([]float64, len(history))
	for i, h := range history {
		amounts[i] = h.Amount
	}
	slices.Sort(amounts)

	mid := len(amounts) / 2
	if len(amounts)%2 == 0 {
		return (amounts[mid-1] + amounts[mid]) / 2
	}
	return amounts[mid]
}

func formatAmount(amount float64) string {
	return humanize.Commaf(math.Round(amount*100) / 100)
}

func formatRatio(amount, base float64) string {
	return fmt.Sprintf("%.1fx", amount/base)
}
