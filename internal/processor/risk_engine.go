package processor

import (
	"fmt"
	"log/slog"
	"time"

	"secureflow/internal/domain"
	"secureflow/pkg/validator"
)

const (
	MinScore = 0
	MaxScore = 100
)

// DefaultLocation is the fixed UTC+05:30 zone used for local-hour rules and
// hourly dashboard buckets.
var DefaultLocation = time.FixedZone("IST", 5*60*60+30*60)

// RiskEngine runs the rule battery against a candidate transaction. It holds no
// mutable state and is safe for concurrent use.
type RiskEngine struct {
	rules     []RiskRule
	trusted   domain.RuleDefinition
	validator *validator.TransactionValidator
	now       func() time.Time
	location  *time.Location
	logger    *slog.Logger
}

func NewRiskEngine(logger *slog.Logger) *RiskEngine {
	if logger == nil {
		logger = slog.Default()
	}

	return &RiskEngine{
		rules:     defaultRules(),
		trusted:   mustRule(domain.RuleTrustedContact),
		validator: validator.NewTransactionValidator(),
		now:       time.Now,
		location:  DefaultLocation,
		logger:    logger,
	}
}

// WithClock overrides the source of "now".
func (e *RiskEngine) WithClock(now func() time.Time) *RiskEngine {
	e.now = now
	return e
}

// WithLocation overrides the zone used to derive the local hour.
func (e *RiskEngine) WithLocation(loc *time.Location) *RiskEngine {
	if loc != nil {
		e.location = loc
	}
	return e
}

func (e *RiskEngine) Location() *time.Location {
	return e.location
}

// RulesEvaluated is the number of rules every evaluation runs, the anti-rule included.
func (e *RiskEngine) RulesEvaluated() int {
	return len(e.rules) + 1
}

// Evaluate scores candidate against the history snapshot. The result carries the
// clamped score and the reasons in rule order; contribution percentages, level,
// action and friction are left unset. Any invalid candidate field or
// unparseable history timestamp fails the whole evaluation.
func (e *RiskEngine) Evaluate(
	candidate domain.Transaction,
	history []domain.HistoricalTransaction,
	trusted domain.TrustedContactSet,
) (domain.ScoreResult, error) {
	if err := e.validator.ValidateTransaction(candidate); err != nil {
		return domain.ScoreResult{}, err
	}

	entries, err := parseHistory(history)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	ev := &evaluation{
		candidate: candidate,
		history:   entries,
		trusted:   trusted,
		now:       e.now(),
		location:  e.location,
	}

	score := 0
	reasons := make([]domain.Reason, 0, len(e.rules)+1)

	for _, rule := range e.rules {
		fired, description := rule.Detect(ev)
		if !fired {
			continue
		}
		score += rule.Definition.Weight
		reasons = append(reasons, newReason(rule.Definition, rule.Definition.Weight, description))
	}

	if reduction := trustedContactReduction(ev, e.trusted.Weight, score); reduction > 0 {
		score -= reduction
		reasons = append(reasons, newReason(e.trusted, -reduction,
			fmt.Sprintf("%s is in your trusted contacts; risk reduced by %d points.", candidate.RecipientUPI, reduction)))
	}

	e.logger.Debug("Risk evaluated",
		slog.String("recipient", candidate.RecipientUPI),
		slog.Int("raw_score", score),
		slog.Int("reasons", len(reasons)))

	return domain.ScoreResult{
		Score:          clampScore(score),
		Reasons:        reasons,
		RulesEvaluated: e.RulesEvaluated(),
	}, nil
}

// Assess evaluates candidate and completes the result: contribution
// percentages, level, action, friction and timing metadata.
func (e *RiskEngine) Assess(
	candidate domain.Transaction,
	history []domain.HistoricalTransaction,
	trusted domain.TrustedContactSet,
) (domain.ScoreResult, error) {
	start := time.Now()

	result, err := e.Evaluate(candidate, history, trusted)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	result = AnnotateContributions(result)
	result.Level, result.RecommendedAction, result.Friction = MapFriction(result.Score)
	result.AnalysisTimeMs = float64(time.Since(start).Microseconds()) / 1000

	return result, nil
}

func parseHistory(history []domain.HistoricalTransaction) ([]historyEntry, error) {
	entries := make([]historyEntry, len(history))
	for i, h := range history {
		at, err := domain.ParseTimestamp(h.Timestamp)
		if err != nil {
			return nil, validator.NewValidationError(
				fmt.Sprintf("history[%d].timestamp", i), "%v", err)
		}
		entries[i] = historyEntry{RecipientUPI: h.RecipientUPI, Amount: h.Amount, At: at}
	}
	return entries, nil
}

func newReason(def domain.RuleDefinition, delta int, description string) domain.Reason {
	return domain.Reason{
		RuleID:      def.ID,
		Title:       def.Title,
		Description: description,
		Severity:    def.Severity,
		ScoreAdded:  delta,
	}
}

func clampScore(score int) int {
	return max(MinScore, min(score, MaxScore))
}
