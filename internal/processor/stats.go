package processor

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"secureflow/internal/domain"
)

const (
	DefaultTrendSize   = 12
	DefaultRecentSize  = 6
	DefaultTopRuleSize = 5

	unknownTimeLabel = "unknown"
)

var relativeTimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "just now", DivBy: time.Second},
	{D: time.Minute, Format: "%ds %s", DivBy: time.Second},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: humanize.Day, Format: "%dh %s", DivBy: time.Hour},
	{D: math.MaxInt64, Format: "%dd %s", DivBy: humanize.Day},
}

// StatsAggregator reduces a history snapshot into dashboard metrics. Records
// with unparseable timestamps still count in totals but are left out of time
// buckets, sort as the oldest records and carry an "unknown" time label.
type StatsAggregator struct {
	now            func() time.Time
	location       *time.Location
	trendSize      int
	recentSize     int
	topRuleSize    int
	rulesEvaluated int
	logger         *slog.Logger
}

func NewStatsAggregator(logger *slog.Logger) *StatsAggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &StatsAggregator{
		now:            time.Now,
		location:       DefaultLocation,
		trendSize:      DefaultTrendSize,
		recentSize:     DefaultRecentSize,
		topRuleSize:    DefaultTopRuleSize,
		rulesEvaluated: len(domain.RuleCatalog),
		logger:         logger,
	}
}

func (a *StatsAggregator) WithClock(now func() time.Time) *StatsAggregator {
	a.now = now
	return a
}

func (a *StatsAggregator) WithLocation(loc *time.Location) *StatsAggregator {
	if loc != nil {
		a.location = loc
	}
	return a
}

type statRecord struct {
	tx    *domain.HistoricalTransaction
	at    time.Time
	valid bool
	index int
}

func (a *StatsAggregator) Aggregate(history []domain.HistoricalTransaction) domain.DashboardStats {
	now := a.now()
	stats := domain.DashboardStats{
		TotalTransactions:  len(history),
		RulesEvaluated:     a.rulesEvaluated,
		TopRules:           []domain.RuleCount{},
		ThreatTrend:        []int{},
		RecentTransactions: []domain.RecentTransaction{},
	}

	var (
		scored     int
		scoreSum   int
		lowCount   int
		medCount   int
		highCount  int
		ruleCounts = make(map[domain.RuleID]int)
		ruleOrder  []domain.RuleID
		records    = make([]statRecord, 0, len(history))
	)

	for i := range history {
		tx := &history[i]
		stats.TotalAmount += tx.Amount

		rec := statRecord{tx: tx, index: i}
		if at, err := domain.ParseTimestamp(tx.Timestamp); err != nil {
			stats.DegradedRecords++
			a.logger.Warn("Skipping time buckets for record with bad timestamp",
				slog.String("transaction_id", tx.ID),
				slog.String("timestamp", tx.Timestamp),
				slog.String("error", err.Error()))
		} else {
			rec.at, rec.valid = at, true
			stats.HourlyDistribution[at.In(a.location).Hour()]++
		}
		records = append(records, rec)

		risk := tx.RiskResult
		if risk == nil {
			continue
		}

		scored++
		scoreSum += risk.Score

		switch risk.Level {
		case domain.RiskLow:
			stats.SafeCount++
			lowCount++
		case domain.RiskMedium:
			stats.FlaggedCount++
			medCount++
		case domain.RiskHigh:
			stats.FlaggedCount++
			highCount++
		}

		if risk.RecommendedAction == domain.ActionBlock {
			stats.BlockedCount++
			stats.MoneySaved += tx.Amount
		}

		for _, reason := range risk.Reasons {
			if _, seen := ruleCounts[reason.RuleID]; !seen {
				ruleOrder = append(ruleOrder, reason.RuleID)
			}
			ruleCounts[reason.RuleID]++
		}
	}

	if scored > 0 {
		avg := float64(scoreSum) / float64(scored)
		stats.AvgRiskScore = roundTo(avg, 1)
		stats.SecurityScore = clampScore(int(math.Round(100 - avg)))
	}

	stats.TrustRate = 100.0
	if stats.TotalTransactions > 0 {
		stats.TrustRate = roundTo(float64(stats.SafeCount)/float64(stats.TotalTransactions)*100, 1)
	}

	stats.RiskDistribution = riskDistribution(lowCount, medCount, highCount)
	stats.TopRules = topRules(ruleCounts, ruleOrder, a.topRuleSize)

	// Most recent first; equal timestamps favour the later snapshot position.
	slices.SortStableFunc(records, func(x, y statRecord) int {
		if c := y.at.Compare(x.at); c != 0 {
			return c
		}
		return y.index - x.index
	})

	for _, rec := range records {
		if len(stats.ThreatTrend) == a.trendSize {
			break
		}
		if rec.tx.RiskResult != nil {
			stats.ThreatTrend = append(stats.ThreatTrend, rec.tx.RiskResult.Score)
		}
	}
	slices.Reverse(stats.ThreatTrend)

	for _, rec := range records[:min(a.recentSize, len(records))] {
		stats.RecentTransactions = append(stats.RecentTransactions, a.recentTransaction(rec, now))
	}

	return stats
}

func (a *StatsAggregator) recentTransaction(rec statRecord, now time.Time) domain.RecentTransaction {
	tx := rec.tx
	recent := domain.RecentTransaction{
		ID:     tx.ID,
		To:     tx.RecipientUPI,
		Name:   tx.RecipientName,
		Amount: tx.Amount,
		Status: tx.Status,
		Time:   unknownTimeLabel,
	}
	if recent.Name == "" {
		recent.Name = domain.DisplayName(tx.RecipientUPI)
	}
	if tx.RiskResult != nil {
		recent.Risk = tx.RiskResult.Level
		recent.Score = tx.RiskResult.Score
	}
	if rec.valid {
		recent.Time = RelativeTime(rec.at, now)
	}
	return recent
}

// RelativeTime renders then relative to now: "just now", "42s ago", "3m ago",
// "5h ago", "2d ago".
func RelativeTime(then, now time.Time) string {
	return humanize.CustomRelTime(then, now, "ago", "from now", relativeTimeMagnitudes)
}

// riskDistribution rounds low and high shares and derives medium from them so the
// three always total 100. A negative medium remainder is taken from high.
func riskDistribution(low, medium, high int) domain.RiskDistribution {
	dist := domain.RiskDistribution{
		Low:    domain.LevelShare{Count: low},
		Medium: domain.LevelShare{Count: medium},
		High:   domain.LevelShare{Count: high},
	}

	total := low + medium + high
	if total == 0 {
		return dist
	}

	dist.Low.Pct = int(math.Round(float64(low) / float64(total) * 100))
	dist.High.Pct = int(math.Round(float64(high) / float64(total) * 100))
	dist.Medium.Pct = 100 - dist.Low.Pct - dist.High.Pct
	if dist.Medium.Pct < 0 {
		dist.High.Pct += dist.Medium.Pct
		dist.Medium.Pct = 0
	}
	return dist
}

func topRules(counts map[domain.RuleID]int, order []domain.RuleID, limit int) []domain.RuleCount {
	result := make([]domain.RuleCount, 0, len(order))
	for _, id := range order {
		result = append(result, domain.RuleCount{RuleID: id, Count: counts[id]})
	}

	// Stable sort keeps first-encountered order among equal counts.
	slices.SortStableFunc(result, func(x, y domain.RuleCount) int {
		return y.Count - x.Count
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
