package domain

type LevelShare struct {
	Count int `json:"count"`
	Pct   int `json:"pct"`
}

// RiskDistribution percentages always sum to exactly 100 when any record is scored.
type RiskDistribution struct {
	Low    LevelShare `json:"low"`
	Medium LevelShare `json:"medium"`
	High   LevelShare `json:"high"`
}

type RuleCount struct {
	RuleID RuleID `json:"ruleId"`
	Count  int    `json:"count"`
}

type RecentTransaction struct {
	ID     string            `json:"id"`
	To     string            `json:"to"`
	Name   string            `json:"name"`
	Amount float64           `json:"amount"`
	Risk   RiskLevel         `json:"risk,omitempty"`
	Score  int               `json:"score"`
	Status TransactionStatus `json:"status,omitempty"`
	Time   string            `json:"time"`
}

type DashboardStats struct {
	TotalTransactions  int                 `json:"totalTransactions"`
	FlaggedCount       int                 `json:"flaggedCount"`
	BlockedCount       int                 `json:"blockedCount"`
	SafeCount          int                 `json:"safeCount"`
	MoneySaved         float64             `json:"moneySaved"`
	TotalAmount        float64             `json:"totalAmount"`
	SecurityScore      int                 `json:"securityScore"`
	TrustRate          float64             `json:"trustRate"`
	AvgRiskScore       float64             `json:"avgRiskScore"`
	RiskDistribution   RiskDistribution    `json:"riskDistribution"`
	TopRules           []RuleCount         `json:"topRules"`
	ThreatTrend        []int               `json:"threatTrend"`
	HourlyDistribution [24]int             `json:"hourlyDistribution"`
	RecentTransactions []RecentTransaction `json:"recentTransactions"`
	RulesEvaluated     int                 `json:"rulesEvaluated"`
	DegradedRecords    int                 `json:"degradedRecords,omitempty"`
}
