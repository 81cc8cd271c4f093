package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusBlocked   TransactionStatus = "blocked"
)

// UPIDelimiter separates the handle from the provider in a recipient identifier.
const UPIDelimiter = "@"

// Transaction is a proposed transfer awaiting a risk decision. It is never stored.
type Transaction struct {
	RecipientUPI string  `json:"recipientUPI"`
	Amount       float64 `json:"amount"`
	Remarks      string  `json:"remarks"`
}

// HistoricalTransaction is a transfer already recorded by the history store.
// Timestamp stays in its ISO-8601 wire form; ParseTimestamp turns it into a time.
type HistoricalTransaction struct {
	ID            string            `json:"id"`
	RecipientUPI  string            `json:"recipientUPI"`
	RecipientName string            `json:"recipientName"`
	Amount        float64           `json:"amount"`
	Remarks       string            `json:"remarks"`
	Timestamp     string            `json:"timestamp"`
	Status        TransactionStatus `json:"status"`
	RiskResult    *ScoreResult      `json:"riskResult,omitempty"`
	Signature     string            `json:"signature,omitempty"`
}

func NewHistoricalTransaction(tx Transaction, at time.Time) *HistoricalTransaction {
	return &HistoricalTransaction{
		ID:            generateTransactionID(),
		RecipientUPI:  tx.RecipientUPI,
		RecipientName: DisplayName(tx.RecipientUPI),
		Amount:        tx.Amount,
		Remarks:       tx.Remarks,
		Timestamp:     FormatTimestamp(at),
		Status:        StatusCompleted,
	}
}

func (tx *HistoricalTransaction) WithStatus(status TransactionStatus) *HistoricalTransaction {
	tx.Status = status
	return tx
}

func (tx *HistoricalTransaction) WithRiskResult(result ScoreResult) *HistoricalTransaction {
	tx.RiskResult = &result
	return tx
}

// Handle returns the part of a recipient identifier before the delimiter.
func Handle(upi string) string {
	handle, _, _ := strings.Cut(upi, UPIDelimiter)
	return handle
}

func generateTransactionID() string {
	return "TXN-" + strings.ToUpper(uuid.NewString()[:8])
}
