package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureflow/internal/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []FraudAlert
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(ctx context.Context, alert FraudAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Deliver(ctx context.Context, alert FraudAlert) error {
	return errors.New("downstream unavailable")
}

func blockedTransaction(id string, score int) domain.HistoricalTransaction {
	return domain.HistoricalTransaction{
		ID:           id,
		RecipientUPI: "lottery.winner@upi",
		Amount:       50000,
		Status:       domain.StatusBlocked,
		RiskResult: &domain.ScoreResult{
			Score: score,
			Reasons: []domain.Reason{
				{RuleID: domain.RuleScamKeyword, Title: "Suspicious Keyword Detected", ScoreAdded: 25},
				{RuleID: domain.RuleSuspiciousUPI, Title: "Suspicious UPI Handle", ScoreAdded: 20},
				{RuleID: domain.RuleTrustedContact, Title: "Trusted Contact", ScoreAdded: -15},
			},
		},
	}
}

func TestNewFraudAlert(t *testing.T) {
	alert := NewFraudAlert(blockedTransaction("TXN-1", 95))

	assert.Equal(t, "TXN-1", alert.TransactionID)
	assert.Equal(t, SeverityCritical, alert.Severity)
	assert.Equal(t, []domain.RuleID{domain.RuleScamKeyword, domain.RuleSuspiciousUPI}, alert.Rules)
	assert.Equal(t, "Blocked ₹50,000 to lottery.winner@upi (risk 95/100): Suspicious Keyword Detected, Suspicious UPI Handle", alert.Message)

	assert.Equal(t, SeverityHigh, NewFraudAlert(blockedTransaction("TXN-2", 70)).Severity)
}

func TestAlertService_DeliversToEverySink(t *testing.T) {
	sink := &recordingSink{}
	svc := NewAlertService(2, 10, nil, failingSink{}, sink)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, svc.PublishFraudAlert(context.Background(), blockedTransaction(id, 80)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	assert.Equal(t, 3, sink.count())
}

func TestAlertService_RejectsAfterShutdown(t *testing.T) {
	svc := NewAlertService(1, 1, nil)
	require.NoError(t, svc.Shutdown(context.Background()))
	require.NoError(t, svc.Shutdown(context.Background()))

	err := svc.PublishFraudAlert(context.Background(), blockedTransaction("late", 80))

	assert.ErrorIs(t, err, ErrServiceClosed)
}

type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Name() string { return "blocking" }

func (b *blockingSink) Deliver(ctx context.Context, alert FraudAlert) error {
	<-b.release
	return nil
}

func TestAlertService_QueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	svc := NewAlertService(1, 1, nil, sink)

	var err error
	for i := 0; i < 5 && err == nil; i++ {
		err = svc.PublishFraudAlert(context.Background(), blockedTransaction("x", 80))
	}

	assert.ErrorIs(t, err, ErrQueueFull)
	close(sink.release)
	require.NoError(t, svc.Shutdown(context.Background()))
}
