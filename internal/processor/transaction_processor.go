package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"secureflow/internal/domain"
	"secureflow/internal/repository"
	"secureflow/pkg/validator"
)

// ReceiptSigner signs completed transfers.
type ReceiptSigner interface {
	SignReceipt(id, recipient string, amount float64, timestamp string) string
}

// AlertPublisher is notified about every blocked transfer.
type AlertPublisher interface {
	PublishFraudAlert(ctx context.Context, tx domain.HistoricalTransaction) error
}

// Recorder receives operational measurements.
type Recorder interface {
	RecordAssessment(result domain.ScoreResult, duration time.Duration)
	RecordSend(status domain.TransactionStatus, amount float64)
}

type SendRequest struct {
	domain.Transaction
	// Cancelled records the transfer as abandoned by the user after review.
	Cancelled bool `json:"cancelled"`
}

type SendResult struct {
	Transaction domain.HistoricalTransaction `json:"transaction"`
	Balance     float64                      `json:"balance"`
}

// TransactionProcessor wires the risk engine to the history and profile stores.
// Sends are serialized so the snapshot, the debit and the append of one transfer
// are never interleaved with another's.
type TransactionProcessor struct {
	history    repository.HistoryRepository
	users      repository.UserRepository
	engine     *RiskEngine
	aggregator *StatsAggregator
	validator  *validator.TransactionValidator
	profile    domain.User
	signer     ReceiptSigner
	alerts     AlertPublisher
	recorder   Recorder
	now        func() time.Time
	mu         sync.Mutex
	logger     *slog.Logger
}

func NewTransactionProcessor(
	history repository.HistoryRepository,
	users repository.UserRepository,
	engine *RiskEngine,
	aggregator *StatsAggregator,
	profile domain.User,
	logger *slog.Logger,
) *TransactionProcessor {
	if logger == nil {
		logger = slog.Default()
	}

	return &TransactionProcessor{
		history:    history,
		users:      users,
		engine:     engine,
		aggregator: aggregator,
		validator:  validator.NewTransactionValidator(),
		profile:    *profile.Clone(),
		now:        time.Now,
		logger:     logger,
	}
}

func (p *TransactionProcessor) WithSigner(signer ReceiptSigner) *TransactionProcessor {
	p.signer = signer
	return p
}

func (p *TransactionProcessor) WithAlerts(alerts AlertPublisher) *TransactionProcessor {
	p.alerts = alerts
	return p
}

func (p *TransactionProcessor) WithRecorder(recorder Recorder) *TransactionProcessor {
	p.recorder = recorder
	return p
}

func (p *TransactionProcessor) WithClock(now func() time.Time) *TransactionProcessor {
	p.now = now
	return p
}

// EnsureSeeded loads the demo profile and history into an empty store.
func (p *TransactionProcessor) EnsureSeeded(ctx context.Context) error {
	_, err := p.users.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load profile: %w", err)
	}

	p.logger.InfoContext(ctx, "Seeding empty store", slog.String("user", p.profile.UPIID))
	return p.Reset(ctx)
}

// Analyze scores a proposed transfer without recording it.
func (p *TransactionProcessor) Analyze(ctx context.Context, tx domain.Transaction) (domain.ScoreResult, error) {
	tx = p.validator.Normalize(tx)

	history, err := p.history.Snapshot(ctx)
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("load history: %w", err)
	}
	user, err := p.users.Get(ctx)
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("load profile: %w", err)
	}

	p.logger.InfoContext(ctx, "Analyzing transaction",
		slog.String("recipient", tx.RecipientUPI),
		slog.Float64("amount", tx.Amount))

	return p.assess(tx, history, user)
}

// Send scores a transfer and records it. A blocked transfer is stored without
// touching the balance, a cancelled one is stored as cancelled, and anything
// else is debited and stored as completed with a signed receipt.
func (p *TransactionProcessor) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	tx := p.validator.Normalize(req.Transaction)

	p.mu.Lock()
	defer p.mu.Unlock()

	history, err := p.history.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	user, err := p.users.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	result, err := p.assess(tx, history, user)
	if err != nil {
		return nil, err
	}

	record := domain.NewHistoricalTransaction(tx, p.now()).WithRiskResult(result)
	record.Remarks = p.validator.SanitizeRemarks(record.Remarks)

	switch {
	case result.RecommendedAction == domain.ActionBlock:
		record.WithStatus(domain.StatusBlocked)
	case req.Cancelled:
		record.WithStatus(domain.StatusCancelled)
	default:
		updated, err := p.users.Debit(ctx, tx.Amount)
		if err != nil {
			return nil, fmt.Errorf("debit %s: %w", record.ID, err)
		}
		user = updated
		if p.signer != nil {
			record.Signature = p.signer.SignReceipt(record.ID, record.RecipientUPI, record.Amount, record.Timestamp)
		}
	}

	if err := p.history.Append(ctx, record); err != nil {
		if record.Status == domain.StatusCompleted {
			p.refund(ctx, record)
		}
		return nil, fmt.Errorf("record %s: %w", record.ID, err)
	}

	p.logger.InfoContext(ctx, "Transaction recorded",
		slog.String("transaction_id", record.ID),
		slog.String("status", string(record.Status)),
		slog.Int("score", result.Score),
		slog.Float64("balance", user.Balance))

	if p.recorder != nil {
		p.recorder.RecordSend(record.Status, record.Amount)
	}

	if record.Status == domain.StatusBlocked && p.alerts != nil {
		if err := p.alerts.PublishFraudAlert(ctx, *record); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish fraud alert",
				slog.String("transaction_id", record.ID),
				slog.String("error", err.Error()))
		}
	}

	return &SendResult{Transaction: *record, Balance: user.Balance}, nil
}

// History returns the recorded transactions, most recent first.
func (p *TransactionProcessor) History(ctx context.Context) ([]domain.HistoricalTransaction, error) {
	history, err := p.history.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	slices.Reverse(history)
	return history, nil
}

func (p *TransactionProcessor) GetTransaction(ctx context.Context, id string) (*domain.HistoricalTransaction, error) {
	return p.history.GetByID(ctx, id)
}

func (p *TransactionProcessor) User(ctx context.Context) (*domain.User, error) {
	return p.users.Get(ctx)
}

func (p *TransactionProcessor) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	history, err := p.history.Snapshot(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("load history: %w", err)
	}
	return p.aggregator.Aggregate(history), nil
}

func (p *TransactionProcessor) Rules() []domain.RuleDefinition {
	return slices.Clone(domain.RuleCatalog)
}

// Reset restores the seeded profile and history.
func (p *TransactionProcessor) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.history.Reset(ctx, SeedHistory(p.now())); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	if err := p.users.Save(ctx, p.profile.Clone()); err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}

	p.logger.InfoContext(ctx, "Store reset to seed data")
	return nil
}

// refund credits back a debit whose record could not be stored. It ignores
// cancellation of ctx so an aborted request cannot leave the balance short.
func (p *TransactionProcessor) refund(ctx context.Context, record *domain.HistoricalTransaction) {
	if _, err := p.users.Credit(context.WithoutCancel(ctx), record.Amount); err != nil {
		p.logger.ErrorContext(ctx, "Failed to refund unrecorded transfer",
			slog.String("transaction_id", record.ID),
			slog.Float64("amount", record.Amount),
			slog.String("error", err.Error()))
		return
	}
	p.logger.WarnContext(ctx, "Refunded unrecorded transfer",
		slog.String("transaction_id", record.ID),
		slog.Float64("amount", record.Amount))
}

func (p *TransactionProcessor) assess(
	tx domain.Transaction,
	history []domain.HistoricalTransaction,
	user *domain.User,
) (domain.ScoreResult, error) {
	start := time.Now()
	result, err := p.engine.Assess(tx, history, user.TrustedSet())
	if err != nil {
		return domain.ScoreResult{}, err
	}

	if p.recorder != nil {
		p.recorder.RecordAssessment(result, time.Since(start))
	}
	return result, nil
}
