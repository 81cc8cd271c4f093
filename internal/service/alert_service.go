package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"secureflow/internal/domain"
)

const (
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	criticalScore = 90
)

var (
	ErrQueueFull     = errors.New("alert queue full")
	ErrServiceClosed = errors.New("alert service closed")
)

// FraudAlert describes one blocked transfer.
type FraudAlert struct {
	TransactionID string
	Recipient     string
	Amount        float64
	Score         int
	Severity      string
	Rules         []domain.RuleID
	Message       string
	CreatedAt     time.Time
}

// AlertSink delivers alerts to one destination.
type AlertSink interface {
	Name() string
	Deliver(ctx context.Context, alert FraudAlert) error
}

// AlertService fans blocked transfers out to its sinks from a pool of workers,
// so publishing never waits on delivery.
type AlertService struct {
	sinks        []AlertSink
	queue        chan FraudAlert
	workers      int
	shutdownChan chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	logger       *slog.Logger
}

func NewAlertService(workers, queueSize int, logger *slog.Logger, sinks ...AlertSink) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}

	service := &AlertService{
		sinks:        sinks,
		queue:        make(chan FraudAlert, queueSize),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	service.startWorkers()

	return service
}

func (s *AlertService) PublishFraudAlert(ctx context.Context, tx domain.HistoricalTransaction) error {
	select {
	case <-s.shutdownChan:
		return ErrServiceClosed
	default:
	}

	alert := NewFraudAlert(tx)

	select {
	case s.queue <- alert:
		s.logger.WarnContext(ctx, "Fraud alert queued",
			slog.String("transaction_id", alert.TransactionID),
			slog.String("severity", alert.Severity),
			slog.Int("score", alert.Score))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: dropping alert for %s", ErrQueueFull, alert.TransactionID)
	}
}

func NewFraudAlert(tx domain.HistoricalTransaction) FraudAlert {
	alert := FraudAlert{
		TransactionID: tx.ID,
		Recipient:     tx.RecipientUPI,
		Amount:        tx.Amount,
		Severity:      SeverityHigh,
		CreatedAt:     time.Now(),
	}

	var titles []string
	if risk := tx.RiskResult; risk != nil {
		alert.Score = risk.Score
		for _, reason := range risk.Reasons {
			if reason.ScoreAdded > 0 {
				alert.Rules = append(alert.Rules, reason.RuleID)
				titles = append(titles, reason.Title)
			}
		}
	}
	if alert.Score >= criticalScore {
		alert.Severity = SeverityCritical
	}

	alert.Message = fmt.Sprintf("Blocked ₹%s to %s (risk %d/100)",
		humanize.Commaf(alert.Amount), alert.Recipient, alert.Score)
	if len(titles) > 0 {
		alert.Message += ": " + strings.Join(titles, ", ")
	}
	return alert
}

func (s *AlertService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *AlertService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("Alert worker started", slog.Int("worker_id", id))

	for {
		select {
		case alert := <-s.queue:
			s.deliver(alert, id)
		case <-s.shutdownChan:
			s.drain(id)
			s.logger.Debug("Alert worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

// drain delivers whatever is still queued when shutdown begins.
func (s *AlertService) drain(workerID int) {
	for {
		select {
		case alert := <-s.queue:
			s.deliver(alert, workerID)
		default:
			return
		}
	}
}

func (s *AlertService) deliver(alert FraudAlert, workerID int) {
	for _, sink := range s.sinks {
		start := time.Now()
		err := sink.Deliver(context.Background(), alert)
		duration := time.Since(start)

		if err != nil {
			s.logger.Error("Failed to deliver fraud alert",
				slog.String("sink", sink.Name()),
				slog.String("transaction_id", alert.TransactionID),
				slog.String("error", err.Error()),
				slog.Int("worker_id", workerID),
				slog.Duration("duration", duration))
			continue
		}

		s.logger.Info("Fraud alert delivered",
			slog.String("sink", sink.Name()),
			slog.String("transaction_id", alert.TransactionID),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	}
}

func (s *AlertService) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.shutdownChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Alert service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Deliver(ctx context.Context, alert FraudAlert) error {
	rules := make([]string, len(alert.Rules))
	for i, r := range alert.Rules {
		rules[i] = string(r)
	}

	l.logger.WarnContext(ctx, alert.Message,
		slog.String("transaction_id", alert.TransactionID),
		slog.String("recipient", alert.Recipient),
		slog.Float64("amount", alert.Amount),
		slog.Int("score", alert.Score),
		slog.String("severity", alert.Severity),
		slog.Any("rules", rules))
	return nil
}
