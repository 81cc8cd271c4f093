package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureflow/internal/api"
	"secureflow/internal/domain"
	"secureflow/internal/processor"
	"secureflow/internal/repository"
	"secureflow/internal/repository/memory"
	"secureflow/internal/repository/sqlite"
	"secureflow/internal/service"
	"secureflow/pkg/crypto"
	"secureflow/pkg/metrics"
)

// 12:00 in UTC+05:30, clear of the night window.
var noonIST = time.Date(2026, 10, 16, 6, 30, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	alerts []service.FraudAlert
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(ctx context.Context, alert service.FraudAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *recordingSink) delivered() []service.FraudAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]service.FraudAlert(nil), s.alerts...)
}

type testEnv struct {
	router    *gin.Engine
	processor *processor.TransactionProcessor
	alerts    *service.AlertService
	sink      *recordingSink
}

type envOption func(*envConfig)

type envConfig struct {
	balance float64
	history repository.HistoryRepository
	users   repository.UserRepository
	options api.Options
}

func withBalance(balance float64) envOption {
	return func(c *envConfig) { c.balance = balance }
}

func withStore(history repository.HistoryRepository, users repository.UserRepository) envOption {
	return func(c *envConfig) { c.history, c.users = history, users }
}

func withOptions(opts api.Options) envOption {
	return func(c *envConfig) { c.options = opts }
}

func setup(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := envConfig{
		balance: 50000,
		history: memory.NewHistoryRepository(),
		users:   memory.NewUserRepository(nil),
		options: api.Options{RateLimitRPS: 1000, RateLimitBurst: 1000, StatsCacheTTL: time.Minute},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := func() time.Time { return noonIST }
	profile := domain.User{
		ID:              "user-1",
		Name:            "Arjun Kumar",
		UPIID:           "arjun@upi",
		Balance:         cfg.balance,
		TrustedContacts: []string{"mom@upi"},
	}

	metricsCollector := metrics.NewMetricsCollector(nil)
	signer := crypto.NewSigner("test-secret", nil)
	sink := &recordingSink{}
	alerts := service.NewAlertService(1, 16, nil, sink)
	t.Cleanup(func() { _ = alerts.Shutdown(context.Background()) })

	proc := processor.NewTransactionProcessor(
		cfg.history,
		cfg.users,
		processor.NewRiskEngine(nil).WithClock(clock),
		processor.NewStatsAggregator(nil).WithClock(clock),
		profile,
		nil,
	).
		WithClock(clock).
		WithSigner(signer).
		WithAlerts(alerts).
		WithRecorder(metricsCollector)
	require.NoError(t, proc.EnsureSeeded(context.Background()))

	handler := api.NewAPIHandler(proc, metricsCollector, signer, nil, cfg.options)

	return &testEnv{
		router:    handler.Router(),
		processor: proc,
		alerts:    alerts,
		sink:      sink,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func transfer(recipient string, amount float64, remarks string) map[string]any {
	return map[string]any{"recipientUPI": recipient, "amount": amount, "remarks": remarks}
}

func TestRootAndHealth(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Backend Running")

	w = env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "operational")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAnalyze_ScoresWithoutRecording(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodPost, "/api/analyze", transfer("shop@upi", 200, "groceries"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[domain.ScoreResult](t, w)
	assert.Equal(t, 20, result.Score)
	assert.Equal(t, domain.RiskLow, result.Level)
	assert.Equal(t, domain.ActionAllow, result.RecommendedAction)
	assert.Equal(t, domain.FrictionToast, result.Friction.Type)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, domain.RuleNewRecipient, result.Reasons[0].RuleID)
	require.NotNil(t, result.Reasons[0].ContributionPercent)
	assert.Equal(t, 100.0, *result.Reasons[0].ContributionPercent)
	assert.Equal(t, 9, result.RulesEvaluated)

	history := decode[[]domain.HistoricalTransaction](t, env.do(t, http.MethodGet, "/api/history", nil))
	assert.Len(t, history, 3)
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"missing delimiter", transfer("rahul", 10, ""), "VALIDATION_ERROR"},
		{"negative amount", transfer("rahul@upi", -5, ""), "VALIDATION_ERROR"},
		{"missing recipient", map[string]any{"amount": 10}, "INVALID_REQUEST"},
		{"wrong type", map[string]any{"recipientUPI": "rahul@upi", "amount": "ten"}, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/analyze", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[api.ErrorResponse](t, w).Code)
		})
	}
}

func TestSend_CompletedWithVerifiableReceipt(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodPost, "/api/send", transfer("rahul@upi", 400, "lunch"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[processor.SendResult](t, w)
	assert.Equal(t, domain.StatusCompleted, res.Transaction.Status)
	assert.Equal(t, 49600.0, res.Balance)
	assert.Len(t, res.Transaction.Signature, 64)

	w = env.do(t, http.MethodGet, "/api/transactions/"+res.Transaction.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.TransactionResponse](t, w)
	require.NotNil(t, got.ReceiptValid)
	assert.True(t, *got.ReceiptValid)

	user := decode[domain.User](t, env.do(t, http.MethodGet, "/api/user", nil))
	assert.Equal(t, 49600.0, user.Balance)

	history := decode[[]domain.HistoricalTransaction](t, env.do(t, http.MethodGet, "/api/history", nil))
	require.Len(t, history, 4)
	assert.Equal(t, res.Transaction.ID, history[0].ID)
}

func TestSend_BlockedPublishesAlert(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodPost, "/api/send", transfer("lottery.winner@upi", 50000, "claim your lottery prize"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[processor.SendResult](t, w)
	assert.Equal(t, domain.StatusBlocked, res.Transaction.Status)
	assert.Equal(t, domain.FrictionBlock, res.Transaction.RiskResult.Friction.Type)
	assert.False(t, res.Transaction.RiskResult.Friction.CanOverride)
	assert.Equal(t, 50000.0, res.Balance)

	require.NoError(t, env.alerts.Shutdown(context.Background()))
	delivered := env.sink.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, res.Transaction.ID, delivered[0].TransactionID)
	assert.Equal(t, service.SeverityCritical, delivered[0].Severity)
}

func TestSend_CancelledKeepsBalance(t *testing.T) {
	env := setup(t)

	body := transfer("shop@upi", 700, "")
	body["cancelled"] = true
	w := env.do(t, http.MethodPost, "/api/send", body)

	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[processor.SendResult](t, w)
	assert.Equal(t, domain.StatusCancelled, res.Transaction.Status)
	assert.Equal(t, 50000.0, res.Balance)
}

func TestSend_InsufficientFunds(t *testing.T) {
	env := setup(t, withBalance(300))

	w := env.do(t, http.MethodPost, "/api/send", transfer("rahul@upi", 400, ""))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", decode[api.ErrorResponse](t, w).Code)
}

func TestGetTransaction_NotFound(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/api/transactions/TXN-MISSING", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[api.ErrorResponse](t, w).Code)
}

func TestDashboardStats_RefreshedAfterWrites(t *testing.T) {
	env := setup(t)

	stats := decode[domain.DashboardStats](t, env.do(t, http.MethodGet, "/api/dashboard-stats", nil))
	assert.Equal(t, 3, stats.TotalTransactions)
	assert.Equal(t, 1, stats.BlockedCount)
	assert.Equal(t, 50000.0, stats.MoneySaved)
	assert.Equal(t, 50, stats.SecurityScore)
	assert.Equal(t, 33.3, stats.TrustRate)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/send", transfer("rahul@upi", 400, "")).Code)

	stats = decode[domain.DashboardStats](t, env.do(t, http.MethodGet, "/api/dashboard-stats", nil))
	assert.Equal(t, 4, stats.TotalTransactions)
	assert.Equal(t, "just now", stats.RecentTransactions[0].Time)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/reset", nil).Code)

	stats = decode[domain.DashboardStats](t, env.do(t, http.MethodGet, "/api/dashboard-stats", nil))
	assert.Equal(t, 3, stats.TotalTransactions)
	user := decode[domain.User](t, env.do(t, http.MethodGet, "/api/user", nil))
	assert.Equal(t, 50000.0, user.Balance)
}

func TestRules(t *testing.T) {
	env := setup(t)

	var body struct {
		Rules []domain.RuleDefinition `json:"rules"`
		Count int                     `json:"count"`
	}
	w := env.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, len(domain.RuleCatalog), body.Count)
	assert.Equal(t, domain.RuleNewRecipient, body.Rules[0].ID)
}

func TestRateLimit(t *testing.T) {
	env := setup(t, withOptions(api.Options{RateLimitRPS: 0.001, RateLimitBurst: 2}))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/rules", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/rules", nil).Code)

	w := env.do(t, http.MethodGet, "/api/rules", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health stays reachable
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/health", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setup(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/send", transfer("rahul@upi", 400, "")).Code)

	w := env.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `secureflow_transactions_recorded_total{status="completed"} 1`)
	assert.Contains(t, w.Body.String(), `secureflow_http_requests_total{method="POST",path="/api/send",status="2xx"} 1`)
}

func TestSQLiteStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secureflow.db")

	store, err := sqlite.Open(ctx, path, nil)
	require.NoError(t, err)
	env := setup(t, withStore(store, store))

	res := decode[processor.SendResult](t, env.do(t, http.MethodPost, "/api/send", transfer("rahul@upi", 400, "lunch")))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(ctx, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	env = setup(t, withStore(reopened, reopened))

	history := decode[[]domain.HistoricalTransaction](t, env.do(t, http.MethodGet, "/api/history", nil))
	require.Len(t, history, 4)
	assert.Equal(t, res.Transaction.ID, history[0].ID)

	user := decode[domain.User](t, env.do(t, http.MethodGet, "/api/user", nil))
	assert.Equal(t, 49600.0, user.Balance)

	got := decode[api.TransactionResponse](t, env.do(t, http.MethodGet, "/api/transactions/"+res.Transaction.ID, nil))
	require.NotNil(t, got.ReceiptValid)
	assert.True(t, *got.ReceiptValid)
}
