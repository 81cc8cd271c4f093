package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"secureflow/internal/domain"
	"secureflow/internal/logging"
	"secureflow/internal/processor"
	"secureflow/internal/repository"
	"secureflow/pkg/crypto"
	"secureflow/pkg/metrics"
	"secureflow/pkg/validator"
)

const (
	appName    = "SecureFlow"
	appVersion = "1.2.0"

	dashboardCacheKey = "dashboard-stats"
)

// Options tunes the HTTP surface. A zero StatsCacheTTL disables the dashboard cache.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	StatsCacheTTL  time.Duration
}

type APIHandler struct {
	processor      *processor.TransactionProcessor
	metrics        *metrics.MetricsCollector
	signer         *crypto.Signer
	statsCache     *cache.Cache
	limiter        *rate.Limiter
	options        Options
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(
	processor *processor.TransactionProcessor,
	metrics *metrics.MetricsCollector,
	signer *crypto.Signer,
	logger *slog.Logger,
	opts Options,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst < 1 {
		opts.RateLimitBurst = 40
	}

	return &APIHandler{
		processor:      processor,
		metrics:        metrics,
		signer:         signer,
		statsCache:     newStatsCache(opts.StatsCacheTTL),
		limiter:        rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst),
		options:        opts,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type AnalyzeRequest struct {
	RecipientUPI string  `json:"recipientUPI" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
	Remarks      string  `json:"remarks"`
}

func (r AnalyzeRequest) transaction() domain.Transaction {
	return domain.Transaction{RecipientUPI: r.RecipientUPI, Amount: r.Amount, Remarks: r.Remarks}
}

type SendRequest struct {
	AnalyzeRequest
	Cancelled bool `json:"cancelled"`
}

type TransactionResponse struct {
	Transaction *domain.HistoricalTransaction `json:"transaction"`
	// ReceiptValid is set for transfers that carry a receipt signature.
	ReceiptValid *bool `json:"receiptValid,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Router builds the gin engine with middleware and every route registered.
func (h *APIHandler) Router() *gin.Engine {
	r := gin.New()

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error: "An unexpected error occurred",
			Code:  "INTERNAL_ERROR",
		})
	}))
	r.Use(h.corsMiddleware())
	r.Use(logging.Middleware(h.logger))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware())
	}

	h.RegisterRoutes(r)
	return r
}

func (h *APIHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.RootHandler)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.GetHandler()))
	}

	group := r.Group("/api")
	group.GET("/health", h.HealthCheckHandler)

	limited := group.Group("", h.rateLimitMiddleware())
	limited.POST("/analyze", h.AnalyzeHandler)
	limited.POST("/send", h.SendHandler)
	limited.GET("/history", h.HistoryHandler)
	limited.GET("/transactions/:id", h.GetTransactionHandler)
	limited.GET("/user", h.UserHandler)
	limited.GET("/dashboard-stats", h.DashboardStatsHandler)
	limited.GET("/rules", h.RulesHandler)
	limited.POST("/reset", h.ResetHandler)
}

func (h *APIHandler) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader},
		ExposeHeaders: []string{logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(h.options.CORSOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.options.CORSOrigins
	}
	return cors.New(cfg)
}

func (h *APIHandler) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.limiter.Allow() {
			logging.L(c.Request.Context()).Warn("Rate limit exceeded", "path", c.Request.URL.Path)
			h.sendError(c, "Too many requests", http.StatusTooManyRequests, "RATE_LIMITED", nil)
			return
		}
		c.Next()
	}
}

func (h *APIHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": appName + " Backend Running"})
}

func (h *APIHandler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    appName + " backend operational",
		"timestamp": time.Now().UTC(),
		"version":   appVersion,
	})
}

func (h *APIHandler) AnalyzeHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.processor.Analyze(ctx, req.transaction())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) SendHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.processor.Send(ctx, processor.SendRequest{
		Transaction: req.transaction(),
		Cancelled:   req.Cancelled,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.flushStats()

	logging.L(ctx).Info("Transaction processed",
		slog.String("transaction_id", result.Transaction.ID),
		slog.String("status", string(result.Transaction.Status)),
		slog.Int("risk_score", result.Transaction.RiskResult.Score))

	c.JSON(http.StatusCreated, result)
}

func (h *APIHandler) HistoryHandler(c *gin.Context) {
	history, err := h.processor.History(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *APIHandler) GetTransactionHandler(c *gin.Context) {
	tx, err := h.processor.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := TransactionResponse{Transaction: tx}
	if tx.Signature != "" && h.signer != nil {
		valid := h.signer.VerifyReceipt(tx.ID, tx.RecipientUPI, tx.Amount, tx.Timestamp, tx.Signature) == nil
		resp.ReceiptValid = &valid
	}
	c.JSON(http.StatusOK, resp)
}

func (h *APIHandler) UserHandler(c *gin.Context) {
	user, err := h.processor.User(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DashboardStatsHandler serves aggregates from a short-lived cache that
// writes flush.
func (h *APIHandler) DashboardStatsHandler(c *gin.Context) {
	if h.statsCache != nil {
		if cached, ok := h.statsCache.Get(dashboardCacheKey); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	stats, err := h.processor.DashboardStats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	if h.statsCache != nil {
		h.statsCache.SetDefault(dashboardCacheKey, stats)
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIHandler) RulesHandler(c *gin.Context) {
	rules := h.processor.Rules()
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

func (h *APIHandler) ResetHandler(c *gin.Context) {
	if err := h.processor.Reset(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	h.flushStats()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// newStatsCache returns nil for a non-positive ttl, which disables caching.
func newStatsCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		return nil
	}
	return cache.New(ttl, 2*ttl)
}

func (h *APIHandler) flushStats() {
	if h.statsCache != nil {
		h.statsCache.Flush()
	}
}

func (h *APIHandler) handleError(c *gin.Context, err error) {
	var fieldErr *validator.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &fieldErrs):
		h.sendError(c, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR", []validator.ValidationError(fieldErrs))
	case errors.As(err, &fieldErr):
		h.sendError(c, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR", []validator.ValidationError{*fieldErr})
	case errors.Is(err, repository.ErrInsufficientFunds):
		h.sendError(c, "Insufficient balance", http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", nil)
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(c, "Not found", http.StatusNotFound, "NOT_FOUND", nil)
	case errors.Is(err, context.DeadlineExceeded):
		h.sendError(c, "Request timed out", http.StatusGatewayTimeout, "TIMEOUT", nil)
	default:
		logging.L(c.Request.Context()).Error("Request failed", slog.String("error", err.Error()))
		h.sendError(c, "Internal server error", http.StatusInternalServerError, "SERVER_ERROR", nil)
	}
}

func (h *APIHandler) sendError(c *gin.Context, message string, statusCode int, code string, details any) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
