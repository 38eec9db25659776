package filter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
)

// allowedOrigins are the browser origins of the web frontend
var allowedOrigins = map[string]bool{
	"http://localhost:3000": true,
	"http://127.0.0.1:3000": true,
}

type checkRequest struct {
	EmailBody   *string `json:"emailbody" binding:"required"`
	EmailSender *string `json:"emailsender" binding:"required"`
}

type checkResponse struct {
	Status           core.ThreatLevel    `json:"status"`
	Suswords         []string            `json:"suswords"`
	IsTrustedPartner bool                `json:"is_trusted_partner"`
	PartnerInfo      *core.PartnerRecord `json:"partner_info"`
	Probability      float64             `json:"probability"`
}

type verifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

type scanRecordResponse struct {
	ID               string           `json:"id"`
	Sender           string           `json:"sender"`
	Status           core.ThreatLevel `json:"status"`
	Probability      float64          `json:"probability"`
	Suswords         []string         `json:"suswords"`
	IsTrustedPartner bool             `json:"is_trusted_partner"`
	PartnerID        string           `json:"partner_id,omitempty"`
	ScannedAt        time.Time        `json:"scanned_at"`
}

// HTTPFilter exposes the scoring service as a JSON API
type HTTPFilter struct {
	service *core.ThreatScoringService
	logger  *zap.Logger
	cfg     config.HTTPConfig
	router  *gin.Engine
	server  *http.Server
}

// NewHTTPFilter creates a new HTTP API filter
func NewHTTPFilter(service *core.ThreatScoringService, logger *zap.Logger, cfg config.HTTPConfig) *HTTPFilter {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	f := &HTTPFilter{
		service: service,
		logger:  logger,
		cfg:     cfg,
		router:  gin.New(),
	}
	f.registerRoutes()
	return f
}

func (f *HTTPFilter) registerRoutes() {
	f.router.Use(gin.Recovery(), f.requestLogger(), cors())

	f.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "welcome to root"})
	})
	f.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	f.router.POST("/check/", f.check)
	f.router.POST("/sap/verify-email/", f.verifyEmail)
	f.router.GET("/sap/status/", f.partnerStatus)
	f.router.GET("/history", f.history)
}

// Handler returns the HTTP handler serving the API
func (f *HTTPFilter) Handler() http.Handler {
	return f.router
}

// Start starts the HTTP server
func (f *HTTPFilter) Start() error {
	f.server = &http.Server{
		Addr:         f.cfg.ListenAddress,
		Handler:      f.router,
		ReadTimeout:  f.cfg.ReadTimeout,
		WriteTimeout: f.cfg.WriteTimeout,
	}

	f.logger.Info("HTTP API starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the HTTP server down
func (f *HTTPFilter) Stop() error {
	if f.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return f.server.Shutdown(ctx)
}

// ProcessEmail classifies an email without going through HTTP
func (f *HTTPFilter) ProcessEmail(ctx context.Context, payload core.EmailPayload) (*core.ThreatVerdict, error) {
	return f.service.Classify(ctx, payload)
}

func (f *HTTPFilter) check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	verdict, err := f.service.Classify(c.Request.Context(), core.EmailPayload{
		Sender: *req.EmailSender,
		Body:   *req.EmailBody,
	})
	if err != nil {
		var cerr *core.ClassificationError
		if errors.As(err, &cerr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": cerr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
		return
	}

	c.JSON(http.StatusOK, checkResponse{
		Status:           verdict.Level,
		Suswords:         verdict.MatchedWords,
		IsTrustedPartner: verdict.IsTrustedPartner,
		PartnerInfo:      verdict.PartnerInfo,
		Probability:      verdict.Probability,
	})
}

func (f *HTTPFilter) verifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	record, err := f.service.VerifyPartner(c.Request.Context(), req.Email)
	if err != nil {
		f.logger.Warn("Partner verification failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "partner verification failed"})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (f *HTTPFilter) partnerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, f.service.PartnerStatus())
}

func (f *HTTPFilter) history(c *gin.Context) {
	limit := f.cfg.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := f.service.History(c.Request.Context(), c.Query("sender"), limit)
	if err != nil {
		if errors.Is(err, core.ErrHistoryDisabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		f.logger.Error("Failed to list scan history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list scan history"})
		return
	}

	resp := make([]scanRecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, scanRecordResponse{
			ID:               r.ID.String(),
			Sender:           r.Sender,
			Status:           r.Level,
			Probability:      r.Probability,
			Suswords:         r.MatchedWords,
			IsTrustedPartner: r.IsTrustedPartner,
			PartnerID:        r.PartnerID,
			ScannedAt:        r.ScannedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"scans": resp})
}

// requestLogger logs each request through zap
func (f *HTTPFilter) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		f.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// cors allows the web frontend origins with credentials
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowedOrigins[origin] {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
