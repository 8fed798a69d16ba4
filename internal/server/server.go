// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	stderrors "news-agent/internal/common/errors"
	"news-agent/internal/common/logger"
	"news-agent/internal/common/metrics"
	"news-agent/internal/common/observability"
	"news-agent/internal/common/validation"
	"news-agent/internal/composer"
	"news-agent/internal/models"
)

// SessionStore is the slice of the session store the HTTP surface needs
// beyond what the composer already wraps.
type SessionStore interface {
	LockUser(userID string) func()
	History(ctx context.Context, userID string) ([]models.Message, error)
	ClearHistory(ctx context.Context, userID string) error
	ReplacePreferences(ctx context.Context, userID string, prefs models.Preferences) error
}

// Server is the HTTP API surface of the news agent.
type Server struct {
	router   *gin.Engine
	composer *composer.Composer
	sessions SessionStore
	obs      *observability.Observability
	logger   logger.Logger
}

func New(comp *composer.Composer, sessions SessionStore, obs *observability.Observability, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		composer: comp,
		sessions: sessions,
		obs:      obs,
		logger:   log.With(map[string]interface{}{"component": "server"}),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.metricsMiddleware())
	s.setupRoutes()
	return s
}

// Handler exposes the router for tests and for the http.Server in main.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.obs.Handler()))

	api := s.router.Group("/api")
	api.POST("/initialize", s.handleInitialize)
	api.GET("/history/:userId", s.handleGetHistory)
	api.DELETE("/history/:userId", s.handleClearHistory)
	api.GET("/headlines", s.handleHeadlines)
	api.GET("/publication/:name", s.handlePublication)
	api.GET("/topic/:term", s.handleTopic)
	api.POST("/request", s.handleRequest)
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/preferences/:userId", s.handlePreferences)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start)

		metrics.RequestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
		s.obs.RecordRequest(c.Request.Context(), route, status)
		s.obs.RecordRequestDuration(c.Request.Context(), elapsed, route)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type initializeRequest struct {
	UserID      string                 `json:"userId" binding:"required"`
	Preferences map[string]interface{} `json:"preferences"`
}

func (s *Server) handleInitialize(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, stderrors.NewInvalidRequestError(err.Error()))
		return
	}

	prefs, err := decodePreferences(req.Preferences)
	if err != nil {
		s.fail(c, err)
		return
	}

	message, err := s.composer.Initialize(c.Request.Context(), req.UserID, prefs)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	history, err := s.sessions.History(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	userID := c.Param("userId")

	unlock := s.sessions.LockUser(userID)
	defer unlock()

	if err := s.sessions.ClearHistory(c.Request.Context(), userID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "history cleared"})
}

func (s *Server) handleHeadlines(c *gin.Context) {
	entry, err := s.composer.Browse(c.Request.Context(), models.Intent{
		Kind:     models.IntentHeadlines,
		Region:   c.DefaultQuery("country", "us"),
		Category: c.Query("category"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"headlines": entry.Articles,
		"degraded":  entry.Degraded,
	})
}

func (s *Server) handlePublication(c *gin.Context) {
	entry, err := s.composer.Browse(c.Request.Context(), models.Intent{
		Kind:        models.IntentPublication,
		Publication: c.Param("name"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"articles": entry.Articles,
		"degraded": entry.Degraded,
	})
}

func (s *Server) handleTopic(c *gin.Context) {
	entry, err := s.composer.Browse(c.Request.Context(), models.Intent{
		Kind:     models.IntentTopic,
		Term:     c.Param("term"),
		Language: c.DefaultQuery("language", "en"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"articles": entry.Articles,
		"degraded": entry.Degraded,
	})
}

type chatRequest struct {
	UserID    string `json:"userId" binding:"required"`
	UserInput string `json:"userInput" binding:"required"`
}

func (s *Server) handleRequest(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, stderrors.NewInvalidRequestError(err.Error()))
		return
	}

	resp, err := s.composer.Handle(c.Request.Context(), req.UserID, req.UserInput)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "response": resp})
}

type analyzeRequest struct {
	Articles []models.Article `json:"articles" binding:"required"`
	Prompt   string           `json:"prompt" binding:"required"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, stderrors.NewInvalidRequestError(err.Error()))
		return
	}

	analysis, err := s.composer.Analyze(c.Request.Context(), req.Articles, req.Prompt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": analysis})
}

type preferencesRequest struct {
	Preferences map[string]interface{} `json:"preferences" binding:"required"`
}

func (s *Server) handlePreferences(c *gin.Context) {
	userID := c.Param("userId")

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, stderrors.NewInvalidRequestError(err.Error()))
		return
	}

	prefs, err := decodePreferences(req.Preferences)
	if err != nil {
		s.fail(c, err)
		return
	}

	unlock := s.sessions.LockUser(userID)
	defer unlock()

	if err := s.sessions.ReplacePreferences(c.Request.Context(), userID, prefs); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "preferences updated"})
}

// decodePreferences validates the raw document against the schema and decodes
// it into the typed value. A nil document yields the defaults.
func decodePreferences(doc map[string]interface{}) (models.Preferences, error) {
	if doc == nil {
		return models.DefaultPreferences(), nil
	}
	if err := validation.ValidatePreferences(doc); err != nil {
		return models.Preferences{}, stderrors.NewInvalidRequestError(err.Error())
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return models.Preferences{}, stderrors.NewInvalidRequestError(err.Error())
	}
	var prefs models.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return models.Preferences{}, stderrors.NewInvalidRequestError(err.Error())
	}
	return prefs.Normalize(), nil
}

// fail writes the error envelope with the HTTP status for its code.
func (s *Server) fail(c *gin.Context, err error) {
	code := stderrors.CodeOf(err)
	status := statusFor(code)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"route": c.FullPath(),
			"error": err.Error(),
		})
	}

	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":      string(code),
			"message":   err.Error(),
			"retryable": stderrors.IsRetryable(err),
		},
	})
}

func statusFor(code stderrors.ErrorCode) int {
	switch code {
	case stderrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case stderrors.ErrCodeAggregateUnavailable:
		return http.StatusServiceUnavailable
	case stderrors.ErrCodeLanguageModelFailed, stderrors.ErrCodeLanguageModelTimeout:
		return http.StatusBadGateway
	case stderrors.ErrCodeProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
