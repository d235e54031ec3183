package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-leaf-relay/internal/config"
	apperrors "go-leaf-relay/internal/errors"
	"go-leaf-relay/internal/logger"
	"go-leaf-relay/internal/service"
	"go-leaf-relay/pkg/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EndPointRoot        = "/"
	EndPointHealth      = "/health"
	EndPointAnalyzeLeaf = "/analyze_leaf"
	EndPointMetrics     = "/metrics"

	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// NewHandler builds the relay's router. metrics may be nil to disable /metrics.
func NewHandler(svc service.LeafAnalysisService, metrics http.Handler, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		requestID(),
		requestLogger(),
		recovery(cfg.VerboseErrors),
		cors.New(corsConfig(cfg.AllowedOrigins)),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	r.GET(EndPointRoot, healthCheck)
	r.GET(EndPointHealth, healthCheck)
	r.POST(EndPointAnalyzeLeaf, analyzeLeaf(svc, cfg))
	if metrics != nil {
		r.GET(EndPointMetrics, gin.WrapH(metrics))
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func analyzeLeaf(svc service.LeafAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err), cfg.VerboseErrors)
			return
		}

		result, err := svc.AnalyzeLeaf(c.Request.Context(), req)
		if err != nil {
			respondError(c, err, cfg.VerboseErrors)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func bindError(err error) *apperrors.AppError {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return apperrors.NewInvalidRequestError(
			fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit), err)
	case errors.Is(err, io.EOF):
		return apperrors.NewInvalidRequestError("no image data provided", err)
	default:
		return apperrors.NewInvalidRequestError("invalid request format", err)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "healthy"})
}

// requestID tags each request with an ID, reusing a sane inbound X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id":  c.GetString(requestIDKey),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request completed with server error")
			return
		}
		entry.Info("Request completed")
	}
}

// recovery turns panics into an UnexpectedError response instead of a dropped connection.
func recovery(verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := apperrors.NewUnexpectedError("internal server error", fmt.Errorf("panic: %v", r))
				respondError(c, err, verbose)
			}
		}()
		c.Next()
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func respondError(c *gin.Context, err error, verbose bool) {
	appErr := apperrors.AsAppError(err)

	logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  c.GetString(requestIDKey),
		"status_code": appErr.StatusCode,
		"error_type":  appErr.Type,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	resp := models.ErrorResponse{
		Error:     appErr.Message,
		Type:      string(appErr.Type),
		RequestID: c.GetString(requestIDKey),
	}
	if verbose {
		resp.Details = appErr.Diagnostics()
	}
	c.AbortWithStatusJSON(appErr.StatusCode, resp)
}
