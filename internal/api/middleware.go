package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dbh/mdcite/internal/config"
	"github.com/dbh/mdcite/internal/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	limiterIdleTTL    = time.Hour
	limiterSweepEvery = 5 * time.Minute
)

// RequestID takes the request ID from X-Request-ID or generates a UUID, and
// echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// Logging logs one structured entry per request.
func Logging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
			logger.String("request_id", c.GetString(requestIDKey)),
		}

		if len(c.Errors) > 0 {
			msgs := make([]string, len(c.Errors))
			for i, err := range c.Errors {
				msgs[i] = err.Err.Error()
			}
			log.Error("HTTP request with errors", append(fields, logger.Strings("errors", msgs))...)
			return
		}
		if strings.HasSuffix(path, "/health") {
			log.Debug("HTTP request", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}

// Recovery turns panics into INTERNAL_ERROR responses.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered",
					logger.Any("panic", r),
					logger.String("path", c.Request.URL.Path),
					logger.String("request_id", c.GetString(requestIDKey)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(
					NewError(ErrCodeInternal, "an unexpected error occurred", nil)))
			}
		}()
		c.Next()
	}
}

// BodyLimit caps the request body at limit bytes. Reads past the limit fail
// with *http.MaxBytesError.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody(
				NewError(ErrCodeInvalidInput, "request body too large", nil)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies per-client-IP token-bucket limiting. Limiters idle for
// an hour are swept while serving requests.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu        sync.Mutex
		limiters  = make(map[string]*limiterEntry)
		lastSweep = time.Now()
	)

	getLimiter := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(lastSweep) > limiterSweepEvery {
			for id, e := range limiters {
				if now.Sub(e.lastSeen) > limiterIdleTTL {
					delete(limiters, id)
				}
			}
			lastSweep = now
		}

		e, ok := limiters[identity]
		if !ok {
			e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			limiters[identity] = e
		}
		e.lastSeen = now
		return e.limiter
	}

	return func(c *gin.Context) {
		if !getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody(
				NewError(ErrCodeRateLimited, "rate limit exceeded, please slow down", nil)))
			return
		}
		c.Next()
	}
}

func errorBody(e *Error) gin.H {
	return gin.H{"success": false, "error": e.Detail()}
}
