package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond perMinute, with a burst of one minute's
// allowance. The limit is shared by every caller of the route.
func RateLimit(perMinute int, logger *slog.Logger) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(perMinute)).Seconds() + 0.5))

	return func(c *gin.Context) {
		if !limiter.Allow() {
			logger.Warn("Rate limit exceeded",
				slog.String("request_id", RequestIDFromContext(c.Request.Context())),
				slog.String("path", c.FullPath()))

			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many requests, try again later",
				},
			})
			return
		}
		c.Next()
	}
}
