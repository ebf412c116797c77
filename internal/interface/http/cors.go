package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// corsMiddleware lets the patient app and the clinician dashboard call the API
// from their own origins. Preflight requests stop here.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		headers := c.Writer.Header()
		if allowedOrigin, ok := matchOrigin(origin, allowed); ok {
			headers.Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				headers.Add("Vary", "Origin")
			}
		}
		headers.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		// Last-Event-ID is sent by EventSource when it reconnects to the alert stream.
		headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Last-Event-ID, X-Request-ID")
		headers.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")

		if c.Request.Method == http.MethodOptions {
			headers.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// matchOrigin returns the value for Access-Control-Allow-Origin. An empty
// allow list or a "*" entry admits every origin; otherwise unknown origins get
// no CORS header at all.
func matchOrigin(origin string, allowed []string) (string, bool) {
	if len(allowed) == 0 {
		return "*", true
	}
	for _, candidate := range allowed {
		if candidate == "*" {
			return "*", true
		}
		if origin != "" && strings.EqualFold(candidate, origin) {
			return origin, true
		}
	}
	return "", false
}
