package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fevertrack/internal/domain/auth"
	apperrors "github.com/yanqian/fevertrack/pkg/errors"
)

// authMiddleware resolves the bearer token into a session. GET requests may
// pass the token as ?access_token= because EventSource cannot set headers.
func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, httpErr := bearerToken(c)
		if httpErr != nil {
			abortWithError(c, httpErr)
			return
		}
		session, err := svc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if apperrors.IsCode(err, "invalid_token") {
				abortWithError(c, NewHTTPError(http.StatusUnauthorized, "invalid_token", errMessage(err), err))
			} else {
				abortWithError(c, NewHTTPError(http.StatusBadGateway, "auth_failed", "identity provider unavailable", err))
			}
			return
		}
		setSession(c, session)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, *HTTPError) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if c.Request.Method == http.MethodGet {
			if token := strings.TrimSpace(c.Query("access_token")); token != "" {
				return token, nil
			}
		}
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing authorization header", nil)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized", "invalid authorization header", nil)
	}
	return strings.TrimSpace(token), nil
}
