package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/fevertrack/internal/domain/auth"
)

const authSessionKey = "auth_session"

func setSession(c *gin.Context, session auth.Session) {
	c.Set(authSessionKey, session)
}

func getSession(c *gin.Context) (auth.Session, bool) {
	value, ok := c.Get(authSessionKey)
	if !ok {
		return auth.Session{}, false
	}
	session, ok := value.(auth.Session)
	return session, ok
}

// mustSession returns the request session. Routes using it sit behind
// authMiddleware, so a missing session yields an empty one without access.
func mustSession(c *gin.Context) auth.Session {
	session, _ := getSession(c)
	return session
}
