package middleware

import (
	"github.com/gin-gonic/gin"

	"pantrycam/internal/session"
)

const (
	ContextSessionKey        = "session"
	contextSessionManagerKey = "session_manager"
)

// Sessions loads the browser session before the handler runs.
func Sessions(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextSessionManagerKey, m)
		c.Set(ContextSessionKey, m.Load(c.Request))
		c.Next()
	}
}

func CurrentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(ContextSessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// SaveSession writes the current session cookie. Call it before the response
// is written.
func SaveSession(c *gin.Context) error {
	s := CurrentSession(c)
	v, ok := c.Get(contextSessionManagerKey)
	if s == nil || !ok {
		return nil
	}
	return v.(*session.Manager).Save(c.Writer, s)
}
