package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the cookie spec.md §4.9 sets alongside the bearer
// token on login. Grounded on the teacher's session.go cookie constants,
// repurposed from an anonymous per-browser identity cookie to a
// session-row pointer that rides alongside the JWT.
const SessionCookieName = "session_id"

// SetSessionCookie sets the HttpOnly, Secure, SameSite=Lax cookie spec.md
// §4.9 requires on a successful login.
func SetSessionCookie(c *gin.Context, sessionID string, maxAgeSeconds int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, sessionID, maxAgeSeconds, "/", "", true, true)
}

// ClearSessionCookie removes the session cookie on logout.
func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", true, true)
}
