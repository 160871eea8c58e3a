package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharpms/dashboard/internal/guard"
)

const loadingRetryAfter = "1"

// Guard enforces the guard rules on protected routes. Redirects use 302
// for safe methods and 303 for the rest so a POST is not replayed.
func Guard(routes guard.Routes) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := guard.Decide(CurrentSnapshot(c), c.Request.URL.Path, routes)
		switch d.Action {
		case guard.ActionRender:
			c.Next()
		case guard.ActionLoading:
			c.Header("Retry-After", loadingRetryAfter)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		case guard.ActionRedirect:
			status := http.StatusSeeOther
			if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
				status = http.StatusFound
			}
			c.Redirect(status, d.Location)
			c.Abort()
		}
	}
}
