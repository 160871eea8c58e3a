package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/middleware"
	"sharpms/dashboard/internal/models"
	"sharpms/dashboard/internal/session"
)

const loginFailedMessage = "Invalid email or password"

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type sessionResponse struct {
	State    string       `json:"state"`
	DeviceID string       `json:"deviceId"`
	User     *models.User `json:"user"`
}

func (h HandlerSet) Home(c *gin.Context) {
	snap := middleware.CurrentSnapshot(c)
	c.JSON(http.StatusOK, gin.H{
		"page":          "home",
		"authenticated": snap.User != nil,
		"login":         h.routes.Login,
		"dashboard":     h.routes.Dashboard,
	})
}

// LoginPage sends signed-in users on to the dashboard.
func (h HandlerSet) LoginPage(c *gin.Context) {
	if snap := middleware.CurrentSnapshot(c); snap.User != nil {
		c.Redirect(http.StatusFound, h.landing(snap.User))
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "login"})
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password are required"})
		return
	}

	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal_server_error"})
		return
	}

	if err := sess.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		message := loginFailedMessage
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			message = apiErr.Message
		} else if !errors.Is(err, apiclient.ErrMalformedLogin) {
			h.log.Error().Err(err).Str("device_id", sess.DeviceID()).Msg("login error")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
		return
	}

	user := sess.Snapshot().User
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user":     user,
			"redirect": h.landing(user),
		},
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal_server_error"})
		return
	}

	if err := sess.Logout(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Str("device_id", sess.DeviceID()).Msg("logout failed to clear storage")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Logout incomplete"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"redirect": h.routes.Login}})
}

func (h HandlerSet) CurrentSession(c *gin.Context) {
	snap := middleware.CurrentSnapshot(c)
	status := http.StatusOK
	if snap.Pending() {
		status = http.StatusServiceUnavailable
		c.Header("Retry-After", "1")
	}
	c.JSON(status, sessionResponse{
		State:    snap.State.String(),
		DeviceID: middleware.DeviceID(c),
		User:     snap.User,
	})
}

func (h HandlerSet) landing(user *models.User) string {
	if user == nil {
		return h.routes.Login
	}
	if !user.Onboarded {
		return h.routes.Onboarding
	}
	return h.routes.Dashboard
}

// signOut ends a session whose token the API no longer accepts.
func (h HandlerSet) signOut(c *gin.Context, sess *session.Session) {
	if err := sess.Logout(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Str("device_id", sess.DeviceID()).Msg("clear rejected session failed")
	}
	status := http.StatusSeeOther
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		status = http.StatusFound
	}
	c.Redirect(status, h.routes.Login)
}
