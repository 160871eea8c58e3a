package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/middleware"
)

func (h HandlerSet) OnboardingPage(c *gin.Context) {
	snap := middleware.CurrentSnapshot(c)
	c.JSON(http.StatusOK, gin.H{
		"page": "onboarding",
		"user": snap.User,
	})
}

// CompleteOnboarding forwards the form to the API and marks the stored
// user as onboarded, which releases them from the onboarding route.
func (h HandlerSet) CompleteOnboarding(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal_server_error"})
		return
	}
	snap := sess.Snapshot()
	token, ok := sess.AccessToken()
	if !ok || snap.User == nil {
		c.Redirect(http.StatusSeeOther, h.routes.Login)
		return
	}

	form, err := bindForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid onboarding form"})
		return
	}

	echoed, err := h.api.CompleteOnboarding(c.Request.Context(), token, form)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			h.signOut(c, sess)
			return
		}
		message := "Error completing onboarding"
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError && apiErr.Message != "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": apiErr.Message})
			return
		}
		h.log.Warn().Err(err).Str("device_id", sess.DeviceID()).Msg("onboarding failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": message})
		return
	}

	user := *snap.User
	if echoed != nil {
		user = *echoed
	}
	user.Onboarded = true

	if err := sess.UpdateUser(c.Request.Context(), user); err != nil {
		h.log.Error().Err(err).Str("device_id", sess.DeviceID()).Msg("persist onboarded user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error completing onboarding"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user":     user,
			"redirect": h.routes.Dashboard,
		},
	})
}

// bindForm accepts a JSON object or an urlencoded/multipart form.
func bindForm(c *gin.Context) (map[string]any, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		form := map[string]any{}
		if err := c.ShouldBindJSON(&form); err != nil {
			return nil, err
		}
		return form, nil
	}

	if err := c.Request.ParseMultipartForm(8 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	form := make(map[string]any, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) == 1 {
			form[key] = values[0]
		} else {
			form[key] = values
		}
	}
	return form, nil
}
