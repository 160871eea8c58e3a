package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/config"
	"sharpms/dashboard/internal/ids"
	"sharpms/dashboard/internal/security"
	"sharpms/dashboard/internal/session"
)

const (
	ctxSession  = "current_session"
	ctxDeviceID = "device_id"
)

type SessionSource interface {
	Session(deviceID string) *session.Session
}

// Device identifies the browser through a signed cookie, issuing a fresh
// device id when the cookie is missing or invalid, and attaches the
// device's initialized session to the request.
func Device(cfg config.SessionConfig, sessions SessionSource, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := ""
		if raw, err := c.Cookie(cfg.CookieName); err == nil && raw != "" {
			if claims, err := security.ParseDeviceToken(raw, cfg.CookieSecret); err == nil {
				deviceID = claims.DeviceID
			}
		}

		if deviceID == "" {
			deviceID = ids.New()
			token, err := security.IssueDeviceToken(cfg.CookieSecret, deviceID, cfg.CookieTTL)
			if err != nil {
				log.Error().Err(err).Msg("issue device token failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.CookieName, token, int(cfg.CookieTTL.Seconds()), "/", "", cfg.CookieSecure, true)
		}

		sess := sessions.Session(deviceID)
		// A failed load leaves the session uninitialized; guarded routes
		// answer with the loading state and the next request retries.
		if err := sess.Init(c.Request.Context()); err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("session init failed")
		}

		c.Set(ctxDeviceID, deviceID)
		c.Set(ctxSession, sess)
		c.Next()
	}
}

func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok && sess != nil
}

func CurrentSnapshot(c *gin.Context) session.Snapshot {
	sess, ok := CurrentSession(c)
	if !ok {
		return session.Snapshot{State: session.StateUninitialized}
	}
	return sess.Snapshot()
}

func DeviceID(c *gin.Context) string {
	return c.GetString(ctxDeviceID)
}
