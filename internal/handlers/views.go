package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/middleware"
	"sharpms/dashboard/internal/views"
)

type viewResponse struct {
	View         string          `json:"view"`
	Title        string          `json:"title"`
	Data         json.RawMessage `json:"data"`
	Actions      []views.Action  `json:"actions"`
	FetchedAt    time.Time       `json:"fetchedAt"`
	Cached       bool            `json:"cached"`
	PollInterval int64           `json:"pollInterval,omitempty"`
}

// View serves one registry page: the remote data for the signed-in user,
// plus the actions their primary role may see.
func (h HandlerSet) View(v views.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := middleware.CurrentSession(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}
		snap := sess.Snapshot()
		token, ok := sess.AccessToken()
		if !ok || snap.User == nil {
			c.Redirect(http.StatusFound, h.routes.Login)
			return
		}

		res, err := h.fetcher.Get(c.Request.Context(), views.CacheKey(snap.User.ID, v.Name), func(ctx context.Context) (json.RawMessage, error) {
			return h.api.Get(ctx, token, v.Endpoint)
		})
		if err != nil {
			if errors.Is(err, apiclient.ErrUnauthorized) {
				h.signOut(c, sess)
				return
			}
			h.log.Warn().Err(err).Str("view", v.Name).Str("device_id", sess.DeviceID()).Msg("view load failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Error loading " + v.Title})
			return
		}

		if v.PollInterval > 0 && h.watcher != nil {
			if err := h.watcher.Watch(c.Request.Context(), v.Name, sess.DeviceID()); err != nil {
				h.log.Warn().Err(err).Str("view", v.Name).Msg("register watcher failed")
			}
		}

		c.JSON(http.StatusOK, viewResponse{
			View:         v.Name,
			Title:        v.Title,
			Data:         res.Data,
			Actions:      v.VisibleActions(snap.Role()),
			FetchedAt:    res.FetchedAt,
			Cached:       res.Cached,
			PollInterval: int64(v.PollInterval / time.Second),
		})
	}
}
