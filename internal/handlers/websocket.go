package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sharpms/dashboard/internal/hub"
	"sharpms/dashboard/internal/middleware"
)

const (
	pongWait  = 60 * time.Second
	writeWait = 10 * time.Second
)

type clientMessage struct {
	Type string `json:"type"`
	View string `json:"view,omitempty"`
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h HandlerSet) upgrader() websocket.Upgrader {
	allowed := make(map[string]struct{}, len(h.cfg.AllowCORSOrigins))
	for _, o := range h.cfg.AllowCORSOrigins {
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// WebSocket streams view update notices to the device. Clients send
// {"type":"watch","view":...} to keep a polled view refreshing and
// {"type":"ping"} for an application level pong.
func (h HandlerSet) WebSocket(c *gin.Context) {
	deviceID := middleware.DeviceID(c)
	up := h.upgrader()
	ws, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	conn := &hub.Connection{DeviceID: deviceID, Writer: writer}
	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(64 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pongWait * 9 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			out, _ := json.Marshal(hub.Message{Type: "pong"})
			_ = writer.Write(out)
		case "watch":
			h.watch(c, deviceID, msg.View, writer)
		}
	}
}

func (h HandlerSet) watch(c *gin.Context, deviceID string, name string, writer *wsWriter) {
	v, ok := h.views.Lookup(name)
	if !ok || v.PollInterval <= 0 || h.watcher == nil {
		out, _ := json.Marshal(hub.Message{Type: "error", View: name})
		_ = writer.Write(out)
		return
	}
	if err := h.watcher.Watch(c.Request.Context(), v.Name, deviceID); err != nil {
		h.log.Warn().Err(err).Str("view", v.Name).Msg("register watcher failed")
		return
	}
	out, _ := json.Marshal(hub.Message{Type: "watching", View: v.Name})
	_ = writer.Write(out)
}
