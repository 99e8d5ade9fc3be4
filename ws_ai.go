package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/broly1009a/studymate-sub002/assistant"
)

const (
	wsReadLimit    = 16 << 10
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

// wsFrame is a client message on /ws/ai.
type wsFrame struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// wsEvent is a server message on /ws/ai.
type wsEvent struct {
	Type string `json:"type"` // "info" | "reply" | "error"
	Data any    `json:"data,omitempty"`
}

type aiClient struct {
	userID    int
	sessionID string
	conn      *websocket.Conn
	send      chan wsEvent
}

func newUpgrader(allowed []string) websocket.Upgrader {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		origins[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := origins[origin]
			_, all := origins["*"]
			return ok || all
		},
	}
}

// getUserIDFromRequest reads the token from the Authorization header, falling
// back to ?token= since browsers cannot set headers on websocket upgrades.
func getUserIDFromRequest(r *http.Request) (int, bool) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		tokenStr = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if tokenStr == "" {
		return 0, false
	}
	id, err := parseToken(tokenStr)
	return id, err == nil
}

func wsAIHandler(ai chatReplier, allowedOrigins []string, logger *zap.Logger) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Int("user_id", userID), zap.Error(err))
			return
		}

		client := &aiClient{
			userID: userID,
			conn:   conn,
			send:   make(chan wsEvent, 8),
		}
		client.send <- wsEvent{Type: "info", Data: "connected"}

		go client.writer()
		client.reader(r, ai, logger.With(zap.Int("user_id", userID)))
	}
}

// reader handles frames one at a time until the connection drops.
func (c *aiClient) reader(r *http.Request, ai chatReplier, logger *zap.Logger) {
	defer func() {
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var frame wsFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.send <- wsEvent{Type: "error", Data: "invalid message format"}
			continue
		}
		if msg := chatRequestError(frame.Message); msg != "" {
			c.send <- wsEvent{Type: "error", Data: msg}
			continue
		}

		sessionID := strings.TrimSpace(frame.SessionID)
		if sessionID == "" {
			sessionID = c.sessionID
		}

		reply, err := ai.Reply(r.Context(), assistant.Request{
			Message:   frame.Message,
			UserID:    strconv.Itoa(c.userID),
			SessionID: sessionID,
		})
		if err != nil {
			status, msg := replyStatus(err)
			if status >= http.StatusInternalServerError {
				logger.Error("assistant reply failed", zap.Error(err))
			}
			c.send <- wsEvent{Type: "error", Data: msg}
			continue
		}
		c.sessionID = reply.Metadata.SessionID
		c.send <- wsEvent{Type: "reply", Data: reply}
	}
}

func (c *aiClient) writer() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
