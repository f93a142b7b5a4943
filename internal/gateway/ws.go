package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/crewchat/internal/message"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Frame is one message written on a conversation WebSocket.
type Frame struct {
	Type           string            `json:"type"` // snapshot or error
	ConversationID string            `json:"conversation_id"`
	Messages       []message.Message `json:"messages,omitempty"`
	At             time.Time         `json:"at"`
	Error          string            `json:"error,omitempty"`
	Kind           message.ErrorKind `json:"kind,omitempty"`
	Reconnect      bool              `json:"reconnect,omitempty"`
}

// checkOrigin accepts requests without an Origin header (terminal clients)
// and browser requests from an allowed origin.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(strings.ToLower(o)); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// handleWatch streams snapshots of one conversation. The stream ends with an
// error frame asking the client to reconnect when the subscription fails.
func (h *handlers) handleWatch(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	id := currentUser(r)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Authorize before upgrading so the client gets a proper HTTP status.
	sub, err := h.Client.Subscribe(ctx, id, conversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin(h.opts.CORSOrigins),
		Subprotocols: []string{"bearer"},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	// The read loop only watches for the client going away.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			frame := Frame{
				Type:           "snapshot",
				ConversationID: snap.ConversationID,
				Messages:       snap.Messages,
				At:             snap.At,
			}
			if snap.Err != nil {
				frame.Type = "error"
				frame.Messages = nil
				frame.Error = snap.Err.Error()
				frame.Kind = message.KindOf(snap.Err)
				frame.Reconnect = true
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			if snap.Err != nil {
				h.Logger.Warn("conversation stream ended",
					zap.String("conversation_id", conversationID), zap.Error(snap.Err))
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription failed"),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
