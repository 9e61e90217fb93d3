package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	broker "brokerdesk-go/internal/api"
	"brokerdesk-go/internal/chat"
	"brokerdesk-go/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 8 << 10
	repliesBacklog = 16
)

// socketFrame is what clients send: {"type":"send","userId":"...","text":"..."} or
// {"type":"read","userId":"..."}. userId is only needed when an admin acts on a mailbox.
type socketFrame struct {
	Type   string `json:"type"`
	UserId string `json:"userId,omitempty"`
	Text   string `json:"text,omitempty"`
}

// socketReply acknowledges one client frame. Pushed mailbox events use chat.Event instead.
type socketReply struct {
	Type    string              `json:"type"`
	Op      string              `json:"op"`
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Record  *models.ChatMessage `json:"record,omitempty"`
	Count   int                 `json:"count,omitempty"`
}

type chatSocket struct {
	svc      *broker.BrokerService
	upgrader websocket.Upgrader
}

func newChatSocket(svc *broker.BrokerService) *chatSocket {
	return &chatSocket{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates with ?token= (browsers cannot set headers on upgrades) or a bearer
// header, then streams the caller's mailbox events.
func (s *chatSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	p, err := s.svc.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	sub, err := s.svc.Subscribe(p)
	if err != nil {
		http.Error(w, "Chat push is not available", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("WebSocket upgrade failed", zap.String("user_id", p.UserId), zap.Error(err))
		return
	}
	zap.L().Info("Chat socket connected", zap.String("user_id", p.UserId), zap.String("role", string(p.Role)))

	c := &chatClient{svc: s.svc, conn: conn, sub: sub, principal: p, replies: make(chan socketReply, repliesBacklog)}
	done := make(chan struct{})
	go c.writePump(done)
	c.readPump(r.Context())
	close(done)

	zap.L().Info("Chat socket closed", zap.String("user_id", p.UserId))
}

type chatClient struct {
	svc       *broker.BrokerService
	conn      *websocket.Conn
	sub       *chat.Subscription
	principal models.Principal
	replies   chan socketReply
}

func (c *chatClient) readPump(ctx context.Context) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame socketFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("Chat socket read ended", zap.String("user_id", c.principal.UserId), zap.Error(err))
			}
			return
		}
		c.reply(c.handle(ctx, frame))
	}
}

func (c *chatClient) handle(ctx context.Context, frame socketFrame) socketReply {
	ack := socketReply{Type: "ack", Op: frame.Type}
	switch frame.Type {
	case "send":
		res, err := c.svc.SendMessage(ctx, c.principal, frame.UserId, frame.Text)
		ack.Success, ack.Message = err == nil, res.Message
		ack.Record = res.Record
	case "read":
		n, err := c.svc.MarkAsRead(ctx, c.principal, frame.UserId)
		if err != nil {
			ack.Message = errorMessage(err)
			break
		}
		ack.Success, ack.Count = true, n
	default:
		ack.Message = "Unknown frame type " + frame.Type
	}
	return ack
}

// reply never blocks the read loop; a client that stops reading loses replies.
func (c *chatClient) reply(r socketReply) {
	select {
	case c.replies <- r:
	default:
		zap.L().Warn("Dropping chat socket reply", zap.String("user_id", c.principal.UserId))
	}
}

func (c *chatClient) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case r := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(r); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func errorMessage(err error) string {
	var apiErr *broker.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Request failed"
}
