package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxPacketSize = 1 << 20 // generous: avatars never travel over the socket
)

// client is one connected socket. It is a notify.Subscriber; events
// delivered by the bus are serialized onto the send channel, which the
// write pump owns exclusively.
type client struct {
	handler *Handler
	conn    *websocket.Conn
	session *models.Session
	user    models.User

	send chan serverPacket

	// mu guards closed; enqueue and close both take it so no packet is ever
	// written to a closed channel.
	mu     sync.Mutex
	closed bool
}

func newClient(h *Handler, conn *websocket.Conn, session *models.Session) *client {
	return &client{
		handler: h,
		conn:    conn,
		session: session,
		user:    session.User,
		send:    make(chan serverPacket, 64),
	}
}

// subscribe joins the client's standing channels: its user channel, its
// private-message channel, its session channel and one channel per group
// chat.
func (c *client) subscribe() {
	c.handler.broker.Join(notify.UserChannel(c.user.ID), c)
	c.handler.broker.Join(notify.PrivateChatChannel(c.user.ID), c)
	c.handler.broker.Join(notify.SessionChannel(c.session.ID.String()), c)
	for _, chatID := range c.handler.groupChatIDs(c.user.ID) {
		c.handler.broker.Join(notify.ChatChannel(chatID), c)
	}
}

// Deliver implements notify.Subscriber. Membership-changing events adjust
// the client's chat channel subscriptions before the packet goes out.
func (c *client) Deliver(channel string, event notify.Event) {
	switch event.Action {
	case notify.ActionLogout:
		// Session revoked or account deleted: say goodbye and hang up
		c.enqueue(notificationPacket(event.Action, event.Data))
		c.close()
		return

	case notify.ActionNewGroupChat:
		var data notify.NewChatData
		if err := decodeData(event.Data, &data); err == nil {
			c.handler.broker.Join(notify.ChatChannel(data.ChatID), c)
		}

	case notify.ActionMemberDeleted:
		var data notify.MemberData
		if err := decodeData(event.Data, &data); err == nil && data.UserID == c.user.ID {
			c.handler.broker.Leave(notify.ChatChannel(data.ChatID), c)
		}
	}

	c.enqueue(notificationPacket(event.Action, event.Data))
}

// enqueue hands a packet to the write pump without ever blocking the bus. A
// client too slow to drain its queue is dropped.
func (c *client) enqueue(packet serverPacket) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- packet:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		slog.Warn("websocket client send queue full, dropping connection", "user_id", c.user.ID)
		c.close()
	}
}

func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.handler.broker.LeaveAll(c)
}

// readPump reads client packets until the socket dies.
func (c *client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxPacketSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err, "user_id", c.user.ID)
			}
			return
		}

		var packet clientPacket
		if err := json.Unmarshal(raw, &packet); err != nil || packet.Action == "" {
			c.enqueue(errorPacket(nil, http.StatusBadRequest, "Malformed packet"))
			continue
		}

		c.dispatch(&packet)
	}
}

// writePump owns all writes on the socket.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case packet, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(packet); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch runs one client action and enqueues the reply.
func (c *client) dispatch(packet *clientPacket) {
	switch packet.Action {
	case "ping":
		c.enqueue(replyPacket("pong", packet.RequestID, nil))

	case "send_message":
		c.handleSendMessage(packet)

	case "recall_message":
		c.handleRecallMessage(packet)

	case "mark_chat_read":
		c.handleMarkChatRead(packet)

	default:
		c.enqueue(errorPacket(packet.RequestID, http.StatusBadRequest, "Unknown action"))
	}
}

func (c *client) handleSendMessage(packet *clientPacket) {
	var data struct {
		ChatID  *uint   `json:"chat_id"`
		Content *string `json:"content"`
		ReplyTo *uint   `json:"reply_to"`
	}
	if err := json.Unmarshal(packet.Data, &data); err != nil || data.ChatID == nil || data.Content == nil {
		c.enqueue(errorPacket(packet.RequestID, http.StatusBadRequest, "Malformed packet"))
		return
	}

	msg, err := c.handler.messages.Send(&c.user, *data.ChatID, *data.Content, data.ReplyTo)
	if err != nil {
		c.enqueueError(packet.RequestID, err)
		return
	}
	c.enqueue(replyPacket(packet.Action, packet.RequestID, msg.ToBasicStruct()))
}

func (c *client) handleRecallMessage(packet *clientPacket) {
	var data struct {
		MessageID *uint `json:"message_id"`
	}
	if err := json.Unmarshal(packet.Data, &data); err != nil || data.MessageID == nil {
		c.enqueue(errorPacket(packet.RequestID, http.StatusBadRequest, "Malformed packet"))
		return
	}

	if err := c.handler.messages.Recall(&c.user, *data.MessageID); err != nil {
		c.enqueueError(packet.RequestID, err)
		return
	}
	c.enqueue(replyPacket(packet.Action, packet.RequestID, nil))
}

func (c *client) handleMarkChatRead(packet *clientPacket) {
	var data struct {
		ChatID *uint `json:"chat_id"`
	}
	if err := json.Unmarshal(packet.Data, &data); err != nil || data.ChatID == nil {
		c.enqueue(errorPacket(packet.RequestID, http.StatusBadRequest, "Malformed packet"))
		return
	}

	if err := c.handler.messages.MarkChatRead(&c.user, *data.ChatID); err != nil {
		c.enqueueError(packet.RequestID, err)
		return
	}
	c.enqueue(replyPacket(packet.Action, packet.RequestID, nil))
}

func (c *client) enqueueError(requestID *int64, err error) {
	code := apperrors.StatusOf(err)
	message := apperrors.MessageOf(err, false)
	if code == http.StatusInternalServerError {
		slog.Error("websocket action failed", "error", err, "user_id", c.user.ID)
	}
	c.enqueue(errorPacket(requestID, code, message))
}
