// Package ws implements the websocket interface: an authenticated socket
// per client that carries request/response actions (ping, send_message,
// recall_message, mark_chat_read) and receives the notification fan-out.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/auth"
	"github.com/84634E1A607A/nova210se-backend/internal/middleware"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
	"github.com/84634E1A607A/nova210se-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS layer; the socket relies
	// on the session credential instead of the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket clients.
type Handler struct {
	db       *gorm.DB
	broker   notify.Broker
	sessions *auth.Manager
	messages *services.MessageService
}

// NewHandler creates a websocket handler.
func NewHandler(db *gorm.DB, broker notify.Broker, sessions *auth.Manager, messages *services.MessageService) *Handler {
	return &Handler{db: db, broker: broker, sessions: sessions, messages: messages}
}

// Serve handles GET /ws. The upgrade always succeeds; an invalid session is
// reported as an error packet on the socket, then the socket is closed.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	session, err := h.sessions.Verify(middleware.TokenFromRequest(r))
	if err != nil {
		conn.WriteJSON(errorPacket(nil, http.StatusForbidden, "Invalid Session"))
		conn.Close()
		return
	}

	client := newClient(h, conn, session)
	client.subscribe()

	go client.writePump()
	client.readPump()
}

// groupChatIDs lists the group chats the user is a member of, for the
// initial channel subscriptions.
func (h *Handler) groupChatIDs(userID uint) []uint {
	var ids []uint
	err := h.db.Model(&models.ChatMember{}).
		Joins("JOIN chats ON chats.id = chat_members.chat_id").
		Where("chat_members.user_id = ? AND chats.name <> ''", userID).
		Pluck("chat_members.chat_id", &ids).Error
	if err != nil {
		slog.Error("failed to list group chats for socket", "error", err, "user_id", userID)
	}
	return ids
}
