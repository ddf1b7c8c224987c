package handlers

import (
	"net/http"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/httputil"
	"github.com/84634E1A607A/nova210se-backend/internal/middleware"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/services"
)

// ChatHandler handles chat, chat membership and message endpoints.
type ChatHandler struct {
	chats    *services.ChatService
	messages *services.MessageService
	debug    bool
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chats *services.ChatService, messages *services.MessageService, debug bool) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, debug: debug}
}

// Create handles POST /chat/new.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Name    *string `json:"chat_name"`
		Members *[]uint `json:"chat_members"`
	}
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if req.Name == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("chat_name"), h.debug)
		return
	}
	if req.Members == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("chat_members"), h.debug)
		return
	}

	chat, err := h.chats.CreateGroup(user, *req.Name, *req.Members)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, chat)
}

// Invite handles POST /chat/{chat_id}/invite.
func (h *ChatHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	var req struct {
		UserID *uint `json:"user_id"`
	}
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if req.UserID == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("user_id"), h.debug)
		return
	}

	if err := h.chats.Invite(user, chatID, *req.UserID); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// ListInvitations handles GET /chat/{chat_id}/invitation.
func (h *ChatHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	invitations, err := h.chats.ListInvitations(user, chatID)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	result := make([]models.ChatInvitationStruct, 0, len(invitations))
	for i := range invitations {
		result = append(result, invitations[i].ToStruct())
	}
	httputil.RespondWithData(w, result)
}

// ApproveInvitation handles POST /chat/{chat_id}/invitation/{user_id}.
func (h *ChatHandler) ApproveInvitation(w http.ResponseWriter, r *http.Request) {
	h.respondInvitation(w, r, true)
}

// DeclineInvitation handles DELETE /chat/{chat_id}/invitation/{user_id}.
func (h *ChatHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	h.respondInvitation(w, r, false)
}

func (h *ChatHandler) respondInvitation(w http.ResponseWriter, r *http.Request, approve bool) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	targetID, err := pathID(r, "user_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.chats.Respond(user, chatID, targetID, approve); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// List handles GET /chat.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chats, err := h.chats.List(user)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, chats)
}

// Get handles GET /chat/{chat_id}.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	relation, err := h.chats.Relation(user, chatID)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, relation)
}

// Leave handles DELETE /chat/{chat_id}.
func (h *ChatHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.chats.Leave(user, chatID); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// Messages handles GET /chat/{chat_id}/messages.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	messages, err := h.messages.ListDetailed(user, chatID)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, messages)
}

// SetAdmin handles POST /chat/{chat_id}/{member_id}/admin. The request body
// is a bare JSON boolean.
func (h *ChatHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	memberID, err := pathID(r, "member_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	var isAdmin bool
	if err := httputil.ParseJSONRequest(r, &isAdmin); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.chats.SetAdmin(user, chatID, memberID, isAdmin); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// SetOwner handles POST /chat/{chat_id}/set_owner.
func (h *ChatHandler) SetOwner(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	var req struct {
		Owner *uint `json:"chat_owner"`
	}
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if req.Owner == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("chat_owner"), h.debug)
		return
	}

	if err := h.chats.SetOwner(user, chatID, *req.Owner); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// RemoveMember handles DELETE /chat/{chat_id}/{member_id}.
func (h *ChatHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	memberID, err := pathID(r, "member_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.chats.RemoveMember(user, chatID, memberID); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}
