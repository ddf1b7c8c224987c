package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/httputil"
	"github.com/84634E1A607A/nova210se-backend/internal/middleware"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/services"
)

// FriendHandler handles friend and friend invitation endpoints.
type FriendHandler struct {
	friends *services.FriendService
	debug   bool
}

// NewFriendHandler creates a new friend handler.
func NewFriendHandler(friends *services.FriendService, debug bool) *FriendHandler {
	return &FriendHandler{friends: friends, debug: debug}
}

// Find handles POST /friend/find.
func (h *FriendHandler) Find(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		ID           *uint   `json:"id"`
		NameContains *string `json:"name_contains"`
	}
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	users, err := h.friends.FindUsers(user, req.ID, req.NameContains)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, users)
}

// Invite handles POST /friend/invite. Source is the string "search" or a
// group chat id.
func (h *FriendHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		ID      *uint           `json:"id"`
		Comment *string         `json:"comment"`
		Source  json.RawMessage `json:"source"`
	}
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if req.ID == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("id"), h.debug)
		return
	}
	if req.Comment == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("comment"), h.debug)
		return
	}

	source, err := parseInvitationSource(req.Source)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.friends.SendInvitation(user, *req.ID, *req.Comment, source); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// parseInvitationSource accepts "search" or a non-negative chat id.
func parseInvitationSource(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, apperrors.FieldMissing("source")
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "search" {
			return models.InvitationSourceSearch, nil
		}
		return 0, apperrors.BadRequest("Invalid source")
	}

	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		if asNumber < 0 {
			return 0, apperrors.BadRequest("Invalid source")
		}
		return asNumber, nil
	}

	return 0, apperrors.FieldType("source")
}

// ListInvitations handles GET /friend/invitation.
func (h *FriendHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	invitations, err := h.friends.ListInvitations(user)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	result := make([]models.FriendInvitationStruct, 0, len(invitations))
	for i := range invitations {
		result = append(result, invitations[i].ToStruct())
	}
	httputil.RespondWithData(w, result)
}

// AcceptInvitation handles POST /friend/invitation/{id}.
func (h *FriendHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.friends.AcceptInvitation(user, id); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// List handles GET /friend.
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	friends, err := h.friends.List(user)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	result := make([]models.FriendStruct, 0, len(friends))
	for i := range friends {
		result = append(result, friends[i].ToStruct())
	}
	httputil.RespondWithData(w, result)
}

// Get handles GET /friend/{user_id}.
func (h *FriendHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	friendID, err := pathID(r, "user_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	friend, err := h.friends.Get(user, friendID)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, friend.ToStruct())
}

// Update handles PATCH /friend/{user_id}.
func (h *FriendHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	friendID, err := pathID(r, "user_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	var req struct {
		Nickname *string `json:"nickname"`
		GroupID  *uint   `json:"group_id"`
	}
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	friend, err := h.friends.Update(user, friendID, req.Nickname, req.GroupID)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, friend.ToStruct())
}

// Delete handles DELETE /friend/{user_id}.
func (h *FriendHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	friendID, err := pathID(r, "user_id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.friends.Delete(user, friendID); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}
