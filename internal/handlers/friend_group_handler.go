package handlers

import (
	"net/http"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/httputil"
	"github.com/84634E1A607A/nova210se-backend/internal/middleware"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/services"
)

// FriendGroupHandler handles friend group endpoints.
type FriendGroupHandler struct {
	groups *services.FriendGroupService
	debug  bool
}

// NewFriendGroupHandler creates a new friend group handler.
func NewFriendGroupHandler(groups *services.FriendGroupService, debug bool) *FriendGroupHandler {
	return &FriendGroupHandler{groups: groups, debug: debug}
}

type groupNameRequest struct {
	Name *string `json:"group_name"`
}

// Create handles POST /friend/group/add.
func (h *FriendGroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req groupNameRequest
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if req.Name == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("group_name"), h.debug)
		return
	}

	group, err := h.groups.Create(user, *req.Name)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, group.ToStruct())
}

// Get handles GET /friend/group/{id}.
func (h *FriendGroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	group, err := h.groups.Get(user, id)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, group.ToStruct())
}

// Rename handles PATCH /friend/group/{id}.
func (h *FriendGroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	var req groupNameRequest
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if req.Name == nil {
		httputil.HandleError(w, r, apperrors.FieldMissing("group_name"), h.debug)
		return
	}

	group, err := h.groups.Rename(user, id, *req.Name)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, group.ToStruct())
}

// Delete handles DELETE /friend/group/{id}.
func (h *FriendGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if err := h.groups.Delete(user, id); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	httputil.RespondWithData(w, nil)
}

// List handles GET /friend/group/list.
func (h *FriendGroupHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	groups, err := h.groups.List(user)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	result := make([]models.FriendGroupStruct, 0, len(groups))
	for i := range groups {
		result = append(result, groups[i].ToStruct())
	}
	httputil.RespondWithData(w, result)
}
