// Package handlers maps the HTTP API onto the service layer: request
// decoding, session issuance and the response envelope live here.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/auth"
	"github.com/84634E1A607A/nova210se-backend/internal/httputil"
	"github.com/84634E1A607A/nova210se-backend/internal/middleware"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
	"github.com/84634E1A607A/nova210se-backend/internal/services"
)

// UserHandler handles account endpoints.
type UserHandler struct {
	users     *services.UserService
	sessions  *auth.Manager
	publisher notify.Publisher
	debug     bool
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users *services.UserService, sessions *auth.Manager, publisher notify.Publisher, debug bool) *UserHandler {
	return &UserHandler{users: users, sessions: sessions, publisher: publisher, debug: debug}
}

type credentialsRequest struct {
	Username *string `json:"user_name"`
	Password *string `json:"password"`
}

func (req *credentialsRequest) validatePresent() error {
	if req.Username == nil {
		return apperrors.FieldMissing("user_name")
	}
	if req.Password == nil {
		return apperrors.FieldMissing("password")
	}
	return nil
}

// Register handles POST /user/register.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if err := req.validatePresent(); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	user, err := h.users.Register(*req.Username, *req.Password)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	h.startSession(w, r, user)
}

// Login handles POST /user/login. A session token presented with the login
// request is revoked first, closing its sockets.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if err := req.validatePresent(); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	user, err := h.users.Authenticate(*req.Username, *req.Password)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	// Only a successful login replaces the session presented with the request
	if token := middleware.TokenFromRequest(r); token != "" {
		if old, err := h.sessions.Verify(token); err == nil {
			if err := h.sessions.Revoke(old.ID); err == nil {
				h.revokeSession(old.ID.String())
			}
		}
	}

	h.startSession(w, r, user)
}

// Logout handles POST /user/logout.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	if err := h.sessions.Revoke(session.ID); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	h.publisher.Publish(notify.SessionChannel(session.ID.String()), notify.Event{
		Action: notify.ActionLogout,
	})

	clearSessionCookie(w)
	httputil.RespondWithData(w, nil)
}

// Current handles GET /user.
func (h *UserHandler) Current(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	httputil.RespondWithData(w, user.ToDetailedStruct())
}

// Update handles PATCH /user. A password change revokes every other session
// of the user.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	var req services.UpdateProfileRequest
	if err := httputil.ParseJSONRequest(r, &req); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	user, err := h.users.UpdateProfile(&session.User, req)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	if req.NewPassword != nil {
		revoked, err := h.sessions.RevokeOthers(user.ID, session.ID)
		if err != nil {
			httputil.HandleError(w, r, err, h.debug)
			return
		}
		for _, id := range revoked {
			h.publisher.Publish(notify.SessionChannel(id.String()), notify.Event{
				Action: notify.ActionLogout,
			})
		}
	}

	httputil.RespondWithData(w, user.ToDetailedStruct())
}

// Delete handles DELETE /user.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	if err := h.users.Delete(&session.User); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}
	if err := h.sessions.RevokeAllForUser(session.UserID); err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	clearSessionCookie(w)
	httputil.RespondWithData(w, nil)
}

// GetByID handles GET /user/{id}.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	httputil.RespondWithData(w, user.ToBasicStruct())
}

// sessionResponse is returned on register and login. The token duplicates
// the session cookie for clients that authenticate with a Bearer header.
type sessionResponse struct {
	User  models.UserDetail `json:"user"`
	Token string            `json:"token"`
}

// startSession issues a token, sets the session cookie and returns the
// detailed user struct plus the token.
func (h *UserHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	token, session, err := h.sessions.Issue(user)
	if err != nil {
		httputil.HandleError(w, r, err, h.debug)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	httputil.RespondWithData(w, sessionResponse{
		User:  user.ToDetailedStruct(),
		Token: token,
	})
}

func (h *UserHandler) revokeSession(sessionID string) {
	h.publisher.Publish(notify.SessionChannel(sessionID), notify.Event{
		Action: notify.ActionLogout,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// pathID parses a numeric path segment.
func pathID(r *http.Request, key string) (uint, error) {
	raw := r.PathValue(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperrors.BadRequest("Invalid id in path")
	}
	return uint(id), nil
}
