// Package router registers the API surface and composes the middleware
// chain around it.
package router

import (
	"net/http"

	"github.com/84634E1A607A/nova210se-backend/config"
	"github.com/84634E1A607A/nova210se-backend/internal/auth"
	"github.com/84634E1A607A/nova210se-backend/internal/handlers"
	"github.com/84634E1A607A/nova210se-backend/internal/httputil"
	"github.com/84634E1A607A/nova210se-backend/internal/middleware"
	"github.com/84634E1A607A/nova210se-backend/internal/monitoring"
	"github.com/84634E1A607A/nova210se-backend/internal/ws"
)

// Router wires handlers, authentication and the middleware chain.
type Router struct {
	cfg      *config.Config
	sessions *auth.Manager

	userHandler   *handlers.UserHandler
	friendHandler *handlers.FriendHandler
	groupHandler  *handlers.FriendGroupHandler
	chatHandler   *handlers.ChatHandler
	wsHandler     *ws.Handler
}

// New creates a router over the given handlers.
func New(
	cfg *config.Config,
	sessions *auth.Manager,
	userHandler *handlers.UserHandler,
	friendHandler *handlers.FriendHandler,
	groupHandler *handlers.FriendGroupHandler,
	chatHandler *handlers.ChatHandler,
	wsHandler *ws.Handler,
) *Router {
	return &Router{
		cfg:           cfg,
		sessions:      sessions,
		userHandler:   userHandler,
		friendHandler: friendHandler,
		groupHandler:  groupHandler,
		chatHandler:   chatHandler,
		wsHandler:     wsHandler,
	}
}

// Handler builds the full HTTP handler: routes wrapped by the middleware
// chain.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.registerRoutes(mux)

	var handler http.Handler = mux
	if rt.cfg.EnableObservability {
		handler = monitoring.HTTPMetricsMiddleware(handler)
	}
	handler = middleware.AccessLog(rt.cfg.TrustProxyHeaders)(handler)
	handler = middleware.CORSMiddleware(rt.cfg.CORSOrigins)(handler)
	handler = middleware.AllowedHosts(rt.cfg.AllowedHosts)(handler)
	handler = middleware.ServerHeader(rt.cfg.ServerName)(handler)
	handler = middleware.Recover(handler)
	return handler
}

func (rt *Router) registerRoutes(mux *http.ServeMux) {
	authed := middleware.RequireAuth(rt.sessions)
	protect := func(h http.HandlerFunc) http.Handler {
		return authed(h)
	}

	// Users
	mux.HandleFunc("POST /user/register", rt.userHandler.Register)
	mux.HandleFunc("POST /user/login", rt.userHandler.Login)
	mux.Handle("POST /user/logout", protect(rt.userHandler.Logout))
	mux.Handle("GET /user", protect(rt.userHandler.Current))
	mux.Handle("PATCH /user", protect(rt.userHandler.Update))
	mux.Handle("DELETE /user", protect(rt.userHandler.Delete))
	mux.Handle("GET /user/{id}", protect(rt.userHandler.GetByID))

	// Friend groups
	mux.Handle("POST /friend/group/add", protect(rt.groupHandler.Create))
	mux.Handle("GET /friend/group/list", protect(rt.groupHandler.List))
	mux.Handle("GET /friend/group/{id}", protect(rt.groupHandler.Get))
	mux.Handle("PATCH /friend/group/{id}", protect(rt.groupHandler.Rename))
	mux.Handle("DELETE /friend/group/{id}", protect(rt.groupHandler.Delete))

	// Friends
	mux.Handle("POST /friend/find", protect(rt.friendHandler.Find))
	mux.Handle("POST /friend/invite", protect(rt.friendHandler.Invite))
	mux.Handle("GET /friend/invitation", protect(rt.friendHandler.ListInvitations))
	mux.Handle("POST /friend/invitation/{id}", protect(rt.friendHandler.AcceptInvitation))
	mux.Handle("GET /friend", protect(rt.friendHandler.List))
	mux.Handle("GET /friend/{user_id}", protect(rt.friendHandler.Get))
	mux.Handle("PATCH /friend/{user_id}", protect(rt.friendHandler.Update))
	mux.Handle("DELETE /friend/{user_id}", protect(rt.friendHandler.Delete))

	// Chats
	mux.Handle("POST /chat/new", protect(rt.chatHandler.Create))
	mux.Handle("GET /chat", protect(rt.chatHandler.List))
	mux.Handle("GET /chat/{chat_id}", protect(rt.chatHandler.Get))
	mux.Handle("DELETE /chat/{chat_id}", protect(rt.chatHandler.Leave))
	mux.Handle("POST /chat/{chat_id}/invite", protect(rt.chatHandler.Invite))
	mux.Handle("GET /chat/{chat_id}/invitation", protect(rt.chatHandler.ListInvitations))
	mux.Handle("DELETE /chat/{chat_id}/invitation/{user_id}", protect(rt.chatHandler.DeclineInvitation))
	mux.Handle("GET /chat/{chat_id}/messages", protect(rt.chatHandler.Messages))
	mux.Handle("POST /chat/{chat_id}/set_owner", protect(rt.chatHandler.SetOwner))
	mux.Handle("DELETE /chat/{chat_id}/{member_id}", protect(rt.chatHandler.RemoveMember))

	// "POST /chat/{chat_id}/invitation/{user_id}" and
	// "POST /chat/{chat_id}/{member_id}/admin" overlap without an ordering
	// under ServeMux precedence, so both go through one dispatcher.
	mux.Handle("POST /chat/{chat_id}/{seg2}/{seg3}", protect(rt.dispatchChatPost))

	// WebSocket (authenticates inside the socket protocol)
	mux.HandleFunc("GET /ws", rt.wsHandler.Serve)

	// Infrastructure
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": rt.cfg.ServiceName,
		})
	})
	mux.Handle("GET /metrics", monitoring.Handler())

	// Catch-all keeps 404s inside the envelope
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
	})
}

// dispatchChatPost routes the two three-segment chat POSTs by their literal
// segment.
func (rt *Router) dispatchChatPost(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.PathValue("seg2") == "invitation":
		r.SetPathValue("user_id", r.PathValue("seg3"))
		rt.chatHandler.ApproveInvitation(w, r)
	case r.PathValue("seg3") == "admin":
		r.SetPathValue("member_id", r.PathValue("seg2"))
		rt.chatHandler.SetAdmin(w, r)
	default:
		httputil.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
	}
}
