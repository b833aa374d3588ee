// internal/app/features/adminapi/routes.go
package adminapi

import (
	"github.com/convokit/warden/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes returns the /v1 subrouter. The rate limiter sits in front of every
// endpoint so a misbehaving caller cannot hammer the grant and merge paths.
func Routes(h *Handler, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(limiter.Middleware)

	r.Post("/conversations/resolve", h.ServeResolveConversation)
	r.Get("/access", h.ServeAccess)
	r.Post("/roots/resolve", h.ServeResolveRoot)
	r.Post("/merges", h.ServeMerge)
	r.Put("/users/status", h.ServeSetUserStatus)

	r.Post("/groups", h.ServeCreateGroup)
	r.Post("/groups/{groupID}/workspace", h.ServeCreateGroupWorkspace)
	r.Post("/groups/{groupID}/members", h.ServeAddGroupMember)
	r.Delete("/groups/{groupID}/members/{userID}", h.ServeRemoveGroupMember)

	r.Post("/workspaces/{workspaceID}/members", h.ServeGrantWorkspaceMember)
	r.Delete("/workspaces/{workspaceID}/members/{userID}", h.ServeRevokeWorkspaceMember)

	r.Post("/grants", h.ServeGrantACL)
	r.Delete("/grants/{grantID}", h.ServeRevokeACL)

	return r
}
