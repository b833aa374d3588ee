// internal/app/features/adminapi/handler.go
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/convokit/warden/internal/app/engine"
	"github.com/convokit/warden/internal/app/policy/access"
	conversationstore "github.com/convokit/warden/internal/app/store/conversations"
	grantstore "github.com/convokit/warden/internal/app/store/grants"
	groupstore "github.com/convokit/warden/internal/app/store/groups"
	identitystore "github.com/convokit/warden/internal/app/store/identities"
	membershipstore "github.com/convokit/warden/internal/app/store/memberships"
	workspacestore "github.com/convokit/warden/internal/app/store/workspaces"
	wsmemberstore "github.com/convokit/warden/internal/app/store/wsmembers"
	"github.com/convokit/warden/internal/app/system/merge"
	"github.com/convokit/warden/internal/app/system/reqctx"
	"github.com/convokit/warden/internal/app/system/router"
	"github.com/convokit/warden/internal/app/system/timeouts"
	"github.com/convokit/warden/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler exposes the engine over JSON. Identity is supplied by the caller
// (the channel adapter); this service never infers it.
type Handler struct {
	Engine *engine.Engine
	Log    *zap.Logger
}

func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{Engine: eng, Log: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps engine errors onto HTTP statuses. The response carries
// only the sentinel text; row-level detail stays in the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var perr *access.PermissionError
	switch {
	case errors.As(err, &perr):
		status, msg = http.StatusForbidden, "permission denied"
	case errors.Is(err, merge.ErrMergeConflict),
		errors.Is(err, groupstore.ErrDuplicateGroupName),
		errors.Is(err, membershipstore.ErrDuplicateMembership),
		errors.Is(err, workspacestore.ErrGroupHasWorkspace),
		errors.Is(err, identitystore.ErrDuplicateAlias):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, identitystore.ErrAliasNotFound),
		errors.Is(err, workspacestore.ErrNotFound),
		errors.Is(err, groupstore.ErrNotFound),
		errors.Is(err, membershipstore.ErrGroupNotFound),
		errors.Is(err, membershipstore.ErrMembershipNotFound),
		errors.Is(err, conversationstore.ErrNotFound),
		errors.Is(err, wsmemberstore.ErrNotFound),
		errors.Is(err, grantstore.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, router.ErrNoContext):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, router.ErrUnknownKind),
		errors.Is(err, grantstore.ErrInvalidTarget),
		errors.Is(err, grantstore.ErrInvalidPermission),
		errors.Is(err, workspacestore.ErrOwnerInvariant),
		errors.Is(err, identitystore.ErrInvalidStatus),
		errors.Is(err, identitystore.ErrEmptyIdentity),
		errors.Is(err, access.ErrInvalidAction):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		h.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func opCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeouts.Medium())
}

// pathObjectID parses a chi URL parameter as an ObjectID hex.
func pathObjectID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}

type resolveConversationRequest struct {
	Identity       string `json:"identity"`
	ConversationID string `json:"conversation_id"`
}

// ServeResolveConversation handles POST /v1/conversations/resolve: the
// per-message entry point a channel adapter calls.
func (h *Handler) ServeResolveConversation(w http.ResponseWriter, r *http.Request) {
	var req resolveConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Identity == "" || req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "identity and conversation_id are required"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	info, err := h.Engine.EnsureConversationWorkspace(ctx, req.Identity, req.ConversationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type accessResponse struct {
	Allowed bool `json:"allowed"`
}

// ServeAccess handles GET /v1/access. Query parameters: user, workspace,
// action, and optionally resource_type + resource_id for grant-aware checks.
func (h *Handler) ServeAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wsID, err := primitive.ObjectIDFromHex(q.Get("workspace"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid workspace"})
		return
	}
	user := q.Get("user")
	if user == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user is required"})
		return
	}
	action := models.Action(q.Get("action"))

	// Access checks are read-only lookups on indexed fields.
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var allowed bool
	if rt := q.Get("resource_type"); rt != "" {
		allowed, err = h.Engine.CanAccessResource(ctx, user, wsID, action, rt, q.Get("resource_id"))
	} else {
		allowed, err = h.Engine.CanAccess(ctx, user, wsID, action)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{Allowed: allowed})
}

type resolveRootRequest struct {
	Kind                string `json:"kind"`
	ExplicitWorkspaceID string `json:"explicit_workspace_id,omitempty"`

	// Ambient context of the calling unit of work.
	UserID         string `json:"user_id,omitempty"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type resolveRootResponse struct {
	Root string `json:"root"`
}

// ServeResolveRoot handles POST /v1/roots/resolve. The caller passes its
// ambient context explicitly; there is no server-side per-caller state.
func (h *Handler) ServeResolveRoot(w http.ResponseWriter, r *http.Request) {
	var req resolveRootRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()
	ctx = reqctx.With(ctx, reqctx.Info{
		UserID:         req.UserID,
		WorkspaceID:    req.WorkspaceID,
		ConversationID: req.ConversationID,
	})

	root, err := h.Engine.ResolveRoot(ctx, router.Kind(req.Kind), req.ExplicitWorkspaceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveRootResponse{Root: root})
}

type mergeRequest struct {
	Actor  string `json:"actor"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// ServeMerge handles POST /v1/merges.
func (h *Handler) ServeMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Source == "" || req.Target == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "source and target are required"})
		return
	}

	// Merges run a transaction across three collections; give them the
	// long tier.
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Engine.Merge(ctx, req.Actor, req.Source, req.Target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createGroupRequest struct {
	Actor string `json:"actor"`
	Name  string `json:"name"`
}

// ServeCreateGroup handles POST /v1/groups.
func (h *Handler) ServeCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "actor and name are required"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	g, err := h.Engine.CreateGroup(ctx, req.Actor, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type createGroupWorkspaceRequest struct {
	Actor string `json:"actor"`
	Name  string `json:"name"`
}

// ServeCreateGroupWorkspace handles POST /v1/groups/{groupID}/workspace.
func (h *Handler) ServeCreateGroupWorkspace(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathObjectID(w, r, "groupID")
	if !ok {
		return
	}
	var req createGroupWorkspaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	ws, err := h.Engine.CreateGroupWorkspace(ctx, req.Actor, groupID, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

type addMemberRequest struct {
	Actor string `json:"actor"`
	User  string `json:"user"`
	Role  string `json:"role"`
}

// ServeAddGroupMember handles POST /v1/groups/{groupID}/members.
func (h *Handler) ServeAddGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathObjectID(w, r, "groupID")
	if !ok {
		return
	}
	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := models.GroupRole(req.Role)
	if !role.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid group role"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	m, err := h.Engine.AddGroupMember(ctx, req.Actor, groupID, req.User, role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ServeRemoveGroupMember handles
// DELETE /v1/groups/{groupID}/members/{userID}?actor=….
func (h *Handler) ServeRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathObjectID(w, r, "groupID")
	if !ok {
		return
	}
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "actor is required"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	if err := h.Engine.RemoveGroupMember(ctx, actor, groupID, chi.URLParam(r, "userID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeGrantWorkspaceMember handles POST /v1/workspaces/{workspaceID}/members.
func (h *Handler) ServeGrantWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	wsID, ok := pathObjectID(w, r, "workspaceID")
	if !ok {
		return
	}
	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := models.MemberRole(req.Role)
	if !role.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid member role"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	m, err := h.Engine.GrantWorkspaceMember(ctx, req.Actor, wsID, req.User, role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ServeRevokeWorkspaceMember handles
// DELETE /v1/workspaces/{workspaceID}/members/{userID}?actor=….
func (h *Handler) ServeRevokeWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	wsID, ok := pathObjectID(w, r, "workspaceID")
	if !ok {
		return
	}
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "actor is required"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	if err := h.Engine.RevokeWorkspaceMember(ctx, actor, wsID, chi.URLParam(r, "userID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantRequest struct {
	Actor         string  `json:"actor"`
	WorkspaceID   string  `json:"workspace_id"`
	ResourceType  string  `json:"resource_type"`
	ResourceID    string  `json:"resource_id"`
	TargetUserID  *string `json:"target_user_id,omitempty"`
	TargetGroupID *string `json:"target_group_id,omitempty"`
	Permission    string  `json:"permission"`
	ExpiresAt     *string `json:"expires_at,omitempty"` // RFC 3339
}

func (req grantRequest) toModel() (models.ACLGrant, error) {
	wsID, err := primitive.ObjectIDFromHex(req.WorkspaceID)
	if err != nil {
		return models.ACLGrant{}, errors.New("invalid workspace_id")
	}
	g := models.ACLGrant{
		WorkspaceID:  wsID,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		TargetUserID: req.TargetUserID,
		Permission:   models.GrantPermission(req.Permission),
	}
	if req.TargetGroupID != nil {
		gid, err := primitive.ObjectIDFromHex(*req.TargetGroupID)
		if err != nil {
			return models.ACLGrant{}, errors.New("invalid target_group_id")
		}
		g.TargetGroupID = &gid
	}
	if req.ExpiresAt != nil {
		at, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return models.ACLGrant{}, errors.New("invalid expires_at, want RFC 3339")
		}
		g.ExpiresAt = &at
	}
	return g, nil
}

// ServeGrantACL handles POST /v1/grants.
func (h *Handler) ServeGrantACL(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := req.toModel()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	out, err := h.Engine.GrantACL(ctx, req.Actor, g)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type userStatusRequest struct {
	Actor  string `json:"actor"`
	User   string `json:"user"`
	Status string `json:"status"`
}

// ServeSetUserStatus handles PUT /v1/users/status.
func (h *Handler) ServeSetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req userStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User == "" || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user and status are required"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	if err := h.Engine.SetUserStatus(ctx, req.Actor, req.User, req.Status); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeRevokeACL handles DELETE /v1/grants/{grantID}?actor=….
func (h *Handler) ServeRevokeACL(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "actor is required"})
		return
	}

	ctx, cancel := opCtx(r)
	defer cancel()

	if err := h.Engine.RevokeACL(ctx, actor, chi.URLParam(r, "grantID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
