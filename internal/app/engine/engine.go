// internal/app/engine/engine.go

// Package engine is the single entry point collaborators call: channel
// adapters resolve conversations through it, storage backends ask it for
// roots, and administrative surfaces mutate groups, members, and grants
// through it. It owns no state of its own; everything lives in the stores.
package engine

import (
	"context"
	"errors"

	"github.com/convokit/warden/internal/app/policy/access"
	auditstore "github.com/convokit/warden/internal/app/store/audit"
	conversationstore "github.com/convokit/warden/internal/app/store/conversations"
	grantstore "github.com/convokit/warden/internal/app/store/grants"
	groupstore "github.com/convokit/warden/internal/app/store/groups"
	identitystore "github.com/convokit/warden/internal/app/store/identities"
	membershipstore "github.com/convokit/warden/internal/app/store/memberships"
	workspacestore "github.com/convokit/warden/internal/app/store/workspaces"
	wsmemberstore "github.com/convokit/warden/internal/app/store/wsmembers"
	"github.com/convokit/warden/internal/app/system/locks"
	"github.com/convokit/warden/internal/app/system/merge"
	"github.com/convokit/warden/internal/app/system/normalize"
	"github.com/convokit/warden/internal/app/system/reqctx"
	"github.com/convokit/warden/internal/app/system/router"
	"github.com/convokit/warden/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Engine struct {
	identities    *identitystore.Store
	workspaces    *workspacestore.Store
	conversations *conversationstore.Store
	groups        *groupstore.Store
	memberships   *membershipstore.Store
	members       *wsmemberstore.Store
	grants        *grantstore.Store
	audit         *auditstore.Store

	checker *access.Checker
	merges  *merge.Workflow
	locks   locks.Locker
	log     *zap.Logger
}

func New(client *mongo.Client, db *mongo.Database, log *zap.Logger) *Engine {
	return &Engine{
		identities:    identitystore.New(db),
		workspaces:    workspacestore.New(db),
		conversations: conversationstore.New(db),
		groups:        groupstore.New(db),
		memberships:   membershipstore.New(db),
		members:       wsmemberstore.New(db),
		grants:        grantstore.New(db),
		audit:         auditstore.New(db),
		checker:       access.New(db, log),
		merges:        merge.New(client, db, log),
		locks:         locks.NewKeyed(),
		log:           log,
	}
}

// resolveActor turns a raw identity into its canonical user id, creating the
// user on first contact.
func (e *Engine) resolveActor(ctx context.Context, rawIdentity string) (string, error) {
	canonical, err := e.identities.ResolveCanonical(ctx, rawIdentity)
	if err == nil {
		return canonical, nil
	}
	if !errors.Is(err, identitystore.ErrAliasNotFound) {
		return "", err
	}
	u, err := e.identities.EnsureUser(ctx, rawIdentity)
	if err != nil {
		return "", err
	}
	return u.UserID, nil
}

// EnsureConversationWorkspace resolves the identity behind an inbound
// message and binds its conversation to a workspace, creating user,
// workspace, and binding on first contact. The whole sequence runs under
// the per-conversation lock so two messages on the same conversation cannot
// interleave; creation races across processes still converge through the
// unique indexes underneath.
//
// The returned Info is the ambient context for this unit of work. The
// binding is authoritative: if the conversation was already bound (possibly
// to another user's workspace), that workspace wins.
func (e *Engine) EnsureConversationWorkspace(ctx context.Context, rawIdentity, conversationID string) (reqctx.Info, error) {
	convID := normalize.Conversation(conversationID)
	unlock := e.locks.Lock(convID)
	defer unlock()

	canonical, err := e.resolveActor(ctx, rawIdentity)
	if err != nil {
		return reqctx.Info{}, err
	}

	ws, err := e.workspaces.EnsureUserWorkspace(ctx, canonical)
	if err != nil {
		return reqctx.Info{}, err
	}

	binding, err := e.conversations.EnsureBinding(ctx, convID, ws.ID)
	if err != nil {
		return reqctx.Info{}, err
	}

	return reqctx.Info{
		UserID:         canonical,
		WorkspaceID:    binding.WorkspaceID.Hex(),
		ConversationID: convID,
	}, nil
}

// CanAccess reports whether the user may perform action on the workspace.
func (e *Engine) CanAccess(ctx context.Context, userID string, workspaceID primitive.ObjectID, action models.Action) (bool, error) {
	return e.checker.CanAccess(ctx, userID, workspaceID, action)
}

// CanAccessResource additionally consults resource-scoped ACL grants.
func (e *Engine) CanAccessResource(ctx context.Context, userID string, workspaceID primitive.ObjectID, action models.Action, resourceType, resourceID string) (bool, error) {
	return e.checker.CanAccessResource(ctx, userID, workspaceID, action, resourceType, resourceID)
}

// ResolveRoot returns the storage root for the kind, from the explicit
// workspace id if given, otherwise from the ambient context on ctx.
func (e *Engine) ResolveRoot(ctx context.Context, kind router.Kind, explicitWorkspaceID string) (string, error) {
	rc, _ := reqctx.From(ctx)
	return router.ResolveRoot(kind, explicitWorkspaceID, rc)
}

// Merge merges the source identity into the target identity.
func (e *Engine) Merge(ctx context.Context, actor, sourceID, targetID string) (merge.Result, error) {
	res, err := e.merges.Merge(ctx, sourceID, targetID)
	if err != nil {
		return merge.Result{}, err
	}
	e.recordAudit(ctx, actor, "identity.merge", res.Source, "target="+res.Target)
	return res, nil
}

// CreateGroup creates a group and enrolls the actor as its first admin.
func (e *Engine) CreateGroup(ctx context.Context, actor, name string) (models.Group, error) {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return models.Group{}, err
	}
	g, err := e.groups.Create(ctx, name)
	if err != nil {
		return models.Group{}, err
	}
	if _, err := e.memberships.Add(ctx, g.ID, canonical, models.GroupRoleAdmin); err != nil {
		return models.Group{}, err
	}
	e.recordAudit(ctx, canonical, "group.create", g.ID.Hex(), "name="+g.Name)
	return g, nil
}

// CreateGroupWorkspace creates the group's shared workspace. Only a group
// admin may create it, and a group owns at most one.
func (e *Engine) CreateGroupWorkspace(ctx context.Context, actor string, groupID primitive.ObjectID, name string) (models.Workspace, error) {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return models.Workspace{}, err
	}
	if err := e.requireGroupAdmin(ctx, groupID, canonical); err != nil {
		return models.Workspace{}, err
	}
	ws, err := e.workspaces.CreateGroupWorkspace(ctx, groupID, name)
	if err != nil {
		return models.Workspace{}, err
	}
	e.recordAudit(ctx, canonical, "workspace.create", ws.ID.Hex(), "group="+groupID.Hex())
	return ws, nil
}

// EnsurePublicWorkspace returns the public singleton, creating it on first
// call. Concurrent first calls converge on one row.
func (e *Engine) EnsurePublicWorkspace(ctx context.Context, name string) (models.Workspace, error) {
	return e.workspaces.EnsurePublicWorkspace(ctx, name)
}

// SetUserStatus suspends or reactivates a user. Suspension blocks nothing
// retroactively; it is an operator flag the channel adapters consult.
func (e *Engine) SetUserStatus(ctx context.Context, actor, rawIdentity, stat string) error {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	target, err := e.identities.ResolveCanonical(ctx, rawIdentity)
	if err != nil {
		return err
	}
	if err := e.identities.SetStatus(ctx, target, stat); err != nil {
		return err
	}
	e.recordAudit(ctx, canonical, "user.status", target, "status="+stat)
	return nil
}

// AddGroupMember enrolls a user in a group. Only a group admin may add
// members.
func (e *Engine) AddGroupMember(ctx context.Context, actor string, groupID primitive.ObjectID, rawIdentity string, role models.GroupRole) (models.GroupMembership, error) {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return models.GroupMembership{}, err
	}
	if err := e.requireGroupAdmin(ctx, groupID, canonical); err != nil {
		return models.GroupMembership{}, err
	}
	member, err := e.resolveActor(ctx, rawIdentity)
	if err != nil {
		return models.GroupMembership{}, err
	}
	m, err := e.memberships.Add(ctx, groupID, member, role)
	if err != nil {
		return models.GroupMembership{}, err
	}
	e.recordAudit(ctx, canonical, "member.add", groupID.Hex(), "user="+member+" role="+string(role))
	return m, nil
}

// RemoveGroupMember removes a user from a group. A group admin may remove
// anyone; a member may remove themselves.
func (e *Engine) RemoveGroupMember(ctx context.Context, actor string, groupID primitive.ObjectID, rawIdentity string) error {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	member, err := e.resolveActor(ctx, rawIdentity)
	if err != nil {
		return err
	}
	if member != canonical {
		if err := e.requireGroupAdmin(ctx, groupID, canonical); err != nil {
			return err
		}
	}
	if err := e.memberships.Remove(ctx, groupID, member); err != nil {
		return err
	}
	e.recordAudit(ctx, canonical, "member.remove", groupID.Hex(), "user="+member)
	return nil
}

// GrantWorkspaceMember grants (or re-grants) an explicit role on a
// workspace. Only a workspace admin may grant.
func (e *Engine) GrantWorkspaceMember(ctx context.Context, actor string, workspaceID primitive.ObjectID, rawIdentity string, role models.MemberRole) (models.WorkspaceMember, error) {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return models.WorkspaceMember{}, err
	}
	if err := e.checker.Require(ctx, canonical, workspaceID, models.ActionAdmin); err != nil {
		return models.WorkspaceMember{}, err
	}
	member, err := e.resolveActor(ctx, rawIdentity)
	if err != nil {
		return models.WorkspaceMember{}, err
	}
	m, err := e.members.Upsert(ctx, workspaceID, member, role, canonical)
	if err != nil {
		return models.WorkspaceMember{}, err
	}
	e.recordAudit(ctx, canonical, "workspace_member.grant", workspaceID.Hex(), "user="+member+" role="+string(role))
	return m, nil
}

// RevokeWorkspaceMember removes an explicit role. Only a workspace admin may
// revoke.
func (e *Engine) RevokeWorkspaceMember(ctx context.Context, actor string, workspaceID primitive.ObjectID, rawIdentity string) error {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	if err := e.checker.Require(ctx, canonical, workspaceID, models.ActionAdmin); err != nil {
		return err
	}
	member, err := e.resolveActor(ctx, rawIdentity)
	if err != nil {
		return err
	}
	if err := e.members.Remove(ctx, workspaceID, member); err != nil {
		return err
	}
	e.recordAudit(ctx, canonical, "workspace_member.revoke", workspaceID.Hex(), "user="+member)
	return nil
}

// GrantACL records a resource-scoped grant. Only a workspace admin may
// grant; GrantedBy is always the acting admin, never caller-supplied.
func (e *Engine) GrantACL(ctx context.Context, actor string, g models.ACLGrant) (models.ACLGrant, error) {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return models.ACLGrant{}, err
	}
	if err := e.checker.Require(ctx, canonical, g.WorkspaceID, models.ActionAdmin); err != nil {
		return models.ACLGrant{}, err
	}
	if g.TargetUserID != nil {
		target, err := e.resolveActor(ctx, *g.TargetUserID)
		if err != nil {
			return models.ACLGrant{}, err
		}
		g.TargetUserID = &target
	}
	g.GrantedBy = canonical
	out, err := e.grants.Grant(ctx, g)
	if err != nil {
		return models.ACLGrant{}, err
	}
	e.recordAudit(ctx, canonical, "grant.create", out.GrantID,
		"resource="+out.ResourceType+"/"+out.ResourceID)
	return out, nil
}

// RevokeACL revokes a grant by its id. Only an admin of the grant's
// workspace may revoke.
func (e *Engine) RevokeACL(ctx context.Context, actor, grantID string) error {
	canonical, err := e.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	g, err := e.grants.GetByGrantID(ctx, grantID)
	if err != nil {
		return err
	}
	if err := e.checker.Require(ctx, canonical, g.WorkspaceID, models.ActionAdmin); err != nil {
		return err
	}
	if err := e.grants.Revoke(ctx, grantID); err != nil {
		return err
	}
	e.recordAudit(ctx, canonical, "grant.revoke", grantID, "")
	return nil
}

// recordAudit appends an audit entry; audit failures are logged, not
// surfaced, so a full audit collection cannot take mutations down.
func (e *Engine) recordAudit(ctx context.Context, actor, action, subject, detail string) {
	e.log.Info("admin mutation",
		zap.String("actor", actor),
		zap.String("action", action),
		zap.String("subject", subject))
	if err := e.audit.Record(ctx, actor, action, subject, detail); err != nil {
		e.log.Error("audit record failed",
			zap.String("action", action),
			zap.String("subject", subject),
			zap.Error(err))
	}
}

func (e *Engine) requireGroupAdmin(ctx context.Context, groupID primitive.ObjectID, canonical string) error {
	role, ok, err := e.memberships.RoleOf(ctx, groupID, canonical)
	if err != nil {
		return err
	}
	if !ok || role != models.GroupRoleAdmin {
		return &access.PermissionError{Action: models.ActionAdmin, Resource: "group:" + groupID.Hex()}
	}
	return nil
}
