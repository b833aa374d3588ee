// internal/app/policy/access/access.go
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	grantstore "github.com/convokit/warden/internal/app/store/grants"
	identitystore "github.com/convokit/warden/internal/app/store/identities"
	membershipstore "github.com/convokit/warden/internal/app/store/memberships"
	workspacestore "github.com/convokit/warden/internal/app/store/workspaces"
	wsmemberstore "github.com/convokit/warden/internal/app/store/wsmembers"
	"github.com/convokit/warden/internal/app/system/normalize"
	"github.com/convokit/warden/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Checker answers "may this user perform this action on this workspace (or
// resource)". It is read-only: it never writes, so any number of concurrent
// callers may share one Checker.
//
// The decision order is fixed. Each step either grants or falls through to
// the next; only the final step denies:
//
//  1. resolve the caller to canonical form
//  2. workspace owner: all actions
//  3. explicit workspace member: per role (admin all, editor rw, reader r)
//  4. group workspace: per group role (admin rw, member r)
//  5. public workspace: read
//  6. live ACL grant on the referenced resource, strongest wins
//  7. deny
type Checker struct {
	identities  *identitystore.Store
	workspaces  *workspacestore.Store
	members     *wsmemberstore.Store
	memberships *membershipstore.Store
	grants      *grantstore.Store
	log         *zap.Logger
}

// ErrInvalidAction is returned when the requested action is not one of the
// closed vocabulary.
var ErrInvalidAction = errors.New("invalid action")

// PermissionError reports a denied action. It carries only what the caller
// may see; which rule denied is logged, not exposed.
type PermissionError struct {
	Action   models.Action
	Resource string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s on %s", e.Action, e.Resource)
}

func New(db *mongo.Database, log *zap.Logger) *Checker {
	return &Checker{
		identities:  identitystore.New(db),
		workspaces:  workspacestore.New(db),
		members:     wsmemberstore.New(db),
		memberships: membershipstore.New(db),
		grants:      grantstore.New(db),
		log:         log,
	}
}

// CanAccess reports whether userID may perform action on the workspace as a
// whole. Resource-scoped ACL grants are not consulted; use
// CanAccessResource for those.
func (c *Checker) CanAccess(ctx context.Context, userID string, workspaceID primitive.ObjectID, action models.Action) (bool, error) {
	return c.decide(ctx, userID, workspaceID, action, "", "")
}

// CanAccessResource is CanAccess plus the ACL-grant step for one resource
// inside the workspace.
func (c *Checker) CanAccessResource(ctx context.Context, userID string, workspaceID primitive.ObjectID, action models.Action, resourceType, resourceID string) (bool, error) {
	return c.decide(ctx, userID, workspaceID, action, resourceType, resourceID)
}

// Require is CanAccess that turns a denial into a *PermissionError, for
// callers that treat denial as a failure rather than a branch.
func (c *Checker) Require(ctx context.Context, userID string, workspaceID primitive.ObjectID, action models.Action) error {
	ok, err := c.CanAccess(ctx, userID, workspaceID, action)
	if err != nil {
		return err
	}
	if !ok {
		return &PermissionError{Action: action, Resource: "workspace:" + workspaceID.Hex()}
	}
	return nil
}

func (c *Checker) decide(ctx context.Context, userID string, workspaceID primitive.ObjectID, action models.Action, resourceType, resourceID string) (bool, error) {
	if !action.IsValid() {
		return false, ErrInvalidAction
	}

	// Step 1: canonical identity. An identity the store has never seen
	// still flows through the remaining checks; it can only ever match the
	// public read rule.
	canonical, err := c.identities.ResolveCanonical(ctx, userID)
	if err != nil {
		if !errors.Is(err, identitystore.ErrAliasNotFound) {
			return false, err
		}
		canonical = normalize.Identity(userID)
	}

	ws, err := c.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return false, err
	}

	// Step 2: owner holds every action. The stored owner may itself have
	// been merged away since the workspace was written (an archived
	// workspace keeps its pre-merge owner), so it is compared in canonical
	// form too.
	if ws.OwnerUserID != nil {
		owner, err := c.identities.ResolveCanonical(ctx, *ws.OwnerUserID)
		if err != nil {
			if !errors.Is(err, identitystore.ErrAliasNotFound) {
				return false, err
			}
			owner = *ws.OwnerUserID
		}
		if owner == canonical {
			return true, nil
		}
	}

	// Step 3: explicit workspace member.
	m, err := c.members.Get(ctx, ws.ID, canonical)
	switch {
	case err == nil:
		if m.Role.Allows(action) {
			return true, nil
		}
	case !errors.Is(err, wsmemberstore.ErrNotFound):
		return false, err
	}

	// Step 4: group role on a group workspace. Group admin is capped at
	// read+write; full admin only ever comes from steps 2 and 3.
	if ws.Type == models.WorkspaceGroup && ws.OwnerGroupID != nil {
		role, isMember, err := c.memberships.RoleOf(ctx, *ws.OwnerGroupID, canonical)
		if err != nil {
			return false, err
		}
		if isMember && role.Allows(action) {
			return true, nil
		}
	}

	// Step 5: anyone may read a public workspace.
	if ws.Type == models.WorkspacePublic && action == models.ActionRead {
		return true, nil
	}

	// Step 6: resource-scoped grant, directly or through a group.
	if resourceType != "" {
		groupIDs, err := c.memberships.GroupsOf(ctx, canonical)
		if err != nil {
			return false, err
		}
		perm, found, err := c.grants.BestPermission(ctx, ws.ID, resourceType, resourceID, canonical, groupIDs, time.Now().UTC())
		if err != nil {
			return false, err
		}
		if found && perm.Covers(action) {
			return true, nil
		}
	}

	// Step 7: deny.
	c.log.Debug("access denied",
		zap.String("user_id", canonical),
		zap.String("workspace_id", ws.ID.Hex()),
		zap.String("action", string(action)))
	return false, nil
}
