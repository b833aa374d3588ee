package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/convokit/warden/internal/app/engine"
	"github.com/convokit/warden/internal/app/policy/access"
	"github.com/convokit/warden/internal/app/system/reqctx"
	"github.com/convokit/warden/internal/app/system/router"
	"github.com/convokit/warden/internal/domain/models"
	"github.com/convokit/warden/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newEngine(t *testing.T) (*engine.Engine, *mongo.Database, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	return engine.New(db.Client(), db, zap.NewNop()), db, ctx
}

// First contact creates user, workspace, and binding; later messages on the
// same conversation resolve to the same workspace.
func TestEnsureConversationWorkspace(t *testing.T) {
	e, db, ctx := newEngine(t)

	first, err := e.EnsureConversationWorkspace(ctx, "Telegram: 42", "tg-chat-1")
	if err != nil {
		t.Fatalf("EnsureConversationWorkspace failed: %v", err)
	}
	if first.UserID != "telegram:42" {
		t.Errorf("UserID: got %q", first.UserID)
	}
	if first.WorkspaceID == "" {
		t.Error("expected a workspace id")
	}

	second, err := e.EnsureConversationWorkspace(ctx, "telegram:42", "tg-chat-1")
	if err != nil {
		t.Fatalf("second EnsureConversationWorkspace failed: %v", err)
	}
	if second.WorkspaceID != first.WorkspaceID {
		t.Errorf("same conversation resolved to different workspaces: %q vs %q",
			second.WorkspaceID, first.WorkspaceID)
	}

	n, err := db.Collection("workspaces").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one workspace, got %d", n)
	}
}

func TestEnsureConversationWorkspace_Concurrent(t *testing.T) {
	e, db, ctx := newEngine(t)

	const n = 16
	results := make([]reqctx.Info, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.EnsureConversationWorkspace(ctx, "telegram:42", "tg-chat-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		if results[i].WorkspaceID != results[0].WorkspaceID {
			t.Fatalf("call %d resolved a different workspace", i)
		}
	}

	count, err := db.Collection("conversation_workspaces").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one binding, got %d", count)
	}
}

func TestResolveRoot_AmbientContext(t *testing.T) {
	e, _, ctx := newEngine(t)

	info, err := e.EnsureConversationWorkspace(ctx, "telegram:42", "tg-chat-1")
	if err != nil {
		t.Fatalf("EnsureConversationWorkspace failed: %v", err)
	}
	rctx := reqctx.With(ctx, info)

	root, err := e.ResolveRoot(rctx, router.KindFiles, "")
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	for _, kind := range []router.Kind{router.KindRecords, router.KindSearch, router.KindReminders} {
		other, err := e.ResolveRoot(rctx, kind, "")
		if err != nil {
			t.Fatalf("ResolveRoot(%s) failed: %v", kind, err)
		}
		if other != root {
			t.Errorf("ResolveRoot(%s): got %q, want %q", kind, other, root)
		}
	}

	// A bare context has no ambient state and must not fall back anywhere.
	if _, err := e.ResolveRoot(ctx, router.KindFiles, ""); !errors.Is(err, router.ErrNoContext) {
		t.Errorf("expected ErrNoContext, got %v", err)
	}
}

func TestCreateGroup_ActorBecomesAdmin(t *testing.T) {
	e, _, ctx := newEngine(t)

	g, err := e.CreateGroup(ctx, "telegram:a", "Research")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	ws, err := e.CreateGroupWorkspace(ctx, "telegram:a", g.ID, "Research")
	if err != nil {
		t.Fatalf("CreateGroupWorkspace failed: %v", err)
	}

	// Creator is group admin: read and write, but not workspace admin.
	ok, err := e.CanAccess(ctx, "telegram:a", ws.ID, models.ActionWrite)
	if err != nil {
		t.Fatalf("CanAccess failed: %v", err)
	}
	if !ok {
		t.Error("group creator should write to the group workspace")
	}
	ok, err = e.CanAccess(ctx, "telegram:a", ws.ID, models.ActionAdmin)
	if err != nil {
		t.Fatalf("CanAccess failed: %v", err)
	}
	if ok {
		t.Error("group admin must not hold workspace admin")
	}
}

func TestAddGroupMember_RequiresGroupAdmin(t *testing.T) {
	e, _, ctx := newEngine(t)

	g, err := e.CreateGroup(ctx, "telegram:a", "Research")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if _, err := e.AddGroupMember(ctx, "telegram:a", g.ID, "telegram:b", models.GroupRoleMember); err != nil {
		t.Fatalf("AddGroupMember failed: %v", err)
	}

	var perr *access.PermissionError
	_, err = e.AddGroupMember(ctx, "telegram:b", g.ID, "telegram:c", models.GroupRoleMember)
	if !errors.As(err, &perr) {
		t.Errorf("expected PermissionError, got %v", err)
	}

	// A member may leave on their own.
	if err := e.RemoveGroupMember(ctx, "telegram:b", g.ID, "telegram:b"); err != nil {
		t.Errorf("self-removal failed: %v", err)
	}
}

func TestGrantWorkspaceMember_RequiresWorkspaceAdmin(t *testing.T) {
	e, _, ctx := newEngine(t)

	info, err := e.EnsureConversationWorkspace(ctx, "telegram:owner", "tg-chat-1")
	if err != nil {
		t.Fatalf("EnsureConversationWorkspace failed: %v", err)
	}
	wsID, err := primitive.ObjectIDFromHex(info.WorkspaceID)
	if err != nil {
		t.Fatalf("bad workspace id: %v", err)
	}

	if _, err := e.GrantWorkspaceMember(ctx, "telegram:owner", wsID, "telegram:guest", models.MemberRoleReader); err != nil {
		t.Fatalf("owner grant failed: %v", err)
	}

	var perr *access.PermissionError
	_, err = e.GrantWorkspaceMember(ctx, "telegram:guest", wsID, "telegram:other", models.MemberRoleReader)
	if !errors.As(err, &perr) {
		t.Errorf("expected PermissionError, got %v", err)
	}
}

func TestGrantACL_SetsGrantedByAndAudits(t *testing.T) {
	e, db, ctx := newEngine(t)

	info, err := e.EnsureConversationWorkspace(ctx, "telegram:owner", "tg-chat-1")
	if err != nil {
		t.Fatalf("EnsureConversationWorkspace failed: %v", err)
	}
	wsID, err := primitive.ObjectIDFromHex(info.WorkspaceID)
	if err != nil {
		t.Fatalf("bad workspace id: %v", err)
	}
	guest := "telegram:guest"

	g, err := e.GrantACL(ctx, "telegram:owner", models.ACLGrant{
		WorkspaceID:  wsID,
		ResourceType: "file",
		ResourceID:   "report.pdf",
		TargetUserID: &guest,
		Permission:   models.GrantRead,
		GrantedBy:    "forged",
	})
	if err != nil {
		t.Fatalf("GrantACL failed: %v", err)
	}
	if g.GrantedBy != "telegram:owner" {
		t.Errorf("GrantedBy: got %q, want the acting admin", g.GrantedBy)
	}

	if err := e.RevokeACL(ctx, "telegram:owner", g.GrantID); err != nil {
		t.Fatalf("RevokeACL failed: %v", err)
	}

	n, err := db.Collection("audit_log").CountDocuments(ctx, bson.M{"actor": "telegram:owner"})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n < 2 {
		t.Errorf("expected grant and revoke audit entries, got %d", n)
	}
}

func TestMerge_ThroughEngine(t *testing.T) {
	e, _, ctx := newEngine(t)

	if _, err := e.EnsureConversationWorkspace(ctx, "anon:1", "tg-chat-1"); err != nil {
		t.Fatalf("EnsureConversationWorkspace failed: %v", err)
	}

	res, err := e.Merge(ctx, "system", "anon:1", "email:x")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if res.ReassignedWorkspace == nil {
		t.Error("expected the workspace to be reassigned")
	}

	// The old identity keeps working through its alias.
	info, err := e.EnsureConversationWorkspace(ctx, "anon:1", "tg-chat-1")
	if err != nil {
		t.Fatalf("EnsureConversationWorkspace failed: %v", err)
	}
	if info.UserID != "email:x" {
		t.Errorf("UserID after merge: got %q, want %q", info.UserID, "email:x")
	}
}
