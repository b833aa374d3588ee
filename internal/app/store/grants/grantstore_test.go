package grantstore_test

import (
	"errors"
	"testing"
	"time"

	grantstore "github.com/convokit/warden/internal/app/store/grants"
	"github.com/convokit/warden/internal/domain/models"
	"github.com/convokit/warden/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGrantAndRevoke(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := grantstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := fx.CreateIndividualWorkspace(ctx, "telegram:owner")
	target := "telegram:guest"

	g, err := store.Grant(ctx, models.ACLGrant{
		WorkspaceID:  ws.ID,
		ResourceType: "file",
		ResourceID:   "report.pdf",
		TargetUserID: &target,
		Permission:   models.GrantRead,
		GrantedBy:    "telegram:owner",
	})
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if g.GrantID == "" {
		t.Error("expected a grant id to be assigned")
	}

	if err := store.Revoke(ctx, g.GrantID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, g.GrantID); !errors.Is(err, grantstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second revoke, got %v", err)
	}
}

func TestGrant_InvalidTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := grantstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := fx.CreateIndividualWorkspace(ctx, "telegram:owner")
	target := "telegram:guest"
	groupID := primitive.NewObjectID()

	// Neither target set.
	_, err := store.Grant(ctx, models.ACLGrant{
		WorkspaceID:  ws.ID,
		ResourceType: "file",
		ResourceID:   "report.pdf",
		Permission:   models.GrantRead,
	})
	if !errors.Is(err, grantstore.ErrInvalidTarget) {
		t.Errorf("no target: expected ErrInvalidTarget, got %v", err)
	}

	// Both targets set.
	_, err = store.Grant(ctx, models.ACLGrant{
		WorkspaceID:   ws.ID,
		ResourceType:  "file",
		ResourceID:    "report.pdf",
		TargetUserID:  &target,
		TargetGroupID: &groupID,
		Permission:    models.GrantRead,
	})
	if !errors.Is(err, grantstore.ErrInvalidTarget) {
		t.Errorf("both targets: expected ErrInvalidTarget, got %v", err)
	}
}

func TestBestPermission_WriteBeatsRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := grantstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := fx.CreateIndividualWorkspace(ctx, "telegram:owner")
	g := fx.CreateGroup(ctx, "Research")
	target := "telegram:guest"

	if _, err := store.Grant(ctx, models.ACLGrant{
		WorkspaceID:  ws.ID,
		ResourceType: "file",
		ResourceID:   "report.pdf",
		TargetUserID: &target,
		Permission:   models.GrantRead,
		GrantedBy:    "telegram:owner",
	}); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if _, err := store.Grant(ctx, models.ACLGrant{
		WorkspaceID:   ws.ID,
		ResourceType:  "file",
		ResourceID:    "report.pdf",
		TargetGroupID: &g.ID,
		Permission:    models.GrantWrite,
		GrantedBy:     "telegram:owner",
	}); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	perm, ok, err := store.BestPermission(ctx, ws.ID, "file", "report.pdf",
		"telegram:guest", []primitive.ObjectID{g.ID}, time.Now().UTC())
	if err != nil {
		t.Fatalf("BestPermission failed: %v", err)
	}
	if !ok || perm != models.GrantWrite {
		t.Errorf("BestPermission: got (%q, %v), want (write, true)", perm, ok)
	}
}

func TestBestPermission_ExpiredIgnored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := grantstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := fx.CreateIndividualWorkspace(ctx, "telegram:owner")
	target := "telegram:guest"
	past := time.Now().UTC().Add(-time.Hour)

	if _, err := store.Grant(ctx, models.ACLGrant{
		WorkspaceID:  ws.ID,
		ResourceType: "file",
		ResourceID:   "report.pdf",
		TargetUserID: &target,
		Permission:   models.GrantWrite,
		ExpiresAt:    &past,
		GrantedBy:    "telegram:owner",
	}); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	_, ok, err := store.BestPermission(ctx, ws.ID, "file", "report.pdf",
		"telegram:guest", nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("BestPermission failed: %v", err)
	}
	if ok {
		t.Error("expected expired grant to be ignored")
	}

	// The expired grant is skipped at decision time, not deleted.
	n, err := db.Collection("acl_grants").CountDocuments(ctx, bson.M{"workspace_id": ws.ID})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected the expired grant row to remain, got %d rows", n)
	}
}

func TestBestPermission_ScopedToResource(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := grantstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := fx.CreateIndividualWorkspace(ctx, "telegram:owner")
	target := "telegram:guest"

	if _, err := store.Grant(ctx, models.ACLGrant{
		WorkspaceID:  ws.ID,
		ResourceType: "file",
		ResourceID:   "report.pdf",
		TargetUserID: &target,
		Permission:   models.GrantWrite,
		GrantedBy:    "telegram:owner",
	}); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	// Same workspace, different resource: no grant applies.
	_, ok, err := store.BestPermission(ctx, ws.ID, "file", "notes.txt",
		"telegram:guest", nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("BestPermission failed: %v", err)
	}
	if ok {
		t.Error("expected grant not to apply to a different resource")
	}
}
