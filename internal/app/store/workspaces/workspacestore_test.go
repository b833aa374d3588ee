package workspacestore_test

import (
	"errors"
	"sync"
	"testing"

	workspacestore "github.com/convokit/warden/internal/app/store/workspaces"
	"github.com/convokit/warden/internal/domain/models"
	"github.com/convokit/warden/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureUserWorkspace_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws1, err := store.EnsureUserWorkspace(ctx, "telegram:42")
	if err != nil {
		t.Fatalf("EnsureUserWorkspace failed: %v", err)
	}
	if ws1.Type != models.WorkspaceIndividual {
		t.Errorf("Type: got %q", ws1.Type)
	}
	if ws1.OwnerUserID == nil || *ws1.OwnerUserID != "telegram:42" {
		t.Errorf("OwnerUserID: got %v", ws1.OwnerUserID)
	}
	if ws1.Status != "active" {
		t.Errorf("Status: got %q", ws1.Status)
	}

	ws2, err := store.EnsureUserWorkspace(ctx, "telegram:42")
	if err != nil {
		t.Fatalf("second EnsureUserWorkspace failed: %v", err)
	}
	if ws2.ID != ws1.ID {
		t.Errorf("not idempotent: %s vs %s", ws2.ID.Hex(), ws1.ID.Hex())
	}
}

func TestEnsureUserWorkspace_ConcurrentFirstContact(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const workers = 16
	ids := make(chan primitive.ObjectID, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ws, err := store.EnsureUserWorkspace(ctx, "slack:u7")
			if err != nil {
				t.Errorf("concurrent EnsureUserWorkspace failed: %v", err)
				return
			}
			ids <- ws.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[primitive.ObjectID]bool)
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Errorf("concurrent creates produced %d distinct workspaces", len(seen))
	}

	n, err := db.Collection("workspaces").CountDocuments(ctx, bson.M{"owner_user_id": "slack:u7"})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("workspace rows: got %d, want 1", n)
	}
}

func TestCreateGroupWorkspace_OnePerGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	ws, err := store.CreateGroupWorkspace(ctx, groupID, "Research")
	if err != nil {
		t.Fatalf("CreateGroupWorkspace failed: %v", err)
	}
	if ws.Type != models.WorkspaceGroup {
		t.Errorf("Type: got %q", ws.Type)
	}
	if ws.OwnerGroupID == nil || *ws.OwnerGroupID != groupID {
		t.Errorf("OwnerGroupID: got %v", ws.OwnerGroupID)
	}

	_, err = store.CreateGroupWorkspace(ctx, groupID, "Research Again")
	if !errors.Is(err, workspacestore.ErrGroupHasWorkspace) {
		t.Errorf("expected ErrGroupHasWorkspace, got %v", err)
	}
}

func TestEnsurePublicWorkspace_Singleton(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws1, err := store.EnsurePublicWorkspace(ctx, "Commons")
	if err != nil {
		t.Fatalf("EnsurePublicWorkspace failed: %v", err)
	}
	ws2, err := store.EnsurePublicWorkspace(ctx, "Commons Renamed")
	if err != nil {
		t.Fatalf("second EnsurePublicWorkspace failed: %v", err)
	}
	if ws1.ID != ws2.ID {
		t.Errorf("public workspace is not a singleton: %s vs %s", ws1.ID.Hex(), ws2.ID.Hex())
	}

	n, err := db.Collection("workspaces").CountDocuments(ctx, bson.M{"type": "public"})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("public workspace rows: got %d, want 1", n)
	}
}

func TestCreate_OwnerInvariant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := "email:x"
	groupID := primitive.NewObjectID()

	bad := []models.Workspace{
		// no owner at all
		{Type: models.WorkspaceIndividual, Name: "none"},
		// two owners
		{Type: models.WorkspaceIndividual, Name: "two", OwnerUserID: &owner, OwnerGroupID: &groupID},
		// owner field does not match type
		{Type: models.WorkspaceGroup, Name: "mismatch", OwnerUserID: &owner},
	}
	for _, ws := range bad {
		if _, err := store.Create(ctx, ws); !errors.Is(err, workspacestore.ErrOwnerInvariant) {
			t.Errorf("Create(%s): expected ErrOwnerInvariant, got %v", ws.Name, err)
		}
	}

	// Nothing bad was persisted.
	n, err := db.Collection("workspaces").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("invalid workspaces persisted: %d", n)
	}
}

func TestOwnerInvariant_AllPersisted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.EnsureUserWorkspace(ctx, "email:a"); err != nil {
		t.Fatalf("EnsureUserWorkspace failed: %v", err)
	}
	if _, err := store.CreateGroupWorkspace(ctx, primitive.NewObjectID(), "G"); err != nil {
		t.Fatalf("CreateGroupWorkspace failed: %v", err)
	}
	if _, err := store.EnsurePublicWorkspace(ctx, "Commons"); err != nil {
		t.Fatalf("EnsurePublicWorkspace failed: %v", err)
	}

	cur, err := db.Collection("workspaces").Find(ctx, bson.M{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	defer cur.Close(ctx)

	var all []models.Workspace
	if err := cur.All(ctx, &all); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("workspaces: got %d, want 3", len(all))
	}
	for _, ws := range all {
		if !ws.OwnerValid() {
			t.Errorf("persisted workspace %s violates owner invariant: %+v", ws.ID.Hex(), ws)
		}
	}
}

func TestArchiveAndReassign(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws, err := store.EnsureUserWorkspace(ctx, "anon:1")
	if err != nil {
		t.Fatalf("EnsureUserWorkspace failed: %v", err)
	}

	if err := store.ReassignOwner(ctx, ws.ID, "email:x"); err != nil {
		t.Fatalf("ReassignOwner failed: %v", err)
	}
	got, err := store.ActiveIndividualByOwner(ctx, "email:x")
	if err != nil {
		t.Fatalf("ActiveIndividualByOwner failed: %v", err)
	}
	if got.ID != ws.ID {
		t.Errorf("reassigned workspace: got %s, want %s", got.ID.Hex(), ws.ID.Hex())
	}

	if err := store.Archive(ctx, ws.ID); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if _, err := store.ActiveIndividualByOwner(ctx, "email:x"); !errors.Is(err, workspacestore.ErrNotFound) {
		t.Errorf("archived workspace still resolves: %v", err)
	}
	// Still readable by explicit reference.
	got, err = store.GetByID(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetByID after archive failed: %v", err)
	}
	if got.Status != "archived" {
		t.Errorf("Status: got %q, want archived", got.Status)
	}
}
