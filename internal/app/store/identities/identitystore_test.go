package identitystore_test

import (
	"errors"
	"sync"
	"testing"

	identitystore "github.com/convokit/warden/internal/app/store/identities"
	"github.com/convokit/warden/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureUser_CreatesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u1, err := store.EnsureUser(ctx, "telegram:42")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if u1.UserID != "telegram:42" {
		t.Errorf("UserID: got %q", u1.UserID)
	}
	if u1.Status != "active" {
		t.Errorf("Status: got %q, want active", u1.Status)
	}
	if u1.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	u2, err := store.EnsureUser(ctx, "Telegram: 42")
	if err != nil {
		t.Fatalf("second EnsureUser failed: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("EnsureUser is not idempotent: %s vs %s", u2.ID.Hex(), u1.ID.Hex())
	}

	n, err := db.Collection("users").CountDocuments(ctx, bson.M{"user_id": "telegram:42"})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("user rows: got %d, want 1", n)
	}
}

func TestEnsureUser_ConcurrentFirstContact(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.EnsureUser(ctx, "slack:u99"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent EnsureUser failed: %v", err)
	}

	n, err := db.Collection("users").CountDocuments(ctx, bson.M{"user_id": "slack:u99"})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("user rows after %d concurrent creates: got %d, want 1", workers, n)
	}
}

func TestResolveCanonical_DirectUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.EnsureUser(ctx, "email:x@example.com"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	got, err := store.ResolveCanonical(ctx, "email:x@example.com")
	if err != nil {
		t.Fatalf("ResolveCanonical failed: %v", err)
	}
	if got != "email:x@example.com" {
		t.Errorf("got %q", got)
	}
}

func TestResolveCanonical_FollowsChain(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.EnsureUser(ctx, "email:x"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	// anon:1 -> anon:2 -> email:x
	if err := store.AddAlias(ctx, "anon:2", "email:x"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}
	if err := store.AddAlias(ctx, "anon:1", "anon:2"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}

	got, err := store.ResolveCanonical(ctx, "anon:1")
	if err != nil {
		t.Fatalf("ResolveCanonical failed: %v", err)
	}
	if got != "email:x" {
		t.Errorf("got %q, want %q", got, "email:x")
	}
}

func TestResolveCanonical_AliasOverridesUserRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Both identities exist as users (the merged source is never deleted);
	// the alias must still redirect.
	if _, err := store.EnsureUser(ctx, "anon:1"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if _, err := store.EnsureUser(ctx, "email:x"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if err := store.AddAlias(ctx, "anon:1", "email:x"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}

	got, err := store.ResolveCanonical(ctx, "anon:1")
	if err != nil {
		t.Fatalf("ResolveCanonical failed: %v", err)
	}
	if got != "email:x" {
		t.Errorf("got %q, want %q", got, "email:x")
	}
}

func TestResolveCanonical_Cycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.AddAlias(ctx, "a:1", "a:2"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}
	if err := store.AddAlias(ctx, "a:2", "a:1"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}

	_, err := store.ResolveCanonical(ctx, "a:1")
	if !errors.Is(err, identitystore.ErrAliasCycle) {
		t.Errorf("expected ErrAliasCycle, got %v", err)
	}
}

func TestResolveCanonical_Dangling(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.ResolveCanonical(ctx, "ghost:1")
	if !errors.Is(err, identitystore.ErrAliasNotFound) {
		t.Errorf("unknown identity: expected ErrAliasNotFound, got %v", err)
	}

	// Alias pointing at nothing is also dangling.
	if err := store.AddAlias(ctx, "anon:7", "ghost:2"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}
	_, err = store.ResolveCanonical(ctx, "anon:7")
	if !errors.Is(err, identitystore.ErrAliasNotFound) {
		t.Errorf("dangling alias: expected ErrAliasNotFound, got %v", err)
	}
}

func TestAddAlias_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := identitystore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.AddAlias(ctx, "anon:1", "email:x"); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}
	err := store.AddAlias(ctx, "anon:1", "email:y")
	if !errors.Is(err, identitystore.ErrDuplicateAlias) {
		t.Errorf("expected ErrDuplicateAlias, got %v", err)
	}
}
