package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/convokit/warden/internal/app/system/status"
	"github.com/convokit/warden/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data directly in the
// collections, bypassing the store layer.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a canonical user with the given channel-namespaced id.
func (f *Fixtures) CreateUser(ctx context.Context, userID string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Status:    status.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateGroup inserts a group with the given name.
func (f *Fixtures) CreateGroup(ctx context.Context, name string) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    status.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// AddGroupMember inserts a membership row.
func (f *Fixtures) AddGroupMember(ctx context.Context, groupID primitive.ObjectID, userID string, role models.GroupRole) {
	f.t.Helper()

	m := models.GroupMembership{
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("group_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to add test group member: %v", err)
	}
}

// CreateIndividualWorkspace inserts an active individual workspace owned by
// the given canonical user id.
func (f *Fixtures) CreateIndividualWorkspace(ctx context.Context, ownerUserID string) models.Workspace {
	f.t.Helper()
	return f.insertWorkspace(ctx, models.Workspace{
		Type:        models.WorkspaceIndividual,
		Name:        ownerUserID,
		OwnerUserID: &ownerUserID,
	})
}

// CreateGroupWorkspace inserts a workspace owned by the given group.
func (f *Fixtures) CreateGroupWorkspace(ctx context.Context, groupID primitive.ObjectID, name string) models.Workspace {
	f.t.Helper()
	return f.insertWorkspace(ctx, models.Workspace{
		Type:         models.WorkspaceGroup,
		Name:         name,
		OwnerGroupID: &groupID,
	})
}

// CreatePublicWorkspace inserts the public singleton workspace.
func (f *Fixtures) CreatePublicWorkspace(ctx context.Context, name string) models.Workspace {
	f.t.Helper()
	tag := "public"
	return f.insertWorkspace(ctx, models.Workspace{
		Type:           models.WorkspacePublic,
		Name:           name,
		OwnerSystemTag: &tag,
	})
}

func (f *Fixtures) insertWorkspace(ctx context.Context, ws models.Workspace) models.Workspace {
	f.t.Helper()

	now := time.Now().UTC()
	ws.ID = primitive.NewObjectID()
	ws.NameCI = text.Fold(ws.Name)
	ws.Status = status.Active
	ws.CreatedAt = now
	ws.UpdatedAt = now
	if !ws.OwnerValid() {
		f.t.Fatalf("test workspace has invalid owner fields: %+v", ws)
	}
	if _, err := f.db.Collection("workspaces").InsertOne(ctx, ws); err != nil {
		f.t.Fatalf("failed to create test workspace: %v", err)
	}
	return ws
}
