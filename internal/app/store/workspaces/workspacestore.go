// internal/app/store/workspaces/workspacestore.go
package workspacestore

import (
	"context"
	"errors"
	"time"

	"github.com/convokit/warden/internal/app/system/status"
	"github.com/convokit/warden/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound = errors.New("workspace not found")

	// ErrOwnerInvariant means a workspace with zero or multiple owner
	// fields, or an owner field that does not match its type, was about to
	// be persisted. The partial unique indexes are only the backstop; this
	// error is raised before the document reaches the database.
	ErrOwnerInvariant = errors.New("workspace must have exactly one owner field matching its type")

	// ErrGroupHasWorkspace is returned when the group already owns a
	// workspace (one workspace per group, archived or not).
	ErrGroupHasWorkspace = errors.New("group already owns a workspace")
)

// PublicSystemTag is the owner tag of the process-wide public workspace.
const PublicSystemTag = "public"

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workspaces")}
}

// GetByID retrieves a workspace by its ID, archived or not.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error) {
	var ws models.Workspace
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ws)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// EnsureUserWorkspace returns the active individual workspace owned by
// userID, creating it on first contact. The upsert filter and the partial
// unique index on owner_user_id together guarantee that concurrent first
// contacts converge on one workspace.
func (s *Store) EnsureUserWorkspace(ctx context.Context, userID string) (models.Workspace, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"type":          models.WorkspaceIndividual,
		"owner_user_id": userID,
		"status":        status.Active,
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var ws models.Workspace
	err := s.c.FindOneAndUpdate(ctx, filter,
		bson.M{"$setOnInsert": bson.M{
			"name":       userID,
			"name_ci":    text.Fold(userID),
			"created_at": now,
			"updated_at": now,
		}},
		opts,
	).Decode(&ws)
	if err != nil {
		// The loser of a concurrent upsert race hits the unique index;
		// the winner's workspace exists now.
		if wafflemongo.IsDup(err) {
			err = s.c.FindOne(ctx, filter).Decode(&ws)
		}
		if err != nil {
			return models.Workspace{}, err
		}
	}
	return ws, nil
}

// CreateGroupWorkspace creates the one workspace owned by groupID. It fails
// with ErrGroupHasWorkspace if the group already owns one.
func (s *Store) CreateGroupWorkspace(ctx context.Context, groupID primitive.ObjectID, name string) (models.Workspace, error) {
	ws := models.Workspace{
		Type:         models.WorkspaceGroup,
		Name:         name,
		OwnerGroupID: &groupID,
	}
	created, err := s.insert(ctx, ws)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Workspace{}, ErrGroupHasWorkspace
		}
		return models.Workspace{}, err
	}
	return created, nil
}

// EnsurePublicWorkspace returns the process-wide public workspace, creating
// it on first reference.
func (s *Store) EnsurePublicWorkspace(ctx context.Context, name string) (models.Workspace, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"type":             models.WorkspacePublic,
		"owner_system_tag": PublicSystemTag,
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var ws models.Workspace
	err := s.c.FindOneAndUpdate(ctx, filter,
		bson.M{"$setOnInsert": bson.M{
			"name":       name,
			"name_ci":    text.Fold(name),
			"status":     status.Active,
			"created_at": now,
			"updated_at": now,
		}},
		opts,
	).Decode(&ws)
	if err != nil {
		if wafflemongo.IsDup(err) {
			err = s.c.FindOne(ctx, filter).Decode(&ws)
		}
		if err != nil {
			return models.Workspace{}, err
		}
	}
	return ws, nil
}

// ActiveIndividualByOwner returns the active individual workspace owned by
// userID, or ErrNotFound.
func (s *Store) ActiveIndividualByOwner(ctx context.Context, userID string) (models.Workspace, error) {
	var ws models.Workspace
	err := s.c.FindOne(ctx, bson.M{
		"type":          models.WorkspaceIndividual,
		"owner_user_id": userID,
		"status":        status.Active,
	}).Decode(&ws)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// ReassignOwner moves an individual workspace to a new canonical owner.
// Only the merge workflow calls this, inside a transaction.
func (s *Store) ReassignOwner(ctx context.Context, id primitive.ObjectID, newOwnerUserID string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "type": models.WorkspaceIndividual},
		bson.M{"$set": bson.M{
			"owner_user_id": newOwnerUserID,
			"updated_at":    time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive marks a workspace archived. Archived workspaces are excluded from
// default resolution but remain readable by explicit reference.
func (s *Store) Archive(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":     status.Archived,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// insert validates the owner invariant and writes a new workspace document.
func (s *Store) insert(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	now := time.Now().UTC()
	ws.ID = primitive.NewObjectID()
	ws.NameCI = text.Fold(ws.Name)
	if ws.Status == "" {
		ws.Status = status.Active
	}
	ws.CreatedAt = now
	ws.UpdatedAt = now

	if !ws.Type.IsValid() || !ws.OwnerValid() {
		return models.Workspace{}, ErrOwnerInvariant
	}

	if _, err := s.c.InsertOne(ctx, ws); err != nil {
		return models.Workspace{}, err
	}
	return ws, nil
}

// Create persists a fully specified workspace after validating the owner
// invariant. Most callers want one of the Ensure/CreateGroupWorkspace
// helpers instead.
func (s *Store) Create(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	return s.insert(ctx, ws)
}
