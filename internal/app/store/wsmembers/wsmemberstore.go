// internal/app/store/wsmembers/wsmemberstore.go
package wsmemberstore

import (
	"context"
	"errors"
	"time"

	"github.com/convokit/warden/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound    = errors.New("workspace member not found")
	errInvalidRole = errors.New("invalid workspace member role")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workspace_members")}
}

// Upsert grants userID the given role on workspaceID, replacing any previous
// role. Granting is last-writer-wins: re-granting with a lower role demotes.
func (s *Store) Upsert(ctx context.Context, workspaceID primitive.ObjectID, userID string, role models.MemberRole, grantedBy string) (models.WorkspaceMember, error) {
	if !role.IsValid() {
		return models.WorkspaceMember{}, errInvalidRole
	}

	now := time.Now().UTC()
	filter := bson.M{"workspace_id": workspaceID, "user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"role":       role,
			"granted_by": grantedBy,
			"granted_at": now,
		},
		"$setOnInsert": bson.M{
			"workspace_id": workspaceID,
			"user_id":      userID,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m models.WorkspaceMember
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		return models.WorkspaceMember{}, err
	}
	return m, nil
}

// Remove revokes userID's explicit membership on workspaceID.
func (s *Store) Remove(ctx context.Context, workspaceID primitive.ObjectID, userID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"workspace_id": workspaceID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the explicit membership for (workspaceID, userID).
func (s *Store) Get(ctx context.Context, workspaceID primitive.ObjectID, userID string) (models.WorkspaceMember, error) {
	var m models.WorkspaceMember
	err := s.c.FindOne(ctx, bson.M{"workspace_id": workspaceID, "user_id": userID}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.WorkspaceMember{}, ErrNotFound
		}
		return models.WorkspaceMember{}, err
	}
	return m, nil
}
