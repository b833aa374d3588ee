// internal/app/store/grants/grantstore.go
package grantstore

import (
	"context"
	"errors"
	"time"

	"github.com/convokit/warden/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound          = errors.New("grant not found")
	ErrInvalidTarget     = errors.New("grant must target exactly one of a user or a group")
	ErrInvalidPermission = errors.New("invalid grant permission")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("acl_grants")}
}

// Grant records an ad-hoc permission on a single resource. The caller fills
// in workspace, resource, target, and permission; the store assigns the
// grant id and timestamps. Expiry is optional and enforced lazily at
// decision time, never by deletion here.
func (s *Store) Grant(ctx context.Context, g models.ACLGrant) (models.ACLGrant, error) {
	if !g.TargetValid() {
		return models.ACLGrant{}, ErrInvalidTarget
	}
	if !g.Permission.IsValid() {
		return models.ACLGrant{}, ErrInvalidPermission
	}

	g.ID = primitive.NewObjectID()
	g.GrantID = uuid.NewString()
	g.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.ACLGrant{}, err
	}
	return g, nil
}

// Revoke deletes the grant with the given grant id.
func (s *Store) Revoke(ctx context.Context, grantID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"grant_id": grantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByGrantID returns the grant with the given grant id.
func (s *Store) GetByGrantID(ctx context.Context, grantID string) (models.ACLGrant, error) {
	var g models.ACLGrant
	err := s.c.FindOne(ctx, bson.M{"grant_id": grantID}).Decode(&g)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.ACLGrant{}, ErrNotFound
		}
		return models.ACLGrant{}, err
	}
	return g, nil
}

// BestPermission returns the strongest unexpired permission held by userID
// (directly or through any of groupIDs) on the given resource. The second
// return value is false when no live grant applies. Expired grants are
// skipped, not deleted.
func (s *Store) BestPermission(ctx context.Context, workspaceID primitive.ObjectID, resourceType, resourceID, userID string, groupIDs []primitive.ObjectID, now time.Time) (models.GrantPermission, bool, error) {
	target := []bson.M{{"target_user_id": userID}}
	if len(groupIDs) > 0 {
		target = append(target, bson.M{"target_group_id": bson.M{"$in": groupIDs}})
	}
	filter := bson.M{
		"workspace_id":  workspaceID,
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"$or":           target,
	}

	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return "", false, err
	}
	defer cur.Close(ctx)

	var best models.GrantPermission
	found := false
	for cur.Next(ctx) {
		var g models.ACLGrant
		if err := cur.Decode(&g); err != nil {
			return "", false, err
		}
		if g.Expired(now) {
			continue
		}
		if !found || g.Permission == models.GrantWrite {
			best = g.Permission
			found = true
		}
	}
	if err := cur.Err(); err != nil {
		return "", false, err
	}
	return best, found, nil
}
