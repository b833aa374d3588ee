// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/convokit/warden/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c      *mongo.Collection
	groups *mongo.Collection
}

var (
	ErrDuplicateMembership = errors.New("user is already a member of this group")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrGroupNotFound       = errors.New("group not found")
	errInvalidRole         = errors.New("invalid group role")
)

func New(db *mongo.Database) *Store {
	return &Store{
		c:      db.Collection("group_memberships"),
		groups: db.Collection("groups"),
	}
}

// Add enrolls userID in groupID with the given role. The (group_id, user_id)
// unique index guarantees at most one membership per pair even under
// concurrent adds.
func (s *Store) Add(ctx context.Context, groupID primitive.ObjectID, userID string, role models.GroupRole) (models.GroupMembership, error) {
	if !role.IsValid() {
		return models.GroupMembership{}, errInvalidRole
	}
	n, err := s.groups.CountDocuments(ctx, bson.M{"_id": groupID})
	if err != nil {
		return models.GroupMembership{}, err
	}
	if n == 0 {
		return models.GroupMembership{}, ErrGroupNotFound
	}

	m := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GroupMembership{}, ErrDuplicateMembership
		}
		return models.GroupMembership{}, err
	}
	return m, nil
}

// Remove deletes the membership for (groupID, userID).
func (s *Store) Remove(ctx context.Context, groupID primitive.ObjectID, userID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"group_id": groupID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// RoleOf returns the user's role in the group. The second return value is
// false when the user is not a member.
func (s *Store) RoleOf(ctx context.Context, groupID primitive.ObjectID, userID string) (models.GroupRole, bool, error) {
	var m models.GroupMembership
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", false, nil
		}
		return "", false, err
	}
	return m.Role, true, nil
}

// GroupsOf returns the ids of every group the user belongs to, in any role.
func (s *Store) GroupsOf(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var m models.GroupMembership
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		ids = append(ids, m.GroupID)
	}
	return ids, cur.Err()
}
