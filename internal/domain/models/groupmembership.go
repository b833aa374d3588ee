// internal/domain/models/groupmembership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupMembership is the authoritative join between users and groups.
// Exactly one document per (group_id, user_id); role is a scalar
// ("admin" | "member").
type GroupMembership struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID  string             `bson:"user_id" json:"user_id"` // canonical user_id
	Role    GroupRole          `bson:"role" json:"role"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
