// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a canonical identity.
//
// Terminology: User Identifiers
//   - UserID / userID / user_id: the opaque, channel-namespaced identity
//     string (e.g. "telegram:42", "email:kim@example.com"). This is the key
//     every other collection references.
//   - ID / _id: the MongoDB ObjectID of the user document itself; it never
//     leaves the store layer.
//
// A user is created lazily on first verified contact and is never deleted
// while a workspace references it. Non-canonical identity strings live in
// the aliases collection and resolve to a canonical user_id.
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID string             `bson:"user_id" json:"user_id"`
	Status string             `bson:"status" json:"status"` // active | suspended

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
