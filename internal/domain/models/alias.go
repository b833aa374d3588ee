// internal/domain/models/alias.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alias maps a non-canonical identity string to a canonical user_id.
//
// Aliases form a directed graph that resolution walks with a visited set;
// a chain that revisits a node is malformed and is reported, never broken
// silently. Aliases are written only by the identity-merge workflow.
type Alias struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AliasID string             `bson:"alias_id" json:"alias_id"` // unique source identity
	UserID  string             `bson:"user_id" json:"user_id"`   // target identity (one hop)

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
